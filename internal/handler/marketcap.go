package handler

import (
	"github.com/gin-gonic/gin"

	"updown/internal/service"
)

type MarketCapHandler struct {
	Valuation *service.ValuationService
}

func (h *MarketCapHandler) Register(r *gin.Engine) {
	r.GET("/marketcap", h.get)
}

// @Summary Latest reference asset market cap
// @Tags marketcap
// @Success 200 {object} map[string]any
// @Router /marketcap [get]
func (h *MarketCapHandler) get(c *gin.Context) {
	obs, err := h.Valuation.LatestMarketCap(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{
		"market_cap":  obs.MarketCap,
		"source":      obs.Source,
		"observed_at": obs.ObservedAt,
	}, nil)
}
