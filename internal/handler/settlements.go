package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"updown/internal/service"
)

type SettlementHandler struct {
	Settlements *service.SettlementService
	Logger      *zap.Logger
	CronSecret  string
}

func (h *SettlementHandler) Register(r *gin.Engine) {
	r.GET("/settlement", h.list)
	r.POST("/settlement", h.claim)
	r.POST("/internal/sweep", CronAuthMiddleware(h.CronSecret), h.sweep)
}

type claimRequest struct {
	Wallet  string `json:"wallet" binding:"required"`
	RoundID string `json:"roundId" binding:"required"`
	TxHash  string `json:"txHash"`
}

// @Summary Settlement rows for a wallet
// @Tags settlement
// @Param wallet query string true "wallet address"
// @Param action query string false "unclaimed|history"
// @Param limit query int false "page size"
// @Success 200 {object} map[string]any
// @Router /settlement [get]
func (h *SettlementHandler) list(c *gin.Context) {
	wallet := strings.TrimSpace(c.Query("wallet"))
	if wallet == "" {
		Error(c, http.StatusBadRequest, "wallet is required", nil)
		return
	}
	action := strings.TrimSpace(c.Query("action"))
	unclaimedOnly := action == "" || action == "unclaimed"
	rows, err := h.Settlements.ListForUser(c.Request.Context(), wallet, unclaimedOnly, intQuery(c, "limit", 50))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, rows, map[string]any{"count": len(rows)})
}

// @Summary Claim a round payout
// @Tags settlement
// @Accept json
// @Param request body claimRequest true "claim"
// @Success 200 {object} map[string]any
// @Router /settlement [post]
func (h *SettlementHandler) claim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	result, err := h.Settlements.Claim(c.Request.Context(), req.Wallet, req.RoundID, req.TxHash)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, result, nil)
}

// @Summary Close expired rounds and settle closed ones
// @Tags internal
// @Success 200 {object} map[string]any
// @Router /internal/sweep [post]
func (h *SettlementHandler) sweep(c *gin.Context) {
	report, err := h.Settlements.SweepOnce(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("sweep failed", zap.Error(err))
		}
		Fail(c, err)
		return
	}
	Ok(c, report, nil)
}
