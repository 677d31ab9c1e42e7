package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"updown/internal/models"
	"updown/internal/service"
)

type OrderHandler struct {
	Exchange *service.ExchangeService
	Rounds   *service.RoundService
	Logger   *zap.Logger
}

func (h *OrderHandler) Register(r *gin.Engine) {
	r.GET("/orders", h.get)
	r.POST("/orders", h.place)
	r.DELETE("/orders", h.cancel)
}

type placeOrderRequest struct {
	Wallet          string           `json:"wallet" binding:"required"`
	Side            string           `json:"side" binding:"required,oneof=higher lower"`
	Amount          decimal.Decimal  `json:"amount" binding:"required"`
	Type            string           `json:"type" binding:"required,oneof=market limit"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	IntervalMinutes int              `json:"intervalMinutes" binding:"required"`
}

// @Summary Order book, trades, or quote for the current round
// @Tags orders
// @Param action query string true "orderbook|trades|quote"
// @Param intervalMinutes query int false "round duration class"
// @Param side query string false "higher|lower (quote)"
// @Param amount query string false "order size (quote)"
// @Success 200 {object} map[string]any
// @Router /orders [get]
func (h *OrderHandler) get(c *gin.Context) {
	interval := intQuery(c, "intervalMinutes", 15)
	round, err := h.Rounds.GetOrCreateActiveRound(c.Request.Context(), interval)
	if err != nil {
		Fail(c, err)
		return
	}
	switch strings.TrimSpace(c.Query("action")) {
	case "orderbook", "":
		book, err := h.Exchange.OrderBook(c.Request.Context(), round.ID)
		if err != nil {
			Fail(c, err)
			return
		}
		Ok(c, book, roundMeta(round))
	case "trades":
		trades, err := h.Exchange.RecentTrades(c.Request.Context(), round.ID)
		if err != nil {
			Fail(c, err)
			return
		}
		Ok(c, trades, roundMeta(round))
	case "quote":
		amount, err := decimal.NewFromString(strings.TrimSpace(c.Query("amount")))
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid amount", nil)
			return
		}
		quote, err := h.Exchange.Quote(c.Request.Context(), round.ID, c.Query("side"), amount)
		if err != nil {
			Fail(c, err)
			return
		}
		Ok(c, quote, roundMeta(round))
	default:
		Error(c, http.StatusBadRequest, "unknown action", nil)
	}
}

// @Summary Place a market or limit order on the current round
// @Tags orders
// @Accept json
// @Param request body placeOrderRequest true "order"
// @Success 200 {object} map[string]any
// @Router /orders [post]
func (h *OrderHandler) place(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	round, err := h.Rounds.GetOrCreateActiveRound(c.Request.Context(), req.IntervalMinutes)
	if err != nil {
		Fail(c, err)
		return
	}

	var result *service.OrderResult
	switch req.Type {
	case models.TradeTypeMarket:
		result, err = h.Exchange.PlaceMarketOrder(c.Request.Context(), req.Wallet, round.ID, req.Side, req.Amount)
	case models.TradeTypeLimit:
		if req.Price == nil {
			Error(c, http.StatusBadRequest, "limit orders require a price", nil)
			return
		}
		result, err = h.Exchange.PlaceLimitOrder(c.Request.Context(), req.Wallet, round.ID, req.Side, req.Amount, *req.Price)
	}
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, result, roundMeta(round))
}

// @Summary Cancel the unfilled remainder of an order
// @Tags orders
// @Param orderId query int true "order id"
// @Param wallet query string true "owner wallet"
// @Success 200 {object} map[string]any
// @Router /orders [delete]
func (h *OrderHandler) cancel(c *gin.Context) {
	orderID := parseUint64(c.Query("orderId"))
	wallet := strings.TrimSpace(c.Query("wallet"))
	if orderID == 0 || wallet == "" {
		Error(c, http.StatusBadRequest, "orderId and wallet are required", nil)
		return
	}
	order, err := h.Exchange.CancelOrder(c.Request.Context(), wallet, orderID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, order, nil)
}

func roundMeta(round *models.Round) map[string]any {
	return map[string]any{
		"round_id": round.ID,
		"end_time": round.EndTime,
		"status":   round.Status,
	}
}
