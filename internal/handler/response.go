package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"updown/internal/engine"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps an engine error onto its HTTP status. Unclassified errors are
// internal; their details stay out of the response body.
func Fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidSide),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidPrice),
		errors.Is(err, engine.ErrUnsupportedDuration),
		errors.Is(err, engine.ErrOrderTooLarge):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, engine.ErrRoundNotFound),
		errors.Is(err, engine.ErrOrderNotFound),
		errors.Is(err, engine.ErrSettlementNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, engine.ErrRoundNotActive),
		errors.Is(err, engine.ErrRoundNotClosed),
		errors.Is(err, engine.ErrAlreadyClaimed),
		errors.Is(err, engine.ErrNoPayout):
		Error(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, engine.ErrUpstreamUnavailable):
		Error(c, http.StatusServiceUnavailable, err.Error(), nil)
	default:
		Error(c, http.StatusInternalServerError, "internal error", nil)
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func parseUint64(v string) uint64 {
	id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
