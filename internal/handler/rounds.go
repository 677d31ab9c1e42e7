package handler

import (
	"github.com/gin-gonic/gin"

	"updown/internal/service"
)

type RoundHandler struct {
	Rounds *service.RoundService
}

func (h *RoundHandler) Register(r *gin.Engine) {
	r.GET("/rounds/current", h.current)
	r.GET("/rounds/:id", h.get)
}

// @Summary Current round for a duration class
// @Tags rounds
// @Param intervalMinutes query int false "round duration class"
// @Success 200 {object} map[string]any
// @Router /rounds/current [get]
func (h *RoundHandler) current(c *gin.Context) {
	interval := intQuery(c, "intervalMinutes", 15)
	round, err := h.Rounds.GetOrCreateActiveRound(c.Request.Context(), interval)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, round, nil)
}

// @Summary Round by id
// @Tags rounds
// @Param id path string true "round id"
// @Success 200 {object} map[string]any
// @Router /rounds/{id} [get]
func (h *RoundHandler) get(c *gin.Context) {
	round, err := h.Rounds.GetRound(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, round, nil)
}
