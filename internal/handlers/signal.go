package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quantumlife-hq/horizon-backend/internal/repos"
	"github.com/quantumlife-hq/horizon-backend/internal/services"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

type SignalHandler struct {
	signalService services.SignalService
}

func NewSignalHandler(signalService services.SignalService) *SignalHandler {
	return &SignalHandler{signalService: signalService}
}

func (sh *SignalHandler) Evaluate(c *gin.Context) {
	var req struct {
		LookbackDays int `json:"lookback_days,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	signals, err := sh.signalService.Evaluate(c.Request.Context(), services.SignalOptions{
		LookbackDays: req.LookbackDays,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"signals": signals, "count": len(signals)})
}

func (sh *SignalHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	signal, err := sh.signalService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, signal)
}

func (sh *SignalHandler) List(c *gin.Context) {
	filters := repos.SignalFilters{}
	if raw := c.Query("signal_type"); raw != "" {
		st := types.SignalType(raw)
		filters.SignalType = &st
	}
	if raw := c.Query("status"); raw != "" {
		ss := types.SignalStatus(raw)
		filters.Status = &ss
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	signals, err := sh.signalService.List(c.Request.Context(), filters, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"signals": signals, "count": len(signals)})
}

func (sh *SignalHandler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	signal, err := sh.signalService.Transition(c.Request.Context(), id, types.SignalStatus(req.Status))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, signal)
}
