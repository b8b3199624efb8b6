package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quantumlife-hq/horizon-backend/internal/services"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

type DriftHandler struct {
	driftService services.DriftService
}

func NewDriftHandler(driftService services.DriftService) *DriftHandler {
	return &DriftHandler{driftService: driftService}
}

func (dh *DriftHandler) Detect(c *gin.Context) {
	var req struct {
		Domain        string `json:"domain"`
		ReferenceDays int    `json:"reference_days,omitempty"`
		RecentDays    int    `json:"recent_days,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	events, err := dh.driftService.Detect(c.Request.Context(), types.Domain(req.Domain), services.DriftOptions{
		ReferenceDays: req.ReferenceDays,
		RecentDays:    req.RecentDays,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"drift_events": events, "count": len(events)})
}

func (dh *DriftHandler) List(c *gin.Context) {
	var domain *types.Domain
	if raw := c.Query("domain"); raw != "" {
		d := types.Domain(raw)
		domain = &d
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, err := dh.driftService.List(c.Request.Context(), domain, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"drift_events": events, "count": len(events)})
}

func (dh *DriftHandler) Acknowledge(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	var req struct {
		Response string `json:"response"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	event, err := dh.driftService.Acknowledge(c.Request.Context(), id, req.Response)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, event)
}
