package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantumlife-hq/horizon-backend/internal/services"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

type ObservationHandler struct {
	observationService services.ObservationService
}

func NewObservationHandler(observationService services.ObservationService) *ObservationHandler {
	return &ObservationHandler{observationService: observationService}
}

func (oh *ObservationHandler) Record(c *gin.Context) {
	var req struct {
		Observations []services.ObservationInput `json:"observations"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	created, err := oh.observationService.Record(c.Request.Context(), nil, req.Observations)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"observations": created, "count": len(created)})
}

func (oh *ObservationHandler) Query(c *gin.Context) {
	var domain *types.Domain
	if raw := c.Query("domain"); raw != "" {
		d := types.Domain(raw)
		domain = &d
	}
	since := time.Time{}
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
			return
		}
		since = parsed
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, err := oh.observationService.Query(c.Request.Context(), domain, since, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"observations": rows, "count": len(rows)})
}
