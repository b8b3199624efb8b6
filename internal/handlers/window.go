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

type WindowHandler struct {
	forecastService services.ForecastService
}

func NewWindowHandler(forecastService services.ForecastService) *WindowHandler {
	return &WindowHandler{forecastService: forecastService}
}

func (wh *WindowHandler) Generate(c *gin.Context) {
	opts := services.ForecastOptions{}
	for _, raw := range c.QueryArray("horizon") {
		opts.Horizons = append(opts.Horizons, types.TimeHorizon(raw))
	}
	windows, err := wh.forecastService.Generate(c.Request.Context(), opts)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"windows": windows, "count": len(windows)})
}

func (wh *WindowHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	window, err := wh.forecastService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, window)
}

func (wh *WindowHandler) List(c *gin.Context) {
	filters := repos.WindowFilters{}
	if raw := c.Query("window_type"); raw != "" {
		wt := types.WindowType(raw)
		filters.WindowType = &wt
	}
	if raw := c.Query("domain"); raw != "" {
		d := types.Domain(raw)
		filters.Domain = &d
	}
	if raw := c.Query("status"); raw != "" {
		ws := types.WindowStatus(raw)
		filters.Status = &ws
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	windows, err := wh.forecastService.List(c.Request.Context(), filters, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"windows": windows, "count": len(windows)})
}

func (wh *WindowHandler) ListOpen(c *gin.Context) {
	windows, err := wh.forecastService.ListOpen(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"windows": windows, "count": len(windows)})
}

func (wh *WindowHandler) Transition(c *gin.Context) {
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
	window, err := wh.forecastService.Transition(c.Request.Context(), id, types.WindowStatus(req.Status))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, window)
}

func (wh *WindowHandler) Invalidate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	window, err := wh.forecastService.Invalidate(c.Request.Context(), id, req.Reason)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, window)
}
