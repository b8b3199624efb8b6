package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quantumlife-hq/horizon-backend/internal/services"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

type AdaptationHandler struct {
	adaptationService services.AdaptationService
}

func NewAdaptationHandler(adaptationService services.AdaptationService) *AdaptationHandler {
	return &AdaptationHandler{adaptationService: adaptationService}
}

func (ah *AdaptationHandler) Propose(c *gin.Context) {
	var req services.PlanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	plan, err := ah.adaptationService.Propose(c.Request.Context(), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, plan)
}

func (ah *AdaptationHandler) Confirm(c *gin.Context) {
	ah.planAction(c, ah.adaptationService.Confirm)
}

func (ah *AdaptationHandler) Reject(c *gin.Context) {
	ah.planAction(c, ah.adaptationService.Reject)
}

func (ah *AdaptationHandler) Apply(c *gin.Context) {
	ah.planAction(c, ah.adaptationService.Apply)
}

func (ah *AdaptationHandler) Rollback(c *gin.Context) {
	ah.planAction(c, ah.adaptationService.Rollback)
}

func (ah *AdaptationHandler) Get(c *gin.Context) {
	ah.planAction(c, ah.adaptationService.Get)
}

func (ah *AdaptationHandler) planAction(c *gin.Context, fn func(context.Context, uuid.UUID) (*types.AdaptationPlan, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	plan, err := fn(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, plan)
}

func (ah *AdaptationHandler) List(c *gin.Context) {
	var status *types.PlanStatus
	if raw := c.Query("status"); raw != "" {
		s := types.PlanStatus(raw)
		status = &s
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	plans, err := ah.adaptationService.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"plans": plans, "count": len(plans)})
}

func (ah *AdaptationHandler) Profile(c *gin.Context) {
	profile, err := ah.adaptationService.Profile(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, profile)
}
