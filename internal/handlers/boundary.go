package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quantumlife-hq/horizon-backend/internal/services"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

var errMissingTrigger = errors.New("either window_id or signal_id is required")

type BoundaryHandler struct {
	boundaryService services.BoundaryService
}

func NewBoundaryHandler(boundaryService services.BoundaryService) *BoundaryHandler {
	return &BoundaryHandler{boundaryService: boundaryService}
}

func (bh *BoundaryHandler) Check(c *gin.Context) {
	var req struct {
		Action string `json:"action"`
		Domain string `json:"domain"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	verdict, err := bh.boundaryService.Check(c.Request.Context(), req.Action, types.Domain(req.Domain))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, verdict)
}

func (bh *BoundaryHandler) GetProfile(c *gin.Context) {
	profile, err := bh.boundaryService.GetProfile(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, profile)
}

func (bh *BoundaryHandler) UpdateProfile(c *gin.Context) {
	var req services.BoundaryProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	profile, err := bh.boundaryService.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, profile)
}

func (bh *BoundaryHandler) RecordConsent(c *gin.Context) {
	var req services.ConsentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	record, err := bh.boundaryService.RecordConsent(c.Request.Context(), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, record)
}

func (bh *BoundaryHandler) ListConsents(c *gin.Context) {
	records, err := bh.boundaryService.ListConsents(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"consents": records, "count": len(records)})
}
