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

type SuggestionHandler struct {
	suggestionService services.SuggestionService
}

func NewSuggestionHandler(suggestionService services.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{suggestionService: suggestionService}
}

func (sh *SuggestionHandler) Generate(c *gin.Context) {
	var req struct {
		WindowID *uuid.UUID `json:"window_id,omitempty"`
		SignalID *uuid.UUID `json:"signal_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	var (
		suggestion *types.Suggestion
		err        error
	)
	switch {
	case req.WindowID != nil:
		suggestion, err = sh.suggestionService.GenerateForWindow(c.Request.Context(), *req.WindowID)
	case req.SignalID != nil:
		suggestion, err = sh.suggestionService.GenerateForSignal(c.Request.Context(), *req.SignalID)
	default:
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", errMissingTrigger)
		return
	}
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, suggestion)
}

func (sh *SuggestionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	suggestion, err := sh.suggestionService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, suggestion)
}

func (sh *SuggestionHandler) List(c *gin.Context) {
	filters := repos.SuggestionFilters{}
	if raw := c.Query("kind"); raw != "" {
		k := types.SuggestionKind(raw)
		filters.Kind = &k
	}
	if raw := c.Query("domain"); raw != "" {
		d := types.Domain(raw)
		filters.Domain = &d
	}
	if raw := c.Query("status"); raw != "" {
		s := types.SuggestionStatus(raw)
		filters.Status = &s
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	suggestions, err := sh.suggestionService.List(c.Request.Context(), filters, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"suggestions": suggestions, "count": len(suggestions)})
}

func (sh *SuggestionHandler) Transition(c *gin.Context) {
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
	suggestion, err := sh.suggestionService.Transition(c.Request.Context(), id, types.SuggestionStatus(req.Status))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, suggestion)
}
