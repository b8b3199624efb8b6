package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quantumlife-hq/horizon-backend/internal/apierr"
)

type APIError struct {
	Message       string `json:"message"`
	Code          string `json:"code,omitempty"`
	BoundaryType  string `json:"boundary_type,omitempty"`
	DaysRemaining int    `json:"days_remaining,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondServiceError maps a service error onto the envelope, preserving the
// structured code and detail fields when it is an *apierr.Error.
func RespondServiceError(c *gin.Context, err error) {
	if e, ok := apierr.AsError(err); ok {
		c.JSON(e.Status, ErrorEnvelope{
			Error: APIError{
				Message:       e.Error(),
				Code:          e.Code,
				BoundaryType:  e.BoundaryType,
				DaysRemaining: e.DaysRemaining,
			},
		})
		return
	}
	RespondError(c, http.StatusInternalServerError, "INTERNAL", err)
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
