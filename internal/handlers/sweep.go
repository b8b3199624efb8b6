package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantumlife-hq/horizon-backend/internal/services"
)

type SweepHandler struct {
	sweeperService services.SweeperService
}

func NewSweepHandler(sweeperService services.SweeperService) *SweepHandler {
	return &SweepHandler{sweeperService: sweeperService}
}

// Run triggers an immediate sweep outside the schedule, typically from an
// operator console.
func (sh *SweepHandler) Run(c *gin.Context) {
	result, err := sh.sweeperService.Sweep(c.Request.Context(), time.Now().UTC())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}
