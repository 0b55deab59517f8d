package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contravention-api/internal/dto"
	"github.com/noah-isme/contravention-api/internal/models"
	"github.com/noah-isme/contravention-api/pkg/response"
)

type fiscalResetService interface {
	ResetAtFiscalBoundary(ctx context.Context, now time.Time, actorID string) (*models.FiscalResetResult, error)
}

// FiscalHandler exposes the manual fiscal year reset.
type FiscalHandler struct {
	service fiscalResetService
	now     func() time.Time
}

// NewFiscalHandler builds a new handler.
func NewFiscalHandler(service fiscalResetService) *FiscalHandler {
	return &FiscalHandler{service: service, now: time.Now}
}

// Reset godoc
// @Summary Reset points for the current fiscal year
// @Description Zeroes points accrued before the fiscal year containing `at` (default now). Safe to repeat.
// @Tags Points
// @Accept json
// @Produce json
// @Param payload body dto.FiscalResetRequest false "Optional reference time"
// @Success 200 {object} response.Envelope
// @Router /points/fiscal-reset [post]
func (h *FiscalHandler) Reset(c *gin.Context) {
	var req dto.FiscalResetRequest
	if c.Request.ContentLength > 0 {
		if err := bindJSON(c, &req, "invalid fiscal reset payload"); err != nil {
			response.Error(c, err)
			return
		}
	}
	at := h.now()
	if req.At != nil {
		at = *req.At
	}
	result, err := h.service.ResetAtFiscalBoundary(c.Request.Context(), at, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
