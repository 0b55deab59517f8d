package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contravention-api/internal/dto"
	"github.com/noah-isme/contravention-api/internal/models"
	"github.com/noah-isme/contravention-api/pkg/response"
)

type escalationService interface {
	List(ctx context.Context, filter models.EscalationFilter) ([]models.Escalation, *models.Pagination, error)
	CompleteAction(ctx context.Context, escalationID, action, actorID string) (*models.Escalation, error)
	RecalculateAll(ctx context.Context, actorID string) (*models.RecalculationResult, error)
}

// EscalationHandler exposes escalation records and their follow-up actions.
type EscalationHandler struct {
	service escalationService
}

// NewEscalationHandler builds a new handler.
func NewEscalationHandler(service escalationService) *EscalationHandler {
	return &EscalationHandler{service: service}
}

// List godoc
// @Summary List escalation records
// @Tags Escalations
// @Produce json
// @Param employeeId query string false "Employee filter"
// @Param open query bool false "Only records with outstanding actions"
// @Param archived query bool false "Include superseded records"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /escalations [get]
func (h *EscalationHandler) List(c *gin.Context) {
	open, err := parseQueryBool(c, "open")
	if err != nil {
		response.Error(c, err)
		return
	}
	archived, err := parseQueryBool(c, "archived")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), models.EscalationFilter{
		EmployeeID:      c.Query("employeeId"),
		OpenOnly:        open,
		IncludeArchived: archived,
		Page:            parseQueryInt(c, "page", 1),
		PageSize:        parseQueryInt(c, "pageSize", 20),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, pagination)
}

// CompleteAction godoc
// @Summary Mark a required action as done
// @Description The action must match one of the record's required actions exactly.
// @Tags Escalations
// @Accept json
// @Produce json
// @Param id path string true "Escalation ID"
// @Param payload body dto.CompleteActionRequest true "Action"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /escalations/{id}/complete-action [patch]
func (h *EscalationHandler) CompleteAction(c *gin.Context) {
	var req dto.CompleteActionRequest
	if err := bindJSON(c, &req, "invalid action payload"); err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.CompleteAction(c.Request.Context(), c.Param("id"), req.Action, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Recalculate godoc
// @Summary Reconcile every ledger with the escalation matrix
// @Description Repairs totals that drifted from history and rebuilds escalation records after a matrix change.
// @Tags Escalations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /escalations/recalculate [post]
func (h *EscalationHandler) Recalculate(c *gin.Context) {
	result, err := h.service.RecalculateAll(c.Request.Context(), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
