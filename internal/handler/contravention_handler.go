package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contravention-api/internal/dto"
	"github.com/noah-isme/contravention-api/internal/models"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
	"github.com/noah-isme/contravention-api/pkg/response"
)

type contraventionService interface {
	List(ctx context.Context, query dto.ContraventionQuery) ([]models.Contravention, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Contravention, error)
	Create(ctx context.Context, req dto.CreateContraventionRequest, submitterID string) (*models.ContraventionResult, error)
	Approve(ctx context.Context, id, actorID string) (*models.Contravention, error)
	Acknowledge(ctx context.Context, id string, req dto.AcknowledgeContraventionRequest, actorID, ownerID string) (*models.Contravention, error)
	Dispute(ctx context.Context, id string, req dto.DisputeContraventionRequest, actorID, ownerID string) (*models.Contravention, error)
	CompleteReview(ctx context.Context, id, actorID string) (*models.Contravention, error)
	Reject(ctx context.Context, id string, req dto.RejectContraventionRequest, actorID string) (*models.Contravention, error)
	ReEdit(ctx context.Context, id string, req dto.ReEditContraventionRequest, actorID string) (*models.Contravention, error)
	AdjustPoints(ctx context.Context, id string, req dto.AdjustPointsRequest, actorID string) (*models.ContraventionResult, error)
	Withdraw(ctx context.Context, id, actorID string) (*models.ContraventionResult, error)
}

// ContraventionHandler exposes contravention logging and the review workflow.
type ContraventionHandler struct {
	service contraventionService
}

// NewContraventionHandler builds a new handler.
func NewContraventionHandler(service contraventionService) *ContraventionHandler {
	return &ContraventionHandler{service: service}
}

// List godoc
// @Summary List contraventions
// @Tags Contraventions
// @Produce json
// @Param employeeId query string false "Employee filter"
// @Param type query string false "Contravention type name"
// @Param status query string false "Comma separated statuses"
// @Param from query string false "Incident date from (YYYY-MM-DD)"
// @Param to query string false "Incident date to (YYYY-MM-DD)"
// @Param withdrawn query bool false "Include withdrawn contraventions"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /contraventions [get]
func (h *ContraventionHandler) List(c *gin.Context) {
	from, err := parseDateParam(c.Query("from"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateParam(c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	withdrawn, err := parseQueryBool(c, "withdrawn")
	if err != nil {
		response.Error(c, err)
		return
	}

	query := dto.ContraventionQuery{
		EmployeeID:       c.Query("employeeId"),
		TypeName:         c.Query("type"),
		DateFrom:         from,
		DateTo:           to,
		IncludeWithdrawn: withdrawn,
		Page:             parseQueryInt(c, "page", 1),
		PageSize:         parseQueryInt(c, "pageSize", 20),
	}
	if raw := c.Query("status"); raw != "" {
		for _, status := range strings.Split(raw, ",") {
			if status = strings.TrimSpace(status); status != "" {
				query.Statuses = append(query.Statuses, models.ContraventionStatus(strings.ToUpper(status)))
			}
		}
	}

	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, pagination)
}

// Get godoc
// @Summary Get a contravention
// @Tags Contraventions
// @Produce json
// @Param id path string true "Contravention ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /contraventions/{id} [get]
func (h *ContraventionHandler) Get(c *gin.Context) {
	owner, err := ownerScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if owner != "" && item.EmployeeID != owner {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "contravention belongs to another employee"))
		return
	}
	response.OK(c, item)
}

// Create godoc
// @Summary Log a contravention
// @Description Copies the type's default points onto the contravention and adds them to the employee's ledger.
// @Tags Contraventions
// @Accept json
// @Produce json
// @Param payload body dto.CreateContraventionRequest true "Contravention payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /contraventions [post]
func (h *ContraventionHandler) Create(c *gin.Context) {
	var req dto.CreateContraventionRequest
	if err := bindJSON(c, &req, "invalid contravention payload"); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Approve godoc
// @Summary Approve a contravention
// @Tags Contraventions
// @Produce json
// @Param id path string true "Contravention ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /contraventions/{id}/approve [post]
func (h *ContraventionHandler) Approve(c *gin.Context) {
	item, err := h.service.Approve(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Acknowledge godoc
// @Summary Upload the employee's signed acknowledgement
// @Tags Contraventions
// @Accept json
// @Produce json
// @Param id path string true "Contravention ID"
// @Param payload body dto.AcknowledgeContraventionRequest true "Attachment reference"
// @Success 200 {object} response.Envelope
// @Router /contraventions/{id}/acknowledge [post]
func (h *ContraventionHandler) Acknowledge(c *gin.Context) {
	var req dto.AcknowledgeContraventionRequest
	if err := bindJSON(c, &req, "invalid acknowledgement payload"); err != nil {
		response.Error(c, err)
		return
	}
	owner, err := ownerScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	item, err := h.service.Acknowledge(c.Request.Context(), c.Param("id"), req, actorID(c), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Dispute godoc
// @Summary Dispute a contravention
// @Tags Contraventions
// @Accept json
// @Produce json
// @Param id path string true "Contravention ID"
// @Param payload body dto.DisputeContraventionRequest true "Dispute note"
// @Success 200 {object} response.Envelope
// @Router /contraventions/{id}/dispute [post]
func (h *ContraventionHandler) Dispute(c *gin.Context) {
	var req dto.DisputeContraventionRequest
	if err := bindJSON(c, &req, "invalid dispute payload"); err != nil {
		response.Error(c, err)
		return
	}
	owner, err := ownerScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	item, err := h.service.Dispute(c.Request.Context(), c.Param("id"), req, actorID(c), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// CompleteReview godoc
// @Summary Close the review of a contravention
// @Tags Contraventions
// @Produce json
// @Param id path string true "Contravention ID"
// @Success 200 {object} response.Envelope
// @Router /contraventions/{id}/complete-review [post]
func (h *ContraventionHandler) CompleteReview(c *gin.Context) {
	item, err := h.service.CompleteReview(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Reject godoc
// @Summary Reject a contravention
// @Tags Contraventions
// @Accept json
// @Produce json
// @Param id path string true "Contravention ID"
// @Param payload body dto.RejectContraventionRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /contraventions/{id}/reject [post]
func (h *ContraventionHandler) Reject(c *gin.Context) {
	var req dto.RejectContraventionRequest
	if err := bindJSON(c, &req, "invalid rejection payload"); err != nil {
		response.Error(c, err)
		return
	}
	item, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// ReEdit godoc
// @Summary Correct a rejected contravention and resubmit it
// @Tags Contraventions
// @Accept json
// @Produce json
// @Param id path string true "Contravention ID"
// @Param payload body dto.ReEditContraventionRequest true "Corrected fields"
// @Success 200 {object} response.Envelope
// @Router /contraventions/{id}/re-edit [post]
func (h *ContraventionHandler) ReEdit(c *gin.Context) {
	var req dto.ReEditContraventionRequest
	if err := bindJSON(c, &req, "invalid re-edit payload"); err != nil {
		response.Error(c, err)
		return
	}
	item, err := h.service.ReEdit(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// AdjustPoints godoc
// @Summary Correct the point value of a contravention
// @Description The difference is booked as a compensating ledger entry; history is never edited.
// @Tags Contraventions
// @Accept json
// @Produce json
// @Param id path string true "Contravention ID"
// @Param payload body dto.AdjustPointsRequest true "New point value"
// @Success 200 {object} response.Envelope
// @Router /contraventions/{id}/points [patch]
func (h *ContraventionHandler) AdjustPoints(c *gin.Context) {
	var req dto.AdjustPointsRequest
	if err := bindJSON(c, &req, "invalid points payload"); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.AdjustPoints(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Withdraw godoc
// @Summary Withdraw a contravention
// @Description Soft deletes the contravention and removes its points from the ledger. Repeating the call is a no-op.
// @Tags Contraventions
// @Produce json
// @Param id path string true "Contravention ID"
// @Success 200 {object} response.Envelope
// @Router /contraventions/{id} [delete]
func (h *ContraventionHandler) Withdraw(c *gin.Context) {
	result, err := h.service.Withdraw(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
