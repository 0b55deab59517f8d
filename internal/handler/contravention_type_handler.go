package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contravention-api/internal/dto"
	"github.com/noah-isme/contravention-api/internal/models"
	"github.com/noah-isme/contravention-api/pkg/response"
)

type contraventionTypeService interface {
	List(ctx context.Context, activeOnly bool) ([]models.ContraventionType, error)
	Create(ctx context.Context, req dto.ContraventionTypeRequest, actorID string) (*models.ContraventionType, error)
	Update(ctx context.Context, name string, req dto.ContraventionTypeRequest, actorID string) (*models.ContraventionType, error)
}

// ContraventionTypeHandler exposes the contravention type registry.
type ContraventionTypeHandler struct {
	service contraventionTypeService
}

// NewContraventionTypeHandler builds a new handler.
func NewContraventionTypeHandler(service contraventionTypeService) *ContraventionTypeHandler {
	return &ContraventionTypeHandler{service: service}
}

// List godoc
// @Summary List contravention types
// @Tags ContraventionTypes
// @Produce json
// @Param active query bool false "Only active types"
// @Success 200 {object} response.Envelope
// @Router /contravention-types [get]
func (h *ContraventionTypeHandler) List(c *gin.Context) {
	activeOnly, err := parseQueryBool(c, "active")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Create godoc
// @Summary Register a contravention type
// @Tags ContraventionTypes
// @Accept json
// @Produce json
// @Param payload body dto.ContraventionTypeRequest true "Type payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /contravention-types [post]
func (h *ContraventionTypeHandler) Create(c *gin.Context) {
	var req dto.ContraventionTypeRequest
	if err := bindJSON(c, &req, "invalid contravention type payload"); err != nil {
		response.Error(c, err)
		return
	}
	item, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Correct a contravention type
// @Description Points already copied onto contraventions are left unchanged.
// @Tags ContraventionTypes
// @Accept json
// @Produce json
// @Param name path string true "Type name"
// @Param payload body dto.ContraventionTypeRequest true "Type payload"
// @Success 200 {object} response.Envelope
// @Router /contravention-types/{name} [put]
func (h *ContraventionTypeHandler) Update(c *gin.Context) {
	var req dto.ContraventionTypeRequest
	if err := bindJSON(c, &req, "invalid contravention type payload"); err != nil {
		response.Error(c, err)
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("name"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}
