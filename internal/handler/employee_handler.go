package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contravention-api/internal/dto"
	"github.com/noah-isme/contravention-api/internal/models"
	"github.com/noah-isme/contravention-api/pkg/response"
)

type employeeService interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Employee, error)
	Create(ctx context.Context, req dto.CreateEmployeeRequest) (*models.Employee, error)
}

type statementService interface {
	Statement(ctx context.Context, employeeID string) (*models.PointsStatement, error)
}

type escalationLister interface {
	List(ctx context.Context, filter models.EscalationFilter) ([]models.Escalation, *models.Pagination, error)
}

// EmployeeHandler exposes employees with their ledgers and escalation records.
type EmployeeHandler struct {
	employees   employeeService
	points      statementService
	escalations escalationLister
}

// NewEmployeeHandler builds a new handler.
func NewEmployeeHandler(employees employeeService, points statementService, escalations escalationLister) *EmployeeHandler {
	return &EmployeeHandler{employees: employees, points: points, escalations: escalations}
}

// List godoc
// @Summary List employees
// @Tags Employees
// @Produce json
// @Param department query string false "Department"
// @Param search query string false "Name or number search"
// @Param active query bool false "Only active employees"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /employees [get]
func (h *EmployeeHandler) List(c *gin.Context) {
	filter := models.EmployeeFilter{
		Department: c.Query("department"),
		Search:     c.Query("search"),
		Page:       parseQueryInt(c, "page", 1),
		PageSize:   parseQueryInt(c, "pageSize", 20),
	}
	if c.Query("active") != "" {
		active, err := parseQueryBool(c, "active")
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Active = &active
	}
	items, pagination, err := h.employees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, pagination)
}

// Create godoc
// @Summary Register an employee
// @Tags Employees
// @Accept json
// @Produce json
// @Param payload body dto.CreateEmployeeRequest true "Employee payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /employees [post]
func (h *EmployeeHandler) Create(c *gin.Context) {
	var req dto.CreateEmployeeRequest
	if err := bindJSON(c, &req, "invalid employee payload"); err != nil {
		response.Error(c, err)
		return
	}
	employee, err := h.employees.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, employee)
}

// Points godoc
// @Summary Points statement of an employee
// @Description Current total and tier with the full ledger history.
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/{id}/points [get]
func (h *EmployeeHandler) Points(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.employees.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	statement, err := h.points.Statement(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, statement)
}

// Escalations godoc
// @Summary Escalation records of an employee
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Param open query bool false "Only records with outstanding actions"
// @Param archived query bool false "Include superseded records"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/escalations [get]
func (h *EmployeeHandler) Escalations(c *gin.Context) {
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
	items, pagination, err := h.escalations.List(c.Request.Context(), models.EscalationFilter{
		EmployeeID:      c.Param("id"),
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
