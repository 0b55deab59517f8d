package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contravention-api/internal/dto"
	"github.com/noah-isme/contravention-api/internal/models"
	"github.com/noah-isme/contravention-api/pkg/response"
)

type trainingService interface {
	ListCourses(ctx context.Context) ([]models.TrainingCourse, error)
	CreateCourse(ctx context.Context, req dto.CreateCourseRequest) (*models.TrainingCourse, error)
	ListAssignments(ctx context.Context, employeeID string) ([]models.TrainingAssignment, error)
	Assign(ctx context.Context, req dto.AssignTrainingRequest, actorID string) (*models.TrainingAssignment, error)
	CompleteAssignment(ctx context.Context, assignmentID, actorID string) (*models.TrainingCompletion, error)
	OnTrainingCompleted(ctx context.Context, req dto.TrainingCompletedRequest) (*models.TrainingCompletion, error)
}

// TrainingHandler exposes courses, assignments and the completion callback.
type TrainingHandler struct {
	service trainingService
}

// NewTrainingHandler builds a new handler.
func NewTrainingHandler(service trainingService) *TrainingHandler {
	return &TrainingHandler{service: service}
}

// ListCourses godoc
// @Summary List training courses
// @Tags Training
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /training/courses [get]
func (h *TrainingHandler) ListCourses(c *gin.Context) {
	items, err := h.service.ListCourses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// CreateCourse godoc
// @Summary Register a training course
// @Tags Training
// @Accept json
// @Produce json
// @Param payload body dto.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /training/courses [post]
func (h *TrainingHandler) CreateCourse(c *gin.Context) {
	var req dto.CreateCourseRequest
	if err := bindJSON(c, &req, "invalid course payload"); err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.service.CreateCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// ListAssignments godoc
// @Summary Training assignments of an employee
// @Tags Training
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/training [get]
func (h *TrainingHandler) ListAssignments(c *gin.Context) {
	items, err := h.service.ListAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Assign godoc
// @Summary Assign a course to an employee
// @Tags Training
// @Accept json
// @Produce json
// @Param payload body dto.AssignTrainingRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /training/assign [post]
func (h *TrainingHandler) Assign(c *gin.Context) {
	var req dto.AssignTrainingRequest
	if err := bindJSON(c, &req, "invalid assignment payload"); err != nil {
		response.Error(c, err)
		return
	}
	assignment, err := h.service.Assign(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// CompleteAssignment godoc
// @Summary Record completion of a training assignment
// @Description Credits the course's points once; repeated calls report credited=false.
// @Tags Training
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /training/assignments/{id}/complete [post]
func (h *TrainingHandler) CompleteAssignment(c *gin.Context) {
	result, err := h.service.CompleteAssignment(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Completed godoc
// @Summary Training provider completion callback
// @Description Authenticated with the X-Service-Token header. Idempotent per assignment.
// @Tags Training
// @Accept json
// @Produce json
// @Param payload body dto.TrainingCompletedRequest true "Completion"
// @Success 200 {object} response.Envelope
// @Router /training/completions [post]
func (h *TrainingHandler) Completed(c *gin.Context) {
	var req dto.TrainingCompletedRequest
	if err := bindJSON(c, &req, "invalid completion payload"); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.OnTrainingCompleted(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
