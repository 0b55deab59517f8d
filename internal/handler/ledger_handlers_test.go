package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contravention-api/internal/dto"
	"github.com/noah-isme/contravention-api/internal/models"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
)

type employeeServiceMock struct {
	getErr     error
	lastFilter models.EmployeeFilter
}

func (m *employeeServiceMock) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Employee{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *employeeServiceMock) Get(ctx context.Context, id string) (*models.Employee, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.Employee{ID: id}, nil
}

func (m *employeeServiceMock) Create(ctx context.Context, req dto.CreateEmployeeRequest) (*models.Employee, error) {
	return &models.Employee{ID: "emp-1", EmployeeNumber: req.EmployeeNumber}, nil
}

type statementMock struct{ called bool }

func (m *statementMock) Statement(ctx context.Context, employeeID string) (*models.PointsStatement, error) {
	m.called = true
	return &models.PointsStatement{Points: models.EmployeePoints{EmployeeID: employeeID, Total: 6}, History: []models.PointEvent{}}, nil
}

type escalationServiceMock struct {
	lastFilter models.EscalationFilter
	lastAction string
	err        error
}

func (m *escalationServiceMock) List(ctx context.Context, filter models.EscalationFilter) ([]models.Escalation, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Escalation{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *escalationServiceMock) CompleteAction(ctx context.Context, escalationID, action, actorID string) (*models.Escalation, error) {
	m.lastAction = action
	if m.err != nil {
		return nil, m.err
	}
	return &models.Escalation{ID: escalationID}, nil
}

func (m *escalationServiceMock) RecalculateAll(ctx context.Context, actorID string) (*models.RecalculationResult, error) {
	return &models.RecalculationResult{Employees: 3}, nil
}

func TestEmployeeHandlerPointsChecksEmployee(t *testing.T) {
	statements := &statementMock{}
	handler := NewEmployeeHandler(&employeeServiceMock{getErr: appErrors.Clone(appErrors.ErrNotFound, "employee not found")}, statements, &escalationServiceMock{})

	c, w := newTestContext(http.MethodGet, "/employees/emp-x/points", "")
	c.Params = gin.Params{{Key: "id", Value: "emp-x"}}
	handler.Points(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, statements.called)

	handler = NewEmployeeHandler(&employeeServiceMock{}, statements, &escalationServiceMock{})
	c, w = newTestContext(http.MethodGet, "/employees/emp-1/points", "")
	c.Params = gin.Params{{Key: "id", Value: "emp-1"}}
	handler.Points(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(6), data["points"].(map[string]interface{})["total"])
}

func TestEmployeeHandlerListAndEscalations(t *testing.T) {
	employees := &employeeServiceMock{}
	escalations := &escalationServiceMock{}
	handler := NewEmployeeHandler(employees, &statementMock{}, escalations)

	c, w := newTestContext(http.MethodGet, "/employees?department=Finance&active=false", "")
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Finance", employees.lastFilter.Department)
	require.NotNil(t, employees.lastFilter.Active)
	assert.False(t, *employees.lastFilter.Active)

	c, w = newTestContext(http.MethodGet, "/employees/emp-1/escalations?open=true", "")
	c.Params = gin.Params{{Key: "id", Value: "emp-1"}}
	handler.Escalations(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "emp-1", escalations.lastFilter.EmployeeID)
	assert.True(t, escalations.lastFilter.OpenOnly)

	c, w = newTestContext(http.MethodGet, "/employees/emp-1/escalations?open=maybe", "")
	handler.Escalations(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEscalationHandlerCompleteAction(t *testing.T) {
	svc := &escalationServiceMock{}
	handler := NewEscalationHandler(svc)

	c, w := newTestContext(http.MethodPatch, "/escalations/esc-1/complete-action", `{"action":"Verbal warning"}`)
	c.Params = gin.Params{{Key: "id", Value: "esc-1"}}
	handler.CompleteAction(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Verbal warning", svc.lastAction)

	svc.err = appErrors.Clone(appErrors.ErrArchived, "escalation was superseded")
	c, w = newTestContext(http.MethodPatch, "/escalations/esc-1/complete-action", `{"action":"Verbal warning"}`)
	handler.CompleteAction(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	c, w = newTestContext(http.MethodPost, "/escalations/recalculate", "")
	handler.Recalculate(c)
	require.Equal(t, http.StatusOK, w.Code)
}

type trainingServiceMock struct {
	completedReq dto.TrainingCompletedRequest
}

func (m *trainingServiceMock) ListCourses(ctx context.Context) ([]models.TrainingCourse, error) {
	return []models.TrainingCourse{}, nil
}

func (m *trainingServiceMock) CreateCourse(ctx context.Context, req dto.CreateCourseRequest) (*models.TrainingCourse, error) {
	return &models.TrainingCourse{ID: "course-1", Name: req.Name}, nil
}

func (m *trainingServiceMock) ListAssignments(ctx context.Context, employeeID string) ([]models.TrainingAssignment, error) {
	return []models.TrainingAssignment{}, nil
}

func (m *trainingServiceMock) Assign(ctx context.Context, req dto.AssignTrainingRequest, actorID string) (*models.TrainingAssignment, error) {
	return &models.TrainingAssignment{ID: "asg-1", EmployeeID: req.EmployeeID, CourseID: req.CourseID}, nil
}

func (m *trainingServiceMock) CompleteAssignment(ctx context.Context, assignmentID, actorID string) (*models.TrainingCompletion, error) {
	return &models.TrainingCompletion{Assignment: &models.TrainingAssignment{ID: assignmentID}, Credited: true}, nil
}

func (m *trainingServiceMock) OnTrainingCompleted(ctx context.Context, req dto.TrainingCompletedRequest) (*models.TrainingCompletion, error) {
	m.completedReq = req
	return &models.TrainingCompletion{Credited: false}, nil
}

func TestTrainingHandler(t *testing.T) {
	svc := &trainingServiceMock{}
	handler := NewTrainingHandler(svc)

	c, w := newTestContext(http.MethodPost, "/training/assign", `{"employeeId":"emp-1","courseId":"course-1"}`)
	handler.Assign(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newTestContext(http.MethodPost, "/training/assignments/asg-1/complete", "")
	c.Params = gin.Params{{Key: "id", Value: "asg-1"}}
	handler.CompleteAssignment(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeEnvelope(t, w)["data"].(map[string]interface{})["credited"])

	c, w = newTestContext(http.MethodPost, "/training/completions", `{"employeeId":"emp-1","courseId":"course-1"}`)
	handler.Completed(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "course-1", svc.completedReq.CourseID)
}

type fiscalServiceMock struct {
	at    time.Time
	actor string
}

func (m *fiscalServiceMock) ResetAtFiscalBoundary(ctx context.Context, now time.Time, actorID string) (*models.FiscalResetResult, error) {
	m.at = now
	m.actor = actorID
	return &models.FiscalResetResult{FiscalYear: 2026}, nil
}

func TestFiscalHandlerReset(t *testing.T) {
	svc := &fiscalServiceMock{}
	handler := NewFiscalHandler(svc)
	fixed := time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return fixed }

	c, w := newTestContext(http.MethodPost, "/points/fiscal-reset", "")
	handler.Reset(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fixed, svc.at)
	assert.Equal(t, "user-1", svc.actor)

	c, w = newTestContext(http.MethodPost, "/points/fiscal-reset", `{"at":"2027-04-01T00:00:00Z"}`)
	handler.Reset(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2027, svc.at.Year())
}

type standingsMock struct {
	filter models.StandingsFilter
	hit    bool
	err    error
}

func (m *standingsMock) Standings(ctx context.Context, filter models.StandingsFilter) ([]models.Standing, bool, error) {
	m.filter = filter
	return []models.Standing{{EmployeeID: "emp-1", Total: 9}}, m.hit, m.err
}

func TestReportHandlerStandings(t *testing.T) {
	svc := &standingsMock{hit: true}
	handler := NewReportHandler(svc)

	c, w := newTestContext(http.MethodGet, "/reports/standings?minPoints=5&tiered=true", "")
	handler.Standings(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.filter.MinPoints)
	assert.Equal(t, 5, *svc.filter.MinPoints)
	assert.True(t, svc.filter.TierOnly)
	assert.Equal(t, true, decodeEnvelope(t, w)["meta"].(map[string]interface{})["cache_hit"])

	c, w = newTestContext(http.MethodGet, "/reports/standings?minPoints=lots", "")
	handler.Standings(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.err = errors.New("boom")
	c, w = newTestContext(http.MethodGet, "/reports/standings", "")
	handler.Standings(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReadyReportsFailingDependency(t *testing.T) {
	handler := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(ctx context.Context) error { return nil }),
		"redis":    PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})
	c, w := newTestContext(http.MethodGet, "/ready", "")
	handler.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	handler = NewMetricsHandler(nil, nil)
	c, w = newTestContext(http.MethodGet, "/ready", "")
	handler.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newTestContext(http.MethodGet, "/metrics", "")
	handler.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
