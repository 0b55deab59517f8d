package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contravention-api/internal/dto"
	"github.com/noah-isme/contravention-api/internal/models"
)

type stubTypes struct {
	items map[string]models.ContraventionType
}

func (s *stubTypes) FindByName(ctx context.Context, name string) (*models.ContraventionType, error) {
	item, ok := s.items[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

type contraventionFixture struct {
	store  *memStore
	repo   *memContraventions
	audit  *stubAudit
	points *PointsService
	svc    *ContraventionService
}

func newContraventionFixture(t *testing.T) *contraventionFixture {
	t.Helper()
	store := newMemStore()
	repo := &memContraventions{store: store}
	audit := &stubAudit{}
	points := newTestPoints(t, store)
	types := &stubTypes{items: map[string]models.ContraventionType{
		"Split purchase order":  {Name: "Split purchase order", Category: models.CategoryPurchasing, DefaultPoints: 3, Active: true},
		"Missing quotes":        {Name: "Missing quotes", Category: models.CategoryDocumentation, DefaultPoints: 2, Active: true},
		"Retired contravention": {Name: "Retired contravention", Category: models.CategoryOther, DefaultPoints: 1, Active: false},
	}}
	employees := newStubEmployees("emp-1", "emp-2")
	employees.items["emp-gone"] = models.Employee{ID: "emp-gone", Active: false}

	svc := NewContraventionService(points, repo, employees, types, audit, nil, nil)
	svc.now = func() time.Time { return testNow }
	return &contraventionFixture{store: store, repo: repo, audit: audit, points: points, svc: svc}
}

func (f *contraventionFixture) create(t *testing.T, typeName string) *models.Contravention {
	t.Helper()
	result, err := f.svc.Create(context.Background(), dto.CreateContraventionRequest{
		EmployeeID:   "emp-1",
		TypeName:     typeName,
		IncidentDate: testNow.AddDate(0, 0, -2),
		Description:  "three invoices under the approval limit",
	}, "submitter-1")
	require.NoError(t, err)
	return result.Contravention
}

func TestCreateContraventionAddsPoints(t *testing.T) {
	f := newContraventionFixture(t)

	result, err := f.svc.Create(context.Background(), dto.CreateContraventionRequest{
		EmployeeID:   "emp-1",
		TypeName:     "Split purchase order",
		IncidentDate: testNow.AddDate(0, 0, -1),
		Description:  "  split PO  ",
	}, "submitter-1")
	require.NoError(t, err)

	item := result.Contravention
	assert.Equal(t, "CONTRA-2026-0001", item.Reference)
	assert.Equal(t, 3, item.Points)
	assert.Equal(t, models.ContraventionPendingApproval, item.Status)
	assert.Equal(t, "split PO", item.Description)
	assert.Equal(t, 3, result.Points.Total)

	history := f.store.history("emp-1")
	require.Len(t, history, 1)
	assert.Equal(t, models.PointEventAdd, history[0].Kind)
	require.NotNil(t, history[0].ContraventionID)
	assert.Equal(t, item.ID, *history[0].ContraventionID)
	assert.Equal(t, "CONTRA-2026-0001 Split purchase order", history[0].Reason)
	assert.Equal(t, []string{models.AuditActionContraventionCreate}, f.audit.actions())

	second := f.create(t, "Missing quotes")
	assert.Equal(t, "CONTRA-2026-0002", second.Reference)
}

func TestCreateContraventionValidation(t *testing.T) {
	f := newContraventionFixture(t)
	ctx := context.Background()
	base := dto.CreateContraventionRequest{
		EmployeeID:   "emp-1",
		TypeName:     "Split purchase order",
		IncidentDate: testNow.AddDate(0, 0, -1),
		Description:  "split",
	}

	cases := []struct {
		name string
		edit func(req *dto.CreateContraventionRequest)
		code string
	}{
		{"missing description", func(req *dto.CreateContraventionRequest) { req.Description = "" }, "VALIDATION_ERROR"},
		{"future incident", func(req *dto.CreateContraventionRequest) { req.IncidentDate = testNow.Add(time.Hour) }, "VALIDATION_ERROR"},
		{"unknown employee", func(req *dto.CreateContraventionRequest) { req.EmployeeID = "emp-x" }, "NOT_FOUND"},
		{"inactive employee", func(req *dto.CreateContraventionRequest) { req.EmployeeID = "emp-gone" }, "VALIDATION_ERROR"},
		{"unknown type", func(req *dto.CreateContraventionRequest) { req.TypeName = "Bribery" }, "NOT_FOUND"},
		{"inactive type", func(req *dto.CreateContraventionRequest) { req.TypeName = "Retired contravention" }, "TYPE_INACTIVE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.edit(&req)
			_, err := f.svc.Create(ctx, req, "submitter-1")
			require.Error(t, err)
			assert.Equal(t, tc.code, appCode(err))
		})
	}
	assert.Empty(t, f.store.history("emp-1"))
}

func TestContraventionWorkflowHappyPath(t *testing.T) {
	f := newContraventionFixture(t)
	ctx := context.Background()
	item := f.create(t, "Split purchase order")

	approved, err := f.svc.Approve(ctx, item.ID, "approver-1")
	require.NoError(t, err)
	assert.Equal(t, models.ContraventionPendingUpload, approved.Status)
	require.NotNil(t, approved.ApprovedBy)

	acknowledged, err := f.svc.Acknowledge(ctx, item.ID, dto.AcknowledgeContraventionRequest{AttachmentRef: "s3://ack/1.pdf"}, "user-emp-1", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, models.ContraventionPendingReview, acknowledged.Status)
	assert.Equal(t, "s3://ack/1.pdf", *acknowledged.AttachmentRef)

	completed, err := f.svc.CompleteReview(ctx, item.ID, "approver-1")
	require.NoError(t, err)
	assert.Equal(t, models.ContraventionCompleted, completed.Status)

	_, err = f.svc.Reject(ctx, item.ID, dto.RejectContraventionRequest{Reason: "late"}, "approver-1")
	assert.Equal(t, "INVALID_TRANSITION", appCode(err))

	assert.Equal(t, 3, f.store.total("emp-1"), "workflow steps never change points")
}

func TestContraventionRejectAndReEdit(t *testing.T) {
	f := newContraventionFixture(t)
	ctx := context.Background()
	item := f.create(t, "Split purchase order")

	_, err := f.svc.Reject(ctx, item.ID, dto.RejectContraventionRequest{Reason: ""}, "approver-1")
	assert.Equal(t, "VALIDATION_ERROR", appCode(err))

	rejected, err := f.svc.Reject(ctx, item.ID, dto.RejectContraventionRequest{Reason: "wrong employee"}, "approver-1")
	require.NoError(t, err)
	assert.Equal(t, models.ContraventionRejected, rejected.Status)
	assert.Equal(t, "wrong employee", *rejected.RejectionReason)

	_, err = f.svc.Approve(ctx, item.ID, "approver-1")
	assert.Equal(t, "INVALID_TRANSITION", appCode(err))

	newType := "Missing quotes"
	description := "only one quote attached"
	edited, err := f.svc.ReEdit(ctx, item.ID, dto.ReEditContraventionRequest{TypeName: &newType, Description: &description}, "submitter-1")
	require.NoError(t, err)
	assert.Equal(t, models.ContraventionPendingApproval, edited.Status)
	assert.Equal(t, "Missing quotes", edited.TypeName)
	assert.Equal(t, description, edited.Description)
	assert.Nil(t, edited.RejectionReason)
	assert.Equal(t, 3, edited.Points)
	assert.Equal(t, 3, f.store.total("emp-1"))

	retired := "Retired contravention"
	_, err = f.svc.ReEdit(ctx, item.ID, dto.ReEditContraventionRequest{TypeName: &retired}, "submitter-1")
	assert.Equal(t, "TYPE_INACTIVE", appCode(err))
}

func TestContraventionDisputeGoesToReview(t *testing.T) {
	f := newContraventionFixture(t)
	ctx := context.Background()
	item := f.create(t, "Split purchase order")

	_, err := f.svc.Dispute(ctx, item.ID, dto.DisputeContraventionRequest{Note: "not me"}, "user-emp-1", "")
	assert.Equal(t, "INVALID_TRANSITION", appCode(err))

	_, err = f.svc.Approve(ctx, item.ID, "approver-1")
	require.NoError(t, err)
	disputed, err := f.svc.Dispute(ctx, item.ID, dto.DisputeContraventionRequest{Note: "not me"}, "user-emp-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.ContraventionPendingReview, disputed.Status)
	assert.Equal(t, "not me", *disputed.DisputeNote)
}

func TestContraventionEmployeeActionsRequireOwnership(t *testing.T) {
	f := newContraventionFixture(t)
	ctx := context.Background()
	item := f.create(t, "Split purchase order")
	_, err := f.svc.Approve(ctx, item.ID, "approver-1")
	require.NoError(t, err)

	_, err = f.svc.Dispute(ctx, item.ID, dto.DisputeContraventionRequest{Note: "not me"}, "user-emp-2", "emp-2")
	assert.Equal(t, "FORBIDDEN", appCode(err))
	_, err = f.svc.Acknowledge(ctx, item.ID, dto.AcknowledgeContraventionRequest{AttachmentRef: "s3://ack/2.pdf"}, "user-emp-2", "emp-2")
	assert.Equal(t, "FORBIDDEN", appCode(err))

	current, err := f.svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContraventionPendingUpload, current.Status)
	assert.Nil(t, current.DisputeNote)

	disputed, err := f.svc.Dispute(ctx, item.ID, dto.DisputeContraventionRequest{Note: "not me"}, "user-emp-1", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, models.ContraventionPendingReview, disputed.Status)
}

func TestContraventionTransitionConflict(t *testing.T) {
	f := newContraventionFixture(t)
	item := f.create(t, "Split purchase order")
	f.repo.transitionErr = sql.ErrNoRows

	_, err := f.svc.Approve(context.Background(), item.ID, "approver-1")
	assert.Equal(t, "CONFLICT", appCode(err))

	f.repo.transitionErr = errors.New("connection reset")
	_, err = f.svc.Approve(context.Background(), item.ID, "approver-1")
	assert.Equal(t, "INTERNAL_ERROR", appCode(err))
}

func TestAdjustPointsAppendsCompensatingEvent(t *testing.T) {
	f := newContraventionFixture(t)
	ctx := context.Background()
	item := f.create(t, "Split purchase order")

	raised, err := f.svc.AdjustPoints(ctx, item.ID, dto.AdjustPointsRequest{Points: 7, Reason: "repeat offence"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 7, raised.Contravention.Points)
	assert.Equal(t, 7, raised.Points.Total)

	lowered, err := f.svc.AdjustPoints(ctx, item.ID, dto.AdjustPointsRequest{Points: 1, Reason: "appeal upheld"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, lowered.Points.Total)

	_, err = f.svc.AdjustPoints(ctx, item.ID, dto.AdjustPointsRequest{Points: 1, Reason: "no change"}, "admin-1")
	require.NoError(t, err)

	history := f.store.history("emp-1")
	require.Len(t, history, 3)
	assert.Equal(t, models.PointEventAdd, history[1].Kind)
	assert.Equal(t, 4, history[1].Delta)
	assert.Equal(t, models.PointEventDecay, history[2].Kind)
	assert.Equal(t, -6, history[2].Delta)
	assert.Equal(t, item.ID, *history[2].ContraventionID)
	assert.Equal(t, 1, models.SumDeltas(history))
}

func TestWithdrawContraventionIsIdempotent(t *testing.T) {
	f := newContraventionFixture(t)
	ctx := context.Background()
	item := f.create(t, "Split purchase order")

	result, err := f.svc.Withdraw(ctx, item.ID, "admin-1")
	require.NoError(t, err)
	assert.True(t, result.Contravention.Withdrawn())
	assert.Equal(t, 0, result.Points.Total)

	again, err := f.svc.Withdraw(ctx, item.ID, "admin-1")
	require.NoError(t, err)
	assert.True(t, again.Contravention.Withdrawn())

	history := f.store.history("emp-1")
	require.Len(t, history, 2)
	assert.Equal(t, -3, history[1].Delta)

	_, err = f.svc.Approve(ctx, item.ID, "approver-1")
	assert.Equal(t, "CONFLICT", appCode(err))
	_, err = f.svc.AdjustPoints(ctx, item.ID, dto.AdjustPointsRequest{Points: 4, Reason: "x"}, "admin-1")
	assert.Equal(t, "CONFLICT", appCode(err))
}
