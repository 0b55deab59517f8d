package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contravention-api/internal/escalation"
	"github.com/noah-isme/contravention-api/internal/models"
	"github.com/noah-isme/contravention-api/internal/repository"
	"github.com/noah-isme/contravention-api/pkg/config"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
)

// memStore is an in-memory ledger whose transactions commit only when fn succeeds.
type memStore struct {
	mu             sync.Mutex
	points         map[string]models.EmployeePoints
	events         map[string][]models.PointEvent
	escalations    map[string][]models.Escalation
	contraventions map[string]models.Contravention
	assignments    map[string]models.TrainingAssignment
	sequences      map[int]int
	nextID         int

	lockErr    map[string]error
	historyErr map[string]error
	runs       int
}

func newMemStore() *memStore {
	return &memStore{
		points:         map[string]models.EmployeePoints{},
		events:         map[string][]models.PointEvent{},
		escalations:    map[string][]models.Escalation{},
		contraventions: map[string]models.Contravention{},
		assignments:    map[string]models.TrainingAssignment{},
		sequences:      map[int]int{},
		lockErr:        map[string]error{},
		historyErr:     map[string]error{},
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) WithEmployeeLock(ctx context.Context, employeeID string, fn func(tx repository.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	if err := m.lockErr[employeeID]; err != nil {
		return err
	}

	points, ok := m.points[employeeID]
	if !ok {
		points = models.EmployeePoints{EmployeeID: employeeID, CreatedAt: time.Now().UTC()}
	}
	tx := &memTx{
		store:          m,
		points:         points,
		events:         append([]models.PointEvent(nil), m.events[employeeID]...),
		escalations:    cloneEscalations(m.escalations[employeeID]),
		contraventions: map[string]models.Contravention{},
		assignments:    map[string]models.TrainingAssignment{},
	}
	for k, v := range m.contraventions {
		tx.contraventions[k] = v
	}
	for k, v := range m.assignments {
		tx.assignments[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}

	m.points[employeeID] = tx.points
	m.events[employeeID] = tx.events
	m.escalations[employeeID] = tx.escalations
	m.contraventions = tx.contraventions
	m.assignments = tx.assignments
	return nil
}

func (m *memStore) Get(ctx context.Context, employeeID string) (*models.EmployeePoints, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	points, ok := m.points[employeeID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &points, nil
}

func (m *memStore) History(ctx context.Context, employeeID string) ([]models.PointEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PointEvent(nil), m.events[employeeID]...), nil
}

func (m *memStore) ListEmployeeIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.points))
	for id := range m.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) total(employeeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.points[employeeID].Total
}

func (m *memStore) history(employeeID string) []models.PointEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PointEvent(nil), m.events[employeeID]...)
}

func (m *memStore) records(employeeID string) []models.Escalation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneEscalations(m.escalations[employeeID])
}

func (m *memStore) active(employeeID string) []models.Escalation {
	var out []models.Escalation
	for _, record := range m.records(employeeID) {
		if !record.Archived() {
			out = append(out, record)
		}
	}
	return out
}

// seed stores a ledger directly, bypassing history, to simulate drift or stale records.
func (m *memStore) seed(points models.EmployeePoints, events []models.PointEvent, records ...models.Escalation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[points.EmployeeID] = points
	m.events[points.EmployeeID] = events
	m.escalations[points.EmployeeID] = records
}

func cloneEscalations(in []models.Escalation) []models.Escalation {
	out := make([]models.Escalation, len(in))
	for i, record := range in {
		record.ActionsRequired = append(pq.StringArray(nil), record.ActionsRequired...)
		record.ActionsCompleted = append(pq.StringArray{}, record.ActionsCompleted...)
		out[i] = record
	}
	return out
}

type memTx struct {
	store          *memStore
	points         models.EmployeePoints
	events         []models.PointEvent
	escalations    []models.Escalation
	contraventions map[string]models.Contravention
	assignments    map[string]models.TrainingAssignment
}

func (t *memTx) Points() models.EmployeePoints { return t.points }

func (t *memTx) SavePoints(ctx context.Context, points models.EmployeePoints) error {
	points.EmployeeID = t.points.EmployeeID
	points.CreatedAt = t.points.CreatedAt
	t.points = points
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, event *models.PointEvent) error {
	event.ID = t.store.id("evt")
	event.EmployeeID = t.points.EmployeeID
	t.events = append(t.events, *event)
	return nil
}

func (t *memTx) History(ctx context.Context) ([]models.PointEvent, error) {
	if err := t.store.historyErr[t.points.EmployeeID]; err != nil {
		return nil, err
	}
	return append([]models.PointEvent(nil), t.events...), nil
}

func (t *memTx) ActiveEscalations(ctx context.Context) ([]models.Escalation, error) {
	var out []models.Escalation
	for _, record := range cloneEscalations(t.escalations) {
		if !record.Archived() {
			out = append(out, record)
		}
	}
	return out, nil
}

func (t *memTx) Escalation(ctx context.Context, id string) (*models.Escalation, error) {
	for _, record := range cloneEscalations(t.escalations) {
		if record.ID == id {
			return &record, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *memTx) CreateEscalation(ctx context.Context, record *models.Escalation) error {
	record.ID = t.store.id("esc")
	record.EmployeeID = t.points.EmployeeID
	if record.ActionsCompleted == nil {
		record.ActionsCompleted = pq.StringArray{}
	}
	t.escalations = append(t.escalations, cloneEscalations([]models.Escalation{*record})...)
	return nil
}

func (t *memTx) ArchiveEscalation(ctx context.Context, id string, supersededBy *string, at time.Time) error {
	for i := range t.escalations {
		if t.escalations[i].ID == id && !t.escalations[i].Archived() {
			t.escalations[i].ArchivedAt = &at
			t.escalations[i].SupersededBy = supersededBy
			return nil
		}
	}
	return sql.ErrNoRows
}

func (t *memTx) UpdateEscalationActions(ctx context.Context, record *models.Escalation) error {
	for i := range t.escalations {
		if t.escalations[i].ID == record.ID && !t.escalations[i].Archived() {
			t.escalations[i].ActionsCompleted = append(pq.StringArray{}, record.ActionsCompleted...)
			t.escalations[i].CompletedAt = record.CompletedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (t *memTx) CreateContravention(ctx context.Context, item *models.Contravention) error {
	item.ID = t.store.id("con")
	item.EmployeeID = t.points.EmployeeID
	year := item.CreatedAt.Year()
	t.store.sequences[year]++
	item.Reference = models.FormatReference(year, t.store.sequences[year])
	t.contraventions[item.ID] = *item
	return nil
}

func (t *memTx) Contravention(ctx context.Context, id string) (*models.Contravention, error) {
	item, ok := t.contraventions[id]
	if !ok || item.EmployeeID != t.points.EmployeeID {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (t *memTx) UpdateContraventionPoints(ctx context.Context, id string, points int, at time.Time) error {
	item, ok := t.contraventions[id]
	if !ok || item.Withdrawn() {
		return sql.ErrNoRows
	}
	item.Points = points
	item.UpdatedAt = at
	t.contraventions[id] = item
	return nil
}

func (t *memTx) WithdrawContravention(ctx context.Context, id string, at time.Time) error {
	item, ok := t.contraventions[id]
	if !ok || item.Withdrawn() {
		return sql.ErrNoRows
	}
	item.WithdrawnAt = &at
	t.contraventions[id] = item
	return nil
}

func (t *memTx) ClaimTrainingCredit(ctx context.Context, assignmentID string, at time.Time) (bool, error) {
	item, ok := t.assignments[assignmentID]
	if !ok || item.EmployeeID != t.points.EmployeeID || item.PointsCredited {
		return false, nil
	}
	item.PointsCredited = true
	item.CompletedAt = &at
	t.assignments[assignmentID] = item
	return true, nil
}

// memEscalations reads escalation records out of a memStore.
type memEscalations struct{ store *memStore }

func (r memEscalations) GetByID(ctx context.Context, id string) (*models.Escalation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, records := range r.store.escalations {
		for _, record := range cloneEscalations(records) {
			if record.ID == id {
				return &record, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (r memEscalations) List(ctx context.Context, filter models.EscalationFilter) ([]models.Escalation, int, error) {
	var out []models.Escalation
	for _, record := range r.store.records(filter.EmployeeID) {
		if record.Archived() && !filter.IncludeArchived {
			continue
		}
		if filter.OpenOnly && record.CompletedAt != nil {
			continue
		}
		out = append(out, record)
	}
	return out, len(out), nil
}

// memContraventions exposes the workflow view of contraventions in a memStore.
type memContraventions struct {
	store         *memStore
	transitionErr error
}

func (r *memContraventions) GetByID(ctx context.Context, id string) (*models.Contravention, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	item, ok := r.store.contraventions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (r *memContraventions) List(ctx context.Context, filter models.ContraventionFilter) ([]models.Contravention, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Contravention
	for _, item := range r.store.contraventions {
		if filter.EmployeeID != "" && item.EmployeeID != filter.EmployeeID {
			continue
		}
		out = append(out, item)
	}
	return out, len(out), nil
}

func (r *memContraventions) Transition(ctx context.Context, item *models.Contravention, expected models.ContraventionStatus) error {
	if r.transitionErr != nil {
		return r.transitionErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.contraventions[item.ID]
	if !ok || current.Status != expected || current.Withdrawn() {
		return sql.ErrNoRows
	}
	next := *item
	next.Points = current.Points
	r.store.contraventions[item.ID] = next
	return nil
}

type stubEmployees struct {
	items map[string]models.Employee
}

func newStubEmployees(ids ...string) *stubEmployees {
	s := &stubEmployees{items: map[string]models.Employee{}}
	for _, id := range ids {
		s.items[id] = models.Employee{ID: id, EmployeeNumber: "N-" + id, FullName: strings.ToUpper(id), Active: true}
	}
	return s
}

func (s *stubEmployees) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

type stubAudit struct {
	mu   sync.Mutex
	logs []models.AuditLog
	err  error
}

func (s *stubAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *log)
	return s.err
}

func (s *stubAudit) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.logs))
	for i, log := range s.logs {
		out[i] = log.Action
	}
	return out
}

type stubNotifier struct {
	mu     sync.Mutex
	events []models.EscalationEvent
}

func (s *stubNotifier) Notify(ctx context.Context, events []models.EscalationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

func (s *stubNotifier) types() []models.EscalationEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EscalationEventType, len(s.events))
	for i, event := range s.events {
		out[i] = event.Type
	}
	return out
}

// memCache stores JSON payloads like the Redis cache repository.
type memCache struct {
	mu          sync.Mutex
	items       map[string][]byte
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{items: map[string][]byte{}}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
	return nil
}

var testNow = time.Date(2026, time.June, 15, 9, 0, 0, 0, time.UTC)

func stagesMatrix(t *testing.T) *escalation.Matrix {
	t.Helper()
	matrix, err := escalation.Load(config.EscalationConfig{Profile: config.ProfileStages})
	require.NoError(t, err)
	return matrix
}

func levelsMatrix(t *testing.T) *escalation.Matrix {
	t.Helper()
	matrix, err := escalation.Load(config.EscalationConfig{Profile: config.ProfileMatrix})
	require.NoError(t, err)
	return matrix
}

func floorConfig() config.PointsConfig {
	return config.PointsConfig{FloorEnabled: true, Floor: 0, RecalcConcurrency: 2}
}

func newTestPoints(t *testing.T, store *memStore, opts ...PointsServiceOption) *PointsService {
	t.Helper()
	opts = append([]PointsServiceOption{WithPointsClock(func() time.Time { return testNow })}, opts...)
	return NewPointsService(store, stagesMatrix(t), floorConfig(), 14, nil, opts...)
}

func addEntry(points int, contraventionID string) Entry {
	return Entry{Kind: models.PointEventAdd, Delta: points, Reason: "logged " + contraventionID, ContraventionID: &contraventionID}
}

func appCode(err error) string {
	if appErr := appErrors.FromError(err); appErr != nil {
		return appErr.Code
	}
	return ""
}
