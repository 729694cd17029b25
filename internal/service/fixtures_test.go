package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/Freeeeeet/turnos/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testProviderID = "dr-perez"
	testZone       = "America/Argentina/Buenos_Aires"
)

// -- Fakes --

type recordingAudit struct {
	mu     sync.Mutex
	events []model.AuditEvent
	err    error
}

func (a *recordingAudit) Record(_ context.Context, event model.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return a.err
}

func (a *recordingAudit) byAction(action model.AuditAction) []model.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.AuditEvent
	for _, e := range a.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, notification model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func (n *recordingNotifier) all() []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.Notification(nil), n.sent...)
}

// mapCache кэш поиска в памяти с поколениями
type mapCache struct {
	mu          sync.Mutex
	pages       map[string]model.Page[*model.Slot]
	gen         int64
	hits        int
	invalidated int
	failGet     bool
}

func newMapCache() *mapCache {
	return &mapCache{pages: make(map[string]model.Page[*model.Slot])}
}

func (c *mapCache) Get(_ context.Context, key string) (*model.Page[*model.Slot], bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, false, errors.New("cache down")
	}
	page, ok := c.pages[key]
	if ok {
		c.hits++
	}
	return &page, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, page *model.Page[*model.Slot]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[key] = *page
	return nil
}

func (c *mapCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *mapCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.invalidated++
	return nil
}

// conflictingStore отвечает конфликтом версии на первые conflicts вызовов Update
type conflictingStore struct {
	*memory.SlotStore
	mu        sync.Mutex
	conflicts int
	updates   int
}

func (s *conflictingStore) Update(ctx context.Context, slot *model.Slot, expectedVersion int64) error {
	s.mu.Lock()
	s.updates++
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return model.ErrStorageConflict
	}
	s.mu.Unlock()
	return s.SlotStore.Update(ctx, slot, expectedVersion)
}

// -- Environment --

type testEnv struct {
	store     *memory.SlotStore
	dir       *memory.Directory
	audit     *recordingAudit
	notifier  *recordingNotifier
	cache     *mapCache
	planner   *PlannerService
	booking   *BookingService
	query     *QueryService
	ledger    *AttachmentService
	files     *memFiles
	loc       *time.Location
	providers ProviderDirectory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	loc, err := time.LoadLocation(testZone)
	require.NoError(t, err)

	dir := memory.NewDirectory()
	dir.PutProvider(model.Provider{ID: testProviderID, Name: "Dr. Pérez", Specialty: "cardiology", TimeZone: testZone, Active: true})
	dir.PutProvider(model.Provider{ID: "dr-gomez", Name: "Dra. Gómez", Specialty: "dermatology", TimeZone: testZone, Active: true})
	dir.PutProvider(model.Provider{ID: "dr-retired", Name: "Dr. Ruiz", Specialty: "cardiology", TimeZone: testZone, Active: false})
	dir.PutStudy(model.Study{ID: "S1", Label: "Electrocardiograma", Active: true})
	dir.PutStudy(model.Study{ID: "S2", Label: "Ecocardiograma", Active: true})
	dir.PutStudy(model.Study{ID: "S-old", Label: "Fonocardiograma", Active: false})

	env := &testEnv{
		store:     memory.NewSlotStore(),
		dir:       dir,
		audit:     &recordingAudit{},
		notifier:  &recordingNotifier{},
		cache:     newMapCache(),
		files:     newMemFiles(),
		loc:       loc,
		providers: dir.Providers(),
	}

	logger := zap.NewNop()
	env.planner = NewPlannerService(env.store, env.providers, env.audit, env.cache, logger)
	env.booking = NewBookingService(env.store, dir.Studies(), env.audit, env.notifier, env.cache, logger)
	env.query = NewQueryService(env.store, env.providers, env.cache, logger)
	env.ledger = NewAttachmentService(env.store, env.files, env.audit, env.cache, logger)

	return env
}

// planDay создаёт слоты врача на день и возвращает их по порядку
func (e *testEnv) planDay(t *testing.T, date, start, end string, interval int, studies ...string) []*model.Slot {
	t.Helper()

	created, err := e.planner.PlanDay(context.Background(), AvailabilityRequest{
		ProviderID:      testProviderID,
		Date:            mustDate(t, date),
		StartClock:      mustClock(t, start),
		EndClock:        mustClock(t, end),
		IntervalMinutes: interval,
		AllowedStudyIDs: studies,
	})
	require.NoError(t, err)
	return created
}

func (e *testEnv) reserve(t *testing.T, id uuid.UUID) *model.Slot {
	t.Helper()

	slot, err := e.booking.Reserve(context.Background(), id, model.PatientSubject("patient-1"), "S1", "control anual")
	require.NoError(t, err)
	return slot
}

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

func mustClock(t *testing.T, s string) model.Clock {
	t.Helper()
	c, err := model.ParseClock(s)
	require.NoError(t, err)
	return c
}
