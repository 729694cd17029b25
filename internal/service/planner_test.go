package service

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlannerService_PlanDay(t *testing.T) {
	ctx := context.Background()

	t.Run("creates available slots in provider zone", func(t *testing.T) {
		env := newTestEnv(t)

		created := env.planDay(t, "2024-06-10", "09:00", "11:00", 60, "S1", "S2")

		require.Len(t, created, 2)
		for i, slot := range created {
			assert.Equal(t, model.SlotStatusAvailable, slot.Status)
			assert.Equal(t, testProviderID, slot.ProviderID)
			assert.Equal(t, 60, slot.DurationMinutes)
			assert.Equal(t, []string{"S1", "S2"}, slot.AllowedStudyIDs)
			assert.Equal(t, 9+i, slot.StartTime.In(env.loc).Hour())
			assert.Equal(t, mustDate(t, "2024-06-10"), slot.LocalDate)
			assert.EqualValues(t, 1, slot.Version)
		}

		events := env.audit.byAction(model.AuditActionAvailabilityCreated)
		require.Len(t, events, 1)
		assert.Len(t, events[0].SlotIDs, 2)
		assert.Equal(t, model.SystemActor, events[0].Actor)
		assert.Equal(t, 1, env.cache.invalidated)
	})

	t.Run("second call with same arguments creates nothing", func(t *testing.T) {
		env := newTestEnv(t)

		first := env.planDay(t, "2024-06-10", "09:00", "12:00", 30)
		second := env.planDay(t, "2024-06-10", "09:00", "12:00", 30)

		assert.Len(t, first, 6)
		assert.Empty(t, second)
		assert.Equal(t, 6, env.store.Len())
		// Пустой повторный вызов не пишет аудит и не трогает кэш
		assert.Len(t, env.audit.byAction(model.AuditActionAvailabilityCreated), 1)
		assert.Equal(t, 1, env.cache.invalidated)
	})

	t.Run("overlapping window only fills the gaps", func(t *testing.T) {
		env := newTestEnv(t)

		env.planDay(t, "2024-06-10", "09:00", "10:00", 30)
		created := env.planDay(t, "2024-06-10", "09:30", "11:00", 30)

		require.Len(t, created, 2)
		assert.Equal(t, 10, created[0].StartTime.In(env.loc).Hour())
		assert.Equal(t, 4, env.store.Len())
	})

	t.Run("different interval never overlaps existing slots", func(t *testing.T) {
		env := newTestEnv(t)

		env.planDay(t, "2024-06-10", "09:00", "10:00", 30)
		again := env.planDay(t, "2024-06-10", "09:00", "10:00", 20)
		assert.Empty(t, again)

		wider := env.planDay(t, "2024-06-10", "09:00", "11:00", 20)
		require.Len(t, wider, 3)
		assert.Equal(t, 10, wider[0].StartTime.In(env.loc).Hour())
		assert.Zero(t, wider[0].StartTime.In(env.loc).Minute())

		assertNoOverlaps(t, env)
	})

	t.Run("cancelled slot is reused, not duplicated", func(t *testing.T) {
		env := newTestEnv(t)

		slots := env.planDay(t, "2024-06-10", "09:00", "10:00", 60)
		env.reserve(t, slots[0].ID)
		_, err := env.booking.Cancel(ctx, slots[0].ID, "patient request")
		require.NoError(t, err)

		again := env.planDay(t, "2024-06-10", "09:00", "10:00", 60)
		assert.Empty(t, again)
		assert.Equal(t, 1, env.store.Len())
	})

	t.Run("late evening slot keeps provider local date", func(t *testing.T) {
		env := newTestEnv(t)

		created := env.planDay(t, "2024-03-01", "23:30", "23:59", 15)
		require.Len(t, created, 1)

		assert.Equal(t, 2, created[0].StartTime.UTC().Day())
		assert.Equal(t, mustDate(t, "2024-03-01"), created[0].LocalDate)
	})

	t.Run("invalid provider", func(t *testing.T) {
		env := newTestEnv(t)

		for _, id := range []string{"", "dr-unknown", "dr-retired"} {
			_, err := env.planner.PlanDay(ctx, AvailabilityRequest{
				ProviderID:      id,
				Date:            mustDate(t, "2024-06-10"),
				StartClock:      mustClock(t, "09:00"),
				EndClock:        mustClock(t, "10:00"),
				IntervalMinutes: 30,
			})
			assert.ErrorIs(t, err, model.ErrInvalidProvider, id)
		}
		assert.Zero(t, env.store.Len())
	})

	t.Run("invalid window", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.planner.PlanDay(ctx, AvailabilityRequest{
			ProviderID:      testProviderID,
			Date:            mustDate(t, "2024-06-10"),
			StartClock:      mustClock(t, "12:00"),
			EndClock:        mustClock(t, "09:00"),
			IntervalMinutes: 30,
		})
		assert.ErrorIs(t, err, model.ErrInvalidWindow)
	})
}

func TestPlannerService_CreateAvailability(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit start times", func(t *testing.T) {
		env := newTestEnv(t)

		base := time.Date(2024, 6, 10, 14, 0, 0, 0, env.loc)
		starts := []time.Time{base, base.Add(20 * time.Minute), base}

		created, err := env.planner.CreateAvailability(ctx, testProviderID, slices.Values(starts), 20, []string{"S1", "", "S1"})
		require.NoError(t, err)

		require.Len(t, created, 2)
		assert.Equal(t, []string{"S1"}, created[0].AllowedStudyIDs)
		assert.Equal(t, 2, env.store.Len())
	})

	t.Run("non-positive duration", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.planner.CreateAvailability(ctx, testProviderID, slices.Values([]time.Time{time.Now()}), 0, nil)
		assert.ErrorIs(t, err, model.ErrInvalidInterval)
	})
}

func assertNoOverlaps(t *testing.T, env *testEnv) {
	t.Helper()

	items, _, err := env.store.Search(context.Background(), model.SlotFilter{ProviderID: testProviderID})
	require.NoError(t, err)

	for i, a := range items {
		for _, b := range items[i+1:] {
			if !a.IsActive() || !b.IsActive() {
				continue
			}
			overlap := a.StartTime.Before(b.EndTime()) && b.StartTime.Before(a.EndTime())
			assert.False(t, overlap, "%s overlaps %s", a.StartTime.Format(time.Kitchen), b.StartTime.Format(time.Kitchen))
		}
	}
}
