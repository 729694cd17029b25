package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func newSlot(provider string, start time.Time) *model.Slot {
	return &model.Slot{
		ID:              uuid.New(),
		ProviderID:      provider,
		StartTime:       start,
		LocalDate:       model.DateOf(start, time.UTC),
		DurationMinutes: 30,
		Status:          model.SlotStatusAvailable,
	}
}

func TestSlotStore_Create(t *testing.T) {
	ctx := context.Background()
	store := NewSlotStore()

	slot := newSlot("dr-a", base)
	require.NoError(t, store.Create(ctx, slot))
	assert.EqualValues(t, 1, slot.Version)
	assert.False(t, slot.CreatedAt.IsZero())

	t.Run("duplicate id", func(t *testing.T) {
		dup := newSlot("dr-b", base.Add(time.Hour))
		dup.ID = slot.ID
		assert.ErrorIs(t, store.Create(ctx, dup), model.ErrStorageConflict)
	})

	t.Run("active slot at the same time", func(t *testing.T) {
		assert.ErrorIs(t, store.Create(ctx, newSlot("dr-a", base)), model.ErrStorageConflict)
		assert.NoError(t, store.Create(ctx, newSlot("dr-b", base)))
	})

	t.Run("completed slot frees the time", func(t *testing.T) {
		done := newSlot("dr-c", base)
		require.NoError(t, store.Create(ctx, done))
		done.Status = model.SlotStatusCompleted
		require.NoError(t, store.Update(ctx, done, 1))

		overlaps, err := store.OverlapsActive(ctx, "dr-c", base, base.Add(30*time.Minute))
		require.NoError(t, err)
		assert.False(t, overlaps)
		assert.NoError(t, store.Create(ctx, newSlot("dr-c", base)))
	})

	t.Run("stored copy is isolated", func(t *testing.T) {
		slot.AllowedStudyIDs = append(slot.AllowedStudyIDs, "S1")

		got, err := store.GetByID(ctx, slot.ID)
		require.NoError(t, err)
		assert.Empty(t, got.AllowedStudyIDs)
	})
}

func TestSlotStore_OverlapsActive(t *testing.T) {
	ctx := context.Background()
	store := NewSlotStore()

	// [12:00, 12:30)
	require.NoError(t, store.Create(ctx, newSlot("dr-a", base)))

	tests := []struct {
		name     string
		provider string
		from     time.Duration
		to       time.Duration
		want     bool
	}{
		{"same interval", "dr-a", 0, 30 * time.Minute, true},
		{"starts inside", "dr-a", 20 * time.Minute, 40 * time.Minute, true},
		{"ends inside", "dr-a", -10 * time.Minute, 10 * time.Minute, true},
		{"covers it", "dr-a", -time.Hour, time.Hour, true},
		{"touches the end", "dr-a", 30 * time.Minute, time.Hour, false},
		{"touches the start", "dr-a", -30 * time.Minute, 0, false},
		{"other provider", "dr-b", 0, 30 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.OverlapsActive(ctx, tt.provider, base.Add(tt.from), base.Add(tt.to))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlotStore_Update(t *testing.T) {
	ctx := context.Background()
	store := NewSlotStore()

	slot := newSlot("dr-a", base)
	require.NoError(t, store.Create(ctx, slot))

	first, err := store.GetByID(ctx, slot.ID)
	require.NoError(t, err)
	second, err := store.GetByID(ctx, slot.ID)
	require.NoError(t, err)

	first.Status = model.SlotStatusReserved
	first.StartTime = base.Add(time.Hour)
	require.NoError(t, store.Update(ctx, first, 1))
	assert.EqualValues(t, 2, first.Version)
	assert.True(t, first.StartTime.Equal(base))

	second.Status = model.SlotStatusCompleted
	assert.ErrorIs(t, store.Update(ctx, second, 1), model.ErrStorageConflict)

	got, err := store.GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusReserved, got.Status)

	missing := newSlot("dr-a", base)
	assert.ErrorIs(t, store.Update(ctx, missing, 1), model.ErrSlotNotFound)
}

func TestSlotStore_Search(t *testing.T) {
	ctx := context.Background()
	store := NewSlotStore()

	late := newSlot("dr-a", base.Add(time.Hour))
	tieB := newSlot("dr-b", base)
	tieA := newSlot("dr-a", base)
	for _, s := range []*model.Slot{late, tieB, tieA} {
		require.NoError(t, store.Create(ctx, s))
	}

	items, total, err := store.Search(ctx, model.SlotFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 3)
	assert.Equal(t, []uuid.UUID{tieA.ID, tieB.ID, late.ID}, []uuid.UUID{items[0].ID, items[1].ID, items[2].ID})

	items, total, err = store.Search(ctx, model.SlotFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, tieB.ID, items[0].ID)

	items, total, err = store.Search(ctx, model.SlotFilter{ProviderID: "dr-a", Offset: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Empty(t, items)
}

func TestSlotStore_DeleteAndDue(t *testing.T) {
	ctx := context.Background()
	store := NewSlotStore()

	past := newSlot("dr-a", base)
	future := newSlot("dr-a", base.Add(2*time.Hour))
	free := newSlot("dr-a", base.Add(-time.Hour))
	for _, s := range []*model.Slot{past, future, free} {
		require.NoError(t, store.Create(ctx, s))
	}
	for _, s := range []*model.Slot{past, future} {
		s.Status = model.SlotStatusReserved
		require.NoError(t, store.Update(ctx, s, 1))
	}

	due, err := store.ListDueForCompletion(ctx, base.Add(30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, past.ID, due[0].ID)

	ok, err := store.Delete(ctx, past.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Delete(ctx, past.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, store.Len())
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory()
	dir.PutProvider(model.Provider{ID: "dr-b", Specialty: "Cardiology", Active: true})
	dir.PutProvider(model.Provider{ID: "dr-a", Specialty: "cardiology", Active: true})
	dir.PutProvider(model.Provider{ID: "dr-c", Specialty: "cardiology", Active: false})
	dir.PutStudy(model.Study{ID: "S1", Active: true})

	found, err := dir.Providers().ListBySpecialty(ctx, "CARDIOLOGY")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "dr-a", found[0].ID)
	assert.Equal(t, "dr-b", found[1].ID)

	missing, err := dir.Providers().Resolve(ctx, "dr-x")
	require.NoError(t, err)
	assert.Nil(t, missing)

	study, err := dir.Studies().Resolve(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, study)
	assert.True(t, study.Active)
}
