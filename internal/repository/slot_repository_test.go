package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/Freeeeeet/turnos/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSlotWhere(t *testing.T) {
	date := model.Date{Year: 2024, Month: time.June, Day: 10}
	from := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	where, args := buildSlotWhere(model.SlotFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildSlotWhere(model.SlotFilter{
		Status:     model.SlotStatusAvailable,
		ProviderID: "dr-a",
		StudyID:    "S1",
		Date:       &date,
		From:       from,
	})

	assert.Equal(t, " WHERE status = $1 AND provider_id = $2"+
		" AND (study_id = $3 OR (study_id = '' AND (cardinality(allowed_study_ids) = 0 OR $3 = ANY(allowed_study_ids))))"+
		" AND local_date = $4 AND start_time >= $5", where)
	assert.Equal(t, []any{model.SlotStatusAvailable, "dr-a", "S1", date.Time(), from}, args)
}

// newTestPool подключается к TEST_DB_DSN и накатывает миграции
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.UpContext(ctx, stdlib.OpenDBFromPool(pool), "."))

	_, err = pool.Exec(ctx, `TRUNCATE slots, slot_audit_events, providers, studies`)
	require.NoError(t, err)

	return pool
}

func TestSlotRepository_Postgres(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := NewSlotRepository(pool)

	start := time.Date(2024, 6, 11, 1, 0, 0, 0, time.UTC)
	slot := &model.Slot{
		ID:              uuid.New(),
		ProviderID:      "dr-a",
		StartTime:       start,
		LocalDate:       model.Date{Year: 2024, Month: time.June, Day: 10},
		DurationMinutes: 30,
		Status:          model.SlotStatusAvailable,
		AllowedStudyIDs: []string{"S1"},
	}
	require.NoError(t, repo.Create(ctx, slot))
	assert.EqualValues(t, 1, slot.Version)

	t.Run("active duplicate conflicts", func(t *testing.T) {
		dup := *slot
		dup.ID = uuid.New()
		assert.ErrorIs(t, repo.Create(ctx, &dup), model.ErrStorageConflict)
	})

	t.Run("overlap with active slot", func(t *testing.T) {
		overlaps, err := repo.OverlapsActive(ctx, "dr-a", start.Add(20*time.Minute), start.Add(40*time.Minute))
		require.NoError(t, err)
		assert.True(t, overlaps)

		overlaps, err = repo.OverlapsActive(ctx, "dr-a", start.Add(30*time.Minute), start.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, overlaps)
	})

	t.Run("update with version check", func(t *testing.T) {
		got, err := repo.GetByID(ctx, slot.ID)
		require.NoError(t, err)

		subject := model.GuestSubject(model.GuestInfo{Name: "Ana", NationalID: "123", Phone: "555"})
		got.Status = model.SlotStatusReserved
		got.Subject = &subject
		got.StudyID = "S1"
		require.NoError(t, repo.Update(ctx, got, 1))
		assert.EqualValues(t, 2, got.Version)

		stale := *slot
		stale.Status = model.SlotStatusCompleted
		assert.ErrorIs(t, repo.Update(ctx, &stale, 1), model.ErrStorageConflict)

		reread, err := repo.GetByID(ctx, slot.ID)
		require.NoError(t, err)
		require.NotNil(t, reread.Subject)
		assert.Equal(t, "Ana", reread.Subject.Guest.Name)
		assert.Equal(t, slot.LocalDate, reread.LocalDate)
	})

	t.Run("search by local date", func(t *testing.T) {
		june10 := model.Date{Year: 2024, Month: time.June, Day: 10}
		items, total, err := repo.Search(ctx, model.SlotFilter{Date: &june10, StudyID: "S1"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, slot.ID, items[0].ID)
	})

	t.Run("due for completion", func(t *testing.T) {
		due, err := repo.ListDueForCompletion(ctx, start.Add(30*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, due, 1)

		due, err = repo.ListDueForCompletion(ctx, start.Add(29*time.Minute), 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("delete", func(t *testing.T) {
		ok, err := repo.Delete(ctx, slot.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		missing, err := repo.GetByID(ctx, slot.ID)
		require.NoError(t, err)
		assert.Nil(t, missing)

		assert.ErrorIs(t, repo.Update(ctx, slot, 1), model.ErrSlotNotFound)
	})
}
