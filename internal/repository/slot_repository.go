package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/Freeeeeet/turnos/internal/repository/base"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, provider_id, start_time, local_date, duration_minutes, status,
	allowed_study_ids, subject, study_id, consult_reason, attachments,
	version, created_at, updated_at`

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт новый слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	subject, attachments, err := encodeBooking(slot)
	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	query := `
		INSERT INTO slots (id, provider_id, start_time, local_date, duration_minutes, status,
			allowed_study_ids, subject, study_id, consult_reason, attachments, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		RETURNING version, created_at, updated_at
	`

	err = r.QueryRow(
		ctx, query,
		slot.ID,
		slot.ProviderID,
		slot.StartTime,
		slot.LocalDate.Time(),
		slot.DurationMinutes,
		slot.Status,
		nonNilStrings(slot.AllowedStudyIDs),
		subject,
		slot.StudyID,
		slot.ConsultReason,
		attachments,
	).Scan(&slot.Version, &slot.CreatedAt, &slot.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create slot: %w", base.MapError(err))
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", base.MapError(err))
	}

	return slot, nil
}

// OverlapsActive пересекается ли [start, end) со свободным или занятым слотом врача
func (r *SlotRepository) OverlapsActive(ctx context.Context, providerID string, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM slots
			WHERE provider_id = $1
			  AND start_time < $3
			  AND start_time + make_interval(mins => duration_minutes) > $2
			  AND status IN ('available', 'reserved')
		)
	`

	var exists bool
	if err := r.QueryRow(ctx, query, providerID, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active slot: %w", base.MapError(err))
	}

	return exists, nil
}

// Search поиск по фильтру со страницей и общим количеством
func (r *SlotRepository) Search(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, int, error) {
	where, args := buildSlotWhere(filter)

	countQuery := `SELECT COUNT(*) FROM slots` + where

	var total int
	if err := r.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count slots: %w", base.MapError(err))
	}

	query := `SELECT ` + slotColumns + ` FROM slots` + where +
		` ORDER BY start_time, provider_id, id`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search slots: %w", err)
	}
	defer rows.Close()

	slots, err := collectSlots(rows)
	if err != nil {
		return nil, 0, err
	}

	return slots, total, nil
}

// Update сохраняет изменения, если версия в базе совпадает с expectedVersion
func (r *SlotRepository) Update(ctx context.Context, slot *model.Slot, expectedVersion int64) error {
	subject, attachments, err := encodeBooking(slot)
	if err != nil {
		return fmt.Errorf("update slot: %w", err)
	}

	query := `
		UPDATE slots
		SET status = $3,
		    allowed_study_ids = $4,
		    subject = $5,
		    study_id = $6,
		    consult_reason = $7,
		    attachments = $8,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	err = r.QueryRow(
		ctx, query,
		slot.ID,
		expectedVersion,
		slot.Status,
		nonNilStrings(slot.AllowedStudyIDs),
		subject,
		slot.StudyID,
		slot.ConsultReason,
		attachments,
	).Scan(&slot.Version, &slot.UpdatedAt)

	if err == nil {
		return nil
	}
	if !base.IsNotFound(err) {
		return fmt.Errorf("update slot: %w", base.MapError(err))
	}

	// Строка не обновилась: либо слота нет, либо версия ушла вперёд
	current, getErr := r.GetByID(ctx, slot.ID)
	if getErr != nil {
		return getErr
	}
	if current == nil {
		return fmt.Errorf("update slot %s: %w", slot.ID, model.ErrSlotNotFound)
	}

	return fmt.Errorf("update slot %s: version %d != %d: %w",
		slot.ID, current.Version, expectedVersion, model.ErrStorageConflict)
}

// Delete удаляет слот
func (r *SlotRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete slot: %w", err)
	}

	return affected > 0, nil
}

// ListDueForCompletion забронированные слоты, которые уже закончились
func (r *SlotRepository) ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]*model.Slot, error) {
	query := `SELECT ` + slotColumns + `
		FROM slots
		WHERE status = 'reserved'
		  AND start_time + make_interval(mins => duration_minutes) <= $1
		ORDER BY start_time, provider_id, id
		LIMIT $2
	`

	rows, err := r.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due slots: %w", err)
	}
	defer rows.Close()

	return collectSlots(rows)
}

func buildSlotWhere(filter model.SlotFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if filter.Status != "" {
		add("status = ?", filter.Status)
	}
	if filter.ProviderID != "" {
		add("provider_id = ?", filter.ProviderID)
	}
	if len(filter.ProviderIDs) > 0 {
		add("provider_id = ANY(?)", filter.ProviderIDs)
	}
	if filter.StudyID != "" {
		add(`(study_id = ? OR (study_id = '' AND (cardinality(allowed_study_ids) = 0 OR ? = ANY(allowed_study_ids))))`, filter.StudyID)
	}
	if filter.Date != nil {
		add("local_date = ?", filter.Date.Time())
	}
	if !filter.From.IsZero() {
		add("start_time >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		add("start_time < ?", filter.To)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var (
		slot        model.Slot
		localDate   time.Time
		subject     []byte
		attachments []byte
	)

	err := row.Scan(
		&slot.ID,
		&slot.ProviderID,
		&slot.StartTime,
		&localDate,
		&slot.DurationMinutes,
		&slot.Status,
		&slot.AllowedStudyIDs,
		&subject,
		&slot.StudyID,
		&slot.ConsultReason,
		&attachments,
		&slot.Version,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	slot.LocalDate = model.DateOf(localDate, time.UTC)

	if len(subject) > 0 {
		var ref model.SubjectRef
		if err := json.Unmarshal(subject, &ref); err != nil {
			return nil, fmt.Errorf("decode subject of slot %s: %w", slot.ID, err)
		}
		slot.Subject = &ref
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &slot.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of slot %s: %w", slot.ID, err)
		}
	}

	return &slot, nil
}

func collectSlots(rows pgx.Rows) ([]*model.Slot, error) {
	slots := make([]*model.Slot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", base.MapError(err))
	}

	return slots, nil
}

// encodeBooking сериализует JSONB-поля; subject NULL у свободного слота
func encodeBooking(slot *model.Slot) (subject []byte, attachments []byte, err error) {
	if slot.Subject != nil {
		subject, err = json.Marshal(slot.Subject)
		if err != nil {
			return nil, nil, fmt.Errorf("encode subject: %w", err)
		}
	}

	list := slot.Attachments
	if list == nil {
		list = []model.Attachment{}
	}
	attachments, err = json.Marshal(list)
	if err != nil {
		return nil, nil, fmt.Errorf("encode attachments: %w", err)
	}

	return subject, attachments, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
