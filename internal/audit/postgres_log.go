// Package audit реализации журнала аудита операций со слотами
package audit

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/Freeeeeet/turnos/internal/repository/base"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLog пишет события в таблицу slot_audit_events
type PostgresLog struct {
	*base.Repository
}

func NewPostgresLog(pool *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{Repository: base.NewRepository(pool)}
}

func (l *PostgresLog) Record(ctx context.Context, event model.AuditEvent) error {
	var snapshot []byte
	if event.Snapshot != nil {
		var err error
		snapshot, err = json.Marshal(event.Snapshot)
		if err != nil {
			return fmt.Errorf("encode audit snapshot: %w", err)
		}
	}

	slotIDs := event.SlotIDs
	if slotIDs == nil {
		slotIDs = []uuid.UUID{}
	}

	query := `
		INSERT INTO slot_audit_events (id, action, actor, provider_id, slot_ids, reason, snapshot, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := l.ExecAffected(ctx, query,
		event.ID,
		event.Action,
		event.Actor,
		event.ProviderID,
		slotIDs,
		event.Reason,
		snapshot,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	return nil
}
