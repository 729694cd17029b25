package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditActionReserved            AuditAction = "slot.reserved"
	AuditActionCancelled           AuditAction = "slot.cancelled"
	AuditActionCleared             AuditAction = "slot.cleared"
	AuditActionDeleted             AuditAction = "slot.deleted"
	AuditActionCompleted           AuditAction = "slot.completed"
	AuditActionAttachmentAdded     AuditAction = "slot.attachment_added"
	AuditActionAttachmentRemoved   AuditAction = "slot.attachment_removed"
	AuditActionAvailabilityCreated AuditAction = "availability.created"
)

// AuditEvent запись журнала аудита (только добавление)
type AuditEvent struct {
	ID         uuid.UUID   `json:"id"`
	Action     AuditAction `json:"action"`
	Actor      string      `json:"actor"`
	ProviderID string      `json:"provider_id,omitempty"`
	SlotIDs    []uuid.UUID `json:"slot_ids"`
	Reason     string      `json:"reason,omitempty"`
	Snapshot   *Slot       `json:"snapshot,omitempty"` // состояние слота до изменения
	OccurredAt time.Time   `json:"occurred_at"`
}

type NotificationKind string

const (
	NotificationReserved  NotificationKind = "reserved"
	NotificationCancelled NotificationKind = "cancelled"
)

// Notification событие для внешнего уведомителя
type Notification struct {
	Kind       NotificationKind
	Slot       *Slot
	Subject    *SubjectRef // для отмены - данные снятой записи
	Reason     string      // причина отмены
	OccurredAt time.Time
}

type actorKey struct{}

// SystemActor актор по умолчанию для внутренних операций
const SystemActor = "system"

// WithActor кладёт в контекст идентификатор оператора
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom достаёт оператора из контекста
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
