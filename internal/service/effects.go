package service

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// effects побочные действия после успешной записи в хранилище.
// Ни одна ошибка здесь не откатывает уже выполненную операцию.
type effects struct {
	audit    AuditLog
	notifier Notifier
	cache    SearchCache
	logger   *zap.Logger
	now      func() time.Time
	inflight sync.WaitGroup
}

func newEffects(audit AuditLog, notifier Notifier, cache SearchCache, logger *zap.Logger) *effects {
	if cache == nil {
		cache = NoopCache{}
	}
	return &effects{
		audit:    audit,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// record пишет событие в журнал аудита
func (e *effects) record(ctx context.Context, event model.AuditEvent) {
	event.ID = uuid.New()
	event.Actor = model.ActorFrom(ctx)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}

	e.logger.Info("Audit event",
		zap.String("action", string(event.Action)),
		zap.String("actor", event.Actor),
		zap.Int("slots", len(event.SlotIDs)),
		zap.Time("occurred_at", event.OccurredAt),
	)

	if e.audit == nil {
		return
	}
	if err := e.audit.Record(ctx, event); err != nil {
		e.logger.Error("Failed to record audit event",
			zap.String("action", string(event.Action)),
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
	}
}

// notify отправляет уведомление в фоне, не блокируя вызывающего
func (e *effects) notify(ctx context.Context, n model.Notification) {
	if e.notifier == nil {
		return
	}
	if n.OccurredAt.IsZero() {
		n.OccurredAt = e.now()
	}

	ctx = context.WithoutCancel(ctx)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.logger.Warn("Failed to dispatch notification",
				zap.String("kind", string(n.Kind)),
				zap.String("slot_id", n.Slot.ID.String()),
				zap.Error(err),
			)
		}
	}()
}

// invalidate сбрасывает кэш поиска
func (e *effects) invalidate(ctx context.Context) {
	if err := e.cache.Invalidate(ctx); err != nil {
		e.logger.Warn("Failed to invalidate search cache", zap.Error(err))
	}
}

// wait дожидается фоновых уведомлений
func (e *effects) wait() {
	e.inflight.Wait()
}
