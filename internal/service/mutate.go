package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// casAttempts первая попытка плюс ровно один повтор после конфликта версий
const casAttempts = 2

// errNoChange change-функция сообщает, что слот уже в нужном состоянии
var errNoChange = errors.New("no change")

// mutator применяет изменения слота через compare-and-set по версии
type mutator struct {
	slots  SlotStore
	logger *zap.Logger
	now    func() time.Time
}

// load читает слот из хранилища, ErrSlotNotFound если его нет
func (m *mutator) load(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	slot, err := m.slots.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}

	if slot == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrSlotNotFound, id)
	}

	return slot, nil
}

// apply перечитывает слот, проверяет и изменяет копию через change и
// сохраняет её условно по прочитанной версии. Состояние всегда проверяется
// по свежему чтению. При конфликте версии слот перечитывается и попытка
// повторяется один раз, затем возвращается model.ErrStorageConflict.
//
// Возвращает состояние до изменения и после. Если change вернул errNoChange,
// after == nil и ошибки нет.
func (m *mutator) apply(ctx context.Context, id uuid.UUID, change func(slot *model.Slot) error) (before, after *model.Slot, err error) {
	for attempt := 1; attempt <= casAttempts; attempt++ {
		current, err := m.load(ctx, id)
		if err != nil {
			return nil, nil, err
		}

		next := current.Clone()
		if err := change(next); err != nil {
			if errors.Is(err, errNoChange) {
				return current, nil, nil
			}
			return current, nil, err
		}
		next.UpdatedAt = m.now()

		err = m.slots.Update(ctx, next, current.Version)
		if err == nil {
			return current, next, nil
		}

		if !errors.Is(err, model.ErrStorageConflict) {
			return current, nil, fmt.Errorf("update slot: %w", err)
		}

		m.logger.Debug("Slot version conflict",
			zap.String("slot_id", id.String()),
			zap.Int64("version", current.Version),
			zap.Int("attempt", attempt),
		)
	}

	return nil, nil, fmt.Errorf("update slot %s: %w", id, model.ErrStorageConflict)
}

// uniqueIDs убирает повторы, сохраняя порядок
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
