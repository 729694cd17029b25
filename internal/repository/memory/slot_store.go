// Package memory хранилища в памяти процесса: для тестов и режима
// STORAGE_DRIVER=memory. Контракты совпадают с Postgres-реализацией.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/google/uuid"
)

type SlotStore struct {
	mu    sync.RWMutex
	slots map[uuid.UUID]*model.Slot
	now   func() time.Time
}

func NewSlotStore() *SlotStore {
	return &SlotStore{
		slots: make(map[uuid.UUID]*model.Slot),
		now:   time.Now,
	}
}

// Create создаёт новый слот
func (s *SlotStore) Create(_ context.Context, slot *model.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[slot.ID]; ok {
		return fmt.Errorf("create slot %s: %w", slot.ID, model.ErrStorageConflict)
	}

	if slot.IsActive() && s.activeAtLocked(slot.ProviderID, slot.StartTime) {
		return fmt.Errorf("create slot: provider %s already has a slot at %s: %w",
			slot.ProviderID, slot.StartTime.Format(time.RFC3339), model.ErrStorageConflict)
	}

	now := s.now()
	slot.Version = 1
	slot.CreatedAt = now
	slot.UpdatedAt = now
	s.slots[slot.ID] = slot.Clone()

	return nil
}

// GetByID получает слот по ID; nil, nil если его нет
func (s *SlotStore) GetByID(_ context.Context, id uuid.UUID) (*model.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[id]
	if !ok {
		return nil, nil
	}
	return slot.Clone(), nil
}

// OverlapsActive пересекается ли [start, end) со свободным или занятым слотом врача
func (s *SlotStore) OverlapsActive(_ context.Context, providerID string, start, end time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, slot := range s.slots {
		if slot.ProviderID != providerID || !slot.IsActive() {
			continue
		}
		if slot.StartTime.Before(end) && slot.EndTime().After(start) {
			return true, nil
		}
	}
	return false, nil
}

func (s *SlotStore) activeAtLocked(providerID string, startTime time.Time) bool {
	for _, slot := range s.slots {
		if slot.ProviderID == providerID && slot.StartTime.Equal(startTime) && slot.IsActive() {
			return true
		}
	}
	return false
}

// Search фильтрует, сортирует и режет по странице
func (s *SlotStore) Search(_ context.Context, filter model.SlotFilter) ([]*model.Slot, int, error) {
	s.mu.RLock()
	matched := make([]*model.Slot, 0)
	for _, slot := range s.slots {
		if filter.Matches(slot) {
			matched = append(matched, slot.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, model.CompareSlots)

	total := len(matched)
	if filter.Offset >= total {
		return []*model.Slot{}, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, total, nil
}

// Update сохраняет изменения, если версия не изменилась с момента чтения
func (s *SlotStore) Update(_ context.Context, slot *model.Slot, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.slots[slot.ID]
	if !ok {
		return fmt.Errorf("update slot %s: %w", slot.ID, model.ErrSlotNotFound)
	}

	if current.Version != expectedVersion {
		return fmt.Errorf("update slot %s: version %d != %d: %w",
			slot.ID, current.Version, expectedVersion, model.ErrStorageConflict)
	}

	slot.Version = expectedVersion + 1
	if slot.UpdatedAt.IsZero() {
		slot.UpdatedAt = s.now()
	}
	// Неизменяемые поля берём из хранилища
	slot.ProviderID = current.ProviderID
	slot.StartTime = current.StartTime
	slot.LocalDate = current.LocalDate
	slot.DurationMinutes = current.DurationMinutes
	slot.CreatedAt = current.CreatedAt

	s.slots[slot.ID] = slot.Clone()
	return nil
}

// Delete удаляет слот; false если его не было
func (s *SlotStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[id]; !ok {
		return false, nil
	}
	delete(s.slots, id)
	return true, nil
}

// ListDueForCompletion забронированные слоты, которые уже закончились
func (s *SlotStore) ListDueForCompletion(_ context.Context, now time.Time, limit int) ([]*model.Slot, error) {
	s.mu.RLock()
	due := make([]*model.Slot, 0)
	for _, slot := range s.slots {
		if slot.IsReserved() && !slot.EndTime().After(now) {
			due = append(due, slot.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(due, model.CompareSlots)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

// Len количество слотов
func (s *SlotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}
