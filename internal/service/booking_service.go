package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// bulkClearReason причина, записываемая при массовой очистке
const bulkClearReason = "bulk clear"

// completionBatch сколько слотов завершает один проход
const completionBatch = 500

// BookingService машина состояний слота:
// available -> reserved -> available (отмена) | completed
type BookingService struct {
	mutator *mutator
	slots   SlotStore
	studies StudyDirectory
	effects *effects
	logger  *zap.Logger
	now     func() time.Time
}

func NewBookingService(
	slots SlotStore,
	studies StudyDirectory,
	audit AuditLog,
	notifier Notifier,
	cache SearchCache,
	logger *zap.Logger,
) *BookingService {
	s := &BookingService{
		slots:   slots,
		studies: studies,
		effects: newEffects(audit, notifier, cache, logger),
		logger:  logger,
		now:     time.Now,
	}
	s.mutator = &mutator{slots: slots, logger: logger, now: s.clock}
	return s
}

// SetClock подменяет источник времени (планировщик и тесты)
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
	s.effects.now = now
}

func (s *BookingService) clock() time.Time {
	return s.now()
}

// Wait дожидается отправки фоновых уведомлений
func (s *BookingService) Wait() {
	s.effects.wait()
}

// GetSlot получает слот по ID
func (s *BookingService) GetSlot(ctx context.Context, slotID uuid.UUID) (*model.Slot, error) {
	return s.mutator.load(ctx, slotID)
}

// Reserve бронирует свободный слот для пациента или гостя
func (s *BookingService) Reserve(ctx context.Context, slotID uuid.UUID, subject model.SubjectRef, studyID, consultReason string) (*model.Slot, error) {
	return s.reserve(ctx, slotID, subject, strings.TrimSpace(studyID), strings.TrimSpace(consultReason), true)
}

// ReserveAsGuest бронирует слот без учётной записи пациента.
// Причина обращения необязательна. Если исследование не указано, а слот
// допускает ровно одно, используется оно.
func (s *BookingService) ReserveAsGuest(ctx context.Context, slotID uuid.UUID, guest model.GuestInfo, consultReason, studyID string) (*model.Slot, error) {
	return s.reserve(ctx, slotID, model.GuestSubject(guest), strings.TrimSpace(studyID), strings.TrimSpace(consultReason), false)
}

func (s *BookingService) reserve(ctx context.Context, slotID uuid.UUID, subject model.SubjectRef, studyID, consultReason string, requireReason bool) (*model.Slot, error) {
	_, reserved, err := s.mutator.apply(ctx, slotID, func(slot *model.Slot) error {
		// Проверяем что слот свободен, по свежему чтению
		if !slot.IsAvailable() {
			return fmt.Errorf("%w: slot %s is %s", model.ErrSlotNotAvailable, slot.ID, slot.Status)
		}

		chosen := studyID
		if chosen == "" && !requireReason && len(slot.AllowedStudyIDs) == 1 {
			chosen = slot.AllowedStudyIDs[0]
		}
		if chosen == "" {
			return model.MissingField("study_id")
		}

		if err := s.checkStudy(ctx, slot, chosen); err != nil {
			return err
		}

		if requireReason && consultReason == "" {
			return model.MissingField("consult_reason")
		}

		if err := subject.Validate(); err != nil {
			return err
		}

		booked := subject
		slot.Status = model.SlotStatusReserved
		slot.Subject = &booked
		slot.StudyID = chosen
		slot.ConsultReason = consultReason
		return nil
	})
	if errors.Is(err, model.ErrStorageConflict) {
		// Проиграли гонку дважды - слот уже занят другим запросом
		return nil, fmt.Errorf("%w: slot %s", model.ErrSlotNotAvailable, slotID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Slot reserved",
		zap.String("slot_id", reserved.ID.String()),
		zap.String("provider_id", reserved.ProviderID),
		zap.String("subject_kind", string(reserved.Subject.Kind)),
		zap.String("study_id", reserved.StudyID),
		zap.Time("start_time", reserved.StartTime),
	)

	s.effects.record(ctx, model.AuditEvent{
		Action:     model.AuditActionReserved,
		ProviderID: reserved.ProviderID,
		SlotIDs:    []uuid.UUID{reserved.ID},
	})
	s.effects.invalidate(ctx)
	s.effects.notify(ctx, model.Notification{
		Kind:    model.NotificationReserved,
		Slot:    reserved.Clone(),
		Subject: reserved.Subject,
	})

	return reserved, nil
}

// checkStudy исследование существует, активно и разрешено в слоте
func (s *BookingService) checkStudy(ctx context.Context, slot *model.Slot, studyID string) error {
	if !slot.AllowsStudy(studyID) {
		return fmt.Errorf("%w: study %s is not allowed for slot %s", model.ErrStudyNotEligible, studyID, slot.ID)
	}

	study, err := s.studies.Resolve(ctx, studyID)
	if err != nil {
		return fmt.Errorf("resolve study: %w", err)
	}

	if study == nil {
		return fmt.Errorf("%w: study %s not found", model.ErrStudyNotEligible, studyID)
	}

	if !study.Active {
		return fmt.Errorf("%w: study %s is not active", model.ErrStudyNotEligible, studyID)
	}

	return nil
}

// Cancel отменяет бронирование: слот с тем же ID снова свободен,
// данные записи остаются только в журнале аудита
func (s *BookingService) Cancel(ctx context.Context, slotID uuid.UUID, reason string) (*model.Slot, error) {
	reason = strings.TrimSpace(reason)

	before, cancelled, err := s.mutator.apply(ctx, slotID, func(slot *model.Slot) error {
		if !slot.IsReserved() {
			return fmt.Errorf("%w: cannot cancel %s slot %s", model.ErrInvalidTransition, slot.Status, slot.ID)
		}
		slot.ClearBooking()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterRelease(ctx, model.AuditActionCancelled, before, cancelled, reason)

	return cancelled, nil
}

// BulkClear отменяет бронирования по списку слотов.
// В отличие от Cancel не прерывается на первой ошибке: каждый ID
// обрабатывается независимо, результат возвращается по каждому ID.
// Уже свободный слот даёт статус unchanged.
func (s *BookingService) BulkClear(ctx context.Context, slotIDs []uuid.UUID) map[uuid.UUID]model.ClearOutcome {
	outcomes := make(map[uuid.UUID]model.ClearOutcome, len(slotIDs))

	for _, id := range uniqueIDs(slotIDs) {
		before, cleared, err := s.mutator.apply(ctx, id, func(slot *model.Slot) error {
			if slot.IsAvailable() {
				return errNoChange
			}
			if !slot.IsReserved() {
				return fmt.Errorf("%w: cannot clear %s slot %s", model.ErrInvalidTransition, slot.Status, slot.ID)
			}
			slot.ClearBooking()
			return nil
		})

		switch {
		case err != nil:
			s.logger.Warn("Failed to clear slot",
				zap.String("slot_id", id.String()),
				zap.Error(err),
			)
			outcomes[id] = model.ClearOutcome{Status: model.ClearStatusFailed, Err: err}
		case cleared == nil:
			outcomes[id] = model.ClearOutcome{Status: model.ClearStatusUnchanged, Slot: before}
		default:
			s.afterRelease(ctx, model.AuditActionCleared, before, cleared, bulkClearReason)
			outcomes[id] = model.ClearOutcome{Status: model.ClearStatusCleared, Slot: cleared}
		}
	}

	s.logger.Info("Bulk clear finished",
		zap.Int("requested", len(slotIDs)),
		zap.Int("processed", len(outcomes)),
	)

	return outcomes
}

// afterRelease аудит, кэш и уведомление после освобождения слота.
// Причина отмены попадает только в журнал и уведомление, на слоте её нет.
func (s *BookingService) afterRelease(ctx context.Context, action model.AuditAction, before, after *model.Slot, reason string) {
	s.logger.Info("Slot released",
		zap.String("slot_id", after.ID.String()),
		zap.String("provider_id", after.ProviderID),
		zap.String("action", string(action)),
		zap.String("reason", reason),
	)

	snapshot := before.Clone()
	snapshot.CancelReason = reason

	s.effects.record(ctx, model.AuditEvent{
		Action:     action,
		ProviderID: after.ProviderID,
		SlotIDs:    []uuid.UUID{after.ID},
		Reason:     reason,
		Snapshot:   snapshot,
	})
	s.effects.invalidate(ctx)
	s.effects.notify(ctx, model.Notification{
		Kind:    model.NotificationCancelled,
		Slot:    after.Clone(),
		Subject: before.Subject,
		Reason:  reason,
	})
}

// BulkDelete безусловно удаляет слоты в любом статусе.
// Возвращает количество удалённых; отсутствующие ID не считаются ошибкой.
// Ошибки хранилища по отдельным ID объединяются, остальные ID всё равно
// обрабатываются.
func (s *BookingService) BulkDelete(ctx context.Context, slotIDs []uuid.UUID) (int, error) {
	var (
		deleted []uuid.UUID
		errs    []error
	)

	for _, id := range uniqueIDs(slotIDs) {
		ok, err := s.slots.Delete(ctx, id)
		if err != nil {
			s.logger.Error("Failed to delete slot",
				zap.String("slot_id", id.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("delete slot %s: %w", id, err))
			continue
		}
		if ok {
			deleted = append(deleted, id)
		}
	}

	s.effects.record(ctx, model.AuditEvent{
		Action:  model.AuditActionDeleted,
		SlotIDs: deleted,
		Reason:  fmt.Sprintf("requested %d", len(slotIDs)),
	})
	if len(deleted) > 0 {
		s.effects.invalidate(ctx)
	}

	s.logger.Info("Slots deleted",
		zap.String("actor", model.ActorFrom(ctx)),
		zap.Int("requested", len(slotIDs)),
		zap.Int("deleted", len(deleted)),
	)

	return len(deleted), errors.Join(errs...)
}

// MarkCompleted переводит прошедший забронированный слот в completed.
// Повторный вызов для завершённого слота ничего не делает.
func (s *BookingService) MarkCompleted(ctx context.Context, slotID uuid.UUID) (*model.Slot, error) {
	now := s.now()

	before, completed, err := s.mutator.apply(ctx, slotID, func(slot *model.Slot) error {
		if slot.Status == model.SlotStatusCompleted {
			return errNoChange
		}
		if !slot.IsReserved() {
			return fmt.Errorf("%w: cannot complete %s slot %s", model.ErrInvalidTransition, slot.Status, slot.ID)
		}
		if now.Before(slot.EndTime()) {
			return fmt.Errorf("%w: slot %s has not ended yet", model.ErrInvalidTransition, slot.ID)
		}
		slot.Status = model.SlotStatusCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completed == nil {
		return before, nil
	}

	s.effects.record(ctx, model.AuditEvent{
		Action:     model.AuditActionCompleted,
		ProviderID: completed.ProviderID,
		SlotIDs:    []uuid.UUID{completed.ID},
	})
	s.effects.invalidate(ctx)

	return completed, nil
}

// CompleteDue завершает все забронированные слоты, время которых прошло
func (s *BookingService) CompleteDue(ctx context.Context) (int, error) {
	due, err := s.slots.ListDueForCompletion(ctx, s.now(), completionBatch)
	if err != nil {
		return 0, fmt.Errorf("list slots due for completion: %w", err)
	}

	count := 0
	for _, slot := range due {
		if _, err := s.MarkCompleted(ctx, slot.ID); err != nil {
			s.logger.Warn("Failed to complete slot",
				zap.String("slot_id", slot.ID.String()),
				zap.Error(err),
			)
			continue
		}
		count++
	}

	if count > 0 {
		s.logger.Info("Completed past reservations", zap.Int("count", count))
	}

	return count, nil
}
