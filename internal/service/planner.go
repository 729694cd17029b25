package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AvailabilityRequest окно приёма врача на один день
type AvailabilityRequest struct {
	ProviderID      string
	Date            model.Date
	StartClock      model.Clock
	EndClock        model.Clock
	IntervalMinutes int
	AllowedStudyIDs []string
}

type PlannerService struct {
	slots     SlotStore
	providers ProviderDirectory
	effects   *effects
	logger    *zap.Logger
}

func NewPlannerService(
	slots SlotStore,
	providers ProviderDirectory,
	audit AuditLog,
	cache SearchCache,
	logger *zap.Logger,
) *PlannerService {
	return &PlannerService{
		slots:     slots,
		providers: providers,
		effects:   newEffects(audit, nil, cache, logger),
		logger:    logger,
	}
}

// PlanDay генерирует слоты на день в часовом поясе врача и создаёт недостающие
func (s *PlannerService) PlanDay(ctx context.Context, req AvailabilityRequest) ([]*model.Slot, error) {
	provider, err := s.resolveProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}

	starts, err := GenerateSlots(req.Date, req.StartClock, req.EndClock, req.IntervalMinutes, provider.Location())
	if err != nil {
		return nil, err
	}

	return s.createAvailability(ctx, provider, starts, req.IntervalMinutes, req.AllowedStudyIDs)
}

// CreateAvailability создаёт свободные слоты для переданных времён начала.
// Слот, пересекающийся с активным слотом врача, пропускается, поэтому
// повторный вызов ничего не создаёт, даже с другим интервалом.
// Возвращает только созданные слоты.
func (s *PlannerService) CreateAvailability(ctx context.Context, providerID string, starts iter.Seq[time.Time], durationMinutes int, allowedStudyIDs []string) ([]*model.Slot, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: %d minutes", model.ErrInvalidInterval, durationMinutes)
	}

	provider, err := s.resolveProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	return s.createAvailability(ctx, provider, starts, durationMinutes, allowedStudyIDs)
}

func (s *PlannerService) createAvailability(ctx context.Context, provider *model.Provider, starts iter.Seq[time.Time], durationMinutes int, allowedStudyIDs []string) ([]*model.Slot, error) {
	loc := provider.Location()
	allowed := normalizeStudyIDs(allowedStudyIDs)

	created := make([]*model.Slot, 0)
	skipped := 0

	for startTime := range starts {
		// Проверяем, не пересекается ли слот с уже существующими
		endTime := startTime.Add(time.Duration(durationMinutes) * time.Minute)
		overlaps, err := s.slots.OverlapsActive(ctx, provider.ID, startTime, endTime)
		if err != nil {
			return created, fmt.Errorf("check slot overlap: %w", err)
		}

		if overlaps {
			s.logger.Debug("Slot overlaps an existing one, skipping",
				zap.String("provider_id", provider.ID),
				zap.Time("start_time", startTime),
			)
			skipped++
			continue
		}

		slot := &model.Slot{
			ID:              uuid.New(),
			ProviderID:      provider.ID,
			StartTime:       startTime,
			LocalDate:       model.DateOf(startTime, loc),
			DurationMinutes: durationMinutes,
			Status:          model.SlotStatusAvailable,
			AllowedStudyIDs: slices.Clone(allowed),
		}

		err = s.slots.Create(ctx, slot)
		if errors.Is(err, model.ErrStorageConflict) {
			// Параллельная генерация успела создать слот раньше
			skipped++
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create slot: %w", err)
		}

		created = append(created, slot)
	}

	if len(created) > 0 {
		ids := make([]uuid.UUID, 0, len(created))
		for _, slot := range created {
			ids = append(ids, slot.ID)
		}
		s.effects.record(ctx, model.AuditEvent{
			Action:     model.AuditActionAvailabilityCreated,
			ProviderID: provider.ID,
			SlotIDs:    ids,
		})
		s.effects.invalidate(ctx)
	}

	s.logger.Info("Availability created",
		zap.String("provider_id", provider.ID),
		zap.Int("created", len(created)),
		zap.Int("skipped", skipped),
	)

	return created, nil
}

func (s *PlannerService) resolveProvider(ctx context.Context, providerID string) (*model.Provider, error) {
	if providerID == "" {
		return nil, fmt.Errorf("%w: empty provider id", model.ErrInvalidProvider)
	}

	provider, err := s.providers.Resolve(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("resolve provider: %w", err)
	}

	if provider == nil || !provider.Active {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidProvider, providerID)
	}

	return provider, nil
}

// normalizeStudyIDs убирает пустые значения и дубликаты
func normalizeStudyIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
