package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"go.uber.org/zap"
)

const (
	DefaultSearchLimit = 100
	MaxSearchLimit     = 500
)

// QueryService поиск и группировка слотов для отображения.
// Результаты кэшируются, но решения о бронировании кэш не использует.
type QueryService struct {
	slots     SlotStore
	providers ProviderDirectory
	cache     SearchCache
	logger    *zap.Logger
	now       func() time.Time
}

// WeekView неделя врача: понедельник и слоты Пн-Вс в его часовом поясе
type WeekView struct {
	Provider *model.Provider
	Start    model.Date
	Slots    []*model.Slot
}

func NewQueryService(slots SlotStore, providers ProviderDirectory, cache SearchCache, logger *zap.Logger) *QueryService {
	if cache == nil {
		cache = NoopCache{}
	}
	return &QueryService{
		slots:     slots,
		providers: providers,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock подменяет источник времени (тесты)
func (s *QueryService) SetClock(now func() time.Time) {
	s.now = now
}

// Search все фильтры объединяются по AND, незаданный фильтр совпадает со всем
func (s *QueryService) Search(ctx context.Context, filter model.SlotFilter) (model.Page[*model.Slot], error) {
	filter = normalizeFilter(filter)

	if filter.Specialty != "" {
		providers, err := s.providers.ListBySpecialty(ctx, filter.Specialty)
		if err != nil {
			return model.Page[*model.Slot]{}, fmt.Errorf("list providers by specialty: %w", err)
		}
		if len(providers) == 0 {
			return model.Page[*model.Slot]{Items: []*model.Slot{}}, nil
		}
		filter.ProviderIDs = make([]string, 0, len(providers))
		for _, p := range providers {
			filter.ProviderIDs = append(filter.ProviderIDs, p.ID)
		}
		slices.Sort(filter.ProviderIDs)
	}

	key := s.cacheKey(ctx, filter)
	if key != "" {
		page, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Search cache read failed", zap.Error(err))
		} else if ok {
			return *page, nil
		}
	}

	items, total, err := s.slots.Search(ctx, filter)
	if err != nil {
		return model.Page[*model.Slot]{}, fmt.Errorf("search slots: %w", err)
	}
	if items == nil {
		items = []*model.Slot{}
	}

	page := model.Page[*model.Slot]{Items: items, Total: total}

	if key != "" {
		if err := s.cache.Set(ctx, key, &page); err != nil {
			s.logger.Warn("Search cache write failed", zap.Error(err))
		}
	}

	return page, nil
}

// SearchGrouped поиск с группировкой по времени начала
func (s *QueryService) SearchGrouped(ctx context.Context, filter model.SlotFilter) (model.Page[model.SlotGroup], error) {
	page, err := s.Search(ctx, filter)
	if err != nil {
		return model.Page[model.SlotGroup]{}, err
	}

	groups := GroupByStartTime(page.Items)
	return model.Page[model.SlotGroup]{Items: groups, Total: len(groups)}, nil
}

// ProviderWeek врач и все его слоты за неделю (Пн-Вс в его часовом поясе),
// в которую попадает date. Пустая date - сегодня по часам врача.
// Кэш не используется.
func (s *QueryService) ProviderWeek(ctx context.Context, providerID string, date model.Date) (*WeekView, error) {
	provider, err := s.providers.Resolve(ctx, strings.TrimSpace(providerID))
	if err != nil {
		return nil, fmt.Errorf("resolve provider: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidProvider, providerID)
	}

	loc := provider.Location()
	if date.IsZero() {
		date = model.DateOf(s.now(), loc)
	}

	from, to := model.WeekRange(date, loc)

	slots, _, err := s.slots.Search(ctx, model.SlotFilter{
		ProviderID: provider.ID,
		From:       from,
		To:         to,
	})
	if err != nil {
		return nil, fmt.Errorf("search week slots: %w", err)
	}

	return &WeekView{
		Provider: provider,
		Start:    model.WeekStart(date),
		Slots:    slots,
	}, nil
}

// GroupByStartTime объединяет слоты с одинаковым временем начала (до минуты)
// в одну группу; группы упорядочены по возрастанию, порядок внутри группы
// сохраняется
func GroupByStartTime(slots []*model.Slot) []model.SlotGroup {
	groups := make([]model.SlotGroup, 0)
	index := make(map[int64]int)

	for _, slot := range slots {
		start := slot.StartTime.Truncate(time.Minute)
		key := start.Unix()

		if i, ok := index[key]; ok {
			groups[i].Slots = append(groups[i].Slots, slot)
			continue
		}

		index[key] = len(groups)
		groups = append(groups, model.SlotGroup{StartTime: start, Slots: []*model.Slot{slot}})
	}

	slices.SortStableFunc(groups, func(a, b model.SlotGroup) int {
		return a.StartTime.Compare(b.StartTime)
	})

	return groups
}

// cacheKey ключ из поколения кэша и канонического вида фильтра;
// пустая строка - не кэшировать
func (s *QueryService) cacheKey(ctx context.Context, filter model.SlotFilter) string {
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.Warn("Search cache generation unavailable", zap.Error(err))
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "status=%s|provider=%s|providers=%s|study=%s|limit=%d|offset=%d",
		filter.Status, filter.ProviderID, strings.Join(filter.ProviderIDs, ","),
		filter.StudyID, filter.Limit, filter.Offset)
	if filter.Date != nil {
		fmt.Fprintf(&b, "|date=%s", filter.Date)
	}
	if !filter.From.IsZero() {
		fmt.Fprintf(&b, "|from=%d", filter.From.Unix())
	}
	if !filter.To.IsZero() {
		fmt.Fprintf(&b, "|to=%d", filter.To.Unix())
	}

	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("slots:search:%d:%x", gen, sum[:12])
}

func normalizeFilter(filter model.SlotFilter) model.SlotFilter {
	filter.ProviderID = strings.TrimSpace(filter.ProviderID)
	filter.Specialty = strings.TrimSpace(filter.Specialty)
	filter.StudyID = strings.TrimSpace(filter.StudyID)

	if filter.Limit <= 0 {
		filter.Limit = DefaultSearchLimit
	}
	if filter.Limit > MaxSearchLimit {
		filter.Limit = MaxSearchLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	return filter
}
