package service

import (
	"context"
	"io"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/google/uuid"
)

// SlotStore постоянное хранилище слотов.
//
// GetByID возвращает nil, nil если слота нет. Create возвращает
// model.ErrStorageConflict, если у врача уже есть активный слот на это время.
// OverlapsActive сообщает, пересекается ли полуинтервал [start, end) с активным слотом врача.
// Update применяет изменения только если версия в хранилище равна
// expectedVersion, иначе model.ErrStorageConflict; при успехе увеличивает
// slot.Version.
type SlotStore interface {
	Create(ctx context.Context, slot *model.Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Slot, error)
	OverlapsActive(ctx context.Context, providerID string, start, end time.Time) (bool, error)
	Search(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, int, error)
	Update(ctx context.Context, slot *model.Slot, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]*model.Slot, error)
}

// ProviderDirectory справочник врачей; Resolve возвращает nil, nil если врача нет
type ProviderDirectory interface {
	Resolve(ctx context.Context, providerID string) (*model.Provider, error)
	ListBySpecialty(ctx context.Context, specialty string) ([]*model.Provider, error)
}

// StudyDirectory справочник исследований; Resolve возвращает nil, nil если исследования нет
type StudyDirectory interface {
	Resolve(ctx context.Context, studyID string) (*model.Study, error)
}

// AuditLog журнал аудита только на добавление
type AuditLog interface {
	Record(ctx context.Context, event model.AuditEvent) error
}

// Notifier отправка уведомлений; вызывается асинхронно
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// FileStore хранилище байтов вложений
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (url string, err error)
	Remove(ctx context.Context, key string) error
}

// SearchCache кэш результатов поиска; поколение сбрасывается при любой мутации
type SearchCache interface {
	Get(ctx context.Context, key string) (*model.Page[*model.Slot], bool, error)
	Set(ctx context.Context, key string, page *model.Page[*model.Slot]) error
	Generation(ctx context.Context) (int64, error)
	Invalidate(ctx context.Context) error
}

// NoopCache кэш-заглушка, когда Redis не настроен
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*model.Page[*model.Slot], bool, error) {
	return nil, false, nil
}

func (NoopCache) Set(context.Context, string, *model.Page[*model.Slot]) error { return nil }

func (NoopCache) Generation(context.Context) (int64, error) { return 0, nil }

func (NoopCache) Invalidate(context.Context) error { return nil }
