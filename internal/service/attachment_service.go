package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadInput файл для загрузки к слоту
type UploadInput struct {
	Filename    string
	Kind        model.AttachmentKind
	ContentType string
	Size        int64
	Content     io.Reader
}

// AttachmentService ведёт ссылки на файлы забронированного слота.
// Байты хранит FileStore, ядро записывает только ссылку.
type AttachmentService struct {
	mutator *mutator
	files   FileStore
	effects *effects
	logger  *zap.Logger
	now     func() time.Time
}

func NewAttachmentService(
	slots SlotStore,
	files FileStore,
	audit AuditLog,
	cache SearchCache,
	logger *zap.Logger,
) *AttachmentService {
	s := &AttachmentService{
		files:   files,
		effects: newEffects(audit, nil, cache, logger),
		logger:  logger,
		now:     time.Now,
	}
	s.mutator = &mutator{slots: slots, logger: logger, now: func() time.Time { return s.now() }}
	return s
}

// AttachFile добавляет ссылку на файл к слоту, который не свободен
func (s *AttachmentService) AttachFile(ctx context.Context, slotID uuid.UUID, ref model.Attachment) (*model.Slot, error) {
	if strings.TrimSpace(ref.Filename) == "" {
		return nil, model.MissingField("filename")
	}
	if strings.TrimSpace(ref.URL) == "" {
		return nil, model.MissingField("url")
	}
	if ref.ID == uuid.Nil {
		ref.ID = uuid.New()
	}
	if ref.UploadedAt.IsZero() {
		ref.UploadedAt = s.now()
	}
	if ref.Kind == "" {
		ref.Kind = model.AttachmentKindOther
	}

	_, updated, err := s.mutator.apply(ctx, slotID, func(slot *model.Slot) error {
		if slot.IsAvailable() {
			return fmt.Errorf("%w: cannot attach files to available slot %s", model.ErrInvalidTransition, slot.ID)
		}
		slot.Attachments = append(slot.Attachments, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attachment added",
		zap.String("slot_id", slotID.String()),
		zap.String("attachment_id", ref.ID.String()),
		zap.String("filename", ref.Filename),
	)

	s.effects.record(ctx, model.AuditEvent{
		Action:     model.AuditActionAttachmentAdded,
		ProviderID: updated.ProviderID,
		SlotIDs:    []uuid.UUID{slotID},
		Reason:     ref.Filename,
	})
	s.effects.invalidate(ctx)

	return updated, nil
}

// RemoveFile убирает ссылку на файл; объект в хранилище удаляется по возможности
func (s *AttachmentService) RemoveFile(ctx context.Context, slotID, fileID uuid.UUID) (*model.Slot, error) {
	var removed model.Attachment

	_, updated, err := s.mutator.apply(ctx, slotID, func(slot *model.Slot) error {
		if slot.IsAvailable() {
			return fmt.Errorf("%w: available slot %s has no attachments", model.ErrInvalidTransition, slot.ID)
		}
		idx := slices.IndexFunc(slot.Attachments, func(a model.Attachment) bool { return a.ID == fileID })
		if idx < 0 {
			return fmt.Errorf("%w: %s", model.ErrAttachmentNotFound, fileID)
		}
		removed = slot.Attachments[idx]
		slot.Attachments = slices.Delete(slot.Attachments, idx, idx+1)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if removed.ObjectKey != "" && s.files != nil {
		if err := s.files.Remove(ctx, removed.ObjectKey); err != nil {
			s.logger.Warn("Failed to remove attachment object",
				zap.String("object_key", removed.ObjectKey),
				zap.Error(err),
			)
		}
	}

	s.effects.record(ctx, model.AuditEvent{
		Action:     model.AuditActionAttachmentRemoved,
		ProviderID: updated.ProviderID,
		SlotIDs:    []uuid.UUID{slotID},
		Reason:     removed.Filename,
	})
	s.effects.invalidate(ctx)

	return updated, nil
}

// Upload сохраняет байты в FileStore и записывает ссылку в слот.
// Если ссылку записать не удалось, объект удаляется.
func (s *AttachmentService) Upload(ctx context.Context, slotID uuid.UUID, in UploadInput) (*model.Slot, error) {
	if s.files == nil {
		return nil, fmt.Errorf("file store is not configured: %w", model.ErrStorageUnavailable)
	}
	if in.Content == nil {
		return nil, model.MissingField("file")
	}

	filename := path.Base(strings.TrimSpace(in.Filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, model.MissingField("filename")
	}

	// Не грузим байты для слота, к которому их всё равно нельзя привязать
	slot, err := s.mutator.load(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.IsAvailable() {
		return nil, fmt.Errorf("%w: cannot attach files to available slot %s", model.ErrInvalidTransition, slot.ID)
	}

	attachmentID := uuid.New()
	key := fmt.Sprintf("slots/%s/%s-%s", slotID, attachmentID, filename)

	url, err := s.files.Put(ctx, key, in.Content, in.Size, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("put attachment: %w", err)
	}

	updated, err := s.AttachFile(ctx, slotID, model.Attachment{
		ID:        attachmentID,
		Filename:  filename,
		URL:       url,
		ObjectKey: key,
		Kind:      in.Kind,
	})
	if err != nil {
		if rmErr := s.files.Remove(ctx, key); rmErr != nil {
			s.logger.Warn("Failed to roll back uploaded object",
				zap.String("object_key", key),
				zap.Error(rmErr),
			)
		}
		return nil, err
	}

	return updated, nil
}
