package model

import (
	"time"

	"github.com/google/uuid"
)

type AttachmentKind string

const (
	AttachmentKindStudyOrder   AttachmentKind = "study_order"
	AttachmentKindResult       AttachmentKind = "result"
	AttachmentKindPrescription AttachmentKind = "prescription"
	AttachmentKindOther        AttachmentKind = "other"
)

// ParseAttachmentKind неизвестный тип считается "other"
func ParseAttachmentKind(s string) AttachmentKind {
	switch kind := AttachmentKind(s); kind {
	case AttachmentKindStudyOrder, AttachmentKindResult, AttachmentKindPrescription:
		return kind
	}
	return AttachmentKindOther
}

// Attachment ссылка на файл; сами байты лежат во внешнем хранилище
type Attachment struct {
	ID         uuid.UUID      `json:"id"`
	Filename   string         `json:"filename"`
	URL        string         `json:"url"`
	ObjectKey  string         `json:"object_key,omitempty"`
	Kind       AttachmentKind `json:"kind"`
	UploadedAt time.Time      `json:"uploaded_at"`
}
