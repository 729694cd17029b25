package model

import (
	"errors"
	"fmt"
)

// Ошибки ядра записи на приём
var (
	ErrInvalidWindow        = errors.New("invalid time window")
	ErrInvalidInterval      = errors.New("invalid interval")
	ErrInvalidProvider      = errors.New("invalid provider")
	ErrSlotNotFound         = errors.New("slot not found")
	ErrSlotNotAvailable     = errors.New("slot not available")
	ErrInvalidTransition    = errors.New("invalid slot transition")
	ErrStudyNotEligible     = errors.New("study not eligible")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrStorageConflict      = errors.New("storage conflict")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrAttachmentNotFound   = errors.New("attachment not found")
)

// Ошибки разбора даты и времени считаются некорректным окном
var (
	ErrInvalidDate  = fmt.Errorf("%w: bad date", ErrInvalidWindow)
	ErrInvalidClock = fmt.Errorf("%w: bad clock", ErrInvalidWindow)
)

// MissingField возвращает ErrMissingRequiredField с именем поля
func MissingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingRequiredField, name)
}
