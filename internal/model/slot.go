package model

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "available" // Свободен
	SlotStatusReserved  SlotStatus = "reserved"  // Забронирован
	SlotStatusCancelled SlotStatus = "cancelled" // Не записывается: отмена возвращает слот в available
	SlotStatusCompleted SlotStatus = "completed" // Приём состоялся
)

// ParseSlotStatus проверяет строковое значение статуса
func ParseSlotStatus(s string) (SlotStatus, bool) {
	switch status := SlotStatus(s); status {
	case SlotStatusAvailable, SlotStatusReserved, SlotStatusCancelled, SlotStatusCompleted:
		return status, true
	}
	return "", false
}

// Slot дискретный интервал приёма у врача
type Slot struct {
	ID              uuid.UUID    `json:"id"`
	ProviderID      string       `json:"provider_id"`
	StartTime       time.Time    `json:"start_time"`
	LocalDate       Date         `json:"local_date"` // дата начала в часовом поясе врача
	DurationMinutes int          `json:"duration_minutes"`
	Status          SlotStatus   `json:"status"`
	AllowedStudyIDs []string     `json:"allowed_study_ids"`
	Subject         *SubjectRef  `json:"subject,omitempty"` // nil - слот свободен
	StudyID         string       `json:"study_id,omitempty"`
	ConsultReason   string       `json:"consult_reason,omitempty"`
	Attachments     []Attachment `json:"attachments"`
	CancelReason    string       `json:"cancel_reason,omitempty"` // только в снимке журнала аудита
	Version         int64        `json:"version"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// EndTime момент окончания слота
func (s *Slot) EndTime() time.Time {
	return s.StartTime.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

func (s *Slot) IsAvailable() bool {
	return s.Status == SlotStatusAvailable
}

func (s *Slot) IsReserved() bool {
	return s.Status == SlotStatusReserved
}

// IsActive слот занимает время врача (свободен или забронирован)
func (s *Slot) IsActive() bool {
	return s.Status == SlotStatusAvailable || s.Status == SlotStatusReserved
}

// AllowsStudy пустой список разрешённых исследований означает "любое"
func (s *Slot) AllowsStudy(studyID string) bool {
	return len(s.AllowedStudyIDs) == 0 || slices.Contains(s.AllowedStudyIDs, studyID)
}

// ClearBooking возвращает слот в свободное состояние
func (s *Slot) ClearBooking() {
	s.Status = SlotStatusAvailable
	s.Subject = nil
	s.StudyID = ""
	s.ConsultReason = ""
	s.Attachments = nil
}

// Clone глубокая копия, чтобы хранилище не делило срезы с вызывающим кодом
func (s *Slot) Clone() *Slot {
	if s == nil {
		return nil
	}
	c := *s
	c.AllowedStudyIDs = slices.Clone(s.AllowedStudyIDs)
	c.Attachments = slices.Clone(s.Attachments)
	if s.Subject != nil {
		subject := *s.Subject
		if s.Subject.Guest != nil {
			guest := *s.Subject.Guest
			subject.Guest = &guest
		}
		c.Subject = &subject
	}
	return &c
}

// SlotFilter условия поиска; незаданное поле совпадает со всем
type SlotFilter struct {
	Status      SlotStatus
	ProviderID  string
	ProviderIDs []string // заполняется из Specialty
	Specialty   string
	StudyID     string
	Date        *Date
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// SlotGroup слоты с одинаковым временем начала
type SlotGroup struct {
	StartTime time.Time `json:"start_time"`
	Slots     []*Slot   `json:"slots"`
}

// Page единый конверт для всех списочных ответов
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

type ClearStatus string

const (
	ClearStatusCleared   ClearStatus = "cleared"
	ClearStatusUnchanged ClearStatus = "unchanged"
	ClearStatusFailed    ClearStatus = "failed"
)

// ClearOutcome результат массовой очистки по одному слоту
type ClearOutcome struct {
	Status ClearStatus `json:"status"`
	Slot   *Slot       `json:"slot,omitempty"`
	Err    error       `json:"-"`
}

// Matches проверяет слот по всем заданным условиям фильтра.
// Дата сравнивается с гражданской датой слота у врача, а не с датой в UTC.
// Для исследования: у занятого слота сравнивается выбранное исследование,
// у свободного - список разрешённых.
func (f SlotFilter) Matches(slot *Slot) bool {
	if f.Status != "" && slot.Status != f.Status {
		return false
	}
	if f.ProviderID != "" && slot.ProviderID != f.ProviderID {
		return false
	}
	if len(f.ProviderIDs) > 0 && !slices.Contains(f.ProviderIDs, slot.ProviderID) {
		return false
	}
	if f.StudyID != "" {
		if slot.StudyID != "" {
			if slot.StudyID != f.StudyID {
				return false
			}
		} else if !slot.AllowsStudy(f.StudyID) {
			return false
		}
	}
	if f.Date != nil && slot.LocalDate != *f.Date {
		return false
	}
	if !f.From.IsZero() && slot.StartTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !slot.StartTime.Before(f.To) {
		return false
	}
	return true
}

// CompareSlots порядок выдачи: время начала, врач, ID
func CompareSlots(a, b *Slot) int {
	if c := a.StartTime.Compare(b.StartTime); c != 0 {
		return c
	}
	if c := strings.Compare(a.ProviderID, b.ProviderID); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}
