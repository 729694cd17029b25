package model

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type SubjectKind string

const (
	SubjectKindPatient SubjectKind = "patient" // Зарегистрированный пациент
	SubjectKindGuest   SubjectKind = "guest"   // Запись без учётной записи
)

// GuestInfo снимок данных незарегистрированного пациента
type GuestInfo struct {
	Name       string `json:"name" validate:"required"`
	NationalID string `json:"national_id" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
}

// SubjectRef на кого записан слот
type SubjectRef struct {
	Kind      SubjectKind `json:"kind"`
	PatientID string      `json:"patient_id,omitempty"`
	Guest     *GuestInfo  `json:"guest,omitempty"`
}

func PatientSubject(patientID string) SubjectRef {
	return SubjectRef{Kind: SubjectKindPatient, PatientID: strings.TrimSpace(patientID)}
}

func GuestSubject(info GuestInfo) SubjectRef {
	info.Name = strings.TrimSpace(info.Name)
	info.NationalID = strings.TrimSpace(info.NationalID)
	info.Phone = strings.TrimSpace(info.Phone)
	return SubjectRef{Kind: SubjectKindGuest, Guest: &info}
}

// Validate проверяет обязательные поля в зависимости от типа
func (r SubjectRef) Validate() error {
	switch r.Kind {
	case SubjectKindPatient:
		if r.PatientID == "" {
			return MissingField("patient_id")
		}
		return nil
	case SubjectKindGuest:
		if r.Guest == nil {
			return MissingField("guest")
		}
		if err := validate.Struct(r.Guest); err != nil {
			return MissingField(err.Error())
		}
		return nil
	default:
		return MissingField("subject")
	}
}

// DisplayName имя для уведомлений
func (r SubjectRef) DisplayName() string {
	if r.Kind == SubjectKindGuest && r.Guest != nil {
		return r.Guest.Name
	}
	return r.PatientID
}
