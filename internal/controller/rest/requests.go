package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var errBadRequest = errors.New("bad request")

const maxBodyBytes = 1 << 20

// AvailabilityRequest либо окно дня (date/start/end), либо явный список starts
type AvailabilityRequest struct {
	Date            string      `json:"date" validate:"required_without=Starts"`
	Start           string      `json:"start" validate:"required_with=Date"`
	End             string      `json:"end" validate:"required_with=Date"`
	IntervalMinutes int         `json:"interval_minutes" validate:"required,gt=0"`
	Starts          []time.Time `json:"starts" validate:"required_without=Date"`
	AllowedStudyIDs []string    `json:"allowed_study_ids" validate:"omitempty,dive,required"`
}

type ReservationRequest struct {
	PatientID     string `json:"patient_id" validate:"required"`
	StudyID       string `json:"study_id" validate:"required"`
	ConsultReason string `json:"consult_reason" validate:"required"`
}

type GuestReservationRequest struct {
	Guest         model.GuestInfo `json:"guest" validate:"required"`
	StudyID       string          `json:"study_id"`
	ConsultReason string          `json:"consult_reason"`
}

type CancellationRequest struct {
	Reason string `json:"reason"`
}

type BulkRequest struct {
	SlotIDs []uuid.UUID `json:"slot_ids" validate:"required,min=1,max=500"`
}

type BulkDeleteResponse struct {
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors,omitempty"`
}

// decodeBody читает JSON и проверяет теги validate
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return h.validate.Struct(dst)
}

// parseFilter собирает фильтр из query-параметров
func parseFilter(r *http.Request) (model.SlotFilter, error) {
	q := r.URL.Query()

	filter := model.SlotFilter{
		ProviderID: q.Get("provider_id"),
		Specialty:  q.Get("specialty"),
		StudyID:    q.Get("study_id"),
	}

	if v := q.Get("status"); v != "" {
		status, ok := model.ParseSlotStatus(strings.ToLower(v))
		if !ok {
			return filter, fmt.Errorf("%w: unknown status %q", errBadRequest, v)
		}
		filter.Status = status
	}

	if v := q.Get("date"); v != "" {
		date, err := model.ParseDate(v)
		if err != nil {
			return filter, err
		}
		filter.Date = &date
	}

	for key, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return filter, fmt.Errorf("%w: %s must be RFC3339", errBadRequest, key)
			}
			*dst = t
		}
	}

	var err error
	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		return filter, fmt.Errorf("%w: limit: %v", errBadRequest, err)
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		return filter, fmt.Errorf("%w: offset: %v", errBadRequest, err)
	}

	return filter, nil
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return n, nil
}

func parseUUID(s, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid id", errBadRequest, name)
	}
	return id, nil
}
