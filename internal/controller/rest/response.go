package rest

import (
	"errors"
	"net/http"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Response общий конверт ответа
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func BuildSuccessResponse(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, Response{Success: true, Data: data})
}

// BuildErrorResponse подбирает HTTP-код по ошибке домена
func BuildErrorResponse(log *zap.Logger, w http.ResponseWriter, err error) {
	code := StatusFor(err)

	message := err.Error()
	if code == http.StatusInternalServerError {
		log.Error("Request failed", zap.Error(err))
		message = "internal error"
	} else {
		log.Debug("Request rejected", zap.Int("status", code), zap.Error(err))
	}

	writeJSON(w, code, Response{Success: false, Message: message})
}

// StatusFor HTTP-код для ошибки
func StatusFor(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrs),
		errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrInvalidWindow),
		errors.Is(err, model.ErrInvalidInterval),
		errors.Is(err, model.ErrMissingRequiredField):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrSlotNotFound),
		errors.Is(err, model.ErrAttachmentNotFound),
		errors.Is(err, model.ErrInvalidProvider):
		return http.StatusNotFound
	case errors.Is(err, model.ErrSlotNotAvailable),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrStorageConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrStudyNotEligible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
