package rest

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"slices"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/Freeeeeet/turnos/internal/render"
	"github.com/Freeeeeet/turnos/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxUploadBytes = 32 << 20

// Services зависимости обработчиков
type Services struct {
	Planner     *service.PlannerService
	Booking     *service.BookingService
	Query       *service.QueryService
	Attachments *service.AttachmentService
	// Health проверка хранилища для /healthz; nil - всегда ок
	Health func(ctx context.Context) error
}

type Handler struct {
	services Services
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(services Services, logger *zap.Logger) *Handler {
	return &Handler{
		services: services,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateAvailability POST /providers/{providerID}/availability
func (h *Handler) CreateAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	providerID := chi.URLParam(r, "providerID")

	var (
		created []*model.Slot
		err     error
	)

	if len(req.Starts) > 0 {
		created, err = h.services.Planner.CreateAvailability(r.Context(), providerID,
			slices.Values(req.Starts), req.IntervalMinutes, req.AllowedStudyIDs)
	} else {
		var dayReq service.AvailabilityRequest
		dayReq, err = toDayRequest(providerID, req)
		if err == nil {
			created, err = h.services.Planner.PlanDay(r.Context(), dayReq)
		}
	}
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	BuildSuccessResponse(w, http.StatusCreated, model.Page[*model.Slot]{Items: created, Total: len(created)})
}

func toDayRequest(providerID string, req AvailabilityRequest) (service.AvailabilityRequest, error) {
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return service.AvailabilityRequest{}, err
	}
	start, err := model.ParseClock(req.Start)
	if err != nil {
		return service.AvailabilityRequest{}, err
	}
	end, err := model.ParseClock(req.End)
	if err != nil {
		return service.AvailabilityRequest{}, err
	}

	return service.AvailabilityRequest{
		ProviderID:      providerID,
		Date:            date,
		StartClock:      start,
		EndClock:        end,
		IntervalMinutes: req.IntervalMinutes,
		AllowedStudyIDs: req.AllowedStudyIDs,
	}, nil
}

// ProviderWeekImage GET /providers/{providerID}/week.png?date=YYYY-MM-DD
func (h *Handler) ProviderWeekImage(w http.ResponseWriter, r *http.Request) {
	// Без date неделя считается по часам врача
	var date model.Date
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := model.ParseDate(v)
		if err != nil {
			BuildErrorResponse(h.logger, w, err)
			return
		}
		date = parsed
	}

	week, err := h.services.Query.ProviderWeek(r.Context(), chi.URLParam(r, "providerID"), date)
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	image, err := render.WeekPNG(render.Week{
		Start:    week.Start,
		Location: week.Provider.Location(),
		Slots:    week.Slots,
	})
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image)
}

// SearchSlots GET /slots
func (h *Handler) SearchSlots(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	page, err := h.services.Query.Search(r.Context(), filter)
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	BuildSuccessResponse(w, http.StatusOK, page)
}

// SearchGrouped GET /slots/grouped
func (h *Handler) SearchGrouped(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	page, err := h.services.Query.SearchGrouped(r.Context(), filter)
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	BuildSuccessResponse(w, http.StatusOK, page)
}

// GetSlot GET /slots/{slotID}
func (h *Handler) GetSlot(w http.ResponseWriter, r *http.Request) {
	slotID, err := parseUUID(chi.URLParam(r, "slotID"), "slotID")
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	slot, err := h.services.Booking.GetSlot(r.Context(), slotID)
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	BuildSuccessResponse(w, http.StatusOK, slot)
}

// ReserveSlot POST /slots/{slotID}/reservation
func (h *Handler) ReserveSlot(w http.ResponseWriter, r *http.Request) {
	slotID, err := parseUUID(chi.URLParam(r, "slotID"), "slotID")
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	var req ReservationRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	slot, err := h.services.Booking.Reserve(r.Context(), slotID,
		model.PatientSubject(req.PatientID), req.StudyID, req.ConsultReason)
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	BuildSuccessResponse(w, http.StatusOK, slot)
}

// ReserveSlotAsGuest POST /slots/{slotID}/guest-reservation
func (h *Handler) ReserveSlotAsGuest(w http.ResponseWriter, r *http.Request) {
	slotID, err := parseUUID(chi.URLParam(r, "slotID"), "slotID")
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	var req GuestReservationRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	slot, err := h.services.Booking.ReserveAsGuest(r.Context(), slotID, req.Guest, req.ConsultReason, req.StudyID)
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	BuildSuccessResponse(w, http.StatusOK, slot)
}

// CancelSlot POST /slots/{slotID}/cancellation
func (h *Handler) CancelSlot(w http.ResponseWriter, r *http.Request) {
	slotID, err := parseUUID(chi.URLParam(r, "slotID"), "slotID")
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	var req CancellationRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	slot, err := h.services.Booking.Cancel(r.Context(), slotID, req.Reason)
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	BuildSuccessResponse(w, http.StatusOK, slot)
}

// CompleteSlot POST /slots/{slotID}/completion
func (h *Handler) CompleteSlot(w http.ResponseWriter, r *http.Request) {
	slotID, err := parseUUID(chi.URLParam(r, "slotID"), "slotID")
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	slot, err := h.services.Booking.MarkCompleted(r.Context(), slotID)
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	BuildSuccessResponse(w, http.StatusOK, slot)
}

type clearOutcomeDTO struct {
	Status model.ClearStatus `json:"status"`
	Slot   *model.Slot       `json:"slot,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// BulkClearSlots POST /slots/bulk-clear
func (h *Handler) BulkClearSlots(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	outcomes := h.services.Booking.BulkClear(r.Context(), req.SlotIDs)

	out := make(map[string]clearOutcomeDTO, len(outcomes))
	for id, outcome := range outcomes {
		dto := clearOutcomeDTO{Status: outcome.Status, Slot: outcome.Slot}
		if outcome.Err != nil {
			dto.Error = outcome.Err.Error()
		}
		out[id.String()] = dto
	}

	BuildSuccessResponse(w, http.StatusOK, out)
}

// BulkDeleteSlots POST /slots/bulk-delete; частичный успех - тоже 200
func (h *Handler) BulkDeleteSlots(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	deleted, err := h.services.Booking.BulkDelete(r.Context(), req.SlotIDs)

	resp := BulkDeleteResponse{Deleted: deleted}
	if err != nil {
		if deleted == 0 && StatusFor(err) == http.StatusServiceUnavailable {
			BuildErrorResponse(h.logger, w, err)
			return
		}
		resp.Errors = splitJoined(err)
	}

	BuildSuccessResponse(w, http.StatusOK, resp)
}

// AttachFile POST /slots/{slotID}/attachments: multipart upload или JSON-ссылка
func (h *Handler) AttachFile(w http.ResponseWriter, r *http.Request) {
	slotID, err := parseUUID(chi.URLParam(r, "slotID"), "slotID")
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		h.attachLink(w, r, slotID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		BuildErrorResponse(h.logger, w, fmt.Errorf("%w: invalid multipart form: %v", errBadRequest, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		BuildErrorResponse(h.logger, w, model.MissingField("file"))
		return
	}
	defer file.Close()

	slot, err := h.services.Attachments.Upload(r.Context(), slotID, service.UploadInput{
		Filename:    header.Filename,
		Kind:        model.ParseAttachmentKind(r.FormValue("kind")),
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	BuildSuccessResponse(w, http.StatusCreated, slot)
}

type attachLinkRequest struct {
	Filename string `json:"filename" validate:"required"`
	URL      string `json:"url" validate:"required,url"`
	Kind     string `json:"kind"`
}

func (h *Handler) attachLink(w http.ResponseWriter, r *http.Request, slotID uuid.UUID) {
	var req attachLinkRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	slot, err := h.services.Attachments.AttachFile(r.Context(), slotID, model.Attachment{
		Filename: req.Filename,
		URL:      req.URL,
		Kind:     model.ParseAttachmentKind(req.Kind),
	})
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	BuildSuccessResponse(w, http.StatusCreated, slot)
}

// RemoveFile DELETE /slots/{slotID}/attachments/{fileID}
func (h *Handler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	slotID, err := parseUUID(chi.URLParam(r, "slotID"), "slotID")
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}
	fileID, err := parseUUID(chi.URLParam(r, "fileID"), "fileID")
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	slot, err := h.services.Attachments.RemoveFile(r.Context(), slotID, fileID)
	if err != nil {
		BuildErrorResponse(h.logger, w, err)
		return
	}

	BuildSuccessResponse(w, http.StatusOK, slot)
}

// Health GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.services.Health != nil {
		if err := h.services.Health(r.Context()); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, Response{Success: false, Message: "storage unavailable"})
			return
		}
	}
	BuildSuccessResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// splitJoined разворачивает errors.Join в список сообщений
func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
