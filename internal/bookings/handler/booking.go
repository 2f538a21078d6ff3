package handler

import (
	"context"
	"net/http"
	"strings"

	"courtbook/internal/bookings/service"
	apperrors "courtbook/pkg/errors"
	httputil "courtbook/pkg/http"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

var knownStatuses = map[model.BookingStatus]bool{
	model.BookingPending:   true,
	model.BookingConfirmed: true,
	model.BookingCheckedIn: true,
	model.BookingCompleted: true,
	model.BookingCancelled: true,
	model.BookingNoShow:    true,
}

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Create(r.Context(), &req, httputil.Actor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	h.respond(w, "GetByID", booking, err)
}

func (h *BookingHandler) GetByReference(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByReference(r.Context(), ps.ByName("reference"))
	h.respond(w, "GetByReference", booking, err)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bookings, total, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func parseFilter(r *http.Request) (model.BookingFilter, error) {
	query := r.URL.Query()
	filter := model.BookingFilter{
		CourtID: strings.TrimSpace(query.Get("court_id")),
		UserID:  strings.TrimSpace(query.Get("user_id")),
	}
	if raw := query.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := model.BookingStatus(strings.ToLower(strings.TrimSpace(s)))
			if !knownStatuses[status] {
				return filter, apperrors.InvalidInput("invalid status parameter: " + s)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	var err error
	if filter.From, err = httputil.ExtractTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = httputil.ExtractTime(r, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start, err := httputil.ExtractTime(r, "start")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	end, err := httputil.ExtractTime(r, "end")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if start == nil || end == nil {
		httputil.WriteError(w, apperrors.InvalidInput("start and end query parameters are required"))
		return
	}

	result, err := h.service.Availability(r.Context(), r.URL.Query().Get("court_id"), *start, *end)
	h.respond(w, "Availability", result, err)
}

func (h *BookingHandler) Quote(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.QuoteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	breakdown, err := h.service.Quote(r.Context(), &req)
	h.respond(w, "Quote", breakdown, err)
}

func (h *BookingHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	from, err := httputil.ExtractTime(r, "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := httputil.ExtractTime(r, "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), r.URL.Query().Get("court_id"), from, to)
	h.respond(w, "Stats", stats, err)
}

func (h *BookingHandler) RetryPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.RetryPaymentRequest
	if err := decodeOptional(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.RetryPayment(r.Context(), ps.ByName("id"), &req, httputil.Actor(r))
	h.respond(w, "RetryPayment", result, err)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	version, err := httputil.ExtractVersion(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req model.CancelBookingRequest
	if err := decodeOptional(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Cancel(r.Context(), ps.ByName("id"), version, httputil.Actor(r), req.Reason)
	h.respond(w, "Cancel", result, err)
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	version, err := httputil.ExtractVersion(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req model.RescheduleBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := h.service.Reschedule(r.Context(), ps.ByName("id"), version, &req, httputil.Actor(r))
	h.respond(w, "Reschedule", booking, err)
}

func (h *BookingHandler) CheckIn(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "CheckIn", h.service.CheckIn)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "Complete", h.service.Complete)
}

func (h *BookingHandler) MarkNoShow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "MarkNoShow", h.service.MarkNoShow)
}

type transitionFunc func(ctx context.Context, id string, expectedVersion int64, actor string) (*model.Booking, error)

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, ps httprouter.Params, name string, fn transitionFunc) {
	version, err := httputil.ExtractVersion(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := fn(r.Context(), ps.ByName("id"), version, httputil.Actor(r))
	h.respond(w, name, booking, err)
}

func (h *BookingHandler) respond(w http.ResponseWriter, name string, data any, err error) {
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
	}
}

// decodeOptional leaves dst untouched when the request carries no body.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	return httputil.DecodeJSON(r, dst)
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/availability", h.Availability)
	router.POST("/api/v1/bookings/quote", h.Quote)
	router.GET("/api/v1/bookings/stats", h.Stats)
	router.GET("/api/v1/bookings/reference/:reference", h.GetByReference)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id", h.Reschedule)
	router.POST("/api/v1/bookings/id/:id/retry-payment", h.RetryPayment)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/bookings/id/:id/check-in", h.CheckIn)
	router.POST("/api/v1/bookings/id/:id/complete", h.Complete)
	router.POST("/api/v1/bookings/id/:id/no-show", h.MarkNoShow)
}
