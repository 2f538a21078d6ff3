package handler

import (
	"net/http"
	"strings"

	"courtbook/internal/courts/service"
	apperrors "courtbook/pkg/errors"
	httputil "courtbook/pkg/http"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type CourtHandler struct {
	service service.CourtService
	log     *logger.Logger
}

func NewCourtHandler(service service.CourtService, log *logger.Logger) *CourtHandler {
	return &CourtHandler{
		service: service,
		log:     log,
	}
}

func (h *CourtHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var court model.Court
	if err := httputil.DecodeJSON(r, &court); err != nil {
		httputil.WriteError(w, err)
		return
	}
	court.ID = ""

	if err := h.service.Create(r.Context(), &court); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteCreated(w, court); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *CourtHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	court, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, court); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CourtHandler) GetByCode(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	court, err := h.service.GetByCode(r.Context(), ps.ByName("code"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, court); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByCode", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CourtHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status := model.CourtStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	switch status {
	case "", model.CourtActive, model.CourtMaintenance, model.CourtClosed, model.CourtReserved:
	default:
		httputil.WriteError(w, apperrors.InvalidInput("invalid status parameter: "+string(status)))
		return
	}

	courts, total, err := h.service.GetAll(r.Context(), status, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WritePaginated(w, courts, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *CourtHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	version, err := httputil.ExtractVersion(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var updates model.CourtUpdate
	if err := httputil.DecodeJSON(r, &updates); err != nil {
		httputil.WriteError(w, err)
		return
	}

	court, err := h.service.Update(r.Context(), ps.ByName("id"), version, &updates)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, court); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CourtHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	version, err := httputil.ExtractVersion(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id"), version); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *CourtHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/courts", h.Create)
	router.GET("/api/v1/courts", h.GetAll)
	router.GET("/api/v1/courts/id/:id", h.GetByID)
	router.GET("/api/v1/courts/code/:code", h.GetByCode)
	router.PATCH("/api/v1/courts/id/:id", h.Update)
	router.DELETE("/api/v1/courts/id/:id", h.Delete)
}
