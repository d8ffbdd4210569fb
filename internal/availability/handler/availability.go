package handler

import (
	"fmt"
	"net/http"

	"coworking/internal/availability/service"
	"coworking/internal/calendar"
	apperrors "coworking/pkg/errors"
	httputil "coworking/pkg/http"
	"coworking/pkg/logger"
	"coworking/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityHandler struct {
	service service.AvailabilityService
	log     *logger.Logger
}

func NewAvailabilityHandler(service service.AvailabilityService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log,
	}
}

// GetMonth serves the day statuses of one month; month defaults to the
// current one.
func (h *AvailabilityHandler) GetMonth(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	resourceID := ps.ByName("resource_id")

	month := h.service.CurrentMonth()
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := calendar.ParseMonthKey(raw)
		if err != nil {
			h.writeError(w, "GetMonth", apperrors.InvalidInput(fmt.Sprintf("invalid month parameter: %s, must be YYYY-MM", raw)))
			return
		}
		month = parsed
	}

	availability, err := h.service.GetMonth(r.Context(), resourceID, month)
	if err != nil {
		h.writeError(w, "GetMonth", err)
		return
	}

	if err := httputil.WriteSuccess(w, availability); err != nil {
		h.log.Error("failed to write success response", "handler", "GetMonth", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) Quote(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.QuoteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Quote", err)
		return
	}

	quote, err := h.service.Quote(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Quote", err)
		return
	}

	if err := httputil.WriteSuccess(w, quote); err != nil {
		h.log.Error("failed to write success response", "handler", "Quote", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/availability/:resource_id", h.GetMonth)
	router.POST("/api/v1/availability/quote", h.Quote)
}
