package handler

import (
	"context"
	"net/http"

	"coworking/internal/bookings/service"
	"coworking/internal/maintenance"
	httputil "coworking/pkg/http"
	"coworking/pkg/logger"
	"coworking/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type MaintenanceRunner interface {
	Run(ctx context.Context) *maintenance.Report
}

type BookingHandler struct {
	service     service.BookingService
	maintenance MaintenanceRunner
	log         *logger.Logger
}

func NewBookingHandler(service service.BookingService, maintenance MaintenanceRunner, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:     service,
		maintenance: maintenance,
		log:         log,
	}
}

func (h *BookingHandler) Reserve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReservationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Reserve", err)
		return
	}

	result, err := h.service.Reserve(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Reserve", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Reserve", "operation", "WriteCreated", "error", err)
	}
}

// Revalidate answers 409 when any line had to be evicted, still carrying the
// per-line report so the cart can be updated.
func (h *BookingHandler) Revalidate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.RevalidationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Revalidate", err)
		return
	}

	result, err := h.service.Revalidate(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Revalidate", err)
		return
	}

	status := http.StatusOK
	if result.Evicted > 0 {
		status = http.StatusConflict
	}
	if err := httputil.WriteJSON(w, status, httputil.SuccessResponse{Data: result}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Revalidate", "operation", "WriteJSON", "error", err)
	}
}

func (h *BookingHandler) OrderEvent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var event model.OrderEvent
	if err := httputil.DecodeJSON(r, &event); err != nil {
		h.writeError(w, "OrderEvent", err)
		return
	}

	outcome, err := h.service.HandleOrderEvent(r.Context(), &event)
	if err != nil {
		h.writeError(w, "OrderEvent", err)
		return
	}

	if err := httputil.WriteSuccess(w, outcome); err != nil {
		h.log.Error("failed to write success response", "handler", "OrderEvent", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Reserve)
	router.POST("/api/v1/cart/revalidate", h.Revalidate)
	router.POST("/api/v1/orders/events", h.OrderEvent)

	router.GET("/api/v1/admin/resources/:resource_id/locks", h.ListLocks)
	router.DELETE("/api/v1/admin/resources/:resource_id/locks/:token", h.ForceUnlock)
	router.POST("/api/v1/admin/resources/:resource_id/rebuild", h.Rebuild)
	router.GET("/api/v1/admin/reservations", h.Planning)
	router.POST("/api/v1/admin/maintenance", h.RunMaintenance)
}
