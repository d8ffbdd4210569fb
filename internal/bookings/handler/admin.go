package handler

import (
	"net/http"

	apperrors "coworking/pkg/errors"
	httputil "coworking/pkg/http"

	"github.com/julienschmidt/httprouter"
)

func (h *BookingHandler) ListLocks(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	active, err := h.service.ListLocks(r.Context(), ps.ByName("resource_id"))
	if err != nil {
		h.writeError(w, "ListLocks", err)
		return
	}

	if err := httputil.WriteSuccess(w, active); err != nil {
		h.log.Error("failed to write success response", "handler", "ListLocks", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ForceUnlock(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.ForceUnlock(r.Context(), ps.ByName("resource_id"), ps.ByName("token")); err != nil {
		h.writeError(w, "ForceUnlock", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Rebuild(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	result, err := h.service.Rebuild(r.Context(), ps.ByName("resource_id"))
	if err != nil {
		h.writeError(w, "Rebuild", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Rebuild", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Planning(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	from, to := query.Get("from"), query.Get("to")
	if from == "" || to == "" {
		h.writeError(w, "Planning", apperrors.InvalidInput("from and to query parameters are required"))
		return
	}

	drafts, err := h.service.Planning(r.Context(), from, to)
	if err != nil {
		h.writeError(w, "Planning", err)
		return
	}

	if err := httputil.WriteSuccess(w, drafts); err != nil {
		h.log.Error("failed to write success response", "handler", "Planning", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RunMaintenance(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.maintenance == nil {
		h.writeError(w, "RunMaintenance", apperrors.Unavailable("Maintenance", nil))
		return
	}

	report := h.maintenance.Run(r.Context())

	status := http.StatusOK
	if report.Failed() {
		status = http.StatusMultiStatus
	}
	if err := httputil.WriteJSON(w, status, httputil.SuccessResponse{Data: report}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "RunMaintenance", "operation", "WriteJSON", "error", err)
	}
}
