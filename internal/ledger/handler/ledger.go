package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"mediq/internal/ledger/service"
	httputil "mediq/pkg/http"
	"mediq/pkg/logger"
)

type LedgerHandler struct {
	service service.LedgerService
	log     *logger.Logger
}

func NewLedgerHandler(service service.LedgerService, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: service,
		log:     log,
	}
}

func (h *LedgerHandler) GetByAppointment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	appointmentID := ps.ByName("appointmentId")
	if appointmentID == "" {
		if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "appointmentId parameter is required",
		}); err != nil {
			h.log.Error("failed to write bad request response", "handler", "GetByAppointment", "operation", "WriteJSON", "error", err)
		}
		return
	}

	entry, err := h.service.GetByAppointment(r.Context(), appointmentID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByAppointment", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, entry); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByAppointment", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LedgerHandler) ListByDoctor(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	doctorID := ps.ByName("doctorId")

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByDoctor", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	entries, totalCount, err := h.service.ListByDoctor(r.Context(), doctorID, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByDoctor", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, entries, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListByDoctor", "operation", "WritePaginated", "error", err)
	}
}

func (h *LedgerHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/ledger/appointment/:appointmentId", h.GetByAppointment)
	router.GET("/api/v1/ledger/doctors/:doctorId", h.ListByDoctor)
}
