package handler

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"mediq/internal/appointments/service"
	httputil "mediq/pkg/http"
	"mediq/pkg/logger"
)

type AppointmentHandler struct {
	service service.AppointmentService
	log     *logger.Logger
}

func NewAppointmentHandler(service service.AppointmentService, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		log:     log,
	}
}

// List serves the appointment history for either side of the consultation:
// exactly one of patient_id or doctor_id must be given.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	patientID := strings.TrimSpace(query.Get("patient_id"))
	doctorID := strings.TrimSpace(query.Get("doctor_id"))

	if (patientID == "") == (doctorID == "") {
		if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Exactly one of 'patient_id' or 'doctor_id' query parameters is required",
		}); err != nil {
			h.log.Error("failed to write bad request response", "handler", "List", "operation", "WriteJSON", "error", err)
		}
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var (
		appointments interface{}
		totalCount   int64
	)
	if patientID != "" {
		appointments, totalCount, err = h.service.ListByPatient(r.Context(), patientID, limit, offset)
	} else {
		appointments, totalCount, err = h.service.ListByDoctor(r.Context(), doctorID, limit, offset)
	}
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, appointments, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *AppointmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/appointments", h.List)
}
