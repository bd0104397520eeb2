package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"mediq/internal/slots/service"
	httputil "mediq/pkg/http"
	"mediq/pkg/logger"
	"mediq/pkg/model"
	"mediq/pkg/sealer"
)

type SlotHandler struct {
	service service.SlotService
	sealer  *sealer.Sealer
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, sealer *sealer.Sealer, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		sealer:  sealer,
		log:     log,
	}
}

type createSlotsRequest struct {
	Slots           []*model.SlotInput `json:"slots"`
	ReplaceExisting bool               `json:"replace_existing"`
}

// availableSlot decorates a slot with the opaque booking token clients hand
// back to the booking endpoint.
type availableSlot struct {
	*model.AvailabilitySlot
	BookingToken string `json:"booking_token,omitempty"`
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	doctorID := ps.ByName("doctorId")
	if doctorID == "" {
		if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "doctorId parameter is required",
		}); err != nil {
			h.log.Error("failed to write bad request response", "handler", "Create", "operation", "WriteJSON", "error", err)
		}
		return
	}

	var req createSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	counts, err := h.service.CreateSlots(r.Context(), doctorID, req.Slots, req.ReplaceExisting)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, counts); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) ListAvailable(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	doctorID := ps.ByName("doctorId")

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListAvailable", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	slots, err := h.service.ListAvailable(r.Context(), doctorID, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListAvailable", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	decorated := make([]availableSlot, 0, len(slots))
	for _, slot := range slots {
		token, err := h.sealer.SealSlotToken(slot.DoctorID, slot.ID)
		if err != nil {
			h.log.Error("failed to seal booking token", "slot_id", slot.ID, "error", err)
			token = ""
		}
		decorated = append(decorated, availableSlot{AvailabilitySlot: slot, BookingToken: token})
	}

	if err := httputil.WriteSuccess(w, decorated); err != nil {
		h.log.Error("failed to write success response", "handler", "ListAvailable", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) ListByDoctor(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	doctorID := ps.ByName("doctorId")

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByDoctor", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	slots, totalCount, err := h.service.ListByDoctor(r.Context(), doctorID, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByDoctor", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, slots, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListByDoctor", "operation", "WritePaginated", "error", err)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/doctors/:doctorId/slots", h.Create)
	router.GET("/api/v1/doctors/:doctorId/slots/available", h.ListAvailable)
	router.GET("/api/v1/doctors/:doctorId/slots", h.ListByDoctor)
}
