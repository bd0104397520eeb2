package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"mediq/internal/booking/service"
	apperrors "mediq/pkg/errors"
	httputil "mediq/pkg/http"
	"mediq/pkg/logger"
	"mediq/pkg/sealer"
)

type BookingHandler struct {
	service service.BookingService
	sealer  *sealer.Sealer
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, sealer *sealer.Sealer, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		sealer:  sealer,
		log:     log,
	}
}

type bookRequest struct {
	PatientID string `json:"patient_id"`
	SlotID    string `json:"slot_id"`
	SlotToken string `json:"slot_token"`
	Notes     string `json:"notes"`
}

type cancelRequest struct {
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Refund    bool   `json:"refund"`
}

// Book accepts either a raw slot_id or the opaque slot_token from the
// availability listing. Tokens are preferred for untrusted clients since
// they cannot be forged or enumerated.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Book", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if req.PatientID == "" {
		actorID, _ := httputil.ExtractActor(r)
		req.PatientID = actorID
	}

	slotID := req.SlotID
	if req.SlotToken != "" {
		_, tokenSlotID, err := h.sealer.OpenSlotToken(req.SlotToken)
		if err != nil {
			h.log.Warn("Rejected booking with invalid slot token", "error", err)
			if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid slot token")); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "Book", "operation", "WriteError", "error", writeErr)
			}
			return
		}
		slotID = tokenSlotID
	}

	details, err := h.service.Book(r.Context(), req.PatientID, slotID, req.Notes)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Book", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, details); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "ID parameter is required",
		}); err != nil {
			h.log.Error("failed to write bad request response", "handler", "Cancel", "operation", "WriteJSON", "error", err)
		}
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Cancel", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if req.ActorID == "" {
		req.ActorID, req.ActorRole = httputil.ExtractActor(r)
	}

	result, err := h.service.Cancel(r.Context(), id, req.ActorID, req.ActorRole, req.Refund)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "ID parameter is required",
		}); err != nil {
			h.log.Error("failed to write bad request response", "handler", "GetByID", "operation", "WriteJSON", "error", err)
		}
		return
	}

	details, err := h.service.GetDetails(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, details); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/appointments", h.Book)
	router.POST("/api/v1/appointments/id/:id/cancel", h.Cancel)
	router.GET("/api/v1/appointments/id/:id", h.GetByID)
}
