package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"mediq/internal/payouts/service"
	httputil "mediq/pkg/http"
	"mediq/pkg/logger"
)

type PayoutHandler struct {
	service service.PayoutService
	log     *logger.Logger
}

func NewPayoutHandler(service service.PayoutService, log *logger.Logger) *PayoutHandler {
	return &PayoutHandler{
		service: service,
		log:     log,
	}
}

type runPayoutRequest struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

func (h *PayoutHandler) Run(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	doctorID := ps.ByName("doctorId")
	if doctorID == "" {
		if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "doctorId parameter is required",
		}); err != nil {
			h.log.Error("failed to write bad request response", "handler", "Run", "operation", "WriteJSON", "error", err)
		}
		return
	}

	var req runPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Run", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	result, err := h.service.RunPayout(r.Context(), doctorID, req.Method, req.Reference)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Run", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Run", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PayoutHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/payouts/doctors/:doctorId", h.Run)
}
