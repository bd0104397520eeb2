package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	httputil "mediq/pkg/http"
	"mediq/pkg/logger"
)

const pingTimeout = 2 * time.Second

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Database  string `json:"database,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

// HealthHandler serves liveness and readiness probes. Liveness is
// unconditional; readiness requires a reachable Mongo primary.
type HealthHandler struct {
	mongoClient *mongo.Client
	service     string
	log         *logger.Logger
}

func NewHealthHandler(mongoClient *mongo.Client, service string, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		mongoClient: mongoClient,
		service:     service,
		log:         log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Service: h.service,
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	start := time.Now()
	if err := h.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		h.log.Error("Readiness check failed: database unreachable",
			"service", h.service,
			"error", err,
		)
		if writeErr := httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:   "unavailable",
			Service:  h.service,
			Database: "error",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "ready",
		Service:   h.service,
		Database:  "ok",
		LatencyMS: time.Since(start).Milliseconds(),
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
