package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"zephyr-reconciliation-service/internal/detector"
	"zephyr-reconciliation-service/internal/parsers"
	"zephyr-reconciliation-service/internal/reconciler"
	"zephyr-reconciliation-service/internal/reporter"
	"zephyr-reconciliation-service/pkg/logger"
)

// maxUploadBytes bounds the in-memory portion of the multipart form.
const maxUploadBytes = 32 << 20

// Handlers groups the HTTP handler methods and their pipeline dependencies.
type Handlers struct {
	ordersParser      *parsers.OrdersParser
	settlementsParser *parsers.SettlementsParser
	engine            *reconciler.Engine
	detector          *detector.Detector
	logger            logger.Logger
}

// NewHandlers wires the pipeline stages behind the HTTP surface.
func NewHandlers(
	ordersParser *parsers.OrdersParser,
	settlementsParser *parsers.SettlementsParser,
	engine *reconciler.Engine,
	det *detector.Detector,
) *Handlers {
	return &Handlers{
		ordersParser:      ordersParser,
		settlementsParser: settlementsParser,
		engine:            engine,
		detector:          det,
		logger:            logger.GetGlobalLogger().WithComponent("api"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.GetGlobalLogger().WithComponent("api").WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Health reports service liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Reconcile accepts a multipart form with an orders_file and a
// settlements_file, runs the full pipeline, and returns the report.
func (h *Handlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	ordersFile, _, err := r.FormFile("orders_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "orders_file field is required: "+err.Error())
		return
	}
	defer ordersFile.Close()

	settlementsFile, _, err := r.FormFile("settlements_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "settlements_file field is required: "+err.Error())
		return
	}
	defer settlementsFile.Close()

	orders, _, err := h.ordersParser.Parse(ordersFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Orders CSV error: %v", err))
		return
	}

	settlements, _, err := h.settlementsParser.Parse(settlementsFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Settlements CSV error: %v", err))
		return
	}

	if len(orders) == 0 {
		writeError(w, http.StatusBadRequest, "Orders file is empty")
		return
	}
	if len(settlements) == 0 {
		writeError(w, http.StatusBadRequest, "Settlements file is empty")
		return
	}

	transactions := h.engine.Reconcile(orders, settlements)
	alerts := h.detector.Detect(transactions)
	report := reporter.BuildReport(len(orders), len(settlements), transactions, alerts)

	h.logger.WithFields(logger.Fields{
		"orders":      len(orders),
		"settlements": len(settlements),
		"flagged":     report.FlaggedCount,
		"alerts":      len(alerts),
	}).Info("Reconciliation request served")

	writeJSON(w, http.StatusOK, report)
}
