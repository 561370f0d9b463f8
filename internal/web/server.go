/*

This file contains the HTTP API over the risk engine. Every endpoint is a
thin translation layer: decode the request, call the engine facade, map the
typed error to a status code. No business logic lives here.

*/

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/sonicnav/riskengine/internal/engine"
	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/state"
	"github.com/sonicnav/riskengine/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles HTTP requests for the risk engine API
type WebServer struct {
	router *mux.Router
	engine *engine.Engine
	port   string
}

// NewWebServer creates a new web server instance
func NewWebServer(eng *engine.Engine, port string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		engine: eng,
		port:   port,
	}

	server.setupRoutes()
	return server
}

// Router exposes the configured router, mainly for tests.
func (ws *WebServer) Router() http.Handler {
	return ws.router
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api.HandleFunc("/strategies", ws.handleGetStrategies).Methods("GET")
	api.HandleFunc("/strategies/{id}", ws.handleGetStrategy).Methods("GET")

	api.HandleFunc("/market", ws.handleGetMarket).Methods("GET")
	api.HandleFunc("/recommendations", ws.handleRecommend).Methods("POST")
	api.HandleFunc("/allocations", ws.handleOptimize).Methods("POST")

	api.HandleFunc("/positions/{owner}", ws.handleGetPositions).Methods("GET")
	api.HandleFunc("/positions/{owner}/{strategyId}/history", ws.handleGetHistory).Methods("GET")
	api.HandleFunc("/advice/{owner}", ws.handleGetAdvice).Methods("GET")

	api.HandleFunc("/subscribe", ws.handleSubscribe).Methods("POST")
	api.HandleFunc("/unsubscribe", ws.handleUnsubscribe).Methods("POST")
	api.HandleFunc("/harvest", ws.handleHarvest).Methods("POST")
	api.HandleFunc("/rebalance", ws.handleRebalance).Methods("POST")

	api.HandleFunc("/alerts/{owner}", ws.handleGetAlerts).Methods("GET")
	api.HandleFunc("/alerts/{owner}", ws.handleClearAlerts).Methods("DELETE")
	api.HandleFunc("/alerts/{owner}/{id}/read", ws.handleMarkAlertRead).Methods("POST")

	api.HandleFunc("/price-alerts/{owner}", ws.handleListPriceAlerts).Methods("GET")
	api.HandleFunc("/price-alerts/{owner}", ws.handleCreatePriceAlert).Methods("POST")
	api.HandleFunc("/price-alerts/{owner}/{id}", ws.handleDeletePriceAlert).Methods("DELETE")

	api.HandleFunc("/monitor/{owner}/start", ws.handleStartMonitoring).Methods("POST")
	api.HandleFunc("/monitor/{owner}/stop", ws.handleStopMonitoring).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	// The archive database is optional; only report on it when configured.
	archive := map[string]interface{}{"enabled": false}
	if state.DB != nil {
		dbHealthy := true
		if err := state.TestDBConnection(); err != nil {
			dbHealthy = false
			hasErrors = true
		}
		archive = map[string]interface{}{
			"enabled": true,
			"healthy": dbHealthy,
		}
	}

	marketHealthy := true
	if _, err := ws.engine.GetMarketSnapshot(r.Context()); err != nil {
		marketHealthy = false
		hasErrors = true
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "riskengine",
			"version": "1.0.0",
		},
		"checks": map[string]interface{}{
			"market_data": marketHealthy,
			"archive":     archive,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetStrategies returns the full strategy catalog
func (ws *WebServer) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	strategies := ws.engine.GetStrategies()

	response := map[string]interface{}{
		"strategies": strategies,
		"count":      len(strategies),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetStrategy returns a single catalog entry
func (ws *WebServer) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id := types.StrategyID(mux.Vars(r)["id"])

	strategy, err := ws.engine.GetStrategy(id)
	if err != nil {
		ws.writeEngineError(w, err, "Failed to retrieve strategy")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, strategy)
}

// handleGetMarket returns the fused market snapshot
func (ws *WebServer) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	snapshot, err := ws.engine.GetMarketSnapshot(r.Context())
	if err != nil {
		ws.writeEngineError(w, err, "Failed to retrieve market snapshot")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, snapshot)
}

// handleRecommend scores the catalog against the posted risk profile
func (ws *WebServer) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var profile types.RiskProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid risk profile payload")
		return
	}

	recommendations, err := ws.engine.RecommendStrategies(r.Context(), profile)
	if err != nil {
		ws.writeEngineError(w, err, "Failed to build recommendations")
		return
	}

	response := map[string]interface{}{
		"recommendations": recommendations,
		"count":           len(recommendations),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleOptimize returns target allocation percentages for the posted profile
func (ws *WebServer) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var profile types.RiskProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid risk profile payload")
		return
	}

	allocations, err := ws.engine.OptimizeAllocations(r.Context(), profile)
	if err != nil {
		ws.writeEngineError(w, err, "Failed to optimize allocations")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"allocations": allocations})
}

// handleGetPositions returns the owner's aggregated positions
func (ws *WebServer) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	result := ws.engine.GetUserPositions(r.Context(), owner)

	failedPlatforms := make([]string, 0, len(result.Failures))
	for platform := range result.Failures {
		failedPlatforms = append(failedPlatforms, platform)
	}
	sort.Strings(failedPlatforms)

	response := map[string]interface{}{
		"positions":        result.Positions,
		"count":            len(result.Positions),
		"failed_platforms": failedPlatforms,
		"degraded":         result.Degraded(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetHistory reconstructs historical performance for one position
func (ws *WebServer) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner := vars["owner"]
	strategyID := types.StrategyID(vars["strategyId"])

	analytics, err := ws.engine.AnalyzePositionHistory(r.Context(), owner, strategyID)
	if err != nil {
		ws.writeEngineError(w, err, "Failed to analyze position history")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, analytics)
}

// handleGetAdvice returns per-position rebalancing advice
func (ws *WebServer) handleGetAdvice(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	advice, err := ws.engine.AdviseRebalancing(r.Context(), owner)
	if err != nil {
		ws.writeEngineError(w, err, "Failed to build rebalancing advice")
		return
	}

	response := map[string]interface{}{
		"recommendations": advice,
		"count":           len(advice),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// actionRequest is the shared payload of the strategy action endpoints.
type actionRequest struct {
	Owner      string           `json:"owner"`
	StrategyID types.StrategyID `json:"strategy_id"`
	AmountUSD  float64          `json:"amount_usd,omitempty"`
}

func (ws *WebServer) decodeAction(w http.ResponseWriter, r *http.Request) (actionRequest, bool) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid action payload")
		return actionRequest{}, false
	}
	if req.Owner == "" || req.StrategyID == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "owner and strategy_id are required")
		return actionRequest{}, false
	}
	return req, true
}

// handleSubscribe deposits into a strategy
func (ws *WebServer) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	req, ok := ws.decodeAction(w, r)
	if !ok {
		return
	}

	txRef, err := ws.engine.Subscribe(r.Context(), req.Owner, req.StrategyID, req.AmountUSD)
	if err != nil {
		ws.writeEngineError(w, err, "Subscription failed")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"tx_ref": txRef})
}

// handleUnsubscribe exits a strategy position entirely
func (ws *WebServer) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	req, ok := ws.decodeAction(w, r)
	if !ok {
		return
	}

	txRef, err := ws.engine.Unsubscribe(r.Context(), req.Owner, req.StrategyID)
	if err != nil {
		ws.writeEngineError(w, err, "Unsubscribe failed")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"tx_ref": txRef})
}

// handleHarvest claims accrued rewards
func (ws *WebServer) handleHarvest(w http.ResponseWriter, r *http.Request) {
	req, ok := ws.decodeAction(w, r)
	if !ok {
		return
	}

	result, err := ws.engine.Harvest(r.Context(), req.Owner, req.StrategyID)
	if err != nil {
		ws.writeEngineError(w, err, "Harvest failed")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, result)
}

// handleRebalance triggers an on-chain rebalance
func (ws *WebServer) handleRebalance(w http.ResponseWriter, r *http.Request) {
	req, ok := ws.decodeAction(w, r)
	if !ok {
		return
	}

	txRef, err := ws.engine.Rebalance(r.Context(), req.Owner, req.StrategyID)
	if err != nil {
		ws.writeEngineError(w, err, "Rebalance failed")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"tx_ref": txRef})
}

// handleGetAlerts returns the owner's alerts, newest first
func (ws *WebServer) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	alerts := ws.engine.GetAlerts(owner)

	response := map[string]interface{}{
		"alerts":       alerts,
		"count":        len(alerts),
		"unread_count": ws.engine.GetUnreadAlertCount(owner),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleClearAlerts removes all of the owner's alerts
func (ws *WebServer) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	ws.engine.ClearAlerts(owner)
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"cleared": true})
}

// handleMarkAlertRead flips the read flag on one alert
func (ws *WebServer) handleMarkAlertRead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if !ws.engine.MarkAlertRead(vars["owner"], vars["id"]) {
		ws.writeErrorResponse(w, http.StatusNotFound, "Alert not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"read": true})
}

// priceAlertRequest is the creation payload for price alerts.
type priceAlertRequest struct {
	TokenSymbol  string  `json:"token_symbol"`
	FeedID       string  `json:"feed_id"`
	ThresholdUSD float64 `json:"threshold_usd"`
	Above        bool    `json:"above"`
}

// handleListPriceAlerts returns the owner's price alerts
func (ws *WebServer) handleListPriceAlerts(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	alerts, err := ws.engine.ListPriceAlerts(owner)
	if err != nil {
		ws.writeEngineError(w, err, "Failed to list price alerts")
		return
	}

	response := map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleCreatePriceAlert registers a one-shot price threshold alert
func (ws *WebServer) handleCreatePriceAlert(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	var req priceAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid price alert payload")
		return
	}

	alert, err := ws.engine.CreatePriceAlert(owner, req.TokenSymbol, req.FeedID, req.ThresholdUSD, req.Above)
	if err != nil {
		ws.writeEngineError(w, err, "Failed to create price alert")
		return
	}

	ws.writeJSONResponse(w, http.StatusCreated, alert)
}

// handleDeletePriceAlert removes one price alert
func (ws *WebServer) handleDeletePriceAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := ws.engine.DeletePriceAlert(vars["owner"], vars["id"]); err != nil {
		ws.writeEngineError(w, err, "Failed to delete price alert")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// handleStartMonitoring begins periodic risk checks for the owner
func (ws *WebServer) handleStartMonitoring(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	// Monitoring must outlive this request; the loop is cancelled through
	// StopMonitoring, not the request context.
	ws.engine.StartMonitoring(context.Background(), owner)
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"monitoring": true})
}

// handleStopMonitoring stops the owner's periodic risk checks
func (ws *WebServer) handleStopMonitoring(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	ws.engine.StopMonitoring(owner)
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"monitoring": false})
}

// writeEngineError maps a typed engine error to an HTTP status code
func (ws *WebServer) writeEngineError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		ws.writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrInsufficientFunds), errors.Is(err, types.ErrSlippageExceeded):
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrInvalidStrategy), errors.Is(err, types.ErrInvalidAllocation):
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrUnsupported):
		ws.writeErrorResponse(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, types.ErrUpstreamUnavailable), errors.Is(err, types.ErrInsufficientData):
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, err.Error())
	default:
		webLogger.Error().Err(err).Msg(fallback)
		ws.writeErrorResponse(w, http.StatusInternalServerError, fallback)
	}
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
