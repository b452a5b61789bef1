package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-access/kestrel/internal/domain"
	"github.com/opensource-access/kestrel/internal/forecast"
	"github.com/opensource-access/kestrel/internal/pipeline"
	"github.com/opensource-access/kestrel/internal/repository"
	"github.com/opensource-access/kestrel/internal/rules"
)

// stateTTL bounds how stale a cached occupancy snapshot may be.
const stateTTL = 10 * time.Second

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *rules.Engine
	pipe    *pipeline.Pipeline
	source  domain.EventSource
	state   domain.StateSource
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, pipe *pipeline.Pipeline, source domain.EventSource, state domain.StateSource, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  engine,
		pipe:    pipe,
		source:  source,
		state:   state,
		version: version,
	}
}

// AnalyzeResponse is the response for POST /analyze.
type AnalyzeResponse struct {
	Report   *domain.Report `json:"report"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Analyze handles POST /analyze: runs one full batch analysis over the
// merged historical and live history.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	report, err := h.pipe.Run(ctx)
	if err != nil {
		slog.Error("batch analysis failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "batch analysis failed",
		})
		return
	}

	resp := AnalyzeResponse{Report: report}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// GetReport retrieves a stored report by ID.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID := chi.URLParam(r, "id")

	if reportID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "report id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	report, err := h.repo.GetReport(ctx, reportID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get report", "id", reportID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "report not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// StatusResponse is the response for GET /status.
type StatusResponse struct {
	CurrentOccupancy int    `json:"currentOccupancy"`
	OccupancyLimit   int    `json:"occupancyLimit"`
	Status           string `json:"status"`
}

// Occupancy status labels, matching the deployed display panels.
const (
	StatusAvailable  = "DISPONIVEL"
	StatusAlmostFull = "QUASE CHEIA"
	StatusFull       = "LOTADO"
)

// Status handles GET /status: current occupancy against the configured
// limit. The snapshot is cached briefly to spare the upstream feed.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var snapshot *domain.StateSnapshot
	if h.cache != nil {
		if cached, err := h.cache.GetState(ctx); err == nil && cached != nil {
			snapshot = cached
		}
	}

	if snapshot == nil {
		if h.state == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "state source not available",
			})
			return
		}

		fetched, err := h.state.FetchState(ctx)
		if err != nil {
			slog.Error("failed to fetch occupancy state", "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error": "state source unavailable",
			})
			return
		}
		snapshot = fetched

		if h.cache != nil {
			if err := h.cache.SetState(ctx, snapshot, stateTTL); err != nil {
				slog.Warn("failed to cache occupancy state", "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		CurrentOccupancy: snapshot.CurrentOccupancy,
		OccupancyLimit:   snapshot.OccupancyLimit,
		Status:           occupancyStatus(snapshot),
	})
}

// occupancyStatus maps an occupancy snapshot to its display label.
// QUASE CHEIA starts at 80% of the limit.
func occupancyStatus(s *domain.StateSnapshot) string {
	if s.OccupancyLimit <= 0 {
		return StatusAvailable
	}
	switch {
	case s.CurrentOccupancy >= s.OccupancyLimit:
		return StatusFull
	case float64(s.CurrentOccupancy) >= 0.8*float64(s.OccupancyLimit):
		return StatusAlmostFull
	default:
		return StatusAvailable
	}
}

// Forecast handles GET /forecast: next-day demand from the deduplicated
// history. Accepts an optional ?window= query parameter in days.
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	window := forecast.DefaultWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "window must be a positive integer",
			})
			return
		}
		window = parsed
	}

	historical, err := h.source.FetchHistorical(ctx)
	if err != nil {
		slog.Warn("historical source unavailable for forecast", "error", err)
		historical = nil
	}

	live, err := h.source.FetchLiveBatch(ctx)
	if err != nil {
		slog.Warn("live source unavailable for forecast", "error", err)
		live = nil
	}

	merged, _ := pipeline.Merge(historical, live)

	result, err := forecast.Forecast(merged, window)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "not enough data to forecast",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all loaded custom rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.Custom().Loaded()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a custom rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.Custom().Loaded() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a custom rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Points      int    `json:"points"`
	Reason      string `json:"reason"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule creates a new custom rule and saves it to the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Points <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "points must be positive",
		})
		return
	}
	if req.Reason == "" {
		req.Reason = req.Name
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Points:      req.Points,
		Reason:      req.Reason,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.engine.Custom().LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	// Persist to repository
	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all custom rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.Custom().ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
