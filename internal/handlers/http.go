// Package handlers exposes the trade guardian over a JSON HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/devlongs/trade-guardian/internal/assess"
	"github.com/devlongs/trade-guardian/pkg/types"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 16

// Handler serves the guardian API
type Handler struct {
	assessor *assess.Assessor
}

// NewHandler creates a Handler
func NewHandler(a *assess.Assessor) *Handler {
	return &Handler{assessor: a}
}

// SetupRoutes registers every endpoint on r
func (h *Handler) SetupRoutes(r *mux.Router) {
	r.Use(requestLogger)
	r.HandleFunc("/api/health", h.healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/tokens", h.listTokens).Methods(http.MethodGet)
	r.HandleFunc("/api/reserves", h.getReserves).Methods(http.MethodGet)
	r.HandleFunc("/api/analyze", h.analyze).Methods(http.MethodPost)
	r.HandleFunc("/api/ladder", h.ladder).Methods(http.MethodPost)
	r.HandleFunc("/api/max-safe", h.maxSafe).Methods(http.MethodGet)
}

// Router returns a new router with all routes registered
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.SetupRoutes(r)
	return r
}

type reservesResponse struct {
	Pair         string             `json:"pair"`
	Sell         string             `json:"sell"`
	Buy          string             `json:"buy"`
	Reserves     types.PoolReserves `json:"reserves"`
	LiquidityUSD float64            `json:"liquidityUsd"`
}

type ladderRequest struct {
	Sell  string    `json:"sell"`
	Buy   string    `json:"buy"`
	Sizes []float64 `json:"sizes"`
}

type ladderResponse struct {
	Pair  string             `json:"pair"`
	Steps []types.LadderStep `json:"steps"`
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listTokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.assessor.Provider().Registry().All())
}

func (h *Handler) getReserves(w http.ResponseWriter, r *http.Request) {
	sell, buy, ok := pairFromQuery(w, r)
	if !ok {
		return
	}

	p := h.assessor.Provider()
	writeJSON(w, http.StatusOK, reservesResponse{
		Pair:         types.PairName(sell, buy),
		Sell:         sell,
		Buy:          buy,
		Reserves:     p.GetReserves(sell, buy),
		LiquidityUSD: p.LiquidityFor(sell, buy),
	})
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req assess.Request
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.assessor.Assess(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ladder(w http.ResponseWriter, r *http.Request) {
	var req ladderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	steps, err := h.assessor.Ladder(r.Context(), req.Sell, req.Buy, req.Sizes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ladderResponse{
		Pair:  types.PairName(strings.TrimSpace(req.Sell), strings.TrimSpace(req.Buy)),
		Steps: steps,
	})
}

func (h *Handler) maxSafe(w http.ResponseWriter, r *http.Request) {
	sell, buy, ok := pairFromQuery(w, r)
	if !ok {
		return
	}

	step, err := h.assessor.MaxSafeSize(r.Context(), sell, buy)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func pairFromQuery(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	q := r.URL.Query()
	sell, buy := strings.TrimSpace(q.Get("sell")), strings.TrimSpace(q.Get("buy"))
	if sell == "" || buy == "" {
		writeError(w, http.StatusBadRequest, "sell and buy query parameters are required")
		return "", "", false
	}
	return sell, buy, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("Failed to decode request")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assess.ErrInvalidAmount), errors.Is(err, assess.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
