// Package httpapi exposes the REST endpoints, the websocket upgrade path
// and the health/metrics surface over a standard net/http mux.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"meme-aggregator/internal/aggregator"
	"meme-aggregator/internal/domain"
	"meme-aggregator/internal/hub"
	"meme-aggregator/internal/observability"
)

// Pinger reports cache liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Aggregator is the read surface the handlers serve from.
type Aggregator interface {
	GetTokens(ctx context.Context, limit int, sortBy domain.SortField, tf domain.TimeFrame) ([]domain.Token, error)
	SearchTokens(ctx context.Context, query string) ([]domain.Token, error)
	GetTokenByAddress(ctx context.Context, address string) (*domain.Token, error)
}

// Options configures a Server.
type Options struct {
	Aggregator Aggregator
	Hub        *hub.Hub
	Cache      Pinger
	Logger     *log.Logger
}

// Server wires the handlers onto a mux.
type Server struct {
	agg    Aggregator
	hub    *hub.Hub
	cache  Pinger
	logger *log.Logger
	mux    *http.ServeMux
}

// New builds a Server and registers its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[httpapi] ", log.LstdFlags)
	}

	s := &Server{
		agg:    opts.Aggregator,
		hub:    opts.Hub,
		cache:  opts.Cache,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /tokens", s.handleGetTokens)
	s.mux.HandleFunc("GET /tokens/search", s.handleSearchTokens)
	s.mux.HandleFunc("GET /tokens/{address}", s.handleGetTokenByAddress)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.Handle("GET /metrics", observability.Handler())

	return s
}

// Handler returns the routed handler for mounting on an http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// listResponse is the envelope for collection endpoints.
type listResponse struct {
	Success   bool           `json:"success"`
	Data      []domain.Token `json:"data"`
	Count     int            `json:"count"`
	Query     string         `json:"query,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
}

type tokenResponse struct {
	Success bool          `json:"success"`
	Data    *domain.Token `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := aggregator.DefaultLimit
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	sortBy := domain.SortField(q.Get("sort"))
	if sortBy == "" {
		sortBy = domain.SortVolume
	}
	tf := domain.TimeFrame(q.Get("timeframe"))
	if tf == "" {
		tf = domain.TimeFrame24h
	}

	tokens, err := s.agg.GetTokens(r.Context(), limit, sortBy, tf)
	if err != nil {
		s.logger.Printf("get tokens: %v", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to fetch tokens"})
		return
	}

	s.writeJSON(w, http.StatusOK, listResponse{
		Success:   true,
		Data:      tokens,
		Count:     len(tokens),
		Timestamp: domain.NowMillis(),
	})
}

func (s *Server) handleSearchTokens(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	tokens, err := s.agg.SearchTokens(r.Context(), query)
	if err != nil {
		if errors.Is(err, aggregator.ErrQueryTooShort) {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Query must be at least 2 characters"})
			return
		}
		s.logger.Printf("search %q: %v", query, err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to search tokens"})
		return
	}

	s.writeJSON(w, http.StatusOK, listResponse{
		Success: true,
		Data:    tokens,
		Count:   len(tokens),
		Query:   query,
	})
}

func (s *Server) handleGetTokenByAddress(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	token, err := s.agg.GetTokenByAddress(r.Context(), address)
	if err != nil {
		s.logger.Printf("get token %s: %v", address, err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to fetch token"})
		return
	}
	if token == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Token not found"})
		return
	}

	s.writeJSON(w, http.StatusOK, tokenResponse{Success: true, Data: token})
}

type healthResponse struct {
	Success   bool              `json:"success"`
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.cache.Ping(ctx); err != nil {
		s.logger.Printf("health check: %v", err)
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "unhealthy",
			Timestamp: domain.NowMillis(),
			Error:     "Service unavailable",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, healthResponse{
		Success:   true,
		Status:    "healthy",
		Timestamp: domain.NowMillis(),
		Services: map[string]string{
			"cache":     "connected",
			"websocket": fmt.Sprintf("%d connections", s.hub.ConnectionCount()),
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}
