// Package server exposes the HTTP API: one handler per CRUD operation on
// users, parties, and expenses, plus receipt upload.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/billparty/internal/auth"
	"github.com/mmynk/billparty/internal/models"
	"github.com/mmynk/billparty/internal/receipt"
	"github.com/mmynk/billparty/internal/storage"
)

// SessionResolver authenticates requests and provisions local users.
// Implemented by *auth.SessionResolver.
type SessionResolver interface {
	Resolve(ctx context.Context, r *http.Request) (*auth.IdentityClaims, error)
	EnsureProvisioned(ctx context.Context, claims *auth.IdentityClaims) (string, error)
}

// ReceiptUploader stores a receipt image and returns its record and the OCR
// extraction. Implemented by *receipt.Service.
type ReceiptUploader interface {
	Upload(ctx context.Context, partyID, fileName string, data []byte) (*models.BillImage, *receipt.Receipt, error)
}

// Server holds the handler dependencies. Every collaborator is injected; the
// server never constructs its own.
type Server struct {
	store    storage.Store
	sessions SessionResolver
	receipts ReceiptUploader
	logger   *slog.Logger
}

// New creates a Server with the given collaborators.
func New(store storage.Store, sessions SessionResolver, receipts ReceiptUploader, logger *slog.Logger) *Server {
	return &Server{
		store:    store,
		sessions: sessions,
		receipts: receipts,
		logger:   logger,
	}
}

// Routes builds the API handler: route registration plus the CORS, logging,
// and metrics middleware. OPTIONS preflights are answered by the CORS layer;
// each handler owns its method gating.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/users", s.handleUsers)
	mux.HandleFunc("/api/users/{id}", s.handleUserByID)
	mux.HandleFunc("/api/parties", s.handleParties)
	mux.HandleFunc("/api/parties/{id}", s.handlePartyByID)
	mux.HandleFunc("/api/parties/{id}/contributors", s.handlePartyContributors)
	mux.HandleFunc("/api/parties/{id}/balances", s.handlePartyBalances)
	mux.HandleFunc("/api/expenses", s.handleExpenses)
	mux.HandleFunc("/api/expenses/{id}", s.handleExpenseByID)
	mux.HandleFunc("/api/receipts", s.handleReceipts)

	mux.Handle("/metrics", promhttp.Handler())

	return metricsMiddleware(loggingMiddleware(corsMiddleware(mux)))
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// methodNotAllowed answers 405 with the enumerated allowed methods.
// OPTIONS is always permitted via the CORS layer, so it is always listed.
func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	allowed = append(allowed, http.MethodOptions)
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// decodeJSON parses the request body into dst, rejecting unparseable bodies.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	return nil
}

// requireFields returns the names whose values are empty, in input order.
func requireFields(fields ...[2]string) []string {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	return missing
}

func (s *Server) missingFields(w http.ResponseWriter, names []string) {
	s.writeError(w, http.StatusBadRequest,
		"missing required fields: "+strings.Join(names, ", "))
}

// storeError maps a repository failure to a response: 404 for not-found,
// 409 for duplicate email, 500 with a generic message otherwise. Internal
// details are logged, never echoed.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrDuplicateEmail):
		s.writeError(w, http.StatusConflict, "email already registered")
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// authenticate resolves the request's identity, answering 401 on any
// failure. The second return value reports whether the request may proceed.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*auth.IdentityClaims, bool) {
	claims, err := s.sessions.Resolve(r.Context(), r)
	if err != nil {
		s.logger.Warn("authentication failed", "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return claims, true
}
