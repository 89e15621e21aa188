// Package webapi exposes the HTTP surface backing the Telegram Mini App
// expense form, plus the Prometheus metrics endpoint. Expenses submitted
// through the form are seeded into the same confirmation flow as chat
// messages, so the user still taps Confirm in Telegram before anything
// reaches the ledger.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"finbot/internal/agent"
	"finbot/internal/config"
	"finbot/internal/storage"
)

// Notifier sends a confirmation message with the confirm/edit/cancel
// keyboard to a Telegram user and returns the sent message's ID.
type Notifier interface {
	SendConfirmation(userID int64, text string) (int, error)
}

// Server is the web form API.
type Server struct {
	cfg      *config.Config
	db       storage.Store
	orc      *agent.Orchestrator
	convos   *agent.Store
	notifier Notifier
	jwt      *JWTManager
	http     *http.Server
	now      func() time.Time
}

// New builds the server. It does not start listening.
func New(cfg *config.Config, db storage.Store, orc *agent.Orchestrator, convos *agent.Store, notifier Notifier) *Server {
	s := &Server{
		cfg:      cfg,
		db:       db,
		orc:      orc,
		convos:   convos,
		notifier: notifier,
		jwt:      NewJWTManager(cfg.JWTSecret, 24*time.Hour),
		now:      time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/expense", s.handleExpense)
	mux.HandleFunc("/api/auth", s.handleAuth)
	mux.Handle("/metrics", promhttp.Handler())

	handler := loggingMiddleware(corsMiddleware(mux))
	h2cHandler := h2c.NewHandler(handler, &http2.Server{})

	s.http = &http.Server{
		Addr:         cfg.WebAPIAddr,
		Handler:      h2cHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	slog.Info("web API listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// expenseRequest is the Mini App form payload. The expense fields mirror
// the pending-expense JSON shape the agent uses.
type expenseRequest struct {
	InitData string               `json:"init_data"`
	Expense  agent.PendingExpense `json:"expense"`
}

type authRequest struct {
	InitData string `json:"init_data"`
}

func (s *Server) handleExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	userID, err := s.authenticate(req.InitData)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	expense := req.Expense
	if expense.Currency == "" {
		expense.Currency = s.cfg.DefaultCurrency
	}
	if missing := expense.MissingFields(); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "Missing fields: "+strings.Join(missing, ", "))
		return
	}

	// The raw input row keeps the audit trail intact for form
	// submissions too.
	payload, _ := json.Marshal(expense)
	rawID, err := s.db.SaveRawInput(r.Context(), userID, "[webapp] "+string(payload))
	if err != nil {
		slog.Error("saving web form input failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not store the expense")
		return
	}

	summary := s.orc.SeedConfirming(userID, rawID, []agent.PendingExpense{expense})

	messageID, err := s.notifier.SendConfirmation(userID, summary)
	if err != nil {
		slog.Error("sending confirmation failed", "user_id", userID, "error", err)
		writeError(w, http.StatusBadGateway, "could not reach Telegram")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "pending_confirmation",
		"message_id": messageID,
	})
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	userID, err := s.authenticate(req.InitData)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	token, err := s.jwt.Generate(userID)
	if err != nil {
		slog.Error("token generation failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"user_id": userID,
	})
}

// authenticate verifies Telegram init data and the allow-list.
func (s *Server) authenticate(initData string) (int64, error) {
	if initData == "" {
		return 0, ErrMissingToken
	}
	userID, err := ValidateInitData(initData, s.cfg.TelegramBotToken, s.now())
	if err != nil {
		if errors.Is(err, ErrInitDataSignature) || errors.Is(err, ErrInitDataExpired) || errors.Is(err, ErrInitDataNoUser) {
			return 0, err
		}
		return 0, fmt.Errorf("validating init data: %w", err)
	}
	if !s.cfg.Allowed(userID) {
		return 0, fmt.Errorf("user %d is not allowed", userID)
	}
	return userID, nil
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
