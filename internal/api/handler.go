// Package api serves the email reply endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hal9000y/email-writer/internal/reply"
)

// PingText is the liveness response body.
const PingText = "✅ EmailWriter API running fine!"

const maxBodyBytes = 2 << 20

// ErrorMode selects how upstream failures map to HTTP status codes.
type ErrorMode string

const (
	// ErrorModeStatus answers 502/504 for upstream failures and timeouts.
	ErrorModeStatus ErrorMode = "status"
	// ErrorModeInBand always answers 200 and reports failures in the body.
	ErrorModeInBand ErrorMode = "inband"
)

// ParseErrorMode validates s; empty means ErrorModeStatus.
func ParseErrorMode(s string) (ErrorMode, error) {
	switch ErrorMode(s) {
	case "", ErrorModeStatus:
		return ErrorModeStatus, nil
	case ErrorModeInBand:
		return ErrorModeInBand, nil
	default:
		return "", fmt.Errorf("unknown error mode %q", s)
	}
}

type generator interface {
	Generate(ctx context.Context, req reply.EmailRequest) (string, error)
}

// Handler routes /api/email/*.
type Handler struct {
	gen  generator
	mode ErrorMode
	mux  *http.ServeMux
}

// NewHandler creates the email API handler.
func NewHandler(gen generator, mode ErrorMode) *Handler {
	h := &Handler{
		gen:  gen,
		mode: mode,
		mux:  http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /api/email/ping", h.ping)
	h.mux.HandleFunc("POST /api/email/generate", h.generate)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) ping(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, PingText)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req reply.EmailRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		zerolog.Ctx(r.Context()).Info().Err(err).Msg("invalid generate request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	text, err := h.gen.Generate(r.Context(), req)
	writeText(w, h.status(err), reply.Text(text, err))
}

func (h *Handler) status(err error) int {
	switch {
	case err == nil, errors.Is(err, reply.ErrNoContent), h.mode == ErrorModeInBand:
		return http.StatusOK
	case errors.Is(err, reply.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
