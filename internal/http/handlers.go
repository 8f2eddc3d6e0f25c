package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"kharcha/internal/core"
	applog "kharcha/internal/log"
)

type messageRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type senderRequest struct {
	Sender string `json:"sender"`
}

type reconcileRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type apiResponse struct {
	Status  string             `json:"status"`
	Code    string             `json:"code,omitempty"`
	Message string             `json:"message,omitempty"`
	Detail  string             `json:"detail,omitempty"`
	Entry   *core.Confirmation `json:"entry,omitempty"`
	Removed []string           `json:"removed,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the domain error taxonomy onto HTTP. Validation failures
// are 400s with a stable code; expected outcomes like duplicates and empty
// months stay 200 so chat frontends can relay them verbatim; store trouble
// is a 502.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrDuplicateSuppressed):
		writeJSON(w, http.StatusOK, apiResponse{
			Status:  "duplicate_suppressed",
			Message: "Looks like a repeat of your last message; not recorded.",
		})
	case errors.Is(err, core.ErrNoEntries):
		writeJSON(w, http.StatusOK, apiResponse{
			Status:  "no_entries",
			Message: "No entries this month to operate on.",
		})
	case errors.Is(err, core.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Status: "error", Code: "invalid_amount",
			Message: "Amount must be a positive number.",
		})
	case errors.Is(err, core.ErrInvalidType):
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Status: "error", Code: "invalid_type",
			Message: "Type must be d (debit) or c (credit).",
		})
	case errors.Is(err, core.ErrInvalidDate):
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Status: "error", Code: "invalid_date",
			Message: "Date must be a real dd-mm-yyyy date.",
		})
	case errors.Is(err, core.ErrInvalidFormat):
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Status: "error", Code: "invalid_format",
			Message: "Could not read that message. See /api/help for the format.",
		})
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		// Detail carries the wrapped store error so operators can diagnose
		// exhausted retries from the response alone.
		writeJSON(w, http.StatusBadGateway, apiResponse{
			Status: "error", Code: "store_unavailable",
			Message: "Could not reach the ledger store. Try again shortly.",
			Detail:  err.Error(),
		})
	}
}

func (s *Server) decodeMessage(w http.ResponseWriter, r *http.Request) (messageRequest, bool) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return messageRequest{}, false
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Status: "error", Code: "bad_request", Message: "Body must be JSON with sender and text.",
		})
		return messageRequest{}, false
	}
	req.Sender = strings.TrimSpace(req.Sender)
	if req.Sender == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Status: "error", Code: "bad_request", Message: "sender is required.",
		})
		return messageRequest{}, false
	}
	if !s.rateLimiter.allow(req.Sender) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldSender, req.Sender)
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, apiResponse{
			Status: "error", Code: "rate_limited", Message: "Too many messages. Slow down.",
		})
		return messageRequest{}, false
	}
	return req, true
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeMessage(w, r)
	if !ok {
		return
	}
	conf, err := s.tracker.LogMessage(r.Context(), req.Sender, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Status: "ok", Entry: &conf})
}

func (s *Server) handleEditLast(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeMessage(w, r)
	if !ok {
		return
	}
	conf, err := s.tracker.EditLast(r.Context(), req.Sender, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Status: "ok", Entry: &conf})
}

func (s *Server) handleDeleteLast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req senderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Sender) == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Status: "error", Code: "bad_request", Message: "Body must be JSON with sender.",
		})
		return
	}
	row, err := s.tracker.DeleteLast(r.Context(), strings.TrimSpace(req.Sender))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Status: "ok", Removed: row})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Status: "error", Code: "bad_request", Message: "Body must be JSON with year and month.",
		})
		return
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 2000 || req.Year > 2200 {
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Status: "error", Code: "bad_request", Message: "year and month must name a real month.",
		})
		return
	}
	if err := s.tracker.Reconcile(r.Context(), req.Year, time.Month(req.Month)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Status: "ok"})
}

const helpText = `Record a transaction by sending a message.

Simple format:   <amount> [notes...] <d|c>
  500 milk d          debit of 500 with notes "milk"
  12000 salary c      credit of 12000

Tagged format:   a <amount> n <notes> t <d|c> [d <dd-mm-yyyy>]
  a 500 n tea with friends t d
  a500 nTea tc                      tags may be glued to values
  a 1580 n brush t d d 28-08-2025   backdated entry

Endpoints:
  POST /api/message              record a transaction
  POST /api/message/edit-last    replace this month's latest entry
  POST /api/message/delete-last  remove this month's latest entry
  POST /api/budget/reconcile     recompute a month's budget totals
`

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(helpText))
}
