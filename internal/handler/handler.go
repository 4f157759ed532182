// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/auth"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/metrics"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/service"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/throttle"
)

// Options tunes request handling.
type Options struct {
	// ThrottleWindow is the minimum gap between two claim (or two leave)
	// requests from one user on one event. Zero disables throttling.
	ThrottleWindow time.Duration
	// TxTimeout bounds each claim/leave call. Zero means no extra bound.
	TxTimeout time.Duration
}

// EventHandler holds all HTTP handlers for the seat allocator API.
type EventHandler struct {
	events   *service.EventService
	alloc    *service.SeatAllocator
	throttle throttle.Store
	opts     Options
	logger   *zap.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(
	events *service.EventService,
	alloc *service.SeatAllocator,
	limiter throttle.Store,
	opts Options,
	logger *zap.Logger,
) *EventHandler {
	if limiter == nil {
		limiter = throttle.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{
		events:   events,
		alloc:    alloc,
		throttle: limiter,
		opts:     opts,
		logger:   logger.Named("http"),
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusClientClosedRequest is the nginx convention for a client that went
// away before the response was written.
const statusClientClosedRequest = 499

var kindStatus = map[string]int{
	"unauthenticated":     http.StatusUnauthorized,
	"invalid_argument":    http.StatusBadRequest,
	"not_found":           http.StatusNotFound,
	"registration_closed": http.StatusPreconditionFailed,
	"permission_denied":   http.StatusForbidden,
	"already_exists":      http.StatusConflict,
	"conflict":            http.StatusConflict,
	"rate_limited":        http.StatusTooManyRequests,
}

// writeServiceError maps a service error kind to its HTTP status. Anything
// unrecognised is logged and reported as a 500 without internal detail.
func (h *EventHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timeout", "request timed out, try again")
		return
	case errors.Is(err, context.Canceled):
		h.logger.Debug("request cancelled", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		writeError(w, statusClientClosedRequest, "cancelled", "request cancelled")
		return
	}
	kind := service.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeError(w, status, kind, err.Error())
}

// caller returns the authenticated user or writes a 401.
func (h *EventHandler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := auth.UserFrom(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return "", false
	}
	return userID, true
}

// throttleGate applies the per-user throttle once the allocator has found
// that the call would write, so rejected calls never start a window.
// Throttle backend failures let the request through.
func (h *EventHandler) throttleGate(userID, eventID, action string) service.Gate {
	return func(ctx context.Context) error {
		if h.opts.ThrottleWindow <= 0 {
			return nil
		}
		ok, err := h.throttle.Allow(ctx, throttle.Key(userID, eventID, action), h.opts.ThrottleWindow)
		if err != nil {
			h.logger.Warn("throttle unavailable", zap.String("action", action), zap.Error(err))
			return nil
		}
		if !ok {
			metrics.Throttled.WithLabelValues(action).Inc()
			return service.ErrRateLimited
		}
		return nil
	}
}

func (h *EventHandler) txContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.opts.TxTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.opts.TxTimeout)
}

// ─── Seat allocation ──────────────────────────────────────────────────────────

// ClaimSeat handles POST /events/{id}/claim
// Gives the caller a confirmed seat or the next waitlist position.
func (h *EventHandler) ClaimSeat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.txContext(r)
	defer cancel()

	res, err := h.alloc.Claim(ctx, id, userID, h.throttleGate(userID, id, "claim"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LeaveSeat handles POST /events/{id}/leave
// Releases the caller's seat or waitlist slot, promoting the waitlist head.
func (h *EventHandler) LeaveSeat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.txContext(r)
	defer cancel()

	res, err := h.alloc.Release(ctx, id, userID, h.throttleGate(userID, id, "leave"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.CreateEvent(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	view, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateEvent handles PATCH /events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.UpdateEvent(r.Context(), userID, chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// CancelEvent handles POST /events/{id}/cancel
func (h *EventHandler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.events.CancelEvent(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListMembers handles GET /events/{id}/members
func (h *EventHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	roster, err := h.events.Roster(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

// ─── Invites ──────────────────────────────────────────────────────────────────

// CreateInvite handles POST /events/{id}/invites
func (h *EventHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req model.CreateInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid request body: "+err.Error())
		return
	}

	inv, err := h.events.Invite(r.Context(), userID, chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// AcceptInvite handles POST /events/{id}/invites/accept
func (h *EventHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	inv, err := h.events.AcceptInvite(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
