package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"casedocs/internal/locks"
	"casedocs/pkg/platform/httputil"
	"casedocs/pkg/requestcontext"
)

// Service is the lock manager surface used over HTTP.
type Service interface {
	Acquire(ctx context.Context, documentID, workerID string, timeout time.Duration) locks.Result
	Release(ctx context.Context, documentID string) locks.Result
	IsLocked(ctx context.Context, documentID string) (locks.Status, error)
	CleanupExpired(ctx context.Context, threshold time.Duration) locks.CleanupResult
}

type Handler struct {
	locks  Service
	logger *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{locks: service, logger: logger}
}

// Register mounts the per-document lock routes. Lock outcomes, including
// contention and denial, are always 200 with the Result body.
func (h *Handler) Register(r chi.Router) {
	r.Post("/documents/{documentID}/lock", h.handleAcquire)
	r.Delete("/documents/{documentID}/lock", h.handleRelease)
	r.Get("/documents/{documentID}/lock", h.handleStatus)
}

// RegisterAdmin mounts routes that belong behind the admin middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/locks/cleanup", h.handleCleanup)
}

type acquireRequest struct {
	WorkerID       string `json:"worker_id"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type cleanupRequest struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

func (h *Handler) handleAcquire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req acquireRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusOK, locks.Result{Reason: locks.ReasonInvalidInput, Message: "invalid request body"})
		return
	}
	res := h.locks.Acquire(ctx, chi.URLParam(r, "documentID"), req.WorkerID, time.Duration(req.TimeoutSeconds)*time.Second)
	h.logResult(ctx, "acquire", chi.URLParam(r, "documentID"), res)
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := h.locks.Release(ctx, chi.URLParam(r, "documentID"))
	h.logResult(ctx, "release", chi.URLParam(r, "documentID"), res)
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.locks.IsLocked(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusOK, locks.CleanupResult{Reason: locks.ReasonInvalidInput, Message: "invalid request body", Released: []locks.Reclaimed{}})
		return
	}
	res := h.locks.CleanupExpired(r.Context(), time.Duration(req.TimeoutSeconds)*time.Second)
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) logResult(ctx context.Context, op, documentID string, res locks.Result) {
	if res.Success {
		return
	}
	h.logger.InfoContext(ctx, "lock operation refused",
		"operation", op,
		"document_id", documentID,
		"reason", string(res.Reason),
		"request_id", requestcontext.RequestID(ctx),
	)
}
