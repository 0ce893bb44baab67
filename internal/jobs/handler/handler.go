package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"casedocs/internal/jobs"
	"casedocs/internal/pdffill/filler"
	"casedocs/internal/pdffill/mapping"
	dErrors "casedocs/pkg/domain-errors"
	"casedocs/pkg/platform/httputil"
	"casedocs/pkg/requestcontext"
)

// DownloadURLTTL bounds URLs re-signed on demand for completed jobs.
const DownloadURLTTL = 10 * time.Minute

type Service interface {
	Enqueue(ctx context.Context, caseID, templateType string) (*jobs.Job, error)
	Get(ctx context.Context, id string) (*jobs.Job, error)
}

type Runner interface {
	RunOnce(ctx context.Context) (*jobs.PassResult, error)
}

type Previewer interface {
	Preview(ctx context.Context, caseID string, tt mapping.TemplateType) (filler.Result, error)
}

type URLSigner interface {
	SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}

type Handler struct {
	jobs    Service
	runner  Runner
	preview Previewer
	signer  URLSigner
	logger  *slog.Logger
}

func New(service Service, runner Runner, preview Previewer, signer URLSigner, logger *slog.Logger) *Handler {
	return &Handler{jobs: service, runner: runner, preview: preview, signer: signer, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/cases/{caseID}/documents", h.handleEnqueue)
	r.Get("/cases/{caseID}/coverage/{templateType}", h.handleCoverage)
	r.Get("/jobs/{jobID}", h.handleGet)
	r.Get("/jobs/{jobID}/download", h.handleDownload)
}

// RegisterAdmin mounts routes that belong behind the admin middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/jobs/run", h.handleRunOnce)
}

type enqueueRequest struct {
	TemplateType string `json:"template_type"`
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req enqueueRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	job, err := h.jobs.Enqueue(ctx, chi.URLParam(r, "caseID"), req.TemplateType)
	if err != nil {
		h.logFailure(ctx, "enqueue job", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, job)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

type downloadResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	job, err := h.jobs.Get(ctx, chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if job.Status != jobs.StatusCompleted || job.ResultPath == "" {
		msg := "job has no result yet"
		if job.Status.Terminal() {
			msg = "job ended without a result"
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, msg))
		return
	}
	url, err := h.signer.SignedURL(ctx, job.ResultPath, DownloadURLTTL)
	if err != nil {
		h.logFailure(ctx, "sign result url", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign result url"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, downloadResponse{URL: url, ExpiresAt: requestcontext.Now(ctx).Add(DownloadURLTTL)})
}

type coverageResponse struct {
	CaseID       string `json:"case_id"`
	TemplateType string `json:"template_type"`
	Coverage     int    `json:"coverage"`
	filler.Result
}

func (h *Handler) handleCoverage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tt, err := mapping.ParseTemplateType(chi.URLParam(r, "templateType"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "unknown template_type"))
		return
	}
	caseID := chi.URLParam(r, "caseID")
	res, err := h.preview.Preview(ctx, caseID, tt)
	if err != nil {
		h.logFailure(ctx, "coverage preview", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, coverageResponse{
		CaseID:       caseID,
		TemplateType: tt.String(),
		Coverage:     res.Coverage(),
		Result:       res,
	})
}

func (h *Handler) handleRunOnce(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.runner.RunOnce(ctx)
	if err != nil {
		h.logFailure(ctx, "worker pass", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "worker pass failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) logFailure(ctx context.Context, op string, err error) {
	log := h.logger.WarnContext
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		log = h.logger.ErrorContext
	}
	log(ctx, op+" failed",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
		"actor", requestcontext.Actor(ctx).ID,
	)
}
