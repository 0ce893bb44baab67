package blob

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "casedocs/pkg/domain-errors"
	"casedocs/pkg/platform/httputil"
)

// URLVerifier checks a retrieval token against an object key.
type URLVerifier interface {
	VerifyFile(token, key string) error
}

// FileHandler serves objects written by Local to holders of a signed URL.
type FileHandler struct {
	root     string
	verifier URLVerifier
	logger   *slog.Logger
}

func NewFileHandler(root string, verifier URLVerifier, logger *slog.Logger) *FileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileHandler{root: root, verifier: verifier, logger: logger}
}

// Register mounts GET /files/*.
func (h *FileHandler) Register(r chi.Router) {
	r.Get("/files/*", h.HandleGet)
}

func (h *FileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key, err := cleanName(chi.URLParam(r, "*"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid file path"))
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing token"))
		return
	}
	if err := h.verifier.VerifyFile(token, key); err != nil {
		httputil.WriteError(w, err)
		return
	}

	data, err := os.ReadFile(filepath.Join(h.root, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "file not found"))
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to read file", "key", key, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read file"))
		return
	}
	w.Header().Set("Content-Type", ContentTypePDF)
	http.ServeContent(w, r, filepath.Base(key), time.Time{}, bytes.NewReader(data))
}
