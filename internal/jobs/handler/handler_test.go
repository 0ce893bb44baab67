package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,Runner,Previewer,URLSigner

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"casedocs/internal/jobs"
	"casedocs/internal/jobs/handler/mocks"
	"casedocs/internal/pdffill/filler"
	"casedocs/internal/pdffill/mapping"
	dErrors "casedocs/pkg/domain-errors"
)

// =============================================================================
// Jobs Handler Test Suite
// =============================================================================
// Justification: the handler owns request decoding, status mapping and the
// coverage response shape. Services are mocked; routing goes through chi.

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	runner  *mocks.MockRunner
	preview *mocks.MockPreviewer
	signer  *mocks.MockURLSigner
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.runner = mocks.NewMockRunner(s.ctrl)
	s.preview = mocks.NewMockPreviewer(s.ctrl)
	s.signer = mocks.NewMockURLSigner(s.ctrl)

	h := New(s.service, s.runner, s.preview, s.signer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAdmin(s.router)
}

func (s *HandlerSuite) do(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func (s *HandlerSuite) TestEnqueue() {
	job := &jobs.Job{ID: "0b8f0a4e-0000-4000-8000-000000000001", CaseID: "case-1", TemplateType: mapping.POAAdult, Status: jobs.StatusQueued}
	s.service.EXPECT().Enqueue(gomock.Any(), "case-1", "poa-adult").Return(job, nil)

	w, body := s.do(http.MethodPost, "/cases/case-1/documents", `{"template_type":"poa-adult"}`)
	s.Equal(http.StatusAccepted, w.Code)
	s.Equal("queued", body["status"])
	s.Equal("poa-adult", body["template_type"])
}

func (s *HandlerSuite) TestEnqueueValidationError() {
	s.service.EXPECT().Enqueue(gomock.Any(), "case-1", "bogus").
		Return(nil, dErrors.New(dErrors.CodeValidation, "unknown template_type"))

	w, body := s.do(http.MethodPost, "/cases/case-1/documents", `{"template_type":"bogus"}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("unknown template_type", body["error_description"])
}

func (s *HandlerSuite) TestEnqueueRejectsUnknownBodyFields() {
	w, _ := s.do(http.MethodPost, "/cases/case-1/documents", `{"template":"poa-adult"}`)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestGetNotFound() {
	s.service.EXPECT().Get(gomock.Any(), "nope").Return(nil, dErrors.New(dErrors.CodeNotFound, "job not found"))
	w, _ := s.do(http.MethodGet, "/jobs/nope", "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestDownloadResignsCompletedJob() {
	s.service.EXPECT().Get(gomock.Any(), "j1").
		Return(&jobs.Job{ID: "j1", Status: jobs.StatusCompleted, ResultPath: "case-1/poa-adult-1.pdf"}, nil)
	s.signer.EXPECT().SignedURL(gomock.Any(), "case-1/poa-adult-1.pdf", 10*time.Minute).Return("https://signed", nil)

	w, body := s.do(http.MethodGet, "/jobs/j1/download", "")
	s.Equal(http.StatusOK, w.Code)
	s.Equal("https://signed", body["url"])
}

func (s *HandlerSuite) TestDownloadPendingJobConflicts() {
	s.service.EXPECT().Get(gomock.Any(), "j1").Return(&jobs.Job{ID: "j1", Status: jobs.StatusQueued}, nil)
	w, body := s.do(http.MethodGet, "/jobs/j1/download", "")
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("job has no result yet", body["error_description"])
}

func (s *HandlerSuite) TestDownloadFailedJobConflicts() {
	s.service.EXPECT().Get(gomock.Any(), "j2").Return(&jobs.Job{ID: "j2", Status: jobs.StatusFailed, RetryCount: 3}, nil)
	w, body := s.do(http.MethodGet, "/jobs/j2/download", "")
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("job ended without a result", body["error_description"])
}

func (s *HandlerSuite) TestCoverage() {
	s.preview.EXPECT().Preview(gomock.Any(), "case-1", mapping.Registration).Return(filler.Result{
		TotalFields:  10,
		FilledFields: 7,
		EmptyFields:  []string{"a", "b", "c"},
		Errors:       []filler.FieldError{},
	}, nil)

	w, body := s.do(http.MethodGet, "/cases/case-1/coverage/umiejscowienie", "")
	s.Equal(http.StatusOK, w.Code)
	s.Equal(float64(70), body["coverage"])
	s.Equal("registration", body["template_type"])
	s.Equal(float64(10), body["total_fields"])
}

func (s *HandlerSuite) TestCoverageUnknownTemplate() {
	w, _ := s.do(http.MethodGet, "/cases/case-1/coverage/passport", "")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestRunOnce() {
	s.runner.EXPECT().RunOnce(gomock.Any()).Return(&jobs.PassResult{Outcome: jobs.OutcomeIdle}, nil)
	w, body := s.do(http.MethodPost, "/jobs/run", "")
	s.Equal(http.StatusOK, w.Code)
	s.Equal("idle", body["outcome"])
}

func (s *HandlerSuite) TestRunOnceStoreFailure() {
	s.runner.EXPECT().RunOnce(gomock.Any()).Return(nil, errors.New("db down"))
	w, body := s.do(http.MethodPost, "/jobs/run", "")
	s.Equal(http.StatusInternalServerError, w.Code)
	s.Equal("internal_error", body["error"])
}
