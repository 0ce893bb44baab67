package blob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	jwttoken "casedocs/internal/jwt_token"
	"casedocs/pkg/platform/sentinel"
)

// =============================================================================
// Local Store Test Suite
// =============================================================================
// Justification for unit tests: the local store and file route are the dev
// substitute for signed bucket URLs; tests cover the round trip through a
// signed URL and the rejection paths.

type LocalSuite struct {
	suite.Suite
	root   string
	tokens *jwttoken.JWTService
	store  *Local
	server *httptest.Server
}

func TestLocalSuite(t *testing.T) {
	suite.Run(t, new(LocalSuite))
}

func (s *LocalSuite) SetupTest() {
	s.root = s.T().TempDir()
	s.tokens = jwttoken.NewJWTService("file-key", "casedocs", "casedocs-api")

	r := chi.NewRouter()
	NewFileHandler(s.root, s.tokens, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.server = httptest.NewServer(r)

	var err error
	s.store, err = NewLocal(s.root, "results", s.server.URL, s.tokens)
	s.Require().NoError(err)
}

func (s *LocalSuite) TearDownTest() {
	s.server.Close()
}

func (s *LocalSuite) TestNewLocal() {
	_, err := NewLocal("", "results", "", s.tokens)
	s.Error(err)
	_, err = NewLocal(s.root, "", "", s.tokens)
	s.Error(err)
	_, err = NewLocal(s.root, "results", "", nil)
	s.Error(err)
}

func (s *LocalSuite) TestPutGet() {
	ctx := context.Background()

	s.Run("round trip", func() {
		s.Require().NoError(s.store.Put(ctx, "case-1/poa-adult-1.pdf", []byte("%PDF"), ContentTypePDF))
		data, err := s.store.Get(ctx, "case-1/poa-adult-1.pdf")
		s.Require().NoError(err)
		s.Equal([]byte("%PDF"), data)
	})

	s.Run("overwrite replaces content", func() {
		s.Require().NoError(s.store.Put(ctx, "case-1/poa-adult-1.pdf", []byte("%PDF-2"), ContentTypePDF))
		data, err := s.store.Get(ctx, "case-1/poa-adult-1.pdf")
		s.Require().NoError(err)
		s.Equal([]byte("%PDF-2"), data)
	})

	s.Run("missing object is not found", func() {
		_, err := s.store.Get(ctx, "case-9/none.pdf")
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	s.Run("escaping names are rejected", func() {
		s.Error(s.store.Put(ctx, "../outside.pdf", []byte("x"), ContentTypePDF))
		_, err := s.store.Get(ctx, "/etc/passwd")
		s.Error(err)
	})
}

func (s *LocalSuite) TestSignedURL() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, "case-1/family-tree-5.pdf", []byte("%PDF-tree"), ContentTypePDF))

	signed, err := s.store.SignedURL(ctx, "case-1/family-tree-5.pdf", time.Minute)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(signed, s.server.URL+"/files/results/case-1/family-tree-5.pdf?token="))

	s.Run("valid token serves the file", func() {
		resp, err := http.Get(signed)
		s.Require().NoError(err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal("%PDF-tree", string(body))
		s.Equal(ContentTypePDF, resp.Header.Get("Content-Type"))
	})

	s.Run("missing token is unauthorized", func() {
		resp, err := http.Get(s.server.URL + "/files/results/case-1/family-tree-5.pdf")
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	s.Run("token for another file is forbidden", func() {
		u, err := url.Parse(signed)
		s.Require().NoError(err)
		resp, err := http.Get(s.server.URL + "/files/results/case-2/family-tree-5.pdf?" + u.RawQuery)
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusForbidden, resp.StatusCode)
	})

	s.Run("expired token is unauthorized", func() {
		expired, err := s.store.SignedURL(ctx, "case-1/family-tree-5.pdf", -time.Minute)
		s.Require().NoError(err)
		resp, err := http.Get(expired)
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	})
}
