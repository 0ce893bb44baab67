package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config points the suite at a server. Token settings must match the server's JWT_* variables.
type Config struct {
	BaseURL    string
	SigningKey string
	Issuer     string
	Audience   string
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:    os.Getenv("E2E_BASE_URL"),
		SigningKey: envOr("E2E_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Issuer:     envOr("E2E_JWT_ISSUER", "casedocs"),
		Audience:   envOr("E2E_JWT_AUDIENCE", "casedocs-api"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// TestContext carries per-scenario state: the caller's token, the client IP
// presented to the server and the last response.
type TestContext struct {
	cfg      Config
	client   *http.Client
	token    string
	clientIP string
	status   int
	body     []byte
	saved    map[string]string
}

func NewTestContext(cfg Config) *TestContext {
	return &TestContext{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		saved:  map[string]string{},
	}
}

var scenarioSeq atomic.Uint32

// Reset clears state between scenarios. Each scenario gets its own client IP
// so failed-attempt counters do not leak across scenarios.
func (tc *TestContext) Reset() {
	n := scenarioSeq.Add(1)
	tc.token = ""
	tc.status = 0
	tc.body = nil
	tc.saved = map[string]string{}
	tc.clientIP = fmt.Sprintf("10.%d.%d.%d", (n>>16)&0xff, (n>>8)&0xff, n&0xff)
}

// SignIn mints a bearer token the server accepts for subject with roles.
func (tc *TestContext) SignIn(subject string, roles []string) error {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   subject,
		"roles": roles,
		"iss":   tc.cfg.Issuer,
		"aud":   []string{tc.cfg.Audience},
		"iat":   now.Unix(),
		"exp":   now.Add(15 * time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(tc.cfg.SigningKey))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	tc.token = signed
	return nil
}

func (tc *TestContext) SetToken(token string) {
	tc.token = token
}

func (tc *TestContext) SetClientIP(ip string) {
	tc.clientIP = ip
}

func (tc *TestContext) Do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, tc.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	if tc.clientIP != "" {
		req.Header.Set("X-Forwarded-For", tc.clientIP)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.status = resp.StatusCode
	tc.body, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) LastStatus() int {
	return tc.status
}

func (tc *TestContext) LastBody() []byte {
	return tc.body
}

// Field returns a top-level field of the last JSON response.
func (tc *TestContext) Field(name string) (any, error) {
	var out map[string]any
	if err := json.Unmarshal(tc.body, &out); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %s", tc.body)
	}
	v, ok := out[name]
	if !ok {
		return nil, fmt.Errorf("field %q missing from response: %s", name, tc.body)
	}
	return v, nil
}

func (tc *TestContext) Save(key, value string) {
	tc.saved[key] = value
}

func (tc *TestContext) Saved(key string) string {
	return tc.saved[key]
}
