package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"linenotes/internal/api"
	internalauth "linenotes/internal/auth"
	"linenotes/internal/models"
	"linenotes/internal/persist"
	"linenotes/internal/service"
)

func newTestService(t *testing.T, layer persist.Layer) *service.Service {
	t.Helper()
	svc, err := service.New(service.Options{
		ProjectRoot: t.TempDir(),
		Identity:    func() string { return "ana" },
		Clock:       func() time.Time { return time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC) },
		Layer:       layer,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = svc.Dispose() })
	return svc
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New("", newTestService(t, nil), "", nil)
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestListenAddrRemoteGuard(t *testing.T) {
	t.Run("allows loopback", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		addr, err := ListenAddr("http://127.0.0.1:7474")
		if err != nil {
			t.Fatalf("expected loopback to be allowed, got error: %v", err)
		}
		if addr != "127.0.0.1:7474" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})

	t.Run("blocks non-loopback by default", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		if _, err := ListenAddr("http://0.0.0.0:7474"); err == nil {
			t.Fatal("expected error for non-loopback listen host")
		}
	})

	t.Run("allows non-loopback when explicitly enabled", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "true")
		addr, err := ListenAddr("http://0.0.0.0:7474")
		if err != nil {
			t.Fatalf("expected allow-remote to permit host, got error: %v", err)
		}
		if addr != "0.0.0.0:7474" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})
}

func TestWithAuth(t *testing.T) {
	const token = "0123456789abcdef-token"
	hash, err := internalauth.HashToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	srv := &Server{tokenHash: hash}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := srv.withAuth(next)

	t.Run("denies missing auth", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/files", nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		errResp := decodeBody[api.ErrorResponse](t, w)
		if errResp.ErrorCode != ErrCodeUnauthorized {
			t.Fatalf("expected error_code %d, got %d", ErrCodeUnauthorized, errResp.ErrorCode)
		}
	})

	t.Run("denies wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/files", nil)
		req.Header.Set("Authorization", "Bearer not-the-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("allows valid auth twice", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "/v1/files", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != http.StatusNoContent {
				t.Fatalf("expected 204, got %d", w.Code)
			}
		}
	})

	t.Run("health stays open", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
	})
}

func TestHealthInfoAndMetrics(t *testing.T) {
	h := newTestServer(t).Handler()

	if w := doJSON(t, h, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	w := doJSON(t, h, http.MethodGet, "/v1/info", nil)
	info := decodeBody[api.InfoResponse](t, w)
	if info.Backend != persist.BackendJSON || info.Annotations != 0 {
		t.Fatalf("unexpected info %+v", info)
	}
	w = doJSON(t, h, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("linenotes_")) {
		t.Fatalf("metrics: %d", w.Code)
	}
}

func TestUnknownJSONFieldsAreIgnored(t *testing.T) {
	h := newTestServer(t).Handler()
	w := doJSON(t, h, http.MethodPost, "/v1/comments", map[string]any{
		"path":           "a.go",
		"line":           0,
		"text":           "forward compatible",
		"unknown_future": map[string]any{"nested": true},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestInvalidJSON(t *testing.T) {
	h := newTestServer(t).Handler()
	req := httptest.NewRequest(http.MethodPost, "/v1/comments", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if errResp := decodeBody[api.ErrorResponse](t, w); errResp.ErrorCode != ErrCodeInvalidJSON {
		t.Fatalf("expected %d, got %+v", ErrCodeInvalidJSON, errResp)
	}
}

func TestClassifyServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   int
	}{
		{err: errors.New("boom"), status: http.StatusInternalServerError, code: ErrCodeInternal},
		{err: service.ErrClosed, status: http.StatusServiceUnavailable, code: ErrCodeServiceClosed},
		{err: models.ErrInvalid, status: http.StatusBadRequest, code: ErrCodeInvalidArgument},
	}
	for _, tt := range tests {
		got := classifyServiceError(tt.err)
		if httpStatusFromError(got) != tt.status || errorNumericCode(0, got) != tt.code {
			t.Fatalf("%v: got status %d code %d", tt.err, httpStatusFromError(got), errorNumericCode(0, got))
		}
	}
}
