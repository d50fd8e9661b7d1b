package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/loreboard/internal/metrics"
	"github.com/hitoshi/loreboard/internal/middleware"
	"github.com/hitoshi/loreboard/internal/model"
	"github.com/hitoshi/loreboard/internal/realtime"
	"github.com/hitoshi/loreboard/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

// newTestRouter はテスト用の依存をワイヤリングしたルーターとクリーンアップ関数を返す。
func newTestRouter(t *testing.T, authSvc AuthServiceInterface, postSvc PostServiceInterface, finder middleware.SessionFinder) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(1000),
		GeneralBurst:    1000,
		PostCreateRate:  rate.Limit(1000),
		PostCreateBurst: 1000,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)

	reg := prometheus.NewRegistry()

	return NewRouter(&RouterDeps{
		SessionFinder:     finder,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		CSRFConfig:        middleware.CSRFConfig{},

		AuthService: authSvc,
		AuthConfig:  AuthHandlerConfig{SessionMaxAge: 86400},

		PostService: postSvc,
		PostConfig:  PostHandlerConfig{DefaultLimit: 50},
		Renderer:    security.NewTextRenderer(),

		Hub:          realtime.NewHub(),
		EventsConfig: EventsHandlerConfig{HeartbeatInterval: time.Hour},

		HealthChecker: &mockHealthChecker{},
		Metrics:       metrics.NewRecorder(reg),
		Gatherer:      reg,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func withCSRF(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
	req.Header.Set("X-CSRF-Token", "test-token")
	return req
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &mockAuthService{}, &mockPostService{}, &mockSessionFinder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %q, want ok status", w.Body.String())
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &mockAuthService{}, &mockPostService{}, &mockSessionFinder{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_PublicFeedWithoutSession(t *testing.T) {
	postSvc := &mockPostService{
		listFn: func(ctx context.Context, scope model.FeedScope) ([]model.Post, error) {
			return []model.Post{{ID: "post-1", Body: "hello", CreatedAt: time.Now()}}, nil
		},
	}
	router := newTestRouter(t, &mockAuthService{}, postSvc, &mockSessionFinder{})

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "post-1") {
		t.Errorf("body = %q, want posts", w.Body.String())
	}
}

func TestRouter_CreatePostWithoutCSRF_Returns403(t *testing.T) {
	router := newTestRouter(t, &mockAuthService{}, &mockPostService{}, &mockSessionFinder{})

	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"body":"hi"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRouter_CreatePostWithoutSession_Returns401(t *testing.T) {
	postSvc := &mockPostService{
		createFn: func(ctx context.Context, userID, body string) (*model.Post, error) {
			t.Error("service.Create must not be reached without a session")
			return nil, nil
		},
	}
	router := newTestRouter(t, &mockAuthService{}, postSvc, &mockSessionFinder{})

	req := withCSRF(httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"body":"hi"}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, http.StatusUnauthorized, w.Body.String())
	}
}

func TestRouter_CreatePostWithSession(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	postSvc := &mockPostService{
		createFn: func(ctx context.Context, userID, body string) (*model.Post, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			return &model.Post{ID: "post-1", UserID: userID, Body: body, CreatedAt: time.Now()}, nil
		},
	}
	router := newTestRouter(t, &mockAuthService{}, postSvc, finder)

	req := withCSRF(httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"body":"hi"}`)))
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body.String())
	}
}

func TestRouter_DeletePostWithoutSession_Returns401(t *testing.T) {
	router := newTestRouter(t, &mockAuthService{}, &mockPostService{}, &mockSessionFinder{})

	req := withCSRF(httptest.NewRequest(http.MethodDelete, "/api/posts/post-1", nil))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_DeletePostWithSession(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	postSvc := &mockPostService{
		deleteFn: func(ctx context.Context, userID, postID string) error {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			return nil
		},
	}
	router := newTestRouter(t, &mockAuthService{}, postSvc, finder)

	req := withCSRF(httptest.NewRequest(http.MethodDelete, "/api/posts/post-1", nil))
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestRouter_SignupRoute(t *testing.T) {
	authSvc := &mockAuthService{
		signUpFn: func(ctx context.Context, email, password string) (*model.SessionUser, error) {
			return testSessionUser(), nil
		},
	}
	router := newTestRouter(t, authSvc, &mockPostService{}, &mockSessionFinder{})

	req := withCSRF(httptest.NewRequest(http.MethodPost, "/auth/signup",
		strings.NewReader(`{"email":"user@example.com","password":"password123"}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body.String())
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	router := newTestRouter(t, &mockAuthService{}, &mockPostService{}, &mockSessionFinder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, &mockAuthService{}, &mockPostService{}, &mockSessionFinder{})

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q, want configured origin", got)
	}
}
