package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todoman/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(provider, state string) (string, error)
	handleCallbackFn func(ctx context.Context, provider, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) GetLoginURL(provider, state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(provider, state)
	}
	return "https://example.com/oauth?state=" + state, nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, provider, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, provider, code)
	}
	return &model.Session{ID: "session-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, fmt.Errorf("session not found")
}

// newAuthTestRouter は認証ハンドラーのみをマウントしたテスト用ルーターを返す。
func newAuthTestRouter(service AuthServiceInterface) http.Handler {
	h := NewAuthHandler(service, AuthHandlerConfig{
		BaseURL:       "http://localhost:3000",
		CookieSecure:  false,
		SessionMaxAge: 86400,
	})
	r := chi.NewRouter()
	r.Get("/auth/{provider}/login", h.Login)
	r.Get("/auth/{provider}/callback", h.Callback)
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/me", h.Me)
	return r
}

// --- Login のテスト ---

func TestLogin_RedirectsToProviderWithStateCookie(t *testing.T) {
	var gotProvider string
	service := &mockAuthService{
		getLoginURLFn: func(provider, state string) (string, error) {
			gotProvider = provider
			return "https://accounts.google.com/o/oauth2/auth?state=" + state, nil
		},
	}
	router := newAuthTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	if gotProvider != "google" {
		t.Errorf("provider = %q, want %q", gotProvider, "google")
	}

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "oauth_state" {
			stateCookie = c
		}
	}
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("oauth_state cookie should be set")
	}
}

func TestLogin_UnknownProvider_Returns404(t *testing.T) {
	service := &mockAuthService{
		getLoginURLFn: func(provider, state string) (string, error) {
			return "", fmt.Errorf("unknown oauth provider: %s", provider)
		},
	}
	router := newAuthTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/unknown/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- Callback のテスト ---

func TestCallback_ValidState_SetsSessionCookie(t *testing.T) {
	service := &mockAuthService{}
	router := newAuthTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=auth-code&state=state-123", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-123"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "session_id" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("session cookie should be set")
	}
	if sessionCookie.Value != "session-1" {
		t.Errorf("cookie value = %q, want %q", sessionCookie.Value, "session-1")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie should be HTTP only")
	}
}

func TestCallback_StateMismatch_Returns400(t *testing.T) {
	router := newAuthTestRouter(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=tampered", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "original"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCallback_MissingCode_Returns400(t *testing.T) {
	router := newAuthTestRouter(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=state-123", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-123"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCallback_ServiceError_Returns500(t *testing.T) {
	service := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, provider, code string) (*model.Session, error) {
			return nil, fmt.Errorf("token exchange failed")
		},
	}
	router := newAuthTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=bad-code&state=state-123", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-123"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// --- Logout のテスト ---

func TestLogout_DeletesSessionAndClearsCookie(t *testing.T) {
	var loggedOutSession string
	service := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOutSession = sessionID
			return nil
		},
	}
	router := newAuthTestRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-1"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	if loggedOutSession != "session-1" {
		t.Errorf("logged out session = %q, want %q", loggedOutSession, "session-1")
	}

	// Cookieのクリア（MaxAge < 0）
	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "session_id" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie should be cleared")
	}
}

func TestLogout_NoCookie_StillRedirects(t *testing.T) {
	router := newAuthTestRouter(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
}

// --- Me のテスト ---

func TestMe_ReturnsCurrentUser(t *testing.T) {
	service := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: "alice@example.com", Name: "alice"}, nil
		},
	}
	router := newAuthTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-1"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["id"] != "user-1" || resp["email"] != "alice@example.com" {
		t.Errorf("unexpected response: %v", resp)
	}
}

func TestMe_NoSession_Returns401(t *testing.T) {
	router := newAuthTestRouter(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
