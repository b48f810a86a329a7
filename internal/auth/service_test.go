package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/todoman/internal/model"
)

// --- モック定義 ---

type mockProvider struct {
	name           string
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "https://example.com/oauth?state=" + state
}

func (m *mockProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return &OAuthUserInfo{
		ProviderUserID: "provider-user-1",
		Email:          "alice@example.com",
		Name:           "alice",
		Provider:       m.name,
	}, nil
}

type mockUserRepository struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn        func(ctx context.Context, email string) (*model.User, error)
	createFn             func(ctx context.Context, user *model.User) error
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity) error
}

func (m *mockUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity)
	}
	return nil
}

type mockIdentityRepository struct {
	findFn func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

func (m *mockIdentityRepository) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findFn != nil {
		return m.findFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

type mockSessionRepository struct {
	createFn       func(ctx context.Context, session *model.Session) error
	findByIDFn     func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn   func(ctx context.Context, id string) error
	deleteByUserFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepository) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepository) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserFn != nil {
		return m.deleteByUserFn(ctx, userID)
	}
	return nil
}

func newTestAuthService(providers []OAuthProvider, userRepo *mockUserRepository, identRepo *mockIdentityRepository, sessionRepo *mockSessionRepository) *Service {
	return NewService(providers, userRepo, identRepo, sessionRepo, ServiceConfig{SessionMaxAge: 3600})
}

// --- GetLoginURL のテスト ---

func TestGetLoginURL_KnownProvider(t *testing.T) {
	s := newTestAuthService(
		[]OAuthProvider{&mockProvider{name: "google"}},
		&mockUserRepository{}, &mockIdentityRepository{}, &mockSessionRepository{},
	)

	url, err := s.GetLoginURL("google", "state-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url == "" {
		t.Error("login URL should not be empty")
	}
}

func TestGetLoginURL_UnknownProvider_ReturnsError(t *testing.T) {
	s := newTestAuthService(
		[]OAuthProvider{&mockProvider{name: "google"}},
		&mockUserRepository{}, &mockIdentityRepository{}, &mockSessionRepository{},
	)

	_, err := s.GetLoginURL("twitter", "state-1")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

// --- HandleCallback のテスト ---

func TestHandleCallback_ExistingUser_CreatesSession(t *testing.T) {
	identRepo := &mockIdentityRepository{
		findFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			return &model.Identity{
				ID:             "ident-1",
				UserID:         "user-1",
				Provider:       provider,
				ProviderUserID: providerUserID,
			}, nil
		},
	}

	var savedSession *model.Session
	sessionRepo := &mockSessionRepository{
		createFn: func(ctx context.Context, session *model.Session) error {
			savedSession = session
			return nil
		},
	}

	s := newTestAuthService(
		[]OAuthProvider{&mockProvider{name: "google"}},
		&mockUserRepository{}, identRepo, sessionRepo,
	)

	session, err := s.HandleCallback(context.Background(), "google", "auth-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.UserID != "user-1" {
		t.Errorf("session userID = %q, want %q", session.UserID, "user-1")
	}
	if savedSession == nil {
		t.Fatal("session should be persisted")
	}
	if savedSession.ExpiresAt.Before(time.Now()) {
		t.Error("session should expire in the future")
	}
}

func TestHandleCallback_NewUser_CreatesUserAndIdentity(t *testing.T) {
	var createdUser *model.User
	var createdIdentity *model.Identity
	userRepo := &mockUserRepository{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			createdUser = user
			createdIdentity = identity
			return nil
		},
	}

	s := newTestAuthService(
		[]OAuthProvider{&mockProvider{name: "github"}},
		userRepo, &mockIdentityRepository{}, &mockSessionRepository{},
	)

	session, err := s.HandleCallback(context.Background(), "github", "auth-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if createdUser == nil || createdIdentity == nil {
		t.Fatal("user and identity should be created together")
	}
	if createdUser.Email != "alice@example.com" {
		t.Errorf("user email = %q, want %q", createdUser.Email, "alice@example.com")
	}
	if createdIdentity.Provider != "github" {
		t.Errorf("identity provider = %q, want %q", createdIdentity.Provider, "github")
	}
	if createdIdentity.UserID != createdUser.ID {
		t.Error("identity should reference the created user")
	}
	if session.UserID != createdUser.ID {
		t.Error("session should reference the created user")
	}
}

func TestHandleCallback_UnknownProvider_ReturnsError(t *testing.T) {
	s := newTestAuthService(
		[]OAuthProvider{&mockProvider{name: "google"}},
		&mockUserRepository{}, &mockIdentityRepository{}, &mockSessionRepository{},
	)

	_, err := s.HandleCallback(context.Background(), "twitter", "auth-code")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestHandleCallback_ExchangeFailure_ReturnsError(t *testing.T) {
	provider := &mockProvider{
		name: "google",
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return nil, errors.New("invalid code")
		},
	}
	s := newTestAuthService(
		[]OAuthProvider{provider},
		&mockUserRepository{}, &mockIdentityRepository{}, &mockSessionRepository{},
	)

	_, err := s.HandleCallback(context.Background(), "google", "bad-code")
	if err == nil {
		t.Error("expected error when code exchange fails")
	}
}

// --- Logout / GetCurrentUser のテスト ---

func TestLogout_DeletesSession(t *testing.T) {
	var deletedID string
	sessionRepo := &mockSessionRepository{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	s := newTestAuthService(nil, &mockUserRepository{}, &mockIdentityRepository{}, sessionRepo)

	if err := s.Logout(context.Background(), "session-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deletedID != "session-1" {
		t.Errorf("deleted session = %q, want %q", deletedID, "session-1")
	}
}

func TestLogout_EmptySessionID_ReturnsError(t *testing.T) {
	s := newTestAuthService(nil, &mockUserRepository{}, &mockIdentityRepository{}, &mockSessionRepository{})

	if err := s.Logout(context.Background(), ""); err == nil {
		t.Error("expected error for empty session ID")
	}
}

func TestGetCurrentUser_ValidSession_ReturnsUser(t *testing.T) {
	sessionRepo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	userRepo := &mockUserRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "alice@example.com"}, nil
		},
	}
	s := newTestAuthService(nil, userRepo, &mockIdentityRepository{}, sessionRepo)

	user, err := s.GetCurrentUser(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user ID = %q, want %q", user.ID, "user-1")
	}
}

func TestGetCurrentUser_SessionNotFound_ReturnsError(t *testing.T) {
	s := newTestAuthService(nil, &mockUserRepository{}, &mockIdentityRepository{}, &mockSessionRepository{})

	_, err := s.GetCurrentUser(context.Background(), "missing-session")
	if err == nil {
		t.Error("expected error for missing session")
	}
}

// --- CreateSession のテスト ---

func TestCreateSession_GeneratesUniqueIDs(t *testing.T) {
	s := newTestAuthService(nil, &mockUserRepository{}, &mockIdentityRepository{}, &mockSessionRepository{})

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		session, err := s.CreateSession(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(session.ID) != 64 {
			t.Errorf("session ID length = %d, want 64 hex chars", len(session.ID))
		}
		if seen[session.ID] {
			t.Fatal("session IDs should be unique")
		}
		seen[session.ID] = true
	}
}

func TestCreateSession_PersistFailure_ReturnsError(t *testing.T) {
	sessionRepo := &mockSessionRepository{
		createFn: func(ctx context.Context, session *model.Session) error {
			return errors.New("db down")
		},
	}
	s := newTestAuthService(nil, &mockUserRepository{}, &mockIdentityRepository{}, sessionRepo)

	_, err := s.CreateSession(context.Background(), "user-1")
	if err == nil {
		t.Error("expected error when persistence fails")
	}
}
