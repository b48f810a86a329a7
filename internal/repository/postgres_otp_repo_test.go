package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/todoman/internal/model"
)

// PostgresOTPRepoはOTPRepositoryインターフェースを満たすことを検証
func TestPostgresOTPRepo_ImplementsInterface(t *testing.T) {
	var _ OTPRepository = (*PostgresOTPRepo)(nil)
}

// NewPostgresOTPRepoが正しく初期化されることを検証
func TestNewPostgresOTPRepo_Initializes(t *testing.T) {
	repo := NewPostgresOTPRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// OTPクレデンシャルの期限切れ判定は呼び出し側で行うことの期待動作
func TestOTPCredential_Expired_Concept(t *testing.T) {
	cred := &model.OTPCredential{
		ID:        "otp-1",
		Email:     "alice@example.com",
		ExpiresAt: time.Now().Add(-1 * time.Minute),
	}

	if !cred.Expired(time.Now()) {
		t.Error("expected credential to be expired")
	}

	live := &model.OTPCredential{
		ID:        "otp-2",
		Email:     "alice@example.com",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	if live.Expired(time.Now()) {
		t.Error("expected credential to be live")
	}
}
