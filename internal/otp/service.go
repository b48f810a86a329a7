// Package otp はワンタイムコードによるメールアドレス所有確認のドメインロジックを提供する。
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/hitoshi/todoman/internal/mail"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// MetricsRecorder はOTPライフサイクルのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordOTPRequested()
	RecordOTPVerified()
	RecordOTPRejected(reason string)
}

// ServiceConfig はOTPサービスの設定。
type ServiceConfig struct {
	TTL             time.Duration // コードの有効期間
	MaxAttempts     int           // メールアドレスごとの検証試行バースト上限
	CleanupInterval time.Duration // メールアドレスごとの管理エントリのクリーンアップ間隔
}

// DefaultServiceConfig はデフォルトのOTPサービス設定を返す。
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		TTL:             5 * time.Minute,
		MaxAttempts:     5,
		CleanupInterval: 5 * time.Minute,
	}
}

// emailEntry はメールアドレスごとの直列化ロックと試行リミッターを保持する。
type emailEntry struct {
	mu         sync.Mutex
	attempts   *rate.Limiter
	lastAccess time.Time
}

// Service はOTPクレデンシャルのライフサイクル（発行・検証・消費）を管理する。
//
// メールアドレスごとの操作はemailEntryのミューテックスで直列化する。
// 「既存クレデンシャルの削除→新規挿入」と「取得→成功時削除」がそれぞれ
// happen-before関係を保ち、同一メールアドレスに2件のライブなクレデンシャルが
// 生じたり、同一コードで2つの検証が同時に成功したりすることを防ぐ。
// ストレージ層のemail UNIQUE制約とConsumeByIDの削除行数チェックが
// 二重の防壁として機能する。
type Service struct {
	otpRepo  repository.OTPRepository
	userRepo repository.UserRepository
	mailer   mail.Mailer
	metrics  MetricsRecorder
	config   ServiceConfig

	mu      sync.Mutex
	entries map[string]*emailEntry

	stopCh chan struct{}
}

// NewService はServiceを生成し、バックグラウンドで管理エントリの
// クリーンアップを開始する。
func NewService(
	otpRepo repository.OTPRepository,
	userRepo repository.UserRepository,
	mailer mail.Mailer,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	s := &Service{
		otpRepo:  otpRepo,
		userRepo: userRepo,
		mailer:   mailer,
		metrics:  metrics,
		config:   config,
		entries:  make(map[string]*emailEntry),
		stopCh:   make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (s *Service) Stop() {
	close(s.stopCh)
}

// Request は6桁のワンタイムコードを発行する。
// 既存のライブなクレデンシャルは新しいものに置き換えられ（SUPERSEDED）、
// コード本文はメールでのみ送信される。戻り値にもログにも平文コードは含めない。
// メール送信に失敗した場合は書き込んだクレデンシャルを取り消し、
// 使用不能なレコードがリクエストをブロックし続けないようにする。
func (s *Service) Request(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	entry := s.getOrCreateEntry(email)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	code, err := generateCode()
	if err != nil {
		slog.Error("failed to generate otp code", slog.String("error", err.Error()))
		return model.NewDependencyError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash otp code", slog.String("error", err.Error()))
		return model.NewDependencyError()
	}

	now := time.Now()
	cred := &model.OTPCredential{
		ID:        uuid.New().String(),
		Email:     email,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.config.TTL),
		CreatedAt: now,
	}

	if err := s.otpRepo.Replace(ctx, cred); err != nil {
		slog.Error("failed to store otp credential",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return model.NewDependencyError()
	}

	if err := s.mailer.Send(ctx, email, otpMailSubject, otpMailBody(code, s.config.TTL)); err != nil {
		slog.Error("failed to dispatch otp email",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		// 送信できなかったコードは検証不能なので、クレデンシャルを取り消す
		if delErr := s.otpRepo.DeleteByEmail(ctx, email); delErr != nil {
			slog.Error("failed to roll back otp credential",
				slog.String("email", email),
				slog.String("error", delErr.Error()),
			)
		}
		return model.NewDependencyError()
	}

	s.metrics.RecordOTPRequested()
	slog.Info("otp issued", slog.String("email", email))

	return nil
}

// Verify はワンタイムコードを検証し、成功時にユーザーを返す。
// 未登録のメールアドレスの場合はユーザーを新規作成する
// （表示名はメールアドレスのローカルパート）。
//
// クレデンシャルの不存在と期限切れは同一のエラーとして報告する。
// コード不一致の場合クレデンシャルは削除せず、期限内は再試行可能なまま残す。
// 試行回数はメールアドレスごとのトークンバケットで制限する。
func (s *Service) Verify(ctx context.Context, email, code string) (*model.User, error) {
	if email == "" || code == "" {
		return nil, model.NewValidationError("email and otp are required")
	}

	entry := s.getOrCreateEntry(email)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.attempts.Allow() {
		s.metrics.RecordOTPRejected("throttled")
		slog.Warn("otp verification throttled", slog.String("email", email))
		return nil, model.NewTooManyAttemptsError()
	}

	cred, err := s.otpRepo.FindByEmail(ctx, email)
	if err != nil {
		slog.Error("failed to load otp credential",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, model.NewDependencyError()
	}

	// 不存在と期限切れを呼び出し側から区別できないようにする
	if cred == nil || cred.Expired(time.Now()) {
		s.metrics.RecordOTPRejected("expired")
		return nil, model.NewOTPExpiredError()
	}

	// bcryptの比較は定数時間相当
	if err := bcrypt.CompareHashAndPassword([]byte(cred.CodeHash), []byte(code)); err != nil {
		s.metrics.RecordOTPRejected("mismatch")
		return nil, model.NewOTPInvalidError()
	}

	// 単回使用の強制: 削除できなかった場合は並行する検証に消費済み
	consumed, err := s.otpRepo.ConsumeByID(ctx, cred.ID)
	if err != nil {
		slog.Error("failed to consume otp credential",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, model.NewDependencyError()
	}
	if !consumed {
		s.metrics.RecordOTPRejected("consumed")
		return nil, model.NewOTPExpiredError()
	}

	user, err := s.findOrCreateUser(ctx, email)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOTPVerified()
	slog.Info("otp verified",
		slog.String("email", email),
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// findOrCreateUser はメールアドレスでユーザーを検索し、存在しなければ作成する。
func (s *Service) findOrCreateUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		slog.Error("failed to find user by email",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, model.NewDependencyError()
	}
	if user != nil {
		return user, nil
	}

	now := time.Now()
	user = &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      localPart(email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		slog.Error("failed to create user",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, model.NewDependencyError()
	}

	slog.Info("new user created via otp", slog.String("user_id", user.ID))
	return user, nil
}

// getOrCreateEntry はメールアドレスごとの管理エントリを取得または作成する。
func (s *Service) getOrCreateEntry(email string) *emailEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[email]; ok {
		e.lastAccess = time.Now()
		return e
	}

	e := &emailEntry{
		attempts:   rate.NewLimiter(rate.Every(time.Minute), s.config.MaxAttempts),
		lastAccess: time.Now(),
	}
	s.entries[email] = e
	return e
}

// cleanupLoop はバックグラウンドで未使用の管理エントリを定期的にクリーンアップする。
func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (s *Service) cleanup() {
	ttl := s.config.CleanupInterval * 2
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for email, e := range s.entries {
		if now.Sub(e.lastAccess) > ttl {
			delete(s.entries, email)
		}
	}
}

// validateEmail はメールアドレスの形式を検証する。
func validateEmail(email string) error {
	if email == "" {
		return model.NewValidationError("email is required")
	}
	if !emailRegex.MatchString(email) {
		return model.NewValidationError("invalid email format")
	}
	return nil
}

// generateCode は[100000, 999999]の一様乱数から6桁のコードを生成する。
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// localPart はメールアドレスのローカルパート（@より前）を返す。
func localPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

const otpMailSubject = "【Todoman】ログイン認証コード"

// otpMailBody は認証コードメールのHTML本文を生成する。
func otpMailBody(code string, ttl time.Duration) string {
	minutes := int(ttl.Minutes())
	return fmt.Sprintf(
		`<p>Todomanのログイン認証コードは <strong>%s</strong> です。</p>
<p>このコードは%d分間有効です。心当たりのない場合はこのメールを破棄してください。</p>`,
		code, minutes,
	)
}
