package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoman/internal/model"
)

// OTPServiceInterface はOTPハンドラーが必要とするサービスインターフェース。
type OTPServiceInterface interface {
	// Request は6桁のワンタイムコードを発行し、メールで送信する。
	Request(ctx context.Context, email string) error
	// Verify はワンタイムコードを検証し、成功時にユーザーを返す。
	Verify(ctx context.Context, email, code string) (*model.User, error)
}

// SessionIssuer はOTP検証成功後のセッション発行インターフェース。
// auth.Serviceが実装する。
type SessionIssuer interface {
	CreateSession(ctx context.Context, userID string) (*model.Session, error)
}

// OTPHandler はワンタイムコード認証のHTTPハンドラー。
type OTPHandler struct {
	service  OTPServiceInterface
	sessions SessionIssuer
	config   AuthHandlerConfig
}

// NewOTPHandler はOTPHandlerを生成する。
func NewOTPHandler(service OTPServiceInterface, sessions SessionIssuer, config AuthHandlerConfig) *OTPHandler {
	return &OTPHandler{
		service:  service,
		sessions: sessions,
		config:   config,
	}
}

// otpRequestBody はコード発行リクエストのボディ。
type otpRequestBody struct {
	Email string `json:"email"`
}

// otpVerifyBody はコード検証リクエストのボディ。
type otpVerifyBody struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// RequestCode はワンタイムコードを発行してメールで送信する。
// POST /auth/otp/request
// コード本文はレスポンスに含めない。
func (h *OTPHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req otpRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if err := h.service.Request(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "認証コードを送信しました。",
	})
}

// VerifyCode はワンタイムコードを検証し、成功時にセッションを発行する。
// POST /auth/otp/verify
func (h *OTPHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	user, err := h.service.Verify(r.Context(), req.Email, req.OTP)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 検証成功: セッションを発行しCookieに設定する
	session, err := h.sessions.CreateSession(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to create session after otp verification",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewDependencyError())
		return
	}

	setSessionCookie(w, h.config, session.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"user_id": user.ID,
	})
}
