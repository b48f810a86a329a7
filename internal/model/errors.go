package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, otp, todo, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeTodoNotFound    = "TODO_NOT_FOUND"
	ErrCodeOTPExpired      = "OTP_EXPIRED"
	ErrCodeOTPInvalid      = "OTP_INVALID"
	ErrCodeTooManyAttempts = "TOO_MANY_ATTEMPTS"
	ErrCodeDependency      = "DEPENDENCY_ERROR"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewValidationError は入力不正エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewTodoNotFoundError はタスク未検出エラーを生成する。
// 存在しない場合と他ユーザー所有の場合を意図的に区別しない
// （所有権スコープ検索による列挙防止のため、応答は同一にする）。
func NewTodoNotFoundError(todoID string) *APIError {
	return &APIError{
		Code:     ErrCodeTodoNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", todoID),
		Category: "todo",
		Action:   "タスクIDを確認してください。",
	}
}

// NewOTPExpiredError は認証コードの不存在または期限切れエラーを生成する。
// どちらの場合かを呼び出し側に漏らさないよう、両ケースで同一のエラーを返す。
func NewOTPExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeOTPExpired,
		Message:  "認証コードが無効か、有効期限が切れています。",
		Category: "otp",
		Action:   "認証コードを再送信してください。",
	}
}

// NewOTPInvalidError は認証コード不一致エラーを生成する。
func NewOTPInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeOTPInvalid,
		Message:  "認証コードが正しくありません。",
		Category: "otp",
		Action:   "メールに記載されたコードを確認して再入力してください。",
	}
}

// NewTooManyAttemptsError は試行回数超過エラーを生成する。
func NewTooManyAttemptsError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyAttempts,
		Message:  "試行回数が上限に達しました。",
		Category: "otp",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewDependencyError は永続化またはメール送信など外部依存の失敗エラーを生成する。
func NewDependencyError() *APIError {
	return &APIError{
		Code:     ErrCodeDependency,
		Message:  "サーバー内部で問題が発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
