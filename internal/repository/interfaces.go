// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/todoman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。OTP認証での初回ログインで使用する
	// （この経路で作成されたユーザーはidentityを持たない）。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// OAuthでの初回ログインで使用する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// OTPRepository はOTPクレデンシャルの永続化インターフェース。
// メールアドレスごとにライブなレコードは高々1件という不変条件を
// ストレージ層（email UNIQUE制約 + Replaceのトランザクション）で強制する。
type OTPRepository interface {
	// Replace は指定メールアドレスの既存クレデンシャルを削除し、
	// 新しいクレデンシャルを挿入する。両操作は同一トランザクションで行い、
	// 削除が挿入にhappen-beforeすることを保証する。
	Replace(ctx context.Context, cred *model.OTPCredential) error

	// FindByEmail は指定メールアドレスのクレデンシャルを取得する。
	// 見つからない場合はnilを返す。期限切れ判定は呼び出し側で行う。
	FindByEmail(ctx context.Context, email string) (*model.OTPCredential, error)

	// ConsumeByID は指定IDのクレデンシャルを削除し、実際に削除できたかを返す。
	// falseは並行する検証により既に消費済みであることを意味する。
	ConsumeByID(ctx context.Context, id string) (bool, error)

	// DeleteByEmail は指定メールアドレスのクレデンシャルを削除する。
	// メール送信失敗時のロールバックで使用する。
	DeleteByEmail(ctx context.Context, email string) error
}

// TodoRepository はタスクデータの永続化インターフェース。
// 単体取得・更新・削除はすべてid AND user_idの複合述語で行い、
// 「存在しない」と「他ユーザー所有」をストレージ層で区別不能にする。
type TodoRepository interface {
	// ListByUserID は指定ユーザーの全タスクを作成日時降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Todo, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, todo *model.Todo) error

	// UpdateByOwner はidとuser_idの複合述語で1文のUPDATEを実行し、
	// 更新後のタスクを返す。該当行がない場合はnilを返す。
	// nilのフィールドは変更せず既存値を維持する。
	UpdateByOwner(ctx context.Context, userID, todoID string, title *string, completed *bool) (*model.Todo, error)

	// DeleteByOwner はidとuser_idの複合述語でタスクを削除し、
	// 実際に削除できたかを返す。
	DeleteByOwner(ctx context.Context, userID, todoID string) (bool, error)
}
