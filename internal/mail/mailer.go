// Package mail はメール送信コラボレーターを提供する。
package mail

import "context"

// Mailer はアウトオブバンドのメール送信インターフェース。
// 永続化とは独立に失敗しうる。
type Mailer interface {
	// Send は指定アドレスへHTMLメールを送信する。
	Send(ctx context.Context, to, subject, htmlBody string) error
}
