package model

import "time"

// OTPCredential はメールアドレス所有確認のための保留中ワンタイムコードを表す。
// コード本体は保存せず、bcryptハッシュのみを保持する。
// 同一メールアドレスに対してライブなレコードは常に高々1件
// （otp_credentialsテーブルのemail UNIQUE制約で強制）。
type OTPCredential struct {
	ID        string
	Email     string
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired は基準時刻nowにおいてクレデンシャルが期限切れかどうかを返す。
func (c *OTPCredential) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
