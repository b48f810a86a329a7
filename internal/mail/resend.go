package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultResendBaseURL = "https://api.resend.com"

// ResendMailer はResend APIを使用したMailer実装。
type ResendMailer struct {
	apiKey  string
	from    string
	client  *http.Client
	baseURL string
}

// ResendConfig はResendMailerの設定。
type ResendConfig struct {
	APIKey string
	From   string

	// テスト用にオーバーライド可能なURL
	BaseURL string
}

// NewResendMailer はResendMailerを生成する。
func NewResendMailer(config ResendConfig) *ResendMailer {
	if config.BaseURL == "" {
		config.BaseURL = defaultResendBaseURL
	}
	return &ResendMailer{
		apiKey: config.APIKey,
		from:   config.From,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: config.BaseURL,
	}
}

// sendRequest はResendの/emailsエンドポイントのリクエストボディ。
type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send は指定アドレスへHTMLメールを送信する。
// 2xx以外のレスポンスはエラーとして返す。
func (m *ResendMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	body := sendRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		// エラー詳細はログ調査用に本文先頭のみ読む
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("resend API returned status %d: %s", resp.StatusCode, string(detail))
	}

	return nil
}

// compile-time interface check
var _ Mailer = (*ResendMailer)(nil)
