package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/todoman/internal/model"
)

// PostgresOTPRepo はPostgreSQLを使用したOTPクレデンシャルリポジトリ。
type PostgresOTPRepo struct {
	db *sql.DB
}

// NewPostgresOTPRepo はPostgresOTPRepoを生成する。
func NewPostgresOTPRepo(db *sql.DB) *PostgresOTPRepo {
	return &PostgresOTPRepo{db: db}
}

// Replace は指定メールアドレスの既存クレデンシャルを削除し、新しいクレデンシャルを
// 挿入する。削除→挿入を同一トランザクションで実行することで、リクエストごとの
// 「置き換え」が途中状態を残さないことを保証する。emailのUNIQUE制約により、
// 並行する2つのReplaceが2件のライブなレコードを残すことはない。
func (r *PostgresOTPRepo) Replace(ctx context.Context, cred *model.OTPCredential) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM otp_credentials WHERE email = $1`,
		cred.Email,
	)
	if err != nil {
		return fmt.Errorf("failed to delete existing otp credential: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO otp_credentials (id, email, code_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		cred.ID, cred.Email, cred.CodeHash, cred.ExpiresAt, cred.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert otp credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByEmail は指定メールアドレスのクレデンシャルを取得する。
// 見つからない場合はnilを返す。期限切れ判定はサービス層で行う
// （不存在と期限切れを同一のエラーとして扱うのはサービス層の責務）。
func (r *PostgresOTPRepo) FindByEmail(ctx context.Context, email string) (*model.OTPCredential, error) {
	cred := &model.OTPCredential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, code_hash, expires_at, created_at
		 FROM otp_credentials
		 WHERE email = $1`,
		email,
	).Scan(&cred.ID, &cred.Email, &cred.CodeHash, &cred.ExpiresAt, &cred.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find otp credential: %w", err)
	}

	return cred, nil
}

// ConsumeByID は指定IDのクレデンシャルを削除し、実際に削除できたかを返す。
// 削除行数0は並行する検証に先を越されたことを意味し、呼び出し側は
// 検証失敗として扱う（同一コードでの二重成功を防ぐ）。
func (r *PostgresOTPRepo) ConsumeByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM otp_credentials WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to consume otp credential: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteByEmail は指定メールアドレスのクレデンシャルを削除する。
func (r *PostgresOTPRepo) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM otp_credentials WHERE email = $1`,
		email,
	)
	if err != nil {
		return fmt.Errorf("failed to delete otp credential: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OTPRepository = (*PostgresOTPRepo)(nil)
