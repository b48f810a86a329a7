package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/todoman/internal/model"
)

// PostgresTodoRepo はPostgreSQLを使用したタスクリポジトリ。
// 単体操作はすべてid AND user_idの複合述語で実行する。idのみで取得してから
// アプリケーション側で所有者を比較する方式は採らない。述語自体をスコープする
// ことで、他ユーザー所有のタスクと存在しないタスクがストレージ層の時点で
// 区別不能になる。
type PostgresTodoRepo struct {
	db *sql.DB
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
func NewPostgresTodoRepo(db *sql.DB) *PostgresTodoRepo {
	return &PostgresTodoRepo{db: db}
}

// ListByUserID は指定ユーザーの全タスクを作成日時降順で返す。
func (r *PostgresTodoRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, completed, created_at
		 FROM todos
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	var todos []*model.Todo
	for rows.Next() {
		todo := &model.Todo{}
		if err := rows.Scan(&todo.ID, &todo.UserID, &todo.Title, &todo.Completed, &todo.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}

	return todos, nil
}

// Create はタスクを作成する。
func (r *PostgresTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO todos (id, user_id, title, completed, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		todo.ID, todo.UserID, todo.Title, todo.Completed, todo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert todo: %w", err)
	}
	return nil
}

// UpdateByOwner はidとuser_idの複合述語で1文のUPDATEを実行し、更新後のタスクを
// 返す。nilのフィールドはCOALESCEにより既存値を維持する。該当行がない場合は
// nilを返す（存在しない場合と他ユーザー所有の場合を区別しない）。
func (r *PostgresTodoRepo) UpdateByOwner(ctx context.Context, userID, todoID string, title *string, completed *bool) (*model.Todo, error) {
	var titleArg sql.NullString
	if title != nil {
		titleArg = sql.NullString{String: *title, Valid: true}
	}
	var completedArg sql.NullBool
	if completed != nil {
		completedArg = sql.NullBool{Bool: *completed, Valid: true}
	}

	todo := &model.Todo{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE todos
		 SET title = COALESCE($3, title),
		     completed = COALESCE($4, completed)
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, title, completed, created_at`,
		todoID, userID, titleArg, completedArg,
	).Scan(&todo.ID, &todo.UserID, &todo.Title, &todo.Completed, &todo.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}

	return todo, nil
}

// DeleteByOwner はidとuser_idの複合述語でタスクを削除し、実際に削除できたかを返す。
func (r *PostgresTodoRepo) DeleteByOwner(ctx context.Context, userID, todoID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM todos WHERE id = $1 AND user_id = $2`,
		todoID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)
