// Package todo はタスク管理のドメインロジックを提供する。
package todo

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// MetricsRecorder はタスク操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordTodoCreated()
}

// UpdatePatch はタスクの部分更新内容を表す。
// nilのフィールドは変更しない。
type UpdatePatch struct {
	Title     *string
	Completed *bool
}

// Service はタスクCRUDのサービス層。
//
// すべての操作は認証済みユーザーIDを明示的な引数として受け取る。
// リクエストスコープのグローバルから暗黙に取得することはしない。
// 所有権の強制はRepository層の複合述語（id AND user_id）に委ね、
// 「存在しない」と「他ユーザー所有」を応答レベルで区別不能にする。
type Service struct {
	todoRepo repository.TodoRepository
	metrics  MetricsRecorder
}

// NewService はServiceを生成する。
func NewService(todoRepo repository.TodoRepository, metrics MetricsRecorder) *Service {
	return &Service{
		todoRepo: todoRepo,
		metrics:  metrics,
	}
}

// List は指定ユーザーの全タスクを作成日時降順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Todo, error) {
	todos, err := s.todoRepo.ListByUserID(ctx, userID)
	if err != nil {
		slog.Error("failed to list todos",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewDependencyError()
	}

	// レスポンスでは空配列を返す（nullにしない）
	if todos == nil {
		todos = []*model.Todo{}
	}
	return todos, nil
}

// Create は指定ユーザーを所有者とするタスクを作成して返す。
// タイトルは与えられたまま保存する（サーバー側でのトリム・整形はしない）。
func (s *Service) Create(ctx context.Context, userID, title string) (*model.Todo, error) {
	if title == "" {
		return nil, model.NewValidationError("title is required")
	}

	todo := &model.Todo{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Completed: false,
		CreatedAt: time.Now(),
	}

	if err := s.todoRepo.Create(ctx, todo); err != nil {
		slog.Error("failed to create todo",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewDependencyError()
	}

	s.metrics.RecordTodoCreated()
	return todo, nil
}

// Update はタスクを部分更新して返す。patchのnilフィールドは変更しない。
// 該当タスクが存在しないか他ユーザー所有の場合はTODO_NOT_FOUNDを返す
// （両ケースはRepository層の複合述語により区別されない）。
func (s *Service) Update(ctx context.Context, userID, todoID string, patch UpdatePatch) (*model.Todo, error) {
	todo, err := s.todoRepo.UpdateByOwner(ctx, userID, todoID, patch.Title, patch.Completed)
	if err != nil {
		slog.Error("failed to update todo",
			slog.String("user_id", userID),
			slog.String("todo_id", todoID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewDependencyError()
	}
	if todo == nil {
		return nil, model.NewTodoNotFoundError(todoID)
	}

	return todo, nil
}

// Delete はタスクを削除する。Updateと同じ所有者スコープの述語を使い、
// 不存在と他ユーザー所有を同一のTODO_NOT_FOUNDで報告する。
func (s *Service) Delete(ctx context.Context, userID, todoID string) error {
	deleted, err := s.todoRepo.DeleteByOwner(ctx, userID, todoID)
	if err != nil {
		slog.Error("failed to delete todo",
			slog.String("user_id", userID),
			slog.String("todo_id", todoID),
			slog.String("error", err.Error()),
		)
		return model.NewDependencyError()
	}
	if !deleted {
		return model.NewTodoNotFoundError(todoID)
	}

	return nil
}
