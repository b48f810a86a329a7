package repository

import (
	"testing"
)

// PostgresTodoRepoはTodoRepositoryインターフェースを満たすことを検証
func TestPostgresTodoRepo_ImplementsInterface(t *testing.T) {
	var _ TodoRepository = (*PostgresTodoRepo)(nil)
}

// NewPostgresTodoRepoが正しく初期化されることを検証
func TestNewPostgresTodoRepo_Initializes(t *testing.T) {
	repo := NewPostgresTodoRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}
