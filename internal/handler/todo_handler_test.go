package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/todo"
)

// --- モック定義 ---

type mockTodoService struct {
	listFn   func(ctx context.Context, userID string) ([]*model.Todo, error)
	createFn func(ctx context.Context, userID, title string) (*model.Todo, error)
	updateFn func(ctx context.Context, userID, todoID string, patch todo.UpdatePatch) (*model.Todo, error)
	deleteFn func(ctx context.Context, userID, todoID string) error
}

func (m *mockTodoService) List(ctx context.Context, userID string) ([]*model.Todo, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return []*model.Todo{}, nil
}

func (m *mockTodoService) Create(ctx context.Context, userID, title string) (*model.Todo, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, title)
	}
	return &model.Todo{ID: "t-default", UserID: userID, Title: title, CreatedAt: time.Now()}, nil
}

func (m *mockTodoService) Update(ctx context.Context, userID, todoID string, patch todo.UpdatePatch) (*model.Todo, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, todoID, patch)
	}
	return nil, nil
}

func (m *mockTodoService) Delete(ctx context.Context, userID, todoID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, todoID)
	}
	return nil
}

// --- テストヘルパー ---

// newTodoTestRouter はタスクハンドラーのみをマウントしたテスト用ルーターを返す。
func newTodoTestRouter(service TodoServiceInterface) http.Handler {
	h := NewTodoHandler(service)
	r := chi.NewRouter()
	r.Get("/api/todos", h.ListTodos)
	r.Post("/api/todos", h.CreateTodo)
	r.Put("/api/todos/{id}", h.UpdateTodo)
	r.Delete("/api/todos/{id}", h.DeleteTodo)
	return r
}

// withUserID は認証済みユーザーIDをリクエストコンテキストに注入する。
func withUserID(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

func decodeErrorResponse(t *testing.T, body *httptest.ResponseRecorder) apiErrorResponse {
	t.Helper()
	var resp apiErrorResponse
	if err := json.NewDecoder(body.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

// --- ListTodos のテスト ---

func TestListTodos_ReturnsArray(t *testing.T) {
	now := time.Now()
	service := &mockTodoService{
		listFn: func(ctx context.Context, userID string) ([]*model.Todo, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			return []*model.Todo{
				{ID: "t1", UserID: "user-1", Title: "task 1", Completed: false, CreatedAt: now},
				{ID: "t2", UserID: "user-1", Title: "task 2", Completed: true, CreatedAt: now},
			}, nil
		},
	}
	router := newTodoTestRouter(service)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/todos", nil), "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var todos []todoResponse
	if err := json.NewDecoder(w.Body).Decode(&todos); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(todos) != 2 {
		t.Errorf("len = %d, want 2", len(todos))
	}
}

func TestListTodos_EmptyList_ReturnsEmptyArray(t *testing.T) {
	router := newTodoTestRouter(&mockTodoService{})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/todos", nil), "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	// null ではなく [] を返す
	body := strings.TrimSpace(w.Body.String())
	if body != "[]" {
		t.Errorf("body = %q, want %q", body, "[]")
	}
}

func TestListTodos_NoUserID_Returns401(t *testing.T) {
	router := newTodoTestRouter(&mockTodoService{})

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	resp := decodeErrorResponse(t, w)
	if resp.Code != model.ErrCodeUnauthorized {
		t.Errorf("error code = %q, want %q", resp.Code, model.ErrCodeUnauthorized)
	}
}

// --- CreateTodo のテスト ---

func TestCreateTodo_Returns201WithRecord(t *testing.T) {
	service := &mockTodoService{
		createFn: func(ctx context.Context, userID, title string) (*model.Todo, error) {
			return &model.Todo{ID: "t-new", UserID: userID, Title: title, CreatedAt: time.Now()}, nil
		},
	}
	router := newTodoTestRouter(service)

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(`{"title":"新しいタスク"}`)), "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var resp todoResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "t-new" {
		t.Errorf("id = %q, want %q", resp.ID, "t-new")
	}
	if resp.Title != "新しいタスク" {
		t.Errorf("title = %q, want %q", resp.Title, "新しいタスク")
	}
}

func TestCreateTodo_EmptyTitle_Returns400(t *testing.T) {
	service := &mockTodoService{
		createFn: func(ctx context.Context, userID, title string) (*model.Todo, error) {
			return nil, model.NewValidationError("title is required")
		},
	}
	router := newTodoTestRouter(service)

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(`{"title":""}`)), "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCreateTodo_MalformedJSON_Returns400(t *testing.T) {
	router := newTodoTestRouter(&mockTodoService{})

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(`{not json`)), "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- UpdateTodo のテスト ---

func TestUpdateTodo_PassesPatchToService(t *testing.T) {
	var gotPatch todo.UpdatePatch
	service := &mockTodoService{
		updateFn: func(ctx context.Context, userID, todoID string, patch todo.UpdatePatch) (*model.Todo, error) {
			gotPatch = patch
			return &model.Todo{ID: todoID, UserID: userID, Title: "task", Completed: true}, nil
		},
	}
	router := newTodoTestRouter(service)

	req := withUserID(httptest.NewRequest(http.MethodPut, "/api/todos/t1", strings.NewReader(`{"completed":true}`)), "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	// completedのみ指定: titleはnilのまま渡される
	if gotPatch.Title != nil {
		t.Errorf("patch title = %v, want nil", *gotPatch.Title)
	}
	if gotPatch.Completed == nil || !*gotPatch.Completed {
		t.Error("patch completed should be true")
	}
}

func TestUpdateTodo_NotFound_Returns404(t *testing.T) {
	service := &mockTodoService{
		updateFn: func(ctx context.Context, userID, todoID string, patch todo.UpdatePatch) (*model.Todo, error) {
			return nil, model.NewTodoNotFoundError(todoID)
		},
	}
	router := newTodoTestRouter(service)

	req := withUserID(httptest.NewRequest(http.MethodPut, "/api/todos/other-users", strings.NewReader(`{"completed":true}`)), "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	resp := decodeErrorResponse(t, w)
	if resp.Code != model.ErrCodeTodoNotFound {
		t.Errorf("error code = %q, want %q", resp.Code, model.ErrCodeTodoNotFound)
	}
}

// --- DeleteTodo のテスト ---

func TestDeleteTodo_Returns200(t *testing.T) {
	var gotTodoID string
	service := &mockTodoService{
		deleteFn: func(ctx context.Context, userID, todoID string) error {
			gotTodoID = todoID
			return nil
		},
	}
	router := newTodoTestRouter(service)

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/todos/t1", nil), "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotTodoID != "t1" {
		t.Errorf("todoID = %q, want %q", gotTodoID, "t1")
	}
}

func TestDeleteTodo_NotFound_Returns404(t *testing.T) {
	service := &mockTodoService{
		deleteFn: func(ctx context.Context, userID, todoID string) error {
			return model.NewTodoNotFoundError(todoID)
		},
	}
	router := newTodoTestRouter(service)

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/todos/missing", nil), "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- エラーマッピングのテスト ---

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{model.ErrCodeValidation, http.StatusBadRequest},
		{model.ErrCodeTodoNotFound, http.StatusNotFound},
		{model.ErrCodeOTPExpired, http.StatusBadRequest},
		{model.ErrCodeOTPInvalid, http.StatusBadRequest},
		{model.ErrCodeTooManyAttempts, http.StatusTooManyRequests},
		{model.ErrCodeDependency, http.StatusInternalServerError},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code})
		if got != tt.want {
			t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
