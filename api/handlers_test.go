package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

type mockBoard struct {
	project *domain.Project
	task    *domain.Task
	comment *domain.Comment
	err     error

	lastMove    domain.MoveRequest
	lastUserID  string
	moveCalls   int
	deleteCalls int
}

func (m *mockBoard) Project(ctx context.Context, projectID, userID string) (*domain.Project, error) {
	m.lastUserID = userID
	return m.project, m.err
}

func (m *mockBoard) CreateProject(ctx context.Context, data domain.NewProjectData, userID string) (*domain.Project, error) {
	m.lastUserID = userID
	return m.project, m.err
}

func (m *mockBoard) MoveTask(ctx context.Context, req domain.MoveRequest, userID string) (*domain.Task, error) {
	m.moveCalls++
	m.lastMove = req
	m.lastUserID = userID
	return m.task, m.err
}

func (m *mockBoard) AddTask(ctx context.Context, projectID, columnID string, data domain.NewTaskData, userID string) (*domain.Task, error) {
	m.lastUserID = userID
	return m.task, m.err
}

func (m *mockBoard) UpdateTask(ctx context.Context, projectID, taskID string, upd domain.TaskUpdate, userID string) (*domain.Task, error) {
	m.lastUserID = userID
	return m.task, m.err
}

func (m *mockBoard) DeleteTask(ctx context.Context, projectID, taskID, userID string) error {
	m.deleteCalls++
	m.lastUserID = userID
	return m.err
}

func (m *mockBoard) AddComment(ctx context.Context, projectID, taskID, content, userName, avatarURL, userID string) (*domain.Comment, error) {
	m.lastUserID = userID
	return m.comment, m.err
}

func (m *mockBoard) EditComment(ctx context.Context, projectID, taskID, commentID, content, userID string) error {
	return m.err
}

func (m *mockBoard) DeleteComment(ctx context.Context, projectID, taskID, commentID, userID string) error {
	return m.err
}

type mockAuth struct {
	err error
}

func (m mockAuth) UserIDFromAuthHeader(string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "user", nil
}

type fakeDeduper struct {
	seen    map[string]bool
	removed []string
	err     error
}

func (f *fakeDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	full := userID + ":" + key
	if f.seen[full] {
		return false, nil
	}
	f.seen[full] = true
	return true, nil
}

func (f *fakeDeduper) Remove(ctx context.Context, userID, key string) error {
	full := userID + ":" + key
	delete(f.seen, full)
	f.removed = append(f.removed, full)
	return nil
}

func newMoveContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/move-task", strings.NewReader(body))
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestMoveTaskSuccess(t *testing.T) {
	board := &mockBoard{task: &domain.Task{ID: "t1", ColumnID: "DONE", Order: 0}}
	c, rec := newMoveContext(t, `{"projectId":"p1","taskId":"t1","newColumnId":"DONE","afterTaskId":null}`)

	if err := moveTask(board, mockAuth{}, nil, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if board.lastMove.ProjectID != "p1" || board.lastMove.TaskID != "t1" || board.lastMove.ColumnID != "DONE" {
		t.Fatalf("unexpected move request: %#v", board.lastMove)
	}
	if board.lastUserID != "user" {
		t.Fatalf("unexpected user id: %s", board.lastUserID)
	}
	var resp domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ID != "t1" || resp.ColumnID != "DONE" {
		t.Fatalf("unexpected task: %#v", resp)
	}
}

func TestMoveTaskForwardsPlacement(t *testing.T) {
	board := &mockBoard{task: &domain.Task{ID: "t1"}}
	c, _ := newMoveContext(t, `{"projectId":"p1","taskId":"t1","newColumnId":"TODO","afterTaskId":"t9","newOrder":2.5}`)

	if err := moveTask(board, mockAuth{}, nil, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if board.lastMove.NewOrder == nil || *board.lastMove.NewOrder != 2.5 {
		t.Fatalf("expected explicit order to be forwarded: %#v", board.lastMove.NewOrder)
	}
	if board.lastMove.AfterTaskID == nil || *board.lastMove.AfterTaskID != "t9" {
		t.Fatalf("expected anchor to be forwarded: %#v", board.lastMove.AfterTaskID)
	}
}

func TestMoveTaskUnauthorized(t *testing.T) {
	board := &mockBoard{}
	c, rec := newMoveContext(t, `{"projectId":"p1","taskId":"t1","newColumnId":"DONE"}`)

	if err := moveTask(board, mockAuth{err: errors.New("bad token")}, nil, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}
	if board.moveCalls != 0 {
		t.Fatalf("board must not be called without auth")
	}
}

func TestMoveTaskInvalidBody(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"unknown field", `{"projectId":"p1","taskId":"t1","newColumnId":"DONE","bogus":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			board := &mockBoard{}
			c, rec := newMoveContext(t, tc.body)
			if err := moveTask(board, mockAuth{}, nil, log.New())(c); err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400 got %d", rec.Code)
			}
			if board.moveCalls != 0 {
				t.Fatalf("board must not be called for invalid body")
			}
		})
	}
}

func TestMoveTaskMissingFields(t *testing.T) {
	board := &mockBoard{}
	c, rec := newMoveContext(t, `{"projectId":"p1","taskId":"","newColumnId":"DONE"}`)

	if err := moveTask(board, mockAuth{}, nil, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestMoveTaskErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"project not found", domain.ErrProjectNotFound, http.StatusNotFound},
		{"task not found", domain.ErrTaskNotFound, http.StatusNotFound},
		{"invalid column", domain.ErrInvalidTarget, http.StatusBadRequest},
		{"permission denied", &domain.AuthorizationError{Code: "TASK_MANAGEMENT_DENIED", Message: "no"}, http.StatusForbidden},
		{"write conflict", domain.ErrConcurrencyConflict, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			board := &mockBoard{err: tc.err}
			c, rec := newMoveContext(t, `{"projectId":"p1","taskId":"t1","newColumnId":"DONE"}`)
			if err := moveTask(board, mockAuth{}, nil, log.New())(c); err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if rec.Code != tc.status {
				t.Fatalf("expected status %d got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestMoveTaskIdempotencyShortCircuit(t *testing.T) {
	board := &mockBoard{task: &domain.Task{ID: "t1"}}
	deduper := &fakeDeduper{}
	body := `{"projectId":"p1","taskId":"t1","newColumnId":"DONE"}`

	c, rec := newMoveContext(t, body)
	c.Request().Header.Set("Idempotency-Key", "key-1")
	if err := moveTask(board, mockAuth{}, deduper, log.New())(c); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if rec.Code != http.StatusOK || board.moveCalls != 1 {
		t.Fatalf("first request should reach the board: code=%d calls=%d", rec.Code, board.moveCalls)
	}

	c2, rec2 := newMoveContext(t, body)
	c2.Request().Header.Set("Idempotency-Key", "key-1")
	if err := moveTask(board, mockAuth{}, deduper, log.New())(c2); err != nil {
		t.Fatalf("duplicate request: %v", err)
	}
	if rec2.Code != http.StatusOK {
		t.Fatalf("duplicate should still be 200, got %d", rec2.Code)
	}
	if board.moveCalls != 1 {
		t.Fatalf("duplicate must not reach the board, calls=%d", board.moveCalls)
	}
}

func TestMoveTaskFailureReopensIdempotencyKey(t *testing.T) {
	board := &mockBoard{err: domain.ErrConcurrencyConflict}
	deduper := &fakeDeduper{}

	c, rec := newMoveContext(t, `{"projectId":"p1","taskId":"t1","newColumnId":"DONE"}`)
	c.Request().Header.Set("Idempotency-Key", "key-1")
	if err := moveTask(board, mockAuth{}, deduper, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 got %d", rec.Code)
	}
	if len(deduper.removed) != 1 {
		t.Fatalf("expected key to be reopened after failure: %#v", deduper.removed)
	}
}

func TestGetProject(t *testing.T) {
	e := echo.New()
	board := &mockBoard{project: &domain.Project{ID: "p1", Name: "Board"}}
	req := httptest.NewRequest(http.MethodGet, "/api/projects/p1", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("projectId")
	c.SetParamValues("p1")

	if err := getProject(board, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp domain.Project
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ID != "p1" || resp.Name != "Board" {
		t.Fatalf("unexpected project: %#v", resp)
	}
}

func TestGetProjectPermissionDenied(t *testing.T) {
	e := echo.New()
	board := &mockBoard{err: &domain.AuthorizationError{Code: "PROJECT_ACCESS_DENIED", Message: "no"}}
	req := httptest.NewRequest(http.MethodGet, "/api/projects/p1", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("projectId")
	c.SetParamValues("p1")

	if err := getProject(board, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 got %d", rec.Code)
	}
}

func TestCreateProject(t *testing.T) {
	e := echo.New()
	board := &mockBoard{project: &domain.Project{ID: "p-new", Name: "Fresh"}}
	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"name":"Fresh"}`))
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := createProject(board, mockAuth{}, nil)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
}

func TestAddTask(t *testing.T) {
	e := echo.New()
	board := &mockBoard{task: &domain.Task{ID: "t-new", Title: "Fresh"}}
	body := `{"columnId":"TODO","task":{"title":"Fresh"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/projects/p1/tasks", strings.NewReader(body))
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("projectId")
	c.SetParamValues("p1")

	if err := addTask(board, mockAuth{}, nil)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	e := echo.New()
	board := &mockBoard{}
	req := httptest.NewRequest(http.MethodDelete, "/api/projects/p1/tasks/t1", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("projectId", "taskId")
	c.SetParamValues("p1", "t1")

	if err := deleteTask(board, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", rec.Code)
	}
	if board.deleteCalls != 1 {
		t.Fatalf("expected delete to reach the board")
	}
}

func TestGzipRequestMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(GzipRequestMiddleware())
	board := &mockBoard{task: &domain.Task{ID: "t1"}}
	e.POST("/api/move-task", moveTask(board, mockAuth{}, nil, log.New()))

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(`{"projectId":"p1","taskId":"t1","newColumnId":"DONE"}`)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/move-task", &buf)
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if board.lastMove.TaskID != "t1" {
		t.Fatalf("expected decompressed body to reach the board: %#v", board.lastMove)
	}
}

func TestHealthz(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := healthz()(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
}
