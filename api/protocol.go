package api

import "kanban-api/domain"

const mutationMaxSize = 64 * 1024 // 64 KiB

// POST /api/move-task request body.
type moveTaskRequest struct {
	ProjectID   string   `json:"projectId"`
	TaskID      string   `json:"taskId"`
	NewColumnID string   `json:"newColumnId"`
	NewOrder    *float64 `json:"newOrder,omitempty"`
	AfterTaskID *string  `json:"afterTaskId,omitempty"`
}

// POST /api/projects request body.
type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TeamID      string `json:"teamId,omitempty"`
}

// POST /api/projects/:projectId/tasks request body.
type addTaskRequest struct {
	ColumnID string             `json:"columnId"`
	Task     domain.NewTaskData `json:"task"`
}

// PATCH /api/projects/:projectId/tasks/:taskId request body.
type updateTaskRequest struct {
	Task domain.TaskUpdate `json:"task"`
}

// Comment create and edit request body.
type commentRequest struct {
	Content   string `json:"content"`
	UserName  string `json:"userName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
