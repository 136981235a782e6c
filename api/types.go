package api

import (
	"context"

	"kanban-api/domain"
)

// Board abstracts the board service for handlers.
type Board interface {
	Project(ctx context.Context, projectID, userID string) (*domain.Project, error)
	CreateProject(ctx context.Context, data domain.NewProjectData, userID string) (*domain.Project, error)
	MoveTask(ctx context.Context, req domain.MoveRequest, userID string) (*domain.Task, error)
	AddTask(ctx context.Context, projectID, columnID string, data domain.NewTaskData, userID string) (*domain.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID string, upd domain.TaskUpdate, userID string) (*domain.Task, error)
	DeleteTask(ctx context.Context, projectID, taskID, userID string) error
	AddComment(ctx context.Context, projectID, taskID, content, userName, avatarURL, userID string) (*domain.Comment, error)
	EditComment(ctx context.Context, projectID, taskID, commentID, content, userID string) error
	DeleteComment(ctx context.Context, projectID, taskID, commentID, userID string) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate mutation requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, userID, key string) error
}
