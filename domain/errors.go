package domain

import "errors"

var (
	// ErrProjectNotFound indicates the referenced project document does not
	// exist at read time.
	ErrProjectNotFound = errors.New("project not found")
	// ErrTaskNotFound indicates the referenced task is absent from the
	// project's task list.
	ErrTaskNotFound = errors.New("task not found")
	// ErrCommentNotFound indicates the referenced comment is absent from the
	// task's comment list.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrInvalidTarget indicates the target column does not exist in the
	// project.
	ErrInvalidTarget = errors.New("invalid target column")
	// ErrEmptyTitle rejects task creation without a title.
	ErrEmptyTitle = errors.New("task title is empty")
	// ErrEmptyName rejects project creation without a name.
	ErrEmptyName = errors.New("project name is empty")
	// ErrConcurrencyConflict indicates that the underlying storage rejected
	// an update because a newer version of the document is already persisted.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// AuthorizationError reports a denied permission check.
type AuthorizationError struct {
	Code    string
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// IsPermissionDenied reports whether err stems from a failed permission
// check.
func IsPermissionDenied(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr)
}
