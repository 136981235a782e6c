package domain

import "time"

// Priority ranks the urgency of a task.
type Priority string

const (
	PriorityNone   Priority = "NONE"
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Comment is a single user remark attached to a task. UserName and AvatarURL
// are denormalized for display.
type Comment struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// Task represents a single board item. Order ranks the task among siblings
// sharing the same ColumnID: sorted ascending it yields the visible
// top-to-bottom sequence. Orders may be fractional between moves; the
// normalization pass settles them back to contiguous integers.
type Task struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Priority     Priority  `json:"priority"`
	AssigneeUIDs []string  `json:"assigneeUids,omitempty"`
	ReporterID   string    `json:"reporterId,omitempty"`
	DueDate      string    `json:"dueDate,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Comments     []Comment `json:"comments,omitempty"`
	ProjectID    string    `json:"projectId"`
	ColumnID     string    `json:"columnId"`
	Order        float64   `json:"order"`
	CreatedAt    string    `json:"createdAt"`
	UpdatedAt    string    `json:"updatedAt"`
}

// Column is a named bucket grouping tasks on the board.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
}

// DefaultColumns returns the columns every new project starts with.
func DefaultColumns() []Column {
	return []Column{
		{ID: "TODO", Title: "To Do", Order: 0},
		{ID: "IN_PROGRESS", Title: "In Progress", Order: 1},
		{ID: "DONE", Title: "Done", Order: 2},
	}
}

// ProjectRole is a member's role within a single project.
type ProjectRole string

const (
	ProjectRoleManager ProjectRole = "manager"
	ProjectRoleMember  ProjectRole = "member"
)

// TeamRole is a member's role within a team.
type TeamRole string

const (
	TeamRoleOwner   TeamRole = "owner"
	TeamRoleManager TeamRole = "manager"
	TeamRoleMember  TeamRole = "member"
)

// Project is the unit of persistence: columns and tasks are embedded in the
// project document, so every task mutation reads the full task list, mutates
// it in memory and writes the full list back.
type Project struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	OwnerID     string                 `json:"ownerId"`
	TeamID      string                 `json:"teamId,omitempty"`
	Columns     []Column               `json:"columns"`
	Tasks       []Task                 `json:"tasks"`
	MemberIDs   []string               `json:"memberIds,omitempty"`
	MemberRoles map[string]ProjectRole `json:"memberRoles,omitempty"`
	CreatedAt   string                 `json:"createdAt"`
	UpdatedAt   string                 `json:"updatedAt"`
}

// HasColumn reports whether the project defines the given column.
func (p *Project) HasColumn(columnID string) bool {
	for i := range p.Columns {
		if p.Columns[i].ID == columnID {
			return true
		}
	}
	return false
}

// Team groups users; team projects inherit task permissions from team roles.
type Team struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	OwnerID     string              `json:"ownerId"`
	MemberIDs   []string            `json:"memberIds"`
	MemberRoles map[string]TeamRole `json:"memberRoles,omitempty"`
	CreatedAt   string              `json:"createdAt"`
	UpdatedAt   string              `json:"updatedAt"`
}

// NewTaskData carries the caller-supplied fields for task creation.
type NewTaskData struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Priority     Priority `json:"priority,omitempty"`
	AssigneeUIDs []string `json:"assigneeUids,omitempty"`
	ReporterID   string   `json:"reporterId,omitempty"`
	DueDate      string   `json:"dueDate,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// TaskUpdate carries partial updates for a task. ColumnID and Order are
// deliberately absent: position changes only happen through the move
// operation so ordering invariants cannot be bypassed.
type TaskUpdate struct {
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Priority     *Priority `json:"priority,omitempty"`
	AssigneeUIDs *[]string `json:"assigneeUids,omitempty"`
	ReporterID   *string   `json:"reporterId,omitempty"`
	DueDate      *string   `json:"dueDate,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
}

// NowISO returns the current UTC time in the ISO-8601 form stored on
// documents.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
