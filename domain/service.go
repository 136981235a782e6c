package domain

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Storage is the whole-document persistence boundary for the board service.
// GetProject returns the document together with the version tag the update
// must be conditioned on; UpdateProject fails with ErrConcurrencyConflict
// when the stored document has changed since that read.
type Storage interface {
	GetProject(ctx context.Context, projectID string) (*Project, string, error)
	UpdateProject(ctx context.Context, p *Project, etag string) error
	InsertProject(ctx context.Context, p *Project) error
	GetTeam(ctx context.Context, teamID string) (*Team, error)
}

// EventSink receives board change notifications after successful writes.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

// MoveRequest describes where a task should land. When NewOrder is set it is
// used as the rank key directly; otherwise the position is resolved from the
// AfterTaskID anchor against the current server-side task list (nil anchor
// appends to the end of the column).
type MoveRequest struct {
	ProjectID   string
	TaskID      string
	ColumnID    string
	NewOrder    *float64
	AfterTaskID *string
}

const defaultWriteRetries = 3

// BoardService applies board mutations authoritatively: it re-reads the
// project document, recomputes positions against current state, and writes
// the whole document back conditionally. Conflicting writers are detected
// through the storage version tag and retried by refetching.
type BoardService struct {
	store   Storage
	events  EventSink
	retries int
}

// NewBoardService creates a BoardService. events may be nil when no
// downstream consumers exist.
func NewBoardService(store Storage, events EventSink) *BoardService {
	return &BoardService{store: store, events: events, retries: defaultWriteRetries}
}

// Project returns the project document after checking view access.
func (s *BoardService) Project(ctx context.Context, projectID, userID string) (*Project, error) {
	project, _, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	team, err := s.teamOf(ctx, project)
	if err != nil {
		return nil, err
	}
	if err := GuardProjectAccess(userID, project, team); err != nil {
		return nil, err
	}
	return project, nil
}

// NewProjectData carries the caller-supplied fields for project creation.
type NewProjectData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TeamID      string `json:"teamId,omitempty"`
}

// CreateProject persists a new project owned by the caller, seeded with the
// default column set and an empty task list. Creating inside a team requires
// a team owner or manager role.
func (s *BoardService) CreateProject(ctx context.Context, data NewProjectData, userID string) (*Project, error) {
	if data.Name == "" {
		return nil, ErrEmptyName
	}
	if data.TeamID != "" {
		team, err := s.store.GetTeam(ctx, data.TeamID)
		if err != nil {
			return nil, err
		}
		if err := GuardProjectCreation(userID, team); err != nil {
			return nil, err
		}
	}
	now := NowISO()
	project := &Project{
		ID:          uuid.NewString(),
		Name:        data.Name,
		Description: data.Description,
		OwnerID:     userID,
		TeamID:      data.TeamID,
		Columns:     DefaultColumns(),
		Tasks:       []Task{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// MoveTask relocates a task within or across columns and persists the
// re-normalized task list. The moved task (with its settled order) is
// returned.
func (s *BoardService) MoveTask(ctx context.Context, req MoveRequest, userID string) (*Task, error) {
	var moved Task
	var from string
	err := s.mutate(ctx, req.ProjectID, userID, GuardTaskManagement, func(p *Project, _ *Team) error {
		if !p.HasColumn(req.ColumnID) {
			return ErrInvalidTarget
		}
		order := 0.0
		if req.NewOrder != nil {
			order = *req.NewOrder
		} else {
			var err error
			order, err = PlacementOrder(p.Tasks, req.ColumnID, req.AfterTaskID)
			if err != nil {
				return err
			}
		}
		if i := findTask(p.Tasks, req.TaskID); i >= 0 {
			from = p.Tasks[i].ColumnID
		}
		if err := MoveColumnTask(p.Tasks, req.TaskID, req.ColumnID, order, NowISO()); err != nil {
			return err
		}
		moved = p.Tasks[findTask(p.Tasks, req.TaskID)]
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, req.ProjectID, moved.ID, TaskMoved, userID, TaskMovedEventData{
		FromColumnID: from,
		ColumnID:     moved.ColumnID,
		Order:        moved.Order,
	})
	return &moved, nil
}

// AddTask appends a new task to the bottom of the given column.
func (s *BoardService) AddTask(ctx context.Context, projectID, columnID string, data NewTaskData, userID string) (*Task, error) {
	if data.Title == "" {
		return nil, ErrEmptyTitle
	}
	var created Task
	err := s.mutate(ctx, projectID, userID, GuardTaskCreation, func(p *Project, _ *Team) error {
		if !p.HasColumn(columnID) {
			return ErrInvalidTarget
		}
		now := NowISO()
		priority := data.Priority
		if priority == "" {
			priority = PriorityMedium
		}
		reporter := data.ReporterID
		if reporter == "" {
			reporter = userID
		}
		created = Task{
			ID:           uuid.NewString(),
			Title:        data.Title,
			Description:  data.Description,
			Priority:     priority,
			AssigneeUIDs: data.AssigneeUIDs,
			ReporterID:   reporter,
			DueDate:      data.DueDate,
			Tags:         data.Tags,
			ProjectID:    p.ID,
			ColumnID:     columnID,
			Order:        AppendOrder(p.Tasks, columnID),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		p.Tasks = append(p.Tasks, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, projectID, created.ID, TaskCreated, userID, created)
	return &created, nil
}

// UpdateTask merges the provided fields into an existing task. Position
// fields are not part of TaskUpdate; use MoveTask.
func (s *BoardService) UpdateTask(ctx context.Context, projectID, taskID string, upd TaskUpdate, userID string) (*Task, error) {
	var updated Task
	err := s.mutate(ctx, projectID, userID, GuardTaskManagement, func(p *Project, _ *Team) error {
		i := findTask(p.Tasks, taskID)
		if i < 0 {
			return ErrTaskNotFound
		}
		t := &p.Tasks[i]
		if upd.Title != nil {
			if *upd.Title == "" {
				return ErrEmptyTitle
			}
			t.Title = *upd.Title
		}
		if upd.Description != nil {
			t.Description = *upd.Description
		}
		if upd.Priority != nil {
			t.Priority = *upd.Priority
		}
		if upd.AssigneeUIDs != nil {
			t.AssigneeUIDs = *upd.AssigneeUIDs
		}
		if upd.ReporterID != nil {
			t.ReporterID = *upd.ReporterID
		}
		if upd.DueDate != nil {
			t.DueDate = *upd.DueDate
		}
		if upd.Tags != nil {
			t.Tags = *upd.Tags
		}
		t.UpdatedAt = NowISO()
		updated = *t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, projectID, taskID, TaskUpdated, userID, upd)
	return &updated, nil
}

// DeleteTask removes a task and renumbers the vacated column so its orders
// stay contiguous.
func (s *BoardService) DeleteTask(ctx context.Context, projectID, taskID, userID string) error {
	err := s.mutate(ctx, projectID, userID, GuardTaskManagement, func(p *Project, _ *Team) error {
		i := findTask(p.Tasks, taskID)
		if i < 0 {
			return ErrTaskNotFound
		}
		vacated := p.Tasks[i].ColumnID
		p.Tasks = append(p.Tasks[:i], p.Tasks[i+1:]...)
		NormalizeColumns(p.Tasks, vacated)
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, projectID, taskID, TaskDeleted, userID, nil)
	return nil
}

// AddComment appends a comment to a task.
func (s *BoardService) AddComment(ctx context.Context, projectID, taskID, content, userName, avatarURL, userID string) (*Comment, error) {
	var added Comment
	err := s.mutate(ctx, projectID, userID, GuardProjectAccess, func(p *Project, _ *Team) error {
		i := findTask(p.Tasks, taskID)
		if i < 0 {
			return ErrTaskNotFound
		}
		added = Comment{
			ID:        uuid.NewString(),
			UserID:    userID,
			UserName:  userName,
			AvatarURL: avatarURL,
			Content:   content,
			CreatedAt: NowISO(),
		}
		p.Tasks[i].Comments = append(p.Tasks[i].Comments, added)
		p.Tasks[i].UpdatedAt = NowISO()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, projectID, taskID, CommentAdded, userID, added)
	return &added, nil
}

// EditComment rewrites the content of a comment. Only the comment's author
// may edit it.
func (s *BoardService) EditComment(ctx context.Context, projectID, taskID, commentID, content, userID string) error {
	err := s.mutate(ctx, projectID, userID, GuardProjectAccess, func(p *Project, _ *Team) error {
		c, ti, err := findComment(p.Tasks, taskID, commentID)
		if err != nil {
			return err
		}
		if c.UserID != userID {
			return &AuthorizationError{Code: "COMMENT_EDIT_DENIED", Message: "only the comment author can edit it"}
		}
		c.Content = content
		p.Tasks[ti].UpdatedAt = NowISO()
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, projectID, taskID, CommentEdited, userID, nil)
	return nil
}

// DeleteComment removes a comment. The author or a task manager may delete
// it.
func (s *BoardService) DeleteComment(ctx context.Context, projectID, taskID, commentID, userID string) error {
	err := s.mutate(ctx, projectID, userID, GuardProjectAccess, func(p *Project, team *Team) error {
		c, ti, err := findComment(p.Tasks, taskID, commentID)
		if err != nil {
			return err
		}
		if c.UserID != userID {
			if err := GuardTaskManagement(userID, p, team); err != nil {
				return err
			}
		}
		comments := p.Tasks[ti].Comments
		for j := range comments {
			if comments[j].ID == commentID {
				p.Tasks[ti].Comments = append(comments[:j], comments[j+1:]...)
				break
			}
		}
		p.Tasks[ti].UpdatedAt = NowISO()
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, projectID, taskID, CommentDeleted, userID, nil)
	return nil
}

// mutate runs the read-guard-modify-write cycle shared by every board
// mutation. The apply callback mutates the freshly read project in place; a
// conditional write then persists it. On a version conflict the whole cycle
// is retried against refreshed state, so concurrent writers never silently
// overwrite each other. Errors from guard or apply abort before any write.
func (s *BoardService) mutate(ctx context.Context, projectID, userID string, guard func(string, *Project, *Team) error, apply func(*Project, *Team) error) error {
	for attempt := 0; ; attempt++ {
		project, etag, err := s.store.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		team, err := s.teamOf(ctx, project)
		if err != nil {
			return err
		}
		if err := guard(userID, project, team); err != nil {
			return err
		}
		if err := apply(project, team); err != nil {
			return err
		}
		project.UpdatedAt = NowISO()
		if err := s.store.UpdateProject(ctx, project, etag); err != nil {
			if errors.Is(err, ErrConcurrencyConflict) && attempt < s.retries {
				log.WithFields(log.Fields{"project": projectID, "attempt": attempt + 1}).
					Warn("project write conflicted, refetching")
				continue
			}
			return err
		}
		return nil
	}
}

func (s *BoardService) teamOf(ctx context.Context, p *Project) (*Team, error) {
	if p.TeamID == "" {
		return nil, nil
	}
	return s.store.GetTeam(ctx, p.TeamID)
}

// publish is best-effort: a failed event emission never fails the mutation
// that already persisted.
func (s *BoardService) publish(ctx context.Context, projectID, entityID, evType, userID string, data any) {
	if s.events == nil {
		return
	}
	var payload json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			log.WithFields(log.Fields{"project": projectID, "type": evType}).
				Errorf("marshal event data: %v", err)
			return
		}
		payload = b
	}
	ev := Event{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		EntityID:  entityID,
		Type:      evType,
		Data:      payload,
		Time:      NextEventTime(),
		UserID:    userID,
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.WithFields(log.Fields{"project": projectID, "type": evType}).
			Errorf("publish event: %v", err)
	}
}

func findTask(tasks []Task, taskID string) int {
	for i := range tasks {
		if tasks[i].ID == taskID {
			return i
		}
	}
	return -1
}

func findComment(tasks []Task, taskID, commentID string) (*Comment, int, error) {
	ti := findTask(tasks, taskID)
	if ti < 0 {
		return nil, -1, ErrTaskNotFound
	}
	for j := range tasks[ti].Comments {
		if tasks[ti].Comments[j].ID == commentID {
			return &tasks[ti].Comments[j], ti, nil
		}
	}
	return nil, -1, ErrCommentNotFound
}
