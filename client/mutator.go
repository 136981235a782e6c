// Package client implements an optimistic board client: moves apply to the
// local task list immediately and roll back if the server rejects them.
package client

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

// Sender confirms a locally applied move with the server.
type Sender interface {
	MoveTask(ctx context.Context, req domain.MoveRequest) error
}

// Mutator holds the client's copy of a project's tasks and applies moves
// optimistically. A failed confirmation restores the pre-move snapshot
// unless a newer move already touched the same task, in which case the
// newer state wins and the failure is only logged.
type Mutator struct {
	projectID string
	sender    Sender
	logger    *log.Logger

	mu    sync.Mutex
	tasks []domain.Task
	gen   map[string]uint64
}

// NewMutator creates a mutator for the given project seeded with the
// current task list.
func NewMutator(projectID string, tasks []domain.Task, sender Sender, logger *log.Logger) *Mutator {
	if logger == nil {
		logger = log.New()
	}
	return &Mutator{
		projectID: projectID,
		sender:    sender,
		logger:    logger,
		tasks:     cloneTasks(tasks),
		gen:       make(map[string]uint64),
	}
}

// Tasks returns a copy of the current local task list.
func (m *Mutator) Tasks() []domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneTasks(m.tasks)
}

// Replace swaps in a fresh task list from the server, e.g. after a refetch.
func (m *Mutator) Replace(tasks []domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = cloneTasks(tasks)
}

// Move places the task into the target column after the anchor task
// (append when anchor is nil), locally first and then on the server.
func (m *Mutator) Move(ctx context.Context, taskID, columnID string, afterTaskID *string) error {
	return m.apply(ctx, taskID, columnID, afterTaskID, func(tasks []domain.Task) (float64, error) {
		return domain.PlacementOrder(tasks, columnID, afterTaskID)
	})
}

// MoveToTop places the task at the head of the target column.
func (m *Mutator) MoveToTop(ctx context.Context, taskID, columnID string) error {
	return m.apply(ctx, taskID, columnID, nil, func(tasks []domain.Task) (float64, error) {
		return domain.HeadOrder(tasks, columnID), nil
	})
}

func (m *Mutator) apply(ctx context.Context, taskID, columnID string, afterTaskID *string, place func([]domain.Task) (float64, error)) error {
	m.mu.Lock()
	order, err := place(m.tasks)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	snapshot := cloneTasks(m.tasks)
	if err := domain.MoveColumnTask(m.tasks, taskID, columnID, order, domain.NowISO()); err != nil {
		m.mu.Unlock()
		return err
	}
	m.gen[taskID]++
	moveGen := m.gen[taskID]
	m.mu.Unlock()

	req := domain.MoveRequest{
		ProjectID:   m.projectID,
		TaskID:      taskID,
		ColumnID:    columnID,
		AfterTaskID: afterTaskID,
	}
	if err := m.sender.MoveTask(ctx, req); err != nil {
		m.mu.Lock()
		// The snapshot is only authoritative while no newer move touched
		// the task; otherwise the newer local state wins.
		if m.gen[taskID] == moveGen {
			m.tasks = snapshot
			m.logger.WithFields(log.Fields{
				"project_id": m.projectID,
				"task_id":    taskID,
				"column_id":  columnID,
			}).Warn("move rejected by server, rolled back")
		} else {
			m.logger.WithFields(log.Fields{
				"project_id": m.projectID,
				"task_id":    taskID,
			}).Warn("move rejected by server, newer local move kept")
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

func cloneTasks(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	return out
}
