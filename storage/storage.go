package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"kanban-api/domain"
)

// Store persists project and team documents as single table entities. The
// whole document is serialized into one JSON property, so every write
// replaces the full embedded task list; the entity ETag is the version tag
// the board service conditions its writes on.
type Store struct {
	projectTable *aztables.Client
	teamTable    *aztables.Client
	eventQueue   *azqueue.QueueClient
}

// New creates a Store from the given connection string.
func New(connStr, projectsTable, teamsTable, eventsQueue string) (*Store, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	pt := svc.NewClient(projectsTable)
	tt := svc.NewClient(teamsTable)

	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Store{projectTable: pt, teamTable: tt, eventQueue: eq}, nil
}

// documentEntity wraps a whole JSON document in a single table property.
type documentEntity struct {
	aztables.Entity
	Document string `json:"Document"`
}

func projectEntity(p *domain.Project) ([]byte, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(documentEntity{
		Entity:   aztables.Entity{PartitionKey: p.ID, RowKey: p.ID},
		Document: string(doc),
	})
}

func decodeProjectEntity(data []byte) (*domain.Project, error) {
	var ent documentEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil, err
	}
	var p domain.Project
	if err := json.Unmarshal([]byte(ent.Document), &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = ent.RowKey
	}
	return &p, nil
}

// GetProject retrieves a project document and the ETag its next update must
// be conditioned on.
func (s *Store) GetProject(ctx context.Context, projectID string) (*domain.Project, string, error) {
	resp, err := s.projectTable.GetEntity(ctx, projectID, projectID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, "", domain.ErrProjectNotFound
		}
		return nil, "", err
	}
	p, err := decodeProjectEntity(resp.Value)
	if err != nil {
		return nil, "", err
	}
	return p, string(resp.ETag), nil
}

// UpdateProject replaces the stored document if and only if its ETag still
// matches; a mismatch surfaces as ErrConcurrencyConflict so the caller can
// refetch and re-apply.
func (s *Store) UpdateProject(ctx context.Context, p *domain.Project, etag string) error {
	payload, err := projectEntity(p)
	if err != nil {
		return err
	}
	et := azcore.ETag(etag)
	_, err = s.projectTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &et,
		UpdateMode: aztables.UpdateModeReplace,
	})
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			switch respErr.StatusCode {
			case 404:
				return domain.ErrProjectNotFound
			case 409, 412:
				return domain.ErrConcurrencyConflict
			}
		}
		return err
	}
	return nil
}

// InsertProject creates a new project document; an existing document with
// the same id surfaces as ErrConcurrencyConflict.
func (s *Store) InsertProject(ctx context.Context, p *domain.Project) error {
	payload, err := projectEntity(p)
	if err != nil {
		return err
	}
	if _, err := s.projectTable.AddEntity(ctx, payload, nil); err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 409 {
			return domain.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

// GetTeam retrieves a team document, or nil when absent.
func (s *Store) GetTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	resp, err := s.teamTable.GetEntity(ctx, teamID, teamID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	var ent documentEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	var team domain.Team
	if err := json.Unmarshal([]byte(ent.Document), &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// Publish enqueues a board event for downstream consumers.
func (s *Store) Publish(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.eventQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}
