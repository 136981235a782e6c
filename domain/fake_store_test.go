package domain

import (
	"context"
	"encoding/json"
	"strconv"
)

// fakeStore keeps a single project document in memory and simulates the
// conditional-write semantics of the real table storage: every successful
// update bumps the version tag, and a write conditioned on a stale tag fails
// with ErrConcurrencyConflict.
type fakeStore struct {
	project *Project
	version int
	teams   map[string]*Team

	updates   int
	conflicts int

	// failWrites forces the next N conditional writes to conflict.
	failWrites int
	// beforeUpdate, when set, runs once just before the conditional check so
	// tests can sneak a competing write in between read and write.
	beforeUpdate func(*fakeStore)
}

func newFakeStore(p *Project) *fakeStore {
	return &fakeStore{project: p, version: 1}
}

func cloneProject(p *Project) *Project {
	b, _ := json.Marshal(p)
	var out Project
	_ = json.Unmarshal(b, &out)
	return &out
}

func (f *fakeStore) GetProject(ctx context.Context, projectID string) (*Project, string, error) {
	if f.project == nil || f.project.ID != projectID {
		return nil, "", ErrProjectNotFound
	}
	return cloneProject(f.project), strconv.Itoa(f.version), nil
}

func (f *fakeStore) UpdateProject(ctx context.Context, p *Project, etag string) error {
	if f.beforeUpdate != nil {
		hook := f.beforeUpdate
		f.beforeUpdate = nil
		hook(f)
	}
	if f.failWrites > 0 {
		f.failWrites--
		f.conflicts++
		return ErrConcurrencyConflict
	}
	if etag != strconv.Itoa(f.version) {
		f.conflicts++
		return ErrConcurrencyConflict
	}
	f.project = cloneProject(p)
	f.version++
	f.updates++
	return nil
}

func (f *fakeStore) InsertProject(ctx context.Context, p *Project) error {
	if f.project != nil && f.project.ID == p.ID {
		return ErrConcurrencyConflict
	}
	f.project = cloneProject(p)
	f.version = 1
	return nil
}

func (f *fakeStore) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	if t, ok := f.teams[teamID]; ok {
		return t, nil
	}
	return nil, nil
}

type fakeSink struct {
	events []Event
}

func (f *fakeSink) Publish(ctx context.Context, ev Event) error {
	f.events = append(f.events, ev)
	return nil
}
