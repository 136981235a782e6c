package storage

import (
	"testing"

	"kanban-api/domain"
)

func TestProjectEntityRoundTrip(t *testing.T) {
	p := &domain.Project{
		ID:      "p1",
		Name:    "Launch",
		OwnerID: "owner",
		Columns: domain.DefaultColumns(),
		Tasks: []domain.Task{
			{ID: "t1", Title: "Ship it", ColumnID: "TODO", Order: 0},
			{ID: "t2", Title: "Test it", ColumnID: "TODO", Order: 1.5},
		},
	}

	payload, err := projectEntity(p)
	if err != nil {
		t.Fatalf("encode entity: %v", err)
	}

	decoded, err := decodeProjectEntity(payload)
	if err != nil {
		t.Fatalf("decode entity: %v", err)
	}
	if decoded.ID != p.ID || decoded.Name != p.Name {
		t.Fatalf("unexpected project: %#v", decoded)
	}
	if len(decoded.Tasks) != 2 || decoded.Tasks[1].Order != 1.5 {
		t.Fatalf("tasks did not survive round trip: %#v", decoded.Tasks)
	}
	if len(decoded.Columns) != len(domain.DefaultColumns()) {
		t.Fatalf("columns did not survive round trip: %#v", decoded.Columns)
	}
}

func TestDecodeProjectEntityFillsIDFromRowKey(t *testing.T) {
	payload := []byte(`{"PartitionKey":"p9","RowKey":"p9","Document":"{\"name\":\"Legacy\"}"}`)

	p, err := decodeProjectEntity(payload)
	if err != nil {
		t.Fatalf("decode entity: %v", err)
	}
	if p.ID != "p9" {
		t.Fatalf("expected id from row key, got %q", p.ID)
	}
	if p.Name != "Legacy" {
		t.Fatalf("unexpected name: %q", p.Name)
	}
}

func TestDecodeProjectEntityMalformedDocument(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"bad entity", `{not json`},
		{"bad document", `{"PartitionKey":"p1","RowKey":"p1","Document":"{broken"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeProjectEntity([]byte(tc.payload)); err == nil {
				t.Fatalf("expected decode error")
			}
		})
	}
}
