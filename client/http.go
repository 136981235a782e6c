package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"

	"kanban-api/domain"
)

// HTTPSender confirms moves against the board API over HTTP.
type HTTPSender struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client
}

// NewHTTPSender creates a sender for the given API base URL and bearer token.
func NewHTTPSender(baseURL, bearer string) *HTTPSender {
	return &HTTPSender{BaseURL: baseURL, Bearer: bearer, HTTP: &http.Client{}}
}

type moveTaskBody struct {
	ProjectID   string   `json:"projectId"`
	TaskID      string   `json:"taskId"`
	NewColumnID string   `json:"newColumnId"`
	NewOrder    *float64 `json:"newOrder,omitempty"`
	AfterTaskID *string  `json:"afterTaskId,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

// MoveTask posts the move to the server and interprets non-2xx responses as
// rejections.
func (s *HTTPSender) MoveTask(ctx context.Context, req domain.MoveRequest) error {
	body, err := sonic.ConfigStd.Marshal(moveTaskBody{
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		NewColumnID: req.ColumnID,
		NewOrder:    req.NewOrder,
		AfterTaskID: req.AfterTaskID,
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/api/move-task", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.Bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.Bearer)
	}

	resp, err := s.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiError
	if unmarshalErr := sonic.ConfigStd.Unmarshal(data, &apiErr); unmarshalErr == nil && apiErr.Error != "" {
		return fmt.Errorf("move rejected: %d %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("move rejected: %d", resp.StatusCode)
}
