// Package taskqueue posts best-effort dependency-setup jobs to the
// external task system. Failures are logged, never propagated.
package taskqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/depscope/depscope/model"
)

// Queue is the dependency-setup job surface consumed by the importer.
type Queue interface {
	QueueDependencySetup(ctx context.Context, req model.DependencySetupRequest) error
}

// HTTPQueue posts jobs to the task system over HTTP.
type HTTPQueue struct {
	baseURL string
	http    *http.Client
}

// NewHTTPQueue creates a queue client for baseURL. An empty baseURL
// yields a no-op queue.
func NewHTTPQueue(baseURL string) Queue {
	if baseURL == "" {
		return NopQueue{}
	}
	return &HTTPQueue{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// QueueDependencySetup submits one dependency-setup job.
func (q *HTTPQueue) QueueDependencySetup(ctx context.Context, setup model.DependencySetupRequest) error {
	body, err := json.Marshal(setup)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.baseURL+"/api/v1/tasks/dependency-setup", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("task queue status %d", resp.StatusCode)
	}
	return nil
}

// NopQueue drops every job; used when no task system is configured.
type NopQueue struct{}

// QueueDependencySetup is a no-op.
func (NopQueue) QueueDependencySetup(context.Context, model.DependencySetupRequest) error {
	return nil
}
