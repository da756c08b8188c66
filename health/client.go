// Package health is the client for the relational store holding
// canonical package/project records and health scores.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/depscope/depscope/model"
)

// Client talks to the relational/health store API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a health store client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Upstream("health store "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.NotFound("record", path)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Upstream("health store "+path, fmt.Errorf("status %d", resp.StatusCode))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// GetHealthScore returns the package health score, or nil when the
// store does not know the package.
func (c *Client) GetHealthScore(ctx context.Context, name string) (*float64, error) {
	var result struct {
		HealthScore *float64 `json:"health_score"`
	}
	if err := c.get(ctx, "/api/v1/packages/"+url.PathEscape(name)+"/health", &result); err != nil {
		return nil, err
	}
	return result.HealthScore, nil
}

// GetProjectDependencies returns the project's resolved dependency set,
// including the project's own root package if present.
func (c *Client) GetProjectDependencies(ctx context.Context, projectID string) ([]model.ProjectDependency, error) {
	var deps []model.ProjectDependency
	if err := c.get(ctx, "/api/v1/projects/"+url.PathEscape(projectID)+"/dependencies", &deps); err != nil {
		return nil, err
	}
	return deps, nil
}

// GetPackageByID resolves a relational package id to its record.
func (c *Client) GetPackageByID(ctx context.Context, id string) (*model.PackageRecord, error) {
	var record model.PackageRecord
	if err := c.get(ctx, "/api/v1/packages/"+url.PathEscape(id), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindPackageByName resolves a package name to its relational id, or
// nil when unknown.
func (c *Client) FindPackageByName(ctx context.Context, name string) (*model.PackageRecord, error) {
	var record model.PackageRecord
	err := c.get(ctx, "/api/v1/packages?name="+url.QueryEscape(name), &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
