// Package registry is the npm registry client used for requirement
// ranges, published version lists, and license/repository enrichment.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/depscope/depscope/model"
	"github.com/depscope/depscope/util"
)

// DefaultTimeout bounds every registry call so one unresponsive
// dependency cannot hang an optimizer run.
const DefaultTimeout = 5 * time.Second

// packumentVersion is the per-version slice of an npm packument.
type packumentVersion struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dependencies         map[string]string `json:"dependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	License              json.RawMessage   `json:"license"`
	Homepage             string            `json:"homepage"`
	Repository           json.RawMessage   `json:"repository"`
}

// packument is the registry document for one package name.
type packument struct {
	Name     string                      `json:"name"`
	DistTags map[string]string           `json:"dist-tags"`
	Versions map[string]packumentVersion `json:"versions"`
}

// Client talks to an npm-compatible registry.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client

	mu    sync.Mutex
	cache map[string]*packument
}

// NewClient creates a registry client for baseURL
// (e.g. https://registry.npmjs.org).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		http:    &http.Client{Timeout: DefaultTimeout + time.Second},
		cache:   make(map[string]*packument),
	}
}

// fetchPackument gets (and caches) the registry document for name.
func (c *Client) fetchPackument(ctx context.Context, name string) (*packument, error) {
	c.mu.Lock()
	if doc, ok := c.cache[name]; ok {
		c.mu.Unlock()
		return doc, nil
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Scoped names keep their slash escaped: @scope%2fname.
	escaped := strings.ReplaceAll(url.PathEscape(name), "%2F", "%2f")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+escaped, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, model.Upstream("registry fetch "+name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, model.NotFound("package", name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, model.Upstream("registry fetch "+name, fmt.Errorf("status %d", resp.StatusCode))
	}

	var doc packument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, model.Upstream("registry decode "+name, err)
	}

	c.mu.Lock()
	c.cache[name] = &doc
	c.mu.Unlock()

	return &doc, nil
}

// GetPackageMetadata returns the requirement ranges declared by
// name@version plus the package's full published version list. When
// version is empty or unpublished the latest dist-tag is used.
func (c *Client) GetPackageMetadata(ctx context.Context, name, version string) (*model.PackageMetadata, error) {
	doc, err := c.fetchPackument(ctx, name)
	if err != nil {
		return nil, err
	}

	versions := make([]string, 0, len(doc.Versions))
	for v := range doc.Versions {
		versions = append(versions, v)
	}
	sort.Strings(versions)

	entry, ok := doc.Versions[version]
	if !ok {
		if latest, found := doc.DistTags["latest"]; found {
			entry = doc.Versions[latest]
		}
	}

	return &model.PackageMetadata{
		Name:                 name,
		Version:              entry.Version,
		Dependencies:         entry.Dependencies,
		PeerDependencies:     entry.PeerDependencies,
		OptionalDependencies: entry.OptionalDependencies,
		Versions:             versions,
		License:              decodeLicense(entry.License),
		RepoURL:              decodeRepoURL(entry.Repository),
		Homepage:             entry.Homepage,
	}, nil
}

// GetLicense resolves the license string for a versioned purl. An
// empty result means the registry had nothing usable.
func (c *Client) GetLicense(ctx context.Context, purl string) (string, error) {
	parsed, err := util.ParsePURL(purl)
	if err != nil {
		return "", err
	}
	name := parsed.Name
	if parsed.Namespace != "" {
		name = parsed.Namespace + "/" + parsed.Name
	}

	meta, err := c.GetPackageMetadata(ctx, name, parsed.Version)
	if err != nil {
		return "", err
	}
	return meta.License, nil
}

// GetRepoURL resolves the repository URL for a package name.
func (c *Client) GetRepoURL(ctx context.Context, name string) (string, error) {
	meta, err := c.GetPackageMetadata(ctx, name, "")
	if err != nil {
		return "", err
	}
	return meta.RepoURL, nil
}

// decodeLicense handles both license shapes the registry serves:
// a plain string or {"type": "..."}.
func decodeLicense(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Type
	}
	return ""
}

// decodeRepoURL handles both repository shapes: a plain string or
// {"url": "..."}; git+ prefixes and .git suffixes are stripped.
func decodeRepoURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	repoURL := ""
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		repoURL = s
	} else {
		var obj struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil {
			repoURL = obj.URL
		}
	}
	repoURL = strings.TrimPrefix(repoURL, "git+")
	return strings.TrimSuffix(repoURL, ".git")
}
