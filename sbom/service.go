package sbom

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/depscope/depscope/model"
)

// FormatType names a supported SBOM output format.
type FormatType string

// Supported output formats and their media types.
const (
	FormatCycloneDX FormatType = "cyclonedx"
	FormatSPDX      FormatType = "spdx"

	CycloneDXMediaType = "application/vnd.cyclonedx+json"
	SPDXMediaType      = "application/spdx+json"
)

// ParseFormat parses a format string into a FormatType.
func ParseFormat(format string) (FormatType, error) {
	switch format {
	case "cyclonedx", "CycloneDX", "CYCLONEDX", "":
		return FormatCycloneDX, nil
	case "spdx", "SPDX":
		return FormatSPDX, nil
	default:
		return "", fmt.Errorf("unsupported SBOM format: %s (supported: cyclonedx, spdx)", format)
	}
}

// GetMediaType returns the appropriate media type for the given format.
func GetMediaType(format FormatType) string {
	switch format {
	case FormatCycloneDX:
		return CycloneDXMediaType
	case FormatSPDX:
		return SPDXMediaType
	default:
		return "application/json"
	}
}

// TreeSource reconstructs one package's dependency subgraph; satisfied
// by the query engine.
type TreeSource interface {
	FullDependencyTree(ctx context.Context, sbomID string) (*model.DependencyTree, error)
}

// HealthStore is the relational-store surface the builder consumes.
type HealthStore interface {
	GetProjectDependencies(ctx context.Context, projectID string) ([]model.ProjectDependency, error)
}

// Registry supplies URL enrichment for merged components.
type Registry interface {
	GetPackageMetadata(ctx context.Context, name, version string) (*model.PackageMetadata, error)
}

// CustomSbomRequest configures a merged project SBOM.
type CustomSbomRequest struct {
	ProjectID        string   `json:"project_id"`
	Format           string   `json:"format"`
	ExcludePackages  []string `json:"exclude_packages"`
	IncludeWatchlist bool     `json:"include_watchlist"`
}

// Document is the produced SBOM in its requested format. Exactly one
// of CycloneDX/SPDX is set.
type Document struct {
	Format    FormatType       `json:"format"`
	CycloneDX *model.CycloneDX `json:"cyclonedx,omitempty"`
	SPDX      *model.SPDX      `json:"spdx,omitempty"`
}

// Builder assembles custom project SBOMs from per-package subgraphs.
type Builder struct {
	trees    TreeSource
	store    HealthStore
	registry Registry
	logger   *zap.Logger
}

// NewBuilder creates a Builder. registry may be nil; enrichment is
// then limited to structural defaults.
func NewBuilder(trees TreeSource, store HealthStore, reg Registry, logger *zap.Logger) *Builder {
	return &Builder{trees: trees, store: store, registry: reg, logger: logger}
}

// CreateCustomSbom merges the project's per-package dependency
// subgraphs into one document in the requested format.
func (b *Builder) CreateCustomSbom(ctx context.Context, req CustomSbomRequest) (*Document, error) {
	if req.ProjectID == "" {
		return nil, model.NewValidationError("projectId", "must not be empty")
	}
	format, err := ParseFormat(req.Format)
	if err != nil {
		return nil, model.NewValidationError("format", err.Error())
	}

	deps, err := b.store.GetProjectDependencies(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if !req.IncludeWatchlist {
		// Watchlist entries are tracked by name only; canonical
		// project packages always carry a relational id.
		kept := deps[:0]
		for _, dep := range deps {
			if dep.PackageID != "" {
				kept = append(kept, dep)
			}
		}
		deps = kept
	}
	if len(deps) == 0 {
		return nil, model.NotFound("project dependencies", req.ProjectID)
	}

	trees := make([]*model.DependencyTree, 0, len(deps))
	for _, dep := range deps {
		tree, err := b.trees.FullDependencyTree(ctx, dep.PackageID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				b.logger.Warn("no sbom subgraph for package",
					zap.String("package", dep.Name), zap.String("id", dep.PackageID))
				continue
			}
			return nil, err
		}
		trees = append(trees, tree)
	}
	if len(trees) == 0 {
		return nil, model.NotFound("sbom subgraphs for project", req.ProjectID)
	}

	doc := Merge(trees)
	Enrich(doc, b.enrichmentLookup(ctx, doc))
	Exclude(doc, req.ExcludePackages)

	docName := "project-" + req.ProjectID

	if format == FormatSPDX {
		return &Document{Format: format, SPDX: ConvertToSPDX(doc, docName)}, nil
	}
	return &Document{Format: format, CycloneDX: doc}, nil
}

// enrichmentLookup prefetches external URLs for every merged
// component with bounded concurrency; failures leave entries empty.
func (b *Builder) enrichmentLookup(ctx context.Context, doc *model.CycloneDX) func(name string) enrichmentInfo {
	if b.registry == nil {
		return nil
	}

	infos := make(map[string]enrichmentInfo, len(doc.Components))
	var names []string
	for _, comp := range doc.Components {
		if comp.Name != "" {
			names = append(names, comp.Name)
		}
	}

	results := make([]enrichmentInfo, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(10)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			meta, err := b.registry.GetPackageMetadata(gctx, name, "")
			if err != nil {
				return nil
			}
			results[i] = enrichmentInfo{
				RepoURL:  meta.RepoURL,
				Homepage: meta.Homepage,
				NpmURL:   "https://www.npmjs.com/package/" + name,
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, name := range names {
		infos[name] = results[i]
	}

	return func(name string) enrichmentInfo {
		return infos[name]
	}
}
