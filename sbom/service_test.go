package sbom

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/depscope/depscope/model"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected FormatType
		wantErr  bool
	}{
		{"cyclonedx", FormatCycloneDX, false},
		{"CycloneDX", FormatCycloneDX, false},
		{"CYCLONEDX", FormatCycloneDX, false},
		{"", FormatCycloneDX, false},
		{"spdx", FormatSPDX, false},
		{"SPDX", FormatSPDX, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGetMediaType(t *testing.T) {
	tests := []struct {
		format   FormatType
		expected string
	}{
		{FormatCycloneDX, CycloneDXMediaType},
		{FormatSPDX, SPDXMediaType},
		{"unknown", "application/json"},
	}

	for _, tt := range tests {
		if got := GetMediaType(tt.format); got != tt.expected {
			t.Errorf("GetMediaType(%q) = %q, want %q", tt.format, got, tt.expected)
		}
	}
}

type fakeTreeSource struct {
	trees map[string]*model.DependencyTree
}

func (f *fakeTreeSource) FullDependencyTree(ctx context.Context, sbomID string) (*model.DependencyTree, error) {
	if tree, ok := f.trees[sbomID]; ok {
		return tree, nil
	}
	return nil, model.NotFound("sbom", sbomID)
}

type fakeStore struct {
	deps []model.ProjectDependency
	err  error
}

func (f *fakeStore) GetProjectDependencies(ctx context.Context, projectID string) ([]model.ProjectDependency, error) {
	return f.deps, f.err
}

type fakeRegistry struct{}

func (f *fakeRegistry) GetPackageMetadata(ctx context.Context, name, version string) (*model.PackageMetadata, error) {
	return &model.PackageMetadata{
		RepoURL:  "https://github.com/example/" + name,
		Homepage: "https://example.com/" + name,
	}, nil
}

func testTree(names ...string) *model.DependencyTree {
	tree := &model.DependencyTree{}
	for _, n := range names {
		tree.Components = append(tree.Components, component(n, "1.0.0"))
	}
	return tree
}

func TestCreateCustomSbom(t *testing.T) {
	trees := &fakeTreeSource{trees: map[string]*model.DependencyTree{
		"pkg-1": testTree("lodash", "express"),
		"pkg-2": testTree("express", "chalk"),
	}}
	store := &fakeStore{deps: []model.ProjectDependency{
		{PackageID: "pkg-1", Name: "lodash", Version: "1.0.0"},
		{PackageID: "pkg-2", Name: "express", Version: "1.0.0"},
		{PackageID: "", Name: "watch-only", Version: ""},
	}}

	b := NewBuilder(trees, store, &fakeRegistry{}, zap.NewNop())

	t.Run("cyclonedx", func(t *testing.T) {
		doc, err := b.CreateCustomSbom(context.Background(), CustomSbomRequest{ProjectID: "proj-1"})
		if err != nil {
			t.Fatalf("CreateCustomSbom returned error: %v", err)
		}
		if doc.Format != FormatCycloneDX || doc.CycloneDX == nil || doc.SPDX != nil {
			t.Fatalf("unexpected document: %+v", doc)
		}
		// express deduplicated across the two subgraphs
		if len(doc.CycloneDX.Components) != 3 {
			t.Errorf("expected 3 merged components, got %d", len(doc.CycloneDX.Components))
		}
		for _, comp := range doc.CycloneDX.Components {
			if comp.Type != "library" || comp.Scope != "required" {
				t.Errorf("expected enrichment defaults on %q: %+v", comp.Name, comp)
			}
		}
	})

	t.Run("spdx", func(t *testing.T) {
		doc, err := b.CreateCustomSbom(context.Background(), CustomSbomRequest{ProjectID: "proj-1", Format: "spdx"})
		if err != nil {
			t.Fatalf("CreateCustomSbom returned error: %v", err)
		}
		if doc.Format != FormatSPDX || doc.SPDX == nil || doc.CycloneDX != nil {
			t.Fatalf("unexpected document: %+v", doc)
		}
		if doc.SPDX.Name != "project-proj-1" {
			t.Errorf("document name = %q", doc.SPDX.Name)
		}
	})

	t.Run("exclusion", func(t *testing.T) {
		doc, err := b.CreateCustomSbom(context.Background(), CustomSbomRequest{
			ProjectID:       "proj-1",
			ExcludePackages: []string{"express"},
		})
		if err != nil {
			t.Fatalf("CreateCustomSbom returned error: %v", err)
		}
		for _, comp := range doc.CycloneDX.Components {
			if comp.Name == "express" {
				t.Error("excluded package survived the merge")
			}
		}
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := b.CreateCustomSbom(context.Background(), CustomSbomRequest{ProjectID: "proj-1", Format: "xml"})
		var validation *model.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("missing project id", func(t *testing.T) {
		_, err := b.CreateCustomSbom(context.Background(), CustomSbomRequest{})
		var validation *model.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestCreateCustomSbom_MissingSubgraphSkipped(t *testing.T) {
	trees := &fakeTreeSource{trees: map[string]*model.DependencyTree{
		"pkg-1": testTree("lodash"),
	}}
	store := &fakeStore{deps: []model.ProjectDependency{
		{PackageID: "pkg-1", Name: "lodash", Version: "1.0.0"},
		{PackageID: "pkg-9", Name: "ghost", Version: "1.0.0"},
	}}

	b := NewBuilder(trees, store, nil, zap.NewNop())
	doc, err := b.CreateCustomSbom(context.Background(), CustomSbomRequest{ProjectID: "proj-1"})
	if err != nil {
		t.Fatalf("expected missing subgraph to be skipped, got error: %v", err)
	}
	if len(doc.CycloneDX.Components) != 1 {
		t.Errorf("expected only the known subgraph, got %+v", doc.CycloneDX.Components)
	}
}

func TestCreateCustomSbom_WatchlistOnlyProject(t *testing.T) {
	store := &fakeStore{deps: []model.ProjectDependency{
		{PackageID: "", Name: "watch-only"},
	}}

	b := NewBuilder(&fakeTreeSource{}, store, nil, zap.NewNop())
	_, err := b.CreateCustomSbom(context.Background(), CustomSbomRequest{ProjectID: "proj-1"})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not-found when only watchlist entries remain, got %v", err)
	}
}

func TestCreateCustomSbom_WatchlistIncluded(t *testing.T) {
	trees := &fakeTreeSource{trees: map[string]*model.DependencyTree{
		"": testTree("watched"),
	}}
	store := &fakeStore{deps: []model.ProjectDependency{
		{PackageID: "", Name: "watched"},
	}}

	b := NewBuilder(trees, store, nil, zap.NewNop())
	doc, err := b.CreateCustomSbom(context.Background(), CustomSbomRequest{
		ProjectID:        "proj-1",
		IncludeWatchlist: true,
	})
	if err != nil {
		t.Fatalf("CreateCustomSbom returned error: %v", err)
	}
	if len(doc.CycloneDX.Components) != 1 {
		t.Errorf("expected the watchlist subgraph, got %+v", doc.CycloneDX.Components)
	}
}
