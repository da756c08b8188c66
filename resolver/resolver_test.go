package resolver

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/depscope/depscope/analyzer"
	"github.com/depscope/depscope/model"
)

type fakeRegistry struct {
	metadata map[string]*model.PackageMetadata
}

func (f *fakeRegistry) GetPackageMetadata(ctx context.Context, name, version string) (*model.PackageMetadata, error) {
	if meta, ok := f.metadata[name]; ok {
		return meta, nil
	}
	return nil, errors.New("package not found in registry")
}

type fakeStore struct {
	deps []model.ProjectDependency
	err  error
}

func (f *fakeStore) GetProjectDependencies(ctx context.Context, projectID string) ([]model.ProjectDependency, error) {
	return f.deps, f.err
}

type fakeGraph struct {
	purls    map[string]string   // "name@version" -> purl
	direct   map[string][]model.PackageNode
	closures map[string][]string
}

func (f *fakeGraph) FindPurlByNameVersion(ctx context.Context, name, version string) (string, error) {
	return f.purls[name+"@"+version], nil
}

func (f *fakeGraph) DirectDependencies(ctx context.Context, purl string) ([]model.PackageNode, error) {
	return f.direct[purl], nil
}

func (f *fakeGraph) TransitiveClosure(ctx context.Context, purl string) ([]string, error) {
	return f.closures[purl], nil
}

type fakeAnchors struct {
	packages []model.LowSimilarityPackage
	err      error
}

func (f *fakeAnchors) LowSimilarityPackages(ctx context.Context, projectID string, opts analyzer.Options) ([]model.LowSimilarityPackage, error) {
	return f.packages, f.err
}

func meta(deps map[string]string, versions ...string) *model.PackageMetadata {
	return &model.PackageMetadata{Dependencies: deps, Versions: versions}
}

func newTestResolver(reg Registry, store HealthStore, graph GraphQueries, anchors Anchors) *Resolver {
	return New(reg, store, graph, anchors, zap.NewNop())
}

func TestUpgradeRecommendations_ResolvesConflict(t *testing.T) {
	// Two apps pin different versions of shared-lib; both ranges admit
	// 2.2.0, the highest published version satisfying every range.
	store := &fakeStore{deps: []model.ProjectDependency{
		{PackageID: "1", Name: "app-a", Version: "1.0.0"},
		{PackageID: "2", Name: "app-b", Version: "1.0.0"},
	}}
	registry := &fakeRegistry{metadata: map[string]*model.PackageMetadata{
		"app-a":      meta(map[string]string{"shared-lib": "^2.0.0"}),
		"app-b":      meta(map[string]string{"shared-lib": ">=2.1.0"}),
		"shared-lib": meta(nil, "1.8.0", "1.9.0", "2.0.0", "2.1.0", "2.2.0"),
	}}
	graph := &fakeGraph{
		purls: map[string]string{
			"app-a@1.0.0": "pkg:npm/app-a@1.0.0",
			"app-b@1.0.0": "pkg:npm/app-b@1.0.0",
		},
		direct: map[string][]model.PackageNode{
			"pkg:npm/app-a@1.0.0": {{Name: "shared-lib", Version: "2.0.0"}},
			"pkg:npm/app-b@1.0.0": {{Name: "shared-lib", Version: "2.1.0"}},
		},
	}

	r := newTestResolver(registry, store, graph, &fakeAnchors{})
	report, err := r.UpgradeRecommendations(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("UpgradeRecommendations returned error: %v", err)
	}

	if len(report.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %+v", report.Conflicts)
	}
	conflict := report.Conflicts[0]
	if conflict.Name != "shared-lib" || !conflict.Resolved || conflict.Recommended != "2.2.0" {
		t.Errorf("unexpected conflict: %+v", conflict)
	}
	if len(conflict.Versions) != 2 {
		t.Errorf("expected both observed versions, got %v", conflict.Versions)
	}

	if len(report.Recommendations) != 1 {
		t.Fatalf("expected 1 recommendation, got %+v", report.Recommendations)
	}
	rec := report.Recommendations[0]
	if rec.Name != "shared-lib" || rec.NewVersion != "2.2.0" || rec.IsDowngrade {
		t.Errorf("unexpected recommendation: %+v", rec)
	}
	if rec.Impact != "low" {
		t.Errorf("expected low impact for a single conflict, got %q", rec.Impact)
	}

	if report.Score != Score(1, 1, 0) {
		t.Errorf("score mismatch: got %d", report.Score)
	}
}

func TestUpgradeRecommendations_DowngradeWins(t *testing.T) {
	// The project holds e-lib at 2.0.0 and 3.0.0 but only versions up
	// to 2.5.0 are published. The downgrade entry must win the
	// consolidation so the report shows 3.0.0 -> 2.5.0 as a downgrade.
	store := &fakeStore{deps: []model.ProjectDependency{
		{PackageID: "1", Name: "e-lib", Version: "2.0.0"},
		{PackageID: "2", Name: "e-lib", Version: "3.0.0"},
	}}
	registry := &fakeRegistry{metadata: map[string]*model.PackageMetadata{
		"e-lib": meta(nil, "1.0.0", "2.0.0", "2.5.0"),
	}}

	r := newTestResolver(registry, store, &fakeGraph{}, &fakeAnchors{})
	report, err := r.UpgradeRecommendations(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("UpgradeRecommendations returned error: %v", err)
	}

	if len(report.Recommendations) != 1 {
		t.Fatalf("expected 1 recommendation, got %+v", report.Recommendations)
	}
	rec := report.Recommendations[0]
	if rec.OldVersion != "3.0.0" || rec.NewVersion != "2.5.0" || !rec.IsDowngrade {
		t.Errorf("expected downgrade entry to win consolidation, got %+v", rec)
	}
}

func TestUpgradeRecommendations_UnresolvableConflict(t *testing.T) {
	// ^1.0.0 and ^2.0.0 admit no common version; the conflict stays
	// unresolved and the fallback recommendation is the first observed
	// version.
	store := &fakeStore{deps: []model.ProjectDependency{
		{PackageID: "1", Name: "web-app", Version: "1.0.0"},
		{PackageID: "2", Name: "api-app", Version: "1.0.0"},
		{PackageID: "3", Name: "f-lib", Version: "1.0.0"},
		{PackageID: "4", Name: "f-lib", Version: "2.0.0"},
	}}
	registry := &fakeRegistry{metadata: map[string]*model.PackageMetadata{
		"web-app": meta(map[string]string{"f-lib": "^1.0.0"}),
		"api-app": meta(map[string]string{"f-lib": "^2.0.0"}),
		"f-lib":   meta(nil, "1.0.0", "1.5.0", "2.0.0", "2.3.0"),
	}}

	r := newTestResolver(registry, store, &fakeGraph{}, &fakeAnchors{})
	report, err := r.UpgradeRecommendations(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("UpgradeRecommendations returned error: %v", err)
	}

	if len(report.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %+v", report.Conflicts)
	}
	conflict := report.Conflicts[0]
	if conflict.Resolved {
		t.Error("expected the conflict to stay unresolved")
	}
	if conflict.Recommended != "1.0.0" {
		t.Errorf("expected first-observed fallback, got %q", conflict.Recommended)
	}
}

func TestUpgradeRecommendations_RegistryFailureDegrades(t *testing.T) {
	// Registry lookups failing for every package leaves no ranges and
	// no version lists, but the observed version split still surfaces
	// as a conflict with the first-observed fallback.
	store := &fakeStore{deps: []model.ProjectDependency{
		{PackageID: "1", Name: "g-lib", Version: "1.0.0"},
		{PackageID: "2", Name: "g-lib", Version: "1.1.0"},
	}}
	registry := &fakeRegistry{}

	r := newTestResolver(registry, store, &fakeGraph{}, &fakeAnchors{})
	report, err := r.UpgradeRecommendations(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("UpgradeRecommendations returned error: %v", err)
	}
	if len(report.Conflicts) != 1 || report.Conflicts[0].Resolved {
		t.Errorf("expected 1 unresolved conflict, got %+v", report.Conflicts)
	}
}

func TestUpgradeRecommendations_AnchorFailureTolerated(t *testing.T) {
	store := &fakeStore{deps: []model.ProjectDependency{
		{PackageID: "1", Name: "solo", Version: "1.0.0"},
	}}
	registry := &fakeRegistry{metadata: map[string]*model.PackageMetadata{
		"solo": meta(nil, "1.0.0"),
	}}
	anchors := &fakeAnchors{err: errors.New("analysis failed")}

	r := newTestResolver(registry, store, &fakeGraph{}, anchors)
	report, err := r.UpgradeRecommendations(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("expected anchor failure to degrade, got error: %v", err)
	}
	if report.LowSimilarityPackages != nil {
		t.Errorf("expected no anchors, got %+v", report.LowSimilarityPackages)
	}
	if report.Score != 100 {
		t.Errorf("clean project should score 100, got %d", report.Score)
	}
}

func TestUpgradeRecommendations_NoDependencies(t *testing.T) {
	r := newTestResolver(&fakeRegistry{}, &fakeStore{}, &fakeGraph{}, &fakeAnchors{})

	_, err := r.UpgradeRecommendations(context.Background(), "proj-1")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not-found for empty project, got %v", err)
	}
}

func TestFlatteningAnalysis(t *testing.T) {
	store := &fakeStore{deps: []model.ProjectDependency{
		{PackageID: "1", Name: "web-app", Version: "1.0.0"},
		{PackageID: "2", Name: "api-app", Version: "1.0.0"},
		{PackageID: "3", Name: "f-lib", Version: "1.0.0"},
		{PackageID: "4", Name: "f-lib", Version: "2.0.0"},
	}}
	registry := &fakeRegistry{metadata: map[string]*model.PackageMetadata{
		"web-app": meta(map[string]string{"f-lib": "^1.0.0"}),
		"api-app": meta(map[string]string{"f-lib": "^2.0.0"}),
		"f-lib":   meta(nil, "1.0.0", "2.0.0"),
	}}

	r := newTestResolver(registry, store, &fakeGraph{}, &fakeAnchors{})
	analysis, err := r.FlatteningAnalysis(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("FlatteningAnalysis returned error: %v", err)
	}
	if analysis.ConflictCount != 1 || analysis.UnresolvableConflicts != 1 {
		t.Errorf("unexpected analysis: %+v", analysis)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name            string
		conflicts       int
		recommendations int
		lowSimilarity   int
		expected        int
	}{
		{"clean", 0, 0, 0, 100},
		{"one conflict", 1, 1, 0, 95},
		{"recommendations past three", 0, 5, 0, 96},
		{"anchors", 0, 0, 2, 94},
		{"combined", 2, 6, 1, 81},
		{"clamped at zero", 30, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.conflicts, tt.recommendations, tt.lowSimilarity)
			if got != tt.expected {
				t.Errorf("Score(%d, %d, %d) = %d, want %d",
					tt.conflicts, tt.recommendations, tt.lowSimilarity, got, tt.expected)
			}
		})
	}
}

func TestConsolidate_SkipsNoOp(t *testing.T) {
	raw := []rawRecommendation{
		{name: "a", oldVersion: "1.0.0", newVersion: "1.0.0", resolved: true},
		{name: "b", oldVersion: "1.0.0", newVersion: "2.0.0", resolved: true},
	}
	recs := consolidate(raw, 1)
	if len(recs) != 1 || recs[0].Name != "b" {
		t.Errorf("expected only the real change, got %+v", recs)
	}
}

func TestConsolidate_ImpactScale(t *testing.T) {
	raw := []rawRecommendation{{name: "a", oldVersion: "1.0.0", newVersion: "2.0.0"}}

	if recs := consolidate(raw, 1); recs[0].Impact != "low" {
		t.Errorf("1 conflict should be low, got %q", recs[0].Impact)
	}
	if recs := consolidate(raw, 4); recs[0].Impact != "medium" {
		t.Errorf("4 conflicts should be medium, got %q", recs[0].Impact)
	}
	if recs := consolidate(raw, 7); recs[0].Impact != "high" {
		t.Errorf("7 conflicts should be high, got %q", recs[0].Impact)
	}
}
