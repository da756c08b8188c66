// Package resolver detects version conflicts across a project's
// resolved dependency set and recommends a version per conflicting
// package that satisfies the largest number of declared semver ranges.
package resolver

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/depscope/depscope/analyzer"
	"github.com/depscope/depscope/model"
	"github.com/depscope/depscope/util"
)

// lookupLimit bounds concurrent registry lookups so the optimizer
// respects upstream rate limits.
const lookupLimit = 10

// Registry is the registry-client surface the resolver consumes.
type Registry interface {
	GetPackageMetadata(ctx context.Context, name, version string) (*model.PackageMetadata, error)
}

// HealthStore is the relational-store surface the resolver consumes.
type HealthStore interface {
	GetProjectDependencies(ctx context.Context, projectID string) ([]model.ProjectDependency, error)
}

// GraphQueries is the query-engine surface the resolver consumes for
// footprint computation.
type GraphQueries interface {
	FindPurlByNameVersion(ctx context.Context, name, version string) (string, error)
	DirectDependencies(ctx context.Context, purl string) ([]model.PackageNode, error)
	TransitiveClosure(ctx context.Context, purl string) ([]string, error)
}

// Anchors is the analyzer surface feeding the optimizer score.
type Anchors interface {
	LowSimilarityPackages(ctx context.Context, projectID string, opts analyzer.Options) ([]model.LowSimilarityPackage, error)
}

// Resolver is the upgrade optimizer. It reads from the graph and the
// registry and writes nothing back; the output is recommendations only.
type Resolver struct {
	registry Registry
	store    HealthStore
	graph    GraphQueries
	anchors  Anchors
	logger   *zap.Logger
}

// New creates a Resolver.
func New(reg Registry, store HealthStore, graph GraphQueries, anchors Anchors, logger *zap.Logger) *Resolver {
	return &Resolver{
		registry: reg,
		store:    store,
		graph:    graph,
		anchors:  anchors,
		logger:   logger,
	}
}

// collected is the per-dependency-name requirement and observation
// state accumulated during the scan.
type collected struct {
	requirements []model.Requirement
	observed     []string // distinct observed versions, in first-seen order
}

func (c *collected) observe(version string) {
	if version == "" {
		return
	}
	for _, v := range c.observed {
		if v == version {
			return
		}
	}
	c.observed = append(c.observed, version)
}

func (c *collected) ranges() []string {
	ranges := make([]string, 0, len(c.requirements))
	for _, req := range c.requirements {
		ranges = append(ranges, req.Range)
	}
	return ranges
}

// UpgradeRecommendations runs the full optimizer for one project.
func (r *Resolver) UpgradeRecommendations(ctx context.Context, projectID string) (*model.UpgradeReport, error) {
	if projectID == "" {
		return nil, model.NewValidationError("projectId", "must not be empty")
	}

	deps, err := r.store.GetProjectDependencies(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(deps) == 0 {
		return nil, model.NotFound("project dependencies", projectID)
	}

	byName := r.collectRequirements(ctx, deps)
	r.observeGraphVersions(ctx, deps, byName)

	conflicts := classifyConflicts(byName)

	raw := r.searchCompatibleVersions(ctx, byName, conflicts)

	recommendations := consolidate(raw, len(conflicts))

	fp := newFootprinter(r.graph, r.logger)
	fp.annotate(ctx, deps, recommendations)
	projectBefore, projectAfter := fp.projectDiff(ctx, deps, recommendations)

	lowSimilarity, err := r.anchors.LowSimilarityPackages(ctx, projectID, analyzer.Options{})
	if err != nil {
		r.logger.Warn("low similarity analysis failed", zap.String("project", projectID), zap.Error(err))
		lowSimilarity = nil
	}

	report := &model.UpgradeReport{
		Score:                 Score(len(conflicts), len(recommendations), len(lowSimilarity)),
		Recommendations:       recommendations,
		Conflicts:             conflicts,
		LowSimilarityPackages: lowSimilarity,
		ProjectBefore:         projectBefore,
		ProjectAfter:          projectAfter,
	}
	return report, nil
}

// FlatteningAnalysis summarizes the optimizer output for one project.
func (r *Resolver) FlatteningAnalysis(ctx context.Context, projectID string) (*model.FlatteningAnalysis, error) {
	report, err := r.UpgradeRecommendations(ctx, projectID)
	if err != nil {
		return nil, err
	}

	unresolvable := 0
	for _, conflict := range report.Conflicts {
		if !conflict.Resolved {
			unresolvable++
		}
	}

	return &model.FlatteningAnalysis{
		Score:                 report.Score,
		ConflictCount:         len(report.Conflicts),
		RecommendationCount:   len(report.Recommendations),
		UnresolvableConflicts: unresolvable,
		LowSimilarityPackages: report.LowSimilarityPackages,
		ProjectBefore:         report.ProjectBefore,
		ProjectAfter:          report.ProjectAfter,
	}, nil
}

// collectRequirements queries the registry for each project package's
// declared ranges (dependencies, peer, optional) with bounded
// concurrency. A failed lookup degrades: that package contributes no
// ranges, the run continues.
func (r *Resolver) collectRequirements(ctx context.Context, deps []model.ProjectDependency) map[string]*collected {
	byName := make(map[string]*collected)
	var mu sync.Mutex

	get := func(name string) *collected {
		c, ok := byName[name]
		if !ok {
			c = &collected{}
			byName[name] = c
		}
		return c
	}

	// Every project dependency is itself an observation.
	for _, dep := range deps {
		get(dep.Name).observe(dep.Version)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupLimit)

	for _, dep := range deps {
		dep := dep
		g.Go(func() error {
			meta, err := r.registry.GetPackageMetadata(gctx, dep.Name, dep.Version)
			if err != nil {
				r.logger.Warn("requirement lookup failed",
					zap.String("package", dep.Name), zap.String("version", dep.Version), zap.Error(err))
				return nil
			}

			mu.Lock()
			for name, rng := range meta.AllRequirements() {
				get(name).requirements = append(get(name).requirements, model.Requirement{
					RequiredBy:        dep.Name,
					RequiredByVersion: dep.Version,
					Range:             rng,
				})
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return byName
}

// observeGraphVersions adds the resolved versions found in each
// project package's direct-dependency list to the observation set.
func (r *Resolver) observeGraphVersions(ctx context.Context, deps []model.ProjectDependency, byName map[string]*collected) {
	for _, dep := range deps {
		purl, err := r.graph.FindPurlByNameVersion(ctx, dep.Name, dep.Version)
		if err != nil || purl == "" {
			continue
		}
		direct, err := r.graph.DirectDependencies(ctx, purl)
		if err != nil {
			continue
		}
		for _, node := range direct {
			if node.Name == "" {
				continue
			}
			c, ok := byName[node.Name]
			if !ok {
				c = &collected{}
				byName[node.Name] = c
			}
			c.observe(node.Version)
		}
	}
}

// classifyConflicts returns every dependency name that is a conflict:
// observed with two or more versions, or with any observed version
// failing at least one collected range. Names never observed locally
// are not actionable and are skipped.
func classifyConflicts(byName map[string]*collected) []model.ConflictDetail {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	var conflicts []model.ConflictDetail
	for _, name := range names {
		c := byName[name]
		if len(c.observed) == 0 {
			continue
		}

		isConflict := len(c.observed) > 1
		if !isConflict {
			for _, version := range c.observed {
				for _, rng := range c.ranges() {
					if !util.SatisfiesRange(version, rng) {
						isConflict = true
						break
					}
				}
				if isConflict {
					break
				}
			}
		}
		if !isConflict {
			continue
		}

		conflicts = append(conflicts, model.ConflictDetail{
			Name:         name,
			Versions:     append([]string(nil), c.observed...),
			Requirements: append([]model.Requirement(nil), c.requirements...),
		})
	}
	return conflicts
}

// rawRecommendation is one pre-consolidation entry: a conflicting
// name paired with one of its observed current versions.
type rawRecommendation struct {
	name        string
	oldVersion  string
	newVersion  string
	isDowngrade bool
	resolved    bool
}

// searchCompatibleVersions finds, per conflict, the highest published
// version satisfying every collected range, falling back to the first
// observed version when none does (surfaced as unresolved, not an
// error). Lookups run with bounded concurrency; one failure leaves
// only that conflict unresolved.
func (r *Resolver) searchCompatibleVersions(ctx context.Context, byName map[string]*collected, conflicts []model.ConflictDetail) []rawRecommendation {
	recommended := make([]string, len(conflicts))
	resolved := make([]bool, len(conflicts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupLimit)

	for i := range conflicts {
		i := i
		g.Go(func() error {
			name := conflicts[i].Name
			c := byName[name]

			meta, err := r.registry.GetPackageMetadata(gctx, name, "")
			if err != nil {
				r.logger.Warn("version list fetch failed", zap.String("package", name), zap.Error(err))
				recommended[i] = c.observed[0]
				return nil
			}

			best := util.HighestSatisfying(meta.Versions, c.ranges())
			if best == "" {
				// No version satisfies every range: an unresolvable
				// conflict, reported as data.
				recommended[i] = c.observed[0]
				return nil
			}
			recommended[i] = best
			resolved[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var raw []rawRecommendation
	for i := range conflicts {
		conflicts[i].Resolved = resolved[i]
		conflicts[i].Recommended = recommended[i]

		for _, current := range conflicts[i].Versions {
			raw = append(raw, rawRecommendation{
				name:        conflicts[i].Name,
				oldVersion:  current,
				newVersion:  recommended[i],
				isDowngrade: util.CompareVersions(recommended[i], current) < 0,
				resolved:    resolved[i],
			})
		}
	}
	return raw
}

// consolidate groups raw recommendations by name. When duplicates
// disagree the downgrade-flagged entry wins; the rule is preserved
// from the original system for compatibility.
func consolidate(raw []rawRecommendation, conflictCount int) []model.Recommendation {
	impact := "low"
	switch {
	case conflictCount > 5:
		impact = "high"
	case conflictCount > 2:
		impact = "medium"
	}

	byName := make(map[string]rawRecommendation)
	order := make([]string, 0)
	for _, rec := range raw {
		existing, ok := byName[rec.name]
		if !ok {
			byName[rec.name] = rec
			order = append(order, rec.name)
			continue
		}
		if rec.isDowngrade && !existing.isDowngrade {
			byName[rec.name] = rec
		}
	}

	recommendations := make([]model.Recommendation, 0, len(order))
	for _, name := range order {
		rec := byName[name]
		if rec.oldVersion == rec.newVersion {
			continue
		}
		recommendations = append(recommendations, model.Recommendation{
			Name:        rec.name,
			OldVersion:  rec.oldVersion,
			NewVersion:  rec.newVersion,
			IsDowngrade: rec.isDowngrade,
			Resolved:    rec.resolved,
			Impact:      impact,
		})
	}
	return recommendations
}

// Score grades a project's dependency state: every conflict costs 5,
// every recommendation past the third costs 2, every anchor package
// costs 3. Clamped to [0,100].
func Score(conflicts, recommendations, lowSimilarity int) int {
	score := 100 - 5*conflicts - 3*lowSimilarity
	if extra := recommendations - 3; extra > 0 {
		score -= 2 * extra
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
