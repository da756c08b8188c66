package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/depscope/depscope/model"
	"github.com/depscope/depscope/util"
)

// footprinter computes transitive-dependency overlap diffs for
// recommendations. Closures are cached per run; failures yield absent
// stats, never stale ones.
type footprinter struct {
	graph    GraphQueries
	logger   *zap.Logger
	closures map[string][]string
	failed   map[string]bool
}

func newFootprinter(graph GraphQueries, logger *zap.Logger) *footprinter {
	return &footprinter{
		graph:    graph,
		logger:   logger,
		closures: make(map[string][]string),
		failed:   make(map[string]bool),
	}
}

// resolvePurl finds the graph purl for an exact name+version match,
// synthesizing pkg:npm/name@version when the graph has no record.
func (f *footprinter) resolvePurl(ctx context.Context, name, version string) string {
	purl, err := f.graph.FindPurlByNameVersion(ctx, name, version)
	if err != nil || purl == "" {
		return util.FormatPurlID(name, version)
	}
	return purl
}

// closure returns the cached one-or-more-hop reachable set of purl.
// The second return is false when the traversal failed.
func (f *footprinter) closure(ctx context.Context, purl string) ([]string, bool) {
	if f.failed[purl] {
		return nil, false
	}
	if cached, ok := f.closures[purl]; ok {
		return cached, true
	}

	reachable, err := f.graph.TransitiveClosure(ctx, purl)
	if err != nil {
		f.logger.Warn("closure traversal failed", zap.String("purl", purl), zap.Error(err))
		f.failed[purl] = true
		return nil, false
	}
	f.closures[purl] = reachable
	return reachable, true
}

// otherSet unions the transitive sets of every project package except
// the named one, at their current versions.
func (f *footprinter) otherSet(ctx context.Context, deps []model.ProjectDependency, exclude string) map[string]bool {
	others := make(map[string]bool)
	for _, dep := range deps {
		if dep.Name == exclude {
			continue
		}
		purl := f.resolvePurl(ctx, dep.Name, dep.Version)
		reachable, ok := f.closure(ctx, purl)
		if !ok {
			continue
		}
		others[purl] = true
		for _, p := range reachable {
			others[p] = true
		}
	}
	return others
}

// stats classifies every transitive dependency of target as separate
// (absent from others) or shared (present). Nil when the target's
// closure could not be computed.
func (f *footprinter) stats(ctx context.Context, targetPurl string, others map[string]bool) *model.FootprintStats {
	reachable, ok := f.closure(ctx, targetPurl)
	if !ok {
		return nil
	}

	result := &model.FootprintStats{}
	for _, p := range reachable {
		if others[p] {
			result.SharedCount++
		} else {
			result.SeparateCount++
		}
	}
	return result
}

// annotate attaches before/after footprint stats to each
// recommendation: the target's closure at the old and new version,
// classified against the union of all other project packages.
func (f *footprinter) annotate(ctx context.Context, deps []model.ProjectDependency, recommendations []model.Recommendation) {
	for i := range recommendations {
		rec := &recommendations[i]
		others := f.otherSet(ctx, deps, rec.Name)

		oldPurl := f.resolvePurl(ctx, rec.Name, rec.OldVersion)
		newPurl := f.resolvePurl(ctx, rec.Name, rec.NewVersion)

		rec.BeforeStats = f.stats(ctx, oldPurl, others)
		rec.AfterStats = f.stats(ctx, newPurl, others)
	}
}

// projectDiff computes one aggregate separate/shared pair for the
// whole project, before and after applying the recommendations.
func (f *footprinter) projectDiff(ctx context.Context, deps []model.ProjectDependency, recommendations []model.Recommendation) (*model.FootprintStats, *model.FootprintStats) {
	newVersions := make(map[string]string, len(recommendations))
	for _, rec := range recommendations {
		newVersions[rec.Name] = rec.NewVersion
	}

	before := f.aggregate(ctx, deps, nil)
	after := f.aggregate(ctx, deps, newVersions)
	return before, after
}

// aggregate sums the per-package footprint stats across the project,
// with overrides substituting recommended versions.
func (f *footprinter) aggregate(ctx context.Context, deps []model.ProjectDependency, overrides map[string]string) *model.FootprintStats {
	versionOf := func(dep model.ProjectDependency) string {
		if v, ok := overrides[dep.Name]; ok {
			return v
		}
		return dep.Version
	}

	total := &model.FootprintStats{}
	computed := false

	for _, dep := range deps {
		others := make(map[string]bool)
		for _, other := range deps {
			if other.Name == dep.Name {
				continue
			}
			purl := f.resolvePurl(ctx, other.Name, versionOf(other))
			reachable, ok := f.closure(ctx, purl)
			if !ok {
				continue
			}
			others[purl] = true
			for _, p := range reachable {
				others[p] = true
			}
		}

		purl := f.resolvePurl(ctx, dep.Name, versionOf(dep))
		if stats := f.stats(ctx, purl, others); stats != nil {
			total.SeparateCount += stats.SeparateCount
			total.SharedCount += stats.SharedCount
			computed = true
		}
	}

	if !computed {
		return nil
	}
	return total
}
