// Package analyzer computes dependency-set overlap between a
// project's packages and flags anchors: packages whose footprint
// barely overlaps the rest of the project.
package analyzer

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/depscope/depscope/model"
)

const (
	// minTransitiveCount gates packages too small to be meaningful
	// anchors.
	minTransitiveCount = 3

	// DefaultSharedThreshold and DefaultSimilarityRatio are the
	// low-similarity cutoffs.
	DefaultSharedThreshold = 1
	DefaultSimilarityRatio = 0.2
	// DefaultLimit caps the returned anchor list.
	DefaultLimit = 10
)

// GraphQueries is the query-engine surface the analyzer consumes.
type GraphQueries interface {
	FindPurlByNameVersion(ctx context.Context, name, version string) (string, error)
	DirectDependencies(ctx context.Context, purl string) ([]model.PackageNode, error)
	TransitiveClosure(ctx context.Context, purl string) ([]string, error)
	Dependents(ctx context.Context, purl string) ([]model.PackageNode, error)
}

// HealthStore is the relational-store surface the analyzer consumes.
type HealthStore interface {
	GetProjectDependencies(ctx context.Context, projectID string) ([]model.ProjectDependency, error)
}

// Options tune the low-similarity detection.
type Options struct {
	SharedThreshold int
	SimilarityRatio float64
	Limit           int
}

// Analyzer flags anchor packages for a project.
type Analyzer struct {
	graph  GraphQueries
	store  HealthStore
	logger *zap.Logger
}

// New creates an Analyzer.
func New(graph GraphQueries, store HealthStore, logger *zap.Logger) *Analyzer {
	return &Analyzer{graph: graph, store: store, logger: logger}
}

// member is one project package with its resolved dependency sets.
type member struct {
	dep             model.ProjectDependency
	purl            string
	directSet       map[string]bool
	directCount     int
	transitiveCount int
	closure         []string
}

// depKey identifies a dependency inside overlap sets: purl where
// available, else name.
func depKey(node model.PackageNode) string {
	if node.Purl != "" {
		return node.Purl
	}
	return node.Name
}

// LowSimilarityPackages returns the project packages flagged as
// anchors, sorted by shared count then dependency count, ascending.
func (a *Analyzer) LowSimilarityPackages(ctx context.Context, projectID string, opts Options) ([]model.LowSimilarityPackage, error) {
	if projectID == "" {
		return nil, model.NewValidationError("projectId", "must not be empty")
	}

	if opts.SharedThreshold == 0 {
		opts.SharedThreshold = DefaultSharedThreshold
	}
	if opts.SimilarityRatio == 0 {
		opts.SimilarityRatio = DefaultSimilarityRatio
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultLimit
	}

	deps, err := a.store.GetProjectDependencies(ctx, projectID)
	if err != nil {
		return nil, err
	}

	members := a.collectMembers(ctx, deps)

	// Dependents are scoped to the project's own subgraph: in-edges
	// from packages outside it do not count.
	subgraph := make(map[string]bool)
	for _, m := range members {
		subgraph[m.dep.Name] = true
		if m.purl != "" {
			subgraph[m.purl] = true
		}
		for _, p := range m.closure {
			subgraph[p] = true
		}
	}

	flagged := make([]model.LowSimilarityPackage, 0)
	for i, m := range members {
		if m.transitiveCount < minTransitiveCount {
			continue
		}

		// Shared is summed across every peer without deduplicating
		// the dependency identity: three peers each holding the same
		// dependency count as three. It measures aggregate
		// entanglement, not distinct overlap.
		shared := 0
		for j, peer := range members {
			if i == j {
				continue
			}
			for key := range m.directSet {
				if peer.directSet[key] {
					shared++
				}
			}
		}

		ratio := 0.0
		if m.directCount > 0 {
			ratio = float64(shared) / float64(m.directCount)
		}

		isLow := m.directCount == 0 ||
			(shared <= opts.SharedThreshold && ratio <= opts.SimilarityRatio)
		if !isLow {
			continue
		}

		entry := model.LowSimilarityPackage{
			Name:            m.dep.Name,
			Purl:            m.purl,
			Version:         m.dep.Version,
			DependencyCount: m.directCount,
			Shared:          shared,
			Ratio:           ratio,
		}

		if m.purl != "" {
			if dependents, err := a.graph.Dependents(ctx, m.purl); err == nil {
				for _, d := range dependents {
					if !subgraph[d.Purl] && !subgraph[d.Name] {
						continue
					}
					entry.Dependents = append(entry.Dependents, d.Name)
				}
			} else {
				a.logger.Warn("dependents lookup failed", zap.String("purl", m.purl), zap.Error(err))
			}
		}

		flagged = append(flagged, entry)
	}

	sort.SliceStable(flagged, func(i, j int) bool {
		if flagged[i].Shared != flagged[j].Shared {
			return flagged[i].Shared < flagged[j].Shared
		}
		return flagged[i].DependencyCount < flagged[j].DependencyCount
	})

	if len(flagged) > opts.Limit {
		flagged = flagged[:opts.Limit]
	}

	return flagged, nil
}

// collectMembers resolves every project dependency into the graph and
// gathers its direct set and transitive count. Packages missing from
// the graph still participate, with empty sets.
func (a *Analyzer) collectMembers(ctx context.Context, deps []model.ProjectDependency) []member {
	members := make([]member, 0, len(deps))
	for _, dep := range deps {
		m := member{dep: dep, directSet: map[string]bool{}}

		purl, err := a.graph.FindPurlByNameVersion(ctx, dep.Name, dep.Version)
		if err != nil {
			a.logger.Warn("purl lookup failed", zap.String("name", dep.Name), zap.Error(err))
		}
		m.purl = purl

		if purl != "" {
			if direct, err := a.graph.DirectDependencies(ctx, purl); err == nil {
				for _, node := range direct {
					m.directSet[depKey(node)] = true
				}
			}
			m.directCount = len(m.directSet)

			if closure, err := a.graph.TransitiveClosure(ctx, purl); err == nil {
				m.closure = closure
				m.transitiveCount = len(closure)
			}
		}

		members = append(members, m)
	}
	return members
}
