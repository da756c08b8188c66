// Package query is the dependency graph query engine: tree
// reconstruction, filtered direct/transitive views, version-conflict
// scans, and visualization node/edge lists.
package query

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/depscope/depscope/database"
	"github.com/depscope/depscope/model"
	"github.com/depscope/depscope/util"
)

const (
	// maxTraversalDepth bounds every closure walk; dependency graphs
	// are expected acyclic but peer/optional patterns can loop.
	maxTraversalDepth = 50
	// transitiveDisplayLimit is how many children of a direct
	// dependency the filtered view shows.
	transitiveDisplayLimit = 5
	// filteredGraphCap keeps the filtered payload bounded for
	// visualization.
	filteredGraphCap = 6
	// defaultHealthScore is assumed for packages the health store
	// does not know.
	defaultHealthScore = 50
)

// HealthStore is the subset of the relational store the engine needs.
type HealthStore interface {
	GetHealthScore(ctx context.Context, name string) (*float64, error)
	GetPackageByID(ctx context.Context, id string) (*model.PackageRecord, error)
	FindPackageByName(ctx context.Context, name string) (*model.PackageRecord, error)
}

// FilterOptions narrows the filtered dependency graph view.
type FilterOptions struct {
	Query string // case-insensitive substring on names
	Scope string // "direct" or "all"
	Risk  string // "low", "medium", "high", "all"
}

// Engine answers read queries over the dependency graph.
type Engine struct {
	graph  database.Graph
	store  HealthStore
	logger *zap.Logger
}

// NewEngine creates a query engine. store may be nil; risk scores then
// fall back to the default for every package.
func NewEngine(graph database.Graph, store HealthStore, logger *zap.Logger) *Engine {
	return &Engine{graph: graph, store: store, logger: logger}
}

// RiskBucket maps a risk score to its bucket name.
func RiskBucket(score float64) string {
	switch {
	case score < 10:
		return "low"
	case score < 30:
		return "medium"
	default:
		return "high"
	}
}

// riskScore inverts the health score; unknown packages default to 50.
func (e *Engine) riskScore(ctx context.Context, name string) float64 {
	if e.store == nil {
		return defaultHealthScore
	}
	health, err := e.store.GetHealthScore(ctx, name)
	if err != nil || health == nil {
		return defaultHealthScore
	}
	return 100 - *health
}

// FullDependencyTree reconstructs the CycloneDX-shaped tree for every
// package belonging to the SBOM plus its reachable dependency set,
// deduplicated by purl.
func (e *Engine) FullDependencyTree(ctx context.Context, sbomID string) (*model.DependencyTree, error) {
	if util.IsEmpty(sbomID) {
		return nil, model.NewValidationError("sbomId", "must not be empty")
	}

	var sboms []model.SbomNode
	sbomQuery := `
		FOR s IN sbom
			FILTER s.id == @sbomId
			LIMIT 1
			RETURN s
	`
	if err := e.graph.ReadAll(ctx, sbomQuery, map[string]any{"sbomId": sbomID}, &sboms); err != nil {
		return nil, err
	}
	if len(sboms) == 0 {
		return nil, model.NotFound("sbom", sbomID)
	}

	var nodes []model.PackageNode
	nodeQuery := `
		FOR s IN sbom
			FILTER s.id == @sbomId
			FOR p IN 1..1 INBOUND s belongs_to
				FOR v IN 0..@depth OUTBOUND p depends_on OPTIONS { order: "bfs", uniqueVertices: "global" }
					RETURN DISTINCT v
	`
	bind := map[string]any{"sbomId": sbomID, "depth": maxTraversalDepth}
	if err := e.graph.ReadAll(ctx, nodeQuery, bind, &nodes); err != nil {
		return nil, err
	}

	var edges []model.GraphEdge
	edgeQuery := `
		FOR s IN sbom
			FILTER s.id == @sbomId
			FOR p IN 1..1 INBOUND s belongs_to
				FOR v, edge IN 1..@depth OUTBOUND p depends_on OPTIONS { uniqueEdges: "path" }
					RETURN DISTINCT {
						from: DOCUMENT(edge._from).purl,
						to: DOCUMENT(edge._to).purl
					}
	`
	if err := e.graph.ReadAll(ctx, edgeQuery, bind, &edges); err != nil {
		return nil, err
	}

	tree := &model.DependencyTree{
		Components:   make([]model.Component, 0, len(nodes)),
		Dependencies: make([]model.Dependency, 0),
	}

	seen := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		if node.Purl == "" || seen[node.Purl] {
			continue
		}
		seen[node.Purl] = true
		tree.Components = append(tree.Components, packageToComponent(node))
	}

	dependsOn := make(map[string][]string)
	edgeSeen := make(map[string]bool)
	for _, edge := range edges {
		if edge.From == "" || edge.To == "" || edge.From == edge.To {
			continue
		}
		key := edge.From + "|" + edge.To
		if edgeSeen[key] {
			continue
		}
		edgeSeen[key] = true
		dependsOn[edge.From] = append(dependsOn[edge.From], edge.To)
	}

	refs := make([]string, 0, len(dependsOn))
	for ref := range dependsOn {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	for _, ref := range refs {
		tree.Dependencies = append(tree.Dependencies, model.Dependency{
			Ref:       ref,
			DependsOn: dependsOn[ref],
		})
	}

	return tree, nil
}

// ResolvePackage resolves a caller-supplied package id or name to its
// graph purl: the relational store canonicalizes the name (by id, then
// by name), the graph is matched on name+version, and a synthesized
// npm purl is the last resort. Returns the purl and name.
func (e *Engine) ResolvePackage(ctx context.Context, idOrName, version string) (string, string, error) {
	if util.IsEmpty(idOrName) {
		return "", "", model.NewValidationError("package", "must not be empty")
	}

	name := idOrName
	if e.store != nil {
		if record, err := e.store.GetPackageByID(ctx, idOrName); err == nil && record != nil && record.PackageName != "" {
			name = record.PackageName
		} else if record, err := e.store.FindPackageByName(ctx, idOrName); err == nil && record != nil && record.PackageName != "" {
			name = record.PackageName
		}
	}

	var matches []model.PackageNode
	lookup := `
		FOR p IN package
			FILTER p.name == @name AND (@version == "" OR p.version == @version)
			LIMIT 1
			RETURN p
	`
	bind := map[string]any{"name": name, "version": version}
	if err := e.graph.ReadAll(ctx, lookup, bind, &matches); err != nil {
		return "", "", err
	}
	if len(matches) > 0 {
		return matches[0].Purl, matches[0].Name, nil
	}

	return util.FormatPurlID(name, version), name, nil
}

// directDependencies returns the 1-hop dependencies of purl, excluding
// any also reachable through a path of two or more hops, so a package
// reachable both ways is reported once, as direct.
func (e *Engine) directDependencies(ctx context.Context, purl string) ([]model.PackageNode, error) {
	var oneHop []model.PackageNode
	oneHopQuery := `
		FOR root IN package
			FILTER root.purl == @purl
			FOR v IN 1..1 OUTBOUND root depends_on
				RETURN DISTINCT v
	`
	if err := e.graph.ReadAll(ctx, oneHopQuery, map[string]any{"purl": purl}, &oneHop); err != nil {
		return nil, err
	}

	var deeper []string
	deeperQuery := `
		FOR root IN package
			FILTER root.purl == @purl
			FOR v IN 2..@depth OUTBOUND root depends_on OPTIONS { order: "bfs", uniqueVertices: "global" }
				RETURN DISTINCT v.purl
	`
	bind := map[string]any{"purl": purl, "depth": maxTraversalDepth}
	if err := e.graph.ReadAll(ctx, deeperQuery, bind, &deeper); err != nil {
		return nil, err
	}

	transitive := make(map[string]bool, len(deeper))
	for _, p := range deeper {
		transitive[p] = true
	}

	direct := make([]model.PackageNode, 0, len(oneHop))
	for _, node := range oneHop {
		if !transitive[node.Purl] {
			direct = append(direct, node)
		}
	}
	return direct, nil
}

// transitiveChildren returns up to limit 1-hop children of purl, for
// display purposes only.
func (e *Engine) transitiveChildren(ctx context.Context, purl string, limit int) ([]model.PackageNode, error) {
	var children []model.PackageNode
	childQuery := `
		FOR root IN package
			FILTER root.purl == @purl
			FOR v IN 1..1 OUTBOUND root depends_on
				LIMIT @limit
				RETURN DISTINCT v
	`
	bind := map[string]any{"purl": purl, "limit": limit}
	if err := e.graph.ReadAll(ctx, childQuery, bind, &children); err != nil {
		return nil, err
	}
	return children, nil
}

// FilteredDependencyGraph returns a bounded, filtered view of a
// package's direct dependencies with a shallow transitive preview.
func (e *Engine) FilteredDependencyGraph(ctx context.Context, idOrName, version string, opts FilterOptions) (*model.DependencyGraph, error) {
	purl, name, err := e.ResolvePackage(ctx, idOrName, version)
	if err != nil {
		return nil, err
	}

	direct, err := e.directDependencies(ctx, purl)
	if err != nil {
		return nil, err
	}

	type directEntry struct {
		node     model.PackageNode
		risk     float64
		children []model.PackageNode
	}

	entries := make([]directEntry, 0, len(direct))
	needle := strings.ToLower(strings.TrimSpace(opts.Query))

	for _, node := range direct {
		children, err := e.transitiveChildren(ctx, node.Purl, transitiveDisplayLimit)
		if err != nil {
			// Preview is best-effort; the direct entry still counts.
			e.logger.Warn("transitive preview failed", zap.String("purl", node.Purl), zap.Error(err))
			children = nil
		}

		if needle != "" {
			matched := strings.Contains(strings.ToLower(node.Name), needle)
			if !matched && opts.Scope == "all" {
				for _, child := range children {
					if strings.Contains(strings.ToLower(child.Name), needle) {
						matched = true
						break
					}
				}
			}
			if !matched {
				continue
			}
		}

		risk := e.riskScore(ctx, node.Name)
		if opts.Risk != "" && opts.Risk != "all" && RiskBucket(risk) != opts.Risk {
			continue
		}

		entries = append(entries, directEntry{node: node, risk: risk, children: children})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].risk > entries[j].risk
	})
	if len(entries) > filteredGraphCap {
		entries = entries[:filteredGraphCap]
	}

	graph := &model.DependencyGraph{
		Nodes: []model.GraphNode{{
			ID:     purl,
			Name:   name,
			Direct: false,
		}},
		Edges: []model.GraphEdge{},
	}

	nodeSeen := map[string]bool{purl: true}
	for _, entry := range entries {
		if !nodeSeen[entry.node.Purl] {
			nodeSeen[entry.node.Purl] = true
			graph.Nodes = append(graph.Nodes, model.GraphNode{
				ID:        entry.node.Purl,
				Name:      entry.node.Name,
				Version:   entry.node.Version,
				License:   entry.node.License,
				RiskScore: entry.risk,
				Direct:    true,
			})
		}
		graph.Edges = append(graph.Edges, model.GraphEdge{From: purl, To: entry.node.Purl})

		for _, child := range entry.children {
			if child.Purl == entry.node.Purl {
				continue
			}
			if !nodeSeen[child.Purl] {
				nodeSeen[child.Purl] = true
				graph.Nodes = append(graph.Nodes, model.GraphNode{
					ID:      child.Purl,
					Name:    child.Name,
					Version: child.Version,
					License: child.License,
				})
			}
			graph.Edges = append(graph.Edges, model.GraphEdge{From: entry.node.Purl, To: child.Purl})
		}
	}

	return graph, nil
}

// PackageDependencyGraph returns the full reachable subgraph of a
// package as a flat node/edge list. Nodes are keyed by purl, edges
// deduplicated by (from,to), self-edges excluded.
func (e *Engine) PackageDependencyGraph(ctx context.Context, idOrName, version string) (*model.DependencyGraph, error) {
	purl, name, err := e.ResolvePackage(ctx, idOrName, version)
	if err != nil {
		return nil, err
	}

	var nodes []model.PackageNode
	nodeQuery := `
		FOR root IN package
			FILTER root.purl == @purl
			FOR v IN 0..@depth OUTBOUND root depends_on OPTIONS { order: "bfs", uniqueVertices: "global" }
				RETURN DISTINCT v
	`
	bind := map[string]any{"purl": purl, "depth": maxTraversalDepth}
	if err := e.graph.ReadAll(ctx, nodeQuery, bind, &nodes); err != nil {
		return nil, err
	}

	var edges []model.GraphEdge
	edgeQuery := `
		FOR root IN package
			FILTER root.purl == @purl
			FOR v, edge IN 1..@depth OUTBOUND root depends_on OPTIONS { uniqueEdges: "path" }
				RETURN DISTINCT {
					from: DOCUMENT(edge._from).purl,
					to: DOCUMENT(edge._to).purl
				}
	`
	if err := e.graph.ReadAll(ctx, edgeQuery, bind, &edges); err != nil {
		return nil, err
	}

	directSet := make(map[string]bool)
	direct, err := e.directDependencies(ctx, purl)
	if err == nil {
		for _, d := range direct {
			directSet[d.Purl] = true
		}
	}

	graph := &model.DependencyGraph{Nodes: []model.GraphNode{}, Edges: []model.GraphEdge{}}
	nodeSeen := make(map[string]bool)

	if len(nodes) == 0 {
		graph.Nodes = append(graph.Nodes, model.GraphNode{ID: purl, Name: name})
		return graph, nil
	}

	for _, node := range nodes {
		if node.Purl == "" || nodeSeen[node.Purl] {
			continue
		}
		nodeSeen[node.Purl] = true
		graph.Nodes = append(graph.Nodes, model.GraphNode{
			ID:      node.Purl,
			Name:    node.Name,
			Version: node.Version,
			License: node.License,
			Direct:  directSet[node.Purl],
		})
	}

	edgeSeen := make(map[string]bool)
	for _, edge := range edges {
		if edge.From == "" || edge.To == "" || edge.From == edge.To {
			continue
		}
		key := edge.From + "|" + edge.To
		if edgeSeen[key] {
			continue
		}
		edgeSeen[key] = true
		graph.Edges = append(graph.Edges, edge)
	}

	return graph, nil
}

// FindVersionConflicts scans every imported SBOM for package names
// observed with more than one distinct version.
func (e *Engine) FindVersionConflicts(ctx context.Context) ([]model.VersionConflict, error) {
	var conflicts []model.VersionConflict
	conflictQuery := `
		FOR p IN package
			FILTER p.name != null AND p.version != null AND p.version != ""
			COLLECT name = p.name INTO groups = p.version
			LET versions = UNIQUE(groups)
			FILTER LENGTH(versions) > 1
			SORT name
			RETURN { name: name, versions: versions }
	`
	if err := e.graph.ReadAll(ctx, conflictQuery, nil, &conflicts); err != nil {
		return nil, err
	}
	return conflicts, nil
}

// TransitiveClosure returns the purls reachable from purl via one or
// more depends_on hops.
func (e *Engine) TransitiveClosure(ctx context.Context, purl string) ([]string, error) {
	var purls []string
	closureQuery := `
		FOR root IN package
			FILTER root.purl == @purl
			FOR v IN 1..@depth OUTBOUND root depends_on OPTIONS { order: "bfs", uniqueVertices: "global" }
				RETURN DISTINCT v.purl
	`
	bind := map[string]any{"purl": purl, "depth": maxTraversalDepth}
	if err := e.graph.ReadAll(ctx, closureQuery, bind, &purls); err != nil {
		return nil, err
	}
	return purls, nil
}

// DirectDependencies exposes the corrected 1-hop dependency view for
// other services.
func (e *Engine) DirectDependencies(ctx context.Context, purl string) ([]model.PackageNode, error) {
	return e.directDependencies(ctx, purl)
}

// Dependents returns the packages with a direct edge into purl.
func (e *Engine) Dependents(ctx context.Context, purl string) ([]model.PackageNode, error) {
	var dependents []model.PackageNode
	dependentsQuery := `
		FOR target IN package
			FILTER target.purl == @purl
			FOR v IN 1..1 INBOUND target depends_on
				RETURN DISTINCT v
	`
	if err := e.graph.ReadAll(ctx, dependentsQuery, map[string]any{"purl": purl}, &dependents); err != nil {
		return nil, err
	}
	return dependents, nil
}

// FindPurlByNameVersion returns the graph purl for an exact
// name+version match, or "" when absent.
func (e *Engine) FindPurlByNameVersion(ctx context.Context, name, version string) (string, error) {
	var purls []string
	lookup := `
		FOR p IN package
			FILTER p.name == @name AND p.version == @version
			LIMIT 1
			RETURN p.purl
	`
	bind := map[string]any{"name": name, "version": version}
	if err := e.graph.ReadAll(ctx, lookup, bind, &purls); err != nil {
		return "", err
	}
	if len(purls) == 0 {
		return "", nil
	}
	return purls[0], nil
}

// packageToComponent converts a graph node back into CycloneDX
// component shape, round-tripping the license expression.
func packageToComponent(node model.PackageNode) model.Component {
	comp := model.Component{
		BomRef:  node.BomRef,
		Type:    node.Type,
		Name:    node.Name,
		Version: node.Version,
		Purl:    node.Purl,
		Scope:   node.Scope,
		Hashes:  node.Hashes,
	}
	if comp.BomRef == "" {
		comp.BomRef = node.Purl
	}
	comp.Licenses = util.LicenseChoicesFromString(node.License)
	return comp
}
