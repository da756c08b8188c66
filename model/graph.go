package model

// PackageNode is a package vertex in the dependency graph.
// The purl is the unique identity; re-import updates in place.
type PackageNode struct {
	Key        string `json:"_key,omitempty"`
	Purl       string `json:"purl"`
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	License    string `json:"license,omitempty"`
	Type       string `json:"type,omitempty"`
	Scope      string `json:"scope,omitempty"`
	BomRef     string `json:"bomref,omitempty"`
	Hashes     []Hash `json:"hashes,omitempty"`
	ExternalID string `json:"externalid,omitempty"`
	ObjType    string `json:"objtype,omitempty"`
}

// SbomNode is an SBOM vertex in the graph; one per imported document.
type SbomNode struct {
	Key         string `json:"_key,omitempty"`
	ID          string `json:"id"`
	Source      string `json:"source,omitempty"`
	Tool        string `json:"tool,omitempty"`
	CreatedAt   string `json:"createdat,omitempty"`
	PackageName string `json:"packagename,omitempty"`
	Version     string `json:"version,omitempty"`
	Purl        string `json:"purl,omitempty"`
	ObjType     string `json:"objtype,omitempty"`
}

// GraphNode is a flat node for graph visualization payloads.
type GraphNode struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Version   string  `json:"version,omitempty"`
	License   string  `json:"license,omitempty"`
	RiskScore float64 `json:"risk_score"`
	Direct    bool    `json:"direct"`
}

// GraphEdge is a directed edge for graph visualization payloads.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DependencyGraph is the flat node/edge visualization shape.
type DependencyGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// VersionConflict reports a package name observed with more than one
// version across the imported SBOMs.
type VersionConflict struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions"`
}

// DependencyTree is a reconstructed CycloneDX-shaped subgraph.
type DependencyTree struct {
	Components   []Component  `json:"components"`
	Dependencies []Dependency `json:"dependencies"`
}
