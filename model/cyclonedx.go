// Package model defines the data structures used by depscope:
// CycloneDX/SPDX documents, graph records, and optimizer results.
package model

// LicenseEntry is a single license inside a CycloneDX license choice.
type LicenseEntry struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// LicenseChoice wraps either a structured license or a raw SPDX expression.
type LicenseChoice struct {
	License    *LicenseEntry `json:"license,omitempty"`
	Expression string        `json:"expression,omitempty"`
}

// Hash represents a component content hash.
type Hash struct {
	Alg     string `json:"alg"`
	Content string `json:"content"`
}

// ExternalReference points at a resource related to a component (vcs, website, distribution).
type ExternalReference struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Evidence carries supporting license evidence for a component.
type Evidence struct {
	Licenses []LicenseChoice `json:"licenses,omitempty"`
}

// Component represents a single CycloneDX component.
type Component struct {
	BomRef             string              `json:"bom-ref,omitempty"`
	Type               string              `json:"type,omitempty"`
	Name               string              `json:"name"`
	Version            string              `json:"version,omitempty"`
	Purl               string              `json:"purl,omitempty"`
	Scope              string              `json:"scope,omitempty"`
	Licenses           []LicenseChoice     `json:"licenses,omitempty"`
	Hashes             []Hash              `json:"hashes,omitempty"`
	ExternalReferences []ExternalReference `json:"externalReferences,omitempty"`
	Evidence           *Evidence           `json:"evidence,omitempty"`
}

// Dependency is one CycloneDX dependency entry: a component ref and
// the refs it depends on.
type Dependency struct {
	Ref       string   `json:"ref"`
	DependsOn []string `json:"dependsOn,omitempty"`
}

// Tool identifies the tool that produced an SBOM.
type Tool struct {
	Vendor  string `json:"vendor,omitempty"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Metadata is the CycloneDX metadata block.
type Metadata struct {
	Timestamp string     `json:"timestamp,omitempty"`
	Tools     []Tool     `json:"tools,omitempty"`
	Component *Component `json:"component,omitempty"`
}

// CycloneDX represents a CycloneDX SBOM document.
type CycloneDX struct {
	BomFormat    string       `json:"bomFormat"`
	SpecVersion  string       `json:"specVersion"`
	SerialNumber string       `json:"serialNumber,omitempty"`
	Version      int          `json:"version,omitempty"`
	Metadata     *Metadata    `json:"metadata,omitempty"`
	Components   []Component  `json:"components,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// NewCycloneDX creates an empty CycloneDX 1.5 document shell.
func NewCycloneDX() *CycloneDX {
	return &CycloneDX{
		BomFormat:   "CycloneDX",
		SpecVersion: "1.5",
		Version:     1,
	}
}
