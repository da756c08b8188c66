// Package graphql provides the GraphQL schema definition and resolvers
package graphql

import (
	"context"

	"github.com/graphql-go/graphql"

	"github.com/depscope/depscope/analyzer"
	"github.com/depscope/depscope/model"
	"github.com/depscope/depscope/query"
	"github.com/depscope/depscope/resolver"
)

// Services holds the core services every resolver reads from.
type Services struct {
	Engine   *query.Engine
	Resolver *resolver.Resolver
	Analyzer *analyzer.Analyzer
}

var services Services

// InitServices initializes the service handles used by all resolvers.
func InitServices(s Services) {
	services = s
}

// RiskType defines the GraphQL enum for risk buckets
var RiskType = graphql.NewEnum(graphql.EnumConfig{
	Name: "Risk",
	Values: graphql.EnumValueConfigMap{
		"LOW":    &graphql.EnumValueConfig{Value: "low"},
		"MEDIUM": &graphql.EnumValueConfig{Value: "medium"},
		"HIGH":   &graphql.EnumValueConfig{Value: "high"},
		"ALL":    &graphql.EnumValueConfig{Value: "all"},
	},
})

// LicenseType defines the GraphQL object for a single license entry
var LicenseType = graphql.NewObject(graphql.ObjectConfig{
	Name: "License",
	Fields: graphql.Fields{
		"id": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			lc, _ := p.Source.(model.LicenseChoice)
			if lc.License != nil {
				return lc.License.ID, nil
			}
			return nil, nil
		}},
		"name": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			lc, _ := p.Source.(model.LicenseChoice)
			if lc.License != nil {
				return lc.License.Name, nil
			}
			return nil, nil
		}},
		"expression": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			lc, _ := p.Source.(model.LicenseChoice)
			return lc.Expression, nil
		}},
	},
})

// ComponentType defines the GraphQL object for a CycloneDX component
var ComponentType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Component",
	Fields: graphql.Fields{
		"bom_ref": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			comp, _ := p.Source.(model.Component)
			return comp.BomRef, nil
		}},
		"type": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			comp, _ := p.Source.(model.Component)
			return comp.Type, nil
		}},
		"name": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			comp, _ := p.Source.(model.Component)
			return comp.Name, nil
		}},
		"version": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			comp, _ := p.Source.(model.Component)
			return comp.Version, nil
		}},
		"purl": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			comp, _ := p.Source.(model.Component)
			return comp.Purl, nil
		}},
		"scope": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			comp, _ := p.Source.(model.Component)
			return comp.Scope, nil
		}},
		"licenses": &graphql.Field{Type: graphql.NewList(LicenseType), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			comp, _ := p.Source.(model.Component)
			return comp.Licenses, nil
		}},
	},
})

// DependencyType defines the GraphQL object for one dependency entry
var DependencyType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Dependency",
	Fields: graphql.Fields{
		"ref": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			dep, _ := p.Source.(model.Dependency)
			return dep.Ref, nil
		}},
		"depends_on": &graphql.Field{Type: graphql.NewList(graphql.String), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			dep, _ := p.Source.(model.Dependency)
			return dep.DependsOn, nil
		}},
	},
})

// DependencyTreeType defines the GraphQL object for a reconstructed tree
var DependencyTreeType = graphql.NewObject(graphql.ObjectConfig{
	Name: "DependencyTree",
	Fields: graphql.Fields{
		"components": &graphql.Field{Type: graphql.NewList(ComponentType), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			tree, _ := p.Source.(*model.DependencyTree)
			return tree.Components, nil
		}},
		"dependencies": &graphql.Field{Type: graphql.NewList(DependencyType), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			tree, _ := p.Source.(*model.DependencyTree)
			return tree.Dependencies, nil
		}},
	},
})

// GraphNodeType defines the GraphQL object for visualization nodes
var GraphNodeType = graphql.NewObject(graphql.ObjectConfig{
	Name: "GraphNode",
	Fields: graphql.Fields{
		"id":         &graphql.Field{Type: graphql.String},
		"name":       &graphql.Field{Type: graphql.String},
		"version":    &graphql.Field{Type: graphql.String},
		"license":    &graphql.Field{Type: graphql.String},
		"risk_score": &graphql.Field{Type: graphql.Float},
		"direct":     &graphql.Field{Type: graphql.Boolean},
	},
})

// GraphEdgeType defines the GraphQL object for visualization edges
var GraphEdgeType = graphql.NewObject(graphql.ObjectConfig{
	Name: "GraphEdge",
	Fields: graphql.Fields{
		"from": &graphql.Field{Type: graphql.String},
		"to":   &graphql.Field{Type: graphql.String},
	},
})

// DependencyGraphType defines the GraphQL object for node/edge payloads
var DependencyGraphType = graphql.NewObject(graphql.ObjectConfig{
	Name: "DependencyGraph",
	Fields: graphql.Fields{
		"nodes": &graphql.Field{Type: graphql.NewList(GraphNodeType), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			graph, _ := p.Source.(*model.DependencyGraph)
			return graph.Nodes, nil
		}},
		"edges": &graphql.Field{Type: graphql.NewList(GraphEdgeType), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			graph, _ := p.Source.(*model.DependencyGraph)
			return graph.Edges, nil
		}},
	},
})

// VersionConflictType defines the GraphQL object for conflicting package names
var VersionConflictType = graphql.NewObject(graphql.ObjectConfig{
	Name: "VersionConflict",
	Fields: graphql.Fields{
		"name":     &graphql.Field{Type: graphql.String},
		"versions": &graphql.Field{Type: graphql.NewList(graphql.String)},
	},
})

// FootprintStatsType defines the GraphQL object for footprint counts
var FootprintStatsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "FootprintStats",
	Fields: graphql.Fields{
		"separate_count": &graphql.Field{Type: graphql.Int},
		"shared_count":   &graphql.Field{Type: graphql.Int},
	},
})

// RecommendationType defines the GraphQL object for upgrade recommendations
var RecommendationType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Recommendation",
	Fields: graphql.Fields{
		"name":         &graphql.Field{Type: graphql.String},
		"old_version":  &graphql.Field{Type: graphql.String},
		"new_version":  &graphql.Field{Type: graphql.String},
		"is_downgrade": &graphql.Field{Type: graphql.Boolean},
		"resolved":     &graphql.Field{Type: graphql.Boolean},
		"impact":       &graphql.Field{Type: graphql.String},
		"before_stats": &graphql.Field{Type: FootprintStatsType},
		"after_stats":  &graphql.Field{Type: FootprintStatsType},
	},
})

// RequirementType defines the GraphQL object for one collected semver range
var RequirementType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Requirement",
	Fields: graphql.Fields{
		"required_by":         &graphql.Field{Type: graphql.String},
		"required_by_version": &graphql.Field{Type: graphql.String},
		"range":               &graphql.Field{Type: graphql.String},
	},
})

// ConflictDetailType defines the GraphQL object for one conflict
var ConflictDetailType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ConflictDetail",
	Fields: graphql.Fields{
		"name":         &graphql.Field{Type: graphql.String},
		"versions":     &graphql.Field{Type: graphql.NewList(graphql.String)},
		"requirements": &graphql.Field{Type: graphql.NewList(RequirementType)},
		"resolved":     &graphql.Field{Type: graphql.Boolean},
		"recommended":  &graphql.Field{Type: graphql.String},
	},
})

// LowSimilarityType defines the GraphQL object for anchor packages
var LowSimilarityType = graphql.NewObject(graphql.ObjectConfig{
	Name: "LowSimilarityPackage",
	Fields: graphql.Fields{
		"name":             &graphql.Field{Type: graphql.String},
		"purl":             &graphql.Field{Type: graphql.String},
		"version":          &graphql.Field{Type: graphql.String},
		"dependency_count": &graphql.Field{Type: graphql.Int},
		"shared":           &graphql.Field{Type: graphql.Int},
		"ratio":            &graphql.Field{Type: graphql.Float},
		"dependents":       &graphql.Field{Type: graphql.NewList(graphql.String)},
	},
})

// UpgradeReportType defines the GraphQL object for the optimizer output
var UpgradeReportType = graphql.NewObject(graphql.ObjectConfig{
	Name: "UpgradeReport",
	Fields: graphql.Fields{
		"score":                   &graphql.Field{Type: graphql.Int},
		"recommendations":         &graphql.Field{Type: graphql.NewList(RecommendationType)},
		"conflicts":               &graphql.Field{Type: graphql.NewList(ConflictDetailType)},
		"low_similarity_packages": &graphql.Field{Type: graphql.NewList(LowSimilarityType)},
		"project_before":          &graphql.Field{Type: FootprintStatsType},
		"project_after":           &graphql.Field{Type: FootprintStatsType},
	},
})

// CreateSchema builds the depscope query schema.
func CreateSchema() (graphql.Schema, error) {
	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"dependency_tree": &graphql.Field{
				Type: DependencyTreeType,
				Args: graphql.FieldConfigArgument{
					"sbom_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sbomID, _ := p.Args["sbom_id"].(string)
					return services.Engine.FullDependencyTree(context.Background(), sbomID)
				},
			},
			"filtered_dependency_graph": &graphql.Field{
				Type: DependencyGraphType,
				Args: graphql.FieldConfigArgument{
					"package": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"version": &graphql.ArgumentConfig{Type: graphql.String},
					"query":   &graphql.ArgumentConfig{Type: graphql.String},
					"scope":   &graphql.ArgumentConfig{Type: graphql.String},
					"risk":    &graphql.ArgumentConfig{Type: RiskType},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pkg, _ := p.Args["package"].(string)
					version, _ := p.Args["version"].(string)
					queryArg, _ := p.Args["query"].(string)
					scope, _ := p.Args["scope"].(string)
					risk, _ := p.Args["risk"].(string)
					opts := query.FilterOptions{Query: queryArg, Scope: scope, Risk: risk}
					return services.Engine.FilteredDependencyGraph(context.Background(), pkg, version, opts)
				},
			},
			"package_dependency_graph": &graphql.Field{
				Type: DependencyGraphType,
				Args: graphql.FieldConfigArgument{
					"package": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"version": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pkg, _ := p.Args["package"].(string)
					version, _ := p.Args["version"].(string)
					return services.Engine.PackageDependencyGraph(context.Background(), pkg, version)
				},
			},
			"version_conflicts": &graphql.Field{
				Type: graphql.NewList(VersionConflictType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return services.Engine.FindVersionConflicts(context.Background())
				},
			},
			"upgrade_recommendations": &graphql.Field{
				Type: UpgradeReportType,
				Args: graphql.FieldConfigArgument{
					"project_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					projectID, _ := p.Args["project_id"].(string)
					return services.Resolver.UpgradeRecommendations(context.Background(), projectID)
				},
			},
			"low_similarity_packages": &graphql.Field{
				Type: graphql.NewList(LowSimilarityType),
				Args: graphql.FieldConfigArgument{
					"project_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit":      &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					projectID, _ := p.Args["project_id"].(string)
					limit, _ := p.Args["limit"].(int)
					opts := analyzer.Options{Limit: limit}
					return services.Analyzer.LowSimilarityPackages(context.Background(), projectID, opts)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}
