// package main provides the entry point and API handlers for the
// depscope microservice: SBOM import into the dependency graph, graph
// queries, upgrade recommendations, and custom SBOM generation.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/graphql-go/graphql"

	"github.com/depscope/depscope/analyzer"
	"github.com/depscope/depscope/cmd"
	"github.com/depscope/depscope/config"
	"github.com/depscope/depscope/database"
	gqlschema "github.com/depscope/depscope/graphql"
	"github.com/depscope/depscope/health"
	"github.com/depscope/depscope/importer"
	"github.com/depscope/depscope/model"
	"github.com/depscope/depscope/query"
	"github.com/depscope/depscope/registry"
	"github.com/depscope/depscope/resolver"
	"github.com/depscope/depscope/sbom"
	"github.com/depscope/depscope/taskqueue"
)

// services bundles the core service handles used by the HTTP layer.
type services struct {
	importer *importer.Importer
	engine   *query.Engine
	analyzer *analyzer.Analyzer
	resolver *resolver.Resolver
	builder  *sbom.Builder
}

var svc services

// ErrorResponse is the uniform error payload for REST endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// statusForError maps the core error taxonomy to HTTP status codes.
func statusForError(err error) int {
	var validation *model.ValidationError
	switch {
	case errors.As(err, &validation):
		return fiber.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, model.ErrUpstreamUnavailable):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(ErrorResponse{Success: false, Message: err.Error()})
}

// ============================================================================
// REST Handlers
// ============================================================================

// PostImportSBOM handles POST requests importing a CycloneDX document
// under the given SBOM id.
func PostImportSBOM(c *fiber.Ctx) error {
	var doc model.CycloneDX
	if err := c.BodyParser(&doc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Message: "Invalid request body: " + err.Error(),
		})
	}

	if doc.BomFormat != "" && doc.BomFormat != "CycloneDX" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Message: "SBOM must be in CycloneDX format",
		})
	}

	if err := svc.importer.ImportSBOM(context.Background(), c.Params("id"), &doc); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "SBOM imported",
	})
}

// GetDependencyTree handles GET requests for a full dependency tree.
func GetDependencyTree(c *fiber.Ctx) error {
	tree, err := svc.engine.FullDependencyTree(context.Background(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tree)
}

// GetFilteredGraph handles GET requests for the filtered direct
// dependency view of a package.
func GetFilteredGraph(c *fiber.Ctx) error {
	opts := query.FilterOptions{
		Query: c.Query("query"),
		Scope: c.Query("scope", "direct"),
		Risk:  c.Query("risk", "all"),
	}
	graph, err := svc.engine.FilteredDependencyGraph(context.Background(),
		c.Params("id"), c.Query("version"), opts)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(graph)
}

// GetPackageGraph handles GET requests for a package's full reachable
// subgraph.
func GetPackageGraph(c *fiber.Ctx) error {
	graph, err := svc.engine.PackageDependencyGraph(context.Background(),
		c.Params("id"), c.Query("version"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(graph)
}

// GetVersionConflicts handles GET requests scanning all SBOMs for
// version conflicts.
func GetVersionConflicts(c *fiber.Ctx) error {
	conflicts, err := svc.engine.FindVersionConflicts(context.Background())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(conflicts)
}

// GetUpgradeRecommendations handles GET requests running the upgrade
// optimizer for a project.
func GetUpgradeRecommendations(c *fiber.Ctx) error {
	report, err := svc.resolver.UpgradeRecommendations(context.Background(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(report)
}

// GetFlatteningAnalysis handles GET requests summarizing a project's
// consolidation potential.
func GetFlatteningAnalysis(c *fiber.Ctx) error {
	analysis, err := svc.resolver.FlatteningAnalysis(context.Background(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(analysis)
}

// GetLowSimilarityPackages handles GET requests for anchor packages.
func GetLowSimilarityPackages(c *fiber.Ctx) error {
	opts := analyzer.Options{
		Limit: c.QueryInt("limit"),
	}
	packages, err := svc.analyzer.LowSimilarityPackages(context.Background(), c.Params("id"), opts)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(packages)
}

// PostCustomSbom handles POST requests building a merged project SBOM
// in CycloneDX or SPDX format.
func PostCustomSbom(c *fiber.Ctx) error {
	var req sbom.CustomSbomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Message: "Invalid request body: " + err.Error(),
		})
	}
	req.ProjectID = c.Params("id")

	doc, err := svc.builder.CreateCustomSbom(context.Background(), req)
	if err != nil {
		return fail(c, err)
	}

	c.Set(fiber.HeaderContentType, sbom.GetMediaType(doc.Format))
	if doc.Format == sbom.FormatSPDX {
		return c.JSON(doc.SPDX)
	}
	return c.JSON(doc.CycloneDX)
}

// ============================================================================
// GraphQL Handler
// ============================================================================

// GraphQLHandler handles GraphQL requests
func GraphQLHandler(schema graphql.Schema) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var params struct {
			Query         string                 `json:"query"`
			OperationName string                 `json:"operationName"`
			Variables     map[string]interface{} `json:"variables"`
		}

		if err := c.BodyParser(&params); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"errors": []map[string]interface{}{
					{
						"message": "Invalid request body",
					},
				},
			})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  params.Query,
			VariableValues: params.Variables,
			OperationName:  params.OperationName,
		})

		if len(result.Errors) > 0 {
			log.Printf("GraphQL errors: %v", result.Errors)
		}

		return c.JSON(result)
	}
}

// ============================================================================
// Main
// ============================================================================

func main() {
	// CLI subcommands (upload etc.) run through cobra; bare invocation
	// starts the server.
	if len(os.Args) > 1 && os.Args[1] != "serve" {
		cmd.Execute()
		return
	}

	cfg := config.Load("depscope.yaml")

	conn := database.InitializeDatabase(cfg.Arango)
	logger := database.InitLogger()

	reg := registry.NewClient(cfg.RegistryURL)
	store := health.NewClient(cfg.HealthStoreURL)
	queue := taskqueue.NewHTTPQueue(cfg.TaskQueueURL)

	engine := query.NewEngine(conn, store, logger)
	anchors := analyzer.New(engine, store, logger)

	svc = services{
		importer: importer.New(conn, reg, store, queue, logger),
		engine:   engine,
		analyzer: anchors,
		resolver: resolver.New(reg, store, engine, anchors, logger),
		builder:  sbom.NewBuilder(engine, store, reg, logger),
	}

	gqlschema.InitServices(gqlschema.Services{
		Engine:   svc.engine,
		Resolver: svc.resolver,
		Analyzer: svc.analyzer,
	})
	schema, err := gqlschema.CreateSchema()
	if err != nil {
		log.Fatalf("Failed to create GraphQL schema: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:     "depscope API v1.0",
		BodyLimit:   50 * 1024 * 1024, // 50MB limit for SBOM uploads
		ReadTimeout: time.Second * 60, // 60 second read timeout for large uploads
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
		})
	})

	// API routes
	api := app.Group("/api/v1")

	api.Post("/sboms/:id", PostImportSBOM)
	api.Get("/sboms/:id/tree", GetDependencyTree)
	api.Get("/packages/:id/graph", GetPackageGraph)
	api.Get("/packages/:id/graph/filtered", GetFilteredGraph)
	api.Get("/conflicts", GetVersionConflicts)
	api.Get("/projects/:id/recommendations", GetUpgradeRecommendations)
	api.Get("/projects/:id/flattening", GetFlatteningAnalysis)
	api.Get("/projects/:id/anchors", GetLowSimilarityPackages)
	api.Post("/projects/:id/sbom", PostCustomSbom)

	// GraphQL endpoint for all other read queries
	api.Post("/graphql", GraphQLHandler(schema))

	log.Printf("Starting server on port %s", cfg.Port)
	log.Printf("GraphQL endpoint available at /api/v1/graphql")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
