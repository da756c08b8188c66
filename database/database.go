// Package database - Handles all interaction with ArangoDB
package database

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/depscope/depscope/config"
	"github.com/depscope/depscope/model"
)

var logger = InitLogger() // setup the logger

// Graph is the query surface every service consumes. Sessions are
// scoped inside each call: the cursor is always closed before return,
// on success and on error alike.
type Graph interface {
	// ReadAll runs an AQL read statement and decodes every result row
	// into out, which must be a pointer to a slice.
	ReadAll(ctx context.Context, aql string, bindVars map[string]any, out any) error
	// Exec runs an AQL write statement and discards any results.
	Exec(ctx context.Context, aql string, bindVars map[string]any) error
}

// Conn is the ArangoDB-backed Graph implementation plus the raw
// collection handles used during bootstrap.
type Conn struct {
	Collections map[string]arangodb.Collection
	Database    arangodb.Database
}

// Define a struct to hold the index definition
type indexConfig struct {
	Collection string
	IdxName    string
	IdxField   string
	Unique     bool
}

// InitLogger sets up the Zap Logger to log to the console in a human readable format
func InitLogger() *zap.Logger {
	prodConfig := zap.NewProductionConfig()
	prodConfig.Encoding = "console"
	prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	prodConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	logger, _ := prodConfig.Build()
	return logger
}

func dbConnectionConfig(endpoint connection.Endpoint, dbuser string, dbpass string) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(dbuser, dbpass),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 90 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// InitializeDatabase connects to the db engine and creates the
// depscope database, collections, and indexes.
func InitializeDatabase(cfg config.ArangoConfig) *Conn {
	const initialInterval = 10 * time.Second
	const maxInterval = 2 * time.Minute
	const databaseName = "depscope"

	var db arangodb.Database
	var collections map[string]arangodb.Collection

	ctx := context.Background()

	var client arangodb.Client

	//
	// Database connection with backoff retry
	//

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = 0 // Set to 0 for indefinite retries

	err := backoff.RetryNotify(func() error {
		fmt.Println("Attempting to connect to ArangoDB")
		endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
		conn := connection.NewHttpConnection(dbConnectionConfig(endpoint, cfg.User, cfg.Pass))

		client = arangodb.NewClient(conn)

		versionInfo, err := client.Version(context.Background())
		if err != nil {
			return err
		}

		logger.Sugar().Infof("Database has version '%s' and license '%s'\n", versionInfo.Version, versionInfo.License)
		return nil

	}, bo, func(err error, _ time.Duration) {
		fmt.Printf("Retrying connection to ArangoDB: %v\n", err)
	})

	if err != nil {
		logger.Sugar().Fatalf("Backoff Error %v\n", err)
	}

	//
	// Database creation
	//

	exists := false
	dblist, _ := client.Databases(ctx)

	for _, dbinfo := range dblist {
		if dbinfo.Name() == databaseName {
			exists = true
			break
		}
	}

	if exists {
		var options arangodb.GetDatabaseOptions
		if db, err = client.GetDatabase(ctx, databaseName, &options); err != nil {
			logger.Sugar().Fatalf("Failed to get Database: %v", err)
		}
	} else {
		if db, err = client.CreateDatabase(ctx, databaseName, nil); err != nil {
			logger.Sugar().Fatalf("Failed to create Database: %v", err)
		}
	}

	//
	// Collection creation for document storage
	//

	collections = make(map[string]arangodb.Collection)
	collectionNames := []string{"package", "sbom"}

	for _, collectionName := range collectionNames {
		var col arangodb.Collection

		exists, _ = db.CollectionExists(ctx, collectionName)
		if exists {
			var options arangodb.GetCollectionOptions
			if col, err = db.GetCollection(ctx, collectionName, &options); err != nil {
				logger.Sugar().Fatalf("Failed to use collection: %v", err)
			}
		} else {
			if col, err = db.CreateCollectionV2(ctx, collectionName, nil); err != nil {
				logger.Sugar().Fatalf("Failed to create collection: %v", err)
			}
		}

		collections[collectionName] = col
	}

	//
	// Edge collection creation
	//

	edgeCollectionNames := []string{"depends_on", "belongs_to"}

	for _, edgeCollectionName := range edgeCollectionNames {
		var col arangodb.Collection

		exists, _ = db.CollectionExists(ctx, edgeCollectionName)
		if exists {
			var options arangodb.GetCollectionOptions
			if col, err = db.GetCollection(ctx, edgeCollectionName, &options); err != nil {
				logger.Sugar().Fatalf("Failed to use edge collection: %v", err)
			}
		} else {
			edgeType := arangodb.CollectionTypeEdge
			if col, err = db.CreateCollectionV2(ctx, edgeCollectionName, &arangodb.CreateCollectionPropertiesV2{
				Type: &edgeType,
			}); err != nil {
				logger.Sugar().Fatalf("Failed to create edge collection: %v", err)
			}
		}

		collections[edgeCollectionName] = col
	}

	//
	// Index creation
	//

	idxList := []indexConfig{
		{Collection: "package", IdxName: "package_purl", IdxField: "purl", Unique: true},
		{Collection: "package", IdxName: "package_name", IdxField: "name"},
		{Collection: "package", IdxName: "package_externalid", IdxField: "externalid"},
		{Collection: "sbom", IdxName: "sbom_id", IdxField: "id", Unique: true},
		// Edge collection indexes for optimized traversals
		{Collection: "depends_on", IdxName: "depends_on_from", IdxField: "_from"},
		{Collection: "depends_on", IdxName: "depends_on_to", IdxField: "_to"},
		{Collection: "belongs_to", IdxName: "belongs_to_from", IdxField: "_from"},
		{Collection: "belongs_to", IdxName: "belongs_to_to", IdxField: "_to"},
	}

	for _, idx := range idxList {
		found := false

		if indexes, err := collections[idx.Collection].Indexes(ctx); err == nil {
			for _, index := range indexes {
				if idx.IdxName == index.Name {
					found = true
					break
				}
			}
		}

		if !found {
			False := false
			unique := idx.Unique
			indexOptions := arangodb.CreatePersistentIndexOptions{
				Unique: &unique,
				Sparse: &False,
				Name:   idx.IdxName,
			}

			_, _, err = collections[idx.Collection].EnsurePersistentIndex(ctx, []string{idx.IdxField}, &indexOptions)
			if err != nil {
				logger.Sugar().Fatalln("Error creating index:", err)
			}
		}
	}

	return &Conn{
		Database:    db,
		Collections: collections,
	}
}

// ReadAll implements Graph over an ArangoDB cursor. The cursor is a
// per-call session and is released on every exit path.
func (c *Conn) ReadAll(ctx context.Context, aql string, bindVars map[string]any, out any) error {
	cursor, err := c.Database.Query(ctx, aql, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return model.Upstream("graph query", err)
	}
	defer cursor.Close()

	var rows []json.RawMessage
	for cursor.HasMore() {
		var row json.RawMessage
		if _, err := cursor.ReadDocument(ctx, &row); err != nil {
			return model.Upstream("graph read", err)
		}
		rows = append(rows, row)
	}

	buf, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}

// Exec implements Graph for write statements.
func (c *Conn) Exec(ctx context.Context, aql string, bindVars map[string]any) error {
	cursor, err := c.Database.Query(ctx, aql, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return model.Upstream("graph write", err)
	}
	cursor.Close()

	return nil
}
