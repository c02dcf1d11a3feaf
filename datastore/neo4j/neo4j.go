// Package neo4j implements the datastore interfaces on a Neo4j property
// graph.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/quay/zlog"

	"github.com/resilmesh/casm"
)

// Store holds a connection pool to the graph.
type Store struct {
	driver neo4j.DriverWithContext
}

// New connects to the graph and verifies connectivity.
func New(ctx context.Context, uri, user, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j: creating driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, &casm.Error{Kind: casm.ErrStoreTransient, Op: "neo4j/New", Inner: err}
	}
	return &Store{driver: driver}, nil
}

// NewFromDriver wraps an existing driver. For tests.
func NewFromDriver(driver neo4j.DriverWithContext) *Store {
	return &Store{driver: driver}
}

// Close releases the connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) run(ctx context.Context, query string, params map[string]any) ([]*db.Record, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, storeErr(err)
	}
	queryCounter.WithLabelValues("ok").Inc()
	return res.Records, nil
}

// storeErr maps driver errors onto the error domain: transient failures are
// retryable, constraint violations are not.
func storeErr(err error) error {
	queryCounter.WithLabelValues("error").Inc()
	var ne *neo4j.Neo4jError
	if errors.As(err, &ne) {
		switch {
		case strings.HasPrefix(ne.Code, "Neo.TransientError"):
			return &casm.Error{Kind: casm.ErrStoreTransient, Op: "neo4j", Inner: err}
		case strings.Contains(ne.Code, "ConstraintValidationFailed"):
			return &casm.Error{Kind: casm.ErrStoreConstraint, Op: "neo4j", Inner: err}
		}
	}
	return fmt.Errorf("neo4j: %w", err)
}

var schemaStatements = []string{
	`CREATE CONSTRAINT IF NOT EXISTS FOR (n:Contact) REQUIRE n.name IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (n:DetectionSystem) REQUIRE n.name IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (p:IP) REQUIRE p.address IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (o:OrganizationUnit) REQUIRE o.name IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (n:Subnet) REQUIRE n.range IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (c:CVE) REQUIRE c.cve_id IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (v:Vulnerability) REQUIRE v.description IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (n:Mission) REQUIRE n.name IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (n:Component) REQUIRE n.name IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (n:DomainName) REQUIRE (n.domain_name, n.tag) IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (s:NetworkService) REQUIRE (s.service, s.tag) IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (s:SoftwareVersion) REQUIRE (s.version, s.tag) IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (d:Device) REQUIRE (d.name) IS UNIQUE`,
	`CREATE INDEX IF NOT EXISTS FOR (n:IP) ON (n.version, n.address)`,
	`CREATE INDEX IF NOT EXISTS FOR (n:Subnet) ON (n.version, n.range)`,
	// Root subnets anchor the default-parent constraint.
	`MERGE (s:Subnet {range: "0.0.0.0/0"}) SET s.version = 4`,
	`MERGE (s:Subnet {range: "::/0"}) SET s.version = 6`,
}

// InitSchema creates the uniqueness constraints, indices, and root subnets.
// Safe to run repeatedly.
func (s *Store) InitSchema(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.InitSchema")
	for _, stmt := range schemaStatements {
		if _, err := s.run(ctx, stmt, nil); err != nil {
			return err
		}
	}
	zlog.Info(ctx).Msg("schema initialized")
	return nil
}
