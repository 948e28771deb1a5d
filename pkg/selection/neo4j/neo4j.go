package neo4j

import (
	"context"
	"fmt"

	"github.com/barekit/docscope/pkg/consts"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Neo4jStore implements selection.Store as (:User)-[:SELECTED]->(:Document)
// relationships.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	dbName string
	logger *zap.Logger
}

// Option configures a Neo4jStore.
type Option func(*Neo4jStore)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Neo4jStore) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a new Neo4jStore adapter.
func New(ctx context.Context, uri, username, password, dbName string, opts ...Option) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	m := &Neo4jStore{
		driver: driver,
		dbName: dbName,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Replace drops the user's relationships and creates the new ones in one
// write transaction.
func (m *Neo4jStore) Replace(ctx context.Context, user string, ids []string) error {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: m.dbName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		unlink := fmt.Sprintf(`
		MERGE (u:%s {%s: $user})
		WITH u
		OPTIONAL MATCH (u)-[r:%s]->()
		DELETE r
		`, consts.LabelUser, consts.PropertyID, consts.RelSelected)
		if _, err := tx.Run(ctx, unlink, map[string]any{"user": user}); err != nil {
			return nil, err
		}

		link := fmt.Sprintf(`
		MATCH (u:%s {%s: $user})
		UNWIND $ids AS docID
		MERGE (d:%s {%s: docID})
		CREATE (u)-[:%s {%s: datetime()}]->(d)
		`, consts.LabelUser, consts.PropertyID,
			consts.LabelDoc, consts.PropertyID,
			consts.RelSelected, consts.ColCreatedAt)
		_, err := tx.Run(ctx, link, map[string]any{"user": user, "ids": ids})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to replace selection: %w", err)
	}
	m.logger.Debug("selection stored", zap.String("user", user), zap.Int("documents", len(ids)))
	return nil
}

// Load returns the ids the user has selected.
func (m *Neo4jStore) Load(ctx context.Context, user string) ([]string, error) {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: m.dbName})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (u:%s {%s: $user})-[r:%s]->(d:%s)
		RETURN d.%s AS id
		ORDER BY r.%s ASC
		`, consts.LabelUser, consts.PropertyID, consts.RelSelected, consts.LabelDoc,
			consts.PropertyID, consts.ColCreatedAt)

		result, err := tx.Run(ctx, query, map[string]any{"user": user})
		if err != nil {
			return nil, err
		}

		ids := []string{}
		for result.Next(ctx) {
			id, _ := result.Record().Get("id")
			if s, ok := id.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids, result.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// Clear deletes the user's relationships.
func (m *Neo4jStore) Clear(ctx context.Context, user string) error {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: m.dbName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (u:%s {%s: $user})-[r:%s]->()
		DELETE r
		`, consts.LabelUser, consts.PropertyID, consts.RelSelected)
		_, err := tx.Run(ctx, query, map[string]any{"user": user})
		return nil, err
	})
	if err != nil {
		return err
	}
	m.logger.Debug("selection cleared", zap.String("user", user))
	return nil
}

// Forget deletes the document node and with it every relationship to it.
func (m *Neo4jStore) Forget(ctx context.Context, documentID string) error {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: m.dbName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (d:%s {%s: $id})
		DETACH DELETE d
		`, consts.LabelDoc, consts.PropertyID)
		_, err := tx.Run(ctx, query, map[string]any{"id": documentID})
		return nil, err
	})
	if err != nil {
		return err
	}
	m.logger.Debug("document forgotten", zap.String("document_id", documentID))
	return nil
}

// Close closes the driver.
func (m *Neo4jStore) Close(ctx context.Context) error {
	return m.driver.Close(ctx)
}
