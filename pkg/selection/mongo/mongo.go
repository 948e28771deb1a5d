package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/barekit/docscope/pkg/consts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore implements selection.Store with one document per user. A
// single-document write is atomic, so Replace needs no transaction.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// SelectionDoc is the stored shape of a user's scope.
type SelectionDoc struct {
	UserID      string    `bson:"_id"`
	DocumentIDs []string  `bson:"document_ids"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// Option configures a MongoStore.
type Option func(*MongoStore)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *MongoStore) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a new MongoStore adapter.
func New(client *mongo.Client, dbName, collectionName string, opts ...Option) *MongoStore {
	m := &MongoStore{
		client:     client,
		collection: client.Database(dbName).Collection(collectionName),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Replace upserts the user's document.
func (m *MongoStore) Replace(ctx context.Context, user string, ids []string) error {
	doc := SelectionDoc{
		UserID:      user,
		DocumentIDs: append([]string{}, ids...),
		UpdatedAt:   time.Now().UTC(),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, bson.M{"_id": user}, doc, opts); err != nil {
		return fmt.Errorf("failed to replace selection: %w", err)
	}
	m.logger.Debug("selection stored", zap.String("user", user), zap.Int("documents", len(ids)))
	return nil
}

// Load returns the ids stored for the user.
func (m *MongoStore) Load(ctx context.Context, user string) ([]string, error) {
	var doc SelectionDoc
	err := m.collection.FindOne(ctx, bson.M{"_id": user}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.DocumentIDs, nil
}

// Clear deletes the user's document.
func (m *MongoStore) Clear(ctx context.Context, user string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": user})
	if err != nil {
		return err
	}
	m.logger.Debug("selection cleared", zap.String("user", user), zap.Int64("deleted", res.DeletedCount))
	return nil
}

// Forget pulls documentID out of every user's list.
func (m *MongoStore) Forget(ctx context.Context, documentID string) error {
	res, err := m.collection.UpdateMany(ctx,
		bson.M{consts.ColDocuments: documentID},
		bson.M{
			"$pull": bson.M{consts.ColDocuments: documentID},
			"$set":  bson.M{consts.ColUpdatedAt: time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	m.logger.Debug("document forgotten", zap.String("document_id", documentID), zap.Int64("selections", res.ModifiedCount))
	return nil
}

// Close disconnects the client.
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
