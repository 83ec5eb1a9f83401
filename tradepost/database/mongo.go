package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkarlovic/tradepost/tradepost/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names in the document store
const (
	NotificationsCollection = "notifications"
	AuditEventsCollection   = "audit_events"
)

type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// DocumentStore wraps the Mongo client holding notification and audit
// collections. Constructed once at startup and passed by reference.
type DocumentStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewDocumentStore(ctx context.Context, cfg MongoConfig) (*DocumentStore, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(config.MongoSelectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}

	ds := &DocumentStore{
		client: client,
		db:     client.Database(cfg.Database),
	}

	if err := ds.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	slog.Info("Document store connected",
		slog.String("type", "db"),
		slog.String("database", cfg.Database))
	return ds, nil
}

func (ds *DocumentStore) Collection(name string) *mongo.Collection {
	return ds.db.Collection(name)
}

func (ds *DocumentStore) ensureIndexes(ctx context.Context) error {
	notifIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_read", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := ds.Collection(NotificationsCollection).Indexes().CreateMany(ctx, notifIndexes); err != nil {
		return fmt.Errorf("failed to create notification indexes: %w", err)
	}

	auditIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "profile_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
	}
	if _, err := ds.Collection(AuditEventsCollection).Indexes().CreateMany(ctx, auditIndexes); err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}

	return nil
}

func (ds *DocumentStore) Close(ctx context.Context) error {
	if ds.client == nil {
		return nil
	}
	return ds.client.Disconnect(ctx)
}
