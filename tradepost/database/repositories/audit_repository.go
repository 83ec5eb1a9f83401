package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/mkarlovic/tradepost/tradepost/database"
	"github.com/mkarlovic/tradepost/tradepost/database/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditRepository is append-only. There is deliberately no update or
// delete method; events are the forensic trail.
type AuditRepository interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
	ListByProfile(ctx context.Context, profileID string, limit int64) ([]*models.AuditEvent, error)
	ListByOrder(ctx context.Context, orderID string) ([]*models.AuditEvent, error)
}

type auditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(ds *database.DocumentStore) AuditRepository {
	return &auditRepository{coll: ds.Collection(database.AuditEventsCollection)}
}

func (r *auditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	result, err := r.coll.InsertOne(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		event.ID = oid
	}
	return nil
}

func (r *auditRepository) ListByProfile(ctx context.Context, profileID string, limit int64) ([]*models.AuditEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.coll.Find(ctx, bson.M{"profile_id": profileID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*models.AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}
	return events, nil
}

func (r *auditRepository) ListByOrder(ctx context.Context, orderID string) ([]*models.AuditEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.coll.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list order audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*models.AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}
	return events, nil
}
