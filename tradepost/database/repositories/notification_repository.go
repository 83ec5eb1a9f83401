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

type NotificationRepository interface {
	Insert(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit int64) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	// MarkRead is recipient-scoped: a notification can only be marked read
	// by the user it belongs to.
	MarkRead(ctx context.Context, userID string, id primitive.ObjectID) error
}

type notificationRepository struct {
	coll *mongo.Collection
}

func NewNotificationRepository(ds *database.DocumentStore) NotificationRepository {
	return &notificationRepository{coll: ds.Collection(database.NotificationsCollection)}
}

func (r *notificationRepository) Insert(ctx context.Context, notification *models.Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	result, err := r.coll.InsertOne(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		notification.ID = oid
	}
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, limit int64) ([]*models.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []*models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"user_id": userID, "is_read": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID string, id primitive.ObjectID) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("notification %s for user %s: %w", id.Hex(), userID, ErrNotFound)
	}
	return nil
}
