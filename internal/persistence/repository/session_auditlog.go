package repository

import (
	"context"
	"time"

	"github.com/hearthside/gametable/internal/domain"
	"github.com/hearthside/gametable/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type sessionAuditLogRepository struct {
	db *mongo.Database
}

func NewSessionAuditLogRepository(db *mongo.Database) domain.SessionAuditRepository {
	return &sessionAuditLogRepository{
		db: db,
	}
}

func (r *sessionAuditLogRepository) Log(ctx context.Context, log *domain.SessionAuditLog) error {
	collection := r.db.Collection(db.SessionAuditLogsCollection)

	_, err := collection.InsertOne(ctx, log)
	return err
}

func (r *sessionAuditLogRepository) GetByCampaignID(ctx context.Context, campaignID string, limit int) ([]domain.SessionAuditLog, error) {
	collection := r.db.Collection(db.SessionAuditLogsCollection)

	filter := bson.M{"campaign_id": campaignID}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []domain.SessionAuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *sessionAuditLogRepository) GetByEventType(ctx context.Context, eventType domain.SessionEventType, from time.Time, to time.Time) ([]domain.SessionAuditLog, error) {
	collection := r.db.Collection(db.SessionAuditLogsCollection)

	filter := bson.M{
		"event_type": eventType,
		"timestamp": bson.M{
			"$gte": from,
			"$lte": to,
		},
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []domain.SessionAuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *sessionAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) error {
	collection := r.db.Collection(db.SessionAuditLogsCollection)

	filter := bson.M{
		"timestamp": bson.M{
			"$lt": before,
		},
	}

	_, err := collection.DeleteMany(ctx, filter)
	return err
}

func (r *sessionAuditLogRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(db.SessionAuditLogsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "campaign_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(7776000), // 90 days TTL
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
