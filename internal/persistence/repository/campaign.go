package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hearthside/gametable/internal/domain"
	"github.com/hearthside/gametable/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// campaignDocument mirrors the record the campaign CRUD service writes; the
// engine only ever reads it.
type campaignDocument struct {
	ID                string           `bson:"_id"`
	Name              string           `bson:"name"`
	ActiveSessionID   string           `bson:"active_session_id,omitempty"`
	SessionInProgress bool             `bson:"session_in_progress"`
	Entities          []entityDocument `bson:"entities,omitempty"`
}

type entityDocument struct {
	Ref      string `bson:"ref"`
	Name     string `bson:"name"`
	Portrait string `bson:"portrait,omitempty"`
}

type campaignRepository struct {
	db *mongo.Database
}

func NewCampaignRepository(db *mongo.Database) domain.CampaignDirectory {
	return &campaignRepository{
		db: db,
	}
}

func (r *campaignRepository) Campaign(ctx context.Context, campaignID string) (*domain.Campaign, error) {
	collection := r.db.Collection(db.CampaignsCollection)

	var doc campaignDocument
	err := collection.FindOne(ctx, bson.M{"_id": campaignID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up campaign %s: %w", campaignID, err)
	}

	return &domain.Campaign{
		ID:                doc.ID,
		Name:              doc.Name,
		ActiveSessionID:   doc.ActiveSessionID,
		SessionInProgress: doc.SessionInProgress,
	}, nil
}

func (r *campaignRepository) ResolveEntity(ctx context.Context, campaignID, ref string) (*domain.EntityInfo, error) {
	collection := r.db.Collection(db.CampaignsCollection)

	var doc campaignDocument
	err := collection.FindOne(ctx, bson.M{"_id": campaignID, "entities.ref": ref}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving entity %s in campaign %s: %w", ref, campaignID, err)
	}

	for _, e := range doc.Entities {
		if e.Ref == ref {
			return &domain.EntityInfo{
				Ref:      e.Ref,
				Name:     e.Name,
				Portrait: e.Portrait,
			}, nil
		}
	}
	return nil, domain.ErrEntryNotFound
}
