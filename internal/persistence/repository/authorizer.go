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

type memberDocument struct {
	Token    string `bson:"token"`
	Username string `bson:"username"`
	Role     string `bson:"role"`
}

type membershipDocument struct {
	ID      string           `bson:"_id"`
	Members []memberDocument `bson:"members,omitempty"`
}

type campaignAuthorizer struct {
	db *mongo.Database
}

// NewCampaignAuthorizer checks join attempts against the campaign's member
// list. The player token comes from the identity cookie; the stored role
// wins over anything the client claims.
func NewCampaignAuthorizer(db *mongo.Database) domain.Authorizer {
	return &campaignAuthorizer{
		db: db,
	}
}

func (a *campaignAuthorizer) Authorize(ctx context.Context, campaignID, memberToken, username string) (*domain.Participant, error) {
	collection := a.db.Collection(db.CampaignsCollection)

	var doc membershipDocument
	err := collection.FindOne(ctx, bson.M{"_id": campaignID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up campaign %s: %w", campaignID, err)
	}

	for _, m := range doc.Members {
		if m.Token != memberToken {
			continue
		}

		role := domain.RolePlayer
		if m.Role == string(domain.RoleDM) {
			role = domain.RoleDM
		}
		name := m.Username
		if name == "" {
			name = username
		}
		return &domain.Participant{
			UserID:   m.Token,
			Username: name,
			Role:     role,
		}, nil
	}

	return nil, domain.ErrNotAuthorized
}
