package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"estatelink/marketplace/internal/db"
	"estatelink/marketplace/internal/models"
)

type IProfileRepository interface {
	Upsert(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	Get(ctx context.Context, id string) (*models.Profile, error)
}

type profileRepository struct {
	coll *mongo.Collection
}

func NewProfileRepository(database *mongo.Database) IProfileRepository {
	return &profileRepository{coll: database.Collection(db.ProfilesCollection)}
}

// Upsert refreshes the identity fields of a profile, creating it on first sight.
func (r *profileRepository) Upsert(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"subject":        profile.Subject,
			"email":          profile.Email,
			"email_verified": profile.EmailVerified,
			"name":           profile.Name,
			"user_type":      profile.UserType,
			"updated_at":     now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out models.Profile
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": profile.ID}, update, opts).Decode(&out); err != nil {
		return nil, fmt.Errorf("db error upserting profile %s: %w", profile.ID, err)
	}
	return &out, nil
}

func (r *profileRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&profile); err != nil {
		return nil, notFound(err, "profile", id)
	}
	return &profile, nil
}
