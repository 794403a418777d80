package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"estatelink/marketplace/internal/db"
	"estatelink/marketplace/internal/models"
)

type IPropertyRepository interface {
	SaveProperty(ctx context.Context, saved *models.SavedProperty) (*models.SavedProperty, error)
	ListSaved(ctx context.Context, buyerID string) ([]models.SavedProperty, error)
	InsertTour(ctx context.Context, tour *models.TourRequest) (*models.TourRequest, error)
	ListTours(ctx context.Context, buyerID string) ([]models.TourRequest, error)
}

type propertyRepository struct {
	saved *mongo.Collection
	tours *mongo.Collection
}

func NewPropertyRepository(database *mongo.Database) IPropertyRepository {
	return &propertyRepository{
		saved: database.Collection(db.SavedPropertiesCollection),
		tours: database.Collection(db.TourRequestsCollection),
	}
}

// SaveProperty fails with ErrAlreadyExists when the buyer already saved the listing.
func (r *propertyRepository) SaveProperty(ctx context.Context, saved *models.SavedProperty) (*models.SavedProperty, error) {
	saved.GenID()
	if _, err := r.saved.InsertOne(ctx, saved); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, fmt.Errorf("saved property %s: %w", saved.MLSID, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("db error saving property %s: %w", saved.MLSID, err)
	}
	return saved, nil
}

func (r *propertyRepository) ListSaved(ctx context.Context, buyerID string) ([]models.SavedProperty, error) {
	out := []models.SavedProperty{}
	err := findAll(ctx, r.saved, bson.M{"buyer_id": buyerID}, bson.D{{Key: "created_at", Value: -1}}, &out)
	return out, err
}

func (r *propertyRepository) InsertTour(ctx context.Context, tour *models.TourRequest) (*models.TourRequest, error) {
	return db.InsertOne(ctx, r.tours, tour)
}

func (r *propertyRepository) ListTours(ctx context.Context, buyerID string) ([]models.TourRequest, error) {
	out := []models.TourRequest{}
	err := findAll(ctx, r.tours, bson.M{"buyer_id": buyerID}, bson.D{{Key: "requested_at", Value: -1}}, &out)
	return out, err
}

func findAll(ctx context.Context, coll *mongo.Collection, filter bson.M, sort bson.D, out any) error {
	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return fmt.Errorf("db error querying %s: %w", coll.Name(), err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("db error decoding %s: %w", coll.Name(), err)
	}
	return nil
}
