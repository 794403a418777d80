package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	OfferIntentsCollection         = "offer_intents"
	ConsultationBookingsCollection = "consultation_bookings"
	OfferDocumentsCollection       = "offer_documents"
	ProfilesCollection             = "profiles"
	SavedPropertiesCollection      = "saved_properties"
	TourRequestsCollection         = "tour_requests"
)

// Indexes lists the secondary indexes each collection needs.
var Indexes = map[string][]mongo.IndexModel{
	OfferIntentsCollection: {
		{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "agent_id", Value: 1}, {Key: "created_at", Value: -1}}},
	},
	ConsultationBookingsCollection: {
		{Keys: bson.D{{Key: "offer_intent_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}}},
	},
	OfferDocumentsCollection: {
		{Keys: bson.D{{Key: "offer_intent_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "storage_path", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	ProfilesCollection: {
		{Keys: bson.D{{Key: "subject", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	SavedPropertiesCollection: {
		{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "mls_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	TourRequestsCollection: {
		{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "requested_at", Value: -1}}},
	},
}

// EnsureIndexes creates every index in Indexes. Creating an existing index is a no-op.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	for collection, indexModels := range Indexes {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, indexModels); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
