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

// Marker names one of the offer intent's stage timestamps.
type Marker string

const (
	MarkerConsultationScheduled  Marker = "consultation_scheduled_at"
	MarkerQuestionnaireCompleted Marker = "questionnaire_completed_at"
	MarkerAgentSummaryGenerated  Marker = "agent_summary_generated_at"
)

// OfferIntentFilter scopes a list query. Empty fields are ignored.
type OfferIntentFilter struct {
	BuyerID string
	AgentID string
	Limit   int64
}

type IOfferIntentRepository interface {
	Insert(ctx context.Context, intent *models.OfferIntent) (*models.OfferIntent, error)
	Get(ctx context.Context, id string) (*models.OfferIntent, error)
	List(ctx context.Context, filter OfferIntentFilter) ([]models.OfferIntent, error)
	SetAgent(ctx context.Context, id, agentID string, now time.Time) error
	SetMarker(ctx context.Context, id string, marker Marker, at time.Time) error
}

type offerIntentRepository struct {
	coll *mongo.Collection
}

func NewOfferIntentRepository(database *mongo.Database) IOfferIntentRepository {
	return &offerIntentRepository{coll: database.Collection(db.OfferIntentsCollection)}
}

func (r *offerIntentRepository) Insert(ctx context.Context, intent *models.OfferIntent) (*models.OfferIntent, error) {
	return db.InsertOne(ctx, r.coll, intent)
}

func (r *offerIntentRepository) Get(ctx context.Context, id string) (*models.OfferIntent, error) {
	var intent models.OfferIntent
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&intent); err != nil {
		return nil, notFound(err, "offer intent", id)
	}
	return &intent, nil
}

func (r *offerIntentRepository) List(ctx context.Context, filter OfferIntentFilter) ([]models.OfferIntent, error) {
	query := bson.M{}
	if filter.BuyerID != "" {
		query["buyer_id"] = filter.BuyerID
	}
	if filter.AgentID != "" {
		query["agent_id"] = filter.AgentID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("db error listing offer intents: %w", err)
	}
	intents := []models.OfferIntent{}
	if err := cursor.All(ctx, &intents); err != nil {
		return nil, fmt.Errorf("db error decoding offer intents: %w", err)
	}
	return intents, nil
}

func (r *offerIntentRepository) SetAgent(ctx context.Context, id, agentID string, now time.Time) error {
	return r.set(ctx, id, bson.M{"agent_id": agentID, "updated_at": now})
}

// SetMarker stamps one stage marker. Markers are independent; setting one never
// touches the others.
func (r *offerIntentRepository) SetMarker(ctx context.Context, id string, marker Marker, at time.Time) error {
	switch marker {
	case MarkerConsultationScheduled, MarkerQuestionnaireCompleted, MarkerAgentSummaryGenerated:
	default:
		return fmt.Errorf("unknown offer intent marker %q", marker)
	}
	return r.set(ctx, id, bson.M{string(marker): at, "updated_at": at})
}

func (r *offerIntentRepository) set(ctx context.Context, id string, fields bson.M) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("db error updating offer intent %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("offer intent %s: %w", id, ErrNotFound)
	}
	return nil
}
