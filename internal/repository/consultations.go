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

// IConsultationRepository stores consultation bookings. The mutating methods are
// conditional: they report matched=false, without writing, when the booking is
// missing or its state does not permit the change.
type IConsultationRepository interface {
	Insert(ctx context.Context, booking *models.ConsultationBooking) (*models.ConsultationBooking, error)
	Get(ctx context.Context, id string) (*models.ConsultationBooking, error)
	Latest(ctx context.Context, offerIntentID string) (*models.ConsultationBooking, error)
	LatestFor(ctx context.Context, offerIntentIDs []string) (map[string]*models.ConsultationBooking, error)
	Reschedule(ctx context.Context, id string, scheduledAt, now time.Time) (bool, error)
	Complete(ctx context.Context, id string, method, notes string, now time.Time) (bool, error)
	ReportIssue(ctx context.Context, id string, details string, by models.Role, now time.Time) (bool, error)
	Cancel(ctx context.Context, id string, now time.Time) (bool, error)
	DueForAutoComplete(ctx context.Context, scheduledBefore time.Time) ([]models.ConsultationBooking, error)
}

type consultationRepository struct {
	coll *mongo.Collection
}

func NewConsultationRepository(database *mongo.Database) IConsultationRepository {
	return &consultationRepository{coll: database.Collection(db.ConsultationBookingsCollection)}
}

func (r *consultationRepository) Insert(ctx context.Context, booking *models.ConsultationBooking) (*models.ConsultationBooking, error) {
	if !booking.Status.IsValid() {
		return nil, fmt.Errorf("invalid consultation status %q", booking.Status)
	}
	return db.InsertOne(ctx, r.coll, booking)
}

func (r *consultationRepository) Get(ctx context.Context, id string) (*models.ConsultationBooking, error) {
	var booking models.ConsultationBooking
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&booking); err != nil {
		return nil, notFound(err, "consultation", id)
	}
	return &booking, nil
}

func (r *consultationRepository) Latest(ctx context.Context, offerIntentID string) (*models.ConsultationBooking, error) {
	var booking models.ConsultationBooking
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if err := r.coll.FindOne(ctx, bson.M{"offer_intent_id": offerIntentID}, opts).Decode(&booking); err != nil {
		return nil, notFound(err, "consultation for offer intent", offerIntentID)
	}
	return &booking, nil
}

// LatestFor loads the most recent booking of every listed intent in one query.
// Intents without bookings are absent from the result.
func (r *consultationRepository) LatestFor(ctx context.Context, offerIntentIDs []string) (map[string]*models.ConsultationBooking, error) {
	out := make(map[string]*models.ConsultationBooking, len(offerIntentIDs))
	if len(offerIntentIDs) == 0 {
		return out, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"offer_intent_id": bson.M{"$in": offerIntentIDs}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.M{"_id": "$offer_intent_id", "latest": bson.M{"$first": "$$ROOT"}}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("db error loading latest consultations: %w", err)
	}
	var rows []struct {
		OfferIntentID string                     `bson:"_id"`
		Latest        models.ConsultationBooking `bson:"latest"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("db error decoding latest consultations: %w", err)
	}
	for i := range rows {
		out[rows[i].OfferIntentID] = &rows[i].Latest
	}
	return out, nil
}

func openFilter(id string) bson.M {
	return bson.M{
		"_id":            id,
		"status":         bson.M{"$in": models.OpenConsultationStatuses},
		"issue_reported": false,
	}
}

func (r *consultationRepository) update(ctx context.Context, action string, filter, set bson.M) (bool, error) {
	result, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("db error %s consultation %v: %w", action, filter["_id"], err)
	}
	return result.MatchedCount > 0, nil
}

// Reschedule moves an open, issue-free booking and marks it confirmed.
func (r *consultationRepository) Reschedule(ctx context.Context, id string, scheduledAt, now time.Time) (bool, error) {
	return r.update(ctx, "rescheduling", openFilter(id), bson.M{
		"scheduled_at": scheduledAt,
		"status":       models.ConsultationConfirmed,
		"updated_at":   now,
	})
}

// Complete finishes an open, issue-free booking. A completed booking never
// matches, so completed_at is written once.
func (r *consultationRepository) Complete(ctx context.Context, id string, method, notes string, now time.Time) (bool, error) {
	set := bson.M{
		"status":            models.ConsultationCompleted,
		"completed_at":      now,
		"completion_method": method,
		"updated_at":        now,
	}
	if notes != "" {
		set["consultation_notes"] = notes
	}
	return r.update(ctx, "completing", openFilter(id), set)
}

// ReportIssue flags a booking that is not completed and not already flagged.
func (r *consultationRepository) ReportIssue(ctx context.Context, id string, details string, by models.Role, now time.Time) (bool, error) {
	return r.update(ctx, "reporting issue on", bson.M{
		"_id":            id,
		"status":         bson.M{"$ne": models.ConsultationCompleted},
		"issue_reported": false,
	}, bson.M{
		"issue_reported":    true,
		"issue_details":     details,
		"issue_reported_by": by,
		"updated_at":        now,
	})
}

func (r *consultationRepository) Cancel(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.update(ctx, "cancelling", bson.M{
		"_id":    id,
		"status": bson.M{"$in": models.OpenConsultationStatuses},
	}, bson.M{
		"status":       models.ConsultationCancelled,
		"cancelled_at": now,
		"updated_at":   now,
	})
}

// DueForAutoComplete lists scheduled or confirmed, issue-free bookings whose
// meeting time is at or before scheduledBefore.
func (r *consultationRepository) DueForAutoComplete(ctx context.Context, scheduledBefore time.Time) ([]models.ConsultationBooking, error) {
	cursor, err := r.coll.Find(ctx, bson.M{
		"status":         bson.M{"$in": []models.ConsultationStatus{models.ConsultationScheduled, models.ConsultationConfirmed}},
		"issue_reported": false,
		"scheduled_at":   bson.M{"$lte": scheduledBefore},
	}, options.Find().SetSort(bson.D{{Key: "scheduled_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("db error finding due consultations: %w", err)
	}
	bookings := []models.ConsultationBooking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("db error decoding due consultations: %w", err)
	}
	return bookings, nil
}
