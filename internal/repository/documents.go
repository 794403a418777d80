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

type IDocumentRepository interface {
	Insert(ctx context.Context, doc *models.OfferDocument) (*models.OfferDocument, error)
	Get(ctx context.Context, id string) (*models.OfferDocument, error)
	ListByIntent(ctx context.Context, offerIntentID string) ([]models.OfferDocument, error)
	CountsFor(ctx context.Context, offerIntentIDs []string) (map[string]models.DocumentCounts, error)
	SetUploadStatus(ctx context.Context, id string, status models.UploadStatus, now time.Time) error
	SetPreviewPath(ctx context.Context, id, previewPath string, now time.Time) error
	Delete(ctx context.Context, id string) error
	StoragePaths(ctx context.Context) (map[string]string, error)
}

type documentRepository struct {
	coll *mongo.Collection
}

func NewDocumentRepository(database *mongo.Database) IDocumentRepository {
	return &documentRepository{coll: database.Collection(db.OfferDocumentsCollection)}
}

func (r *documentRepository) Insert(ctx context.Context, doc *models.OfferDocument) (*models.OfferDocument, error) {
	if !doc.DocumentType.IsValid() {
		return nil, fmt.Errorf("invalid document type %q", doc.DocumentType)
	}
	if !doc.UploadStatus.IsValid() {
		return nil, fmt.Errorf("invalid upload status %q", doc.UploadStatus)
	}
	return db.InsertOne(ctx, r.coll, doc)
}

func (r *documentRepository) Get(ctx context.Context, id string) (*models.OfferDocument, error) {
	var doc models.OfferDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, "document", id)
	}
	return &doc, nil
}

func (r *documentRepository) ListByIntent(ctx context.Context, offerIntentID string) ([]models.OfferDocument, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"offer_intent_id": offerIntentID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("db error listing documents for %s: %w", offerIntentID, err)
	}
	docs := []models.OfferDocument{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("db error decoding documents for %s: %w", offerIntentID, err)
	}
	return docs, nil
}

// CountsFor aggregates total and required document counts per intent in one query.
func (r *documentRepository) CountsFor(ctx context.Context, offerIntentIDs []string) (map[string]models.DocumentCounts, error) {
	out := make(map[string]models.DocumentCounts, len(offerIntentIDs))
	if len(offerIntentIDs) == 0 {
		return out, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"offer_intent_id": bson.M{"$in": offerIntentIDs}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$offer_intent_id",
			"total": bson.M{"$sum": 1},
			"required": bson.M{"$sum": bson.M{
				"$cond": bson.A{"$is_required", 1, 0},
			}},
		}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("db error counting documents: %w", err)
	}
	var rows []struct {
		OfferIntentID         string `bson:"_id"`
		models.DocumentCounts `bson:",inline"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("db error decoding document counts: %w", err)
	}
	for _, row := range rows {
		out[row.OfferIntentID] = row.DocumentCounts
	}
	return out, nil
}

func (r *documentRepository) SetUploadStatus(ctx context.Context, id string, status models.UploadStatus, now time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid upload status %q", status)
	}
	return r.set(ctx, id, bson.M{"upload_status": status, "updated_at": now})
}

func (r *documentRepository) SetPreviewPath(ctx context.Context, id, previewPath string, now time.Time) error {
	return r.set(ctx, id, bson.M{"preview_path": previewPath, "updated_at": now})
}

func (r *documentRepository) set(ctx context.Context, id string, fields bson.M) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("db error updating document %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *documentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("db error deleting document %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// StoragePaths maps every document id to its blob key.
func (r *documentRepository) StoragePaths(ctx context.Context) (map[string]string, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"storage_path": 1}))
	if err != nil {
		return nil, fmt.Errorf("db error listing storage paths: %w", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]string)
	for cursor.Next(ctx) {
		var row struct {
			ID          string `bson:"_id"`
			StoragePath string `bson:"storage_path"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("db error decoding storage path: %w", err)
		}
		out[row.ID] = row.StoragePath
	}
	return out, cursor.Err()
}
