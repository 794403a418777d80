package db

import (
	"context"
	"fmt"
	"time"

	"estatelink/marketplace/internal/logging"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectDB initializes and returns a MongoDB client and database instance.
func ConnectDB(uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the primary node
	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	logging.GetLogger().WithField("database", dbName).Info("connected to MongoDB")

	return client, db, nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	logging.GetLogger().Info("MongoDB connection closed")
	return nil
}

// Identifiable is a document that can (re)generate its own primary key.
type Identifiable interface {
	GenID()
}

// InsertOne assigns doc a fresh id and inserts it, regenerating the id when
// the insert collides with an existing key.
func InsertOne[T Identifiable](ctx context.Context, coll *mongo.Collection, doc T) (T, error) {
	err := Try(func() error {
		doc.GenID()
		_, err := coll.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return doc, fmt.Errorf("failed to insert into %s: %w", coll.Name(), err)
	}
	return doc, nil
}
