package utils

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var testMongoURI string

func init() {
	loadTestEnv()
}

// loadTestEnv loads the project .env so MONGO_URI and REDIS_ADDR can come from there.
func loadTestEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
		_ = godotenv.Load()
	}
	testMongoURI = os.Getenv("MONGO_URI")
}

// SetupTestDB connects to the test MongoDB and drops the given collections.
// The test is skipped when MONGO_URI is not configured.
func SetupTestDB(t *testing.T, dbName string, collections ...string) *mongo.Database {
	t.Helper()
	if testMongoURI == "" {
		t.Skip("MONGO_URI not set; skipping MongoDB-backed test")
	}
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(testMongoURI))
	require.NoError(t, err, "Failed to connect to MongoDB")
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	db := client.Database(dbName)

	for _, collection := range collections {
		_ = db.Collection(collection).Drop(context.Background())
	}

	return db
}

// SetupTestRedis connects to the Redis at REDIS_ADDR. The test is skipped when it is not configured.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis-backed test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err(), "Failed to connect to Redis")
	return rdb
}
