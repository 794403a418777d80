package db

import (
	"errors"
	"time"

	"estatelink/marketplace/internal/logging"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// IsDuplicateKeyError is a function that checks if an error is a duplicate key error.
type IsDuplicateKeyError func(err error) bool

const DefaultMaxRetries = 3

// Try executes an operation with default retry settings for duplicate key errors.
// It uses DefaultMaxRetries and IsMongoDuplicateKeyError.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// WithRetries runs op, retrying up to maxRetries more times while it fails with
// a duplicate key error. Any other error is returned immediately.
func WithRetries(op Operation, maxRetries int, isDuplicateKey IsDuplicateKeyError) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		if attempt == maxRetries || !isDuplicateKey(err) {
			return err
		}
		logging.GetLogger().WithField("attempt", attempt+1).Debug("duplicate key, retrying insert")
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	var e mongo.WriteException
	if errors.As(err, &e) {
		for _, we := range e.WriteErrors {
			if we.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, writeError := range bwe.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	return false
}
