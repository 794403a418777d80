package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

// duplicateKeyError builds an error IsMongoDuplicateKeyError recognizes.
func duplicateKeyError(key string) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: test.offer_documents index: _id_ dup key: { : \"%s\" }", key),
	}}}
}

func TestWithRetries_SuccessfulFirstAttempt(t *testing.T) {
	var opCalled int
	err := WithRetries(func() error {
		opCalled++
		return nil
	}, 3, IsMongoDuplicateKeyError)

	require.NoError(t, err)
	assert.Equal(t, 1, opCalled)
}

func TestWithRetries_FailureNonDuplicateKey(t *testing.T) {
	var opCalled int
	expectedErr := errors.New("some other error")
	err := WithRetries(func() error {
		opCalled++
		return expectedErr
	}, 3, IsMongoDuplicateKeyError)

	assert.ErrorIs(t, err, expectedErr)
	assert.Equal(t, 1, opCalled)
}

func TestWithRetries_ExhaustRetries(t *testing.T) {
	var opCalled int
	maxRetries := 3
	err := WithRetries(func() error {
		opCalled++
		return duplicateKeyError("c0ffee")
	}, maxRetries, IsMongoDuplicateKeyError)

	require.Error(t, err)
	assert.True(t, IsMongoDuplicateKeyError(err))
	assert.Equal(t, maxRetries+1, opCalled)
}

func TestWithRetries_CollisionResolves(t *testing.T) {
	ids := []string{"a", "a", "b"}
	inserted := map[string]bool{"a": true}

	var opCalled int
	err := WithRetries(func() error {
		id := ids[opCalled]
		opCalled++
		if inserted[id] {
			return duplicateKeyError(id)
		}
		inserted[id] = true
		return nil
	}, 3, IsMongoDuplicateKeyError)

	require.NoError(t, err)
	assert.Equal(t, 3, opCalled)
	assert.True(t, inserted["b"])
}

func TestIsMongoDuplicateKeyError(t *testing.T) {
	assert.True(t, IsMongoDuplicateKeyError(duplicateKeyError("x")))
	assert.True(t, IsMongoDuplicateKeyError(fmt.Errorf("wrapped: %w", duplicateKeyError("x"))))
	assert.True(t, IsMongoDuplicateKeyError(mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{{WriteError: mongo.WriteError{Code: 11000}}}}))
	assert.False(t, IsMongoDuplicateKeyError(mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 121}}}))
	assert.False(t, IsMongoDuplicateKeyError(errors.New("plain")))
	assert.False(t, IsMongoDuplicateKeyError(nil))
}
