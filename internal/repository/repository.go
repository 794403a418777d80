// Package repository holds the mongo-backed collections of the offer workflow.
// A missing document is always reported as ErrNotFound.
package repository

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound means no document matched.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists means a unique key was violated.
	ErrAlreadyExists = errors.New("already exists")
)

func notFound(err error, what, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("db error fetching %s %s: %w", what, id, err)
}
