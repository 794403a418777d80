package models

import (
	"github.com/google/uuid"
)

// Base carries the string primary key shared by every stored record.
type Base struct {
	ID string `bson:"_id,omitempty" json:"id,omitempty"`
}

func (m *Base) GenID() {
	m.ID = uuid.NewString()
}
