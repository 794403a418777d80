package models

import "time"

// Profile is the local record of an identity-provider user.
type Profile struct {
	ID            string    `bson:"_id" json:"id"`
	Subject       string    `bson:"subject" json:"-"`
	Email         string    `bson:"email" json:"email"`
	EmailVerified bool      `bson:"email_verified" json:"email_verified"`
	Name          string    `bson:"name" json:"name"`
	UserType      Role      `bson:"user_type" json:"user_type"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}
