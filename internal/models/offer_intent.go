package models

import "time"

// OfferIntent is a buyer's record of pursuing an offer on a property. Its stage
// is never stored; see DeriveOfferStatus.
type OfferIntent struct {
	Base                     `bson:",inline"`
	BuyerID                  string     `bson:"buyer_id" json:"buyer_id"`
	AgentID                  *string    `bson:"agent_id,omitempty" json:"agent_id,omitempty"`
	PropertyAddress          string     `bson:"property_address" json:"property_address"`
	OfferType                string     `bson:"offer_type" json:"offer_type"`
	ConsultationRequested    bool       `bson:"consultation_requested" json:"consultation_requested"`
	ConsultationScheduledAt  *time.Time `bson:"consultation_scheduled_at,omitempty" json:"consultation_scheduled_at,omitempty"`
	QuestionnaireCompletedAt *time.Time `bson:"questionnaire_completed_at,omitempty" json:"questionnaire_completed_at,omitempty"`
	AgentSummaryGeneratedAt  *time.Time `bson:"agent_summary_generated_at,omitempty" json:"agent_summary_generated_at,omitempty"`
	CreatedAt                time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt                time.Time  `bson:"updated_at" json:"updated_at"`
}

// IsParticipant reports whether the actor may read the intent.
func (o *OfferIntent) IsParticipant(actor Actor) bool {
	switch {
	case actor.Role == RoleAdmin:
		return true
	case o.BuyerID == actor.ProfileID:
		return true
	case o.AgentID != nil && *o.AgentID == actor.ProfileID:
		return true
	}
	return false
}

// IsAssignedAgent reports whether the actor is the agent on the intent (or an admin).
func (o *OfferIntent) IsAssignedAgent(actor Actor) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	return actor.Role == RoleAgent && o.AgentID != nil && *o.AgentID == actor.ProfileID
}
