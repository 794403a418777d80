package models

import "time"

// ConsultationStatus is the stored status of a booking.
type ConsultationStatus string

const (
	ConsultationRequested ConsultationStatus = "requested"
	ConsultationConfirmed ConsultationStatus = "confirmed"
	ConsultationScheduled ConsultationStatus = "scheduled"
	ConsultationCompleted ConsultationStatus = "completed"
	ConsultationCancelled ConsultationStatus = "cancelled"
)

// ValidConsultationStatuses is the closed set of booking statuses.
var ValidConsultationStatuses = []ConsultationStatus{
	ConsultationRequested,
	ConsultationConfirmed,
	ConsultationScheduled,
	ConsultationCompleted,
	ConsultationCancelled,
}

// IsValid checks if a status is recognized.
func (s ConsultationStatus) IsValid() bool {
	for _, v := range ValidConsultationStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// OpenConsultationStatuses are the statuses a booking can still be acted on from.
var OpenConsultationStatuses = []ConsultationStatus{
	ConsultationRequested,
	ConsultationConfirmed,
	ConsultationScheduled,
}

// Completion methods recorded on a completed booking.
const (
	CompletionAgentManual      = "agent_manual"
	CompletionAutoGraceElapsed = "auto_grace_elapsed"
)

// ConsultationBooking is a scheduled meeting between buyer and agent about an offer intent.
type ConsultationBooking struct {
	Base              `bson:",inline"`
	OfferIntentID     string             `bson:"offer_intent_id" json:"offer_intent_id"`
	AgentID           string             `bson:"agent_id" json:"agent_id"`
	BuyerID           string             `bson:"buyer_id" json:"buyer_id"`
	ScheduledAt       time.Time          `bson:"scheduled_at" json:"scheduled_at"`
	Status            ConsultationStatus `bson:"status" json:"status"`
	CompletedAt       *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CompletionMethod  string             `bson:"completion_method,omitempty" json:"completion_method,omitempty"`
	ConsultationNotes string             `bson:"consultation_notes,omitempty" json:"consultation_notes,omitempty"`
	IssueReported     bool               `bson:"issue_reported" json:"issue_reported"`
	IssueDetails      string             `bson:"issue_details,omitempty" json:"issue_details,omitempty"`
	IssueReportedBy   Role               `bson:"issue_reported_by,omitempty" json:"issue_reported_by,omitempty"`
	MeetingLink       string             `bson:"meeting_link,omitempty" json:"meeting_link,omitempty"`
	AgentNotes        string             `bson:"agent_notes,omitempty" json:"agent_notes,omitempty"`
	CancelledAt       *time.Time         `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}

// IsOpen reports whether the booking is neither completed nor cancelled.
func (b *ConsultationBooking) IsOpen() bool {
	return b.Status != ConsultationCompleted && b.Status != ConsultationCancelled
}

// ConsultationActions lists the actions a role may take on a booking.
type ConsultationActions struct {
	CanReschedule  bool `json:"can_reschedule"`
	CanComplete    bool `json:"can_complete"`
	CanReportIssue bool `json:"can_report_issue"`
	CanCancel      bool `json:"can_cancel"`
}

// AllowedActions derives the actions available to role. A reported issue hides
// reschedule and complete for every role.
func (b *ConsultationBooking) AllowedActions(role Role) ConsultationActions {
	if b == nil {
		return ConsultationActions{}
	}
	open := b.IsOpen()
	return ConsultationActions{
		CanReschedule:  open && !b.IssueReported,
		CanComplete:    open && !b.IssueReported && role.IsStaff(),
		CanReportIssue: b.Status != ConsultationCompleted && !b.IssueReported,
		CanCancel:      open,
	}
}

// AutoCompleteWarning signals that a past-due booking will be completed automatically.
type AutoCompleteWarning struct {
	AutoCompleteAt time.Time     `json:"auto_complete_at"`
	Remaining      time.Duration `json:"remaining"`
	Due            bool          `json:"due"`
}

// AutoCompleteWarning returns nil unless the booking is open, issue-free and its
// scheduled time has passed.
func (b *ConsultationBooking) AutoCompleteWarning(now time.Time, grace time.Duration) *AutoCompleteWarning {
	if b == nil || !b.IsOpen() || b.IssueReported || !b.ScheduledAt.Before(now) {
		return nil
	}
	at := b.ScheduledAt.Add(grace)
	remaining := at.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return &AutoCompleteWarning{
		AutoCompleteAt: at,
		Remaining:      remaining,
		Due:            !at.After(now),
	}
}
