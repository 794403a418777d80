package services

import (
	"context"
	"time"
)

// NotificationEvent names what happened to a consultation.
type NotificationEvent string

const (
	EventConsultationScheduled   NotificationEvent = "consultation_scheduled"
	EventConsultationRescheduled NotificationEvent = "consultation_rescheduled"
	EventConsultationCompleted   NotificationEvent = "consultation_completed"
	EventConsultationCancelled   NotificationEvent = "consultation_cancelled"
	EventIssueReported           NotificationEvent = "consultation_issue_reported"
)

// ConsultationNotification is delivered to every recipient profile.
type ConsultationNotification struct {
	Event           NotificationEvent `json:"event"`
	BookingID       string            `json:"booking_id"`
	OfferIntentID   string            `json:"offer_intent_id"`
	PropertyAddress string            `json:"property_address"`
	ScheduledAt     time.Time         `json:"scheduled_at"`
	MeetingLink     string            `json:"meeting_link,omitempty"`
	Details         string            `json:"details,omitempty"`
	RecipientIDs    []string          `json:"recipient_ids"`
}

// IBackgroundJobs hands work to the task queue.
type IBackgroundJobs interface {
	NotifyConsultation(ctx context.Context, n ConsultationNotification) error
	GeneratePreview(ctx context.Context, documentID string) error
}
