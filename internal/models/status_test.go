package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts() *time.Time {
	t := time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC)
	return &t
}

// expectedStatus restates the priority ladder independently of the switch in DeriveOfferStatus.
func expectedStatus(summary, questionnaire, scheduled, requested bool, booking ConsultationStatus) OfferStatus {
	if summary {
		return StatusReady
	}
	if questionnaire {
		return StatusUnderReview
	}
	if booking == ConsultationCompleted {
		return StatusConsultationCompleted
	}
	if scheduled || booking == ConsultationScheduled {
		return StatusConsultationScheduled
	}
	if requested {
		return StatusConsultationRequested
	}
	return StatusInProgress
}

func TestDeriveOfferStatus_PriorityGrid(t *testing.T) {
	bookings := []ConsultationStatus{"", ConsultationScheduled, ConsultationCompleted}

	for mask := 0; mask < 16; mask++ {
		summary := mask&8 != 0
		questionnaire := mask&4 != 0
		scheduled := mask&2 != 0
		requested := mask&1 != 0

		intent := &OfferIntent{ConsultationRequested: requested}
		if summary {
			intent.AgentSummaryGeneratedAt = ts()
		}
		if questionnaire {
			intent.QuestionnaireCompletedAt = ts()
		}
		if scheduled {
			intent.ConsultationScheduledAt = ts()
		}

		for _, b := range bookings {
			var latest *ConsultationBooking
			if b != "" {
				latest = &ConsultationBooking{Status: b}
			}
			name := fmt.Sprintf("summary=%t/questionnaire=%t/scheduled=%t/requested=%t/booking=%q", summary, questionnaire, scheduled, requested, b)
			t.Run(name, func(t *testing.T) {
				assert.Equal(t, expectedStatus(summary, questionnaire, scheduled, requested, b), DeriveOfferStatus(intent, latest))
			})
		}
	}
}

func TestDeriveOfferStatus_IgnoresOtherBookingStatuses(t *testing.T) {
	intent := &OfferIntent{ConsultationRequested: true}
	for _, s := range []ConsultationStatus{ConsultationRequested, ConsultationConfirmed, ConsultationCancelled} {
		assert.Equal(t, StatusConsultationRequested, DeriveOfferStatus(intent, &ConsultationBooking{Status: s}), s)
	}
}

func TestStatusView_NewIntentInProgress(t *testing.T) {
	view := StatusView(&OfferIntent{}, nil, RoleBuyer)
	assert.Equal(t, StatusInProgress, view.Status)
	assert.Equal(t, "Continue Setup", view.NextAction)
	assert.Equal(t, "In Progress", view.Label)
}

func TestStatusView_RequestedConsultationNeedsScheduling(t *testing.T) {
	view := StatusView(&OfferIntent{ConsultationRequested: true}, nil, RoleBuyer)
	assert.Equal(t, StatusConsultationRequested, view.Status)
	assert.Equal(t, "Schedule Consultation", view.NextAction)
}

func TestNextAction_RoleSensitive(t *testing.T) {
	cases := []struct {
		status OfferStatus
		buyer  string
		agent  string
	}{
		{StatusInProgress, "Continue Setup", "Continue Setup"},
		{StatusConsultationRequested, "Schedule Consultation", "Schedule Consultation"},
		{StatusConsultationScheduled, "Join Consultation", "Complete Consultation"},
		{StatusConsultationCompleted, "Complete Questionnaire", "Generate Summary"},
		{StatusUnderReview, "View Summary", "Review & Approve"},
		{StatusReady, "Submit Offer", "Submit Offer"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.buyer, tc.status.NextAction(RoleBuyer), tc.status)
		assert.Equal(t, tc.agent, tc.status.NextAction(RoleAgent), tc.status)
		assert.Equal(t, tc.agent, tc.status.NextAction(RoleAdmin), tc.status)
	}
}

func TestOfferStatus_PresentationCoversEveryStatus(t *testing.T) {
	for _, s := range ValidOfferStatuses {
		assert.True(t, s.IsValid())
		assert.NotEqual(t, string(s), s.Label(), "missing label for %s", s)
		assert.NotEmpty(t, s.ColorClass())
	}
	assert.False(t, OfferStatus("shipped").IsValid())
	assert.Equal(t, "", OfferStatus("shipped").NextAction(RoleBuyer))
}

func TestOfferStatus_IsCompleted(t *testing.T) {
	for _, s := range ValidOfferStatuses {
		assert.Equal(t, s == StatusReady, s.IsCompleted(), s)
	}
}
