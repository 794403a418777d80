package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"estatelink/marketplace/internal/cache"
	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/logging"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/repository"
)

const scheduleLayout = "2006-01-02 15:04"

// ScheduleInput carries the agent's booking form.
type ScheduleInput struct {
	OfferIntentID string `json:"offer_intent_id" validate:"required"`
	Date          string `json:"date" validate:"required"`
	Time          string `json:"time" validate:"required"`
	MeetingLink   string `json:"meeting_link" validate:"omitempty,url"`
	AgentNotes    string `json:"agent_notes"`
}

// RescheduleInput carries the new meeting time.
type RescheduleInput struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

// ConsultationView is a booking plus what the viewer may do with it.
type ConsultationView struct {
	Booking             *models.ConsultationBooking `json:"booking"`
	Actions             models.ConsultationActions  `json:"actions"`
	AutoCompleteWarning *models.AutoCompleteWarning `json:"auto_complete_warning,omitempty"`
}

// IConsultationService defines the consultation booking lifecycle.
type IConsultationService interface {
	Schedule(ctx context.Context, actor models.Actor, input ScheduleInput) (*models.ConsultationBooking, error)
	Reschedule(ctx context.Context, actor models.Actor, bookingID string, input RescheduleInput) (*models.ConsultationBooking, error)
	Complete(ctx context.Context, actor models.Actor, bookingID, notes string) (*models.ConsultationBooking, error)
	ReportIssue(ctx context.Context, actor models.Actor, bookingID, details string) (*models.ConsultationBooking, error)
	Cancel(ctx context.Context, actor models.Actor, bookingID string) (*models.ConsultationBooking, error)
	Latest(ctx context.Context, actor models.Actor, offerIntentID string) (*ConsultationView, error)
	ActionsFor(booking *models.ConsultationBooking, role models.Role) models.ConsultationActions
	AutoCompleteWarning(booking *models.ConsultationBooking, now time.Time) *models.AutoCompleteWarning
	AutoCompleteDue(ctx context.Context, now time.Time) (int, error)
}

type consultationService struct {
	cfg           *config.Config
	intents       repository.IOfferIntentRepository
	consultations repository.IConsultationRepository
	locker        cache.Locker
	jobs          IBackgroundJobs
	log           *logrus.Logger
	now           func() time.Time
}

// NewConsultationService creates a new ConsultationService.
func NewConsultationService(
	cfg *config.Config,
	intents repository.IOfferIntentRepository,
	consultations repository.IConsultationRepository,
	locker cache.Locker,
	jobs IBackgroundJobs,
) IConsultationService {
	return &consultationService{
		cfg:           cfg,
		intents:       intents,
		consultations: consultations,
		locker:        locker,
		jobs:          jobs,
		log:           logging.GetLogger(),
		now:           utcNow,
	}
}

func (s *consultationService) combine(date, clock string) (time.Time, error) {
	loc := s.cfg.ConsultationLocation
	if loc == nil {
		loc = time.UTC
	}
	at, err := time.ParseInLocation(scheduleLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock), loc)
	if err != nil {
		return time.Time{}, invalid("date", "date must be YYYY-MM-DD and time HH:MM")
	}
	return at.UTC(), nil
}

// Schedule books a consultation and stamps the intent's scheduled marker.
func (s *consultationService) Schedule(ctx context.Context, actor models.Actor, input ScheduleInput) (*models.ConsultationBooking, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	scheduledAt, err := s.combine(input.Date, input.Time)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor.Role.IsStaff(), "schedule consultation"); err != nil {
		return nil, err
	}
	intent, err := s.intents.Get(ctx, input.OfferIntentID)
	if err != nil {
		return nil, err
	}
	agentID := actor.ProfileID
	if intent.AgentID != nil {
		if err := authorize(intent.IsAssignedAgent(actor), "schedule consultation for another agent's offer"); err != nil {
			return nil, err
		}
		agentID = *intent.AgentID
	}

	now := s.now()
	booking, err := s.consultations.Insert(ctx, &models.ConsultationBooking{
		OfferIntentID: intent.ID,
		AgentID:       agentID,
		BuyerID:       intent.BuyerID,
		ScheduledAt:   scheduledAt,
		Status:        models.ConsultationScheduled,
		MeetingLink:   input.MeetingLink,
		AgentNotes:    input.AgentNotes,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule consultation: %w", err)
	}

	fields := logrus.Fields{"booking_id": booking.ID, "offer_intent_id": intent.ID}
	// The booking is the source of truth; the marker is a convenience copy.
	if err := s.intents.SetMarker(ctx, intent.ID, repository.MarkerConsultationScheduled, now); err != nil {
		logging.LogError(s.log, "consultations", "Schedule", "failed to stamp consultation_scheduled_at", fields, err)
	}
	s.log.WithFields(fields).Info("consultation scheduled")
	s.notify(ctx, EventConsultationScheduled, intent, booking, "")
	return booking, nil
}

// Reschedule moves an open booking without a reported issue and marks it confirmed.
func (s *consultationService) Reschedule(ctx context.Context, actor models.Actor, bookingID string, input RescheduleInput) (*models.ConsultationBooking, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	scheduledAt, err := s.combine(input.Date, input.Time)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, bookingID, "Reschedule", EventConsultationRescheduled, "",
		openGuard,
		func(ctx context.Context) (bool, error) {
			return s.consultations.Reschedule(ctx, bookingID, scheduledAt, s.now())
		})
}

// Complete finishes a booking on behalf of the agent. It may run before or after
// the scheduled time. Completing twice fails with ErrConsultationCompleted and
// leaves completed_at untouched.
func (s *consultationService) Complete(ctx context.Context, actor models.Actor, bookingID, notes string) (*models.ConsultationBooking, error) {
	if err := authorize(actor.Role.IsStaff(), "complete consultation"); err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	return s.transition(ctx, actor, bookingID, "Complete", EventConsultationCompleted, "",
		openGuard,
		func(ctx context.Context) (bool, error) {
			return s.consultations.Complete(ctx, bookingID, models.CompletionAgentManual, notes, s.now())
		})
}

// ReportIssue flags a booking for follow-up. Details are required.
func (s *consultationService) ReportIssue(ctx context.Context, actor models.Actor, bookingID, details string) (*models.ConsultationBooking, error) {
	details = strings.TrimSpace(details)
	if details == "" {
		return nil, invalid("issue_details", "please describe the issue")
	}
	return s.transition(ctx, actor, bookingID, "ReportIssue", EventIssueReported, details,
		func(b *models.ConsultationBooking) error {
			if b.Status == models.ConsultationCompleted {
				return ErrConsultationCompleted
			}
			if b.IssueReported {
				return ErrIssueReported
			}
			return nil
		},
		func(ctx context.Context) (bool, error) {
			return s.consultations.ReportIssue(ctx, bookingID, details, actor.Role, s.now())
		})
}

func (s *consultationService) Cancel(ctx context.Context, actor models.Actor, bookingID string) (*models.ConsultationBooking, error) {
	return s.transition(ctx, actor, bookingID, "Cancel", EventConsultationCancelled, "",
		func(b *models.ConsultationBooking) error {
			switch b.Status {
			case models.ConsultationCompleted:
				return ErrConsultationCompleted
			case models.ConsultationCancelled:
				return ErrConsultationCancelled
			}
			return nil
		},
		func(ctx context.Context) (bool, error) {
			return s.consultations.Cancel(ctx, bookingID, s.now())
		})
}

// openGuard rejects bookings that are closed or carry an issue report.
func openGuard(b *models.ConsultationBooking) error {
	switch {
	case b.Status == models.ConsultationCompleted:
		return ErrConsultationCompleted
	case b.Status == models.ConsultationCancelled:
		return ErrConsultationCancelled
	case b.IssueReported:
		return ErrIssueReported
	}
	return nil
}

// transition runs one guarded single-record update under the booking lock. The
// guard is checked against a fresh read and again by the conditional update, so
// a rejected action never writes.
func (s *consultationService) transition(
	ctx context.Context,
	actor models.Actor,
	bookingID, funcName string,
	event NotificationEvent,
	details string,
	guard func(*models.ConsultationBooking) error,
	write func(ctx context.Context) (bool, error),
) (*models.ConsultationBooking, error) {
	booking, err := s.consultations.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	intent, err := loadIntent(ctx, s.intents, actor, booking.OfferIntentID)
	if err != nil {
		return nil, err
	}
	fields := logrus.Fields{"booking_id": bookingID, "offer_intent_id": booking.OfferIntentID, "actor_role": actor.Role}

	var updated *models.ConsultationBooking
	err = s.locker.WithLock(ctx, "consultation:"+bookingID, func(ctx context.Context) error {
		current, err := s.consultations.Get(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := guard(current); err != nil {
			return err
		}
		matched, err := write(ctx)
		if err != nil {
			return err
		}
		if !matched {
			// Lost a race with a writer outside the lock; explain using the current state.
			current, err = s.consultations.Get(ctx, bookingID)
			if err != nil {
				return err
			}
			if err := guard(current); err != nil {
				return err
			}
			return ErrInvalidTransition
		}
		updated, err = s.consultations.Get(ctx, bookingID)
		return err
	})
	if err != nil {
		if !isStateConflict(err) {
			logging.LogError(s.log, "consultations", funcName, "consultation update failed", fields, err)
		}
		return nil, err
	}
	s.log.WithFields(fields).Infof("consultation %s", strings.TrimPrefix(string(event), "consultation_"))
	s.notify(ctx, event, intent, updated, details)
	return updated, nil
}

func isStateConflict(err error) bool {
	return errors.Is(err, ErrConsultationCompleted) ||
		errors.Is(err, ErrConsultationCancelled) ||
		errors.Is(err, ErrIssueReported) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, cache.ErrLocked)
}

func (s *consultationService) notify(ctx context.Context, event NotificationEvent, intent *models.OfferIntent, booking *models.ConsultationBooking, details string) {
	if s.jobs == nil {
		return
	}
	recipients := []string{booking.BuyerID}
	if booking.AgentID != "" {
		recipients = append(recipients, booking.AgentID)
	}
	err := s.jobs.NotifyConsultation(ctx, ConsultationNotification{
		Event:           event,
		BookingID:       booking.ID,
		OfferIntentID:   booking.OfferIntentID,
		PropertyAddress: intent.PropertyAddress,
		ScheduledAt:     booking.ScheduledAt,
		MeetingLink:     booking.MeetingLink,
		Details:         details,
		RecipientIDs:    recipients,
	})
	if err != nil {
		logging.LogError(s.log, "consultations", "notify", "failed to enqueue notification", logrus.Fields{"booking_id": booking.ID, "event": event}, err)
	}
}

// Latest returns the most recent booking of an intent with the viewer's actions.
func (s *consultationService) Latest(ctx context.Context, actor models.Actor, offerIntentID string) (*ConsultationView, error) {
	if _, err := loadIntent(ctx, s.intents, actor, offerIntentID); err != nil {
		return nil, err
	}
	booking, err := s.consultations.Latest(ctx, offerIntentID)
	if err != nil {
		return nil, err
	}
	return &ConsultationView{
		Booking:             booking,
		Actions:             s.ActionsFor(booking, actor.Role),
		AutoCompleteWarning: s.AutoCompleteWarning(booking, s.now()),
	}, nil
}

func (s *consultationService) ActionsFor(booking *models.ConsultationBooking, role models.Role) models.ConsultationActions {
	return booking.AllowedActions(role)
}

// AutoCompleteWarning is nil when auto-completion is switched off.
func (s *consultationService) AutoCompleteWarning(booking *models.ConsultationBooking, now time.Time) *models.AutoCompleteWarning {
	if !s.cfg.AutoCompleteEnabled {
		return nil
	}
	return booking.AutoCompleteWarning(now, s.cfg.AutoCompleteGrace)
}

// AutoCompleteDue completes every open, issue-free booking whose grace window
// has elapsed. Failures on one booking do not stop the sweep.
func (s *consultationService) AutoCompleteDue(ctx context.Context, now time.Time) (int, error) {
	if !s.cfg.AutoCompleteEnabled {
		return 0, nil
	}
	due, err := s.consultations.DueForAutoComplete(ctx, now.Add(-s.cfg.AutoCompleteGrace))
	if err != nil {
		return 0, err
	}

	completed := 0
	var errs []error
	for i := range due {
		booking := &due[i]
		fields := logrus.Fields{"booking_id": booking.ID, "offer_intent_id": booking.OfferIntentID}
		var matched bool
		err := s.locker.WithLock(ctx, "consultation:"+booking.ID, func(ctx context.Context) error {
			var err error
			matched, err = s.consultations.Complete(ctx, booking.ID, models.CompletionAutoGraceElapsed, "", now)
			return err
		})
		if err != nil {
			if !errors.Is(err, cache.ErrLocked) {
				logging.LogError(s.log, "consultations", "AutoCompleteDue", "auto-complete failed", fields, err)
				errs = append(errs, err)
			}
			continue
		}
		if !matched {
			continue
		}
		completed++
		s.log.WithFields(fields).Info("consultation auto-completed")
		if intent, err := s.intents.Get(ctx, booking.OfferIntentID); err == nil {
			booking.Status = models.ConsultationCompleted
			s.notify(ctx, EventConsultationCompleted, intent, booking, "")
		}
	}
	return completed, errors.Join(errs...)
}
