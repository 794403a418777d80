package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"estatelink/marketplace/internal/logging"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/repository"
)

// CreateOfferInput is the buyer's request to start an offer.
type CreateOfferInput struct {
	PropertyAddress       string `json:"property_address" validate:"required"`
	OfferType             string `json:"offer_type"`
	ConsultationRequested bool   `json:"consultation_requested"`
}

// IOfferIntentService defines the interface for offer intent operations.
type IOfferIntentService interface {
	CreateOfferIntent(ctx context.Context, actor models.Actor, input CreateOfferInput) (*models.OfferIntent, error)
	GetOfferIntent(ctx context.Context, actor models.Actor, id string) (*models.OfferIntent, error)
	AssignAgent(ctx context.Context, actor models.Actor, id, agentID string) (*models.OfferIntent, error)
	MarkQuestionnaireCompleted(ctx context.Context, actor models.Actor, id string) (*models.OfferIntent, error)
	MarkAgentSummaryGenerated(ctx context.Context, actor models.Actor, id string) (*models.OfferIntent, error)
	GetOfferStatus(ctx context.Context, actor models.Actor, id string) (*models.OfferStatusView, error)
}

type offerIntentService struct {
	intents       repository.IOfferIntentRepository
	consultations repository.IConsultationRepository
	now           func() time.Time
}

// NewOfferIntentService creates a new OfferIntentService.
func NewOfferIntentService(intents repository.IOfferIntentRepository, consultations repository.IConsultationRepository) IOfferIntentService {
	return &offerIntentService{intents: intents, consultations: consultations, now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

func (s *offerIntentService) CreateOfferIntent(ctx context.Context, actor models.Actor, input CreateOfferInput) (*models.OfferIntent, error) {
	if err := authorize(actor.Role == models.RoleBuyer, "create offer intent"); err != nil {
		return nil, err
	}
	input.PropertyAddress = strings.TrimSpace(input.PropertyAddress)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	now := s.now()
	intent, err := s.intents.Insert(ctx, &models.OfferIntent{
		BuyerID:               actor.ProfileID,
		PropertyAddress:       input.PropertyAddress,
		OfferType:             input.OfferType,
		ConsultationRequested: input.ConsultationRequested,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create offer intent: %w", err)
	}
	logging.GetLogger().WithFields(logrus.Fields{"offer_intent_id": intent.ID, "buyer_id": actor.ProfileID}).Info("offer intent created")
	return intent, nil
}

func (s *offerIntentService) GetOfferIntent(ctx context.Context, actor models.Actor, id string) (*models.OfferIntent, error) {
	return loadIntent(ctx, s.intents, actor, id)
}

// loadIntent fetches an intent the actor participates in.
func loadIntent(ctx context.Context, intents repository.IOfferIntentRepository, actor models.Actor, id string) (*models.OfferIntent, error) {
	intent, err := intents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(intent.IsParticipant(actor), "offer intent "+id); err != nil {
		return nil, err
	}
	return intent, nil
}

// AssignAgent lets an agent claim an unassigned intent, or an admin assign anyone.
func (s *offerIntentService) AssignAgent(ctx context.Context, actor models.Actor, id, agentID string) (*models.OfferIntent, error) {
	if agentID == "" {
		agentID = actor.ProfileID
	}
	intent, err := s.intents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleAgent:
		if agentID != actor.ProfileID {
			return nil, authorize(false, "assign another agent")
		}
		if intent.AgentID != nil && *intent.AgentID != actor.ProfileID {
			return nil, authorize(false, "offer intent "+id+" is assigned to another agent")
		}
	default:
		return nil, authorize(false, "assign agent")
	}
	if err := s.intents.SetAgent(ctx, id, agentID, s.now()); err != nil {
		return nil, fmt.Errorf("failed to assign agent: %w", err)
	}
	return s.intents.Get(ctx, id)
}

// MarkQuestionnaireCompleted records the buyer intake step. It does not require
// any earlier marker to be set.
func (s *offerIntentService) MarkQuestionnaireCompleted(ctx context.Context, actor models.Actor, id string) (*models.OfferIntent, error) {
	intent, err := loadIntent(ctx, s.intents, actor, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(intent.BuyerID == actor.ProfileID || actor.Role == models.RoleAdmin, "complete questionnaire"); err != nil {
		return nil, err
	}
	return s.mark(ctx, id, repository.MarkerQuestionnaireCompleted)
}

func (s *offerIntentService) MarkAgentSummaryGenerated(ctx context.Context, actor models.Actor, id string) (*models.OfferIntent, error) {
	intent, err := s.intents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(intent.IsAssignedAgent(actor), "generate agent summary"); err != nil {
		return nil, err
	}
	return s.mark(ctx, id, repository.MarkerAgentSummaryGenerated)
}

func (s *offerIntentService) mark(ctx context.Context, id string, marker repository.Marker) (*models.OfferIntent, error) {
	if err := s.intents.SetMarker(ctx, id, marker, s.now()); err != nil {
		return nil, fmt.Errorf("failed to set %s: %w", marker, err)
	}
	return s.intents.Get(ctx, id)
}

// GetOfferStatus derives the status from the intent and its latest booking.
func (s *offerIntentService) GetOfferStatus(ctx context.Context, actor models.Actor, id string) (*models.OfferStatusView, error) {
	intent, err := loadIntent(ctx, s.intents, actor, id)
	if err != nil {
		return nil, err
	}
	latest, err := latestBooking(ctx, s.consultations, id)
	if err != nil {
		return nil, err
	}
	view := models.StatusView(intent, latest, actor.Role)
	return &view, nil
}

// latestBooking returns nil, not an error, when the intent has no bookings.
func latestBooking(ctx context.Context, consultations repository.IConsultationRepository, offerIntentID string) (*models.ConsultationBooking, error) {
	latest, err := consultations.Latest(ctx, offerIntentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest consultation: %w", err)
	}
	return latest, nil
}
