package services

import (
	"context"
	"fmt"
	"time"

	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/repository"
)

const adminDashboardLimit = 200

// OfferSummary is one dashboard row.
type OfferSummary struct {
	Intent              models.OfferIntent          `json:"intent"`
	LatestConsultation  *models.ConsultationBooking `json:"latest_consultation,omitempty"`
	Documents           models.DocumentCounts       `json:"documents"`
	Status              models.OfferStatusView      `json:"status"`
	Actions             models.ConsultationActions  `json:"actions"`
	AutoCompleteWarning *models.AutoCompleteWarning `json:"auto_complete_warning,omitempty"`
}

// DashboardTotals counts the rows of each bucket.
type DashboardTotals struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Documents int `json:"documents"`
}

// Dashboard partitions a user's offers into active and completed buckets.
type Dashboard struct {
	Active    []OfferSummary  `json:"active"`
	Completed []OfferSummary  `json:"completed"`
	Totals    DashboardTotals `json:"totals"`
}

// IDashboardService builds the role-specific offer dashboards.
type IDashboardService interface {
	BuyerDashboard(ctx context.Context, actor models.Actor) (*Dashboard, error)
	AgentDashboard(ctx context.Context, actor models.Actor) (*Dashboard, error)
	AdminDashboard(ctx context.Context, actor models.Actor) (*Dashboard, error)
}

type dashboardService struct {
	cfg           *config.Config
	intents       repository.IOfferIntentRepository
	consultations repository.IConsultationRepository
	docs          repository.IDocumentRepository
	now           func() time.Time
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(
	cfg *config.Config,
	intents repository.IOfferIntentRepository,
	consultations repository.IConsultationRepository,
	docs repository.IDocumentRepository,
) IDashboardService {
	return &dashboardService{cfg: cfg, intents: intents, consultations: consultations, docs: docs, now: utcNow}
}

func (s *dashboardService) BuyerDashboard(ctx context.Context, actor models.Actor) (*Dashboard, error) {
	return s.build(ctx, actor, repository.OfferIntentFilter{BuyerID: actor.ProfileID})
}

func (s *dashboardService) AgentDashboard(ctx context.Context, actor models.Actor) (*Dashboard, error) {
	if err := authorize(actor.Role.IsStaff(), "agent dashboard"); err != nil {
		return nil, err
	}
	return s.build(ctx, actor, repository.OfferIntentFilter{AgentID: actor.ProfileID})
}

func (s *dashboardService) AdminDashboard(ctx context.Context, actor models.Actor) (*Dashboard, error) {
	if err := authorize(actor.Role == models.RoleAdmin, "admin dashboard"); err != nil {
		return nil, err
	}
	return s.build(ctx, actor, repository.OfferIntentFilter{Limit: adminDashboardLimit})
}

// build issues exactly three queries regardless of how many offers are listed.
func (s *dashboardService) build(ctx context.Context, actor models.Actor, filter repository.OfferIntentFilter) (*Dashboard, error) {
	intents, err := s.intents.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load offers: %w", err)
	}
	ids := make([]string, len(intents))
	for i := range intents {
		ids[i] = intents[i].ID
	}
	latest, err := s.consultations.LatestFor(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load consultations: %w", err)
	}
	counts, err := s.docs.CountsFor(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load document counts: %w", err)
	}

	now := s.now()
	dashboard := &Dashboard{Active: []OfferSummary{}, Completed: []OfferSummary{}}
	for i := range intents {
		intent := intents[i]
		booking := latest[intent.ID]
		summary := OfferSummary{
			Intent:             intent,
			LatestConsultation: booking,
			Documents:          counts[intent.ID],
			Status:             models.StatusView(&intent, booking, actor.Role),
			Actions:            booking.AllowedActions(actor.Role),
		}
		if s.cfg.AutoCompleteEnabled {
			summary.AutoCompleteWarning = booking.AutoCompleteWarning(now, s.cfg.AutoCompleteGrace)
		}
		if summary.Status.Status.IsCompleted() {
			dashboard.Completed = append(dashboard.Completed, summary)
		} else {
			dashboard.Active = append(dashboard.Active, summary)
		}
		dashboard.Totals.Documents += summary.Documents.Total
	}
	dashboard.Totals.Active = len(dashboard.Active)
	dashboard.Totals.Completed = len(dashboard.Completed)
	return dashboard, nil
}
