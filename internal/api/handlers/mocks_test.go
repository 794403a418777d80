package handlers_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"estatelink/marketplace/internal/auth"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/services"
)

// --- MockOfferIntentService ---
type MockOfferIntentService struct {
	mock.Mock
}

func (m *MockOfferIntentService) intent(args mock.Arguments) (*models.OfferIntent, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OfferIntent), args.Error(1)
}

func (m *MockOfferIntentService) CreateOfferIntent(ctx context.Context, actor models.Actor, input services.CreateOfferInput) (*models.OfferIntent, error) {
	return m.intent(m.Called(ctx, actor, input))
}
func (m *MockOfferIntentService) GetOfferIntent(ctx context.Context, actor models.Actor, id string) (*models.OfferIntent, error) {
	return m.intent(m.Called(ctx, actor, id))
}
func (m *MockOfferIntentService) AssignAgent(ctx context.Context, actor models.Actor, id, agentID string) (*models.OfferIntent, error) {
	return m.intent(m.Called(ctx, actor, id, agentID))
}
func (m *MockOfferIntentService) MarkQuestionnaireCompleted(ctx context.Context, actor models.Actor, id string) (*models.OfferIntent, error) {
	return m.intent(m.Called(ctx, actor, id))
}
func (m *MockOfferIntentService) MarkAgentSummaryGenerated(ctx context.Context, actor models.Actor, id string) (*models.OfferIntent, error) {
	return m.intent(m.Called(ctx, actor, id))
}
func (m *MockOfferIntentService) GetOfferStatus(ctx context.Context, actor models.Actor, id string) (*models.OfferStatusView, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OfferStatusView), args.Error(1)
}

// --- MockConsultationService ---
type MockConsultationService struct {
	mock.Mock
}

func (m *MockConsultationService) booking(args mock.Arguments) (*models.ConsultationBooking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsultationBooking), args.Error(1)
}

func (m *MockConsultationService) Schedule(ctx context.Context, actor models.Actor, input services.ScheduleInput) (*models.ConsultationBooking, error) {
	return m.booking(m.Called(ctx, actor, input))
}
func (m *MockConsultationService) Reschedule(ctx context.Context, actor models.Actor, bookingID string, input services.RescheduleInput) (*models.ConsultationBooking, error) {
	return m.booking(m.Called(ctx, actor, bookingID, input))
}
func (m *MockConsultationService) Complete(ctx context.Context, actor models.Actor, bookingID, notes string) (*models.ConsultationBooking, error) {
	return m.booking(m.Called(ctx, actor, bookingID, notes))
}
func (m *MockConsultationService) ReportIssue(ctx context.Context, actor models.Actor, bookingID, details string) (*models.ConsultationBooking, error) {
	return m.booking(m.Called(ctx, actor, bookingID, details))
}
func (m *MockConsultationService) Cancel(ctx context.Context, actor models.Actor, bookingID string) (*models.ConsultationBooking, error) {
	return m.booking(m.Called(ctx, actor, bookingID))
}
func (m *MockConsultationService) Latest(ctx context.Context, actor models.Actor, offerIntentID string) (*services.ConsultationView, error) {
	args := m.Called(ctx, actor, offerIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ConsultationView), args.Error(1)
}
func (m *MockConsultationService) ActionsFor(booking *models.ConsultationBooking, role models.Role) models.ConsultationActions {
	return booking.AllowedActions(role)
}
func (m *MockConsultationService) AutoCompleteWarning(booking *models.ConsultationBooking, now time.Time) *models.AutoCompleteWarning {
	return nil
}
func (m *MockConsultationService) AutoCompleteDue(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

// --- MockDocumentService ---
type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, actor models.Actor, input services.UploadInput) (*services.UploadResult, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.UploadResult), args.Error(1)
}
func (m *MockDocumentService) List(ctx context.Context, actor models.Actor, offerIntentID string) ([]models.OfferDocument, error) {
	args := m.Called(ctx, actor, offerIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OfferDocument), args.Error(1)
}
func (m *MockDocumentService) Counts(ctx context.Context, actor models.Actor, offerIntentID string) (models.DocumentCounts, error) {
	args := m.Called(ctx, actor, offerIntentID)
	return args.Get(0).(models.DocumentCounts), args.Error(1)
}
func (m *MockDocumentService) Requirements(ctx context.Context, actor models.Actor, offerIntentID string) ([]models.DocumentRequirement, error) {
	args := m.Called(ctx, actor, offerIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DocumentRequirement), args.Error(1)
}
func (m *MockDocumentService) SignedURL(ctx context.Context, actor models.Actor, documentID string) (*services.SignedURL, error) {
	args := m.Called(ctx, actor, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SignedURL), args.Error(1)
}
func (m *MockDocumentService) Delete(ctx context.Context, actor models.Actor, documentID string) error {
	return m.Called(ctx, actor, documentID).Error(0)
}
func (m *MockDocumentService) SetUploadStatus(ctx context.Context, actor models.Actor, documentID string, status models.UploadStatus) (*models.OfferDocument, error) {
	args := m.Called(ctx, actor, documentID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OfferDocument), args.Error(1)
}
func (m *MockDocumentService) Lookup(ctx context.Context, documentID string) (*models.OfferDocument, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OfferDocument), args.Error(1)
}
func (m *MockDocumentService) AttachPreview(ctx context.Context, documentID, previewPath string) error {
	return m.Called(ctx, documentID, previewPath).Error(0)
}
func (m *MockDocumentService) Reconcile(ctx context.Context, now time.Time) (*services.ReconcileReport, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReconcileReport), args.Error(1)
}

// --- MockDashboardService ---
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) dashboard(args mock.Arguments) (*services.Dashboard, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Dashboard), args.Error(1)
}

func (m *MockDashboardService) BuyerDashboard(ctx context.Context, actor models.Actor) (*services.Dashboard, error) {
	return m.dashboard(m.Called(ctx, actor))
}
func (m *MockDashboardService) AgentDashboard(ctx context.Context, actor models.Actor) (*services.Dashboard, error) {
	return m.dashboard(m.Called(ctx, actor))
}
func (m *MockDashboardService) AdminDashboard(ctx context.Context, actor models.Actor) (*services.Dashboard, error) {
	return m.dashboard(m.Called(ctx, actor))
}

// --- MockPropertyService ---
type MockPropertyService struct {
	mock.Mock
}

func (m *MockPropertyService) RecordPropertyData(ctx context.Context, data models.PropertyData) (bool, error) {
	args := m.Called(ctx, data)
	return args.Bool(0), args.Error(1)
}
func (m *MockPropertyService) GetPropertyData(ctx context.Context, mlsID string) (*models.PropertyData, error) {
	args := m.Called(ctx, mlsID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PropertyData), args.Error(1)
}
func (m *MockPropertyService) SaveProperty(ctx context.Context, actor models.Actor, mlsID string) (*models.SavedProperty, error) {
	args := m.Called(ctx, actor, mlsID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SavedProperty), args.Error(1)
}
func (m *MockPropertyService) ListSavedProperties(ctx context.Context, actor models.Actor) ([]models.SavedProperty, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SavedProperty), args.Error(1)
}
func (m *MockPropertyService) RequestTour(ctx context.Context, actor models.Actor, input services.TourInput) (*models.TourRequest, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TourRequest), args.Error(1)
}
func (m *MockPropertyService) ListTours(ctx context.Context, actor models.Actor) ([]models.TourRequest, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TourRequest), args.Error(1)
}

// --- MockProfileService ---
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) EnsureProfile(ctx context.Context, claims *auth.IdentityClaims) (*models.Profile, error) {
	args := m.Called(ctx, claims)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}
func (m *MockProfileService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

// --- MockAnalyticsService ---
type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) Ingest(ctx context.Context, profileID string, batch services.AnalyticsBatch) (int, error) {
	args := m.Called(ctx, profileID, batch)
	return args.Int(0), args.Error(1)
}
