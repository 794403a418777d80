package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/repository"
	"estatelink/marketplace/internal/storage"
)

var fixedNow = time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		DocumentMaxSizeMB:    10,
		DocumentAllowedTypes: []string{"application/pdf", "image/jpeg", "image/png"},
		SignedURLTTL:         time.Hour,
		OrphanBlobMinAge:     time.Hour,
		ConsultationLocation: time.UTC,
		AutoCompleteGrace:    2 * time.Hour,
		AutoCompleteEnabled:  true,
		PropertyCacheTTL:     time.Hour,
		ProfileIDNamespace:   uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8"),
	}
}

// --- offer intents ---

type fakeIntentRepo struct {
	mu        sync.Mutex
	intents   map[string]*models.OfferIntent
	markerErr error
	calls     int
}

func newFakeIntentRepo() *fakeIntentRepo {
	return &fakeIntentRepo{intents: map[string]*models.OfferIntent{}}
}

func (r *fakeIntentRepo) put(intent models.OfferIntent) *models.OfferIntent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if intent.ID == "" {
		intent.GenID()
	}
	r.intents[intent.ID] = &intent
	return &intent
}

func (r *fakeIntentRepo) Insert(_ context.Context, intent *models.OfferIntent) (*models.OfferIntent, error) {
	r.calls++
	intent.GenID()
	copied := *intent
	r.mu.Lock()
	r.intents[intent.ID] = &copied
	r.mu.Unlock()
	return intent, nil
}

func (r *fakeIntentRepo) Get(_ context.Context, id string) (*models.OfferIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	intent, ok := r.intents[id]
	if !ok {
		return nil, fmt.Errorf("offer intent %s: %w", id, repository.ErrNotFound)
	}
	copied := *intent
	return &copied, nil
}

func (r *fakeIntentRepo) List(_ context.Context, filter repository.OfferIntentFilter) ([]models.OfferIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	out := []models.OfferIntent{}
	for _, intent := range r.intents {
		if filter.BuyerID != "" && intent.BuyerID != filter.BuyerID {
			continue
		}
		if filter.AgentID != "" && (intent.AgentID == nil || *intent.AgentID != filter.AgentID) {
			continue
		}
		out = append(out, *intent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeIntentRepo) SetAgent(_ context.Context, id, agentID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return repository.ErrNotFound
	}
	intent.AgentID = &agentID
	intent.UpdatedAt = now
	return nil
}

func (r *fakeIntentRepo) SetMarker(_ context.Context, id string, marker repository.Marker, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markerErr != nil {
		return r.markerErr
	}
	intent, ok := r.intents[id]
	if !ok {
		return repository.ErrNotFound
	}
	switch marker {
	case repository.MarkerConsultationScheduled:
		intent.ConsultationScheduledAt = &at
	case repository.MarkerQuestionnaireCompleted:
		intent.QuestionnaireCompletedAt = &at
	case repository.MarkerAgentSummaryGenerated:
		intent.AgentSummaryGeneratedAt = &at
	default:
		return fmt.Errorf("unknown marker %s", marker)
	}
	return nil
}

// --- consultations ---

type fakeConsultationRepo struct {
	mu       sync.Mutex
	bookings map[string]*models.ConsultationBooking
	writes   int
}

func newFakeConsultationRepo() *fakeConsultationRepo {
	return &fakeConsultationRepo{bookings: map[string]*models.ConsultationBooking{}}
}

func (r *fakeConsultationRepo) put(b models.ConsultationBooking) *models.ConsultationBooking {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == "" {
		b.GenID()
	}
	r.bookings[b.ID] = &b
	return &b
}

func (r *fakeConsultationRepo) Insert(_ context.Context, b *models.ConsultationBooking) (*models.ConsultationBooking, error) {
	if !b.Status.IsValid() {
		return nil, fmt.Errorf("invalid consultation status %q", b.Status)
	}
	b.GenID()
	copied := *b
	r.mu.Lock()
	r.bookings[b.ID] = &copied
	r.writes++
	r.mu.Unlock()
	return b, nil
}

func (r *fakeConsultationRepo) Get(_ context.Context, id string) (*models.ConsultationBooking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, fmt.Errorf("consultation %s: %w", id, repository.ErrNotFound)
	}
	copied := *b
	return &copied, nil
}

func (r *fakeConsultationRepo) latestLocked(offerIntentID string) *models.ConsultationBooking {
	var latest *models.ConsultationBooking
	for _, b := range r.bookings {
		if b.OfferIntentID == offerIntentID && (latest == nil || b.CreatedAt.After(latest.CreatedAt)) {
			latest = b
		}
	}
	return latest
}

func (r *fakeConsultationRepo) Latest(_ context.Context, offerIntentID string) (*models.ConsultationBooking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := r.latestLocked(offerIntentID)
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeConsultationRepo) LatestFor(_ context.Context, ids []string) (map[string]*models.ConsultationBooking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]*models.ConsultationBooking{}
	for _, id := range ids {
		if latest := r.latestLocked(id); latest != nil {
			copied := *latest
			out[id] = &copied
		}
	}
	return out, nil
}

func (r *fakeConsultationRepo) conditional(id string, match func(*models.ConsultationBooking) bool, apply func(*models.ConsultationBooking)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || !match(b) {
		return false, nil
	}
	apply(b)
	r.writes++
	return true, nil
}

func openAndClean(b *models.ConsultationBooking) bool {
	return b.IsOpen() && !b.IssueReported
}

func (r *fakeConsultationRepo) Reschedule(_ context.Context, id string, at, now time.Time) (bool, error) {
	return r.conditional(id, openAndClean, func(b *models.ConsultationBooking) {
		b.ScheduledAt = at
		b.Status = models.ConsultationConfirmed
		b.UpdatedAt = now
	})
}

func (r *fakeConsultationRepo) Complete(_ context.Context, id, method, notes string, now time.Time) (bool, error) {
	return r.conditional(id, openAndClean, func(b *models.ConsultationBooking) {
		b.Status = models.ConsultationCompleted
		b.CompletedAt = &now
		b.CompletionMethod = method
		if notes != "" {
			b.ConsultationNotes = notes
		}
	})
}

func (r *fakeConsultationRepo) ReportIssue(_ context.Context, id, details string, by models.Role, now time.Time) (bool, error) {
	return r.conditional(id, func(b *models.ConsultationBooking) bool {
		return b.Status != models.ConsultationCompleted && !b.IssueReported
	}, func(b *models.ConsultationBooking) {
		b.IssueReported = true
		b.IssueDetails = details
		b.IssueReportedBy = by
	})
}

func (r *fakeConsultationRepo) Cancel(_ context.Context, id string, now time.Time) (bool, error) {
	return r.conditional(id, (*models.ConsultationBooking).IsOpen, func(b *models.ConsultationBooking) {
		b.Status = models.ConsultationCancelled
		b.CancelledAt = &now
	})
}

func (r *fakeConsultationRepo) DueForAutoComplete(_ context.Context, before time.Time) ([]models.ConsultationBooking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ConsultationBooking
	for _, b := range r.bookings {
		if (b.Status == models.ConsultationScheduled || b.Status == models.ConsultationConfirmed) && !b.IssueReported && !b.ScheduledAt.After(before) {
			out = append(out, *b)
		}
	}
	return out, nil
}

// --- documents ---

type fakeDocumentRepo struct {
	mu        sync.Mutex
	docs      map[string]*models.OfferDocument
	insertErr error
	deleteErr error
	seq       int
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: map[string]*models.OfferDocument{}}
}

func (r *fakeDocumentRepo) Insert(_ context.Context, doc *models.OfferDocument) (*models.OfferDocument, error) {
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc.GenID()
	r.seq++
	copied := *doc
	copied.CreatedAt = copied.CreatedAt.Add(time.Duration(r.seq) * time.Nanosecond)
	r.docs[doc.ID] = &copied
	return doc, nil
}

func (r *fakeDocumentRepo) Get(_ context.Context, id string) (*models.OfferDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, repository.ErrNotFound)
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeDocumentRepo) ListByIntent(_ context.Context, offerIntentID string) ([]models.OfferDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.OfferDocument{}
	for _, d := range r.docs {
		if d.OfferIntentID == offerIntentID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeDocumentRepo) CountsFor(ctx context.Context, ids []string) (map[string]models.DocumentCounts, error) {
	out := map[string]models.DocumentCounts{}
	for _, id := range ids {
		docs, _ := r.ListByIntent(ctx, id)
		if len(docs) > 0 {
			out[id] = models.CountDocuments(docs)
		}
	}
	return out, nil
}

func (r *fakeDocumentRepo) SetUploadStatus(_ context.Context, id string, status models.UploadStatus, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	doc.UploadStatus = status
	doc.UpdatedAt = now
	return nil
}

func (r *fakeDocumentRepo) SetPreviewPath(_ context.Context, id, path string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	doc.PreviewPath = path
	return nil
}

func (r *fakeDocumentRepo) Delete(_ context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *fakeDocumentRepo) StoragePaths(_ context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]string{}
	for id, d := range r.docs {
		out[id] = d.StoragePath
	}
	return out, nil
}

// --- blobs ---

type fakeBlob struct {
	data        []byte
	contentType string
	modified    time.Time
}

type fakeBlobStore struct {
	mu        sync.Mutex
	blobs     map[string]fakeBlob
	calls     int
	uploadErr error
	removeErr error
	now       time.Time
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string]fakeBlob{}, now: fixedNow}
}

var _ storage.IBlobStore = (*fakeBlobStore)(nil)

func (s *fakeBlobStore) Upload(_ context.Context, key string, body io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: declared %d, got %d", size, len(data))
	}
	s.mu.Lock()
	s.blobs[key] = fakeBlob{data: data, contentType: contentType, modified: s.now}
	s.mu.Unlock()
	return nil
}

func (s *fakeBlobStore) Remove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.removeErr != nil {
		return s.removeErr
	}
	for _, k := range keys {
		delete(s.blobs, k)
	}
	return nil
}

func (s *fakeBlobStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return fmt.Sprintf("https://blobs.example.com/%s?expires=%d&n=%d", key, int(ttl.Seconds()), s.calls), nil
}

func (s *fakeBlobStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (s *fakeBlobStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[key]
	return ok, nil
}

func (s *fakeBlobStore) List(_ context.Context, prefix string) ([]storage.BlobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.BlobInfo
	for k, b := range s.blobs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.BlobInfo{Key: k, Size: int64(len(b.data)), LastModified: b.modified})
		}
	}
	return out, nil
}

func (s *fakeBlobStore) has(key string) bool {
	ok, _ := s.Exists(context.Background(), key)
	return ok
}

// --- jobs ---

type mockJobs struct {
	mock.Mock
}

func (m *mockJobs) NotifyConsultation(ctx context.Context, n ConsultationNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockJobs) GeneratePreview(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

// permissiveJobs accepts every call.
func permissiveJobs() *mockJobs {
	m := &mockJobs{}
	m.On("NotifyConsultation", mock.Anything, mock.Anything).Return(nil)
	m.On("GeneratePreview", mock.Anything, mock.Anything).Return(nil)
	return m
}

var errBoom = errors.New("boom")

// pdfBytes returns a PDF-looking payload of exactly size bytes.
func pdfBytes(size int) []byte {
	head := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	if size < len(head) {
		return head[:size]
	}
	return append(head, bytes.Repeat([]byte{' '}, size-len(head))...)
}

// --- profiles and properties ---

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: map[string]*models.Profile{}}
}

func (r *fakeProfileRepo) Upsert(_ context.Context, p *models.Profile) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = fixedNow
	}
	p.UpdatedAt = fixedNow
	copied := *p
	r.profiles[p.ID] = &copied
	return p, nil
}

func (r *fakeProfileRepo) Get(_ context.Context, id string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

type fakePropertyRepo struct {
	mu    sync.Mutex
	saved []models.SavedProperty
	tours []models.TourRequest
}

func (r *fakePropertyRepo) SaveProperty(_ context.Context, saved *models.SavedProperty) (*models.SavedProperty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.saved {
		if s.BuyerID == saved.BuyerID && s.MLSID == saved.MLSID {
			return nil, repository.ErrAlreadyExists
		}
	}
	saved.GenID()
	r.saved = append(r.saved, *saved)
	return saved, nil
}

func (r *fakePropertyRepo) ListSaved(_ context.Context, buyerID string) ([]models.SavedProperty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.SavedProperty{}
	for _, s := range r.saved {
		if s.BuyerID == buyerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakePropertyRepo) InsertTour(_ context.Context, tour *models.TourRequest) (*models.TourRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tour.GenID()
	r.tours = append(r.tours, *tour)
	return tour, nil
}

func (r *fakePropertyRepo) ListTours(_ context.Context, buyerID string) ([]models.TourRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.TourRequest{}
	for _, t := range r.tours {
		if t.BuyerID == buyerID {
			out = append(out, t)
		}
	}
	return out, nil
}

// The counters wrap fakes to count the queries a dashboard issues.
type queryCounter struct {
	repository.IOfferIntentRepository
	lists int
}

func (q *queryCounter) List(ctx context.Context, filter repository.OfferIntentFilter) ([]models.OfferIntent, error) {
	q.lists++
	return q.IOfferIntentRepository.List(ctx, filter)
}

type latestCounter struct {
	repository.IConsultationRepository
	calls int
}

func (l *latestCounter) LatestFor(ctx context.Context, ids []string) (map[string]*models.ConsultationBooking, error) {
	l.calls++
	return l.IConsultationRepository.LatestFor(ctx, ids)
}

func (l *latestCounter) Latest(context.Context, string) (*models.ConsultationBooking, error) {
	return nil, errors.New("dashboard must not load bookings one by one")
}

type countsCounter struct {
	repository.IDocumentRepository
	calls int
}

func (c *countsCounter) CountsFor(ctx context.Context, ids []string) (map[string]models.DocumentCounts, error) {
	c.calls++
	return c.IDocumentRepository.CountsFor(ctx, ids)
}
