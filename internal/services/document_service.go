package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/logging"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/repository"
	"estatelink/marketplace/internal/storage"
)

// sniffLen is how much of an upload is inspected to detect its real type.
const sniffLen = 3072

// PreviewSuffix is appended to a document's storage path to name its thumbnail.
const PreviewSuffix = ".preview.jpg"

// UploadInput is one file submitted for an offer intent.
type UploadInput struct {
	OfferIntentID string
	DocumentType  models.DocumentType
	FileName      string
	FileSize      int64
	ContentType   string
	Description   string
	Content       io.Reader
}

// UploadResult is the stored document plus the refreshed list for its intent.
type UploadResult struct {
	Document  *models.OfferDocument  `json:"document"`
	Documents []models.OfferDocument `json:"documents"`
	Counts    models.DocumentCounts  `json:"counts"`
}

// SignedURL is a time-limited link to a document blob.
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReconcileReport summarizes one reconciliation sweep.
type ReconcileReport struct {
	RecordsChecked int `json:"records_checked"`
	RecordsRemoved int `json:"records_removed"`
	BlobsChecked   int `json:"blobs_checked"`
	BlobsRemoved   int `json:"blobs_removed"`
}

// IDocumentService tracks the supporting documents of offer intents.
type IDocumentService interface {
	Upload(ctx context.Context, actor models.Actor, input UploadInput) (*UploadResult, error)
	List(ctx context.Context, actor models.Actor, offerIntentID string) ([]models.OfferDocument, error)
	Counts(ctx context.Context, actor models.Actor, offerIntentID string) (models.DocumentCounts, error)
	Requirements(ctx context.Context, actor models.Actor, offerIntentID string) ([]models.DocumentRequirement, error)
	SignedURL(ctx context.Context, actor models.Actor, documentID string) (*SignedURL, error)
	Delete(ctx context.Context, actor models.Actor, documentID string) error
	SetUploadStatus(ctx context.Context, actor models.Actor, documentID string, status models.UploadStatus) (*models.OfferDocument, error)
	Lookup(ctx context.Context, documentID string) (*models.OfferDocument, error)
	AttachPreview(ctx context.Context, documentID, previewPath string) error
	Reconcile(ctx context.Context, now time.Time) (*ReconcileReport, error)
}

type documentService struct {
	cfg     *config.Config
	intents repository.IOfferIntentRepository
	docs    repository.IDocumentRepository
	blobs   storage.IBlobStore
	jobs    IBackgroundJobs
	log     *logrus.Logger
	now     func() time.Time
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(
	cfg *config.Config,
	intents repository.IOfferIntentRepository,
	docs repository.IDocumentRepository,
	blobs storage.IBlobStore,
	jobs IBackgroundJobs,
) IDocumentService {
	return &documentService{
		cfg:     cfg,
		intents: intents,
		docs:    docs,
		blobs:   blobs,
		jobs:    jobs,
		log:     logging.GetLogger(),
		now:     utcNow,
	}
}

func (s *documentService) isAllowedType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, allowed := range s.cfg.DocumentAllowedTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}

func (s *documentService) allowedTypesLabel() string {
	labels := make([]string, 0, len(s.cfg.DocumentAllowedTypes))
	for _, t := range s.cfg.DocumentAllowedTypes {
		labels = append(labels, strings.ToUpper(strings.TrimPrefix(strings.TrimPrefix(t, "application/"), "image/")))
	}
	return strings.Join(labels, ", ")
}

// validateUpload runs every check that needs no network call. It returns the
// sniffed head of the content, which the caller must send before the rest.
func (s *documentService) validateUpload(input UploadInput) ([]byte, *mimetype.MIME, error) {
	if input.DocumentType == "" {
		return nil, nil, invalid("document_type", "please select a document type")
	}
	if !input.DocumentType.IsValid() {
		return nil, nil, invalid("document_type", "unknown document type %q", input.DocumentType)
	}
	if input.FileSize <= 0 || input.Content == nil {
		return nil, nil, invalid("file", "file is empty")
	}
	if input.FileSize > s.cfg.DocumentMaxSizeBytes() {
		return nil, nil, invalid("file", "file size must be less than %dMB", s.cfg.DocumentMaxSizeMB)
	}
	if !s.isAllowedType(input.ContentType) {
		return nil, nil, invalid("file", "only %s files are allowed", s.allowedTypesLabel())
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(input.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	detected := mimetype.Detect(head)
	for _, allowed := range s.cfg.DocumentAllowedTypes {
		if detected.Is(allowed) {
			return head, detected, nil
		}
	}
	return nil, nil, invalid("file", "file content is %s, only %s files are allowed", detected.String(), s.allowedTypesLabel())
}

// StoragePath is the blob key of a document: <intent>/<type>/<unix millis><ext>.
func StoragePath(offerIntentID string, docType models.DocumentType, at time.Time, ext string) string {
	return fmt.Sprintf("%s/%s/%d%s", offerIntentID, docType, at.UnixMilli(), ext)
}

// IsDocumentKey reports whether key has the StoragePath shape, optionally
// followed by PreviewSuffix. Other keys in the bucket belong to someone else.
func IsDocumentKey(key string) bool {
	parts := strings.Split(strings.TrimSuffix(key, PreviewSuffix), "/")
	if len(parts) != 3 || parts[0] == "" || !models.DocumentType(parts[1]).IsValid() {
		return false
	}
	name := parts[2]
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		name = name[:dot]
	}
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Upload validates, writes the blob, then the record. When the record insert
// fails the blob is removed again; a failed removal is left to Reconcile.
func (s *documentService) Upload(ctx context.Context, actor models.Actor, input UploadInput) (*UploadResult, error) {
	head, detected, err := s.validateUpload(input)
	if err != nil {
		return nil, err
	}
	intent, err := loadIntent(ctx, s.intents, actor, input.OfferIntentID)
	if err != nil {
		return nil, err
	}
	entry, _ := models.CatalogueEntry(input.DocumentType)

	now := s.now()
	ext := strings.ToLower(filepath.Ext(input.FileName))
	if ext == "" {
		ext = detected.Extension()
	}
	path := StoragePath(intent.ID, input.DocumentType, now, ext)
	fields := logrus.Fields{"offer_intent_id": intent.ID, "storage_path": path, "document_type": input.DocumentType}

	body := io.MultiReader(bytes.NewReader(head), input.Content)
	if err := s.blobs.Upload(ctx, path, body, input.FileSize, detected.String()); err != nil {
		logging.LogError(s.log, "documents", "Upload", "blob write failed", fields, err)
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}

	doc, err := s.docs.Insert(ctx, &models.OfferDocument{
		OfferIntentID: intent.ID,
		BuyerID:       intent.BuyerID,
		AgentID:       intent.AgentID,
		FileName:      filepath.Base(input.FileName),
		FileSize:      input.FileSize,
		FileType:      detected.String(),
		StoragePath:   path,
		DocumentType:  input.DocumentType,
		UploadStatus:  models.UploadUploaded,
		IsRequired:    entry.Required,
		IsSensitive:   entry.Sensitive,
		Description:   strings.TrimSpace(input.Description),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		logging.LogError(s.log, "documents", "Upload", "record insert failed, removing blob", fields, err)
		if rmErr := s.blobs.Remove(ctx, path); rmErr != nil {
			logging.LogError(s.log, "documents", "Upload", "compensating blob delete failed, left for reconciliation", fields, rmErr)
		}
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}
	s.log.WithFields(fields).WithField("document_id", doc.ID).Info("document uploaded")

	if s.jobs != nil && (detected.Is("image/jpeg") || detected.Is("image/png")) {
		if err := s.jobs.GeneratePreview(ctx, doc.ID); err != nil {
			logging.LogError(s.log, "documents", "Upload", "failed to enqueue preview", fields, err)
		}
	}

	docs, err := s.docs.ListByIntent(ctx, intent.ID)
	if err != nil {
		return nil, err
	}
	return &UploadResult{Document: doc, Documents: docs, Counts: models.CountDocuments(docs)}, nil
}

func (s *documentService) List(ctx context.Context, actor models.Actor, offerIntentID string) ([]models.OfferDocument, error) {
	if _, err := loadIntent(ctx, s.intents, actor, offerIntentID); err != nil {
		return nil, err
	}
	return s.docs.ListByIntent(ctx, offerIntentID)
}

func (s *documentService) Counts(ctx context.Context, actor models.Actor, offerIntentID string) (models.DocumentCounts, error) {
	if _, err := loadIntent(ctx, s.intents, actor, offerIntentID); err != nil {
		return models.DocumentCounts{}, err
	}
	counts, err := s.docs.CountsFor(ctx, []string{offerIntentID})
	if err != nil {
		return models.DocumentCounts{}, err
	}
	return counts[offerIntentID], nil
}

func (s *documentService) Requirements(ctx context.Context, actor models.Actor, offerIntentID string) ([]models.DocumentRequirement, error) {
	docs, err := s.List(ctx, actor, offerIntentID)
	if err != nil {
		return nil, err
	}
	return models.Requirements(docs), nil
}

// loadDocument fetches a document whose intent the actor participates in.
func (s *documentService) loadDocument(ctx context.Context, actor models.Actor, documentID string) (*models.OfferDocument, *models.OfferIntent, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	intent, err := loadIntent(ctx, s.intents, actor, doc.OfferIntentID)
	if err != nil {
		return nil, nil, err
	}
	return doc, intent, nil
}

// SignedURL signs a fresh URL on every call.
func (s *documentService) SignedURL(ctx context.Context, actor models.Actor, documentID string) (*SignedURL, error) {
	doc, _, err := s.loadDocument(ctx, actor, documentID)
	if err != nil {
		return nil, err
	}
	url, err := s.blobs.PresignGet(ctx, doc.StoragePath, s.cfg.SignedURLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign document url: %w", err)
	}
	return &SignedURL{URL: url, ExpiresAt: s.now().Add(s.cfg.SignedURLTTL)}, nil
}

// Delete removes the blobs first, then the record. A record left behind after
// its blob is gone is cleaned up by Reconcile.
func (s *documentService) Delete(ctx context.Context, actor models.Actor, documentID string) error {
	doc, _, err := s.loadDocument(ctx, actor, documentID)
	if err != nil {
		return err
	}
	fields := logrus.Fields{"document_id": doc.ID, "offer_intent_id": doc.OfferIntentID, "storage_path": doc.StoragePath}

	keys := []string{doc.StoragePath}
	if doc.PreviewPath != "" {
		keys = append(keys, doc.PreviewPath)
	}
	if err := s.blobs.Remove(ctx, keys...); err != nil {
		logging.LogError(s.log, "documents", "Delete", "blob delete failed", fields, err)
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if err := s.docs.Delete(ctx, doc.ID); err != nil {
		logging.LogError(s.log, "documents", "Delete", "record delete failed after blob removal, left for reconciliation", fields, err)
		return fmt.Errorf("failed to delete document: %w", err)
	}
	s.log.WithFields(fields).Info("document deleted")
	return nil
}

// SetUploadStatus is the agent's review decision on a document.
func (s *documentService) SetUploadStatus(ctx context.Context, actor models.Actor, documentID string, status models.UploadStatus) (*models.OfferDocument, error) {
	if !status.IsValid() {
		return nil, invalid("upload_status", "unknown upload status %q", status)
	}
	doc, intent, err := s.loadDocument(ctx, actor, documentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(intent.IsAssignedAgent(actor), "review document"); err != nil {
		return nil, err
	}
	if err := s.docs.SetUploadStatus(ctx, doc.ID, status, s.now()); err != nil {
		return nil, fmt.Errorf("failed to update document status: %w", err)
	}
	return s.docs.Get(ctx, doc.ID)
}

// Lookup reads a document without an actor; background jobs only.
func (s *documentService) Lookup(ctx context.Context, documentID string) (*models.OfferDocument, error) {
	return s.docs.Get(ctx, documentID)
}

func (s *documentService) AttachPreview(ctx context.Context, documentID, previewPath string) error {
	return s.docs.SetPreviewPath(ctx, documentID, previewPath, s.now())
}

// Reconcile removes records whose blob is gone and document blobs nobody references.
// Unreferenced blobs younger than OrphanBlobMinAge are kept because an upload
// may still be between its blob write and its record insert. Safe to rerun.
func (s *documentService) Reconcile(ctx context.Context, now time.Time) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	paths, err := s.docs.StoragePaths(ctx)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]bool, len(paths))
	for id, path := range paths {
		report.RecordsChecked++
		exists, err := s.blobs.Exists(ctx, path)
		if err != nil {
			return report, err
		}
		if exists {
			referenced[path] = true
			continue
		}
		if err := s.docs.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return report, err
		}
		report.RecordsRemoved++
		s.log.WithFields(logrus.Fields{"document_id": id, "storage_path": path}).Warn("removed document record without blob")
	}

	blobs, err := s.blobs.List(ctx, "")
	if err != nil {
		return report, err
	}
	cutoff := now.Add(-s.cfg.OrphanBlobMinAge)
	var orphans []string
	for _, blob := range blobs {
		if !IsDocumentKey(blob.Key) {
			continue
		}
		report.BlobsChecked++
		owner := strings.TrimSuffix(blob.Key, PreviewSuffix)
		if referenced[owner] || blob.LastModified.After(cutoff) {
			continue
		}
		orphans = append(orphans, blob.Key)
	}
	if len(orphans) > 0 {
		if err := s.blobs.Remove(ctx, orphans...); err != nil {
			return report, err
		}
		report.BlobsRemoved = len(orphans)
		s.log.WithField("keys", orphans).Warn("removed orphaned blobs")
	}
	return report, nil
}
