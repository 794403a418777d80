package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/email"
	"estatelink/marketplace/internal/logging"
	"estatelink/marketplace/internal/services"
	"estatelink/marketplace/internal/storage"
)

// Task types.
const (
	TypeNotificationDeliver = "notification:deliver"
	TypeDocumentPreview     = "document:preview"
	TypeAutoComplete        = "consultation:auto_complete"
	TypeDocumentReconcile   = "document:reconcile"
)

// Queues.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
	QueueImages   = "images"
)

// --- Task Client (Enqueuing tasks) ---

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// IAsynqClient is the part of *asynq.Client the Enqueuer needs.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer turns service requests for background work into asynq tasks.
type Enqueuer struct {
	client IAsynqClient
}

var _ services.IBackgroundJobs = (*Enqueuer)(nil)

func NewEnqueuer(client IAsynqClient) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) NotifyConsultation(ctx context.Context, n services.ConsultationNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}
	_, err = e.client.EnqueueContext(ctx, asynq.NewTask(TypeNotificationDeliver, payload), asynq.Queue(QueueCritical), asynq.MaxRetry(5))
	return err
}

// PreviewTaskPayload names the document to thumbnail.
type PreviewTaskPayload struct {
	DocumentID string `json:"document_id"`
}

func (e *Enqueuer) GeneratePreview(ctx context.Context, documentID string) error {
	payload, err := json.Marshal(PreviewTaskPayload{DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("failed to marshal preview payload: %w", err)
	}
	// One preview task per document at a time.
	_, err = e.client.EnqueueContext(ctx, asynq.NewTask(TypeDocumentPreview, payload),
		asynq.Queue(QueueImages), asynq.TaskID("preview:"+documentID), asynq.MaxRetry(3))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// RunNow enqueues a sweep task immediately. Used by the service API.
func (e *Enqueuer) RunNow(ctx context.Context, taskType string) (string, error) {
	switch taskType {
	case TypeAutoComplete, TypeDocumentReconcile:
	default:
		return "", fmt.Errorf("task %q cannot be triggered manually", taskType)
	}
	info, err := e.client.EnqueueContext(ctx, asynq.NewTask(taskType, nil), asynq.Queue(QueueLow), asynq.MaxRetry(1))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor holds the dependencies of the task handlers.
type TaskProcessor struct {
	cfg           *config.Config
	emailSender   email.Sender
	profiles      services.IProfileService
	documents     services.IDocumentService
	consultations services.IConsultationService
	blobs         storage.IBlobStore
	log           *logrus.Logger
	now           func() time.Time
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	profiles services.IProfileService,
	documents services.IDocumentService,
	consultations services.IConsultationService,
	blobs storage.IBlobStore,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:           cfg,
		emailSender:   emailSender,
		profiles:      profiles,
		documents:     documents,
		consultations: consultations,
		blobs:         blobs,
		log:           logging.GetLogger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetupServer builds the asynq server and its mux for the given worker kinds.
// It returns nil when neither kind is requested.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		return nil, nil
	}

	queues := map[string]int{}
	mux := asynq.NewServeMux()
	if isBgWorker {
		queues[QueueCritical] = 6
		queues[QueueDefault] = 3
		queues[QueueLow] = 1
		mux.HandleFunc(TypeNotificationDeliver, processor.HandleNotificationTask)
		mux.HandleFunc(TypeAutoComplete, processor.HandleAutoCompleteTask)
		mux.HandleFunc(TypeDocumentReconcile, processor.HandleReconcileTask)
		processor.log.Info("registered background task handlers")
	}
	if isImageWorker {
		queues[QueueImages] = 5
		mux.HandleFunc(TypeDocumentPreview, processor.HandlePreviewTask)
		processor.log.Info("registered image processing task handlers")
	}

	srv := asynq.NewServer(redisOpt(rdb), asynq.Config{
		Queues: queues,
		Logger: processor.log,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			processor.log.WithFields(logrus.Fields{
				"task_type": task.Type(),
				"payload":   string(task.Payload()),
				"retried":   retried,
				"max_retry": maxRetry,
			}).WithError(err).Error("task failed")
		}),
	})
	return srv, mux
}

// SetupScheduler registers the periodic sweeps.
func SetupScheduler(rdb *redis.Client, cfg *config.Config) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt(rdb), &asynq.SchedulerOpts{
		Logger:   logging.GetLogger(),
		Location: time.UTC,
	})
	if _, err := scheduler.Register(cfg.AutoCompleteSweepCronspec, asynq.NewTask(TypeAutoComplete, nil), asynq.Queue(QueueLow), asynq.MaxRetry(1)); err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", TypeAutoComplete, err)
	}
	if _, err := scheduler.Register(cfg.ReconcileSweepCronspec, asynq.NewTask(TypeDocumentReconcile, nil), asynq.Queue(QueueLow), asynq.MaxRetry(1)); err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", TypeDocumentReconcile, err)
	}
	return scheduler, nil
}

// --- Task Handlers ---

// HandleNotificationTask emails a consultation notification to every recipient
// that has a profile with an address.
func (p *TaskProcessor) HandleNotificationTask(ctx context.Context, t *asynq.Task) error {
	var n services.ConsultationNotification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return fmt.Errorf("failed to unmarshal notification payload: %v: %w", err, asynq.SkipRetry)
	}
	fields := logrus.Fields{"event": n.Event, "booking_id": n.BookingID}

	var errs []error
	sent := 0
	for _, id := range n.RecipientIDs {
		profile, err := p.profiles.GetProfile(ctx, id)
		if errors.Is(err, services.ErrNotFound) {
			p.log.WithFields(fields).WithField("profile_id", id).Warn("notification recipient has no profile, skipping")
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if profile.Email == "" {
			continue
		}

		at := n.ScheduledAt
		if p.cfg.ConsultationLocation != nil {
			at = at.In(p.cfg.ConsultationLocation)
		}
		subject, body, err := email.RenderConsultation(email.ConsultationEmail{
			AppName:         p.cfg.AppName,
			Event:           string(n.Event),
			RecipientName:   profile.Name,
			PropertyAddress: n.PropertyAddress,
			ScheduledAt:     at,
			MeetingLink:     n.MeetingLink,
			Details:         n.Details,
		})
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		to := []string{profile.Email}
		raw := email.Compose(p.cfg.SmtpFromAddress, to, subject, string(n.Event), body, p.now())
		if err := p.emailSender.Send(ctx, to, subject, raw); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}

	if err := errors.Join(errs...); err != nil {
		// Retrying may email some recipients twice; a missed notification is worse.
		logging.LogError(p.log, "tasks", "HandleNotificationTask", "notification delivery incomplete", fields, err)
		return err
	}
	p.log.WithFields(fields).WithField("sent", sent).Info("notification delivered")
	return nil
}

// HandlePreviewTask renders a JPEG thumbnail of an image document and records it.
func (p *TaskProcessor) HandlePreviewTask(ctx context.Context, t *asynq.Task) error {
	var payload PreviewTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal preview payload: %v: %w", err, asynq.SkipRetry)
	}

	doc, err := p.documents.Lookup(ctx, payload.DocumentID)
	if errors.Is(err, services.ErrNotFound) {
		return fmt.Errorf("document %s is gone: %w", payload.DocumentID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	if doc.PreviewPath != "" {
		return nil
	}
	fields := logrus.Fields{"document_id": doc.ID, "storage_path": doc.StoragePath}

	body, err := p.blobs.Download(ctx, doc.StoragePath)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return fmt.Errorf("blob %s not found: %w", doc.StoragePath, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("failed to download document: %w", err)
	}
	defer body.Close()

	img, format, err := image.Decode(io.LimitReader(body, p.cfg.DocumentMaxSizeBytes()+1))
	if err != nil {
		return fmt.Errorf("unsupported image format or corrupt image: %v: %w", err, asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.PreviewMaxDimension)
	thumb := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}

	previewPath := doc.StoragePath + services.PreviewSuffix
	if err := p.blobs.Upload(ctx, previewPath, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/jpeg"); err != nil {
		return fmt.Errorf("failed to upload preview: %w", err)
	}
	if err := p.documents.AttachPreview(ctx, doc.ID, previewPath); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			// The document was deleted meanwhile; Reconcile collects the orphaned preview.
			return fmt.Errorf("document %s deleted during preview: %w", doc.ID, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to record preview: %w", err)
	}

	p.log.WithFields(fields).WithFields(logrus.Fields{
		"format": format,
		"width":  thumb.Bounds().Dx(),
		"height": thumb.Bounds().Dy(),
	}).Info("document preview generated")
	return nil
}

// HandleAutoCompleteTask completes bookings whose grace period has elapsed.
func (p *TaskProcessor) HandleAutoCompleteTask(ctx context.Context, _ *asynq.Task) error {
	n, err := p.consultations.AutoCompleteDue(ctx, p.now())
	p.log.WithField("completed", n).Info("auto-complete sweep finished")
	return err
}

// HandleReconcileTask removes document records and blobs that lost their counterpart.
func (p *TaskProcessor) HandleReconcileTask(ctx context.Context, _ *asynq.Task) error {
	report, err := p.documents.Reconcile(ctx, p.now())
	if report != nil {
		p.log.WithFields(logrus.Fields{
			"records_checked": report.RecordsChecked,
			"records_removed": report.RecordsRemoved,
			"blobs_checked":   report.BlobsChecked,
			"blobs_removed":   report.BlobsRemoved,
		}).Info("document reconcile sweep finished")
	}
	return err
}
