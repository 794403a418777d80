package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"estatelink/marketplace/internal/api"
	"estatelink/marketplace/internal/cache"
	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/db"
	"estatelink/marketplace/internal/email"
	"estatelink/marketplace/internal/logging"
	"estatelink/marketplace/internal/repository"
	"estatelink/marketplace/internal/services"
	"estatelink/marketplace/internal/storage"
	"estatelink/marketplace/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (document previews), 'all' (default)")

func main() {
	flag.Parse()
	log := logging.GetLogger()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Errorf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	cancelIndex()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Errorf("Error disconnecting from Redis: %v", err)
		}
	}()

	blobStore, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize S3 storage: %v", err)
	}

	// Initialize Email Sender
	var primaryEmailSender email.Sender
	if cfg.MockServices {
		log.Info("MOCK_SERVICES enabled: using Redis email sender")
		primaryEmailSender = email.NewRedisSender(redisClient, cfg)
	} else {
		primaryEmailSender = email.NewSMTPSender(cfg)
	}
	compositeSender := email.NewCompositeEmailSender(primaryEmailSender)
	if cfg.EmailLogPath != "" {
		fileSender, err := email.NewFileEmailSender(cfg.EmailLogPath)
		if err != nil {
			log.Warnf("Failed to initialize file email sender (LOG_EMAILS=%q): %v. Proceeding without file logging.", cfg.EmailLogPath, err)
		} else {
			compositeSender.AddSender(fileSender)
			log.Infof("Copying outgoing email to %s", cfg.EmailLogPath)
		}
	}

	// Repositories
	intentRepo := repository.NewOfferIntentRepository(mongoDb)
	consultationRepo := repository.NewConsultationRepository(mongoDb)
	documentRepo := repository.NewDocumentRepository(mongoDb)
	profileRepo := repository.NewProfileRepository(mongoDb)
	propertyRepo := repository.NewPropertyRepository(mongoDb)

	// Task client and enqueuer
	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()
	enqueuer := tasks.NewEnqueuer(taskClient)

	// Services
	locker := cache.NewRedisLocker(redisClient, cache.DefaultLockTTL)
	profileService := services.NewProfileService(profileRepo, cfg.ProfileIDNamespace)
	offerService := services.NewOfferIntentService(intentRepo, consultationRepo)
	consultationService := services.NewConsultationService(cfg, intentRepo, consultationRepo, locker, enqueuer)
	documentService := services.NewDocumentService(cfg, intentRepo, documentRepo, blobStore, enqueuer)
	svc := api.Services{
		Profiles:      profileService,
		Offers:        offerService,
		Consultations: consultationService,
		Documents:     documentService,
		Dashboards:    services.NewDashboardService(cfg, intentRepo, consultationRepo, documentRepo),
		Properties:    services.NewPropertyService(cfg, redisClient, propertyRepo),
		Analytics: services.NewAnalyticsService(services.NewCompositeAnalyticsSink(
			services.NewRedisAnalyticsSink(redisClient),
			services.NewLogAnalyticsSink(log),
		)),
	}

	taskProcessor := tasks.NewTaskProcessor(cfg, compositeSender, profileService, documentService, consultationService, blobStore)

	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(cfg, redisClient, enqueuer, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Infof("Service API listening on :%s", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
		log.Info("Service API server stopped")
	}()

	// --- Mode-specific servers ---
	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server
	var imageTaskSrv *asynq.Server
	var scheduler *asynq.Scheduler

	log.Infof("Starting application in '%s' mode", cfg.RunMode)

	apiMode := func() {
		mainApiSrv = &http.Server{
			Addr:              ":" + cfg.ApiPort,
			Handler:           api.SetupRouter(cfg, svc),
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Infof("Main API listening on :%s", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			log.Info("Main API server stopped")
		}()
	}

	runWorker := func(name string, srv *asynq.Server, mux *asynq.ServeMux) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Infof("%s task server starting", name)
			if err := srv.Run(mux); err != nil {
				log.Fatalf("%s task server error: %v", name, err)
			}
			log.Infof("%s task server stopped", name)
		}()
	}

	bgMode := func() {
		var mux *asynq.ServeMux
		backgroundTaskSrv, mux = tasks.SetupServer(redisClient, taskProcessor, false, true)
		runWorker("Background", backgroundTaskSrv, mux)

		scheduler, err = tasks.SetupScheduler(redisClient, cfg)
		if err != nil {
			log.Fatalf("Failed to set up scheduler: %v", err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	imgMode := func() {
		var mux *asynq.ServeMux
		imageTaskSrv, mux = tasks.SetupServer(redisClient, taskProcessor, true, false)
		runWorker("Preview", imageTaskSrv, mux)
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "img":
		imgMode()
	case "all":
		apiMode()
		bgMode()
		imgMode()
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infof("Received signal: %s. Shutting down gracefully...", sig)
	case <-shutdownChan:
		log.Info("Shutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Errorf("Service API server shutdown error: %v", err)
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Errorf("Main API server shutdown error: %v", err)
		}
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	if backgroundTaskSrv != nil {
		backgroundTaskSrv.Shutdown()
	}
	if imageTaskSrv != nil {
		imageTaskSrv.Shutdown()
	}

	log.Info("Waiting for servers to stop...")
	wg.Wait()

	log.Info("Server gracefully stopped")
}
