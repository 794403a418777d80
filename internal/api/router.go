package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"estatelink/marketplace/internal/api/handlers"
	"estatelink/marketplace/internal/api/middleware"
	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/email"
	"estatelink/marketplace/internal/logging"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/services"
	"estatelink/marketplace/internal/tasks"
)

// Services are the domain services exposed over HTTP.
type Services struct {
	Profiles      services.IProfileService
	Offers        services.IOfferIntentService
	Consultations services.IConsultationService
	Documents     services.IDocumentService
	Dashboards    services.IDashboardService
	Properties    services.IPropertyService
	Analytics     services.IAnalyticsService
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, svc Services) *gin.Engine {
	r := gin.Default()
	// Multipart parts past this size are spooled to disk.
	r.MaxMultipartMemory = 8 << 20

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(rateLimiter.Limit())

	jsonApiHandler := handlers.NewJsonApiHandler(cfg, svc.Profiles, svc.Offers, svc.Consultations)
	offerHandler := handlers.NewRestOfferHandler(svc.Offers)
	consultationHandler := handlers.NewRestConsultationHandler(svc.Consultations)
	documentHandler := handlers.NewRestDocumentHandler(cfg, svc.Documents)
	dashboardHandler := handlers.NewRestDashboardHandler(svc.Dashboards)
	propertyHandler := handlers.NewRestPropertyHandler(svc.Properties)
	profileHandler := handlers.NewRestProfileHandler(svc.Profiles, svc.Analytics)

	staff := middleware.RequireRole(models.RoleAgent, models.RoleAdmin)

	v1 := r.Group("/v1")
	{
		// Public Routes
		v1.POST("/api", jsonApiHandler.HandleRequest)
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
		v1.GET("/documents/catalogue", documentHandler.Catalogue)

		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret, svc.Profiles))
		{
			authRequired.GET("/me", profileHandler.GetMe)
			authRequired.POST("/analytics", profileHandler.IngestAnalytics)

			authRequired.POST("/offers", offerHandler.CreateOffer)
			authRequired.GET("/offers/:id", offerHandler.GetOffer)
			authRequired.GET("/offers/:id/status", offerHandler.GetOfferStatus)
			authRequired.POST("/offers/:id/assign", staff, offerHandler.AssignAgent)
			authRequired.POST("/offers/:id/questionnaire-complete", offerHandler.MarkQuestionnaireCompleted)
			authRequired.POST("/offers/:id/summary", middleware.RequireRole(models.RoleAgent), offerHandler.MarkAgentSummaryGenerated)

			authRequired.POST("/offers/:id/consultations", staff, consultationHandler.Schedule)
			authRequired.GET("/offers/:id/consultations/latest", consultationHandler.Latest)
			authRequired.POST("/consultations/:id/reschedule", consultationHandler.Reschedule)
			authRequired.POST("/consultations/:id/complete", staff, consultationHandler.Complete)
			authRequired.POST("/consultations/:id/report-issue", consultationHandler.ReportIssue)
			authRequired.POST("/consultations/:id/cancel", consultationHandler.Cancel)

			authRequired.POST("/offers/:id/documents", documentHandler.Upload)
			authRequired.GET("/offers/:id/documents", documentHandler.List)
			authRequired.GET("/offers/:id/documents/requirements", documentHandler.Requirements)
			authRequired.GET("/documents/:id/url", documentHandler.SignedURL)
			authRequired.DELETE("/documents/:id", documentHandler.Delete)
			authRequired.POST("/documents/:id/status", staff, documentHandler.SetStatus)

			authRequired.GET("/dashboard/buyer", dashboardHandler.Buyer)
			authRequired.GET("/dashboard/agent", middleware.RequireRole(models.RoleAgent), dashboardHandler.Agent)
			authRequired.GET("/dashboard/admin", middleware.RequireRole(models.RoleAdmin), dashboardHandler.Admin)

			authRequired.POST("/properties/ready", propertyHandler.PropertyReady)
			authRequired.POST("/properties/saved", propertyHandler.SaveProperty)
			authRequired.GET("/properties/saved", propertyHandler.ListSavedProperties)
			authRequired.POST("/tours", propertyHandler.RequestTour)
			authRequired.GET("/tours", propertyHandler.ListTours)
		}
	}

	return r
}

// JobRunner triggers a periodic sweep outside its schedule.
type JobRunner interface {
	RunNow(ctx context.Context, taskType string) (string, error)
}

const (
	testEmailPolls        = 10
	testEmailPollInterval = 200 * time.Millisecond
)

// SetupServiceRouter configures and returns the service Gin engine.
func SetupServiceRouter(cfg *config.Config, rdb redis.Cmdable, jobs JobRunner, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	log := logging.GetLogger().WithField("component", "service_api")

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Info("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				log.Info("Shutdown signal sent")
			default:
				log.Warn("Shutdown channel already signaled or blocked")
			}

		case "getTestEmail":
			if !cfg.MockServices {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Test emails are only captured when MOCK_SERVICES is enabled"})
				return
			}
			var args []string // Expect ["event", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [event, email]"})
				return
			}
			redisKey := email.MockEmailKey(args[1], args[0])

			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			var emailJsonData string
			found := false
			for i := 0; i < testEmailPolls; i++ {
				var getErr error
				emailJsonData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if !errors.Is(getErr, redis.Nil) {
					log.WithError(getErr).WithField("key", redisKey).Error("Failed to read test email")
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(testEmailPollInterval)
			}
			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
				log.WithError(err).WithField("key", redisKey).Error("Failed to parse stored email")
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		case "runReconcile", "runAutoComplete":
			taskType := tasks.TypeDocumentReconcile
			if req.Method == "runAutoComplete" {
				taskType = tasks.TypeAutoComplete
			}
			id, err := jobs.RunNow(c.Request.Context(), taskType)
			if err != nil {
				log.WithError(err).WithField("task_type", taskType).Error("Failed to enqueue sweep")
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to enqueue task"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"task_id": id, "type": taskType}})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
