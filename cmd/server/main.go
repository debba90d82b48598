package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/actions"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/adspower"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/campaign"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/config"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database/repository"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/handlers"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/healer"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/ratelimit"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/router"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/services"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/session"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/utils"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/vision"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/workflow"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Configure logging
	configureLogging()

	// Initialize Sentry
	utils.InitSentry()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database connection
	db, err := database.InitDB()
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	// Repositories
	accountRepo := repository.NewAccountRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	executionRepo := repository.NewExecutionRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	authEventRepo := repository.NewAuthEventRepository(db)
	aiUsageRepo := repository.NewAIUsageRepository(db)
	twoFARepo := repository.NewTwoFARepository(db)

	// Remote browser vendor and session lifecycle
	vendor := adspower.NewClient(cfg.VendorBaseURL, cfg.VendorHost, cfg.VendorTimeout)
	sessionManager := session.NewManager(vendor, cfg)
	pages := session.NewPages(sessionManager)

	// Credential encryption
	cipher, err := utils.NewCredentialCipher(cfg.CredentialKey)
	if err != nil {
		logrus.Fatalf("Invalid credential key: %v", err)
	}

	// Create SSE Hub (shared by the event service and the stream handler)
	sseHub := services.NewSSEHub()

	// Initialize RabbitMQ service (optional; events still persist and stream
	// without it)
	var queue services.Publisher
	rabbitMQService, err := services.NewRabbitMQService()
	if err != nil {
		logrus.Warnf("Failed to initialize RabbitMQ: %v", err)
	} else {
		logrus.Info("RabbitMQ service initialized")
		defer rabbitMQService.Close()
		queue = rabbitMQService
	}

	eventService := services.NewEventService(executionRepo, authEventRepo, aiUsageRepo, sseHub, queue)

	// Login healer
	loginHealer := healer.New(cipher, accountRepo, eventService, twoFARepo, cfg.TwoFAWait)

	// Vision decision engine; without an API key the deterministic selector
	// probe still works, only the screenshot fallback is unavailable.
	var decider vision.Decider
	if cfg.GeminiAPIKey != "" {
		visionClient, err := vision.NewClient(context.Background(), cfg.GeminiAPIKey,
			cfg.VisionModel, cfg.VisionFallbackModel, eventService)
		if err != nil {
			logrus.Fatalf("Failed to initialize vision client: %v", err)
		}
		defer visionClient.Close()
		decider = visionClient
	} else {
		logrus.Warn("GEMINI_API_KEY not set, vision fallback disabled")
	}
	analyzer := vision.NewAnalyzer(decider, vision.NewCache(cfg.DecisionCacheTTL), eventService)

	// Daily action quotas
	limiter := ratelimit.NewLimiter(map[string]int{
		ratelimit.ActionVisit:   cfg.DailyVisits,
		ratelimit.ActionConnect: cfg.DailyConnects,
		ratelimit.ActionMessage: cfg.DailyMessages,
		ratelimit.ActionFollow:  cfg.DailyFollows,
	})

	// Action library and execution engines
	library := actions.NewLibrary(analyzer, limiter)
	engine := workflow.NewEngine(workflowRepo, executionRepo, leadRepo, accountRepo,
		eventService, library, pages, loginHealer)
	scheduler := campaign.NewScheduler(campaignRepo, leadRepo, eventService,
		library, pages, loginHealer, cfg.TickInterval, cfg.DueBatchSize, cfg.MaxParallelAccounts)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	scheduler.Start(schedulerCtx)

	// Control surface
	r := router.SetupRouter(router.Handlers{
		Runs:      handlers.NewRunHandler(engine, executionRepo),
		Campaigns: handlers.NewCampaignHandler(campaignRepo),
		Accounts:  handlers.NewAccountHandler(accountRepo, authEventRepo, twoFARepo, loginHealer),
		Streams:   handlers.NewStreamHandler(sseHub, executionRepo, authEventRepo),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %s", cfg.Port)
		logrus.Infof("API Health Check: http://localhost:%s/api/v1/health", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown the server first so no new runs start, then drain the
	// scheduler and detach browser sessions.
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}
	scheduler.Stop()
	sessionManager.ReleaseAll(ctx)

	logrus.Info("Server exited properly")
}

func configureLogging() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
