package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/handlers"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/middleware"
)

// Handlers carries the wired handler set from main
type Handlers struct {
	Runs      *handlers.RunHandler
	Campaigns *handlers.CampaignHandler
	Accounts  *handlers.AccountHandler
	Streams   *handlers.StreamHandler
}

// SetupRouter configures the Gin router with the execution control surface
func SetupRouter(h Handlers) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	// Create a new router
	r := gin.New()

	// Use middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// Configure CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	bearerTokenMiddleware := middleware.NewBearerTokenMiddleware()

	// API v1 routes
	api := r.Group("/api/v1")
	{
		// Health check
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
				"time":   time.Now().Format(time.RFC3339),
			})
		})

		// Protected routes
		protected := api.Group("")
		protected.Use(bearerTokenMiddleware.BearerTokenAuthMiddleware())
		{
			// Workflow run routes
			runs := protected.Group("/runs")
			{
				runs.POST("", h.Runs.StartRun)
				runs.GET("", h.Runs.ListRuns)
				runs.GET("/:id", h.Runs.GetRun)
				runs.GET("/:id/logs", h.Runs.GetRunLogs)
				runs.POST("/:id/stop", h.Runs.StopRun)
			}

			// Campaign routes
			campaigns := protected.Group("/campaigns")
			{
				campaigns.GET("", h.Campaigns.ListCampaigns)
				campaigns.GET("/:id", h.Campaigns.GetCampaignStatus)
				campaigns.POST("/:id/start", h.Campaigns.StartCampaign)
				campaigns.POST("/:id/pause", h.Campaigns.PauseCampaign)
			}

			// Account routes
			accounts := protected.Group("/accounts")
			{
				accounts.GET("", h.Accounts.ListAccounts)
				accounts.GET("/:id/status", h.Accounts.GetAccountStatus)
				accounts.POST("/:id/2fa", h.Accounts.SubmitTwoFA)
			}

			// Live event streams
			protected.GET("/logs/stream/:entity_type/:entity_id", h.Streams.StreamSSE)
		}
	}

	return r
}
