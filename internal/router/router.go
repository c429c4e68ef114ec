package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/proctorly/proctorly-backend/internal/config"
	"github.com/proctorly/proctorly-backend/internal/handler"
	"github.com/proctorly/proctorly-backend/internal/middleware"
	"github.com/proctorly/proctorly-backend/internal/response"
	"github.com/proctorly/proctorly-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Exam    *handler.ExamHandler
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", middleware.HeaderSecureBrowserKey}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/participant/register", handlers.Auth.RegisterParticipant)
		auth.POST("/participant/login", handlers.Auth.LoginParticipant)
		auth.POST("/examiner/login", handlers.Auth.LoginExaminer)

		// Authenticated profile routes
		auth.GET("/participant/me", middleware.RequireParticipantJWT(authService), handlers.Auth.GetParticipantProfile)
		auth.GET("/examiner/me", middleware.RequireExaminerJWT(authService), handlers.Auth.GetExaminerProfile)
	}

	// ─── 2. Participant Group (JWT) ────────────────────────────────────
	participantAPI := router.Group("/api/v1/participant")
	participantAPI.Use(middleware.RequireParticipantJWT(authService))
	{
		participantAPI.POST("/exams/join", handlers.Session.JoinExam)
		participantAPI.POST("/exams/:exam_id/entry-token", handlers.Session.IssueEntryToken)

		// Session entry requires the secure browser header before any work.
		sessionGroup := participantAPI.Group("/session")
		sessionGroup.Use(middleware.RequireSecureBrowser(cfg))
		{
			sessionGroup.POST("/enter", handlers.Session.EnterSession)
			sessionGroup.GET("/:exam_id/state", handlers.Session.SessionState)
			sessionGroup.POST("/:exam_id/exit", handlers.Session.ExitSession)
		}
	}

	// ─── 3. WebSocket Group (Participant WS Auth) ──────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireParticipantWSAuth(authService))
	{
		ws.GET("/participant/session/:exam_id/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Examiner Group (JWT) ───────────────────────────────────────
	examinerAPI := router.Group("/api/v1/examiner")
	examinerAPI.Use(middleware.RequireExaminerJWT(authService))
	{
		examinerAPI.GET("/exams", handlers.Exam.ListExams)
		examinerAPI.POST("/exams", handlers.Exam.CreateExam)
		examinerAPI.GET("/exams/:exam_id", handlers.Exam.GetExam)
		examinerAPI.PUT("/exams/:exam_id", handlers.Exam.UpdateExam)
		examinerAPI.DELETE("/exams/:exam_id", handlers.Exam.DeleteExam)
		examinerAPI.PUT("/exams/:exam_id/questions", handlers.Exam.ReplaceQuestions)
		examinerAPI.POST("/exams/:exam_id/publish", handlers.Exam.PublishExam)
		examinerAPI.GET("/exams/:exam_id/results", handlers.Exam.ListResults)
	}

	return router
}
