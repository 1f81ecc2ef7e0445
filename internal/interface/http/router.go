package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/trip-planner/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, tokens TokenValidator) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	logger := handler.logger
	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(logger),
		rateLimitMiddleware(cfg.HTTP.RateLimit, logger),
	)

	api := router.Group("/api/v1")
	{
		api.GET("/healthz", handler.Health)
		api.POST("/plans", handler.Plan)
		api.POST("/conversations", handler.StartConversation)
		api.POST("/conversations/:id/messages", handler.ContinueConversation)
		api.POST("/itineraries/evaluate", handler.EvaluateItinerary)
		api.POST("/itineraries/verify", handler.VerifyEdit)
	}

	sessions := api.Group("/sessions/:id", sessionAuth(tokens))
	{
		sessions.GET("/itinerary", handler.GetItinerary)
		sessions.GET("/history", handler.GetHistory)
		sessions.POST("/edits", handler.Edit)
		sessions.POST("/explanations", handler.Explain)
		sessions.GET("/evaluations/feasibility", handler.FeasibilityReport)
		sessions.GET("/evaluations/edit", handler.EditReport)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
