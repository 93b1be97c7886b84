// Package api exposes the fund operations over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lending-fund-api/config"
	"lending-fund-api/internal/auth"
	"lending-fund-api/internal/balance"
	"lending-fund-api/internal/cache"
	"lending-fund-api/internal/currency"
	"lending-fund-api/internal/instrument"
	"lending-fund-api/internal/sweepsched"
)

// Server wires the HTTP routes to the fund services.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	instruments *instrument.Service
	balances    *balance.Consolidator
	currencies  *currency.Registry
	scheduler   *sweepsched.Scheduler
	cacheSvc    *cache.Service // nil when redis is disabled
	authService *auth.Service  // nil when auth is disabled
	logger      zerolog.Logger
	cfg         config.ServerConfig
}

func NewServer(
	cfg config.ServerConfig,
	instruments *instrument.Service,
	balances *balance.Consolidator,
	currencies *currency.Registry,
	scheduler *sweepsched.Scheduler,
	cacheSvc *cache.Service,
	authService *auth.Service,
	logger zerolog.Logger,
) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:      router,
		instruments: instruments,
		balances:    balances,
		currencies:  currencies,
		scheduler:   scheduler,
		cacheSvc:    cacheSvc,
		authService: authService,
		logger:      logger.With().Str("component", "api").Logger(),
		cfg:         cfg,
	}

	router.Use(s.requestIDMiddleware())
	router.Use(s.loggingMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	s.setupRoutes()
	return s
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")

	if s.authService != nil {
		authHandlers := auth.NewHandlers(s.authService)
		authHandlers.RegisterRoutes(api.Group("/auth"))
		api.Use(auth.Middleware(s.authService.JWTManager()))
	}

	api.GET("/currencies", s.handleListCurrencies)

	deposits := api.Group("/deposits")
	deposits.POST("", s.handleCreateDeposit)
	deposits.GET("", s.handleListDeposits)

	loans := api.Group("/loans")
	loans.POST("", s.handleCreateLoan)
	loans.GET("", s.handleListLoans)

	instruments := api.Group("/instruments")
	instruments.GET("/:id", s.handleGetInstrument)
	instruments.GET("/:id/schedule", s.handleGetSchedule)
	instruments.DELETE("/:id", s.handleCancelInstrument)

	balances := api.Group("/balances")
	balances.GET("", s.handleConsolidatedBalances)
	balances.GET("/mine", s.handleOwnerBalances)
	balances.GET("/:currency", s.handleLatestBalance)
	balances.GET("/:currency/history", s.handleBalanceHistory)

	admin := api.Group("/admin")
	admin.POST("/run-sweep", s.handleRunSweep)
	admin.GET("/scheduler", s.handleSchedulerStatus)
}

// requestIDMiddleware tags every request with a correlation id, honoring
// one supplied by the caller.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := s.logger.Info().
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start))
		// Set by the auth middleware on protected routes.
		if username := auth.GetUsername(c); username != "" {
			evt = evt.Str("username", username)
		}
		evt.Msg("request")
	}
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Int("port", s.cfg.Port).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{
		"status":    "ok",
		"scheduler": s.scheduler != nil && s.scheduler.IsRunning(),
	}
	if s.cacheSvc != nil {
		status["cache"] = s.cacheSvc.GetStats()
	}
	c.JSON(http.StatusOK, status)
}
