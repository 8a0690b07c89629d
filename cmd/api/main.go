package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/trivia-api/internal/config"
	"github.com/yourusername/trivia-api/internal/handler"
	"github.com/yourusername/trivia-api/internal/middleware"
	"github.com/yourusername/trivia-api/internal/realtime"
	pgRepo "github.com/yourusername/trivia-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/trivia-api/internal/repository/redis"
	"github.com/yourusername/trivia-api/internal/service"
	ws "github.com/yourusername/trivia-api/internal/websocket"
	"github.com/yourusername/trivia-api/pkg/auth"
	"github.com/yourusername/trivia-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("connected to Redis")

	userRepo := pgRepo.NewUserRepo(db)
	eventRepo := pgRepo.NewEventRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	resultRepo := pgRepo.NewResultRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("failed to initialize cache repository: %v", err)
		os.Exit(1)
	}

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL, time.Duration(cfg.JWT.WSTicketExpirySec)*time.Second)
	if err != nil {
		log.Printf("failed to initialize jwt service: %v", err)
		os.Exit(1)
	}

	otpService := service.NewOTPService(cacheRepo, 5*time.Minute, 60*time.Second, 5)

	var pubsubProvider ws.PubSubProvider = &ws.NoOpPubSub{}
	hub := ws.NewHub(pubsubProvider)
	go hub.Run()

	realtimeCfg := realtime.Config{
		PerQuestionDuration: cfg.Realtime.PerQuestionDuration,
		AdBreakDuration:     cfg.Realtime.AdBreakDuration,
		LobbyWindowBefore:   cfg.Realtime.LobbyWindowBefore,
		LobbyWindowAfter:    cfg.Realtime.LobbyWindowAfter,
		HeartbeatInterval:   cfg.Realtime.HeartbeatInterval,
		CountdownThrottle:   cfg.Realtime.CountdownThrottle,
		ForceLogoutDelay:    cfg.Realtime.ForceLogoutDelay,
		RoundTeardownGrace:  cfg.Realtime.RoundTeardownGrace,
		FillLookahead:       cfg.Realtime.FillLookahead,
		FillInterval:        time.Minute,
		IdleEvictAfter:      10 * time.Minute,
	}
	core := realtime.NewCoreContext(realtimeCfg, userRepo, eventRepo, questionRepo, resultRepo, jwtService, hub)
	hub.SetDispatcher(core)

	if err := core.Start(); err != nil {
		log.Printf("failed to start realtime core: %v", err)
		os.Exit(1)
	}

	authHandler := handler.NewAuthHandler(otpService, userRepo, jwtService)
	userHandler := handler.NewUserHandler(userRepo, resultRepo)
	eventHandler := handler.NewEventHandler(eventRepo, core.Lobby, core.Scheduler)
	questionHandler := handler.NewQuestionHandler(questionRepo)
	wsHandler := handler.NewWSHandler(hub, jwtService)

	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("warning: failed to set trusted proxies: %v", err)
		}
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		log.Fatal("CORS configuration error: allowed_origins list is empty, this would block all browser clients")
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", rateLimiter.Limit(middleware.StrictAuthRateLimitConfig()), authHandler.Register)
		authGroup.POST("/verify-otp", rateLimiter.Limit(middleware.StrictAuthRateLimitConfig()), authHandler.VerifyOTP)
		authGroup.POST("/refresh", rateLimiter.Limit(middleware.DefaultAuthRateLimitConfig()), authHandler.Refresh)

		users := api.Group("/users")
		{
			users.GET("/leaderboard", userHandler.GetLeaderboard)
			authedUsers := users.Group("")
			authedUsers.Use(authMiddleware.RequireAuth())
			authedUsers.GET("/me/results", userHandler.GetMyResults)
		}

		events := api.Group("/events")
		{
			events.GET("/next", eventHandler.GetNext)
			events.GET("/active", eventHandler.GetActive)
			events.GET("/ready-for-lobby", eventHandler.ReadyForLobby)
			events.POST("", eventHandler.Create)
			events.POST("/:id/open-lobby", eventHandler.OpenLobby)
			events.PUT("/:id", eventHandler.Update)
			events.POST("/:id/force-update", eventHandler.ForceUpdate)
			events.POST("/force-lobby-check", eventHandler.ForceLobbyCheck)
		}

		questions := api.Group("/questions")
		{
			questions.POST("", questionHandler.Create)
			questions.GET("", questionHandler.List)
			questions.GET("/random/:limit", questionHandler.GetRandom)
			questions.GET("/theme/:theme", questionHandler.GetByTheme)
			questions.GET("/:id", questionHandler.Get)
			questions.PATCH("/:id", questionHandler.Patch)
			questions.DELETE("/:id", questionHandler.Delete)
		}
	}

	// WebSocket upgrade; ticket redacted from access logs after handling.
	router.GET("/ws", func(c *gin.Context) {
		wsHandler.HandleConnection(c)
		if c.Request.URL.RawQuery != "" {
			c.Request.URL.RawQuery = "ticket=[REDACTED]"
		}
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	core.Stop()
	if err := pubsubProvider.Close(); err != nil {
		log.Printf("error closing pubsub provider: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("server exited properly")
}
