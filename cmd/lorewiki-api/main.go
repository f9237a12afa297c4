package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dimitrije/lorewiki-api/internal/config"
	"github.com/dimitrije/lorewiki-api/internal/database"
	"github.com/dimitrije/lorewiki-api/internal/handlers"
	"github.com/dimitrije/lorewiki-api/internal/logging"
	"github.com/dimitrije/lorewiki-api/internal/metrics"
	authmw "github.com/dimitrije/lorewiki-api/internal/middleware"
	"github.com/dimitrije/lorewiki-api/internal/scheduler"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/internal/sse"
	"github.com/dimitrije/lorewiki-api/internal/triggers"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const triggerBuffer = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(!cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient, err := services.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	hub := sse.NewHub()
	go hub.Run(ctx)

	dispatcher := triggers.New(triggerBuffer, logger.Named("triggers"), m)

	claimStore := services.NewClaimStore(redisClient)
	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	profileService := services.NewProfileService(db, dispatcher)
	accountService := services.NewAccountService(db, claimStore, dispatcher)
	pageService := services.NewPageService(db)
	tokenService := services.NewTokenService(db)
	privilegedService := services.NewPrivilegedService(claimStore, profileService, accountService, pageService, m, logger.Named("privileged"))

	dispatcher.Register(triggers.Handlers{
		Profiles:         profileService,
		Propagator:       pageService,
		Notifier:         hub,
		DefaultAvatarURL: cfg.DefaultAvatarURL,
	})
	go dispatcher.Run(ctx)

	var images handlers.ImageStoreInterface
	if cfg.Storage.Enabled() {
		blobStore, err := services.NewBlobStore(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal("failed to configure image storage", zap.Error(err))
		}
		images = blobStore
	} else {
		logger.Warn("S3_BUCKET not set, image uploads are disabled")
	}

	assistantService, err := services.NewAssistantService(ctx, cfg.Assistant)
	if err != nil {
		logger.Fatal("failed to configure assistant", zap.Error(err))
	}
	if !assistantService.Enabled() {
		logger.Warn("GEMINI_API_KEY not set, the writing assistant is disabled")
	}

	jobs, err := scheduler.New(cfg.SyncUsersSchedule, privilegedService, tokenService, logger.Named("scheduler"))
	if err != nil {
		logger.Fatal("failed to schedule jobs", zap.Error(err))
	}
	jobs.Start()
	defer jobs.Stop()

	authHandler := handlers.NewAuthHandler(ctx, cfg, accountService, profileService, claimStore, tokenService, jwtService, logger.Named("auth"))
	userHandler := handlers.NewUserHandler(accountService, profileService, images)
	pageHandler := handlers.NewPageHandler(pageService, profileService, images)
	adminHandler := handlers.NewAdminHandler(privilegedService)
	assistantHandler := handlers.NewAssistantHandler(assistantService, logger.Named("assistant"))
	sseHandler := handlers.NewSSEHandler(hub)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Get("/:provider/consent", authHandler.GetConsentURL)
	auth.Get("/:provider/callback", authHandler.Callback)
	auth.Post("/exchange", authHandler.ExchangeCode)
	auth.Post("/refresh", authHandler.RefreshToken)
	auth.Post("/logout", authHandler.Logout)
	auth.Post("/signup", authHandler.Signup)
	auth.Post("/login", authHandler.Login)

	public := api.Group("")
	public.Use(authmw.OptionalAuth(jwtService))
	public.Use(authmw.ResolveRole(claimStore))

	public.Get("/pages", pageHandler.List)
	public.Get("/pages/:slug", pageHandler.Get)
	public.Post("/pages/:slug/view", pageHandler.View)
	public.Get("/pages/:slug/permissions", pageHandler.Permissions)

	protected := api.Group("")
	protected.Use(authmw.Auth(jwtService))
	protected.Use(authmw.ResolveRole(claimStore))

	protected.Post("/auth/logout-all", authHandler.LogoutAll)
	protected.Delete("/account", authHandler.DeleteAccount)

	protected.Get("/users/me", userHandler.GetMe)
	protected.Post("/users/me", userHandler.EnsureMe)
	protected.Patch("/users/me", userHandler.UpdateMe)
	protected.Post("/users/me/avatar", userHandler.UploadAvatar)
	protected.Get("/users/me/events", sseHandler.Connect)

	protected.Post("/pages", pageHandler.Create)
	protected.Patch("/pages/:slug", pageHandler.Update)
	protected.Delete("/pages/:slug", pageHandler.Delete)
	protected.Post("/pages/:slug/publish", pageHandler.Publish)
	protected.Post("/pages/:slug/unpublish", pageHandler.Unpublish)
	protected.Post("/pages/:slug/header-image", pageHandler.UploadHeaderImage)

	protected.Post("/admin/roles", adminHandler.SetRole)
	protected.Post("/admin/bootstrap", adminHandler.Bootstrap)
	protected.Post("/admin/sync-users", adminHandler.SyncUsers)
	protected.Get("/admin/users", adminHandler.ListUsers)
	protected.Delete("/admin/users/:id", adminHandler.DeleteUser)
	protected.Post("/admin/reset-view-counts", adminHandler.ResetViewCounts)

	protected.Post("/assistant/generate", assistantHandler.Generate)

	api.Get("/health", func(c *drift.Context) {
		_ = c.JSON(200, map[string]string{"status": "ok"})
	})

	metricsHandler := m.Handler()
	app.Get("/metrics", func(c *drift.Context) {
		metricsHandler.ServeHTTP(c.Response, c.Request)
	})

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Info("server starting", zap.String("addr", addr))
		if err := app.Run(addr); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")
}
