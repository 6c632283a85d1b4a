package main

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/redis/go-redis/v9"

	"sportsmeet/internal/auth"
	"sportsmeet/internal/catalog"
	"sportsmeet/internal/config"
	"sportsmeet/internal/eligibility"
	"sportsmeet/internal/files"
	"sportsmeet/internal/handlers"
	"sportsmeet/internal/lock"
	"sportsmeet/internal/pocketbase"
	"sportsmeet/internal/services"
	"sportsmeet/internal/store"
)

//go:embed all:templates
var templateFS embed.FS

//go:embed all:assets
var assetsFS embed.FS

func main() {
	// 1. Load configuration, with an optional .env file.
	cfg, err := config.Load(".env")
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	defer logger.Init("sportsmeet", true, false, io.Discard).Close()
	logger.SetFlags(0)
	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Open the registration store.
	var pb *pocketbase.Client
	if cfg.Store.Driver == config.StorePocketBase || cfg.Auth.Provider == config.AuthPocketBase {
		pb = pocketbase.New(cfg.Store.PocketBaseURL, cfg.Store.PocketBaseToken)
	}
	st, err := openStore(cfg, pb)
	if err != nil {
		logger.Fatalf("Failed to open %s store: %v", cfg.Store.Driver, err)
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		logger.Warningf("Store is not reachable yet: %v", err)
	}

	// 3. Pick the per-identity lock: Redis when several instances share a store.
	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("Invalid REDIS_URL: %v", err)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		locker = lock.NewRedisLocker(redisClient, "sportsmeet:lock:", cfg.Redis.LockTTL)
		logger.Infof("Using Redis identity locks")
	}

	// 4. Wire the services.
	cat := catalog.Default()
	checker := eligibility.NewChecker(
		eligibility.NewClassifier(cat.TeamKeywords),
		eligibility.Limits{MaxSolo: cfg.Registration.MaxSoloEvents, MaxTeam: cfg.Registration.MaxTeamEvents},
	)
	uploads, err := files.NewStore(cfg.Server.UploadDir, int64(cfg.Server.MaxUploadMB)<<20)
	if err != nil {
		logger.Fatalf("Failed to prepare uploads: %v", err)
	}

	settings := services.NewSettingsService(st, cfg.Registration.GateFailOpen)
	registrations := services.NewRegistrationService(st, settings, cat, checker, locker)
	registrations.SetLockTimeout(cfg.Registration.LockTimeout)
	registrations.SetUploads(uploads)

	var provider auth.Provider
	var localAuth *auth.LocalProvider
	switch cfg.Auth.Provider {
	case config.AuthPocketBase:
		pbAuth := auth.NewPocketBaseProvider(pb, cfg.Auth.AdminEmail)
		pbAuth.SetDefaultPassword(cfg.Auth.DefaultPassword)
		provider = pbAuth
	default:
		localAuth = auth.NewLocalProvider(cfg.Auth.Accounts, cfg.Auth.AdminEmail, cfg.Auth.SessionTTL)
		provider = localAuth
		if len(cfg.Auth.Accounts) == 0 {
			logger.Warningf("No ACCOUNTS configured, nobody can log in")
		}
	}

	// 5. Load HTML templates from the embedded filesystem.
	templates, err := template.New("").Funcs(handlers.TemplateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		logger.Fatalf("Failed to parse templates: %v", err)
	}

	httpHandler := handlers.NewHTTPHandler(handlers.Deps{
		Auth:          provider,
		Registrations: registrations,
		Settings:      settings,
		Stats:         services.NewStatsService(st, settings, checker),
		News:          services.NewNewsService(st, cfg.ItemsPerPage),
		Schedule:      services.NewScheduleService(cat),
		Catalog:       cat,
		Uploads:       uploads,
		Store:         st,
		SecureCookies: cfg.Server.SecureCookies,
		SessionTTL:    cfg.Auth.SessionTTL,
	}, templates)

	// 6. Set up the Gin router.
	r := gin.Default()
	r.MaxMultipartMemory = int64(cfg.Server.MaxUploadMB+1) << 20

	assetsSubFS, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		logger.Fatalf("Failed to create assets sub-filesystem: %v", err)
	}
	r.StaticFS("/assets", http.FS(assetsSubFS))

	httpHandler.RegisterPublicRoutes(r)

	accountRoutes := r.Group("/")
	accountRoutes.Use(httpHandler.AuthMiddleware())
	httpHandler.RegisterAccountRoutes(accountRoutes)

	adminRoutes := r.Group("/")
	adminRoutes.Use(httpHandler.AuthMiddleware(), httpHandler.AdminMiddleware())
	httpHandler.RegisterAdminRoutes(adminRoutes)

	// 7. Start the background janitor to clean up inactive sessions.
	if localAuth != nil {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					localAuth.CleanUpInactiveSessions()
				}
			}
		}()
	}

	// 8. Run the server until interrupted.
	server := &http.Server{Addr: cfg.Server.Addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("Server starting on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to run server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Infof("Shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
}

func openStore(cfg *config.Config, pb *pocketbase.Client) (store.Store, error) {
	if cfg.Store.Driver == config.StorePocketBase {
		return store.NewPocketBaseRepo(pb), nil
	}
	driver := store.DriverSQLite
	if cfg.Store.Driver == config.StorePostgres {
		driver = store.DriverPostgres
	}
	repo, err := store.NewSQLRepo(driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
