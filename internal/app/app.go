package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Varietyz/banes-lab-bot/internal/config"
	"github.com/Varietyz/banes-lab-bot/internal/database"
	"github.com/Varietyz/banes-lab-bot/internal/middleware"
	"github.com/Varietyz/banes-lab-bot/internal/modules/gateway"
	"github.com/Varietyz/banes-lab-bot/internal/modules/relay"
	"github.com/Varietyz/banes-lab-bot/internal/modules/stats/diskreport"
	"github.com/Varietyz/banes-lab-bot/internal/modules/tasks/reaper"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/archive"
	pkgcron "github.com/Varietyz/banes-lab-bot/internal/pkg/cron"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/jwt"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/metrics"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform"
	pkgredis "github.com/Varietyz/banes-lab-bot/internal/pkg/redis"
	"github.com/Varietyz/banes-lab-bot/internal/store"
	"gorm.io/gorm"
)

const redisKeyPrefix = "relay:"

var processStart = time.Now()

// Version identifies this process to clients: its start time.
func Version() string { return processStart.UTC().Format(time.RFC3339) }

// Deps are the connected resources the app is assembled from.
type Deps struct {
	DB       *gorm.DB
	Redis    *pkgredis.Client
	Platform platform.Client
	Registry *prometheus.Registry
}

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	store    *store.Store
	rc       *pkgredis.Client
	platform platform.Client
	signer   *jwt.Signer
	hub      *gateway.Hub
	relay    *relay.Service
	sched    *pkgcron.Scheduler
	registry *prometheus.Registry
	logger   *zap.Logger
	closers  []func() error
}

// New connects database, redis and the chat platform, then assembles the app.
func New(ctx context.Context, logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	closers := []func() error{func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}}

	var rc *pkgredis.Client
	if cfg.RedisEnabled() {
		rc, err = pkgredis.Connect(cfg.Redis.URLValue(), redisKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, rc.Close)
	}

	discord, err := platform.NewDiscord(platform.DiscordOptions{
		Token:             cfg.Discord.Token,
		GuildID:           cfg.Discord.GuildID,
		SendRatePerSecond: cfg.Discord.SendRatePerSecond,
		SendBurst:         cfg.Discord.SendBurst,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("discord: %w", err)
	}

	a, err := Build(logger, cfg, Deps{DB: db, Redis: rc, Platform: discord})
	if err != nil {
		return nil, err
	}
	// handlers are registered by Build, before the gateway session opens
	if err := discord.Open(ctx); err != nil {
		return nil, fmt.Errorf("discord: %w", err)
	}
	a.closers = append([]func() error{discord.Close}, closers...)
	return a, nil
}

// Build assembles the relay, gateway, scheduler and router over deps.
func Build(logger *zap.Logger, cfg *config.AppConfig, deps Deps) (*App, error) {
	signer, err := jwt.NewSigner(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	loc, err := parseTimezoneLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	rec := metrics.NewCollector(registry)

	st := store.New(deps.DB)
	hub := gateway.NewHub(deps.Redis, logger)

	var locker relay.Locker = relay.NewLocalLocker()
	if deps.Redis != nil {
		locker = deps.Redis
	}

	auth := relay.NewAuthenticator(signer, st, st, cfg.SessionTTL, logger, rec)
	binder := relay.NewBinder(st, st, relay.NewProvisioner(deps.Platform), locker, hub, logger, rec)
	replayer := relay.NewReplayer(deps.Platform, cfg.Relay.HistoryLimit, cfg.Relay.TimestampLayout, loc, logger)
	rl := relay.NewRelay(deps.Platform, st, st, hub, diskreport.NewSink(st, logger, rec), relay.RelayOptions{
		FallbackChannelID: cfg.Discord.FallbackChannelID,
		ReportChannelID:   cfg.Discord.ReportChannelID,
		ReportTitle:       cfg.Discord.ReportTitle,
		TimestampLayout:   cfg.Relay.TimestampLayout,
		Location:          loc,
	}, logger, rec)
	deps.Platform.OnMessage(rl.Inbound)

	svc := relay.NewService(auth, binder, replayer, rl, hub, Version(), logger, rec)
	hub.Attach(svc, cfg.Relay.AuthTimeout)

	sched := pkgcron.New(logger)
	if cfg.Reaper.Enable {
		writer, err := newArchiveWriter(cfg)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		registerCronJobs(sched, cfg, reaper.New(st, deps.Platform, writer, reaper.Options{
			InactiveAfter: cfg.Reaper.InactiveAfter,
			ArchiveLimit:  cfg.Reaper.ArchiveLimit,
		}, logger, rec))
	}

	a := &App{
		cfg:      cfg,
		router:   newRouter(cfg, logger),
		store:    st,
		rc:       deps.Redis,
		platform: deps.Platform,
		signer:   signer,
		hub:      hub,
		relay:    svc,
		sched:    sched,
		registry: registry,
		logger:   logger,
	}
	a.registerRoutes()
	return a, nil
}

func newRouter(cfg *config.AppConfig, logger *zap.Logger) *gin.Engine {
	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if cfg.IsDev() {
		corsConfig.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsConfig.AllowOriginFunc = originMatcher(cfg.AllowedOrigins)
	}
	router.Use(cors.New(corsConfig))
	return router
}

func newArchiveWriter(cfg *config.AppConfig) (archive.Writer, error) {
	if cfg.Archive.Driver == config.ArchiveDriverS3 {
		s3 := cfg.Archive.S3
		return archive.NewS3(archive.S3Options{
			Bucket:          s3.Bucket,
			Region:          s3.Region,
			Endpoint:        s3.Endpoint,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			Prefix:          s3.Prefix,
			PathStyle:       s3.PathStyle,
		})
	}
	return archive.NewLocal(cfg.ArchiveDir())
}

// Start launches background jobs.
func (a *App) Start(ctx context.Context) {
	a.sched.Start(ctx)
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops the scheduler, closes every connection and releases the
// platform session and stores.
func (a *App) Shutdown() {
	a.sched.Stop()
	a.relay.Shutdown()
	a.hub.Close()
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("shutdown step failed", zap.Error(err))
		}
	}
}
