package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tahfidz/internal/api"
	"tahfidz/internal/appstate"
	"tahfidz/internal/attendance"
	"tahfidz/internal/auth"
	"tahfidz/internal/cloudinary"
	"tahfidz/internal/config"
	"tahfidz/internal/exam"
	"tahfidz/internal/gateway"
	"tahfidz/internal/httpmiddleware"
	"tahfidz/internal/journal"
	"tahfidz/internal/localstore"
	"tahfidz/internal/logging"
	"tahfidz/internal/notify"
	"tahfidz/internal/queue"
	"tahfidz/internal/roster"
	"tahfidz/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Production())
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func usesRedis(cfg config.App) bool {
	return cfg.StoreBackend == "redis" || cfg.QueueBackend == "redis"
}

// newSink picks how mutations reach the spreadsheet. Direct mode skips the
// journal; entries already journaled are still drained by the worker.
func newSink(ctx context.Context, mode string, syncer *journal.Syncer, gw *gateway.Client, logger *zap.Logger) (appstate.Sink, error) {
	switch mode {
	case "", "journal":
		return appstate.NewJournalSink(syncer, logger), nil
	case "direct":
		return appstate.NewDirectSink(ctx, gw, 256, logger.Named("direct")), nil
	default:
		return nil, fmt.Errorf("unknown sync mode %q", mode)
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *store.Redis
	if usesRedis(cfg) {
		rdb = store.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		if !rdb.Healthy(ctx) {
			logger.Warn("redis not reachable yet", zap.String("addr", cfg.RedisAddr))
		}
	}

	kv, err := localstore.Open(cfg.StoreBackend, cfg.StorePath, rdb)
	if err != nil {
		return err
	}
	defer kv.Close()

	gw := gateway.New(cfg.ScriptURL, cfg.ScriptTimeout, logger.Named("gateway"))
	gw.Token = cfg.SheetToken
	gw.Backoff.Retries = cfg.SyncRetries
	gw.Backoff.Initial = cfg.SyncBackoff

	js, closeJournal, err := journal.Open(ctx, cfg.JournalBackend, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeJournal()
	q, err := queue.Open(cfg.QueueBackend, rdb)
	if err != nil {
		return err
	}
	syncer := journal.NewSyncer(js, q, gw, logger.Named("sync"))

	sink, err := newSink(ctx, cfg.SyncMode, syncer, gw, logger)
	if err != nil {
		return err
	}
	state := appstate.New(kv, gw, sink, logger.Named("state"))
	restored, err := state.Restore(ctx)
	if err != nil {
		logger.Warn("local snapshot unreadable, starting from seed", zap.Error(err))
	}
	conn := state.Refresh(ctx)
	logger.Info("state loaded", zap.Bool("restored", restored), zap.String("connection", string(conn)))

	// An in-memory queue is only visible to this process.
	if cfg.SyncInProcess || cfg.QueueBackend != "redis" {
		go func() {
			if err := syncer.Run(ctx); err != nil {
				logger.Error("sync worker failed", zap.Error(err))
			}
		}()
		if _, err := syncer.Requeue(ctx); err != nil {
			logger.Warn("requeue failed", zap.Error(err))
		}
	}

	cloud := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder, logger)
	if cloud.Configured() {
		logger.Info("cloudinary configured", zap.String("cloud", cfg.CloudinaryCloudName))
	}
	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, logger)

	h := api.New(api.Deps{
		State: state,
		Attendance: attendance.NewService(state, attendance.Options{
			PublicBaseURL: cfg.PublicBaseURL,
			AdminPhone:    cfg.AdminPhone,
			AdminEmail:    cfg.AdminEmail,
			Mailer:        mailer,
		}, logger),
		Exams:    exam.NewManager(state, kv, logger),
		Roster:   roster.NewImporter(state, logger),
		Sessions: auth.NewSessions(kv),
		KV:       kv,
		Cloud:    cloud,
		Journal:  syncer,
		Tokens: api.TokenConfig{
			SigningKey: cfg.JWTSigningKey,
			Issuer:     cfg.JWTIssuer,
			TTL:        cfg.AccessTTL,
		},
	}, logger.Named("http"))

	var limiter httpmiddleware.Limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	if rdb != nil {
		limiter = httpmiddleware.NewRedisWindow(rdb.Client, cfg.RateLimitPerMin)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger, "/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: !slices.Contains(cfg.CORSOrigins, "*"),
		MaxAge:           24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.RateLimit(limiter, logger))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	if err := state.Save(shutdownCtx); err != nil {
		logger.Warn("final snapshot failed", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}
