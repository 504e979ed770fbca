package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tahfidz/internal/config"
	"tahfidz/internal/httpmiddleware"
	"tahfidz/internal/logging"
	"tahfidz/internal/sheetdb"
)

// sheetd serves the spreadsheet endpoint from a local workbook so the API
// can run without a hosted spreadsheet.
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

	book, err := sheetdb.Open(cfg.SheetPath, logger.Named("sheet"))
	if err != nil {
		logger.Fatal("workbook open failed", zap.Error(err))
	}
	defer book.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger, "/healthz"))
	sheetdb.NewHandler(book, cfg.SheetToken, logger).Register(r)

	// Writes may wait up to a minute for the lock.
	srv := &http.Server{
		Addr:         ":" + cfg.SheetPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting sheetd", zap.String("addr", srv.Addr), zap.String("workbook", cfg.SheetPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
	logger.Info("sheetd exited")
}
