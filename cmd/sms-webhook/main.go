package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"otpgate/internal/config"
	"otpgate/internal/pipeline"
	"otpgate/internal/receivers"
	"otpgate/internal/receivers/webhook"
	"otpgate/internal/session"
	"otpgate/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	extractor, err := pipeline.NewExtractorFromConfig(cfg)
	must(err)

	sessions := session.NewManager(extractor, db, cfg.SessionWindow)
	store := receivers.NewMessageStore(db, cfg.RawMsgDir)
	server := webhook.NewServer(store, sessions, cfg.WebhookToken, cfg.WebhookRateRPS)

	httpServer := &http.Server{
		Addr:              cfg.WebhookAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("sms-webhook listening on %s\n", cfg.WebhookAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		must(err)
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
