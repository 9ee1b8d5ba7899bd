package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/config"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/logger"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/server"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/service/answer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// No .env is fine; system environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}).
		With().Str("service", "devserver").Logger()

	answerSvc, err := answer.NewService(ctx, cfg.AI, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize answer service")
	}
	if answerSvc.Enabled() {
		log.Info().Msg("automated participant backed by Ark model")
	} else {
		log.Info().Msg("Ark credentials absent, automated participant uses canned replies")
	}

	srv := server.New(server.NewStore(cfg.Server.PageSize), answerSvc, log)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", cfg.Server.Addr).Msg("chat server listening")
	if err := runServer(ctx, httpSrv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
