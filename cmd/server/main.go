package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codewords/codewords/internal/board"
	"github.com/codewords/codewords/internal/config"
	"github.com/codewords/codewords/internal/db"
	"github.com/codewords/codewords/internal/server"
	"github.com/codewords/codewords/internal/universe"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	bootstrap := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if err := config.LoadDotEnv(".env"); err != nil {
		bootstrap.Warn().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load(bootstrap, "codewords", ".", "/etc/codewords")
	if err != nil {
		bootstrap.Fatal().Err(err).Msg("invalid configuration")
	}
	logger, err := cfg.Log.NewLogger(os.Stdout)
	if err != nil {
		bootstrap.Fatal().Err(err).Msg("invalid log configuration")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	var conn *gorm.DB
	if cfg.Database.URL != "" {
		var err error
		conn, err = db.Open(cfg.Database.URL, db.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(conn); err != nil {
				logger.Warn().Err(err).Msg("close database")
			}
		}()
	} else {
		logger.Info().Msg("no database configured, audit log disabled")
	}

	deck := board.DefaultDeck()
	if cfg.Board.WordPack != "" {
		words, err := db.PackWords(conn, cfg.Board.WordPack)
		if err != nil {
			return err
		}
		if deck, err = board.NewDeck(words); err != nil {
			return err
		}
		logger.Info().Str("pack", cfg.Board.WordPack).Int("words", deck.Len()).Msg("word pack loaded")
	}

	audit := server.NewAuditLog(conn, 0, logger)
	u := universe.New(
		universe.WithLogger(logger),
		universe.WithBoardFactory(deck.Deal),
		universe.WithObserver(audit.Observe),
	)
	srv := server.New(u, cfg, server.WithLogger(logger))

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.Server.Address).Msg("codewords server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// The audit writer outlives ctx so it records the disconnects shutdown causes.
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()

	g.Go(func() error {
		<-ctx.Done()
		defer stopAudit()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		if drainErr := srv.Shutdown(shutdownCtx); err == nil {
			err = drainErr
		}
		return err
	})
	g.Go(func() error {
		return audit.Run(auditCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if dropped := audit.Dropped(); dropped > 0 {
		logger.Warn().Int64("dropped", dropped).Msg("audit events dropped")
	}
	return nil
}
