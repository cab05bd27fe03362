package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/greenbudget/backend/internal/cache"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/router"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// developmentSecret signs tokens in development when JWT_SECRET is not set.
const developmentSecret = "development-only-secret"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Auth.Secret == "" {
		log.Warn().Msg("JWT_SECRET is not set, using an insecure development secret")
		cfg.Auth.Secret = developmentSecret
	}

	if err := connect(cfg); err != nil {
		return err
	}
	defer disconnect()

	backend, err := cache.New(cfg.Cache.Backend, cfg.Cache.RedisAddr, cfg.Cache.BadgerPath)
	if err != nil {
		return err
	}
	defer backend.Close()

	r, teardown, err := router.Config(cfg)
	if err != nil {
		return err
	}
	defer teardown()

	router.AttachRoutes(cfg, models.DB, cache.NewStore(backend, cfg.Cache.TTL), r.Group("/"))

	go pruneGroups(ctx, cfg.Groups.PruneInterval, cfg.Groups.PruneAfter)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("address", server.Addr).Str("version", router.Version()).Msg("starting server")
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// pruneGroups deletes empty groups every interval until ctx is done.
func pruneGroups(ctx context.Context, interval, after time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			deleted, err := models.PruneEmptyGroups(models.DB.WithContext(ctx), now, after)
			if err != nil {
				log.Error().Err(err).Msg("pruning empty groups")
				continue
			}

			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("pruned empty groups")
			}
		}
	}
}
