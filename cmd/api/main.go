package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/punchamoorthee/coinmarket/internal/api"
	"github.com/punchamoorthee/coinmarket/internal/cache"
	"github.com/punchamoorthee/coinmarket/internal/config"
	"github.com/punchamoorthee/coinmarket/internal/observability"
	"github.com/punchamoorthee/coinmarket/internal/service"
	"github.com/punchamoorthee/coinmarket/internal/store"
)

type ledgerStore interface {
	service.Ledger
	Migrate(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("unable to open database", slog.String("driver", cfg.DBDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	if err := ledger.Migrate(ctx); err != nil {
		logger.Error("schema migration failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize Layers
	market := service.NewMarketplace(ledger, cache.New(cfg.CacheTTL), service.Options{
		MaxBit:       cfg.MaxBit,
		MinValue:     cfg.MinCoinValue,
		MaxValue:     cfg.MaxCoinValue,
		Timeout:      cfg.RequestTimeout,
		MintAttempts: cfg.MintAttempts,
	}, logger)
	handler := api.NewHandler(market, logger)
	limiter := rate.NewLimiter(rate.Limit(cfg.MutationRateLimit), cfg.MutationRateBurst)

	srv := &http.Server{
		Handler:           api.NewRouter(handler, limiter, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		logger.Error("unable to listen", slog.String("port", cfg.Port), slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server starting", slog.String("port", cfg.Port), slog.String("driver", cfg.DBDriver))
	if err := serve(ctx, srv, ln, shutdownGrace); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		return
	}
	logger.Info("server stopped")
}

const shutdownGrace = 10 * time.Second

// serve runs srv until ctx is cancelled and returns only after in-flight
// requests have drained or grace has elapsed.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration) error {
	drained := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		drained <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-drained
}

func openStore(ctx context.Context, cfg *config.Config) (ledgerStore, func(), error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		s, err := store.OpenSQLite(ctx, cfg.DBSource)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		s, err := store.NewPostgresStore(ctx, cfg.DBSource)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}
