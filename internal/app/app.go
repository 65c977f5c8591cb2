package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/file"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/redis"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/sqlite"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"github.com/vadimbarashkov/shortlink/pkg/shortcode"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
)

type repository interface {
	LoadAll(ctx context.Context) (map[string]*entity.URL, error)
	SaveAll(ctx context.Context, urls map[string]*entity.URL) error
}

func nopClose() error { return nil }

// newRepository opens the storage selected by cfg.Storage.Driver. The
// returned func releases it.
func newRepository(ctx context.Context, cfg *config.Config) (repository, func() error, error) {
	const op = "app.newRepository"

	switch cfg.Storage.Driver {
	case config.DriverFile:
		return file.NewURLRepository(cfg.Storage.File.Path), nopClose, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return sqlite.NewURLRepository(db), db.Close, nil

	case config.DriverPostgres:
		pg := cfg.Storage.Postgres

		if err := postgres.RunMigrations(pg.DSN()); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		db, err := postgres.Open(
			ctx,
			pg.DSN(),
			postgres.WithConnMaxIdleTime(pg.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(pg.ConnMaxLifetime),
			postgres.WithMaxIdleConns(pg.MaxIdleConns),
			postgres.WithMaxOpenConns(pg.MaxOpenConns),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return postgres.NewURLRepository(db), db.Close, nil

	case config.DriverRedis:
		rc := cfg.Storage.Redis

		rdb, err := redis.NewClient(ctx, rc.Addr, rc.Password, rc.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return redis.NewURLRepository(rdb, rc.Key), rdb.Close, nil

	default:
		return nil, nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Storage.Driver)
	}
}

func Run(ctx context.Context, cfg *config.Config, logger *httplog.Logger) error {
	const op = "app.Run"

	repo, closeRepo, err := newRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: failed to open storage: %w", op, err)
	}
	defer func() {
		if err := closeRepo(); err != nil {
			logger.Error("failed to close storage", slog.String("op", op), slog.Any("err", err))
		}
	}()

	store, err := usecase.New(
		ctx,
		repo,
		shortcode.New(cfg.ShortCodeLength),
		usecase.WithLogger(logger.Logger),
		usecase.WithExpiredReuse(cfg.ReuseExpiredCodes),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to load urls: %w", op, err)
	}

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        delivery.NewRouter(logger, store, cfg.BaseURL),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.Storage.Driver),
		)

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
