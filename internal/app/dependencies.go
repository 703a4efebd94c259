// Package app wires the shared dependencies of the API, the worker and the
// CLI tools.
package app

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-taxcalc/internal/calc"
	"github.com/noah-isme/backend-taxcalc/internal/config"
	"github.com/noah-isme/backend-taxcalc/internal/obs"
	"github.com/noah-isme/backend-taxcalc/internal/resilience"
	"github.com/noah-isme/backend-taxcalc/internal/templates"
	"github.com/noah-isme/backend-taxcalc/internal/validation"
)

// Dependencies enumerates the services shared by the API and the worker.
type Dependencies struct {
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Validator *validator.Validate
	Templates *templates.Service
	Calc      *calc.Service
	Results   *calc.Results
}

// Close releases the database pool and the Redis client.
func (d *Dependencies) Close() error {
	if d.DB != nil {
		d.DB.Close()
	}
	if d.Redis != nil {
		return d.Redis.Close()
	}
	return nil
}

// Build connects to Redis and, when configured, PostgreSQL, then assembles
// the calculation service.
func Build(ctx context.Context, cfg *config.Config, appName string, logger zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Validator: validation.New()}

	rdb, err := OpenRedis(ctx, cfg.RedisURL, cfg.MetricsEnabled)
	if err != nil {
		return nil, err
	}
	deps.Redis = rdb

	var store templates.Store
	if cfg.TemplatesEnabled() {
		pool, err := OpenDatabase(ctx, cfg.DatabaseURL, appName)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		deps.DB = pool
		store = templates.GuardedStore{
			Store: templates.NewPGStore(pool),
			Breaker: resilience.NewBreaker("tax_templates", resilience.Settings{
				MinRequests:  cfg.BreakerMinRequests,
				FailureRatio: cfg.BreakerFailureRatio,
				OpenFor:      cfg.BreakerOpenFor,
			}),
		}
	} else {
		logger.Info().Msg("DATABASE_URL not set, tax templates disabled")
	}

	deps.Templates = templates.NewService(store, deps.Validator)
	deps.Calc = calc.NewService(calc.ServiceConfig{
		Templates: deps.Templates,
		Cache:     calc.NewCache(rdb, "calc:cache:", cfg.ResultCacheTTL),
		Validator: deps.Validator,
		Precision: cfg.Precision(),
		CacheTag:  fmt.Sprintf("c%d.f%d", cfg.CurrencyPrecision, cfg.FloatPrecision),
		Logger:    logger,
	})
	deps.Results = calc.NewResults(rdb, cfg.ResultCacheTTL)
	return deps, nil
}

// OpenDatabase creates a traced pgx pool and verifies connectivity.
func OpenDatabase(ctx context.Context, url, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenRedis creates an instrumented Redis client and verifies connectivity.
func OpenRedis(ctx context.Context, url string, metrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	var instErr error
	if err := redisotel.InstrumentTracing(client); err != nil {
		instErr = errors.Join(instErr, err)
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			instErr = errors.Join(instErr, err)
		}
	}
	if instErr != nil {
		zerolog.Ctx(ctx).Warn().Err(instErr).Msg("instrument redis")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// AsynqRedis returns the asynq connection options for the configured Redis.
func AsynqRedis(cfg *config.Config) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for asynq: %w", err)
	}
	return opt, nil
}

// RunMigrations applies every pending up migration. ErrNoChange is not an error.
func RunMigrations(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
