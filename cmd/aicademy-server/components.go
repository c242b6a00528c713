package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ryhan5/aicademy/internal/bootstrap"
	"github.com/ryhan5/aicademy/internal/config"
	"github.com/ryhan5/aicademy/internal/course"
	"github.com/ryhan5/aicademy/internal/database"
	"github.com/ryhan5/aicademy/internal/generation"
	"github.com/ryhan5/aicademy/internal/inference/provider"
	"github.com/ryhan5/aicademy/internal/logger"
	"github.com/ryhan5/aicademy/internal/queue"
	"github.com/ryhan5/aicademy/internal/record"
)

// components is the wired object graph shared by serve and worker.
type components struct {
	db         *sqlx.DB
	courses    *course.DBRepository
	records    *record.DBRepository
	queue      *queue.RedisQueue
	generation *generation.Service
}

// newComponents opens every dependency and registers its teardown on app.
func newComponents(ctx context.Context, cfg *config.Config, log *logger.Logger, app *bootstrap.App) (*components, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database.Open() > %w", err)
	}
	app.AddShutdownHook(func(context.Context) error {
		return db.Close()
	})
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db.PingContext() > %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("database.Migrate() > %w", err)
	}

	gateway, closeGateway, err := provider.New(ctx, cfg.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("provider.New() > %w", err)
	}
	app.AddShutdownHook(func(context.Context) error {
		return closeGateway()
	})

	c := &components{
		db:      db,
		courses: course.NewDBRepository(db),
		records: record.NewDBRepository(db),
	}
	opts := []generation.Option{generation.WithLogger(log.With("component", "Generation"))}

	if cfg.Queue.Enabled {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Queue.Redis.Addr},
			Password: cfg.Queue.Redis.Password,
			DB:       cfg.Queue.Redis.DB,
		})
		app.AddShutdownHook(func(context.Context) error {
			return client.Close()
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s > %w", cfg.Queue.Redis.Addr, err)
		}
		c.queue = queue.NewRedisQueue(client, cfg.Queue.Key, cfg.Queue.BlockTimeout)
		opts = append(opts, generation.WithDispatcher(c.queue, cfg.Generation.Fallback))
		log.Info("generation queue enabled", "key", cfg.Queue.Key, "fallback", cfg.Generation.Fallback)
	}

	c.generation = generation.NewService(c.courses, c.records, gateway, opts...)
	log.Info("components ready", "database", cfg.Database.Driver, "provider", cfg.LLM.Provider)
	return c, nil
}
