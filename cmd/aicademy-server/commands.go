package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ryhan5/aicademy/internal/bootstrap"
	"github.com/ryhan5/aicademy/internal/database"
	"github.com/ryhan5/aicademy/internal/server"
	"github.com/ryhan5/aicademy/internal/worker"
)

var errQueueRequired = errors.New("queue.enabled must be true to run generation workers")

func newServeCommand() *cobra.Command {
	var withWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST and Connect APIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			app := bootstrap.New(cfg.Server.ShutdownTimeout)
			return app.Run(cmd.Context(), func(ctx context.Context) error {
				c, err := newComponents(ctx, cfg, log, app)
				if err != nil {
					return err
				}

				if withWorkers && c.queue == nil {
					return errQueueRequired
				}

				opts := []server.Option{
					server.WithPinger(c.db),
					server.WithLogger(log.With("component", "Server")),
				}
				if c.queue != nil {
					opts = append(opts, server.WithQueueDepth(c.queue))
				}
				srv := server.New(c.generation, c.courses, opts...)
				httpServer := &http.Server{
					Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Server.Port)),
					Handler:           srv.Handler(cfg.Server.CORS.AllowedOrigins),
					ReadHeaderTimeout: 10 * time.Second,
				}

				// Returns once in-flight requests and tasks have written their
				// records; the db is closed by a shutdown hook after that.
				g, gctx := errgroup.WithContext(ctx)
				if withWorkers {
					pool := worker.NewPool(c.queue, c.generation, cfg.Queue.Workers, log)
					g.Go(func() error {
						return pool.Run(gctx)
					})
				}
				g.Go(func() error {
					log.Info("starting server", "addr", httpServer.Addr, "origins", cfg.Server.CORS.AllowedOrigins)
					if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("httpServer.ListenAndServe() > %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
					defer cancel()
					if err := httpServer.Shutdown(shutdownCtx); err != nil {
						return fmt.Errorf("httpServer.Shutdown() > %w", err)
					}
					return nil
				})
				return g.Wait()
			})
		},
	}

	cmd.Flags().BoolVar(&withWorkers, "with-workers", false, "also run the generation worker pool in this process")
	return cmd
}

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run generation workers consuming the Redis queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			if !cfg.Queue.Enabled {
				return errQueueRequired
			}

			app := bootstrap.New(cfg.Server.ShutdownTimeout)
			return app.Run(cmd.Context(), func(ctx context.Context) error {
				c, err := newComponents(ctx, cfg, log, app)
				if err != nil {
					return err
				}
				return worker.NewPool(c.queue, c.generation, cfg.Queue.Workers, log).Run(ctx)
			})
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("database.Open() > %w", err)
			}
			defer func() {
				_ = db.Close()
			}()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return fmt.Errorf("database.Migrate() > %w", err)
			}
			log.Info("database migrated", "driver", cfg.Database.Driver)
			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		},
	}
}
