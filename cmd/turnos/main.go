package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/turnos/internal/app"
	"github.com/Freeeeeet/turnos/internal/config"
	"github.com/Freeeeeet/turnos/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "turnos",
		Short:         "Appointment slots service for a medical practice",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, app.NewLogger(cfg.Environment, cfg.LogLevel), nil
}

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the completion sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate && a.Pool != nil {
				migrator, err := app.NewMigrator(a.Pool, migrations.FS, cfg.MigrationsDir, logger)
				if err != nil {
					return err
				}
				err = migrator.Run(ctx)
				_ = migrator.Close()
				if err != nil {
					return err
				}
			}

			a.Scheduler.Start(ctx)
			defer a.Scheduler.Stop()

			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           a.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server",
					zap.String("addr", cfg.HTTPAddr),
					zap.String("environment", cfg.Environment),
					zap.String("storage", cfg.StorageDriver),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			case <-ctx.Done():
			}

			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply pending migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(fn func(ctx context.Context, m *app.Migrator) error) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx := context.Background()
		pool, err := app.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		migrator, err := app.NewMigrator(pool, migrations.FS, cfg.MigrationsDir, logger)
		if err != nil {
			return err
		}
		defer migrator.Close()

		return fn(ctx, migrator)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *app.Migrator) error {
				return m.Run(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *app.Migrator) error {
				if err := m.Status(ctx); err != nil {
					return err
				}
				version, err := m.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Current version: %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark finished reservations as completed once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()
			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			completed, err := a.Booking.CompleteDue(ctx)
			if err != nil {
				return fmt.Errorf("complete due slots: %w", err)
			}

			fmt.Printf("Completed %d slot(s).\n", completed)
			return nil
		},
	}
}
