package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/auth"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/handlers"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		migrate bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = fmt.Sprintf(":%d", cfg.Server.Port)
			}
			if migrate {
				if err := runMigrations(cfg.DatabaseURL); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var validator *auth.Validator
			if cfg.Auth.Enabled {
				validator = auth.NewValidator(cfg.Auth.JWTSecret)
			}
			router := server.NewRouter(handlers.New(a.coordinator, a.repo), server.Options{
				BasePath:    cfg.Server.BasePath,
				CORSOrigins: cfg.Server.CORSOrigins,
				Validator:   validator,
				Logger:      slog.Default(),
			})

			srv := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("Events service listening",
					slog.String("addr", srv.Addr),
					slog.String("base_path", cfg.Server.BasePath),
					slog.Bool("auth", cfg.Auth.Enabled),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			slog.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			a.recorder.Wait()
			slog.Info("Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: :server.port)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	return cmd
}
