package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/config"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/auth"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/pkg/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront cart and order service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("STOREFRONT_CONFIG"), "path to a YAML config file")

	root.AddCommand(newServeCmd(&configPath), newCartCountCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func newCartCountCmd(configPath *string) *cobra.Command {
	var guestID, userID string
	cmd := &cobra.Command{
		Use:   "cart-count",
		Short: "Print the reconciled cart count of a guest session or user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (guestID == "") == (userID == "") {
				return errors.New("exactly one of --guest or --user is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			zl, err := newZapLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			a, err := build(cfg, zaplogger.New(zl), nil)
			if err != nil {
				return err
			}
			defer a.close()

			id := auth.Identity{GuestID: guestID}
			if userID != "" {
				id = auth.Identity{UserID: userID, Authenticated: true}
			}
			res, _ := a.reconciler.Execute(cmd.Context(), id)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"count":         res.Count,
				"authenticated": res.Authenticated,
			})
		},
	}
	cmd.Flags().StringVar(&guestID, "guest", "", "guest session ID")
	cmd.Flags().StringVar(&userID, "user", "", "user ID")
	return cmd
}

func newZapLogger(cfg config.Config) (*zap.Logger, error) {
	zl, err := logging.NewLogger(logging.Options{
		Service: cfg.Service,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return zl, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	zl, err := newZapLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	systemLogger := zaplogger.New(logging.WithTrace(zl, logging.SystemTraceID, logging.SystemSpanID))

	a, err := build(cfg, zaplogger.New(zl), nil)
	if err != nil {
		return err
	}
	defer a.close()

	a.bus.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.bus.Stop(stopCtx)
	}()
	a.worker.Start()

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
		// streams derive from ctx, so shutdown reaches hijacked websocket connections too
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("storage", cfg.Storage.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return a.janitor.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			systemLogger.Error("http_server_shutdown_error", observability.F("error", err))
			return err
		}
		systemLogger.Info("http_server_stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		systemLogger.Error("http_server_error", observability.F("error", err))
		return err
	}
	return nil
}
