package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/offloadhq/offload-client/internal/config"
	"github.com/offloadhq/offload-client/internal/deletion"
	"github.com/offloadhq/offload-client/internal/engine/rpc"
	"github.com/offloadhq/offload-client/internal/http/rest"
	"github.com/offloadhq/offload-client/internal/logctx"
	"github.com/offloadhq/offload-client/internal/notify"
	"github.com/offloadhq/offload-client/internal/orchestrator"
	"github.com/offloadhq/offload-client/internal/queue"
	"github.com/offloadhq/offload-client/internal/record"
	"github.com/offloadhq/offload-client/internal/state"
	"github.com/offloadhq/offload-client/internal/state/sqlite"
	"github.com/offloadhq/offload-client/internal/telemetry"
	"github.com/offloadhq/offload-client/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:     "offload-client",
	Short:   "Terminal client for the offload transfer engine",
	Version: version,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return run(ctx, cfg)
	},
}

func run(ctx context.Context, cfg *config.Config) error {
	client := rpc.NewClient(cfg.EngineURL)

	// The engine mirrors warn and error records into its own diagnostics.
	// The TUI owns stdout, so logs go to stderr.
	logger := slog.New(logctx.NewTraceHandler(logctx.NewEngineHandler(
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
		client,
	)))
	slog.SetDefault(logger)

	ctx = logctx.WithLogger(ctx, logger)
	logger.Info("offload client starting", "log_level", cfg.LogLevel, "engine_url", cfg.EngineURL)

	tel, err := telemetry.New(telemetry.Config{
		Enabled:        cfg.TelemetryEnabled,
		ServiceName:    "offload-client",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer database.Close()

	settings := sqlite.NewSettingsRepository(database)
	records := sqlite.NewRecordRepository(database)

	// =========================================================================
	// Build the core
	store := record.NewStore()

	downloadDir := loadSetting(settings, state.KeyDownloadDir, cfg.DownloadDir)

	qc := queue.NewController(store, client, downloadDir, loadMaxConcurrent(settings, cfg.MaxConcurrent))

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.WebhookURL != "" {
		notifier = &notify.WebhookNotifier{WebhookURL: cfg.WebhookURL}
	}

	dedup := notify.NewDeduplicator(notifier, &notify.SettingsPermission{Settings: settings})
	del := deletion.NewEngine(store, client, settings, downloadDir)

	orch := orchestrator.New(store, qc, dedup, del, client, settings, records, tel)
	orch.Restore(ctx)
	orch.RunEventPump(ctx, client)

	// =========================================================================
	// Start Control API
	handler := rest.NewControlHandler(orch, tel)

	server := &http.Server{
		Addr:         cfg.Control.BindAddress,
		ReadTimeout:  cfg.Control.ReadTimeout,
		WriteTimeout: cfg.Control.WriteTimeout,
		IdleTimeout:  cfg.Control.IdleTimeout,
		Handler:      handler.Routes(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("control API listening", "host", cfg.Control.BindAddress)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("control server error: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Control.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the control server", "err", err)

			return server.Close()
		}

		return nil
	})

	// =========================================================================
	// Start TUI
	group.Go(func() error {
		serverURL, _, _ := settings.Get(state.KeyServerURL)
		username, _, _ := settings.Get(state.KeyUsername)
		password, havePassword, _ := settings.Get(state.KeyPassword)

		model := tui.New(ctx, orch, serverURL, username)

		// Persisted credentials skip the login form when they still work.
		if serverURL != "" && username != "" && havePassword {
			if err := orch.Login(ctx, serverURL, username, password); err != nil {
				logger.Warn("auto-login failed", "err", err)
			} else {
				model = model.Authenticated()
			}
		}

		program := tea.NewProgram(
			model,
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
			tea.WithContext(ctx),
		)

		if _, err := program.Run(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("tui error: %w", err)
		}

		// Quitting the TUI shuts the whole client down.
		return context.Canceled
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		return err
	}

	logger.Info("offload client stopped")

	return nil
}

// loadSetting prefers a persisted value over the configured default.
func loadSetting(settings state.SettingsRepository, key, fallback string) string {
	raw, ok, err := settings.Get(key)
	if err != nil || !ok || raw == "" {
		return fallback
	}

	return raw
}

// loadMaxConcurrent prefers the persisted cap over the configured default.
func loadMaxConcurrent(settings state.SettingsRepository, fallback int) int {
	raw, ok, err := settings.Get(state.KeyMaxConcurrent)
	if err != nil || !ok {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return n
}
