package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mailcal/internal/caldav"
	"mailcal/internal/config"
	"mailcal/internal/extractor"
	"mailcal/internal/forward"
	"mailcal/internal/models"
	"mailcal/internal/reconciler"
	"mailcal/internal/store"
	"mailcal/internal/webhook"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "mailcal",
		Usage: "Turn calendar invites received by email into meetings and guests.",
		Commands: []*cli.Command{
			serveCommand(),
			extractCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the inbound email webhook server.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address. Overrides LISTEN_ADDR."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Reconcile into an in-memory store and skip forwarding."},
		},
		Action: func(c *cli.Context) error {
			cfg := config.FromEnv()
			logger := setupLogger(cfg.LogLevel)

			addr := cfg.ListenAddr
			if c.IsSet("addr") {
				addr = c.String("addr")
			}

			var st store.Store
			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. Writes stay in memory.")
				st = store.NewMemory(logger)
			} else {
				if !cfg.Store.Configured() {
					logger.Warn("Entity store is not fully configured; reconciliation will fail until STORE_BASE_URL, STORE_APP_ID and STORE_API_KEY are set.")
				}
				st = store.NewClient(logger, cfg.Store)
			}

			var opts []webhook.Option
			if cfg.ForwardURL != "" && !c.Bool("dry-run") {
				opts = append(opts, webhook.WithForwarder(forward.NewClient(logger, cfg.ForwardURL)))
			}
			if cfg.CalDAV.Configured() {
				m, err := caldav.NewMirror(c.Context, logger, cfg.CalDAV)
				if err != nil {
					return fmt.Errorf("failed to create caldav mirror: %w", err)
				}
				opts = append(opts, webhook.WithMirror(m))
			}

			srv := webhook.NewServer(logger, reconciler.NewReconciler(logger, st), opts...)

			httpServer := &http.Server{
				Addr:         addr,
				Handler:      webhook.RequestLogger(logger)(srv),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Listening for inbound email.", "addr", addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return fmt.Errorf("server error: %w", err)
			case <-quit:
			}

			logger.Info("Shutting down.")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			return nil
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Print the event extracted from an inbound JSON payload or a raw .ics file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Required: true, Usage: "Path to the payload or .ics file."},
		},
		Action: func(c *cli.Context) error {
			data, err := os.ReadFile(c.String("file"))
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			var event *models.ExtractedEvent
			var msg models.InboundMessage
			if err := json.Unmarshal(data, &msg); err == nil {
				event = extractor.Extract(&msg)
			} else {
				event = extractor.Parse(string(data))
			}

			out, err := json.MarshalIndent(event, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}
