// Command visiond is the always-on-top vision companion daemon: a
// local trigger server in front of the overlay window lifecycle and
// the screenshot-to-advice pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"visiond/internal/advice"
	"visiond/internal/amqp"
	"visiond/internal/capture"
	"visiond/internal/config"
	apphttp "visiond/internal/http"
	"visiond/internal/log"
	"visiond/internal/overlay"
	"visiond/internal/services"
	"visiond/internal/snapshot"
	"visiond/internal/storage"
	"visiond/internal/worker"
)

func main() {
	_ = godotenv.Load()

	initialUser := flag.String("user", "", "user bound to the overlay at startup")
	flag.Parse()

	logger := log.New(log.ComponentApp, slog.LevelInfo)
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SnapshotDBPath)
	if err != nil {
		logger.Error("Failed to open snapshot database", log.FieldError, err, "path", cfg.SnapshotDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	provider := snapshot.NewProvider(repo, cfg.ContextCacheTTL, logger)

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, advice events disabled", log.FieldError, err)
		} else {
			publisher = amqpClient
			defer amqpClient.Close()
		}
	}

	// One bridge for the process: the shell that renders the window
	// drains its command stream across instance restarts.
	bridge := overlay.NewBridge(64, logger)

	manager := services.NewManager(services.Deps{
		Surface:   func() overlay.Surface { return bridge },
		Collapsed: overlay.Geometry{Width: cfg.CollapsedWidth, Height: cfg.CollapsedHeight},
		Expanded:  overlay.Geometry{Width: cfg.ExpandedWidth, Height: cfg.ExpandedHeight},
		Capturer:  capture.NewDisplay(),
		MinBytes:  cfg.CaptureMinBytes,
		Contexts:  provider,
		Advisor:   advice.NewClient(cfg.AdviceURL, logger),
		Publisher: publisher,
		History:   repo,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// An initial user from the process arguments starts the overlay
	// minimized and idle, visible only once the user expands it.
	if *initialUser != "" {
		manager.Start(ctx, *initialUser)
		if err := manager.Minimize(); err != nil {
			logger.Warn("initial minimize failed", log.FieldError, err)
		}
	}

	refresher := worker.NewRefresher(cfg.BackendBaseURL, repo, provider, manager.ActiveUser, cfg.ContextRefreshInterval, logger)
	srv := apphttp.NewServer(":"+cfg.ControlPort, manager, repo, provider, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting trigger server", "port", cfg.ControlPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("trigger server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		manager.Stop(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// Drain the window command stream. A platform shell would apply
	// these; without one attached they are traced and discarded.
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case cmd := <-bridge.Commands():
				logger.Debug("window command", "command", cmd.Name)
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Daemon stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Daemon stopped gracefully")
}
