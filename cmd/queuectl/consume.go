package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/martijngastkemper/worker-bundle/pkg/codec"
	"github.com/martijngastkemper/worker-bundle/pkg/metrics"
	"github.com/martijngastkemper/worker-bundle/pkg/queue"
	"github.com/martijngastkemper/worker-bundle/pkg/utils"
)

func (cmd *commands) consume(c *cli.Context) error {
	name, err := queueArg(c, 1)
	if err != nil {
		return err
	}

	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(appName, cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"queue", name,
		"region", cfg.SQS.Region,
		"endpoint", cfg.SQS.Endpoint,
		"wait", cfg.Wait,
		"maxMessages", cfg.MaxMessages,
		"exitOnEmpty", cfg.ExitOnEmpty,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"environment", cfg.Environment,
	)

	// Initialize Prometheus metrics with labels for multi-instance filtering
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		Provider:    "sqs",
		Environment: cfg.Environment,
		Region:      cfg.SQS.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := cmd.newProvider(ctx, cfg, sugar, m)
	if err != nil {
		return fmt.Errorf("failed to create queue provider: %w", err)
	}

	exists, err := p.QueueExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", queue.ErrQueueNotFound, name)
	}

	var (
		metricsServer *metrics.Server
		metricsErrCh  <-chan error
	)
	if cfg.MetricsPort > 0 {
		metricsServer = metrics.NewServer(cfg.MetricsAddr(), registry)
		metricsErrCh = metricsServer.Start()
		metricsServer.SetReady(true)
		if cfg.MetricsHost == "" {
			sugar.Infof("metrics server listening on http://0.0.0.0:%d/metrics", cfg.MetricsPort)
		} else {
			sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error {
		// The poll loop finishing ends the metrics watcher as well
		defer cancel()
		return consumeLoop(gctx, p, name, cfg, c.App.Writer, sugar)
	})
	if metricsErrCh != nil {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case err := <-metricsErrCh:
				if err != nil {
					return fmt.Errorf("metrics server failed: %w", err)
				}
				return nil
			}
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
		err = nil
	} else if err != nil {
		sugar.Errorw("consume failed", "error", err)
	}

	if metricsServer != nil {
		// Gracefully shutdown metrics server
		sugar.Info("shutting down metrics server")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("metrics server shutdown error", "error", err)
		}
	}

	sugar.Info("shutdown complete")
	return err
}

// consumeLoop receives messages one at a time and writes each as a JSON line to w.
//
// Messages that fail the checksum or cannot be decoded have already been removed from
// the queue; they are logged and skipped. Any other error stops the loop. With a zero
// wait, an empty receive is followed by a pause of emptyPollInterval.
func consumeLoop(ctx context.Context, p queue.Provider, name string, cfg *Config, w io.Writer, log *zap.SugaredLogger) error {
	received := 0
	for cfg.MaxMessages == 0 || received < cfg.MaxMessages {
		if err := ctx.Err(); err != nil {
			return err
		}

		var value any
		ok, err := p.Get(ctx, name, cfg.Wait, &value)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var corrupted *queue.CorruptedMessageError
			var decodeErr *codec.DecodeError
			if errors.As(err, &corrupted) || errors.As(err, &decodeErr) {
				log.Warnw("dropped unreadable message", "queue", name, "error", err)
				continue
			}
			return err
		}
		if !ok {
			if cfg.ExitOnEmpty {
				log.Infow("queue is empty", "queue", name, "received", received)
				return nil
			}
			// Without a client wait a queue with short polling answers at once
			if cfg.Wait == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(emptyPollInterval):
				}
			}
			continue
		}

		if err := writeJSON(w, value); err != nil {
			return err
		}
		received++
	}

	log.Infow("received requested number of messages", "queue", name, "received", received)
	return nil
}
