package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/martijngastkemper/worker-bundle/pkg/queue"
)

const (
	// loadBatchSize is the SQS limit on entries per batch request
	loadBatchSize = 10
	// maxLineBytes bounds a single input line
	maxLineBytes = 1024 * 1024
)

// loadBatch is a group of values together with the input line each came from.
type loadBatch struct {
	values []any
	lines  []int
}

// loadSummary is printed when a load finishes.
type loadSummary struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (cmd *commands) load(c *cli.Context) error {
	name, err := queueArg(c, 1)
	if err != nil {
		return err
	}
	return cmd.withProvider(c, func(ctx context.Context, p queue.Provider, cfg *Config, log *zap.SugaredLogger) error {
		batches, err := readBatches(c.App.Reader, loadBatchSize)
		if err != nil {
			return err
		}

		summary, err := sendBatches(ctx, p, name, batches, cfg.Concurrency, log)
		if err != nil {
			return err
		}
		log.Infow("load finished", "queue", name, "sent", summary.Sent, "failed", summary.Failed)
		return writeJSON(c.App.Writer, summary)
	})
}

// readBatches reads one JSON value per line, skipping blank lines, and groups them by size.
func readBatches(r io.Reader, size int) ([]loadBatch, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		batches []loadBatch
		current loadBatch
		lineNo  int
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := decodeJSON(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		current.values = append(current.values, v)
		current.lines = append(current.lines, lineNo)
		if len(current.values) == size {
			batches = append(batches, current)
			current = loadBatch{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(current.values) > 0 {
		batches = append(batches, current)
	}
	return batches, nil
}

// sendBatches sends every batch with MultiPut, keeping at most concurrency requests in flight.
// A failed request stops the load; entries rejected individually are counted and logged.
func sendBatches(
	ctx context.Context,
	p queue.Provider,
	name string,
	batches []loadBatch,
	concurrency int64,
	log *zap.SugaredLogger,
) (loadSummary, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(concurrency)
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu      sync.Mutex
		summary loadSummary
	)

	for _, batch := range batches {
		// Acquire semaphore (blocks if max concurrency reached)
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			results, err := p.MultiPut(gctx, name, batch.values)
			if err != nil {
				return fmt.Errorf("failed to send lines %d-%d: %w", batch.lines[0], batch.lines[len(batch.lines)-1], err)
			}

			mu.Lock()
			defer mu.Unlock()
			for _, r := range results {
				if r.OK {
					summary.Sent++
					continue
				}
				summary.Failed++
				log.Warnw("entry rejected",
					"queue", name,
					"line", batch.lines[r.Index],
					"code", r.Code,
					"message", r.Message,
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	return summary, ctx.Err()
}
