package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/martijngastkemper/worker-bundle/pkg/queue"
	"github.com/martijngastkemper/worker-bundle/pkg/utils"
)

// commands holds the actions of the queuectl subcommands
type commands struct {
	newProvider providerFactory
}

type providerAction func(ctx context.Context, p queue.Provider, cfg *Config, log *zap.SugaredLogger) error

// withProvider builds the configuration, logger and provider for c and runs fn with them.
func (cmd *commands) withProvider(c *cli.Context, fn providerAction) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(appName, cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	p, err := cmd.newProvider(c.Context, cfg, sugar, nil)
	if err != nil {
		return fmt.Errorf("failed to create queue provider: %w", err)
	}
	return fn(c.Context, p, cfg, sugar)
}

func (cmd *commands) create(c *cli.Context) error {
	name, err := queueArg(c, 1)
	if err != nil {
		return err
	}
	return cmd.withProvider(c, func(ctx context.Context, p queue.Provider, cfg *Config, log *zap.SugaredLogger) error {
		q, err := p.CreateQueue(ctx, name, cfg.Options)
		if err != nil {
			return err
		}
		log.Infow("queue ready", "queue", q.Name, "url", q.URL)
		_, err = fmt.Fprintln(c.App.Writer, q.URL)
		return err
	})
}

func (cmd *commands) delete(c *cli.Context) error {
	name, err := queueArg(c, 1)
	if err != nil {
		return err
	}
	return cmd.withProvider(c, func(ctx context.Context, p queue.Provider, _ *Config, log *zap.SugaredLogger) error {
		if err := p.DeleteQueue(ctx, name); err != nil {
			return err
		}
		log.Infow("queue deleted", "queue", name)
		return nil
	})
}

func (cmd *commands) list(c *cli.Context) error {
	if c.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(c.Args().Slice(), " "))
	}
	return cmd.withProvider(c, func(ctx context.Context, p queue.Provider, _ *Config, _ *zap.SugaredLogger) error {
		names, err := p.ListQueues(ctx, c.String("prefix"))
		if err != nil {
			return err
		}
		for _, name := range names {
			if _, err := fmt.Fprintln(c.App.Writer, name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (cmd *commands) exists(c *cli.Context) error {
	name, err := queueArg(c, 1)
	if err != nil {
		return err
	}
	return cmd.withProvider(c, func(ctx context.Context, p queue.Provider, _ *Config, _ *zap.SugaredLogger) error {
		exists, err := p.QueueExists(ctx, name)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.App.Writer, exists)
		return err
	})
}

func (cmd *commands) options(c *cli.Context) error {
	name, err := queueArg(c, 1)
	if err != nil {
		return err
	}
	return cmd.withProvider(c, func(ctx context.Context, p queue.Provider, _ *Config, _ *zap.SugaredLogger) error {
		opts, err := p.QueueOptions(ctx, name)
		if err != nil {
			return err
		}
		return writeJSON(c.App.Writer, opts)
	})
}

func (cmd *commands) update(c *cli.Context) error {
	name, err := queueArg(c, 1)
	if err != nil {
		return err
	}
	return cmd.withProvider(c, func(ctx context.Context, p queue.Provider, cfg *Config, log *zap.SugaredLogger) error {
		if len(cfg.Options) == 0 {
			return errors.New("at least one --option is required")
		}
		if err := p.UpdateQueue(ctx, name, cfg.Options); err != nil {
			return err
		}
		log.Infow("queue updated", "queue", name, "options", cfg.Options)
		return nil
	})
}

func (cmd *commands) count(c *cli.Context) error {
	name, err := queueArg(c, 1)
	if err != nil {
		return err
	}
	return cmd.withProvider(c, func(ctx context.Context, p queue.Provider, _ *Config, _ *zap.SugaredLogger) error {
		n, err := p.Count(ctx, name)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.App.Writer, n)
		return err
	})
}

func (cmd *commands) put(c *cli.Context) error {
	name, err := queueArg(c, 2)
	if err != nil {
		return err
	}
	value, err := decodeJSON(c.Args().Get(1))
	if err != nil {
		return err
	}
	return cmd.withProvider(c, func(ctx context.Context, p queue.Provider, _ *Config, log *zap.SugaredLogger) error {
		if err := p.Put(ctx, name, value); err != nil {
			return err
		}
		log.Debugw("message sent", "queue", name)
		return nil
	})
}

func (cmd *commands) get(c *cli.Context) error {
	name, err := queueArg(c, 1)
	if err != nil {
		return err
	}
	return cmd.withProvider(c, func(ctx context.Context, p queue.Provider, cfg *Config, log *zap.SugaredLogger) error {
		var value any
		ok, err := p.Get(ctx, name, cfg.Wait, &value)
		if err != nil {
			return err
		}
		if !ok {
			log.Infow("no message available", "queue", name, "wait", cfg.Wait)
			return nil
		}
		return writeJSON(c.App.Writer, value)
	})
}

// queueArg returns the queue name argument after checking that exactly n arguments were given.
func queueArg(c *cli.Context, n int) (string, error) {
	if c.NArg() != n {
		return "", fmt.Errorf("expected %d argument(s): %s", n, c.Command.ArgsUsage)
	}
	name := c.Args().First()
	if name == "" {
		return "", errors.New("queue name must not be empty")
	}
	return name, nil
}

// decodeJSON parses one JSON value, keeping numbers exact.
func decodeJSON(raw string) (any, error) {
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("invalid JSON value: %q", raw)
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode JSON value: %w", err)
	}
	return v, nil
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
