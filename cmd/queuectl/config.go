package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/martijngastkemper/worker-bundle/pkg/queue"
	"github.com/martijngastkemper/worker-bundle/pkg/sqs"
)

// Config holds all configuration for a queuectl invocation
type Config struct {
	// Application settings
	Verbose bool

	// SQS settings
	SQS sqs.Config

	// Command settings
	Options     queue.Options
	Wait        time.Duration
	Concurrency int64
	MaxMessages int
	ExitOnEmpty bool

	// Metrics settings
	MetricsHost string
	MetricsPort int
	Environment string
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// buildConfig builds a Config from CLI context flags
func buildConfig(c *cli.Context) (*Config, error) {
	opts, err := parseOptions(c.StringSlice("option"))
	if err != nil {
		return nil, err
	}

	// Values from --env-file apply where no flag or environment variable is set
	base := sqs.Config{}
	if files := c.StringSlice("env-file"); len(files) > 0 {
		base, err = sqs.LoadConfig(files...)
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Verbose: c.Bool("verbose"),
		SQS: sqs.Config{
			Region:           stringOr(c, "region", base.Region),
			Profile:          stringOr(c, "profile", base.Profile),
			Endpoint:         stringOr(c, "endpoint", base.Endpoint),
			AccessKeyID:      stringOr(c, "access-key-id", base.AccessKeyID),
			SecretAccessKey:  stringOr(c, "secret-access-key", base.SecretAccessKey),
			SessionToken:     stringOr(c, "session-token", base.SessionToken),
			RetryMaxAttempts: base.RetryMaxAttempts,
			DefaultWaitTime:  base.DefaultWaitTime,
		},
		Options:     opts,
		Wait:        c.Duration("wait"),
		Concurrency: c.Int64("concurrency"),
		MaxMessages: c.Int("max-messages"),
		ExitOnEmpty: c.Bool("exit-on-empty"),
		MetricsHost: c.String("metrics-host"),
		MetricsPort: c.Int("metrics-port"),
		Environment: c.String("environment"),
	}

	if c.IsSet("retry-max-attempts") {
		cfg.SQS.RetryMaxAttempts = c.Int("retry-max-attempts")
	}
	if c.IsSet("default-wait-time") || cfg.SQS.DefaultWaitTime == nil {
		wait := c.Duration("default-wait-time")
		cfg.SQS.DefaultWaitTime = &wait
	}
	if *cfg.SQS.DefaultWaitTime < 0 {
		return nil, fmt.Errorf("default-wait-time must not be negative, got %s", *cfg.SQS.DefaultWaitTime)
	}
	if cfg.Wait < 0 {
		return nil, fmt.Errorf("wait must not be negative, got %s", cfg.Wait)
	}
	if cfg.MaxMessages < 0 {
		return nil, fmt.Errorf("max-messages must not be negative, got %d", cfg.MaxMessages)
	}
	if c.IsSet("concurrency") && cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	return cfg, nil
}

// stringOr returns the named flag when it was given on the command line or through its
// environment variable, and fallback otherwise.
func stringOr(c *cli.Context, name, fallback string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	return fallback
}

// parseOptions turns Name=Value pairs into queue options. Values may contain '='.
func parseOptions(pairs []string) (queue.Options, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	opts := queue.Options{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid option %q, expected Name=Value", pair)
		}
		opts[name] = value
	}
	return opts, nil
}
