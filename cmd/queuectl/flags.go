package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

// globalFlags returns the flags shared by every queuectl command
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
		&cli.StringSliceFlag{
			Name:    "env-file",
			Usage:   "Dotenv file with SQS settings, used where no flag or environment variable is set (repeatable)",
			EnvVars: []string{"QUEUECTL_ENV_FILE"},
		},
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"r"},
			Usage:   "AWS region of the queues",
			EnvVars: []string{"AWS_REGION"},
		},
		&cli.StringFlag{
			Name:    "profile",
			Usage:   "AWS shared config profile",
			EnvVars: []string{"AWS_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "endpoint",
			Aliases: []string{"e"},
			Usage:   "SQS endpoint override (e.g., http://localhost:4566 for LocalStack)",
			EnvVars: []string{"SQS_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "access-key-id",
			Usage:   "Static AWS access key ID",
			EnvVars: []string{"AWS_ACCESS_KEY_ID"},
		},
		&cli.StringFlag{
			Name:    "secret-access-key",
			Usage:   "Static AWS secret access key",
			EnvVars: []string{"AWS_SECRET_ACCESS_KEY"},
		},
		&cli.StringFlag{
			Name:    "session-token",
			Usage:   "Session token for static AWS credentials",
			EnvVars: []string{"AWS_SESSION_TOKEN"},
		},
		&cli.IntFlag{
			Name:    "retry-max-attempts",
			Usage:   "Maximum SDK retry attempts per request (0 keeps the SDK default)",
			EnvVars: []string{"SQS_RETRY_MAX_ATTEMPTS"},
		},
		&cli.DurationFlag{
			Name:    "default-wait-time",
			Usage:   "Long-polling wait applied to created queues that do not set one",
			EnvVars: []string{"SQS_DEFAULT_WAIT_TIME"},
			Value:   20 * time.Second,
		},
	}
}

func optionFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "option",
		Aliases: []string{"o"},
		Usage:   "Queue attribute as Name=Value (repeatable)",
	}
}

func waitFlag(value time.Duration) cli.Flag {
	return &cli.DurationFlag{
		Name:    "wait",
		Aliases: []string{"w"},
		Usage:   "Long-poll wait for a message, rounded up to whole seconds (0 uses the queue setting; consume pauses 1s after an empty receive)",
		EnvVars: []string{"WAIT"},
		Value:   value,
	}
}

// loadFlags returns the flags of the load command
func loadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:    "concurrency",
			Aliases: []string{"c"},
			Usage:   "Maximum number of batch requests in flight",
			EnvVars: []string{"CONCURRENCY"},
			Value:   4,
		},
	}
}

// consumeFlags returns the flags of the consume command
func consumeFlags() []cli.Flag {
	return []cli.Flag{
		waitFlag(20 * time.Second),
		&cli.IntFlag{
			Name:    "max-messages",
			Aliases: []string{"n"},
			Usage:   "Stop after this many messages (0 consumes until interrupted)",
			EnvVars: []string{"MAX_MESSAGES"},
		},
		&cli.BoolFlag{
			Name:    "exit-on-empty",
			Usage:   "Stop at the first receive that returns no message",
			EnvVars: []string{"EXIT_ON_EMPTY"},
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Aliases: []string{"m"},
			Usage:   "Port for Prometheus metrics server (0 disables the server)",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment for metrics labels (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
		},
	}
}
