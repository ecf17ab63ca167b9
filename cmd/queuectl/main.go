package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/martijngastkemper/worker-bundle/pkg/metrics"
	"github.com/martijngastkemper/worker-bundle/pkg/queue"
	"github.com/martijngastkemper/worker-bundle/pkg/sqs"
)

// providerFactory builds the queue provider a command talks to. m may be nil.
type providerFactory func(ctx context.Context, cfg *Config, log *zap.SugaredLogger, m *metrics.Metrics) (queue.Provider, error)

func newSQSProvider(ctx context.Context, cfg *Config, log *zap.SugaredLogger, m *metrics.Metrics) (queue.Provider, error) {
	return sqs.NewFromConfig(ctx, cfg.SQS, log, sqs.WithMetrics(m))
}

func main() {
	app := newApp(newSQSProvider)
	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(newProvider providerFactory) *cli.App {
	cmd := &commands{newProvider: newProvider}
	return &cli.App{
		Name:  appName,
		Usage: "Manage and exercise SQS queues through the queue provider",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a queue",
				ArgsUsage: "<queue>",
				Flags:     []cli.Flag{optionFlag()},
				Action:    cmd.create,
			},
			{
				Name:      "delete",
				Usage:     "Delete a queue",
				ArgsUsage: "<queue>",
				Action:    cmd.delete,
			},
			{
				Name:  "list",
				Usage: "List queue names",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "prefix",
						Aliases: []string{"p"},
						Usage:   "Only list queues whose name starts with prefix",
					},
				},
				Action: cmd.list,
			},
			{
				Name:      "exists",
				Usage:     "Report whether a queue exists",
				ArgsUsage: "<queue>",
				Action:    cmd.exists,
			},
			{
				Name:      "options",
				Usage:     "Print every attribute of a queue as JSON",
				ArgsUsage: "<queue>",
				Action:    cmd.options,
			},
			{
				Name:      "update",
				Usage:     "Set queue attributes",
				ArgsUsage: "<queue>",
				Flags:     []cli.Flag{optionFlag()},
				Action:    cmd.update,
			},
			{
				Name:      "count",
				Usage:     "Print the approximate number of visible messages",
				ArgsUsage: "<queue>",
				Action:    cmd.count,
			},
			{
				Name:      "put",
				Usage:     "Send one JSON value",
				ArgsUsage: "<queue> <json>",
				Action:    cmd.put,
			},
			{
				Name:      "get",
				Usage:     "Receive and acknowledge one message, printing it as JSON",
				ArgsUsage: "<queue>",
				Flags:     []cli.Flag{waitFlag(0)},
				Action:    cmd.get,
			},
			{
				Name:      "load",
				Usage:     "Send JSON values read line by line from stdin in batches of 10",
				ArgsUsage: "<queue>",
				Flags:     loadFlags(),
				Action:    cmd.load,
			},
			{
				Name:      "consume",
				Usage:     "Receive messages until interrupted, printing each as a JSON line",
				ArgsUsage: "<queue>",
				Flags:     consumeFlags(),
				Action:    cmd.consume,
			},
		},
	}
}

const (
	appName           = "queuectl"
	shutdownTimeout   = 5 * time.Second
	emptyPollInterval = time.Second
)
