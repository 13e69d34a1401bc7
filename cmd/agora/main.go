// Package main provides the Agora server: HTTP API, webhook intake, and the
// governance process supervisor in one binary.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/agorahq/agora/pkg/eventbus"
	"github.com/agorahq/agora/pkg/log"
	"github.com/agorahq/agora/pkg/notify"
	"github.com/agorahq/agora/pkg/otelhelper"
	"github.com/agorahq/agora/pkg/plugin"
	"github.com/agorahq/agora/pkg/plugins/discourse"
	"github.com/agorahq/agora/pkg/process"
	"github.com/agorahq/agora/pkg/registry"
	"github.com/agorahq/agora/pkg/supervisor"
	"github.com/agorahq/agora/pkg/web"
)

const defaultPort = 3000

func main() {
	logger := log.WithModule("agora")

	cmd := &cli.Command{
		Name:                  "agora",
		Usage:                 "Plugin actions and governance processes for external platforms",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Process repository URL (postgres://... or a file path)",
				Value:   "./data/processes",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for plugin/process state (file-backed when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "data-path",
				Usage:   "Directory for file-backed state",
				Value:   "./data",
				Sources: cli.EnvVars("DATA_PATH"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "update-schedule",
				Usage:   "Cron schedule for the pending-process sweep",
				Value:   "@every 1m",
				Sources: cli.EnvVars("UPDATE_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Agora")

			if command.Bool("tracing") {
				if _, err := otelhelper.NewTracer(ctx, "agora"); err != nil {
					logger.ErrorContext(ctx, "Failed to set up tracing", "error", err)
				}
			}

			reg := registry.New(logger)
			discourse.Register(reg)

			bus, err := newEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			states, closeStates, err := newStateStore(ctx, logger,
				command.String("redis-url"), command.String("data-path"))
			if err != nil {
				return err
			}
			defer closeStates()

			repo, closeRepo, err := newRepository(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}
			defer closeRepo()

			plugins := plugin.NewManager(reg, states, eventbus.NewEmitter(bus), logger)

			notifier := notify.NewMulti(
				notify.NewCallback(logger),
				eventbus.NewProcessNotifier(bus),
			)

			processes := process.NewManager(repo, reg, plugins, states, notifier, logger)

			sweep := supervisor.New(processes, command.String("update-schedule"), logger)
			if err := sweep.Start(ctx); err != nil {
				return err
			}
			defer sweep.Stop(ctx)

			api := web.NewAPI(logger, plugins, processes, reg)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
