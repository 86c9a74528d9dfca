package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/dukex/cadence/pkg/cmd"
	"github.com/dukex/cadence/pkg/log"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

const (
	serviceName = "cadence-api"
	defaultPort = 9091
)

func main() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}

	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Enroll contacts, manage workflows and trigger batches over HTTP",
		EnableShellCompletion: true,
		Flags: append(cmd.EngineFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Cadence API")

			engine, err := cmd.NewEngine(ctx, cmd.EngineConfigFromCommand(command, serviceName), logger)
			if err != nil {
				return err
			}

			defer func() {
				err := engine.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close engine", "error", err)
				}
			}()

			return NewAPI(logger, engine).Start(command.Int("port"))
		},
	}

	err = command.Run(context.Background(), os.Args)
	if err != nil {
		slog.Error("cadence-api failed", "error", err)
		os.Exit(1)
	}
}
