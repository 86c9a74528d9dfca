package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/cadence/pkg/cmd"
	"github.com/dukex/cadence/pkg/log"
	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/ticker"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "cadence-worker"

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run the batch and dispatch jobs on a schedule until interrupted",
		Flags: append(cmd.EngineFlags(),
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression of the execution batch",
				Value:   "@every 1m",
				Sources: cli.EnvVars("BATCH_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "dispatch-schedule",
				Usage:   "Cron expression of the campaign dispatch run (empty disables it)",
				Value:   "@every 1m",
				Sources: cli.EnvVars("DISPATCH_SCHEDULE"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule(serviceName).With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing Cadence Worker")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := cmd.NewEngine(ctx, cmd.EngineConfigFromCommand(command, serviceName), logger)
			if err != nil {
				return err
			}

			defer func() {
				closeErr := engine.Close(context.WithoutCancel(ctx))
				if closeErr != nil {
					logger.ErrorContext(ctx, "Failed to close engine", "error", closeErr)
				}
			}()

			err = subscribeFailures(ctx, engine.Bus, logger)
			if err != nil {
				return err
			}

			jobs := ticker.New(logger)

			err = jobs.Add(ticker.Job{
				Name: "executions",
				Spec: command.String("schedule"),
				Run: func(ctx context.Context) error {
					_, err := engine.Runner.Run(ctx, models.ExecutionFilter{})

					return err
				},
			})
			if err != nil {
				return err
			}

			if spec := command.String("dispatch-schedule"); spec != "" {
				err = jobs.Add(ticker.Job{
					Name: "campaigns",
					Spec: spec,
					Run: func(ctx context.Context) error {
						_, err := engine.Dispatcher.Process(ctx, "")

						return err
					},
				})
				if err != nil {
					return err
				}
			}

			jobs.Start(ctx)
			<-ctx.Done()

			logger.InfoContext(ctx, "Shutting down Cadence Worker")

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
			defer cancel()

			jobs.Stop(shutdownCtx)

			return nil
		},
	}
}

func NewProcessCommand() *cli.Command {
	return &cli.Command{
		Name:  "process",
		Usage: "Advance one batch of due executions and print the summary",
		Flags: append(cmd.EngineFlags(),
			&cli.StringFlag{
				Name:  "workflow-id",
				Usage: "Only advance executions of this workflow",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			return runOnce(ctx, command, func(ctx context.Context, engine *cmd.Engine) (any, error) {
				return engine.Runner.Run(ctx, models.ExecutionFilter{WorkflowID: command.String("workflow-id")})
			})
		},
	}
}

func NewDispatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "dispatch",
		Usage: "Dispatch active campaigns once and print the summary",
		Flags: append(cmd.EngineFlags(),
			&cli.StringFlag{
				Name:  "campaign-id",
				Usage: "Only dispatch this campaign",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			return runOnce(ctx, command, func(ctx context.Context, engine *cmd.Engine) (any, error) {
				return engine.Dispatcher.Process(ctx, command.String("campaign-id"))
			})
		},
	}
}

func runOnce(ctx context.Context, command *cli.Command, job func(ctx context.Context, engine *cmd.Engine) (any, error)) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule(serviceName)

	engine, err := cmd.NewEngine(ctx, cmd.EngineConfigFromCommand(command, serviceName), logger)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := engine.Close(ctx)
		if closeErr != nil {
			logger.ErrorContext(ctx, "Failed to close engine", "error", closeErr)
		}
	}()

	summary, err := job(ctx, engine)
	if err != nil {
		return err
	}

	return printJSON(command.Root().Writer, summary)
}

func printJSON(w io.Writer, value any) error {
	if w == nil {
		w = os.Stdout
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("failed to print summary: %w", err)
	}

	return nil
}
