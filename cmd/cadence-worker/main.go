package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

func main() {
	loadDotEnv()

	cmd := &cli.Command{
		Name:                  "cadence-worker",
		EnableShellCompletion: true,
		Usage:                 "Advance workflow executions and dispatch campaigns",
		Commands: []*cli.Command{
			NewRunCommand(),
			NewProcessCommand(),
			NewDispatchCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		slog.Error("cadence-worker failed", "error", err)
		os.Exit(1)
	}
}

// loadDotEnv reads .env into the environment without overriding variables already set.
func loadDotEnv() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}
}
