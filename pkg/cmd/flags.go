package cmd

import (
	"time"

	"github.com/dukex/cadence/pkg/senders"
	"github.com/dukex/cadence/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

// EngineFlags are the flags shared by every binary that runs the engine.
func EngineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL (postgres://... or memory://)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for locks shared between replicas (optional)",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.IntFlag{
			Name:    "batch-size",
			Usage:   "Maximum executions advanced per batch",
			Value:   100,
			Sources: cli.EnvVars("BATCH_SIZE"),
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Usage:   "Executions advanced in parallel",
			Value:   4,
			Sources: cli.EnvVars("CONCURRENCY"),
		},
		&cli.DurationFlag{
			Name:    "claim-ttl",
			Usage:   "How long a claimed execution stays reserved",
			Value:   5 * time.Minute,
			Sources: cli.EnvVars("CLAIM_TTL"),
		},
		&cli.DurationFlag{
			Name:    "send-delay-min",
			Usage:   "Lower bound of the pause after a successful send",
			Value:   10 * time.Second,
			Sources: cli.EnvVars("SEND_DELAY_MIN"),
		},
		&cli.DurationFlag{
			Name:    "send-delay-max",
			Usage:   "Upper bound of the pause after a successful send",
			Value:   50 * time.Second,
			Sources: cli.EnvVars("SEND_DELAY_MAX"),
		},
		&cli.FloatFlag{
			Name:    "send-rate",
			Usage:   "Provider sends per second (0 disables pacing)",
			Value:   5,
			Sources: cli.EnvVars("SEND_RATE"),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP submission host",
			Sources: cli.EnvVars("SMTP_HOST"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Usage:   "SMTP submission port",
			Value:   587,
			Sources: cli.EnvVars("SMTP_PORT"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Sources: cli.EnvVars("SMTP_USERNAME"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Sources: cli.EnvVars("SMTP_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Envelope and header sender address",
			Sources: cli.EnvVars("SMTP_FROM"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Sources: cli.EnvVars("SMTP_FROM_NAME"),
		},
		&cli.StringFlag{
			Name:    "network-api-url",
			Usage:   "Professional network provider API base URL",
			Sources: cli.EnvVars("NETWORK_API_URL"),
		},
		&cli.StringFlag{
			Name:    "network-api-token",
			Sources: cli.EnvVars("NETWORK_API_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "chat-api-url",
			Usage:   "Chat provider API base URL",
			Sources: cli.EnvVars("CHAT_API_URL"),
		},
		&cli.StringFlag{
			Name:    "chat-api-token",
			Sources: cli.EnvVars("CHAT_API_TOKEN"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

// EngineConfigFromCommand reads the flags of EngineFlags.
func EngineConfigFromCommand(command *cli.Command, serviceName string) EngineConfig {
	config := workflow.DefaultConfig()
	config.BatchSize = command.Int("batch-size")
	config.Concurrency = command.Int("concurrency")
	config.ClaimTTL = command.Duration("claim-ttl")

	return EngineConfig{
		ServiceName:  serviceName,
		DatabaseURL:  command.String("database-url"),
		RedisURL:     command.String("redis-url"),
		EventBus:     command.String("event-bus"),
		KafkaBrokers: command.String("kafka-brokers"),
		Workflow:     config,
		SendDelayMin: command.Duration("send-delay-min"),
		SendDelayMax: command.Duration("send-delay-max"),
		Tracing:      command.Bool("otel"),
		Senders: SenderConfig{
			SMTP: senders.SMTPConfig{
				Host:     command.String("smtp-host"),
				Port:     command.Int("smtp-port"),
				Username: command.String("smtp-username"),
				Password: command.String("smtp-password"),
				From:     command.String("smtp-from"),
				FromName: command.String("smtp-from-name"),
			},
			NetworkAPIURL:   command.String("network-api-url"),
			NetworkAPIToken: command.String("network-api-token"),
			ChatAPIURL:      command.String("chat-api-url"),
			ChatAPIToken:    command.String("chat-api-token"),
			SendRate:        command.Float("send-rate"),
		},
	}
}
