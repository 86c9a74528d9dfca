package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/senders"
)

// SenderConfig holds the provider settings of every channel. A channel whose
// settings are empty is left unregistered and its sends fail.
type SenderConfig struct {
	SMTP            senders.SMTPConfig
	NetworkAPIURL   string
	NetworkAPIToken string
	ChatAPIURL      string
	ChatAPIToken    string
	// SendRate is the provider pacing in sends per second; zero disables it.
	SendRate float64
}

// NewSenders builds the channel router, wrapped in a rate limiter, and the
// network profile resolver.
func NewSenders(config SenderConfig) (senders.Sender, senders.NetworkResolver) {
	client := &http.Client{Timeout: 30 * time.Second}
	router := senders.NewRouter()

	var resolver senders.NetworkResolver = missingResolver{}

	if config.SMTP.Host != "" {
		router.Register(models.ChannelEmail, senders.NewSMTPSender(config.SMTP))
	}

	if config.NetworkAPIURL != "" {
		network := senders.NewNetworkSender(config.NetworkAPIURL, config.NetworkAPIToken, client)
		router.Register(models.ChannelNetwork, network)
		resolver = network
	}

	if config.ChatAPIURL != "" {
		router.Register(models.ChannelChat, senders.NewChatSender(config.ChatAPIURL, config.ChatAPIToken, client))
	}

	return senders.NewThrottled(router, config.SendRate, 1), resolver
}

type missingResolver struct{}

func (missingResolver) ResolveNetworkID(context.Context, string) (string, error) {
	return "", fmt.Errorf("%s: %w", models.ChannelNetwork, senders.ErrChannelNotSupported)
}
