// Package senders implements the outbound Send capability for every channel.
package senders

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/cadence/pkg/models"
)

var (
	// ErrChannelNotSupported is returned when no sender is registered for a channel.
	ErrChannelNotSupported = errors.New("channel not supported")

	// ErrMissingRecipient is returned when the contact lacks the channel's address.
	ErrMissingRecipient = errors.New("missing recipient")
)

// Message is one rendered outbound message.
type Message struct {
	Channel models.Channel
	Contact models.Contact
	Subject string
	Body    string

	// NetworkAction selects invite or direct message on the network channel.
	NetworkAction models.NetworkAction
	// Connection carries per-account settings of the sending channel, if any.
	Connection *models.ChannelConnection
}

// Receipt is what a provider returns for an accepted message.
type Receipt struct {
	ProviderMessageID string
}

// Sender delivers a message on one channel. Any returned error means the
// message was not accepted.
type Sender interface {
	Send(ctx context.Context, message Message) (Receipt, error)
}

// NetworkResolver resolves a professional-network profile URL into the
// provider's identifier, required before sending invites.
type NetworkResolver interface {
	ResolveNetworkID(ctx context.Context, profileURL string) (string, error)
}

// ProviderError is a rejection reported by an external provider.
type ProviderError struct {
	Channel models.Channel
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider rejected message (code %d): %s", e.Channel, e.Code, e.Message)
}

// Router dispatches messages to the sender registered for their channel.
type Router struct {
	senders map[models.Channel]Sender
}

func NewRouter() *Router {
	return &Router{senders: make(map[models.Channel]Sender)}
}

// Register sets the sender for a channel, replacing any previous one.
func (r *Router) Register(channel models.Channel, sender Sender) *Router {
	r.senders[channel] = sender

	return r
}

func (r *Router) Send(ctx context.Context, message Message) (Receipt, error) {
	sender, ok := r.senders[message.Channel]
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %s", ErrChannelNotSupported, message.Channel)
	}

	return sender.Send(ctx, message)
}

// Channels returns the channels with a registered sender.
func (r *Router) Channels() []models.Channel {
	channels := make([]models.Channel, 0, len(r.senders))
	for channel := range r.senders {
		channels = append(channels, channel)
	}

	return channels
}
