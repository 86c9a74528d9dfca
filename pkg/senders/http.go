package senders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/cadence/pkg/models"
)

const defaultHTTPTimeout = 30 * time.Second

// apiClient talks JSON to a messaging provider's REST API.
type apiClient struct {
	channel models.Channel
	baseURL string
	token   string
	client  *http.Client
}

func newAPIClient(channel models.Channel, baseURL, token string, client *http.Client) apiClient {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return apiClient{
		channel: channel,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

type providerResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

func (c apiClient) do(ctx context.Context, method, path string, payload any, connection *models.ChannelConnection) (providerResponse, error) {
	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return providerResponse{}, fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return providerResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	token := c.token
	if connection != nil && connection.Config["token"] != "" {
		token = connection.Config["token"]
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return providerResponse{}, fmt.Errorf("failed to call %s provider: %w", c.channel, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return providerResponse{}, fmt.Errorf("failed to read %s provider response: %w", c.channel, err)
	}

	var decoded providerResponse
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := decoded.Error
		if message == "" {
			message = strings.TrimSpace(string(raw))
		}

		return decoded, &ProviderError{Channel: c.channel, Code: resp.StatusCode, Message: message}
	}

	return decoded, nil
}

// NetworkSender sends connection invites and direct messages through a
// professional-network provider API. It also resolves profile URLs.
type NetworkSender struct {
	api apiClient
}

func NewNetworkSender(baseURL, token string, client *http.Client) *NetworkSender {
	return &NetworkSender{api: newAPIClient(models.ChannelNetwork, baseURL, token, client)}
}

func (s *NetworkSender) Send(ctx context.Context, message Message) (Receipt, error) {
	recipient := message.Contact.NetworkID
	if recipient == "" {
		return Receipt{}, ErrMissingRecipient
	}

	path := "/messages"
	payload := map[string]string{"recipient_id": recipient, "text": message.Body}

	if message.NetworkAction == models.NetworkActionInvite {
		path = "/invitations"
		payload = map[string]string{"recipient_id": recipient, "note": message.Body}
	}

	resp, err := s.api.do(ctx, http.MethodPost, path, payload, message.Connection)
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{ProviderMessageID: resp.ID}, nil
}

func (s *NetworkSender) ResolveNetworkID(ctx context.Context, profileURL string) (string, error) {
	resp, err := s.api.do(ctx, http.MethodGet, "/profiles/resolve?url="+url.QueryEscape(profileURL), nil, nil)
	if err != nil {
		return "", err
	}

	if resp.ID == "" {
		return "", &ProviderError{Channel: models.ChannelNetwork, Code: http.StatusNotFound, Message: "profile not found"}
	}

	return resp.ID, nil
}

// ChatSender sends chat messages to the contact's phone number.
type ChatSender struct {
	api apiClient
}

func NewChatSender(baseURL, token string, client *http.Client) *ChatSender {
	return &ChatSender{api: newAPIClient(models.ChannelChat, baseURL, token, client)}
}

func (s *ChatSender) Send(ctx context.Context, message Message) (Receipt, error) {
	if !message.Contact.HasPhone() {
		return Receipt{}, ErrMissingRecipient
	}

	resp, err := s.api.do(ctx, http.MethodPost, "/messages", map[string]string{
		"to":   message.Contact.Phone,
		"text": message.Body,
	}, message.Connection)
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{ProviderMessageID: resp.ID}, nil
}
