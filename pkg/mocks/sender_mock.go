// Package mocks provides testify mocks of the engine's outbound collaborators.
package mocks

import (
	"context"

	"github.com/dukex/cadence/pkg/senders"
	"github.com/stretchr/testify/mock"
)

// MockSender is a mock implementation of senders.Sender interface.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, message senders.Message) (senders.Receipt, error) {
	args := m.Called(ctx, message)

	return args.Get(0).(senders.Receipt), args.Error(1)
}

// MockNetworkResolver is a mock implementation of senders.NetworkResolver interface.
type MockNetworkResolver struct {
	mock.Mock
}

func (m *MockNetworkResolver) ResolveNetworkID(ctx context.Context, profileURL string) (string, error) {
	args := m.Called(ctx, profileURL)

	return args.String(0), args.Error(1)
}
