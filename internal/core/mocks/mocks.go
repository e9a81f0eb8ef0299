package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lorrc/realtime-relay/internal/core/domain"
)

// MockChangeSource is a mock implementation of ports.ChangeSource
type MockChangeSource struct {
	mock.Mock
}

func NewMockChangeSource() *MockChangeSource {
	return &MockChangeSource{}
}

func (m *MockChangeSource) Subscribe(ctx context.Context) <-chan domain.ChangeEvent {
	args := m.Called(ctx)
	return args.Get(0).(<-chan domain.ChangeEvent)
}

func (m *MockChangeSource) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockBroadcaster is a mock implementation of ports.EventBroadcaster
type MockBroadcaster struct {
	mock.Mock
}

func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

func (m *MockBroadcaster) Broadcast(event domain.ChangeEvent) error {
	args := m.Called(event)
	return args.Error(0)
}
