package identity_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/mock"
)

// MockDirectory implements identity.Directory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) FindByEmail(ctx context.Context, email string) (*identity.Account, error) {
	args := m.Called(ctx, email)
	if acc, ok := args.Get(0).(*identity.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) FindByID(ctx context.Context, id string) (*identity.Account, error) {
	args := m.Called(ctx, id)
	if acc, ok := args.Get(0).(*identity.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) Insert(ctx context.Context, account *identity.Account) (*identity.Account, error) {
	args := m.Called(ctx, account)
	if acc, ok := args.Get(0).(*identity.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) Update(ctx context.Context, account *identity.Account, fields ...identity.Field) (*identity.Account, error) {
	args := m.Called(ctx, account, fields)
	if acc, ok := args.Get(0).(*identity.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockLogger implements identity.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

func newNopLogger() *MockLogger {
	l := &MockLogger{}
	l.On("Debug", mock.Anything, mock.Anything).Maybe()
	l.On("Info", mock.Anything, mock.Anything).Maybe()
	l.On("Warn", mock.Anything, mock.Anything).Maybe()
	l.On("Error", mock.Anything, mock.Anything).Maybe()
	return l
}

type capturingSink struct {
	mu     sync.Mutex
	events []identity.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt identity.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) types() []identity.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]identity.ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}
