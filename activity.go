package identity

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegistered            ActivityEventType = "identity.registered"
	ActivityEventLoginSuccess          ActivityEventType = "identity.login.success"
	ActivityEventLoginFailure          ActivityEventType = "identity.login.failure"
	ActivityEventVerificationRequested ActivityEventType = "identity.email.verification_requested"
	ActivityEventEmailVerified         ActivityEventType = "identity.email.verified"
	ActivityEventProfileUpdated        ActivityEventType = "identity.profile.updated"
)

// ActivityEvent captures audit-friendly information about an action.
// Events never carry secrets or tokens.
type ActivityEvent struct {
	EventType  ActivityEventType
	AccountID  string
	Email      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
