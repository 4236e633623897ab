// Package activitymap flattens identity activity events into a transport
// agnostic record for audit logs and queues.
package activitymap

import (
	"strings"
	"time"

	"github.com/goliatone/go-identity"
)

// MetadataKeyEmail stores the normalized email the event refers to.
const MetadataKeyEmail = "email"

const (
	defaultChannel    = "identity"
	defaultObjectType = "account"
	anonymousActor    = "anonymous"
)

// Normalized is the flattened activity shape.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel    string
	objectType string
	now        func() time.Time
}

// Normalize converts an identity.ActivityEvent. Events for unknown emails
// (failed logins) carry no account id, they are attributed to an
// anonymous actor and keyed by email.
func Normalize(event identity.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:    defaultChannel,
		objectType: defaultObjectType,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	accountID := strings.TrimSpace(event.AccountID)
	email := strings.TrimSpace(event.Email)

	actorID := accountID
	if actorID == "" {
		actorID = anonymousActor
	}

	objectID := accountID
	if objectID == "" {
		objectID = email
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now()
	}

	metadata := make(map[string]any, len(event.Metadata)+1)
	for k, v := range event.Metadata {
		metadata[k] = v
	}
	if email != "" {
		metadata[MetadataKeyEmail] = email
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   objectID,
		Channel:    options.channel,
		Metadata:   metadata,
		OccurredAt: occurredAt.UTC(),
	}
}

// WithChannel sets the channel for normalized records.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if c := strings.TrimSpace(channel); c != "" {
			opts.channel = c
		}
	}
}

// WithObjectType sets the object type for normalized records.
func WithObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if o := strings.TrimSpace(objectType); o != "" {
			opts.objectType = o
		}
	}
}

// WithClock sets the time used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}
