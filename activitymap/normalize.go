// Package activitymap converts form activity events into a flat record that
// log pipelines and event buses can consume without importing authweb.
package activitymap

import (
	"context"
	"maps"
	"strings"
	"time"

	authweb "github.com/goliatone/go-auth-web"
	"github.com/google/uuid"
)

const (
	MetadataKeyForm        = "form"
	MetadataKeyReason      = "reason"
	MetadataKeyCode        = "code"
	MetadataKeyEmailDomain = "email_domain"
)

const (
	defaultChannel = "auth-web"
	defaultActorID = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	actorFallback string
}

// Normalize flattens event. The form becomes the object type, failure
// details move into metadata.
func Normalize(event authweb.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	out := Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.UserID), options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: strings.TrimSpace(event.Form),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
	if event.ID != uuid.Nil {
		out.ID = event.ID.String()
	}
	return out
}

// WithDefaultChannel sets the channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the actor id used when the event has no user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// LogSink returns an ActivitySink writing every normalized event to logger.
func LogSink(logger authweb.Logger, opts ...Option) authweb.ActivitySink {
	return authweb.ActivitySinkFunc(func(_ context.Context, event authweb.ActivityEvent) error {
		if logger == nil {
			return nil
		}
		n := Normalize(event, opts...)
		logger.Info("auth activity",
			"id", n.ID,
			"actor_id", n.ActorID,
			"verb", n.Verb,
			"object_type", n.ObjectType,
			"channel", n.Channel,
			"metadata", n.Metadata,
		)
		return nil
	})
}

func normalizeMetadata(event authweb.ActivityEvent) map[string]any {
	var metadata map[string]any
	if len(event.Metadata) > 0 {
		metadata = maps.Clone(event.Metadata)
	}

	set := func(key, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	set(MetadataKeyForm, event.Form)
	set(MetadataKeyReason, string(event.Reason))
	set(MetadataKeyCode, string(event.Code))
	set(MetadataKeyEmailDomain, event.EmailDomain)

	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
