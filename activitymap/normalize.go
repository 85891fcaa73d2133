// Package activitymap flattens soft delete activity events into audit
// records for log pipelines and counters.
package activitymap

import (
	"context"
	"strings"
	"time"

	softdelete "github.com/goliatone/go-auth-softdelete"
)

// Outcome tells whether the recorded action went through.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRejected  Outcome = "rejected"
)

// SubjectKind tells what Record.Subject identifies.
type SubjectKind string

const (
	// SubjectUser means Subject is a user id.
	SubjectUser SubjectKind = "user"
	// SubjectIdentifier means Subject is a hashed email. Rejections for
	// unknown accounts only carry the hash.
	SubjectIdentifier SubjectKind = "identifier"
)

const (
	metaReason         = "reason"
	metaIdentifierHash = "identifier_hash"

	defaultChannel = "soft-delete"
	defaultActorID = "system"
)

// Record is the flat audit shape of a softdelete.ActivityEvent.
type Record struct {
	Verb        string         `json:"verb"`
	Outcome     Outcome        `json:"outcome"`
	Reason      string         `json:"reason,omitempty"`
	ActorID     string         `json:"actor_id"`
	ActorType   string         `json:"actor_type,omitempty"`
	Subject     string         `json:"subject,omitempty"`
	SubjectKind SubjectKind    `json:"subject_kind,omitempty"`
	FromStatus  string         `json:"from_status,omitempty"`
	ToStatus    string         `json:"to_status,omitempty"`
	Channel     string         `json:"channel,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// Option customizes Normalize.
type Option func(*config)

type config struct {
	channel       string
	actorFallback string
	metadataKeys  map[string]struct{}
	now           func() time.Time
}

// WithChannel sets the channel stamped on every record.
func WithChannel(channel string) Option {
	return func(c *config) {
		if channel = strings.TrimSpace(channel); channel != "" {
			c.channel = channel
		}
	}
}

// WithActorFallback sets the actor id used when the event names neither an
// actor nor a user, as with blocked sign ups.
func WithActorFallback(actorID string) Option {
	return func(c *config) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			c.actorFallback = actorID
		}
	}
}

// WithMetadataKeys forwards only the listed metadata keys. Reason and the
// identifier hash are promoted to fields and never appear in Metadata.
func WithMetadataKeys(keys ...string) Option {
	return func(c *config) {
		if c.metadataKeys == nil {
			c.metadataKeys = make(map[string]struct{}, len(keys))
		}
		for _, key := range keys {
			c.metadataKeys[key] = struct{}{}
		}
	}
}

// WithClock stamps events that arrive without OccurredAt.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// Normalize flattens event into a Record.
func Normalize(event softdelete.ActivityEvent, opts ...Option) Record {
	c := config{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}

	rec := Record{
		Verb:       string(event.EventType),
		Outcome:    outcome(event.EventType),
		Reason:     stringMeta(event.Metadata, metaReason),
		ActorID:    firstNonEmpty(strings.TrimSpace(event.Actor.ID), strings.TrimSpace(event.UserID), c.actorFallback),
		ActorType:  strings.TrimSpace(event.Actor.Type),
		FromStatus: string(event.FromStatus),
		ToStatus:   string(event.ToStatus),
		Channel:    c.channel,
		Metadata:   c.metadata(event.Metadata),
		OccurredAt: event.OccurredAt,
	}

	if id := strings.TrimSpace(event.UserID); id != "" {
		rec.Subject, rec.SubjectKind = id, SubjectUser
	} else if hash := stringMeta(event.Metadata, metaIdentifierHash); hash != "" {
		rec.Subject, rec.SubjectKind = hash, SubjectIdentifier
	}

	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = c.now().UTC()
	}
	return rec
}

// Sink adapts a Record consumer into a softdelete.ActivitySink.
func Sink(fn func(ctx context.Context, record Record) error, opts ...Option) softdelete.ActivitySink {
	return softdelete.ActivitySinkFunc(func(ctx context.Context, event softdelete.ActivityEvent) error {
		if fn == nil {
			return nil
		}
		return fn(ctx, Normalize(event, opts...))
	})
}

func outcome(eventType softdelete.ActivityEventType) Outcome {
	switch eventType {
	case softdelete.ActivityEventSignInBlocked,
		softdelete.ActivityEventSignUpBlocked,
		softdelete.ActivityEventRestoreFailed:
		return OutcomeRejected
	}
	return OutcomeSucceeded
}

func (c config) metadata(in map[string]any) map[string]any {
	var out map[string]any
	for key, value := range in {
		if key == metaReason || key == metaIdentifierHash {
			continue
		}
		if c.metadataKeys != nil {
			if _, ok := c.metadataKeys[key]; !ok {
				continue
			}
		}
		if out == nil {
			out = make(map[string]any, len(in))
		}
		out[key] = value
	}
	return out
}

func stringMeta(meta map[string]any, key string) string {
	value, _ := meta[key].(string)
	return strings.TrimSpace(value)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
