package softdelete

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserStatusChanged ActivityEventType = "user.status.changed"
	ActivityEventUserSoftDeleted   ActivityEventType = "user.soft_deleted"
	ActivityEventUserRestored      ActivityEventType = "user.restored"
	ActivityEventSignInBlocked     ActivityEventType = "auth.sign_in.blocked"
	ActivityEventSignUpBlocked     ActivityEventType = "auth.sign_up.blocked"
	ActivityEventRestoreFailed     ActivityEventType = "user.restore.failed"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
// Raw emails are never placed in events.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	FromStatus UserStatus
	ToStatus   UserStatus
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

// MultiSink fans an event out to every sink and returns the first error.
type MultiSink []ActivitySink

// Record implements ActivitySink.
func (m MultiSink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
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

type activityRecorder struct {
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func (r activityRecorder) record(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		if actor, ok := ActorFromContext(ctx); ok {
			event.Actor = actor
		} else {
			event.Actor = ActorRef{Type: "system"}
		}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}
	if err := normalizeActivitySink(r.sink).Record(ctx, event); err != nil {
		r.logger.Warn("activity sink error event=%s: %v", event.EventType, err)
	}
}
