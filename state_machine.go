package softdelete

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// UserStatusStore persists status changes.
type UserStatusStore interface {
	UpdateStatus(ctx context.Context, userID string, status UserStatus, deletedAt *time.Time) error
}

// TransitionContext describes a pending soft delete or restore.
type TransitionContext struct {
	Actor  ActorRef
	User   *User
	From   UserStatus
	To     UserStatus
	Reason string
}

// Deleting reports whether the transition soft deletes the user.
func (tc TransitionContext) Deleting() bool {
	return tc.To == UserStatusDeleted
}

// TransitionHook runs around a status change. A before hook error vetoes
// the change; an after hook error is returned once the change is stored.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// HookPhase identifies whether a hook ran before or after persistence.
type HookPhase string

const (
	HookPhaseBefore HookPhase = "before_transition"
	HookPhaseAfter  HookPhase = "after_transition"
)

// HookErrorHandler maps a failing hook to the error returned to the caller.
type HookErrorHandler func(ctx context.Context, phase HookPhase, err error, tc TransitionContext) error

// TransitionHooks groups the hooks run on every soft delete and restore.
type TransitionHooks struct {
	Before  []TransitionHook
	After   []TransitionHook
	OnError HookErrorHandler
}

func (h TransitionHooks) empty() bool {
	return len(h.Before) == 0 && len(h.After) == 0 && h.OnError == nil
}

// UserStateMachine moves users between active and deleted.
type UserStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, reason string) (*User, error)
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*userStateMachine)

// WithStateMachineClock sets the clock used to stamp deletedAt.
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *userStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink publishes user.status_changed events to sink.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger sets the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *userStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithStateMachineHooks appends hooks to every transition.
func WithStateMachineHooks(hooks TransitionHooks) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.hooks.Before = appendHooks(sm.hooks.Before, hooks.Before)
		sm.hooks.After = appendHooks(sm.hooks.After, hooks.After)
		if hooks.OnError != nil {
			sm.hooks.OnError = hooks.OnError
		}
	}
}

// NewUserStateMachine returns the default implementation backed by store.
func NewUserStateMachine(store UserStatusStore, opts ...StateMachineOption) UserStateMachine {
	sm := &userStateMachine{
		store:        store,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hooks:        TransitionHooks{OnError: wrapHookError},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type userStateMachine struct {
	store        UserStatusStore
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
	hooks        TransitionHooks
}

// Transition moves user to target. A transition to the current status is a
// no-op, so repeated deletes keep the original deletedAt and skip hooks.
func (sm *userStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, reason string) (*User, error) {
	if user == nil {
		return nil, newError(ErrInvalidTransition, map[string]any{
			"target": target,
			"reason": "user is nil",
		})
	}

	user.EnsureStatus()
	from := user.Status
	if from == target {
		return user, nil
	}

	if !knownStatus(target) {
		return nil, newError(ErrInvalidTransition, map[string]any{
			"from": from,
			"to":   target,
		})
	}

	if sm.store == nil {
		return nil, contextUnavailable("transition", "user status store")
	}

	tc := TransitionContext{
		Actor:  actor,
		User:   user,
		From:   from,
		To:     target,
		Reason: reason,
	}

	if err := sm.run(ctx, HookPhaseBefore, sm.hooks.Before, tc); err != nil {
		return nil, err
	}

	var deletedAt *time.Time
	if tc.Deleting() {
		now := sm.now()
		deletedAt = &now
	}

	if err := sm.store.UpdateStatus(ctx, user.ID, target, deletedAt); err != nil {
		return nil, err
	}

	user.Status = target
	user.DeletedAt = deletedAt

	activityRecorder{sink: sm.activitySink, logger: sm.logger, now: sm.now}.record(ctx, ActivityEvent{
		EventType:  ActivityEventUserStatusChanged,
		Actor:      actor,
		UserID:     user.ID,
		FromStatus: from,
		ToStatus:   target,
		Metadata:   reasonMetadata(reason),
	})

	if err := sm.run(ctx, HookPhaseAfter, sm.hooks.After, tc); err != nil {
		return user, err
	}

	return user, nil
}

func (sm *userStateMachine) run(ctx context.Context, phase HookPhase, hooks []TransitionHook, tc TransitionContext) error {
	for _, hook := range hooks {
		if err := hook(ctx, tc); err != nil {
			if sm.hooks.OnError == nil {
				return err
			}
			return sm.hooks.OnError(ctx, phase, err, tc)
		}
	}
	return nil
}

// knownStatus reports whether status is one of the two lifecycle states.
// Any change between them is allowed.
func knownStatus(status UserStatus) bool {
	return status == UserStatusActive || status == UserStatusDeleted
}

func appendHooks(dst, src []TransitionHook) []TransitionHook {
	for _, h := range src {
		if h != nil {
			dst = append(dst, h)
		}
	}
	return dst
}

// wrapHookError keeps coded errors so a veto can choose its own status.
func wrapHookError(_ context.Context, phase HookPhase, err error, tc TransitionContext) error {
	var coded *goerrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryOperation, string(phase)+" hook failed").
		WithMetadata(map[string]any{
			"user_id": tc.User.ID,
			"from":    tc.From,
			"to":      tc.To,
		})
}

func reasonMetadata(reason string) map[string]any {
	if reason == "" {
		return nil
	}
	return map[string]any{"reason": reason}
}
