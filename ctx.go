package softdelete

import "context"

var actorCtxKey = &contextKey{"actor"}

type contextKey struct {
	name string
}

// WithActor sets the actor attributed to activity events recorded with ctx.
func WithActor(ctx context.Context, actor ActorRef) context.Context {
	return context.WithValue(ctx, actorCtxKey, actor)
}

// ActorFromContext finds the actor set with WithActor.
func ActorFromContext(ctx context.Context) (ActorRef, bool) {
	if ctx == nil {
		return ActorRef{}, false
	}
	actor, ok := ctx.Value(actorCtxKey).(ActorRef)
	return actor, ok && actor != (ActorRef{})
}
