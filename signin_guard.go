package softdelete

import (
	"context"
	"time"
)

// SignInGuard rejects credential sign in for soft deleted accounts.
type SignInGuard struct {
	plugin *Plugin
}

// GuardRequest adapts Check to a RequestHook handler.
func (g *SignInGuard) GuardRequest(ctx context.Context, rc *RequestContext) error {
	if rc == nil {
		return nil
	}
	return g.Check(ctx, rc.Capabilities, rc.Email)
}

// Check returns ErrAccountDeleted, with the deletion dates as metadata, when
// email belongs to a deleted user. It never approves a request.
func (g *SignInGuard) Check(ctx context.Context, caps Capabilities, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return nil
	}

	p := g.plugin
	caps = p.resolve(caps)
	if err := caps.requireAdapter("sign in guard"); err != nil {
		return err
	}

	user, err := p.users(caps).FindByEmail(ctx, email)
	if IsRecordNotFound(err) {
		return nil
	}
	if err != nil {
		return wrapInternal(err, "find user by email")
	}
	if !user.IsDeleted() {
		return nil
	}

	meta := map[string]any{
		"retention_days": p.retentionDays,
	}
	if user.DeletedAt != nil {
		meta["deleted_at"] = user.DeletedAt.UTC().Format(time.RFC3339)
		meta["scheduled_deletion_at"] = ScheduledDeletionAt(*user.DeletedAt, p.retentionDays).UTC().Format(time.RFC3339)
	}

	p.record(ctx, ActivityEvent{
		EventType: ActivityEventSignInBlocked,
		UserID:    user.ID,
		Metadata:  map[string]any{"reason": CodeAccountDeleted},
	})
	return newError(ErrAccountDeleted, meta)
}
