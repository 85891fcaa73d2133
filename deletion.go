package softdelete

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DeletionInterceptor turns a host hard delete into a soft delete.
type DeletionInterceptor struct {
	plugin *Plugin
}

// BeforeDeleteUser is the OperationUserDelete hook. It soft deletes the user
// and always vetoes the physical delete when it succeeds.
func (d *DeletionInterceptor) BeforeDeleteUser(ctx context.Context, hc *HookContext, record any) (Decision, error) {
	user, err := userFromRecord(record)
	if err != nil {
		return Veto, err
	}

	var caps Capabilities
	if hc != nil {
		caps = hc.Capabilities
	}

	if err := d.SoftDelete(ctx, caps, user); err != nil {
		return Veto, err
	}
	return Veto, nil
}

// BeforeDeleteAccount is the OperationAccountDelete hook. It keeps the
// credential row during the delete-user flow so restore can verify the
// original password.
func (d *DeletionInterceptor) BeforeDeleteAccount(_ context.Context, hc *HookContext, record any) (Decision, error) {
	if hc == nil || hc.Path != d.plugin.routes.DeleteUser {
		return Proceed, nil
	}

	var providerID string
	switch acc := record.(type) {
	case *Account:
		if acc != nil {
			providerID = acc.ProviderID
		}
	case Account:
		providerID = acc.ProviderID
	}

	if providerID == ProviderCredential {
		return Veto, nil
	}
	return Proceed, nil
}

// SoftDelete revokes sessions, marks the user deleted and blocks the email.
// Steps are not transactional. A retry after a partial failure is safe.
func (d *DeletionInterceptor) SoftDelete(ctx context.Context, caps Capabilities, user *User) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "soft delete cancelled")
	}

	p := d.plugin
	caps = p.resolve(caps)
	if err := caps.requireAdapter("delete user"); err != nil {
		return err
	}
	if user == nil || user.ID == "" {
		return contextUnavailable("delete user", "user record")
	}

	sessions := sessionStore{adapter: caps.Adapter, sessions: caps.Sessions}
	if err := sessions.RevokeAll(ctx, user.ID); err != nil {
		return err
	}

	// the hook record may be stale, the stored row decides the transition
	if current, err := p.users(caps).FindByID(ctx, user.ID); err == nil {
		user.Status = current.Status
		user.DeletedAt = current.DeletedAt
		if user.Email == "" {
			user.Email = current.Email
		}
	} else if !IsRecordNotFound(err) {
		return wrapInternal(err, "load user")
	}

	wasDeleted := user.IsDeleted()
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = ActorRef{ID: user.ID, Type: "user"}
	}
	if _, err := p.stateMachine(caps).Transition(ctx, actor, user, UserStatusDeleted, "soft delete"); err != nil {
		return err
	}

	deletedAt := p.now()
	if user.DeletedAt != nil {
		deletedAt = *user.DeletedAt
	}

	meta := map[string]any{
		"deleted_at":            deletedAt.UTC().Format(time.RFC3339),
		"scheduled_deletion_at": ScheduledDeletionAt(deletedAt, p.retentionDays).UTC().Format(time.RFC3339),
		"already_deleted":       wasDeleted,
	}

	if p.blockReRegistration && user.Email != "" {
		now := p.now()
		row, err := p.blocks(caps).Block(ctx, user.Email, now, BlockExpiresAt(now, p.retentionDays))
		if err != nil {
			return err
		}
		meta["blocked_until"] = row.ExpiresAt.UTC().Format(time.RFC3339)
	}

	p.logger.Info("user soft deleted id=%s email=%s", user.ID, maskEmail(user.Email))
	p.record(ctx, ActivityEvent{
		EventType:  ActivityEventUserSoftDeleted,
		Actor:      actor,
		UserID:     user.ID,
		FromStatus: UserStatusActive,
		ToStatus:   UserStatusDeleted,
		Metadata:   meta,
	})
	return nil
}

// GuardRequest requires a password on the delete-user path and checks it
// against the credential account of the authenticated user.
func (d *DeletionInterceptor) GuardRequest(ctx context.Context, rc *RequestContext) error {
	if rc == nil || rc.Password == "" {
		return ErrPasswordRequired.Clone()
	}

	p := d.plugin
	caps := p.resolve(rc.Capabilities)
	if err := caps.requirePasswords("delete guard"); err != nil {
		return err
	}
	if rc.UserID == "" {
		return ErrSessionRequired.Clone()
	}

	account, err := p.accounts(caps).FindCredential(ctx, rc.UserID)
	if err != nil {
		return err
	}
	if !account.HasPassword() {
		return newError(ErrNoPasswordCredential, map[string]any{"user_id": rc.UserID})
	}
	if !p.verifyPassword(caps.Passwords, rc.Password, account.Password) {
		return ErrInvalidPassword.Clone()
	}
	return nil
}

func userFromRecord(record any) (*User, error) {
	switch u := record.(type) {
	case *User:
		if u != nil {
			return u, nil
		}
	case User:
		return &u, nil
	}
	return nil, contextUnavailable("delete user", "user record")
}
