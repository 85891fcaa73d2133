package softdelete

import (
	"context"
	"time"
)

// SignUpGuard rejects sign up for identifiers under a live block.
type SignUpGuard struct {
	plugin *Plugin
}

// GuardRequest adapts Check to a RequestHook handler.
func (g *SignUpGuard) GuardRequest(ctx context.Context, rc *RequestContext) error {
	if rc == nil {
		return nil
	}
	return g.Check(ctx, rc.Capabilities, rc.Email)
}

// Check returns ErrEmailBlocked when email has a non expired block. Expired
// blocks pass through and are left for housekeeping.
func (g *SignUpGuard) Check(ctx context.Context, caps Capabilities, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return nil
	}

	p := g.plugin
	if !p.blockReRegistration {
		return nil
	}

	caps = p.resolve(caps)
	if err := caps.requireAdapter("sign up guard"); err != nil {
		return err
	}

	row, err := p.blocks(caps).Active(ctx, email, p.now())
	if err != nil {
		return err
	}
	if row == nil {
		return nil
	}

	meta := map[string]any{}
	if row.ExpiresAt != nil {
		meta["expires_at"] = row.ExpiresAt.UTC().Format(time.RFC3339)
	}

	p.record(ctx, ActivityEvent{
		EventType: ActivityEventSignUpBlocked,
		Metadata: map[string]any{
			"reason":          CodeEmailBlocked,
			"identifier_hash": row.IdentifierHash,
		},
	})
	return newError(ErrEmailBlocked, meta)
}
