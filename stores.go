package softdelete

import (
	"context"
	"time"
)

type userStore struct {
	adapter Adapter
	now     func() time.Time
}

func (s userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	user := &User{}
	if err := s.adapter.FindOne(ctx, ModelUser, []Where{Eq(FieldEmail, NormalizeEmail(email))}, user); err != nil {
		return nil, err
	}
	user.EnsureStatus()
	return user, nil
}

func (s userStore) FindByID(ctx context.Context, id string) (*User, error) {
	user := &User{}
	if err := s.adapter.FindOne(ctx, ModelUser, []Where{Eq(FieldID, id)}, user); err != nil {
		return nil, err
	}
	user.EnsureStatus()
	return user, nil
}

// UpdateStatus writes status and deletedAt together so the pair never diverges.
func (s userStore) UpdateStatus(ctx context.Context, userID string, status UserStatus, deletedAt *time.Time) error {
	values := map[string]any{
		FieldStatus:    string(status),
		FieldDeletedAt: deletedAt,
		FieldUpdatedAt: s.now(),
	}
	if err := s.adapter.Update(ctx, ModelUser, []Where{Eq(FieldID, userID)}, values); err != nil {
		return wrapInternal(err, "update user status")
	}
	return nil
}

type accountStore struct {
	adapter Adapter
}

// FindCredential returns the credential account of the user, or nil.
func (s accountStore) FindCredential(ctx context.Context, userID string) (*Account, error) {
	account := &Account{}
	err := s.adapter.FindOne(ctx, ModelAccount, []Where{
		Eq(FieldUserID, userID),
		Eq(FieldProviderID, ProviderCredential),
	}, account)
	if IsRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapInternal(err, "find credential account")
	}
	return account, nil
}

type sessionStore struct {
	adapter  Adapter
	sessions SessionRevoker
}

// RevokeAll prefers the host bulk revoker and falls back to deleting rows.
// Revoking an empty set is not an error.
func (s sessionStore) RevokeAll(ctx context.Context, userID string) error {
	if s.sessions != nil {
		if err := s.sessions.RevokeUserSessions(ctx, userID); err != nil {
			return wrapInternal(err, "revoke user sessions")
		}
		return nil
	}

	err := s.adapter.Delete(ctx, ModelSession, []Where{Eq(FieldUserID, userID)})
	if err != nil && !IsRecordNotFound(err) {
		return wrapInternal(err, "delete user sessions")
	}
	return nil
}
