package softdelete_test

import (
	"context"
	"errors"
	"testing"
	"time"

	softdelete "github.com/goliatone/go-auth-softdelete"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDeleteUserSoftDeletesAndVetoes(t *testing.T) {
	f := newFixture(t)
	user := f.createUser("u1", "Alice@Example.com", "P1-secret")

	decision, err := f.deleteUser(user)
	require.NoError(t, err)
	assert.Equal(t, softdelete.Veto, decision)

	stored := f.user("u1")
	assert.True(t, stored.IsDeleted())
	require.NotNil(t, stored.DeletedAt)
	assert.True(t, f.clock.Now().Equal(*stored.DeletedAt))

	assert.Equal(t, 1, f.count((*softdelete.User)(nil), ""))
	assert.Equal(t, 0, f.count((*softdelete.Session)(nil), "user_id = ?", "u1"))
	assert.Equal(t, 1, f.count((*softdelete.Account)(nil), "user_id = ?", "u1"))
	assert.Equal(t, 1, f.blockedRows("alice@example.com"))

	assert.Contains(t, f.events.types(), softdelete.ActivityEventUserStatusChanged)
	event, ok := f.events.last(softdelete.ActivityEventUserSoftDeleted)
	require.True(t, ok)
	assert.Equal(t, "u1", event.UserID)
	assert.NotContains(t, event.Metadata, "email")
}

func TestDeleteUserBlockExpiry(t *testing.T) {
	f := newFixture(t, softdelete.WithRetentionDays(7))
	user := f.createUser("u1", "alice@example.com", "P1-secret")

	_, err := f.deleteUser(user)
	require.NoError(t, err)

	row := &softdelete.BlockedIdentifier{}
	require.NoError(t, f.adapter.FindOne(context.Background(), softdelete.ModelBlockedIdentifier, []softdelete.Where{
		softdelete.Eq(softdelete.FieldIdentifierHash, softdelete.HashIdentifier("alice@example.com")),
	}, row))
	require.NotNil(t, row.ExpiresAt)
	assert.True(t, f.clock.Now().Add(7*24*time.Hour).Equal(*row.ExpiresAt))
	assert.Equal(t, softdelete.IdentifierTypeEmail, row.Type)
	assert.NotContains(t, row.IdentifierHash, "alice")
}

func TestDeleteUserWithoutBlocking(t *testing.T) {
	f := newFixture(t, softdelete.WithBlockReRegistration(false))
	user := f.createUser("u1", "alice@example.com", "P1-secret")

	decision, err := f.deleteUser(user)
	require.NoError(t, err)
	assert.Equal(t, softdelete.Veto, decision)
	assert.True(t, f.user("u1").IsDeleted())
	assert.Equal(t, 0, f.blockedRows("alice@example.com"))
}

func TestDeleteUserTwiceKeepsSingleBlockAndOriginalDeletedAt(t *testing.T) {
	f := newFixture(t, softdelete.WithRetentionDays(1))
	user := f.createUser("u1", "alice@example.com", "P1-secret")
	deletedAt := f.clock.Now()

	_, err := f.deleteUser(user)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	// a stale record from the host still says active
	_, err = f.deleteUser(&softdelete.User{ID: "u1", Email: "alice@example.com", Status: softdelete.UserStatusActive})
	require.NoError(t, err)

	stored := f.user("u1")
	require.NotNil(t, stored.DeletedAt)
	assert.True(t, deletedAt.Equal(*stored.DeletedAt))
	assert.Equal(t, 1, f.blockedRows("alice@example.com"))

	row := &softdelete.BlockedIdentifier{}
	require.NoError(t, f.adapter.FindOne(context.Background(), softdelete.ModelBlockedIdentifier, []softdelete.Where{
		softdelete.Eq(softdelete.FieldIdentifierHash, softdelete.HashIdentifier("alice@example.com")),
	}, row))
	assert.True(t, f.clock.Now().Add(24*time.Hour).Equal(*row.ExpiresAt), "expiry refreshed from the second delete")
}

func TestDeleteUserRefreshesExpiredBlock(t *testing.T) {
	f := newFixture(t, softdelete.WithRetentionDays(1))
	user := f.createUser("u1", "alice@example.com", "P1-secret")
	ctx := context.Background()

	_, err := f.deleteUser(user)
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	require.NoError(t, f.plugin.SignUp().Check(ctx, f.caps, "alice@example.com"), "expired block passes")
	assert.Equal(t, 1, f.blockedRows("alice@example.com"), "expired row is left in place")

	_, err = f.deleteUser(f.user("u1"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.blockedRows("alice@example.com"))

	err = f.plugin.SignUp().Check(ctx, f.caps, "alice@example.com")
	assert.Equal(t, softdelete.CodeEmailBlocked, softdelete.TextCode(err))
}

func TestRepeatedDeleteRestoreKeepsSingleBlock(t *testing.T) {
	f := newFixture(t, softdelete.WithRetentionDays(1))
	f.createUser("u1", "alice@example.com", "P1-secret")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.deleteUser(f.user("u1"))
		require.NoError(t, err)
		assert.Equal(t, 1, f.blockedRows("alice@example.com"))

		_, err = f.plugin.Restoration().Restore(ctx, f.caps, softdelete.RestoreRequest{
			Email: "alice@example.com", Password: "P1-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, 0, f.blockedRows("alice@example.com"))
		f.clock.Advance(time.Hour)
	}
}

func TestDeleteUserPrefersSessionRevoker(t *testing.T) {
	f := newFixture(t)
	user := f.createUser("u1", "alice@example.com", "P1-secret")

	revoker := &MockSessionRevoker{}
	revoker.On("RevokeUserSessions", mock.Anything, "u1").Return(nil).Once()

	caps := f.caps
	caps.Sessions = revoker
	decision, err := f.plugin.Register(softdelete.NewRegistry()).Run(context.Background(),
		softdelete.OperationUserDelete, &softdelete.HookContext{Capabilities: caps}, user)
	require.NoError(t, err)
	assert.Equal(t, softdelete.Veto, decision)

	revoker.AssertExpectations(t)
	assert.Equal(t, 1, f.count((*softdelete.Session)(nil), "user_id = ?", "u1"), "rows left to the revoker")
}

func TestDeleteUserRevocationFailureStopsBeforeStatusChange(t *testing.T) {
	f := newFixture(t)
	user := f.createUser("u1", "alice@example.com", "P1-secret")

	revoker := &MockSessionRevoker{}
	revoker.On("RevokeUserSessions", mock.Anything, "u1").Return(errors.New("session store down")).Once()

	caps := f.caps
	caps.Sessions = revoker
	_, err := f.plugin.Deletion().BeforeDeleteUser(context.Background(), &softdelete.HookContext{Capabilities: caps}, user)
	require.Error(t, err)

	assert.True(t, f.user("u1").IsActive())
	assert.Equal(t, 0, f.blockedRows("alice@example.com"))
}

func TestDeleteUserRequiresAdapter(t *testing.T) {
	p := softdelete.New(softdelete.WithLogger(nopLogger{}))

	decision, err := p.Deletion().BeforeDeleteUser(context.Background(), &softdelete.HookContext{}, &softdelete.User{ID: "u1"})
	require.Error(t, err)
	assert.Equal(t, softdelete.Veto, decision)
	assert.Equal(t, softdelete.CodeContextUnavailable, softdelete.TextCode(err))
	assert.Equal(t, 500, softdelete.HTTPStatus(err))
}

func TestDeleteUserRejectsUnknownRecord(t *testing.T) {
	f := newFixture(t)

	_, err := f.plugin.Deletion().BeforeDeleteUser(context.Background(), &softdelete.HookContext{Capabilities: f.caps}, "u1")
	assert.Equal(t, softdelete.CodeContextUnavailable, softdelete.TextCode(err))
}

func TestBeforeDeleteAccountKeepsCredentialRow(t *testing.T) {
	f := newFixture(t)
	d := f.plugin.Deletion()
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		account any
		want    softdelete.Decision
	}{
		{"credential on delete path", softdelete.DefaultDeletePath, &softdelete.Account{ProviderID: softdelete.ProviderCredential}, softdelete.Veto},
		{"credential value on delete path", softdelete.DefaultDeletePath, softdelete.Account{ProviderID: softdelete.ProviderCredential}, softdelete.Veto},
		{"social on delete path", softdelete.DefaultDeletePath, &softdelete.Account{ProviderID: "github"}, softdelete.Proceed},
		{"credential elsewhere", "/admin/unlink", &softdelete.Account{ProviderID: softdelete.ProviderCredential}, softdelete.Proceed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := d.BeforeDeleteAccount(ctx, &softdelete.HookContext{Path: tt.path}, tt.account)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision)
		})
	}
}

func TestDeleteGuard(t *testing.T) {
	f := newFixture(t)
	f.createUser("u1", "alice@example.com", "P1-secret")
	f.createUser("u2", "bob@example.com", "")
	reg := f.plugin.Register(softdelete.NewRegistry())
	ctx := context.Background()

	tests := []struct {
		name     string
		userID   string
		password string
		wantCode string
		wantHTTP int
	}{
		{"missing password", "u1", "", softdelete.CodePasswordRequired, 400},
		{"wrong password", "u1", "nope", softdelete.CodeInvalidPassword, 400},
		{"no credential", "u2", "whatever", softdelete.CodeNoPasswordCredential, 400},
		{"valid password", "u1", "P1-secret", "", 0},
		{"anonymous with password", "", "P1-secret", softdelete.CodeSessionRequired, 401},
		{"anonymous without password", "", "", softdelete.CodePasswordRequired, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.RunRequestHooks(ctx, &softdelete.RequestContext{
				Path:     softdelete.DefaultDeletePath,
				UserID:   tt.userID,
				Password: tt.password,
			})
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, softdelete.TextCode(err))
			assert.Equal(t, tt.wantHTTP, softdelete.HTTPStatus(err))
		})
	}

	assert.True(t, f.user("u1").IsActive(), "guard never mutates")
}

func TestDeleteGuardRequiresStorage(t *testing.T) {
	p := softdelete.New(softdelete.WithLogger(nopLogger{}))

	err := p.Deletion().GuardRequest(context.Background(), &softdelete.RequestContext{
		Path:     softdelete.DefaultDeletePath,
		UserID:   "u1",
		Password: "definitely-wrong",
	})
	require.Error(t, err)
	assert.Equal(t, softdelete.CodeContextUnavailable, softdelete.TextCode(err))
	assert.Equal(t, 500, softdelete.HTTPStatus(err))
}

func TestSoftDeleteRecoversWhenBlockInsertLosesRace(t *testing.T) {
	f := newFixture(t, softdelete.WithRetentionDays(3))
	user := f.createUser("u1", "alice@example.com", "P1-secret")
	ctx := context.Background()

	// another delete inserted the row between our lookup and our insert
	soon := f.clock.Now().Add(time.Minute)
	require.NoError(t, f.adapter.Create(ctx, softdelete.ModelBlockedIdentifier, &softdelete.BlockedIdentifier{
		ID:             "concurrent",
		IdentifierHash: softdelete.HashIdentifier("alice@example.com"),
		Type:           softdelete.IdentifierTypeEmail,
		ExpiresAt:      &soon,
		CreatedAt:      f.clock.Now(),
	}))

	racing := &interceptAdapter{
		Adapter: f.adapter,
		findOne: func(model string, calls int) (bool, error) {
			if model == softdelete.ModelBlockedIdentifier && calls == 1 {
				return true, softdelete.ErrRecordNotFound.Clone()
			}
			return false, nil
		},
	}
	caps := softdelete.Capabilities{Adapter: racing, Passwords: f.hasher}

	require.NoError(t, f.plugin.Deletion().SoftDelete(ctx, caps, user))

	assert.Equal(t, 2, racing.calls[softdelete.ModelBlockedIdentifier], "lookup, then re-read after the failed insert")
	assert.Equal(t, 1, f.blockedRows("alice@example.com"))

	row := &softdelete.BlockedIdentifier{}
	require.NoError(t, f.db.NewSelect().Model(row).Where("id = ?", "concurrent").Scan(ctx))
	require.NotNil(t, row.ExpiresAt)
	assert.WithinDuration(t, f.clock.Now().Add(72*time.Hour), *row.ExpiresAt, time.Second)
	assert.True(t, f.user("u1").IsDeleted())
}

func TestSoftDeleteRunsTransitionHooks(t *testing.T) {
	var seen []softdelete.TransitionContext
	record := func(_ context.Context, tc softdelete.TransitionContext) error {
		seen = append(seen, tc)
		return nil
	}
	f := newFixture(t, softdelete.WithTransitionHooks(softdelete.TransitionHooks{
		Before: []softdelete.TransitionHook{record},
		After:  []softdelete.TransitionHook{record},
	}))
	user := f.createUser("u1", "alice@example.com", "P1-secret")

	_, err := f.deleteUser(user)
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.True(t, seen[0].Deleting())
	assert.Equal(t, "soft delete", seen[0].Reason)
	assert.Equal(t, softdelete.ActorRef{ID: "u1", Type: "user"}, seen[0].Actor)
	assert.True(t, seen[1].User.IsDeleted())

	_, err = f.plugin.Restoration().Restore(context.Background(), f.caps, softdelete.RestoreRequest{Email: "alice@example.com", Password: "P1-secret"})
	require.NoError(t, err)
	require.Len(t, seen, 4)
	assert.False(t, seen[2].Deleting())
	assert.Equal(t, "restore", seen[2].Reason)
	assert.True(t, seen[3].User.IsActive())
}

func TestSoftDeleteVetoedByTransitionHook(t *testing.T) {
	veto := softdelete.ErrAccountDeleted.Clone()
	veto.Message = "account is under legal hold"
	f := newFixture(t, softdelete.WithTransitionHooks(softdelete.TransitionHooks{
		Before: []softdelete.TransitionHook{func(_ context.Context, tc softdelete.TransitionContext) error {
			if tc.Deleting() && tc.User.ID == "u1" {
				return veto
			}
			return nil
		}},
	}))
	user := f.createUser("u1", "alice@example.com", "P1-secret")

	decision, err := f.deleteUser(user)
	require.ErrorIs(t, err, veto)
	assert.Equal(t, softdelete.Veto, decision)
	assert.True(t, f.user("u1").IsActive())
	assert.Zero(t, f.blockedRows("alice@example.com"))
}
