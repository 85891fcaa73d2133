package softdelete_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	softdelete "github.com/goliatone/go-auth-softdelete"
	"github.com/goliatone/go-auth-softdelete/repository"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []softdelete.ActivityEvent
}

func (r *eventRecorder) Record(_ context.Context, event softdelete.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []softdelete.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]softdelete.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *eventRecorder) last(eventType softdelete.ActivityEventType) (softdelete.ActivityEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EventType == eventType {
			return r.events[i], true
		}
	}
	return softdelete.ActivityEvent{}, false
}

type mapStorage struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
	delErr error
}

func newMapStorage() *mapStorage {
	return &mapStorage{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mapStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapStorage) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mapStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.values, key)
	delete(m.ttls, key)
	return nil
}

type fixture struct {
	t       *testing.T
	db      *bun.DB
	adapter *repository.Adapter
	clock   *testClock
	hasher  softdelete.BcryptHasher
	events  *eventRecorder
	plugin  *softdelete.Plugin
	caps    softdelete.Capabilities
}

func newFixture(t *testing.T, opts ...softdelete.Option) *fixture {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.CreateSchema(context.Background(), db))

	f := &fixture{
		t:       t,
		db:      db,
		adapter: repository.NewAdapter(db),
		clock:   newTestClock(),
		hasher:  softdelete.BcryptHasher{Cost: bcrypt.MinCost},
		events:  &eventRecorder{},
	}
	f.caps = softdelete.Capabilities{
		Adapter:   f.adapter,
		Passwords: f.hasher,
	}

	base := []softdelete.Option{
		softdelete.WithClock(f.clock.Now),
		softdelete.WithActivitySink(f.events),
		softdelete.WithCapabilities(f.caps),
		softdelete.WithLogger(nopLogger{}),
	}
	f.plugin = softdelete.New(append(base, opts...)...)
	return f
}

// createUser inserts an active user with a credential account. An empty
// password creates a provider-only account.
func (f *fixture) createUser(id, email, password string) *softdelete.User {
	f.t.Helper()
	ctx := context.Background()

	user := &softdelete.User{ID: id, Email: softdelete.NormalizeEmail(email), Status: softdelete.UserStatusActive}
	require.NoError(f.t, f.adapter.Create(ctx, softdelete.ModelUser, user))

	account := &softdelete.Account{ID: "acc-" + id, UserID: id, ProviderID: softdelete.ProviderCredential}
	if password == "" {
		account.ProviderID = "github"
	} else {
		hash, err := f.hasher.HashPassword(password)
		require.NoError(f.t, err)
		account.Password = hash
	}
	require.NoError(f.t, f.adapter.Create(ctx, softdelete.ModelAccount, account))

	session := &softdelete.Session{ID: "ses-" + id, UserID: id, Token: "tok-" + id, ExpiresAt: f.clock.Now().Add(time.Hour)}
	require.NoError(f.t, f.adapter.Create(ctx, softdelete.ModelSession, session))
	return user
}

func (f *fixture) user(id string) *softdelete.User {
	f.t.Helper()
	user := &softdelete.User{}
	require.NoError(f.t, f.adapter.FindOne(context.Background(), softdelete.ModelUser,
		[]softdelete.Where{softdelete.Eq(softdelete.FieldID, id)}, user))
	return user
}

func (f *fixture) count(model any, query string, args ...any) int {
	f.t.Helper()
	q := f.db.NewSelect().Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	n, err := q.Count(context.Background())
	require.NoError(f.t, err)
	return n
}

func (f *fixture) blockedRows(email string) int {
	return f.count((*softdelete.BlockedIdentifier)(nil), "identifier_hash = ? AND type = ?",
		softdelete.HashIdentifier(email), softdelete.IdentifierTypeEmail)
}

func (f *fixture) deleteUser(user *softdelete.User) (softdelete.Decision, error) {
	reg := f.plugin.Register(softdelete.NewRegistry())
	return reg.Run(context.Background(), softdelete.OperationUserDelete, &softdelete.HookContext{
		Capabilities: f.caps,
		Path:         softdelete.DefaultDeletePath,
	}, user)
}

// interceptAdapter lets a test answer FindOne calls before they reach the
// wrapped adapter. Returning handled=false passes the call through.
type interceptAdapter struct {
	softdelete.Adapter
	findOne func(model string, calls int) (handled bool, err error)
	calls   map[string]int
}

func (a *interceptAdapter) FindOne(ctx context.Context, model string, where []softdelete.Where, dest any) error {
	if a.calls == nil {
		a.calls = map[string]int{}
	}
	a.calls[model]++
	if a.findOne != nil {
		if handled, err := a.findOne(model, a.calls[model]); handled {
			return err
		}
	}
	return a.Adapter.FindOne(ctx, model, where, dest)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
