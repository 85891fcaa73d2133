package softdelete

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Where is a single field equality constraint used by Adapter lookups.
// A nil Value matches NULL.
type Where struct {
	Field string
	Value any
}

// Eq builds a Where clause.
func Eq(field string, value any) Where {
	return Where{Field: field, Value: value}
}

// Adapter is the storage capability the plugin consumes from the host.
// Model names are the logical collection names (see ModelUser, ModelAccount...).
type Adapter interface {
	FindOne(ctx context.Context, model string, where []Where, dest any) error
	Update(ctx context.Context, model string, where []Where, values map[string]any) error
	Create(ctx context.Context, model string, record any) error
	Delete(ctx context.Context, model string, where []Where) error
}

// SessionRevoker revokes every active session for a user in bulk.
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string) error
}

// PasswordHasher verifies passwords against stored hashes
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// IDGenerator returns a new identifier for the given model.
type IDGenerator func(model string) string

// SecondaryStorage is an optional fast key-value backend. It is consulted
// before the durable store but is never authoritative.
type SecondaryStorage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Capabilities groups what the host exposes to a hook or operation.
type Capabilities struct {
	Adapter    Adapter
	Sessions   SessionRevoker
	Passwords  PasswordHasher
	GenerateID IDGenerator
}

// Merge returns c with empty fields filled from fallback.
func (c Capabilities) Merge(fallback Capabilities) Capabilities {
	if c.Adapter == nil {
		c.Adapter = fallback.Adapter
	}
	if c.Sessions == nil {
		c.Sessions = fallback.Sessions
	}
	if c.Passwords == nil {
		c.Passwords = fallback.Passwords
	}
	if c.GenerateID == nil {
		c.GenerateID = fallback.GenerateID
	}
	return c
}

func (c Capabilities) requireAdapter(op string) error {
	if c.Adapter == nil {
		return contextUnavailable(op, "adapter")
	}
	return nil
}

func (c Capabilities) requirePasswords(op string) error {
	if err := c.requireAdapter(op); err != nil {
		return err
	}
	if c.Passwords == nil {
		return contextUnavailable(op, "password hasher")
	}
	return nil
}

// Config exposes the resolved plugin settings.
type Config interface {
	GetRetentionDays() int
	GetBlockReRegistration() bool
	GetBasePath() string
	GetRoutes() Routes
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SOFTDELETE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SOFTDELETE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SOFTDELETE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SOFTDELETE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
