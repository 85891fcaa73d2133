package softdelete

import (
	"strings"
	"time"
)

const (
	DefaultBasePath     = "/soft-delete"
	DefaultRestorePath  = "/restore"
	DefaultSignInPrefix = "/sign-in"
	DefaultSignUpPath   = "/sign-up/email"
	DefaultDeletePath   = "/delete-user"
)

// Routes holds the host paths the guards are attached to. Restore is
// relative to the plugin base path.
type Routes struct {
	Restore      string
	SignInPrefix string
	SignUp       string
	DeleteUser   string
}

// DefaultRoutes returns the stock host routes.
func DefaultRoutes() Routes {
	return Routes{
		Restore:      DefaultRestorePath,
		SignInPrefix: DefaultSignInPrefix,
		SignUp:       DefaultSignUpPath,
		DeleteUser:   DefaultDeletePath,
	}
}

func (r Routes) withDefaults() Routes {
	def := DefaultRoutes()
	if r.Restore == "" {
		r.Restore = def.Restore
	}
	if r.SignInPrefix == "" {
		r.SignInPrefix = def.SignInPrefix
	}
	if r.SignUp == "" {
		r.SignUp = def.SignUp
	}
	if r.DeleteUser == "" {
		r.DeleteUser = def.DeleteUser
	}
	return r
}

// Option configures the Plugin.
type Option func(*Plugin)

// WithRetentionDays sets the block lifetime and the scheduled permanent
// deletion offset. Non-positive values fall back to DefaultRetentionDays.
func WithRetentionDays(days int) Option {
	return func(p *Plugin) {
		p.retentionDays = normalizeRetentionDays(days)
	}
}

// WithBlockReRegistration toggles the re-registration block.
func WithBlockReRegistration(enabled bool) Option {
	return func(p *Plugin) {
		p.blockReRegistration = enabled
	}
}

// WithRestoreRateLimit installs a rate limit check on restore.
func WithRestoreRateLimit(limiter RestoreRateLimiter) Option {
	return func(p *Plugin) {
		p.rateLimiter = limiter
	}
}

// WithSecondaryStorage sets the fast lookup store for blocked identifiers.
func WithSecondaryStorage(storage SecondaryStorage) Option {
	return func(p *Plugin) {
		p.secondary = storage
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(p *Plugin) {
		if clock != nil {
			p.now = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(p *Plugin) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithActivitySink sets the sink for lifecycle and guard events.
func WithActivitySink(sink ActivitySink) Option {
	return func(p *Plugin) {
		p.activitySink = normalizeActivitySink(sink)
	}
}

// WithBasePath sets the namespace the restore endpoint is mounted under.
func WithBasePath(base string) Option {
	return func(p *Plugin) {
		base = strings.TrimRight(strings.TrimSpace(base), "/")
		if base != "" && !strings.HasPrefix(base, "/") {
			base = "/" + base
		}
		p.basePath = base
	}
}

// WithRoutes overrides host routes. Empty fields keep their defaults.
func WithRoutes(routes Routes) Option {
	return func(p *Plugin) {
		p.routes = routes.withDefaults()
	}
}

// WithCapabilities sets fallback capabilities used when a hook context does
// not carry them.
func WithCapabilities(caps Capabilities) Option {
	return func(p *Plugin) {
		p.capabilities = caps
	}
}

// WithTransitionHooks runs hooks around every soft delete and restore. A
// before hook error aborts the status change and is returned to the caller.
func WithTransitionHooks(hooks TransitionHooks) Option {
	return func(p *Plugin) {
		p.transitionHooks.Before = appendHooks(p.transitionHooks.Before, hooks.Before)
		p.transitionHooks.After = appendHooks(p.transitionHooks.After, hooks.After)
		if hooks.OnError != nil {
			p.transitionHooks.OnError = hooks.OnError
		}
	}
}

func (p *Plugin) GetRetentionDays() int {
	return p.retentionDays
}

func (p *Plugin) GetBlockReRegistration() bool {
	return p.blockReRegistration
}

func (p *Plugin) GetBasePath() string {
	return p.basePath
}

func (p *Plugin) GetRoutes() Routes {
	return p.routes
}

// RestorePath is the full restore endpoint path.
func (p *Plugin) RestorePath() string {
	return p.basePath + p.routes.Restore
}
