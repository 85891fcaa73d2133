package softdelete

import (
	"context"
	"errors"
	"time"
)

// Plugin wires the deletion interceptor, the sign-in and sign-up guards and
// the restoration service around one shared configuration.
type Plugin struct {
	retentionDays       int
	blockReRegistration bool
	rateLimiter         RestoreRateLimiter
	secondary           SecondaryStorage
	now                 func() time.Time
	logger              Logger
	activitySink        ActivitySink
	basePath            string
	routes              Routes
	capabilities        Capabilities
	transitionHooks     TransitionHooks

	deletion *DeletionInterceptor
	signIn   *SignInGuard
	signUp   *SignUpGuard
	restore  *RestorationService
}

var _ Config = (*Plugin)(nil)

// New builds a Plugin with defaults overridden by opts.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		retentionDays:       DefaultRetentionDays,
		blockReRegistration: true,
		now:                 time.Now,
		logger:              defLogger{},
		activitySink:        noopActivitySink{},
		basePath:            DefaultBasePath,
		routes:              DefaultRoutes(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.capabilities.Passwords == nil {
		p.capabilities.Passwords = NewBcryptHasher()
	}
	if p.capabilities.GenerateID == nil {
		p.capabilities.GenerateID = defaultIDGenerator
	}

	p.deletion = &DeletionInterceptor{plugin: p}
	p.signIn = &SignInGuard{plugin: p}
	p.signUp = &SignUpGuard{plugin: p}
	p.restore = &RestorationService{plugin: p}
	return p
}

func (p *Plugin) Deletion() *DeletionInterceptor { return p.deletion }

func (p *Plugin) SignIn() *SignInGuard { return p.signIn }

func (p *Plugin) SignUp() *SignUpGuard { return p.signUp }

func (p *Plugin) Restoration() *RestorationService { return p.restore }

// Register attaches every hook to the host registry.
func (p *Plugin) Register(reg *Registry) *Registry {
	if reg == nil {
		reg = NewRegistry()
	}

	reg.Before(RequestHook{
		Name:    "soft-delete.delete-guard",
		Matcher: ExactPath(p.routes.DeleteUser),
		Handler: p.deletion.GuardRequest,
	})
	reg.Before(RequestHook{
		Name:    "soft-delete.sign-in-guard",
		Matcher: PathPrefix(p.routes.SignInPrefix),
		Handler: p.signIn.GuardRequest,
	})
	if p.blockReRegistration {
		reg.Before(RequestHook{
			Name:    "soft-delete.sign-up-guard",
			Matcher: ExactPath(p.routes.SignUp),
			Handler: p.signUp.GuardRequest,
		})
	}

	reg.On(OperationAccountDelete, p.deletion.BeforeDeleteAccount)
	reg.On(OperationUserDelete, p.deletion.BeforeDeleteUser)
	return reg
}

func (p *Plugin) resolve(caps Capabilities) Capabilities {
	return caps.Merge(p.capabilities)
}

func (p *Plugin) users(caps Capabilities) userStore {
	return userStore{adapter: caps.Adapter, now: p.now}
}

func (p *Plugin) accounts(caps Capabilities) accountStore {
	return accountStore{adapter: caps.Adapter}
}

func (p *Plugin) blocks(caps Capabilities) blockList {
	return blockList{
		adapter:    caps.Adapter,
		secondary:  p.secondary,
		generateID: caps.GenerateID,
		logger:     p.logger,
	}
}

func (p *Plugin) stateMachine(caps Capabilities) UserStateMachine {
	opts := []StateMachineOption{
		WithStateMachineClock(p.now),
		WithStateMachineActivitySink(p.activitySink),
		WithStateMachineLogger(p.logger),
	}
	if !p.transitionHooks.empty() {
		opts = append(opts, WithStateMachineHooks(p.transitionHooks))
	}
	return NewUserStateMachine(p.users(caps), opts...)
}

func (p *Plugin) record(ctx context.Context, event ActivityEvent) {
	activityRecorder{sink: p.activitySink, logger: p.logger, now: p.now}.record(ctx, event)
}

// verifyPassword reports whether password matches hash. Any hasher error is
// treated as a mismatch.
func (p *Plugin) verifyPassword(hasher PasswordHasher, password, hash string) bool {
	if err := hasher.ComparePasswordAndHash(password, hash); err != nil {
		if !errors.Is(err, ErrMismatchedHashAndPassword) {
			p.logger.Debug("password compare failed: %v", err)
		}
		return false
	}
	return true
}
