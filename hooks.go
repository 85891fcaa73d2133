package softdelete

import (
	"context"
	"strings"
	"sync"
)

// Operation names a host lifecycle interception point.
type Operation string

const (
	OperationUserDelete    Operation = "user.delete"
	OperationAccountDelete Operation = "account.delete"
)

// Decision is returned by database hooks. Veto tells the host to skip its
// native operation.
type Decision int

const (
	Proceed Decision = iota
	Veto
)

func (d Decision) String() string {
	if d == Veto {
		return "veto"
	}
	return "proceed"
}

// HookContext is handed to database hooks by the host.
type HookContext struct {
	Capabilities
	Path string
}

// DatabaseHook runs before the host mutates record. Returning an error is
// the third outcome next to Proceed and Veto.
type DatabaseHook func(ctx context.Context, hc *HookContext, record any) (Decision, error)

// RequestContext is the parsed request handed to request hooks.
type RequestContext struct {
	Path     string
	Email    string
	Password string
	UserID   string
	Capabilities
}

// PathMatcher selects the requests a RequestHook runs for.
type PathMatcher func(path string) bool

// ExactPath matches one path.
func ExactPath(path string) PathMatcher {
	return func(p string) bool {
		return p == path
	}
}

// PathPrefix matches every path under prefix.
func PathPrefix(prefix string) PathMatcher {
	return func(p string) bool {
		return strings.HasPrefix(p, prefix)
	}
}

// RequestHook runs before a host endpoint and may reject the request.
type RequestHook struct {
	Name    string
	Matcher PathMatcher
	Handler func(ctx context.Context, rc *RequestContext) error
}

// Registry is the hook table the host consults at each interception point.
type Registry struct {
	mu       sync.RWMutex
	database map[Operation][]DatabaseHook
	request  []RequestHook
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{database: map[Operation][]DatabaseHook{}}
}

// On registers a database hook for op.
func (r *Registry) On(op Operation, hook DatabaseHook) *Registry {
	if hook == nil {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.database[op] = append(r.database[op], hook)
	return r
}

// Before registers a request hook.
func (r *Registry) Before(hook RequestHook) *Registry {
	if hook.Handler == nil {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.request = append(r.request, hook)
	return r
}

// Run executes the hooks for op in registration order. It stops at the
// first veto or error.
func (r *Registry) Run(ctx context.Context, op Operation, hc *HookContext, record any) (Decision, error) {
	r.mu.RLock()
	hooks := append([]DatabaseHook(nil), r.database[op]...)
	r.mu.RUnlock()

	if hc == nil {
		hc = &HookContext{}
	}

	for _, hook := range hooks {
		decision, err := hook(ctx, hc, record)
		if err != nil {
			return Veto, err
		}
		if decision == Veto {
			return Veto, nil
		}
	}
	return Proceed, nil
}

// RunRequestHooks runs every request hook matching rc.Path.
func (r *Registry) RunRequestHooks(ctx context.Context, rc *RequestContext) error {
	if rc == nil {
		return nil
	}
	r.mu.RLock()
	hooks := append([]RequestHook(nil), r.request...)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if hook.Matcher != nil && !hook.Matcher(rc.Path) {
			continue
		}
		if err := hook.Handler(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}
