package softdelete

import (
	"context"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// RestoreSuccessMessage is returned by a successful restore.
const RestoreSuccessMessage = "Account restored successfully."

// RestoreRequest payload
type RestoreRequest struct {
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"password"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// Validate will run validation rules
func (r RestoreRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// RestoreResponse is the success payload.
type RestoreResponse struct {
	Message string `json:"message"`
}

// RateLimitRequest is handed to the restore rate limiter.
type RateLimitRequest struct {
	Email     string
	IP        string
	UserAgent string
}

// RateLimitDecision is the structured limiter result. Empty Code, Message
// and Status fall back to the RESTORE_RATE_LIMITED defaults.
type RateLimitDecision struct {
	Allowed bool
	Code    string
	Message string
	Status  int
}

// RestoreRateLimiter decides whether a restore attempt may proceed.
type RestoreRateLimiter interface {
	Allow(ctx context.Context, req RateLimitRequest) (RateLimitDecision, error)
}

// RestoreRateLimitResetter is implemented by limiters that forget the
// attempts recorded for an email once its account is restored.
type RestoreRateLimitResetter interface {
	Reset(ctx context.Context, email string) error
}

// RestoreRateLimitFunc adapts a function to RestoreRateLimiter.
type RestoreRateLimitFunc func(ctx context.Context, req RateLimitRequest) (RateLimitDecision, error)

// Allow implements RestoreRateLimiter.
func (f RestoreRateLimitFunc) Allow(ctx context.Context, req RateLimitRequest) (RateLimitDecision, error) {
	if f == nil {
		return RateLimitDecision{Allowed: true}, nil
	}
	return f(ctx, req)
}

// RateLimitPredicate adapts a boolean predicate to RestoreRateLimiter.
func RateLimitPredicate(fn func(ctx context.Context, req RateLimitRequest) bool) RestoreRateLimiter {
	return RestoreRateLimitFunc(func(ctx context.Context, req RateLimitRequest) (RateLimitDecision, error) {
		if fn == nil {
			return RateLimitDecision{Allowed: true}, nil
		}
		return RateLimitDecision{Allowed: fn(ctx, req)}, nil
	})
}

// RestorationService reactivates soft deleted accounts after re-verifying
// email and password. It does not require a session.
type RestorationService struct {
	plugin *Plugin
}

// Restore reverses a soft delete. Unknown emails and wrong passwords yield
// the same ErrInvalidCredentials. It does not sign the user in.
func (s *RestorationService) Restore(ctx context.Context, caps Capabilities, req RestoreRequest) (*RestoreResponse, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "restore cancelled")
	default:
	}

	if err := req.Validate(); err != nil {
		return nil, restoreInputError(err)
	}

	p := s.plugin
	email := NormalizeEmail(req.Email)

	if err := s.checkRateLimit(ctx, RateLimitRequest{Email: email, IP: req.IP, UserAgent: req.UserAgent}); err != nil {
		return nil, err
	}

	caps = p.resolve(caps)
	if err := caps.requirePasswords("restore"); err != nil {
		return nil, err
	}

	user, err := p.users(caps).FindByEmail(ctx, email)
	if IsRecordNotFound(err) {
		s.failed(ctx, "", email, CodeInvalidCredentials)
		return nil, ErrInvalidCredentials.Clone()
	}
	if err != nil {
		return nil, wrapInternal(err, "find user by email")
	}

	if !user.IsDeleted() {
		return nil, ErrAccountNotDeleted.Clone()
	}

	account, err := p.accounts(caps).FindCredential(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !account.HasPassword() {
		s.failed(ctx, user.ID, email, CodeNoPasswordCredential)
		return nil, ErrNoPasswordCredential.Clone()
	}

	if !p.verifyPassword(caps.Passwords, req.Password, account.Password) {
		s.failed(ctx, user.ID, email, CodeInvalidCredentials)
		return nil, ErrInvalidCredentials.Clone()
	}

	actor := ActorRef{ID: user.ID, Type: "user"}
	if _, err := p.stateMachine(caps).Transition(ctx, actor, user, UserStatusActive, "restore"); err != nil {
		return nil, err
	}

	if err := p.blocks(caps).Release(ctx, email); err != nil {
		p.logger.Warn("restore: blocked identifier cleanup failed user=%s: %v", user.ID, err)
	}
	if resetter, ok := p.rateLimiter.(RestoreRateLimitResetter); ok {
		if err := resetter.Reset(ctx, email); err != nil {
			p.logger.Warn("restore: rate limit reset failed user=%s: %v", user.ID, err)
		}
	}

	p.logger.Info("user restored id=%s email=%s", user.ID, maskEmail(email))
	p.record(ctx, ActivityEvent{
		EventType:  ActivityEventUserRestored,
		Actor:      actor,
		UserID:     user.ID,
		FromStatus: UserStatusDeleted,
		ToStatus:   UserStatusActive,
	})

	return &RestoreResponse{Message: RestoreSuccessMessage}, nil
}

func (s *RestorationService) checkRateLimit(ctx context.Context, req RateLimitRequest) error {
	limiter := s.plugin.rateLimiter
	if limiter == nil {
		return nil
	}

	decision, err := limiter.Allow(ctx, req)
	if err != nil {
		return wrapInternal(err, "restore rate limit")
	}
	if decision.Allowed {
		return nil
	}

	s.failed(ctx, "", req.Email, CodeRestoreRateLimited)

	rerr := ErrRestoreRateLimited.Clone()
	if decision.Code != "" {
		rerr.TextCode = decision.Code
	}
	if decision.Message != "" {
		rerr.Message = decision.Message
	}
	if decision.Status != 0 {
		rerr.Code = decision.Status
	}
	return rerr
}

func (s *RestorationService) failed(ctx context.Context, userID, email, reason string) {
	s.plugin.record(ctx, ActivityEvent{
		EventType: ActivityEventRestoreFailed,
		UserID:    userID,
		Metadata: map[string]any{
			"reason":          reason,
			"identifier_hash": HashIdentifier(email),
		},
	})
}

func restoreInputError(err error) error {
	rerr := ErrRestoreInputRequired.Clone()

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(goerrors.ValidationErrors, 0, len(verrs))
		for _, field := range []string{"email", "password"} {
			if ferr, ok := verrs[field]; ok && ferr != nil {
				fields = append(fields, goerrors.FieldError{Field: field, Message: ferr.Error()})
			}
		}
		rerr.ValidationErrors = fields
		return rerr
	}

	return rerr.WithMetadata(map[string]any{"error": err.Error()})
}
