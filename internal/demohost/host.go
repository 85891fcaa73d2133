package demohost

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	softdelete "github.com/goliatone/go-auth-softdelete"
	"github.com/goliatone/go-auth-softdelete/repository"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultSessionTTL = 24 * time.Hour

// ErrEmailTaken is returned when signing up with a registered email.
var ErrEmailTaken = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode("EMAIL_TAKEN").
	WithCode(goerrors.CodeConflict)

// ErrInvalidLogin is returned for a failed sign in.
var ErrInvalidLogin = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode("INVALID_EMAIL_OR_PASSWORD").
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is returned when a route needs a session.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode("UNAUTHENTICATED").
	WithCode(goerrors.CodeUnauthorized)

// Host is a minimal auth host wired with the soft delete plugin.
type Host struct {
	App        *fiber.App
	Plugin     *softdelete.Plugin
	Registry   *softdelete.Registry
	Controller *softdelete.Controller

	adapter    softdelete.Adapter
	hasher     softdelete.PasswordHasher
	sessions   softdelete.SessionRevoker
	logger     softdelete.Logger
	now        func() time.Time
	sessionTTL time.Duration
}

// Option configures a Host.
type Option func(*Host)

// WithHasher overrides the host password hasher.
func WithHasher(hasher softdelete.PasswordHasher) Option {
	return func(h *Host) {
		if hasher != nil {
			h.hasher = hasher
		}
	}
}

// WithClock injects a custom clock for sessions.
func WithClock(clock func() time.Time) Option {
	return func(h *Host) {
		if clock != nil {
			h.now = clock
		}
	}
}

// WithSessionRevoker exposes a bulk session revoker to the plugin.
func WithSessionRevoker(revoker softdelete.SessionRevoker) Option {
	return func(h *Host) {
		h.sessions = revoker
	}
}

// WithLogger sets the host logger.
func WithLogger(logger softdelete.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New builds the host over db. pluginOpts configure the soft delete plugin.
func New(db bun.IDB, pluginOpts []softdelete.Option, opts ...Option) *Host {
	h := &Host{
		adapter:    repository.NewAdapter(db),
		hasher:     softdelete.NewBcryptHasher(),
		logger:     nopLogger{},
		now:        time.Now,
		sessionTTL: defaultSessionTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	pluginOpts = append([]softdelete.Option{
		softdelete.WithLogger(h.logger),
		softdelete.WithCapabilities(h.capabilities()),
	}, pluginOpts...)
	h.Plugin = softdelete.New(pluginOpts...)
	h.Registry = h.Plugin.Register(softdelete.NewRegistry())
	h.Controller = softdelete.NewController(h.Plugin,
		softdelete.WithControllerRegistry(h.Registry),
		softdelete.WithUserIDLocalsKey(softdelete.DefaultUserIDLocalsKey),
	)

	h.App = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          softdelete.ErrorHandler(h.logger),
	})
	h.App.Use(h.sessionMiddleware)
	h.App.Use(h.Controller.RequestGuard())

	h.Controller.RegisterRoutes(h.App)
	routes := h.Plugin.GetRoutes()
	h.App.Post(routes.SignUp, h.signUp)
	h.App.Post(routes.SignInPrefix+"/email", h.signIn)
	h.App.Post(routes.DeleteUser, h.deleteUser)
	h.App.Get("/get-session", h.getSession)
	return h
}

func (h *Host) capabilities() softdelete.Capabilities {
	return softdelete.Capabilities{
		Adapter:   h.adapter,
		Sessions:  h.sessions,
		Passwords: h.hasher,
		GenerateID: func(string) string {
			return uuid.NewString()
		},
	}
}

// CredentialsRequest is the sign up and sign in payload.
type CredentialsRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Name     string `form:"name" json:"name"`
}

// Validate will run validation rules
func (r CredentialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// DeleteUserRequest is the delete-user payload.
type DeleteUserRequest struct {
	Password string `form:"password" json:"password"`
}

func (h *Host) signUp(c *fiber.Ctx) error {
	payload := new(CredentialsRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := payload.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	email := softdelete.NormalizeEmail(payload.Email)

	existing := &softdelete.User{}
	err := h.adapter.FindOne(ctx, softdelete.ModelUser, []softdelete.Where{softdelete.Eq(softdelete.FieldEmail, email)}, existing)
	if err == nil {
		return ErrEmailTaken.Clone()
	}
	if !softdelete.IsRecordNotFound(err) {
		return err
	}

	hash, err := h.hasher.HashPassword(payload.Password)
	if err != nil {
		return err
	}

	now := h.now()
	user := &softdelete.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      strings.TrimSpace(payload.Name),
		Status:    softdelete.UserStatusActive,
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	if err := h.adapter.Create(ctx, softdelete.ModelUser, user); err != nil {
		return err
	}

	account := &softdelete.Account{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		ProviderID: softdelete.ProviderCredential,
		AccountID:  user.ID,
		Password:   hash,
		CreatedAt:  &now,
	}
	if err := h.adapter.Create(ctx, softdelete.ModelAccount, account); err != nil {
		return err
	}

	h.logger.Info("user signed up id=%s", user.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": user.ID})
}

func (h *Host) signIn(c *fiber.Ctx) error {
	payload := new(CredentialsRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	user := &softdelete.User{}
	err := h.adapter.FindOne(ctx, softdelete.ModelUser, []softdelete.Where{
		softdelete.Eq(softdelete.FieldEmail, softdelete.NormalizeEmail(payload.Email)),
	}, user)
	if softdelete.IsRecordNotFound(err) {
		return ErrInvalidLogin.Clone()
	}
	if err != nil {
		return err
	}

	account := &softdelete.Account{}
	err = h.adapter.FindOne(ctx, softdelete.ModelAccount, []softdelete.Where{
		softdelete.Eq(softdelete.FieldUserID, user.ID),
		softdelete.Eq(softdelete.FieldProviderID, softdelete.ProviderCredential),
	}, account)
	if softdelete.IsRecordNotFound(err) || (err == nil && !account.HasPassword()) {
		return ErrInvalidLogin.Clone()
	}
	if err != nil {
		return err
	}
	if err := h.hasher.ComparePasswordAndHash(payload.Password, account.Password); err != nil {
		return ErrInvalidLogin.Clone()
	}

	now := h.now()
	session := &softdelete.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(h.sessionTTL),
		CreatedAt: &now,
	}
	if err := h.adapter.Create(ctx, softdelete.ModelSession, session); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"token": session.Token, "user_id": user.ID})
}

// deleteUser runs the account and user delete hooks and only removes rows
// the hooks let through.
func (h *Host) deleteUser(c *fiber.Ctx) error {
	userID, _ := c.Locals(softdelete.DefaultUserIDLocalsKey).(string)
	if userID == "" {
		return ErrUnauthenticated.Clone()
	}

	ctx := c.UserContext()
	user := &softdelete.User{}
	if err := h.adapter.FindOne(ctx, softdelete.ModelUser, []softdelete.Where{softdelete.Eq(softdelete.FieldID, userID)}, user); err != nil {
		return err
	}

	hc := &softdelete.HookContext{Capabilities: h.capabilities(), Path: c.Path()}

	account := &softdelete.Account{}
	err := h.adapter.FindOne(ctx, softdelete.ModelAccount, []softdelete.Where{
		softdelete.Eq(softdelete.FieldUserID, userID),
		softdelete.Eq(softdelete.FieldProviderID, softdelete.ProviderCredential),
	}, account)
	switch {
	case err == nil:
		decision, err := h.Registry.Run(ctx, softdelete.OperationAccountDelete, hc, account)
		if err != nil {
			return err
		}
		if decision == softdelete.Proceed {
			if err := h.adapter.Delete(ctx, softdelete.ModelAccount, []softdelete.Where{softdelete.Eq(softdelete.FieldID, account.ID)}); err != nil {
				return err
			}
		}
	case !softdelete.IsRecordNotFound(err):
		return err
	}

	decision, err := h.Registry.Run(ctx, softdelete.OperationUserDelete, hc, user)
	if err != nil {
		return err
	}
	if decision == softdelete.Proceed {
		if err := h.adapter.Delete(ctx, softdelete.ModelUser, []softdelete.Where{softdelete.Eq(softdelete.FieldID, userID)}); err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h *Host) getSession(c *fiber.Ctx) error {
	userID, _ := c.Locals(softdelete.DefaultUserIDLocalsKey).(string)
	if userID == "" {
		return ErrUnauthenticated.Clone()
	}
	return c.JSON(fiber.Map{"user_id": userID})
}

// sessionMiddleware resolves "Authorization: Bearer <token>" into the user id.
func (h *Host) sessionMiddleware(c *fiber.Ctx) error {
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || token == "" {
		return c.Next()
	}

	session := &softdelete.Session{}
	err := h.adapter.FindOne(c.UserContext(), softdelete.ModelSession, []softdelete.Where{
		softdelete.Eq("token", token),
	}, session)
	if err != nil {
		if !softdelete.IsRecordNotFound(err) {
			h.logger.Warn("session lookup failed: %v", err)
		}
		return c.Next()
	}
	if !session.ExpiresAt.After(h.now()) {
		return c.Next()
	}

	c.Locals(softdelete.DefaultUserIDLocalsKey, session.UserID)
	c.SetUserContext(softdelete.WithActor(c.UserContext(), softdelete.ActorRef{ID: session.UserID, Type: "user"}))
	return c.Next()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
