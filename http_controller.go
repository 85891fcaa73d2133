package softdelete

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// DefaultUserIDLocalsKey is the fiber Locals key the host stores the
// authenticated user id under.
const DefaultUserIDLocalsKey = "user_id"

// CapabilitiesResolver returns per-request capabilities.
type CapabilitiesResolver func(c *fiber.Ctx) Capabilities

// Controller exposes the plugin over fiber.
type Controller struct {
	Debug           bool
	Logger          Logger
	Plugin          *Plugin
	Registry        *Registry
	UserIDLocalsKey string
	Capabilities    CapabilitiesResolver
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerDebug prints error details.
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) {
		c.Debug = debug
	}
}

// WithControllerRegistry sets the registry consulted by RequestGuard.
func WithControllerRegistry(reg *Registry) ControllerOption {
	return func(c *Controller) {
		if reg != nil {
			c.Registry = reg
		}
	}
}

// WithUserIDLocalsKey overrides where the authenticated user id is read from.
func WithUserIDLocalsKey(key string) ControllerOption {
	return func(c *Controller) {
		if key != "" {
			c.UserIDLocalsKey = key
		}
	}
}

// WithCapabilitiesResolver sets a per-request capabilities resolver.
func WithCapabilitiesResolver(resolver CapabilitiesResolver) ControllerOption {
	return func(c *Controller) {
		c.Capabilities = resolver
	}
}

// NewController builds a Controller. Without a registry one is created and
// the plugin hooks are registered on it.
func NewController(p *Plugin, opts ...ControllerOption) *Controller {
	c := &Controller{
		Plugin:          p,
		Logger:          p.logger,
		UserIDLocalsKey: DefaultUserIDLocalsKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.Registry == nil {
		c.Registry = p.Register(NewRegistry())
	}
	return c
}

// RegisterRoutes mounts POST <base>/restore.
func (a *Controller) RegisterRoutes(app fiber.Router) {
	app.Post(a.Plugin.RestorePath(), a.RestoreHandler)
}

// RestoreHandler handles POST <base>/restore.
func (a *Controller) RestoreHandler(c *fiber.Ctx) error {
	payload := new(RestoreRequest)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(payload); err != nil {
			return a.renderError(c, restoreInputError(err))
		}
	}
	payload.IP = c.IP()
	payload.UserAgent = c.Get(fiber.HeaderUserAgent)

	res, err := a.Plugin.Restoration().Restore(c.UserContext(), a.capabilities(c), *payload)
	if err != nil {
		return a.renderError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

type guardPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// RequestGuard runs the registered request hooks before the host handler.
func (a *Controller) RequestGuard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := guardPayload{}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&payload); err != nil {
				a.Logger.Debug("request guard: unable to parse body path=%s: %v", c.Path(), err)
			}
		}

		rc := &RequestContext{
			Path:         c.Path(),
			Email:        payload.Email,
			Password:     payload.Password,
			Capabilities: a.capabilities(c),
		}
		if userID, ok := c.Locals(a.UserIDLocalsKey).(string); ok {
			rc.UserID = userID
		}

		if err := a.Registry.RunRequestHooks(c.UserContext(), rc); err != nil {
			return a.renderError(c, err)
		}
		return c.Next()
	}
}

func (a *Controller) capabilities(c *fiber.Ctx) Capabilities {
	if a.Capabilities == nil {
		return Capabilities{}
	}
	return a.Capabilities(c)
}

func (a *Controller) renderError(c *fiber.Ctx, err error) error {
	gerr := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	if gerr.Code == 0 {
		gerr.Code = HTTPStatus(err)
	}

	if a.Debug {
		a.Logger.Debug("soft delete error: %s", print.MaybePrettyJSON(gerr))
	}
	if gerr.Code >= fiber.StatusInternalServerError {
		a.Logger.Error("soft delete request failed path=%s: %v", c.Path(), err)
	}

	return c.Status(gerr.Code).JSON(gerr.ToErrorResponse(false, nil))
}

// ErrorHandler is a fiber.Config ErrorHandler rendering go-errors values as
// JSON. It can be installed on the host app.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return func(c *fiber.Ctx, err error) error {
		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			gerr := goerrors.New(ferr.Message, goerrors.CategoryBadInput).WithCode(ferr.Code)
			return c.Status(ferr.Code).JSON(gerr.ToErrorResponse(false, nil))
		}
		return (&Controller{Logger: logger}).renderError(c, err)
	}
}
