package authgate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/nyaruka/phonenumbers"
)

type Middleware interface {
	Impersonate(c router.Context, identifier string) error
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

// HTTPAuthenticator is the surface controllers use to manage the session
// cookie.
type HTTPAuthenticator interface {
	Middleware
	Login(c router.Context, payload LoginPayload) error
	Logout(c router.Context)
	SetRedirect(c router.Context)
	GetRedirect(c router.Context, def ...string) string
	GetRedirectOrDefault(c router.Context) string
	MakeClientRouteAuthErrorHandler(optionalAuth bool) func(c router.Context, err error) error
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)

// GetRouterSession rebuilds the session view from what the middleware stored
// in the router locals.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	stored := c.Locals(key)
	if stored == nil {
		return nil, ErrUnauthenticated
	}

	switch v := stored.(type) {
	case *JWTClaims:
		return sessionFromAuthClaims(v)
	case AuthClaims:
		return sessionFromAuthClaims(v)
	case *jwt.Token:
		if claims, ok := v.Claims.(*JWTClaims); ok {
			return sessionFromAuthClaims(claims)
		}
	}

	return nil, ErrTokenMalformed
}

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("pwd-reset.post")

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.PasswordReset), controller.PasswordResetProbe).
		SetName("pwd-reset-do.get")
	app.Post(fmt.Sprintf("%s/:token", controller.Routes.PasswordReset), controller.PasswordResetExecute).
		SetName("pwd-reset-do.post")

	app.Post(controller.Routes.RealtimeToken, controller.RealtimeToken).
		SetName("realtime-token.post")
}

type AuthControllerRoutes struct {
	Login         string
	Logout        string
	Register      string
	PasswordReset string
	RealtimeToken string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	Auth         Authenticator
	Config       Config
	Mailer       Mailer
	Audit        AuditSink
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Audit:        noopAuditSink{},
		Mailer:       stdoutMailer{},
		Routes: &AuthControllerRoutes{
			Login:         "/login",
			Logout:        "/logout",
			Register:      "/register",
			PasswordReset: "/password-reset",
			RealtimeToken: "/realtime/token",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerAuthenticator(auth Authenticator, cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auth = auth
		c.Config = cfg
		return c
	}
}

func WithControllerMailer(m Mailer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Mailer = normalizeMailer(m)
		return c
	}
}

func WithControllerAuditSink(sink AuditSink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Audit = normalizeAuditSink(sink)
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession reports whether to use the extended cookie duration
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]string{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if err := a.Auther.Login(ctx, payload); err != nil {
		// one message for bad identifier, bad password, or locked account
		return ctx.JSON(fiber.StatusUnauthorized, map[string]string{
			"error": "invalid credentials",
		})
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"redirect": a.Auther.GetRedirect(ctx, "/"),
	})
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.Redirect("/", fiber.StatusTemporaryRedirect)
}

// RegistrationCreatePayload is the form payload
type RegistrationCreatePayload struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidateOptionalPhone)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]string{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Password:  payload.Password,
	}

	registerUser := NewRegisterUserHandler(a.Repo).
		WithAuditSink(a.Audit).
		WithLogger(a.Logger)

	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		if IsDuplicateEmailError(err) {
			return ctx.JSON(fiber.StatusConflict, map[string]string{
				"error": "email already registered",
			})
		}

		a.Logger.Error("register user error: ", "error", err)
		return ctx.JSON(fiber.StatusInternalServerError, map[string]string{
			"error": "registration failed",
		})
	}

	return ctx.JSON(fiber.StatusCreated, map[string]string{
		"status": "registered",
	})
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
	Stage string `form:"stage" json:"stage"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Stage,
			validation.Required,
			validation.In(
				ResetInit,
			),
		),
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AuthController) PasswordResetPost(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]string{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := InitializePasswordResetMessage{
		Stage: payload.Stage,
		Email: payload.Email,
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Repo).
		WithMailer(a.Mailer).
		WithAuditSink(a.Audit).
		WithLogger(a.Logger)

	if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset init error: ", "error", err)
		return ctx.JSON(fiber.StatusInternalServerError, map[string]string{
			"error": "could not process request",
		})
	}

	// identical response whether the email exists or not
	return ctx.JSON(fiber.StatusOK, map[string]string{
		"stage": AccountVerification,
	})
}

// PasswordResetProbe reports whether the token in the reset link can still
// finalize a reset, without consuming it.
func (a *AuthController) PasswordResetProbe(ctx router.Context) error {
	token := ctx.Param("token", "")

	stage := ResetUnknown
	if reset, err := a.Repo.PasswordResets().GetByID(ctx.Context(), token); err == nil {
		if reset.IsLive(time.Now()) {
			stage = ChangingPassword
		}
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"stage": stage,
		"token": token,
	})
}

// PasswordResetVerifyPayload holds values for password reset
type PasswordResetVerifyPayload struct {
	Stage           string `form:"stage" json:"stage"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetVerifyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Stage,
			validation.Required,
			validation.In(
				ChangingPassword,
			),
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(10, 100),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) PasswordResetExecute(ctx router.Context) error {
	token := ctx.Param("token")

	payload := new(PasswordResetVerifyPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]string{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	input := FinalizePasswordResetMessage{
		Token:    token,
		Password: payload.Password,
	}

	finalizePwdReset := NewFinalizePasswordResetHandler(a.Repo).
		WithAuditSink(a.Audit).
		WithLogger(a.Logger)

	if err := finalizePwdReset.Execute(ctx.Context(), input); err != nil {
		a.Logger.Error("password reset finalize error: ", "error", err)
		// precise cause stays in the logs, the caller gets one answer
		return ctx.JSON(fiber.StatusBadRequest, map[string]string{
			"error": "invalid or expired password reset token",
			"stage": ResetUnknown,
		})
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"stage": ChangeFinalized,
	})
}

// RealtimeToken mints a short-lived connection token for the caller's
// session. The session cookie is re-validated against the store first.
func (a *AuthController) RealtimeToken(ctx router.Context) error {
	if a.Auth == nil || a.Config == nil {
		return ctx.JSON(fiber.StatusNotImplemented, map[string]string{
			"error": "realtime tokens not configured",
		})
	}

	raw := ctx.Cookies(a.Config.GetContextKey())

	identity, err := a.Auth.Resolve(ctx.Context(), raw)
	if err != nil {
		return ctx.JSON(fiber.StatusUnauthorized, map[string]string{
			"error": "authentication required",
		})
	}

	ts, ok := a.Auth.(interface{ TokenService() TokenService })
	if !ok {
		return ctx.JSON(fiber.StatusNotImplemented, map[string]string{
			"error": "realtime tokens not configured",
		})
	}

	token, expiresAt, err := ts.TokenService().GenerateRealtime(identity)
	if err != nil {
		a.Logger.Error("realtime token error: ", "error", err)
		return ctx.JSON(fiber.StatusInternalServerError, map[string]string{
			"error": "could not issue realtime token",
		})
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt,
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidateOptionalPhone accepts an empty value or a parseable phone number.
func ValidateOptionalPhone(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return errors.New("must be a valid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return errors.New("must be a valid phone number")
	}

	return nil
}

// FormatValidationErrorToMap flattens ozzo validation errors per field.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.JSON(fiber.StatusInternalServerError, map[string]string{
		"error": err.Error(),
	})
}
