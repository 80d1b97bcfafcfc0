package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edusuite/usafiri/core"
	"github.com/edusuite/usafiri/core/user"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type userApi struct {
	svc  user.ServiceInterface
	jwt  *jwtAuth
	deps ServerDeps
}

// registerAuthAPI wires the account lifecycle endpoints under /auth.
func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, ja *jwtAuth, deps ServerDeps) {
	api := userApi{svc: deps.UserSvc, jwt: ja, deps: deps}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/register", api.register)
	ag.POST("/verify-email", api.verifyEmail)
	ag.POST("/login", api.login)
	ag.POST("/refresh-token", api.refreshToken)
	ag.POST("/forgot-password", api.forgotPassword)
	ag.POST("/reset-password", api.resetPassword)

	// authed endpoints
	ag.POST("/change-password", api.changePassword, jwt)
	ag.POST("/logout", api.logout, jwt)
}

// registerUserAPI wires the admin user management endpoints under /users.
func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{svc: deps.UserSvc, deps: deps}

	ug := g.Group("/users", jwt, adminMiddleware())
	ug.POST("", api.create)
	ug.GET("", api.query)
	ug.GET("/:id", api.retrieve)
	ug.PATCH("/:id", api.update)
	ug.DELETE("/:id", api.destroy)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.RegisterUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegisterUser")
	}
	data.Clean()
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return respondCreated(ctx, "Registration successful. Please check your email to verify your account.", usr)
}

func (api *userApi) verifyEmail(ctx echo.Context) error {
	var data user.VerifyEmail
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyEmail")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	if err := api.svc.ConfirmEmail(ctx.Request().Context(), data); err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidToken:
			return echo.NewHTTPError(http.StatusBadRequest, user.ErrInvalidToken.Error())
		case user.ErrAlreadyVerified:
			return echo.NewHTTPError(http.StatusBadRequest, user.ErrAlreadyVerified.Error())
		}
		return errors.Wrap(err, "confirming email")
	}
	return respondOK(ctx, "Email verified successfully. You can now log in.", nil)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrNotFound, user.ErrInvalidPassword:
			return errAuthenticationFailed
		case user.ErrAccountDisabled:
			return errAccountDeactivated
		case user.ErrNotVerified:
			return echo.NewHTTPError(http.StatusForbidden, user.ErrNotVerified.Error())
		}
		return errors.Wrap(err, "authenticating")
	}

	token, err := api.jwt.GenerateToken(api.jwt.GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	refresh, err := api.jwt.GenerateToken(api.jwt.getRefreshClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating refresh token")
	}
	api.jwt.setRefreshCookie(ctx, refresh)

	return respondOK(ctx, "Login successful", LoginResponse{Token: token, User: usr})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	cookie, err := ctx.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return errUnauthorized
	}
	claims, err := api.jwt.parseToken(cookie.Value)
	if err != nil {
		return err
	}
	if claims.Scope != refreshTokenScope {
		return errRefreshExpired
	}

	usr, err := api.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errRefreshExpired
	}
	if !usr.IsActive() {
		return errAccountDeactivated
	}

	token, err := api.jwt.GenerateToken(api.jwt.GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return respondOK(ctx, "Token refreshed", LoginResponse{Token: token, User: usr})
}

func (api *userApi) logout(ctx echo.Context) error {
	api.jwt.clearRefreshCookie(ctx)
	return respondOK(ctx, "Logged out", nil)
}

func (api *userApi) changePassword(ctx echo.Context) error {
	var data user.ChangePassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.ChangePassword(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return respondOK(ctx, "Password changed successfully", nil)
}

func (api *userApi) forgotPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return respondOK(ctx, "If the email address supplied is associated with an active account on this system, "+
		"an email will arrive in your inbox shortly with instructions to reset your password.", nil)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		if errors.Cause(err) == user.ErrInvalidToken {
			return echo.NewHTTPError(http.StatusBadRequest, user.ErrInvalidToken.Error())
		}
		return errors.Wrap(err, "resetting password")
	}
	return respondOK(ctx, "Password has been reset with the new password.", nil)
}

// Admin user management

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	data.Clean()
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	// only super admins may mint other admins
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if data.Role != user.RoleUser && !ctxUsr.IsSuperAdmin() {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: "not enough rights to set this role"})
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return respondCreated(ctx, "User created", usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return respondList(ctx, "Users", []user.User{}, nil)
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return respondList(ctx, "Users", users, &Meta{Page: filter.Page, Limit: filter.Limit, Total: total})
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding user by ID")
	}
	return respondOK(ctx, "User", usr)
}

func (api *userApi) update(ctx echo.Context) error {
	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	data.Clean()
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	// only super admins may promote or demote admins
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if data.Role != "" && data.Role != user.RoleUser && !ctxUsr.IsSuperAdmin() {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: "not enough rights to set this role"})
	}

	usr, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating user")
	}
	return respondOK(ctx, "User updated", usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctx.Param("id") == ctxUsr.ID {
		return echo.NewHTTPError(http.StatusForbidden, user.ErrCannotDeleteSelf.Error())
	}

	if _, err = api.svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return respondOK(ctx, "User deleted", nil)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
