package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/user"
)

var errNoAvatar = errors.New("no avatar uploaded")

type accountsApi struct {
	svc      *user.Service
	validate *validator.Validate
}

func registerAccountsAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *user.Service, validate *validator.Validate) {
	api := accountsApi{
		svc:      svc,
		validate: validate,
	}

	ag := g.Group("/accounts")

	// un-authed endpoints
	ag.POST("/auth/register", api.register)
	ag.POST("/auth/login", api.login)
	ag.GET("/auth/check-email", api.checkEmail)

	// authed endpoints
	ag.POST("/auth/logout", api.logout, auth)
	ag.GET("/profile", api.profile, auth)
	ag.PUT("/profile/update", api.updateProfile, auth)
	ag.PATCH("/profile/update", api.updateProfile, auth)
	ag.POST("/profile/avatar", api.uploadAvatar, auth)
	ag.GET("/preferences", api.preferences, auth)
	ag.PUT("/preferences", api.updatePreferences, auth)
	ag.PATCH("/preferences", api.updatePreferences, auth)
}

type (
	AuthResponse struct {
		User  user.User `json:"user"`
		Token string    `json:"token"`
	}

	CheckEmailResponse struct {
		Exists    bool `json:"exists"`
		Available bool `json:"available"`
	}
)

// Handlers

func (api *accountsApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	token, err := issueToken(ctx, api.svc, usr)
	if err != nil {
		return err
	}
	return respondCreated(ctx, AuthResponse{User: usr, Token: token}, "Registration successful")
}

func (api *accountsApi) login(ctx echo.Context) error {
	var data user.LoginCredentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginCredentials")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidCredentials:
			return core.NewValidationError(user.ErrInvalidCredentials)
		case user.ErrAccountDeactivated:
			return errAccountDeactivated
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := issueToken(ctx, api.svc, usr)
	if err != nil {
		return err
	}
	return respondOK(ctx, AuthResponse{User: usr, Token: token}, "Login successful")
}

func (api *accountsApi) logout(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Logout(ctx.Request().Context(), usr); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return respondMessage(ctx, "Logout successful")
}

func (api *accountsApi) checkEmail(ctx echo.Context) error {
	email := core.CleanString(ctx.QueryParam("email"), true /* lower */)
	if email == "" {
		return core.NewValidationError(
			errors.New("email is required"),
			core.FieldError{Field: "email", Error: "this field is required"},
		)
	}
	exists, err := api.svc.EmailExists(ctx.Request().Context(), email)
	if err != nil {
		return errors.Wrap(err, "checking email")
	}
	return respondOK(ctx, CheckEmailResponse{Exists: exists, Available: !exists})
}

func (api *accountsApi) profile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	usr, err = api.svc.Profile(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "loading profile")
	}
	return respondOK(ctx, usr)
}

func (api *accountsApi) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return respondOK(ctx, usr, "Profile updated")
}

func (api *accountsApi) uploadAvatar(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	files, err := bindFiles(ctx, "avatar")
	if err != nil {
		return err
	}
	defer files.Close()

	f := files.First()
	if f == nil {
		return core.NewValidationError(errNoAvatar, core.FieldError{Field: "avatar", Error: errNoAvatar.Error()})
	}
	usr, err = api.svc.UploadAvatar(ctx.Request().Context(), usr, *f)
	if err != nil {
		return errors.Wrap(err, "uploading avatar")
	}
	return respondOK(ctx, usr, "Avatar uploaded")
}

func (api *accountsApi) preferences(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	prefs, err := api.svc.GetPreferences(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting preferences")
	}
	return respondOK(ctx, prefs)
}

func (api *accountsApi) updatePreferences(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.UpdatePreferences
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePreferences")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prefs, err := api.svc.UpdatePreferences(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating preferences")
	}
	return respondOK(ctx, prefs, "Preferences updated")
}
