package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core/waitlist"
)

type waitlistApi struct {
	svc      *waitlist.Service
	validate *validator.Validate
}

func registerWaitlistAPI(
	g *echo.Group,
	auth echo.MiddlewareFunc,
	optionalAuth echo.MiddlewareFunc,
	svc *waitlist.Service,
	validate *validator.Validate,
) {
	api := waitlistApi{
		svc:      svc,
		validate: validate,
	}

	wg := g.Group("/waitlist")
	wg.GET("/features", api.features, optionalAuth)
	wg.GET("/my-waitlists", api.myWaitlists, auth)
	wg.POST("/join/:feature", api.join, auth)
	wg.POST("/leave/:feature", api.leave, auth)
	wg.GET("/status/:feature", api.status, auth)
}

// Handlers

func (api *waitlistApi) features(ctx echo.Context) error {
	features, err := api.svc.Features(ctx.Request().Context(), getOptionalContextUser(ctx))
	if err != nil {
		return errors.Wrap(err, "querying features")
	}
	if features == nil {
		features = []waitlist.Feature{}
	}
	return respondOK(ctx, features)
}

func (api *waitlistApi) myWaitlists(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	entries, err := api.svc.MyWaitlists(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying waitlists")
	}
	if entries == nil {
		entries = []waitlist.Entry{}
	}
	return respondOK(ctx, entries)
}

func (api *waitlistApi) join(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data waitlist.JoinRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Join(ctx.Request().Context(), usr, ctx.Param("feature"), data)
	if err != nil {
		return errors.Wrap(err, "joining waitlist")
	}
	return respondCreated(ctx, res, waitlist.MsgJoined)
}

func (api *waitlistApi) leave(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Leave(ctx.Request().Context(), usr, ctx.Param("feature")); err != nil {
		return errors.Wrap(err, "leaving waitlist")
	}
	return respondMessage(ctx, waitlist.MsgLeft)
}

func (api *waitlistApi) status(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	st, msg, err := api.svc.Status(ctx.Request().Context(), usr, ctx.Param("feature"))
	if err != nil {
		return errors.Wrap(err, "getting waitlist status")
	}
	return respondOK(ctx, st, msg)
}
