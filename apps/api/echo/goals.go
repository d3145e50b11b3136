package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core/ai"
	"github.com/aaronlou/innergrow.ai/core/goal"
)

var errGoalNotFoundInCtx = errors.New("goal object not found in echo.Context")

type goalsApi struct {
	svc      *goal.Service
	validate *validator.Validate
}

func registerGoalsAPI(
	g *echo.Group,
	auth echo.MiddlewareFunc,
	aiLimit echo.MiddlewareFunc,
	svc *goal.Service,
	validate *validator.Validate,
) {
	api := goalsApi{
		svc:      svc,
		validate: validate,
	}

	gg := g.Group("/goals")

	// un-authed endpoints
	gg.GET("/public", api.publicGoals)
	gg.GET("/public/:id", api.publicGoal, validIDs("id"))

	// authed endpoints
	gg.GET("", api.query, auth)
	gg.POST("", api.create, auth)
	gg.GET("/statistics", api.statistics, auth)
	gg.GET("/categories", api.categories, auth)
	gg.POST("/categories/create", api.createCategory, auth)
	gg.GET("/statuses", api.statuses, auth)
	gg.POST("/statuses/create", api.createStatus, auth)

	// detail endpoints
	dg := gg.Group("/:id", auth, validIDs("id"), goalMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/complete", api.complete)
	dg.POST("/analyze", api.analyze, aiLimit)
	dg.GET("/suggestions", api.suggestions)
	dg.POST("/suggestions/:sid/accept", api.acceptSuggestion, validIDs("sid"))
}

// Handlers

func (api *goalsApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter goal.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to goal.Filter")
	}
	var ord Ordering
	ord.Bind(ctx)

	goals, err := api.svc.List(ctx.Request().Context(), usr, filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying goals")
	}
	if goals == nil {
		goals = []goal.Detail{}
	}
	return respondOK(ctx, goals)
}

func (api *goalsApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data goal.NewGoal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGoal")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	g, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating goal")
	}
	return respondCreated(ctx, g, "Goal created")
}

func (api *goalsApi) retrieve(ctx echo.Context) error {
	g, ok := ctx.Get("object").(goal.Goal)
	if !ok {
		return errors.Wrap(errGoalNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	d, err := api.svc.Detail(ctx.Request().Context(), usr, g.ID)
	if err != nil {
		return errors.Wrap(err, "getting goal detail")
	}
	return respondOK(ctx, d)
}

func (api *goalsApi) update(ctx echo.Context) error {
	g, ok := ctx.Get("object").(goal.Goal)
	if !ok {
		return errors.Wrap(errGoalNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data goal.UpdateGoal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGoal")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.Update(ctx.Request().Context(), usr, g, data)
	if err != nil {
		return errors.Wrap(err, "updating goal")
	}
	return respondOK(ctx, d, "Goal updated")
}

func (api *goalsApi) destroy(ctx echo.Context) error {
	g, ok := ctx.Get("object").(goal.Goal)
	if !ok {
		return errors.Wrap(errGoalNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), g); err != nil {
		return errors.Wrap(err, "deleting goal")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *goalsApi) complete(ctx echo.Context) error {
	g, ok := ctx.Get("object").(goal.Goal)
	if !ok {
		return errors.Wrap(errGoalNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	d, err := api.svc.Complete(ctx.Request().Context(), usr, g)
	if err != nil {
		return errors.Wrap(err, "completing goal")
	}
	return respondOK(ctx, d, "Goal completed")
}

func (api *goalsApi) statistics(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Statistics(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	return respondOK(ctx, stats)
}

func (api *goalsApi) categories(ctx echo.Context) error {
	cats, err := api.svc.Categories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	if cats == nil {
		cats = []goal.Category{}
	}
	return respondOK(ctx, cats)
}

func (api *goalsApi) createCategory(ctx echo.Context) error {
	var data goal.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	c, err := api.svc.CreateCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return respondCreated(ctx, c, "Category created")
}

func (api *goalsApi) statuses(ctx echo.Context) error {
	sts, err := api.svc.Statuses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying statuses")
	}
	if sts == nil {
		sts = []goal.Status{}
	}
	return respondOK(ctx, sts)
}

func (api *goalsApi) createStatus(ctx echo.Context) error {
	var data goal.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.CreateStatus(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating status")
	}
	return respondCreated(ctx, s, "Status created")
}

func (api *goalsApi) publicGoals(ctx echo.Context) error {
	goals, err := api.svc.PublicGoals(ctx.Request().Context())
	if err != nil {
		return err
	}
	return respondOK(ctx, goals)
}

func (api *goalsApi) publicGoal(ctx echo.Context) error {
	g, err := api.svc.PublicGoal(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting public goal")
	}
	return respondOK(ctx, g)
}

func (api *goalsApi) analyze(ctx echo.Context) error {
	g, ok := ctx.Get("object").(goal.Goal)
	if !ok {
		return errors.Wrap(errGoalNotFoundInCtx, "retrieving object from context")
	}
	var data ai.Request
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ai.Request")
	}

	sgs, err := api.svc.Analyze(ctx.Request().Context(), g, data)
	if err != nil {
		return errors.Wrap(err, "analyzing goal")
	}
	if sgs == nil {
		sgs = []goal.Suggestion{}
	}
	return respondOK(ctx, sgs, "Suggestions generated")
}

func (api *goalsApi) suggestions(ctx echo.Context) error {
	g, ok := ctx.Get("object").(goal.Goal)
	if !ok {
		return errors.Wrap(errGoalNotFoundInCtx, "retrieving object from context")
	}
	sgs, err := api.svc.Suggestions(ctx.Request().Context(), g)
	if err != nil {
		return err
	}
	if sgs == nil {
		sgs = []goal.Suggestion{}
	}
	return respondOK(ctx, sgs)
}

func (api *goalsApi) acceptSuggestion(ctx echo.Context) error {
	g, ok := ctx.Get("object").(goal.Goal)
	if !ok {
		return errors.Wrap(errGoalNotFoundInCtx, "retrieving object from context")
	}
	var data goal.AcceptSuggestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AcceptSuggestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.AcceptSuggestion(ctx.Request().Context(), g, ctx.Param("sid"), data)
	if err != nil {
		return errors.Wrap(err, "accepting suggestion")
	}
	return respondOK(ctx, s, "Suggestion updated")
}

func goalMiddleware(svc *goal.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			g, err := svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding goal by ID")
			}
			ctx.Set("object", g)
			return next(ctx)
		}
	}
}
