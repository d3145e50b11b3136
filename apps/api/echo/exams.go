package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core/ai"
	"github.com/aaronlou/innergrow.ai/core/exam"
)

var errExamNotFoundInCtx = errors.New("exam object not found in echo.Context")

type examsApi struct {
	svc      *exam.Service
	validate *validator.Validate
}

func registerExamsAPI(
	g *echo.Group,
	auth echo.MiddlewareFunc,
	aiLimit echo.MiddlewareFunc,
	svc *exam.Service,
	validate *validator.Validate,
) {
	api := examsApi{
		svc:      svc,
		validate: validate,
	}

	eg := g.Group("/exams", auth)
	eg.GET("", api.query)
	eg.POST("", api.create)

	// detail endpoints
	dg := eg.Group("/:id", validIDs("id"), examMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/join", api.join)
	dg.POST("/leave", api.leave)
	dg.PUT("/material", api.uploadMaterial)
	dg.GET("/material", api.material)
	dg.GET("/material/download", api.downloadMaterial)
	dg.POST("/study-plan", api.studyPlan, aiLimit)
}

// Handlers

func (api *examsApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	exams, err := api.svc.List(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	if exams == nil {
		exams = []exam.Exam{}
	}
	return respondOK(ctx, exams)
}

func (api *examsApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return respondCreated(ctx, e, "Exam created")
}

func (api *examsApi) retrieve(ctx echo.Context) error {
	e, ok := ctx.Get("object").(exam.Exam)
	if !ok {
		return errors.Wrap(errExamNotFoundInCtx, "retrieving object from context")
	}
	return respondOK(ctx, e)
}

func (api *examsApi) update(ctx echo.Context) error {
	e, ok := ctx.Get("object").(exam.Exam)
	if !ok {
		return errors.Wrap(errExamNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data exam.UpdateExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err = api.svc.Update(ctx.Request().Context(), usr, e, data)
	if err != nil {
		return errors.Wrap(err, "updating exam")
	}
	return respondOK(ctx, e, "Exam updated")
}

func (api *examsApi) destroy(ctx echo.Context) error {
	e, ok := ctx.Get("object").(exam.Exam)
	if !ok {
		return errors.Wrap(errExamNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), usr, e); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examsApi) join(ctx echo.Context) error {
	e, ok := ctx.Get("object").(exam.Exam)
	if !ok {
		return errors.Wrap(errExamNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	e, err = api.svc.Join(ctx.Request().Context(), usr, e)
	if err != nil {
		return errors.Wrap(err, "joining exam")
	}
	return respondOK(ctx, e, "Successfully joined the exam group")
}

func (api *examsApi) leave(ctx echo.Context) error {
	e, ok := ctx.Get("object").(exam.Exam)
	if !ok {
		return errors.Wrap(errExamNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	e, err = api.svc.Leave(ctx.Request().Context(), usr, e)
	if err != nil {
		return errors.Wrap(err, "leaving exam")
	}
	return respondOK(ctx, e, "Successfully left the exam group")
}

func (api *examsApi) uploadMaterial(ctx echo.Context) error {
	e, ok := ctx.Get("object").(exam.Exam)
	if !ok {
		return errors.Wrap(errExamNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	files, err := bindFiles(ctx, "material")
	if err != nil {
		return err
	}
	defer files.Close()

	e, err = api.svc.UploadMaterial(ctx.Request().Context(), usr, e, files.First())
	if err != nil {
		return errors.Wrap(err, "uploading material")
	}
	return respondOK(ctx, e, "Material uploaded")
}

func (api *examsApi) material(ctx echo.Context) error {
	e, ok := ctx.Get("object").(exam.Exam)
	if !ok {
		return errors.Wrap(errExamNotFoundInCtx, "retrieving object from context")
	}
	link, err := api.svc.MaterialLink(ctx.Request().Context(), e)
	if err != nil {
		return errors.Wrap(err, "getting material link")
	}
	return respondOK(ctx, link)
}

func (api *examsApi) downloadMaterial(ctx echo.Context) error {
	e, ok := ctx.Get("object").(exam.Exam)
	if !ok {
		return errors.Wrap(errExamNotFoundInCtx, "retrieving object from context")
	}
	rc, info, err := api.svc.DownloadMaterial(ctx.Request().Context(), e)
	if err != nil {
		return errors.Wrap(err, "downloading material")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer rc.Close()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", e.Material.String))
	return ctx.Stream(http.StatusOK, info.ContentType, rc)
}

func (api *examsApi) studyPlan(ctx echo.Context) error {
	e, ok := ctx.Get("object").(exam.Exam)
	if !ok {
		return errors.Wrap(errExamNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data ai.Request
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ai.Request")
	}

	items, err := api.svc.StudyPlan(ctx.Request().Context(), usr, e, data)
	if err != nil {
		return errors.Wrap(err, "generating study plan")
	}
	if items == nil {
		items = []ai.Item{}
	}
	return respondOK(ctx, items, "Study plan generated")
}

func examMiddleware(svc *exam.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			e, err := svc.GetByID(ctx.Request().Context(), usr, ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding exam by ID")
			}
			ctx.Set("object", e)
			return next(ctx)
		}
	}
}
