package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core/book"
)

var errBookNotFoundInCtx = errors.New("book object not found in echo.Context")

type booksApi struct {
	svc      *book.Service
	validate *validator.Validate
}

func registerBooksAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *book.Service, validate *validator.Validate) {
	api := booksApi{
		svc:      svc,
		validate: validate,
	}

	bg := g.Group("/books")

	// un-authed endpoints
	bg.GET("", api.search)
	bg.GET("/categories", api.categories)
	bg.GET("/conditions", api.conditions)

	// authed endpoints
	bg.POST("", api.create, auth)
	bg.GET("/my-books", api.myBooks, auth)

	og := bg.Group("/orders", auth)
	og.GET("", api.orders)
	og.POST("", api.placeOrder)
	og.GET("/:id", api.retrieveOrder, validIDs("id"))
	og.PUT("/:id", api.updateOrder, validIDs("id"))
	og.PATCH("/:id", api.updateOrder, validIDs("id"))

	// detail endpoints
	dg := bg.Group("/:id", validIDs("id"), bookMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, auth)
	dg.PATCH("", api.update, auth)
	dg.DELETE("", api.destroy, auth)
	dg.POST("/images", api.addImages, auth)
	dg.DELETE("/images/:imageId", api.deleteImage, auth)
}

// Handlers

func (api *booksApi) search(ctx echo.Context) error {
	filter := book.SearchFilter{
		Keyword:   ctx.QueryParam("keyword"),
		Category:  ctx.QueryParam("category"),
		Condition: ctx.QueryParam("condition"),
		MinPrice:  ctx.QueryParam("min_price"),
		MaxPrice:  ctx.QueryParam("max_price"),
		Location:  ctx.QueryParam("location"),
		SortBy:    ctx.QueryParam("sort_by"),
		Page:      queryInt(ctx, "page"),
		PageSize:  queryInt(ctx, "page_size"),
	}
	books, count, err := api.svc.Search(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "searching books")
	}
	if books == nil {
		books = []book.Book{}
	}
	return respondPage(ctx, books, count)
}

func (api *booksApi) categories(ctx echo.Context) error {
	return respondOK(ctx, book.Categories)
}

func (api *booksApi) conditions(ctx echo.Context) error {
	return respondOK(ctx, book.Conditions)
}

func (api *booksApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data book.NewBook
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBook")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating book")
	}
	return respondCreated(ctx, b, "Book published")
}

func (api *booksApi) myBooks(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	books, err := api.svc.SellerBooks(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying seller books")
	}
	if books == nil {
		books = []book.Book{}
	}
	return respondOK(ctx, books)
}

func (api *booksApi) retrieve(ctx echo.Context) error {
	b, ok := ctx.Get("object").(book.Book)
	if !ok {
		return errors.Wrap(errBookNotFoundInCtx, "retrieving object from context")
	}
	return respondOK(ctx, b)
}

func (api *booksApi) update(ctx echo.Context) error {
	b, ok := ctx.Get("object").(book.Book)
	if !ok {
		return errors.Wrap(errBookNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data book.UpdateBook
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBook")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err = api.svc.Update(ctx.Request().Context(), usr, b, data)
	if err != nil {
		return errors.Wrap(err, "updating book")
	}
	return respondOK(ctx, b, "Book updated")
}

func (api *booksApi) destroy(ctx echo.Context) error {
	b, ok := ctx.Get("object").(book.Book)
	if !ok {
		return errors.Wrap(errBookNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), usr, b); err != nil {
		return errors.Wrap(err, "deleting book")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *booksApi) addImages(ctx echo.Context) error {
	b, ok := ctx.Get("object").(book.Book)
	if !ok {
		return errors.Wrap(errBookNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	files, err := bindFiles(ctx, "images")
	if err != nil {
		return err
	}
	defer files.Close()

	b, err = api.svc.AddImages(ctx.Request().Context(), usr, b, files.Files)
	if err != nil {
		return errors.Wrap(err, "adding book images")
	}
	return respondCreated(ctx, b, "Images uploaded")
}

func (api *booksApi) deleteImage(ctx echo.Context) error {
	b, ok := ctx.Get("object").(book.Book)
	if !ok {
		return errors.Wrap(errBookNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if _, err = api.svc.DeleteImage(ctx.Request().Context(), usr, b, ctx.Param("imageId")); err != nil {
		return errors.Wrap(err, "deleting book image")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *booksApi) orders(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	orders, err := api.svc.Orders(ctx.Request().Context(), usr, ctx.QueryParam("type"))
	if err != nil {
		return errors.Wrap(err, "querying orders")
	}
	if orders == nil {
		orders = []book.Order{}
	}
	return respondOK(ctx, orders)
}

func (api *booksApi) placeOrder(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data book.NewOrder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrder")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	o, err := api.svc.PlaceOrder(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "placing order")
	}
	return respondCreated(ctx, o, "Order placed")
}

func (api *booksApi) retrieveOrder(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	o, err := api.svc.GetOrder(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting order")
	}
	return respondOK(ctx, o)
}

func (api *booksApi) updateOrder(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	o, err := api.svc.GetOrder(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting order")
	}
	var data book.UpdateOrder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateOrder")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	o, err = api.svc.UpdateOrder(ctx.Request().Context(), usr, o, data)
	if err != nil {
		return errors.Wrap(err, "updating order")
	}
	return respondOK(ctx, o, "Order updated")
}

func bookMiddleware(svc *book.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			b, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding book by ID")
			}
			ctx.Set("object", b)
			return next(ctx)
		}
	}
}

// queryInt returns 0 when the query parameter is missing or not an integer.
func queryInt(ctx echo.Context, name string) int {
	n, err := strconv.Atoi(ctx.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}
