package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core/discussion"
)

var (
	errPostNotFoundInCtx    = errors.New("post object not found in echo.Context")
	errCommentNotFoundInCtx = errors.New("comment object not found in echo.Context")
)

type discussionsApi struct {
	svc      *discussion.Service
	validate *validator.Validate
}

func registerDiscussionsAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *discussion.Service, validate *validator.Validate) {
	api := discussionsApi{
		svc:      svc,
		validate: validate,
	}

	rg := g.Group("/exams/:id/discussion-room", auth, validIDs("id"))
	rg.GET("", api.room)
	rg.POST("/join", api.joinRoom)
	rg.POST("/leave", api.leaveRoom)

	g.GET("/discussion-rooms/:room/posts", api.posts, auth, validIDs("room"))
	g.POST("/discussion-rooms/:room/posts", api.createPost, auth, validIDs("room"))

	pg := g.Group("/posts/:id", auth, validIDs("id"), postMiddleware(svc))
	pg.GET("", api.retrievePost)
	pg.PUT("", api.updatePost)
	pg.PATCH("", api.updatePost)
	pg.DELETE("", api.destroyPost)
	pg.POST("/attachments", api.uploadAttachments)
	pg.POST("/vote", api.votePost)
	pg.GET("/comments", api.comments)
	pg.POST("/comments", api.createComment)

	cg := g.Group("/comments/:id", auth, validIDs("id"), commentMiddleware(svc))
	cg.PUT("", api.updateComment)
	cg.PATCH("", api.updateComment)
	cg.DELETE("", api.destroyComment)
	cg.POST("/vote", api.voteComment)
}

// Handlers

func (api *discussionsApi) room(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	r, err := api.svc.Room(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting discussion room")
	}
	return respondOK(ctx, r, discussion.MsgRoomRetrieved)
}

func (api *discussionsApi) joinRoom(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	r, msg, err := api.svc.JoinRoom(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "joining discussion room")
	}
	return respondOK(ctx, r, msg)
}

func (api *discussionsApi) leaveRoom(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	r, err := api.svc.LeaveRoom(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "leaving discussion room")
	}
	return respondOK(ctx, r, discussion.MsgLeft)
}

func (api *discussionsApi) posts(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	filter := discussion.PostFilter{
		Sort:     ctx.QueryParam("sort"),
		PostType: ctx.QueryParam("post_type"),
	}
	posts, err := api.svc.Posts(ctx.Request().Context(), usr, ctx.Param("room"), filter)
	if err != nil {
		return errors.Wrap(err, "querying posts")
	}
	if posts == nil {
		posts = []discussion.Post{}
	}
	return respondOK(ctx, posts)
}

func (api *discussionsApi) createPost(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data discussion.NewPost
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.CreatePost(ctx.Request().Context(), usr, ctx.Param("room"), data)
	if err != nil {
		return errors.Wrap(err, "creating post")
	}
	return respondCreated(ctx, p, "Post published")
}

func (api *discussionsApi) retrievePost(ctx echo.Context) error {
	p, ok := ctx.Get("object").(discussion.Post)
	if !ok {
		return errors.Wrap(errPostNotFoundInCtx, "retrieving object from context")
	}
	return respondOK(ctx, p)
}

func (api *discussionsApi) updatePost(ctx echo.Context) error {
	p, ok := ctx.Get("object").(discussion.Post)
	if !ok {
		return errors.Wrap(errPostNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data discussion.UpdatePost
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePost")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err = api.svc.UpdatePost(ctx.Request().Context(), usr, p, data)
	if err != nil {
		return errors.Wrap(err, "updating post")
	}
	return respondOK(ctx, p, "Post updated")
}

func (api *discussionsApi) destroyPost(ctx echo.Context) error {
	p, ok := ctx.Get("object").(discussion.Post)
	if !ok {
		return errors.Wrap(errPostNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeletePost(ctx.Request().Context(), usr, p); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *discussionsApi) uploadAttachments(ctx echo.Context) error {
	p, ok := ctx.Get("object").(discussion.Post)
	if !ok {
		return errors.Wrap(errPostNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	files, err := bindFiles(ctx, "files")
	if err != nil {
		return err
	}
	defer files.Close()

	p, err = api.svc.UploadAttachments(ctx.Request().Context(), usr, p, files.Files)
	if err != nil {
		return errors.Wrap(err, "uploading attachments")
	}
	return respondCreated(ctx, p, "Attachments uploaded")
}

func (api *discussionsApi) votePost(ctx echo.Context) error {
	p, ok := ctx.Get("object").(discussion.Post)
	if !ok {
		return errors.Wrap(errPostNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data discussion.VoteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VoteRequest")
	}

	p, err = api.svc.VotePost(ctx.Request().Context(), usr, p, data.VoteType)
	if err != nil {
		return errors.Wrap(err, "voting post")
	}
	return respondOK(ctx, p, discussion.MsgVoted)
}

func (api *discussionsApi) comments(ctx echo.Context) error {
	p, ok := ctx.Get("object").(discussion.Post)
	if !ok {
		return errors.Wrap(errPostNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	comments, err := api.svc.Comments(ctx.Request().Context(), usr, p)
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	if comments == nil {
		comments = []discussion.Comment{}
	}
	return respondOK(ctx, comments)
}

func (api *discussionsApi) createComment(ctx echo.Context) error {
	p, ok := ctx.Get("object").(discussion.Post)
	if !ok {
		return errors.Wrap(errPostNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data discussion.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.CreateComment(ctx.Request().Context(), usr, p, data)
	if err != nil {
		return errors.Wrap(err, "creating comment")
	}
	return respondCreated(ctx, c, "Comment published")
}

func (api *discussionsApi) updateComment(ctx echo.Context) error {
	c, ok := ctx.Get("object").(discussion.Comment)
	if !ok {
		return errors.Wrap(errCommentNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data discussion.UpdateComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err = api.svc.UpdateComment(ctx.Request().Context(), usr, c, data)
	if err != nil {
		return errors.Wrap(err, "updating comment")
	}
	return respondOK(ctx, c, "Comment updated")
}

func (api *discussionsApi) destroyComment(ctx echo.Context) error {
	c, ok := ctx.Get("object").(discussion.Comment)
	if !ok {
		return errors.Wrap(errCommentNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteComment(ctx.Request().Context(), usr, c); err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *discussionsApi) voteComment(ctx echo.Context) error {
	c, ok := ctx.Get("object").(discussion.Comment)
	if !ok {
		return errors.Wrap(errCommentNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data discussion.VoteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VoteRequest")
	}

	c, err = api.svc.VoteComment(ctx.Request().Context(), usr, c, data.VoteType)
	if err != nil {
		return errors.Wrap(err, "voting comment")
	}
	return respondOK(ctx, c, discussion.MsgVoted)
}

func postMiddleware(svc *discussion.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			p, err := svc.GetPost(ctx.Request().Context(), usr, ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding post by ID")
			}
			ctx.Set("object", p)
			return next(ctx)
		}
	}
}

func commentMiddleware(svc *discussion.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			c, err := svc.GetComment(ctx.Request().Context(), usr, ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding comment by ID")
			}
			ctx.Set("object", c)
			return next(ctx)
		}
	}
}
