package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/book"
	"github.com/aaronlou/innergrow.ai/core/discussion"
	"github.com/aaronlou/innergrow.ai/core/exam"
	"github.com/aaronlou/innergrow.ai/core/goal"
	"github.com/aaronlou/innergrow.ai/core/user"
	"github.com/aaronlou/innergrow.ai/core/waitlist"
	"github.com/aaronlou/innergrow.ai/services/metrics"
)

const (
	metricsPath = "/metrics"
	mediaPrefix = "/media/"
)

// ServerDeps holds everything the HTTP API needs.
type ServerDeps struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	// Storage is served under /media when ServeMedia is set (local development & tests).
	Storage    core.FileStorage
	ServeMedia bool

	UserSvc       *user.Service
	BookSvc       *book.Service
	ExamSvc       *exam.Service
	DiscussionSvc *discussion.Service
	GoalSvc       *goal.Service
	WaitlistSvc   *waitlist.Service

	DisableReqLogs bool
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	errors   chan error
	shutdown chan os.Signal
}

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	if deps.Conf == nil {
		deps.Conf = core.Conf
	}
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())
	s.app.Use(metrics.Middleware(func(ctx echo.Context) bool {
		return ctx.Path() == metricsPath || strings.HasPrefix(ctx.Path(), mediaPrefix)
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET(metricsPath, echo.WrapHandler(metrics.Handler()))
	if s.deps.ServeMedia && s.deps.Storage != nil {
		s.app.GET(mediaPrefix+"*", serveMedia(s.deps.Storage))
	}

	api := s.app.Group("/api")
	auth := authMiddleware(s.deps.UserSvc, false)
	optionalAuth := authMiddleware(s.deps.UserSvc, true)
	aiLimit := aiRateLimitMiddleware(conf.AI.RateLimit, conf.AI.RateBurst)

	registerAccountsAPI(api, auth, s.deps.UserSvc, s.deps.Validate)
	registerBooksAPI(api, auth, s.deps.BookSvc, s.deps.Validate)
	registerExamsAPI(api, auth, aiLimit, s.deps.ExamSvc, s.deps.Validate)
	registerDiscussionsAPI(api, auth, s.deps.DiscussionSvc, s.deps.Validate)
	registerGoalsAPI(api, auth, aiLimit, s.deps.GoalSvc, s.deps.Validate)
	registerWaitlistAPI(api, auth, optionalAuth, s.deps.WaitlistSvc, s.deps.Validate)
}

// Start blocks serving HTTP; a failure is reported on Errors.
func (s *Server) Start() {
	s.deps.Logger.Info("API listening on " + s.deps.Conf.Server.Address)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// signalShutdown asks main to stop the server gracefully.
func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}

// serveMedia streams uploaded objects from the local store.
func serveMedia(storage core.FileStorage) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		rc, info, err := storage.Download(ctx.Request().Context(), ctx.Param("*"))
		if err != nil {
			if errors.Cause(err) == core.ErrObjectNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "downloading media")
		}
		//goland:noinspection GoUnhandledErrorResult
		defer rc.Close()
		return ctx.Stream(http.StatusOK, info.ContentType, rc)
	}
}
