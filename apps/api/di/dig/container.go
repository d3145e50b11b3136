package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/aaronlou/innergrow.ai/apps/api/echo"
	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/ai"
	"github.com/aaronlou/innergrow.ai/core/book"
	"github.com/aaronlou/innergrow.ai/core/discussion"
	"github.com/aaronlou/innergrow.ai/core/exam"
	"github.com/aaronlou/innergrow.ai/core/goal"
	"github.com/aaronlou/innergrow.ai/core/user"
	"github.com/aaronlou/innergrow.ai/core/waitlist"
	aisvc "github.com/aaronlou/innergrow.ai/services/ai"
	cachesvc "github.com/aaronlou/innergrow.ai/services/cache"
	emailsvc "github.com/aaronlou/innergrow.ai/services/email"
	logsvc "github.com/aaronlou/innergrow.ai/services/logger"
	storagesvc "github.com/aaronlou/innergrow.ai/services/storage"
	"github.com/aaronlou/innergrow.ai/storage/database"
	sqlxrepos "github.com/aaronlou/innergrow.ai/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Cleanup releases the external resources (DB, bucket client, redis) in reverse order of creation.
type Cleanup struct {
	fns []func() error
}

func (c *Cleanup) add(fn func() error) { c.fns = append(c.fns, fn) }

func (c *Cleanup) Run(logger core.Logger) {
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil {
			logger.Error(fmt.Sprintf("cleanup: %v", err), err)
		}
	}
}

type serverParams struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	Storage       core.FileStorage
	UserSvc       *user.Service
	BookSvc       *book.Service
	ExamSvc       *exam.Service
	DiscussionSvc *discussion.Service
	GoalSvc       *goal.Service
	WaitlistSvc   *waitlist.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, cleanup *Cleanup, loggerParam DBLoggerParam) core.DB {
	db, err := database.Setup(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	cleanup.add(db.Close)
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.Mail.SendGridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newFileStorage uses the GCS bucket when one is configured, the in-memory store otherwise.
func newFileStorage(conf *core.Config, cleanup *Cleanup) (core.FileStorage, error) {
	if conf.Storage.Bucket == "" {
		return storagesvc.NewMemoryStorage("http://" + conf.Server.Host + "/media/"), nil
	}
	st, closeFn, err := storagesvc.NewGCSStorage(context.Background(), conf.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "setting up GCS storage")
	}
	cleanup.add(closeFn)
	return st, nil
}

// newTokenCache returns a nil cache when redis is not configured.
func newTokenCache(conf *core.Config, cleanup *Cleanup) (user.TokenCache, error) {
	if conf.Redis.Address == "" {
		return nil, nil
	}
	rdb, err := cachesvc.NewRedisClient(context.Background(), conf.Redis)
	if err != nil {
		return nil, errors.Wrap(err, "setting up redis")
	}
	cleanup.add(rdb.Close)
	return cachesvc.NewTokenCache(rdb, conf.Redis.TokenTTL), nil
}

func newAIService(conf *core.Config) *ai.Service {
	return ai.NewService(aisvc.NewCompleter(conf.AI))
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	return validate
}

func newBookService(repo book.Repository, users *user.Service, storage core.FileStorage) *book.Service {
	return book.NewService(repo, users, storage)
}

func newExamService(conf *core.Config, repo exam.Repository, storage core.FileStorage, aiSvc *ai.Service) *exam.Service {
	return exam.NewService(repo, storage, aiSvc, conf.Storage.SignedURLExpiry)
}

func newDiscussionService(
	repo discussion.Repository,
	exams exam.Repository,
	users *user.Service,
	storage core.FileStorage,
) *discussion.Service {
	return discussion.NewService(repo, exams, users, storage)
}

func newGoalService(repo goal.Repository, users *user.Service, aiSvc *ai.Service) *goal.Service {
	return goal.NewService(repo, users, aiSvc)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Storage:       p.Storage,
		ServeMedia:    p.Conf.Storage.Bucket == "",
		UserSvc:       p.UserSvc,
		BookSvc:       p.BookSvc,
		ExamSvc:       p.ExamSvc,
		DiscussionSvc: p.DiscussionSvc,
		GoalSvc:       p.GoalSvc,
		WaitlistSvc:   p.WaitlistSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(func() *Cleanup { return new(Cleanup) }))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newFileStorage))
	must(c.Provide(newTokenCache))
	must(c.Provide(newAIService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewBookRepository))
	must(c.Provide(sqlxrepos.NewExamRepository))
	must(c.Provide(sqlxrepos.NewDiscussionRepository))
	must(c.Provide(sqlxrepos.NewGoalRepository))
	must(c.Provide(sqlxrepos.NewWaitlistRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(newBookService))
	must(c.Provide(newExamService))
	must(c.Provide(newDiscussionService))
	must(c.Provide(newGoalService))
	must(c.Provide(waitlist.NewService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
