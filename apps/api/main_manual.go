package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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
	emailsvc "github.com/aaronlou/innergrow.ai/services/email"
	logsvc "github.com/aaronlou/innergrow.ai/services/logger"
	storagesvc "github.com/aaronlou/innergrow.ai/services/storage"
	inmemdb "github.com/aaronlou/innergrow.ai/storage/database/inmem"
)

// startManual wires the API by hand on top of the in-memory repositories; data is lost on exit.
func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db := inmemdb.Open()
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close in-memory DB", err)
		}
	}()

	storage := storagesvc.NewMemoryStorage("http://" + conf.Server.Host + "/media/")
	mailSvc := emailsvc.NewConsoleService(conf, logger)
	aiSvc := ai.NewService(aisvc.NewCompleter(conf.AI))

	examRepo := inmemdb.NewExamRepository(db)
	usrSvc := user.NewService(inmemdb.NewUserRepository(db), mailSvc, storage, nil)
	goalSvc := goal.NewService(inmemdb.NewGoalRepository(db), usrSvc, aiSvc)
	waitlistSvc := waitlist.NewService(inmemdb.NewWaitlistRepository(db))

	translator := newTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			Validate:      validate,
			Translator:    translator,
			Storage:       storage,
			ServeMedia:    true,
			UserSvc:       usrSvc,
			BookSvc:       book.NewService(inmemdb.NewBookRepository(db), usrSvc, storage),
			ExamSvc:       exam.NewService(examRepo, storage, aiSvc, conf.Storage.SignedURLExpiry),
			DiscussionSvc: discussion.NewService(inmemdb.NewDiscussionRepository(db), examRepo, usrSvc, storage),
			GoalSvc:       goalSvc,
			WaitlistSvc:   waitlistSvc,
		},
	)

	app{
		conf:        conf,
		logger:      logger,
		usrSvc:      usrSvc,
		goalSvc:     goalSvc,
		waitlistSvc: waitlistSvc,
		server:      server,
	}.run()
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
