package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/ai"
	"github.com/aaronlou/innergrow.ai/core/discussion"
	"github.com/aaronlou/innergrow.ai/core/goal"
	"github.com/aaronlou/innergrow.ai/core/user"
	"github.com/aaronlou/innergrow.ai/core/waitlist"
	"github.com/aaronlou/innergrow.ai/storage/database"
	sqlxrepos "github.com/aaronlou/innergrow.ai/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)

	translator := newTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	// accounts created here get no welcome email
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), nil, nil, nil)

	// no uploads from the CLI
	discussionSvc := discussion.NewService(sqlxrepos.NewDiscussionRepository(db), sqlxrepos.NewExamRepository(db), usrSvc, nil)

	// start CLI
	cli := commandLine{
		db:            db.DB,
		validate:      validate,
		translator:    translator,
		usrSvc:        usrSvc,
		goalSvc:       goal.NewService(sqlxrepos.NewGoalRepository(db), usrSvc, ai.NewService(nil)),
		waitlistSvc:   waitlist.NewService(sqlxrepos.NewWaitlistRepository(db)),
		discussionSvc: discussionSvc,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
