package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/ai"
	"github.com/aaronlou/innergrow.ai/core/discussion"
	"github.com/aaronlou/innergrow.ai/core/exam"
	"github.com/aaronlou/innergrow.ai/core/goal"
	"github.com/aaronlou/innergrow.ai/core/user"
	"github.com/aaronlou/innergrow.ai/core/waitlist"
	inmemdb "github.com/aaronlou/innergrow.ai/storage/database/inmem"
	testutil "github.com/aaronlou/innergrow.ai/tests"
)

var (
	usrRepo  user.Repository
	examRepo exam.Repository
)

func setup(t *testing.T) *commandLine {
	logger = log.New(io.Discard, "", 0)

	// set up DB & repos
	db := inmemdb.Open()
	t.Cleanup(func() { _ = db.Close() })
	usrRepo = inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, nil, nil, nil)
	examRepo = inmemdb.NewExamRepository(db)

	translator := newTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	// start CLI
	return &commandLine{
		validate:      validate,
		translator:    translator,
		usrSvc:        usrSvc,
		goalSvc:       goal.NewService(inmemdb.NewGoalRepository(db), usrSvc, ai.NewService(nil)),
		waitlistSvc:   waitlist.NewService(inmemdb.NewWaitlistRepository(db)),
		discussionSvc: discussion.NewService(inmemdb.NewDiscussionRepository(db), examRepo, usrSvc, nil),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITest(t *testing.T, cli *commandLine, tt cliTest) error {
	t.Helper()
	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, want an error")
		}
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
	return err
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate without subcommand", args: []string{"migrate"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runCLITest(t, cli, tt)
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		if dir != "migrations" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		return nil
	}

	tests := []cliTest{
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "flashcards", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runCLITest(t, cli, tt)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	testutil.CreateUser(t, usrRepo, "Existing", "existing@test.cd", "Str0ng-Passw0rd!", false)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no name", args: []string{"adduser", "-email", "awe@test.cd"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "awe@test.cd", "-name", "Awe"}, wantErr: errHelp},
		{
			name:       "numeric password",
			args:       []string{"adduser", "-email", "awe@test.cd", "-name", "Awe"},
			extra:      extra{pwd: "12345678"},
			wantErrStr: "password: password cannot be entirely numeric",
		},
		{
			name:       "invalid email",
			args:       []string{"adduser", "-email", "awe", "-name", "Awe"},
			extra:      extra{pwd: "Str0ng-Passw0rd!"},
			wantErrStr: "email: email must be a valid email address",
		},
		{
			name:       "existing email",
			args:       []string{"adduser", "-email", "EXISTING@test.cd", "-name", "Awe"},
			extra:      extra{pwd: "Str0ng-Passw0rd!"},
			wantErrStr: user.ErrEmailExists.Error(),
		},
		{
			name:  "staff",
			args:  []string{"adduser", "-email", "Awe@Test.cd", "-name", "Awe", "-staff"},
			extra: extra{pwd: "Str0ng-Passw0rd!"},
		},
	}
	for _, tt := range tests {
		pwd := ""
		if extra, ok := tt.extra.(extra); ok {
			pwd = extra.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			runCLITest(t, cli, tt)
		})
	}

	usr, err := usrRepo.GetUserByEmail(context.Background(), "awe@test.cd")
	if err != nil {
		t.Fatalf("GetUserByEmail() failed, %v", err)
	}
	if !usr.IsStaff || !usr.IsActive {
		t.Errorf("adduser: got IsStaff=%v IsActive=%v, want both true", usr.IsStaff, usr.IsActive)
	}
	if err := usr.CheckPassword("Str0ng-Passw0rd!"); err != nil {
		t.Errorf("adduser: password not set, %v", err)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe@test.cd", "Str0ng-Passw0rd!", false)
	ctx := context.Background()
	if _, err := cli.usrSvc.IssueToken(ctx, usr); err != nil {
		t.Fatalf("IssueToken() failed, %v", err)
	}

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: extra{pwd: "N3w-Passw0rd!"}, wantErr: user.ErrNotFound},
		{
			name:       "too short",
			args:       []string{"resetpassword", "-email", usr.Email},
			extra:      extra{pwd: "aB1!"},
			wantErrStr: "password: password must contain at least 6 characters",
		},
		{name: "reset", args: []string{"resetpassword", "-email", "AWE@test.cd"}, extra: extra{pwd: "N3w-Passw0rd!"}},
	}
	for _, tt := range tests {
		pwd := ""
		if extra, ok := tt.extra.(extra); ok {
			pwd = extra.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			runCLITest(t, cli, tt)
		})
	}

	refreshedUsr, err := usrRepo.GetUserByID(ctx, usr.ID)
	if err != nil {
		t.Fatalf("GetUserByID() failed, %v", err)
	}
	if err := refreshedUsr.CheckPassword("N3w-Passw0rd!"); err != nil {
		t.Errorf("failed to update new password, %v", err)
	}
	if keys, _ := usrRepo.DeleteUserTokens(ctx, usr.ID); len(keys) != 0 {
		t.Errorf("tokens not revoked, %d left", len(keys))
	}
}

func Test_commandLine_seed(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cli.run([]string{"admin", "seed"}); err != nil {
			t.Fatalf("cli.run(seed) error = %v", err)
		}
	}

	cats, err := cli.goalSvc.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories() failed, %v", err)
	}
	if len(cats) != len(goal.SeedCategories) {
		t.Errorf("got %d categories, want %d", len(cats), len(goal.SeedCategories))
	}
	features, err := cli.waitlistSvc.Features(ctx, nil)
	if err != nil {
		t.Fatalf("Features() failed, %v", err)
	}
	if len(features) != len(waitlist.SeedFeatures) {
		t.Errorf("got %d features, want %d", len(features), len(waitlist.SeedFeatures))
	}
}

func Test_commandLine_pinPost(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, usrRepo, "User", "awe@test.cd", "Str0ng-Passw0rd!", false)
	now := time.Now().UTC()
	e, err := examRepo.CreateExam(ctx, exam.Exam{
		ID:        "0f2c1d6e-8a4b-4f7e-9c3d-2b1a0e9f8d7c",
		Title:     "TOEFL",
		ExamTime:  now.Add(7 * 24 * time.Hour),
		CreatorID: usr.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateExam() failed, %v", err)
	}
	room, _, err := cli.discussionSvc.JoinRoom(ctx, usr, e.ID)
	if err != nil {
		t.Fatalf("JoinRoom() failed, %v", err)
	}
	old, err := cli.discussionSvc.CreatePost(ctx, usr, room.ID, discussion.NewPost{Title: "Rules", Content: "Read first"})
	if err != nil {
		t.Fatalf("CreatePost() failed, %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err = cli.discussionSvc.CreatePost(ctx, usr, room.ID, discussion.NewPost{Title: "Hello", Content: "Hi all"}); err != nil {
		t.Fatalf("CreatePost() failed, %v", err)
	}

	firstTitle := func() string {
		posts, err := cli.discussionSvc.Posts(ctx, usr, room.ID, discussion.PostFilter{Sort: discussion.SortNew})
		if err != nil {
			t.Fatalf("Posts() failed, %v", err)
		}
		return posts[0].Title
	}
	if got := firstTitle(); got != "Hello" {
		t.Fatalf("before pinning, first post = %q, want %q", got, "Hello")
	}

	tests := []cliTest{
		{name: "no args", args: []string{"pinpost"}, wantErr: errHelp},
		{name: "invalid id", args: []string{"pinpost", "-post", "lol"}, wantErr: discussion.ErrPostNotFound},
		{name: "unknown post", args: []string{"pinpost", "-post", "8d4f0c52-3b7a-4e51-b0a2-6c9e1f3d2a10"}, wantErr: discussion.ErrPostNotFound},
		{name: "pin", args: []string{"pinpost", "-post", old.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runCLITest(t, cli, tt)
		})
	}
	if got := firstTitle(); got != "Rules" {
		t.Errorf("after pinning, first post = %q, want %q", got, "Rules")
	}

	if err := cli.run([]string{"admin", "pinpost", "-post", old.ID, "-unpin"}); err != nil {
		t.Fatalf("cli.run(pinpost -unpin) error = %v", err)
	}
	if got := firstTitle(); got != "Hello" {
		t.Errorf("after unpinning, first post = %q, want %q", got, "Hello")
	}
}
