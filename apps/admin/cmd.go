package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"sort"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/aaronlou/innergrow.ai/core/discussion"
	"github.com/aaronlou/innergrow.ai/core/goal"
	"github.com/aaronlou/innergrow.ai/core/user"
	"github.com/aaronlou/innergrow.ai/core/waitlist"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db            *sql.DB
	validate      *validator.Validate
	translator    ut.Translator
	usrSvc        *user.Service
	goalSvc       *goal.Service
	waitlistSvc   *waitlist.Service
	discussionSvc *discussion.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -email EMAIL -name NAME [-staff] - create a user account")
	fmt.Println("  resetpassword -email EMAIL - reset user's password")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  seed - create the default goal categories, statuses & waitlist features")
	fmt.Println("  pinpost -post ID [-unpin] - pin a discussion post on top of its room")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's display name.")
	addUserStaff := addUserCmd.Bool("staff", false, "Give the user staff access.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	pinPostCmd := flag.NewFlagSet("pinpost", flag.ExitOnError)
	pinPostID := pinPostCmd.String("post", "", "The post's ID.")
	pinPostUnpin := pinPostCmd.Bool("unpin", false, "Unpin the post instead.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.formatErr(cli.addUser(*addUserEmail, *addUserName, pwd, *addUserStaff))

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.formatErr(cli.resetPassword(*resetPasswordEmail, pwd))

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "seed":
		return cli.seed()

	case "pinpost":
		if err := pinPostCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *pinPostID == "" {
			pinPostCmd.Usage()
			return errHelp
		}
		return cli.pinPost(*pinPostID, !*pinPostUnpin)

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// formatErr turns validation errors into a readable "field: message" list.
func (cli *commandLine) formatErr(err error) error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err
	}
	msgs := make([]string, 0, len(vErrs))
	for _, vErr := range vErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", vErr.Field(), vErr.Translate(cli.translator)))
	}
	sort.Strings(msgs)
	return errors.New(strings.Join(msgs, "; "))
}
