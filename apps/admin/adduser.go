package main

import (
	"context"

	"github.com/aaronlou/innergrow.ai/core/user"
)

// addUser registers an active user; the password policy applies as on sign up.
func (cli *commandLine) addUser(email, name, pwd string, isStaff bool) error {
	ctx := context.Background()
	nu := user.NewUser{
		Email:           email,
		Name:            name,
		Password:        pwd,
		ConfirmPassword: pwd,
		IsStaff:         isStaff,
	}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Register(ctx, nu)
	if err != nil {
		return err
	}
	logger.Printf("user %s created (id: %s)", usr.Email, usr.ID)
	return nil
}
