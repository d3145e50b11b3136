package main

import (
	"context"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	sp := user.SetPassword{
		Password:        pwd,
		ConfirmPassword: pwd,
		Name:            usr.Name,
		Email:           usr.Email,
	}
	if err := sp.Validate(cli.validate); err != nil {
		return err
	}
	// existing tokens are revoked
	_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
	return err
}
