package main

import (
	"context"

	"github.com/pkg/errors"
)

// seed get-or-creates the reference data; running it twice is harmless.
func (cli *commandLine) seed() error {
	ctx := context.Background()
	if err := cli.goalSvc.SeedDefaults(ctx); err != nil {
		return errors.Wrap(err, "seeding goal defaults")
	}
	if err := cli.waitlistSvc.SeedDefaults(ctx); err != nil {
		return errors.Wrap(err, "seeding waitlist features")
	}
	logger.Print("defaults seeded")
	return nil
}
