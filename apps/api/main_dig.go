package main

import (
	dig_container "github.com/aaronlou/innergrow.ai/apps/api/di/dig"
	echoapi "github.com/aaronlou/innergrow.ai/apps/api/echo"
	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/goal"
	"github.com/aaronlou/innergrow.ai/core/user"
	"github.com/aaronlou/innergrow.ai/core/waitlist"
)

func startWithDig() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		cleanup *dig_container.Cleanup,
		usrSvc *user.Service,
		goalSvc *goal.Service,
		waitlistSvc *waitlist.Service,
		server *echoapi.Server,
	) {
		defer cleanup.Run(apiLogger)

		app{
			conf:        conf,
			logger:      apiLogger,
			usrSvc:      usrSvc,
			goalSvc:     goalSvc,
			waitlistSvc: waitlistSvc,
			server:      server,
		}.run()
	}))
}
