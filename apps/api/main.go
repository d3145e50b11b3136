package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/robfig/cron/v3"

	echoapi "github.com/aaronlou/innergrow.ai/apps/api/echo"
	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/goal"
	"github.com/aaronlou/innergrow.ai/core/user"
	"github.com/aaronlou/innergrow.ai/core/waitlist"
	"github.com/aaronlou/innergrow.ai/services/metrics"
)

func main() {
	inMem := flag.Bool("inmem", false, "run on in-memory repositories & storage (no database)")
	flag.Parse()

	if *inMem {
		startManual()
		return
	}
	startWithDig()
}

type app struct {
	conf        *core.Config
	logger      core.Logger
	usrSvc      *user.Service
	goalSvc     *goal.Service
	waitlistSvc *waitlist.Service
	server      *echoapi.Server
}

// run seeds the defaults, starts the debug server, the maintenance jobs & the API, then blocks until shutdown.
func (a app) run() {
	conf, logger, server := a.conf, a.logger, a.server

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	ctx := context.Background()
	if err := a.goalSvc.SeedDefaults(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("seeding goal defaults: %v", err), err)
	}
	if err := a.waitlistSvc.SeedDefaults(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("seeding waitlist features: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Maintenance Jobs

	jobs := cron.New()
	if _, err := jobs.AddFunc(conf.Server.TokenPurgeSchedule, func() {
		n, err := a.usrSvc.PurgeExpiredTokens(context.Background(), conf.Server.TokenExpiration)
		if err != nil {
			logger.Error(fmt.Sprintf("purging expired tokens: %v", err), err)
		}
		metrics.AddPurgedTokens(n)
	}); err != nil {
		logger.Fatal(fmt.Sprintf("scheduling token purge: %v", err), err)
	}
	jobs.Start()
	defer jobs.Stop()

	// =========================================================================
	// Start API Service

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
