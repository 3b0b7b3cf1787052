package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/zonesync/internal/config"
	"github.com/jrsteele09/zonesync/internal/logging"
	"github.com/jrsteele09/zonesync/internal/metrics"
	"github.com/jrsteele09/zonesync/partner"
	"github.com/jrsteele09/zonesync/reconcile"
	"github.com/jrsteele09/zonesync/report"
	"github.com/jrsteele09/zonesync/tenants/pgrepo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const appName = "zonesync"

func main() {
	configPath := flag.String("config", "", "path to a zonesync.yaml config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Error().Err(err).Msg("Batch failed")
		os.Exit(1)
	}
}

func run(configPath string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{
		Level:  c.GetLogLevel(),
		Pretty: c.GetLogPretty(),
		File:   c.GetLogFile(),
	})
	log.Logger = logger
	if c.GetLogPretty() {
		displayAppname(appName)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgrepo.Connect(ctx, c.GetDatabaseURL(), c.GetMaxConns())
	if err != nil {
		return err
	}
	defer pool.Close()

	recorder := metrics.New()
	orchestrator := reconcile.New(
		pgrepo.New(pool, c.GetProvider()),
		c.GetEncryptionKey(),
		reconcile.Endpoint{
			APIHost:    c.GetAPIHost(),
			APIPort:    c.GetAPIPort(),
			APIVersion: c.GetAPIVersion(),
			Resource:   c.GetResource(),
		},
		reconcile.WithLogger(logger),
		reconcile.WithConcurrency(c.GetConcurrency()),
		reconcile.WithRecorder(recorder),
		reconcile.WithClientOptions(
			partner.WithRetryMax(c.GetRetryMax()),
			partner.WithTimeout(c.GetRequestTimeout()),
		),
	)

	results, runErr := orchestrator.Run(ctx)
	if results == nil && runErr != nil {
		return fmt.Errorf("orchestrator.Run: %w", runErr)
	}

	finishedAt := time.Now()
	recorder.Finish(finishedAt)
	out := report.Build(results, finishedAt)
	report.LogSummary(logger, out)

	if path := c.GetOutputFile(); path != "" {
		if err := report.Write(path, out); err != nil {
			return err
		}
		logger.Info().Str("path", path).Msg("Report written")
	}
	writeMetrics(logger, recorder, c.GetMetricsFile())

	if runErr != nil {
		return fmt.Errorf("orchestrator.Run: %w", runErr)
	}
	return nil
}

// writeMetrics is best effort; a missing textfile never fails the batch.
func writeMetrics(logger zerolog.Logger, recorder *metrics.Recorder, path string) {
	if path == "" {
		return
	}
	if err := recorder.WriteTextfile(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Writing metrics textfile failed")
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
