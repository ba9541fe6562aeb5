package main

//go:generate swag init -g main.go -d ./,../internal/api -o ../docs

//
//  @title           twpulse API
//  @version         1.0
//  @description     Taiwan equity prices merged with TWSE institutional and day-trading flows.
//  @termsOfService  https://github.com/guttosm/twpulse
//  @contact.name    API Support
//  @contact.url     https://github.com/guttosm/twpulse
//  @contact.email   support@example.com
//  @license.name    MIT
//  @license.url     https://opensource.org/licenses/MIT
//  @host            localhost:8080
//  @BasePath        /
//  @schemes         http
//
//  @tag.name        series
//  @tag.description Persisted merged series and fetch history
//
//  @tag.name        health
//  @tag.description Liveness and readiness probes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guttosm/twpulse/config"
	"github.com/guttosm/twpulse/internal/app"
	"github.com/guttosm/twpulse/internal/fault"
	"github.com/guttosm/twpulse/internal/logger"
	"github.com/spf13/pflag"
)

// buildRunner is an indirection for unit testing.
var buildRunner = app.BuildRunner

// startServer binds the port synchronously, so an address in use fails fast,
// then serves router in the background. Port "0" picks a free port.
func startServer(router http.Handler, port string) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", port, err)
	}
	server := &http.Server{
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L().Info().Str("addr", ln.Addr().String()).Msg("server starting")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("server failed")
		}
	}()

	return server, ln.Addr(), nil
}

// gracefulShutdown blocks until SIGINT or SIGTERM, then drains the server
// and runs cleanup.
func gracefulShutdown(ctx context.Context, server *http.Server, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.L().Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Fatal().Err(err).Msg("server forced to shutdown")
	}

	cleanup()
	logger.L().Info().Msg("server exited gracefully")
}

// main is the entry point of twpulse.
//
// Modes (selected via --mode):
//   - fetch: downloads prices (and optionally TWSE statistics), writes artifacts,
//     and optionally persists and publishes them. Exit codes: 0 ok, 1 unexpected,
//     2 invalid input, 3 price fetch failed, 4 output failed, 5 use not permitted.
//   - api: serves the persisted series over HTTP.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cli, fs, err := parseArgs(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	config.LoadConfig()
	if err := bindFlags(fs); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cli.Mode {
	case modeFetch:
		return runFetch(ctx, cli, stdout)

	case modeAPI:
		logger.L().Info().Msg("starting API server")
		stop()

		router, cleanup, err := app.InitializeApp()
		if err != nil {
			logger.L().Error().Err(err).Msg("app init error")
			return 1
		}
		server, _, err := startServer(router, config.AppConfig.Server.Port)
		if err != nil {
			cleanup()
			logger.L().Error().Err(err).Msg("server start error")
			return 1
		}
		gracefulShutdown(context.Background(), server, cleanup)
		return 0

	default:
		logger.L().Error().Str("mode", cli.Mode).Msg("unknown mode")
		return 2
	}
}

func runFetch(ctx context.Context, cli *cliOptions, stdout io.Writer) int {
	log := logger.With("cli")
	cfg := config.AppConfig

	opts, err := fetchOptions(cli, cfg)
	if err != nil {
		log.Error().Err(err).Msg("invalid arguments")
		return fault.ExitCode(err)
	}

	runner, cleanup, err := buildRunner(ctx, cfg, app.FetchDeps{
		Persist:  cli.Persist,
		Publish:  cli.Publish,
		Progress: cli.Progress,
	})
	if err != nil {
		if fault.KindOf(err) == fault.KindUnknown {
			err = fault.Wrap(fault.KindOutput, "cli.setup", err)
		}
		log.Error().Err(err).Msg("setup failed")
		return fault.ExitCode(err)
	}
	defer cleanup()

	sum, err := runner.Run(ctx, opts)
	if sum != nil && cli.ShowSummary {
		if perr := sum.Print(stdout); perr != nil {
			log.Warn().Err(perr).Msg("summary not printed")
		}
	}
	if err != nil {
		log.Error().Err(err).Str("kind", fault.KindOf(err).String()).Msg("fetch failed")
		return fault.ExitCode(err)
	}
	return 0
}
