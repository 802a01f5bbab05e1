// Command loothound runs the dog-catches-loot multiplayer game server.
//
// It serves the REST API under /api/v1, static frontend files from the
// configured www root, a spectator websocket stream on /ws and Prometheus
// metrics on /metrics. High scores go to PostgreSQL when GAME_DB_URL is set.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/ivolkov/loothound/api"
	"github.com/ivolkov/loothound/config"
	"github.com/ivolkov/loothound/game/app"
	"github.com/ivolkov/loothound/storage/postgres"
	"github.com/ivolkov/loothound/transport/websocket"
)

const dbURLEnv = "GAME_DB_URL"

func main() {
	cmd := &cli.Command{
		Name:  "loothound",
		Usage: "multiplayer game server: steer a dog, collect lost objects, deposit them for score",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config-file",
				Usage:    "path to the JSON game config",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "www-root",
				Usage:    "directory with static frontend files",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "tick-period",
				Usage: "internal tick period in ms; 0 disables it and enables POST /api/v1/game/tick",
			},
			&cli.BoolFlag{
				Name:  "randomize-spawn-points",
				Usage: "spawn dogs at random road points instead of the first road's start",
			},
			&cli.StringFlag{
				Name:  "state-file",
				Usage: "snapshot file path; empty disables persistence",
			},
			&cli.IntFlag{
				Name:  "save-state-period",
				Usage: "snapshot period in ms; 0 saves only on clean shutdown",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address",
				Value: ":8080",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, options{
				configFile:     cmd.String("config-file"),
				wwwRoot:        cmd.String("www-root"),
				addr:           cmd.String("addr"),
				verbose:        cmd.Bool("verbose"),
				tickPeriod:     time.Duration(cmd.Int("tick-period")) * time.Millisecond,
				randomizeSpawn: cmd.Bool("randomize-spawn-points"),
				stateFile:      cmd.String("state-file"),
				savePeriod:     time.Duration(cmd.Int("save-state-period")) * time.Millisecond,
			})
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	configFile     string
	wwwRoot        string
	addr           string
	verbose        bool
	tickPeriod     time.Duration
	randomizeSpawn bool
	stateFile      string
	savePeriod     time.Duration
}

func run(ctx context.Context, opts options) error {
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	// Load .env if present; environment only carries the database URL.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Sugar().Warnw("cannot load .env file", "error", err)
	}

	game, err := config.Load(opts.configFile)
	if err != nil {
		logger.Sugar().Errorw("invalid config", "file", opts.configFile, "error", err)
		return err
	}

	var records app.RecordRepository
	if dbURL := os.Getenv(dbURLEnv); dbURL != "" {
		store, err := postgres.NewRecordStore(ctx, dbURL)
		if err != nil {
			logger.Sugar().Errorw("cannot open leaderboard store", "error", err)
			return err
		}
		defer store.Close()
		records = store
	} else {
		logger.Sugar().Infow("leaderboard store disabled", "env", dbURLEnv)
	}

	application := app.New(logger, game, records, app.Config{
		TickPeriod:           opts.tickPeriod,
		RandomizeSpawnPoints: opts.randomizeSpawn,
		StateFile:            opts.stateFile,
		SavePeriod:           opts.savePeriod,
	})

	hub := websocket.NewHub(logger)
	go hub.Run()
	application.SetBroadcaster(api.NewStateBroadcaster(hub))

	if err := application.Start(); err != nil {
		logger.Sugar().Errorw("cannot start application", "error", err)
		return err
	}

	server := &http.Server{
		Addr:         opts.addr,
		Handler:      api.NewServer(logger, application, hub, opts.wwwRoot),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Sugar().Infow("server listening", "addr", opts.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Sugar().Infow("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Sugar().Errorw("server failed", "error", err)
		application.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Warnw("http shutdown failed", "error", err)
	}

	// In-flight handlers are done; the final snapshot happens here.
	application.Stop()

	logger.Sugar().Infow("server stopped")
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
