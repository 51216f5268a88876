package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/ayusman/courtside/internal/app"
	"github.com/ayusman/courtside/internal/config"
	"github.com/ayusman/courtside/internal/live"
	"github.com/ayusman/courtside/internal/logging"
	"github.com/ayusman/courtside/internal/server"
	"github.com/ayusman/courtside/internal/store"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(2)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "analyze":
		err = runAnalyze(args)
	case "serve":
		err = runServe(args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "courtside: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `courtside - basketball video action analysis

Usage:
  courtside analyze [-config file] <video>   analyse a video and print its timeline
  courtside serve [-config file] [-addr :8080]   run the HTTP API and live viewer

Settings are read from courtside.yaml and COURTSIDE_* environment variables.
`)
}

// env holds the services shared by both commands.
type env struct {
	cfg    config.Config
	logger zerolog.Logger
	store  *store.Store
	redis  *redis.Client
}

func setup(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	dbPath, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	st, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	logger.Info().Str("path", dbPath).Msg("store opened")

	e := &env{cfg: cfg, logger: logger, store: st}
	if cfg.Redis.Enabled() {
		client, err := live.Connect(ctx, cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not available, continuing without cache")
		} else {
			e.redis = client
		}
	}
	return e, nil
}

func (e *env) close() {
	if e.redis != nil {
		e.redis.Close()
	}
	e.store.Close()
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("analyze needs exactly one video path")
	}
	video, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close()

	a := app.New(e.cfg, app.Deps{Store: e.store, Redis: e.redis, Logger: e.logger})
	defer a.Close()

	report, runErr := a.Analyze(ctx, video)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return runErr
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	addr := fs.String("addr", "", "listen address, overrides server.addr")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close()

	hub := live.NewHub(e.logger)
	go hub.Run(ctx)

	a := app.New(e.cfg, app.Deps{Store: e.store, Hub: hub, Redis: e.redis, Logger: e.logger})
	defer a.Close()

	listen := e.cfg.Server.Addr
	if *addr != "" {
		listen = *addr
	}

	webDir := e.cfg.Server.StaticDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		e.logger.Info().Str("dir", webDir).Msg("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     e.store,
		Cache:     a.Cache(),
		Analyzer:  a,
		Hub:       hub,
		Logger:    e.logger,
	})

	e.logger.Info().Str("addr", listen).Msg("server listening")
	return srv.ListenAndServe(ctx, listen)
}

// findWebDir searches for the web directory in "web", "../web", "../../web"
// and ~/.courtside/web, returning "" when none exists.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(home, ".courtside", "web")
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return p
	}
	return ""
}
