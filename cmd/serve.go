package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/crazylearner/chatrelay/internal/config"
)

// runServe connects to Discord and relays messages until SIGINT/SIGTERM.
func runServe(args []string) {
	loadEnvFiles()

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	debug := fs.Bool("debug", false, "enable debug logging")
	noBanner := fs.Bool("no-banner", false, "suppress startup banner")
	_ = fs.Parse(args) // ExitOnError handles errors

	if !*noBanner {
		printBanner()
	}

	setupLogging(*debug, os.Stdout)

	configData, configSource, err := resolveConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("no config file found, specify --config path")
	}

	log.Info().
		Str("version", Version).
		Str("config", configSource).
		Msg("chatrelay starting")

	cfg, err := config.LoadFromBytes(configData)
	if err != nil {
		log.Fatal().Err(err).Str("config", configSource).Msg("failed to load configuration")
	}
	applyLogConfig(cfg.Monitoring.Log, *debug)

	log.Info().
		Str("provider", cfg.Completion.Provider).
		Str("model", cfg.Completion.Model).
		Int("history_limit", cfg.Bot.HistoryLimit).
		Bool("ops", cfg.Ops.Enabled).
		Bool("telemetry", cfg.Monitoring.Telemetry.Enabled).
		Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newRelayApp(ctx, cfg, appOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start relay")
	}

	if err := app.run(ctx, "discord"); err != nil {
		log.Error().Err(err).Msg("relay stopped with error")
		stop()
		os.Exit(1)
	}

	log.Info().Msg("chatrelay stopped")
}

// runConsole chats with the relay from the terminal. It needs no Discord
// token; logs go to stderr so replies stay readable.
func runConsole(args []string) {
	loadEnvFiles()

	fs := flag.NewFlagSet("console", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	debug := fs.Bool("debug", false, "enable debug logging")
	user := fs.String("user", "console", "author ID for console messages")
	_ = fs.Parse(args)

	setupLogging(*debug, os.Stderr)
	if !*debug {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	configData, configSource, err := resolveConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("no config file found, specify --config path")
	}

	cfg, err := loadConsoleConfig(configData)
	if err != nil {
		log.Fatal().Err(err).Str("config", configSource).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newRelayApp(ctx, cfg, appOptions{ConsoleUser: *user})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start relay")
	}

	fmt.Printf("Chatting as %q. Type %s to forget the conversation, Ctrl-D to quit.\n", *user, cfg.Bot.ResetCommand)
	if err := app.run(ctx, "console"); err != nil {
		log.Error().Err(err).Msg("console stopped with error")
		stop()
		os.Exit(1)
	}
}

// loadConsoleConfig parses the config and validates everything except the
// Discord section.
func loadConsoleConfig(data []byte) (*config.Config, error) {
	cfg, err := config.Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Bot.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Completion.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
