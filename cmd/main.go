// Package main is the entry point for chatrelay.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/crazylearner/chatrelay/internal/monitoring"
)

// Version is set at build time via ldflags.
var Version = "dev"

const appName = "chatrelay"

// ANSI color codes
const (
	relayPurple = "\033[38;2;155;89;182m"
	bold        = "\033[1m"
	reset       = "\033[0m"
)

func printBanner() {
	line := "chatrelay " + Version + " - chat relay with per-user memory"
	if term.IsTerminal(int(os.Stdout.Fd())) {
		line = relayPurple + bold + line + reset
	}
	fmt.Println(line)
}

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	// Try loading from ~/.config/chatrelay/.env first
	configEnv := filepath.Join(homeDir, ".config", appName, ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Also load local .env
	_ = godotenv.Load()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve", "start":
			runServe(os.Args[2:])
			return
		case "console":
			runConsole(os.Args[2:])
			return
		case "version", "-v", "--version":
			fmt.Printf("%s %s\n", appName, Version)
			return
		case "help", "-h", "--help":
			printHelp()
			return
		}
	}

	runServe(os.Args[1:])
}

// resolveConfig finds the config to use.
// Checks: user flag -> filesystem locations -> embedded default.
// Returns raw bytes and source description.
func resolveConfig(userConfig string) ([]byte, string, error) {
	if userConfig != "" {
		data, err := os.ReadFile(userConfig)
		if err != nil {
			return nil, "", fmt.Errorf("config file not found: %s", userConfig)
		}
		return data, userConfig, nil
	}

	var searchPaths []string
	if homeDir, _ := os.UserHomeDir(); homeDir != "" {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".config", appName, "relay.yaml"))
	}
	searchPaths = append(searchPaths, filepath.Join("configs", "relay.yaml"))

	for _, path := range searchPaths {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	return getEmbeddedConfig(), "(embedded) relay.yaml", nil
}

// setupLogging configures zerolog for startup, before the config is known.
func setupLogging(debug bool, out io.Writer) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	})

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// applyLogConfig switches to the configured logger. --debug wins over the
// configured level.
func applyLogConfig(cfg monitoring.LoggerConfig, debug bool) {
	if cfg.Format == "json" || (cfg.Output != "" && cfg.Output != "stdout") {
		monitoring.Global(cfg)
	}
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	if level, err := zerolog.ParseLevel(cfg.Level); err == nil && cfg.Level != "" {
		zerolog.SetGlobalLevel(level)
	}
}

// printHelp prints usage information
func printHelp() {
	printBanner()
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  chatrelay [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve        Connect to Discord and relay messages (default)")
	fmt.Println("  console      Chat with the relay from this terminal")
	fmt.Println("  version      Print version information")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config FILE    Config file (default: ~/.config/chatrelay/relay.yaml,")
	fmt.Println("                   ./configs/relay.yaml, then the built-in default)")
	fmt.Println("  --debug          Enable debug logging")
	fmt.Println("  --no-banner      Suppress startup banner (serve)")
	fmt.Println("  --user ID        Author ID for console messages (console)")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  DISCORD_TOKEN    Discord bot token")
	fmt.Println("  HF_TOKEN         Inference API key")
	fmt.Println("  RELAY_MODEL      Override the completion model")
	fmt.Println("  RELAY_TELEMETRY_LOG  Write one JSON line per turn to this file")
}
