package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/crazylearner/chatrelay/internal/channels"
	"github.com/crazylearner/chatrelay/internal/completion"
	"github.com/crazylearner/chatrelay/internal/config"
	"github.com/crazylearner/chatrelay/internal/monitoring"
	"github.com/crazylearner/chatrelay/internal/ops"
	"github.com/crazylearner/chatrelay/internal/relay"
	"github.com/crazylearner/chatrelay/internal/store"
)

// appOptions holds settings that come from flags rather than the config file.
type appOptions struct {
	ConsoleUser string
	ConsoleIn   io.Reader
	ConsoleOut  io.Writer
}

// relayApp is the wired relay: store, processor, handler and channels.
type relayApp struct {
	cfg      *config.Config
	store    *store.MemoryStore
	handler  *relay.Handler
	metrics  *monitoring.MetricsCollector
	alerts   *monitoring.AlertManager
	tracker  *monitoring.Tracker
	registry *prometheus.Registry
	channels *channels.Registry
}

func newRelayApp(ctx context.Context, cfg *config.Config, opts appOptions) (*relayApp, error) {
	client, err := newCompletionClient(ctx, cfg.Completion)
	if err != nil {
		return nil, err
	}

	tracker, err := monitoring.NewTracker(cfg.Monitoring.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry log: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetricsCollector(registry)
	alerts := monitoring.NewAlertManager(monitoring.New(cfg.Monitoring.Log), cfg.Monitoring.Alerts)

	st := store.NewMemoryStore(cfg.Bot.HistoryLimit)

	procOpts := relay.Options{
		Provider:     client.Provider(),
		Model:        cfg.Completion.Model,
		SystemPrompt: cfg.Bot.SystemPrompt,
		MaxTokens:    cfg.Completion.MaxTokens,
		Temperature:  cfg.Completion.TemperatureValue(),
		ResetCommand: cfg.Bot.ResetCommand,
		ResetReply:   cfg.Bot.ResetReply,
	}
	// The prompt estimate only feeds telemetry.
	if cfg.Monitoring.Telemetry.Enabled {
		procOpts.Tokens = completion.NewTokenEstimator("")
	}
	proc := relay.NewProcessor(st, client, procOpts)

	handler := relay.NewHandler(proc, st, relay.ReplyConfig{
		ErrorPrefix:   cfg.Bot.ErrorPrefix,
		MaxReplyChars: cfg.Bot.MaxReplyChars,
		Ellipsis:      cfg.Bot.Ellipsis,
	}, relay.WithMetrics(metrics), relay.WithTracker(tracker), relay.WithAlerts(alerts))

	chans := channels.NewRegistry()
	chans.Register(channels.NewDiscord(channels.DiscordOptions{
		Token:      cfg.Discord.Token,
		GatewayURL: cfg.Discord.GatewayURL,
		APIBase:    cfg.Discord.APIBase,
		Intents:    cfg.Discord.Intents,
	}))
	chans.Register(channels.NewConsole(channels.ConsoleOptions{
		In:     opts.ConsoleIn,
		Out:    opts.ConsoleOut,
		UserID: opts.ConsoleUser,
	}))

	return &relayApp{
		cfg:      cfg,
		store:    st,
		handler:  handler,
		metrics:  metrics,
		alerts:   alerts,
		tracker:  tracker,
		registry: registry,
		channels: chans,
	}, nil
}

// newCompletionClient builds the HTTP completion client. Bedrock requests
// are SigV4 signed with credentials from the default AWS chain.
func newCompletionClient(ctx context.Context, cc config.CompletionConfig) (*completion.HTTPClient, error) {
	opts := completion.Options{
		Provider: cc.Provider,
		Endpoint: cc.GetEndpoint(),
		APIKey:   cc.APIKey,
		Timeout:  cc.Timeout,
	}
	if cc.Provider == config.ProviderBedrock {
		transport, err := completion.NewBedrockSigningTransport(ctx, cc.Region, http.DefaultTransport)
		if err != nil {
			return nil, err
		}
		opts.HTTPClient = &http.Client{Transport: transport}
	}

	client, err := completion.NewHTTPClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}
	return client, nil
}

// run serves the named channel until ctx is done, then waits for in-flight
// turns and releases resources.
func (a *relayApp) run(ctx context.Context, channel string) error {
	adapter, err := a.channels.Get(channel)
	if err != nil {
		return err
	}

	var opsServer *ops.Server
	if a.cfg.Ops.Enabled {
		opsServer = ops.New(a.cfg.Ops.Addr, a.store, a.registry, ops.WithMetrics(a.metrics), ops.WithAlerts(a.alerts))
		go func() {
			if err := opsServer.ListenAndServe(); err != nil {
				log.Error().Err(err).Msg("ops server error")
			}
		}()
	}

	runErr := adapter.Run(ctx, a.handler)

	log.Info().Str("channel", channel).Msg("waiting for in-flight turns")
	adapter.Wait()

	if opsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("ops server shutdown error")
		}
		cancel()
	}

	a.close()
	return runErr
}

func (a *relayApp) close() {
	if err := a.tracker.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close telemetry")
	}
	_ = a.store.Close()
}
