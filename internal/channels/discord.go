package channels

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/sjson"
)

const (
	discordChannelName = "discord"

	// DefaultReconnectDelay is the pause between gateway sessions.
	DefaultReconnectDelay = 5 * time.Second

	discordUserAgent  = "DiscordBot (https://github.com/crazylearner/chatrelay, 1.0)"
	maxDiscordErrBody = 300
)

// DiscordOptions configures the Discord adapter.
type DiscordOptions struct {
	Token          string
	GatewayURL     string
	APIBase        string
	Intents        int
	ReconnectDelay time.Duration
	HTTPClient     *http.Client // REST client; nil uses a 30s timeout client
}

// Discord is the Discord channel adapter: Gateway v10 for events, REST for replies.
type Discord struct {
	opts DiscordOptions
	http *http.Client

	mu       sync.RWMutex
	selfID   string
	selfName string

	wg sync.WaitGroup
}

// NewDiscord creates a Discord adapter.
func NewDiscord(opts DiscordOptions) *Discord {
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	opts.APIBase = strings.TrimRight(opts.APIBase, "/")
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Discord{opts: opts, http: client}
}

// Name returns "discord".
func (d *Discord) Name() string { return discordChannelName }

// SelfID returns the bot's user ID once READY has been received.
func (d *Discord) SelfID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selfID
}

func (d *Discord) setSelf(id, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selfID = id
	d.selfName = name
}

// Run keeps a gateway session open until ctx is done. Sessions that end
// for transport reasons are reopened after ReconnectDelay; authentication
// and configuration rejections end Run with an error.
func (d *Discord) Run(ctx context.Context, h EventHandler) error {
	for {
		err := d.runSession(ctx, h)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrGatewayRejected) {
			return err
		}

		log.Warn().Err(err).Dur("retry_in", d.opts.ReconnectDelay).Msg("discord gateway session ended")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.opts.ReconnectDelay):
		}
	}
}

// Wait blocks until every dispatched message has been handled.
func (d *Discord) Wait() {
	d.wg.Wait()
}

func (d *Discord) dispatch(ctx context.Context, h EventHandler, ev Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// Turns already started finish even when the session is shutting down.
		if err := h.HandleEvent(context.WithoutCancel(ctx), ev, d); err != nil {
			log.Error().Err(err).Str("channel_id", ev.ChannelID).Msg("discord event failed")
		}
	}()
}

// Send posts text to a Discord channel.
func (d *Discord) Send(ctx context.Context, channelID, text string) error {
	body, err := sjson.SetBytes([]byte(`{}`), "content", text)
	if err != nil {
		return fmt.Errorf("failed to build discord message: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", d.opts.APIBase, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+d.opts.Token)
	req.Header.Set("User-Agent", discordUserAgent)

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("discord send failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxDiscordErrBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord send returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Ensure Discord implements Adapter
var _ Adapter = (*Discord)(nil)
