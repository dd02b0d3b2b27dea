// Discord Gateway v10 session handling.
//
// FLOW:
//  1. Dial the gateway, read HELLO (op 10) for the heartbeat interval
//  2. Start heartbeating (op 1), send IDENTIFY (op 2)
//  3. Read DISPATCH (op 0) frames: READY sets the bot identity,
//     MESSAGE_CREATE becomes an Event
//  4. RECONNECT (op 7), INVALID SESSION (op 9), a missed heartbeat ACK or a
//     read error end the session; Run decides whether to open a new one
//
// Sessions are never resumed; each one identifies from scratch.
package channels

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

// maxGatewayFrame bounds a single gateway payload (READY can be large).
const maxGatewayFrame = 4 << 20

// ErrGatewayRejected means Discord refused the connection for a reason a
// reconnect cannot fix (bad token, invalid intents).
var ErrGatewayRejected = errors.New("discord gateway rejected the connection")

var (
	errReconnectRequested = errors.New("discord requested reconnect")
	errInvalidSession     = errors.New("discord invalidated the session")
	errHeartbeatTimeout   = errors.New("discord heartbeat not acknowledged")
)

// fatalCloseCodes are gateway close codes that must not be retried.
var fatalCloseCodes = map[websocket.StatusCode]string{
	4004: "authentication failed",
	4010: "invalid shard",
	4011: "sharding required",
	4012: "invalid API version",
	4013: "invalid intents",
	4014: "disallowed intents",
}

// gatewaySession is the state of one websocket connection.
type gatewaySession struct {
	conn    *websocket.Conn
	seq     atomic.Int64 // -1 until the first dispatch
	acked   atomic.Bool
	beatErr chan error
}

func (d *Discord) runSession(ctx context.Context, h EventHandler) error {
	conn, _, err := websocket.Dial(ctx, d.opts.GatewayURL, nil)
	if err != nil {
		return fmt.Errorf("discord gateway dial: %w", err)
	}
	conn.SetReadLimit(maxGatewayFrame)
	defer conn.CloseNow()

	sess := &gatewaySession{conn: conn, beatErr: make(chan error, 1)}
	sess.seq.Store(-1)
	sess.acked.Store(true)

	interval, err := readHello(ctx, conn)
	if err != nil {
		return classifyGatewayError(err)
	}

	beatCtx, stopBeat := context.WithCancel(ctx)
	defer stopBeat()
	go sess.heartbeat(beatCtx, interval)

	if err := conn.Write(ctx, websocket.MessageText, identifyFrame(d.opts.Token, d.opts.Intents)); err != nil {
		return fmt.Errorf("discord identify: %w", err)
	}

	// Reads block, so a heartbeat failure closes the connection to unblock them.
	go func() {
		select {
		case <-beatCtx.Done():
		case err := <-sess.beatErr:
			log.Warn().Err(err).Msg("discord heartbeat failed")
			conn.Close(websocket.StatusGoingAway, "heartbeat failure")
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "shutting down")
				return ctx.Err()
			}
			return classifyGatewayError(err)
		}

		frame := gjson.ParseBytes(data)
		switch frame.Get("op").Int() {
		case opDispatch:
			if s := frame.Get("s"); s.Exists() && s.Type == gjson.Number {
				sess.seq.Store(s.Int())
			}
			d.handleDispatch(ctx, h, frame.Get("t").String(), frame.Get("d"))
		case opHeartbeat:
			if err := sess.beat(ctx); err != nil {
				return fmt.Errorf("discord heartbeat: %w", err)
			}
		case opHeartbeatACK:
			sess.acked.Store(true)
		case opReconnect:
			conn.Close(websocket.StatusServiceRestart, "reconnect requested")
			return errReconnectRequested
		case opInvalidSession:
			conn.Close(websocket.StatusNormalClosure, "invalid session")
			return errInvalidSession
		}
	}
}

func readHello(ctx context.Context, conn *websocket.Conn) (time.Duration, error) {
	helloCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, data, err := conn.Read(helloCtx)
	if err != nil {
		return 0, err
	}
	frame := gjson.ParseBytes(data)
	if frame.Get("op").Int() != opHello {
		return 0, fmt.Errorf("expected HELLO, got op %d", frame.Get("op").Int())
	}
	ms := frame.Get("d.heartbeat_interval").Int()
	if ms <= 0 {
		return 0, fmt.Errorf("HELLO without heartbeat_interval")
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func classifyGatewayError(err error) error {
	code := websocket.CloseStatus(err)
	if reason, fatal := fatalCloseCodes[code]; fatal {
		return fmt.Errorf("%w: %s (close code %d)", ErrGatewayRejected, reason, code)
	}
	return fmt.Errorf("discord gateway read: %w", err)
}

// heartbeat sends op 1 every interval, starting after a random fraction of
// it. A beat sent while the previous one is still unacknowledged means the
// connection is dead.
func (s *gatewaySession) heartbeat(ctx context.Context, interval time.Duration) {
	first := time.Duration(rand.Float64() * float64(interval))
	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if !s.acked.Load() {
			s.beatErr <- errHeartbeatTimeout
			return
		}
		s.acked.Store(false)
		if err := s.beat(ctx); err != nil {
			if ctx.Err() == nil {
				s.beatErr <- err
			}
			return
		}
		timer.Reset(interval)
	}
}

func (s *gatewaySession) beat(ctx context.Context) error {
	return s.conn.Write(ctx, websocket.MessageText, heartbeatFrame(s.seq.Load()))
}

func heartbeatFrame(seq int64) []byte {
	frame := []byte(`{"op":1,"d":null}`)
	if seq >= 0 {
		frame, _ = sjson.SetBytes(frame, "d", seq)
	}
	return frame
}

func identifyFrame(token string, intents int) []byte {
	frame := []byte(`{"op":2,"d":{}}`)
	frame, _ = sjson.SetBytes(frame, "d.token", token)
	frame, _ = sjson.SetBytes(frame, "d.intents", intents)
	frame, _ = sjson.SetBytes(frame, "d.properties.os", runtime.GOOS)
	frame, _ = sjson.SetBytes(frame, "d.properties.browser", "chatrelay")
	frame, _ = sjson.SetBytes(frame, "d.properties.device", "chatrelay")
	return frame
}

func (d *Discord) handleDispatch(ctx context.Context, h EventHandler, eventType string, data gjson.Result) {
	switch eventType {
	case "READY":
		id := data.Get("user.id").String()
		name := data.Get("user.username").String()
		d.setSelf(id, name)
		log.Info().Str("user", name).Str("user_id", id).Msg("logged in")
	case "MESSAGE_CREATE":
		ev := parseMessageCreate(data, d.SelfID())
		log.Debug().
			Str("channel_id", ev.ChannelID).
			Str("author_id", ev.AuthorID).
			Int("text_len", len(ev.Text)).
			Msg("discord message")
		d.dispatch(ctx, h, ev)
	}
}

func parseMessageCreate(data gjson.Result, selfID string) Event {
	return Event{
		Channel:     discordChannelName,
		ChannelID:   data.Get("channel_id").String(),
		MessageID:   data.Get("id").String(),
		AuthorID:    data.Get("author.id").String(),
		AuthorName:  data.Get("author.username").String(),
		AuthorIsBot: data.Get("author.bot").Bool(),
		SelfID:      selfID,
		Text:        data.Get("content").String(),
	}
}
