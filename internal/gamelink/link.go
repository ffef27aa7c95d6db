// Package gamelink owns the WebSocket endpoint the game client pushes
// updates into, and the intent side channel going back. It is the only
// producer feeding the reconciler.
package gamelink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"openfront.gg/internal/protocol"
	"openfront.gg/internal/state"
	"openfront.gg/internal/tape"
)

const (
	readDeadline  = 60 * time.Second
	writeDeadline = 5 * time.Second
)

type Config struct {
	Reconciler *state.Reconciler
	Validator  *IntentValidator
	Tape       *tape.Recorder // optional
	Logger     *log.Logger
}

type Status struct {
	Connected     bool   `json:"connected"`
	GameConnects  uint64 `json:"game_connects"`
	LastError     string `json:"last_error,omitempty"`
	LastMessageAt string `json:"last_message_at,omitempty"`
}

type Link struct {
	rec       *state.Reconciler
	validator *IntentValidator
	tape      *tape.Recorder
	log       *log.Logger

	upgrader websocket.Upgrader

	mu        sync.RWMutex
	conn      *websocket.Conn
	connects  uint64
	lastErr   string
	lastMsgAt time.Time

	writeMu sync.Mutex
}

func New(cfg Config) (*Link, error) {
	if cfg.Reconciler == nil {
		return nil, fmt.Errorf("nil reconciler")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("nil intent validator")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Link{
		rec:       cfg.Reconciler,
		validator: cfg.Validator,
		tape:      cfg.Tape,
		log:       cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 16,
			// The game client runs on the same host; the bridge binds
			// loopback, so origin checks add nothing here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// Handler upgrades the single game connection. A newer connection
// replaces an older one; the game reconnecting after a hiccup must not
// be locked out by its own half-dead predecessor.
func (l *Link) Handler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := l.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			l.log.Printf("upgrade failed: %v", err)
			return
		}
		l.adopt(conn)
		l.readLoop(conn)
	})
}

func (l *Link) adopt(conn *websocket.Conn) {
	l.mu.Lock()
	old := l.conn
	l.conn = conn
	l.connects++
	l.lastErr = ""
	l.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	l.log.Printf("game connected from %s", conn.RemoteAddr())
}

func (l *Link) readLoop(conn *websocket.Conn) {
	defer func() {
		l.mu.Lock()
		if l.conn == conn {
			l.conn = nil
		}
		l.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			l.mu.Lock()
			if l.conn == conn {
				l.lastErr = err.Error()
			}
			l.mu.Unlock()
			l.log.Printf("game link read: %v", err)
			return
		}
		l.handleMessage(msg)
	}
}

// handleMessage decodes one frame and feeds it to the reconciler in
// arrival order. Decode failures drop the frame only.
func (l *Link) handleMessage(raw []byte) {
	l.mu.Lock()
	l.lastMsgAt = time.Now()
	l.mu.Unlock()

	if l.tape != nil {
		if err := l.tape.Record(raw); err != nil {
			l.log.Printf("tape: %v", err)
		}
	}

	base, err := protocol.DecodeBase(raw)
	if err != nil {
		l.log.Printf("%s: undecodable frame dropped: %v", protocol.ErrMalformedData, err)
		return
	}

	var inbound protocol.Inbound
	switch base.Type {
	case protocol.TypeSessionInfo:
		var m protocol.SessionInfoMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			l.log.Printf("%s: bad session_info: %v", protocol.ErrMalformedData, err)
			return
		}
		inbound = m
	case protocol.TypeTerrainInit:
		var m protocol.TerrainInitMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			l.log.Printf("%s: bad terrain_init: %v", protocol.ErrMalformedData, err)
			return
		}
		inbound = m
	case protocol.TypeTickUpdate:
		var m protocol.TickUpdateMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			l.log.Printf("%s: bad tick_update: %v", protocol.ErrMalformedData, err)
			return
		}
		inbound = m
	default:
		l.log.Printf("%s: unknown message type %q dropped", protocol.ErrProtoViolation, base.Type)
		return
	}

	// Apply logs its own diagnostics; the error here only tells us the
	// message did not land in full.
	_ = l.rec.Apply(inbound)
}

// SendIntent validates a payload against the schema for its kind and
// forwards the envelope to the game. The bridge does not re-validate
// game rules; the game answers with its own accept/reject.
func (l *Link) SendIntent(ctx context.Context, kind string, payload json.RawMessage) error {
	_ = ctx
	if err := l.validator.Validate(kind, payload); err != nil {
		return fmt.Errorf("%s: %w", protocol.ErrBadIntent, err)
	}

	msg := protocol.IntentMsg{
		Type:            protocol.TypeIntent,
		ProtocolVersion: protocol.Version,
		Kind:            kind,
		Payload:         payload,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	l.mu.RLock()
	conn := l.conn
	l.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("%s: game not connected", protocol.ErrNotConnected)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (l *Link) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := Status{
		Connected:    l.conn != nil,
		GameConnects: l.connects,
		LastError:    l.lastErr,
	}
	if !l.lastMsgAt.IsZero() {
		st.LastMessageAt = l.lastMsgAt.UTC().Format(time.RFC3339Nano)
	}
	return st
}

func (l *Link) Close() {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
