package connection

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/debatesync/internal/proto"
)

// DefaultReconnectDelay separates consecutive reconnect attempts.
const DefaultReconnectDelay = 3 * time.Second

// State describes the connection lifecycle. Rebuilt from scratch on every
// session start; never persisted.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

// Handler receives decoded inbound events. Exactly one method is invoked per
// recognized frame; unrecognized tags are dropped.
type Handler interface {
	HandleAuthenticated(userID string)
	HandleAuthError(message string)
	HandleDebateMessage(debateRoomID string, msg proto.ChatMessage)
	HandleUserNotification(n proto.Notification)
	HandleDebateEnded(debateRoomID string)
	HandleNewDebate(debateRoomID, opponentName string)
	HandleOpponentTyping(debateRoomID, userID string, isTyping bool)
}

// Options configures a Manager.
type Options struct {
	ServerURL      string
	AuthToken      string
	ReconnectDelay time.Duration
	Handler        Handler
	Logger         *zerolog.Logger
	Dial           Dialer // defaults to DialWebsocket
}

// Manager owns the single push channel for a user session: it performs the
// authentication handshake, decodes inbound frames, and retries the
// connection after loss.
//
// The lifecycle loops connecting → open → closed → connecting indefinitely,
// with one terminal exception: an auth_error stops automatic reconnection
// until the identity token changes.
type Manager struct {
	mu sync.Mutex

	state    State
	conn     Conn
	endpoint string
	token    string
	delay    time.Duration

	// Single-slot reconnect timer. Scheduling a new one always cancels the
	// previous one, so at most one attempt is ever pending.
	timer        *time.Timer
	timerPending bool

	// generation invalidates in-flight dials, read loops and timers after a
	// teardown or identity change; a stale callback must not resurrect the
	// channel.
	generation uint64

	cancelConn context.CancelFunc

	authFailed bool
	torndown   bool

	dial    Dialer
	handler Handler
	log     *zerolog.Logger
}

// NewManager builds a manager in the idle state. Connect must be called to
// bring the channel up.
func NewManager(opts Options) (*Manager, error) {
	endpoint, err := Endpoint(opts.ServerURL)
	if err != nil {
		return nil, err
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	dial := opts.Dial
	if dial == nil {
		dial = DialWebsocket
	}
	return &Manager{
		state:    StateIdle,
		endpoint: endpoint,
		token:    opts.AuthToken,
		delay:    delay,
		dial:     dial,
		handler:  opts.Handler,
		log:      opts.Logger,
	}, nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ReconnectPending reports whether a reconnect attempt is scheduled.
func (m *Manager) ReconnectPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timerPending
}

// Connect brings the channel up. Without an identity token the manager stays
// idle; a missing identity disables connection attempts rather than erroring.
// Calling Connect while connecting or open is a no-op.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.torndown || m.authFailed {
		m.mu.Unlock()
		return
	}
	if m.token == "" {
		m.log.Debug().Msg("no identity token, connection disabled")
		m.state = StateIdle
		m.mu.Unlock()
		return
	}
	if m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return
	}
	m.cancelTimerLocked()
	m.state = StateConnecting
	m.generation++
	gen := m.generation

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelConn = cancel
	m.mu.Unlock()

	go m.run(ctx, gen)
}

// SetToken installs a new identity. The current connection is closed and any
// pending reconnect is cancelled so no stale attempt can fire with the old
// identity. A non-empty token reconnects immediately; an empty one leaves the
// manager idle.
func (m *Manager) SetToken(token string) {
	m.mu.Lock()
	m.token = token
	m.authFailed = false
	m.cancelTimerLocked()
	m.generation++
	conn := m.detachConnLocked()
	m.state = StateIdle
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if token != "" {
		m.Connect()
	}
}

// Send serializes and transmits payload, but only on an open connection.
// Calls on a non-open connection are silently dropped; delivery is
// best-effort and never confirmed.
func (m *Manager) Send(payload any) {
	m.mu.Lock()
	if m.state != StateOpen || m.conn == nil {
		m.log.Debug().Str("state", string(m.state)).Msg("dropping send on non-open connection")
		m.mu.Unlock()
		return
	}
	conn := m.conn
	m.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to serialize outbound frame")
		return
	}
	if err := conn.Write(context.Background(), data); err != nil {
		m.log.Warn().Err(err).Msg("failed to write outbound frame")
	}
}

// SendTyping forwards a fire-and-forget typing indicator.
func (m *Manager) SendTyping(debateRoomID string, isTyping bool) {
	m.Send(proto.Typing{
		Type:         proto.OutboundTypeTyping,
		DebateRoomID: debateRoomID,
		IsTyping:     isTyping,
	})
}

// Close tears the manager down: the pending reconnect timer is cancelled and
// the transport closed without scheduling a new attempt.
func (m *Manager) Close() {
	m.mu.Lock()
	m.torndown = true
	m.cancelTimerLocked()
	m.generation++
	conn := m.detachConnLocked()
	m.state = StateClosed
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (m *Manager) run(ctx context.Context, gen uint64) {
	conn, err := m.dial(ctx, m.endpoint)
	if err != nil {
		m.log.Warn().Err(err).Str("endpoint", m.endpoint).Msg("dial failed")
		m.transitionClosed(gen, nil)
		return
	}

	m.mu.Lock()
	if gen != m.generation || m.torndown {
		// A teardown or identity change happened while dialing.
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	token := m.token
	m.mu.Unlock()

	auth, err := json.Marshal(proto.Authenticate{
		Type:      proto.OutboundTypeAuthenticate,
		AuthToken: token,
	})
	if err != nil {
		m.log.Error().Err(err).Msg("failed to serialize authenticate frame")
		m.transitionClosed(gen, conn)
		return
	}
	if err := conn.Write(ctx, auth); err != nil {
		m.log.Warn().Err(err).Msg("failed to send authenticate frame")
		m.transitionClosed(gen, conn)
		return
	}

	for {
		raw, err := conn.Read(ctx)
		if err != nil {
			m.log.Warn().Err(err).Msg("connection lost")
			m.transitionClosed(gen, conn)
			return
		}
		m.handleFrame(gen, raw)
	}
}

// handleFrame decodes one inbound frame and dispatches it by its type tag.
// A parse failure is logged and swallowed; the connection is unaffected.
func (m *Manager) handleFrame(gen uint64, raw []byte) {
	tag, err := proto.PeekType(raw)
	if err != nil {
		m.log.Warn().Err(err).Msg("discarding malformed frame")
		return
	}

	switch tag {
	case proto.InboundTypeAuthenticated:
		var frame proto.Authenticated
		if !m.decode(raw, &frame, tag) {
			return
		}
		m.mu.Lock()
		if gen == m.generation && m.state == StateConnecting {
			m.state = StateOpen
		}
		m.mu.Unlock()
		m.handler.HandleAuthenticated(frame.UserID)

	case proto.InboundTypeAuthError:
		var frame proto.AuthError
		if !m.decode(raw, &frame, tag) {
			return
		}
		m.failAuth(gen)
		m.handler.HandleAuthError(frame.Message)

	case proto.InboundTypeNewDebateMessage:
		var frame proto.NewDebateMessage
		if !m.decode(raw, &frame, tag) {
			return
		}
		m.handler.HandleDebateMessage(frame.DebateRoomID, frame.Message)

	case proto.InboundTypeUserNotification:
		var frame proto.UserNotification
		if !m.decode(raw, &frame, tag) {
			return
		}
		m.handler.HandleUserNotification(frame.Notification)

	case proto.InboundTypeDebateEnded:
		var frame proto.DebateEnded
		if !m.decode(raw, &frame, tag) {
			return
		}
		m.handler.HandleDebateEnded(frame.DebateRoomID)

	case proto.InboundTypeNewDebateCreated:
		var frame proto.NewDebateCreated
		if !m.decode(raw, &frame, tag) {
			return
		}
		m.handler.HandleNewDebate(frame.DebateRoomID, frame.OpponentName)

	case proto.InboundTypeOpponentTyping:
		var frame proto.OpponentTyping
		if !m.decode(raw, &frame, tag) {
			return
		}
		m.handler.HandleOpponentTyping(frame.DebateRoomID, frame.UserID, frame.IsTyping)

	default:
		m.log.Debug().Str("type", tag).Msg("ignoring unknown frame type")
	}
}

func (m *Manager) decode(raw []byte, frame any, tag string) bool {
	if err := json.Unmarshal(raw, frame); err != nil {
		m.log.Warn().Err(err).Str("type", tag).Msg("discarding malformed frame")
		return false
	}
	return true
}

// failAuth handles the terminal authentication failure: the connection is
// closed and no reconnect is scheduled until the identity changes.
func (m *Manager) failAuth(gen uint64) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.authFailed = true
	m.cancelTimerLocked()
	conn := m.detachConnLocked()
	m.state = StateClosed
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// transitionClosed moves to closed and schedules the single reconnect attempt
// unless the failure was terminal or the manager was torn down.
func (m *Manager) transitionClosed(gen uint64, conn Conn) {
	m.mu.Lock()
	if gen != m.generation || m.torndown {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	m.conn = nil
	m.state = StateClosed
	if !m.authFailed {
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// scheduleReconnectLocked arms the single-slot timer. Starting a new timer
// always cancels the previous one, making "at most one pending reconnect" a
// structural invariant. Callers hold m.mu.
func (m *Manager) scheduleReconnectLocked() {
	m.cancelTimerLocked()
	gen := m.generation
	m.timerPending = true
	m.timer = time.AfterFunc(m.delay, func() {
		m.mu.Lock()
		m.timerPending = false
		stale := m.torndown || m.authFailed || gen != m.generation
		m.mu.Unlock()
		if stale {
			return
		}
		m.Connect()
	})
	m.log.Debug().Dur("delay", m.delay).Msg("reconnect scheduled")
}

func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerPending = false
}

func (m *Manager) detachConnLocked() Conn {
	if m.cancelConn != nil {
		m.cancelConn()
		m.cancelConn = nil
	}
	conn := m.conn
	m.conn = nil
	return conn
}
