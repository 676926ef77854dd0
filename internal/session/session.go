package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/debatesync/internal/connection"
	"github.com/vovakirdan/debatesync/internal/identity"
	"github.com/vovakirdan/debatesync/internal/proto"
	"github.com/vovakirdan/debatesync/internal/storage"
	"github.com/vovakirdan/debatesync/internal/unread"
	"github.com/vovakirdan/debatesync/internal/windows"
)

// TypingFunc receives forwarded opponent_typing events for the conversation UI.
type TypingFunc func(debateRoomID, userID string, isTyping bool)

// Options configures a Session.
type Options struct {
	ServerURL      string
	AuthToken      string
	ReconnectDelay time.Duration

	Store       storage.Store      // defaults to an in-memory store
	Notifier    unread.Notifier    // transient notification sink
	Invalidator unread.Invalidator // external cache invalidation hook
	OnTyping    TypingFunc
	Dial        connection.Dialer // defaults to the websocket dialer
}

// Session is the owned store object for one user session. It wires the
// connection manager, the window multiplexer and the unread aggregator, and
// is the only way consumers touch their state.
//
// All event dispatch and UI operations are serialized by one mutex: every
// operation runs to completion before the next event is processed, and every
// visibility decision reads the multiplexer's current state at dispatch time.
type Session struct {
	mu sync.Mutex

	conn     *connection.Manager
	windows  *windows.Multiplexer
	unread   *unread.Aggregator
	store    storage.Store
	notifier unread.Notifier
	onTyping TypingFunc

	userID string
	closed bool

	log *zerolog.Logger
}

// New constructs a session and rehydrates the persisted window set. The
// connection is not brought up until Connect is called.
func New(opts Options, logger *zerolog.Logger) (*Session, error) {
	store := opts.Store
	if store == nil {
		store = storage.NewMemory()
	}

	s := &Session{
		store:    store,
		notifier: opts.Notifier,
		onTyping: opts.OnTyping,
		log:      logger,
	}

	s.windows = windows.NewMultiplexer(store, logger)
	s.unread = unread.NewAggregator(s.windows, opts.Notifier, opts.Invalidator, logger)
	// Opening or restoring a window makes its room visible, which counts as
	// reading everything in it.
	s.windows.SetOnVisible(s.unread.Clear)

	conn, err := connection.NewManager(connection.Options{
		ServerURL:      opts.ServerURL,
		AuthToken:      opts.AuthToken,
		ReconnectDelay: opts.ReconnectDelay,
		Handler:        (*handler)(s),
		Logger:         logger,
		Dial:           opts.Dial,
	})
	if err != nil {
		return nil, err
	}
	s.conn = conn

	if opts.AuthToken != "" {
		if claims, err := identity.Peek(opts.AuthToken); err != nil {
			logger.Warn().Err(err).Msg("could not decode identity token")
		} else if claims.Expired(time.Now()) {
			logger.Warn().Str("user", claims.Username).Msg("identity token already expired")
		}
	}

	return s, nil
}

// Connect brings up the push channel.
func (s *Session) Connect() {
	s.conn.Connect()
}

// Close tears the session down: the transport is closed, pending reconnects
// are cancelled, and the storage handle is released.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.conn.Close()
	if err := s.store.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close storage")
	}
}

// SetToken switches the session to a different identity. The old connection
// is dropped so no stale reconnect can fire with the previous token.
func (s *Session) SetToken(token string) {
	s.conn.SetToken(token)
}

// UserID returns the server-acknowledged user id, empty before the handshake
// completes.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// ConnectionState returns the current connection state.
func (s *Session) ConnectionState() connection.State {
	return s.conn.State()
}

// OpenWindow surfaces a debate conversation. Re-opening an existing window
// restores it in place; either way its unread counter is cleared.
func (s *Session) OpenWindow(desc windows.Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows.Open(desc)
}

// CloseWindow removes the conversation window. Its unread counter survives.
func (s *Session) CloseWindow(debateRoomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows.Close(debateRoomID)
}

// MinimizeWindow hides the conversation without closing it.
func (s *Session) MinimizeWindow(debateRoomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows.Minimize(debateRoomID)
}

// RestoreWindow un-minimizes the conversation and clears its unread counter.
func (s *Session) RestoreWindow(debateRoomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows.Restore(debateRoomID)
}

// MoveWindow records the window's screen position.
func (s *Session) MoveWindow(debateRoomID string, pos windows.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows.UpdatePosition(debateRoomID, pos)
}

// Windows returns a snapshot of the open-set in open order.
func (s *Session) Windows() []windows.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windows.List()
}

// UnreadCount returns one room's unread count, zero when absent.
func (s *Session) UnreadCount(debateRoomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread.Count(debateRoomID)
}

// TotalUnread is the badge total, recomputed from the counter map on every
// call.
func (s *Session) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread.Total()
}

// UnreadCounts returns a snapshot of all per-room counters.
func (s *Session) UnreadCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread.Counts()
}

// SendTyping forwards a best-effort typing indicator. Dropped silently when
// the connection is not open.
func (s *Session) SendTyping(debateRoomID string, isTyping bool) {
	s.conn.SendTyping(debateRoomID, isTyping)
}

// Send forwards an arbitrary outbound payload verbatim.
func (s *Session) Send(payload any) {
	s.conn.Send(payload)
}

// handler adapts the session to connection.Handler without exporting the
// event methods on Session itself.
type handler Session

func (h *handler) session() *Session { return (*Session)(h) }

func (h *handler) HandleAuthenticated(userID string) {
	s := h.session()
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
	s.log.Info().Str("user_id", userID).Msg("connection authenticated")
}

func (h *handler) HandleAuthError(message string) {
	s := h.session()
	s.log.Error().Str("reason", message).Msg("authentication failed")
	if s.notifier != nil {
		s.notifier.Notify(unread.Notification{
			Title: "Connection error",
			Body:  message,
		})
	}
}

func (h *handler) HandleDebateMessage(debateRoomID string, msg proto.ChatMessage) {
	s := h.session()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread.OnMessage(debateRoomID, msg)
}

func (h *handler) HandleUserNotification(n proto.Notification) {
	s := h.session()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread.OnSystemNotification(n)
}

func (h *handler) HandleDebateEnded(debateRoomID string) {
	s := h.session()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread.OnDebateEnded(debateRoomID)
}

func (h *handler) HandleNewDebate(debateRoomID, opponentName string) {
	s := h.session()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread.OnNewDebate(debateRoomID, opponentName)
}

func (h *handler) HandleOpponentTyping(debateRoomID, userID string, isTyping bool) {
	s := h.session()
	if s.onTyping != nil {
		s.onTyping(debateRoomID, userID, isTyping)
	}
}
