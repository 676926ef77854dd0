package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/debatesync/internal/proto"
)

// Server is a stub debate platform: enough of the real thing for the client
// to be exercised end-to-end. It authenticates websocket sessions, relays
// debate messages and typing indicators between connected users, and exposes
// an injection endpoint for pushing arbitrary frames in demos and tests.
type Server struct {
	accounts *Accounts
	jwt      *JWTConfig

	mu      sync.Mutex
	clients map[string]*client // username -> connected client

	log *zerolog.Logger
}

type client struct {
	userID   string
	username string
	send     chan []byte
}

// New constructs a dev server with an empty account registry.
func New(secret string, logger *zerolog.Logger) *Server {
	return &Server{
		accounts: NewAccounts(),
		jwt:      &JWTConfig{Secret: []byte(secret), TTL: 24 * time.Hour},
		clients:  make(map[string]*client),
		log:      logger,
	}
}

// RegisterRequest is the registration request body.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries an issued token.
type AuthResponse struct {
	Token string `json:"token"`
}

// ErrorResponse carries an error message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateDebateRequest pairs two connected users into a new debate room.
type CreateDebateRequest struct {
	UserA string `json:"userA" binding:"required"`
	UserB string `json:"userB" binding:"required"`
}

// CreateDebateResponse carries the minted room id.
type CreateDebateResponse struct {
	DebateRoomID string `json:"debateRoomId"`
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.POST("/api/register", s.handleRegister)
	r.POST("/api/login", s.handleLogin)
	r.POST("/api/debate", s.handleCreateDebate)
	r.POST("/api/inject/:username", s.handleInject)
	r.GET("/ws", s.handleWS)

	return r
}

// ListenAndServe runs the dev server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func (s *Server) handleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	userID, err := s.accounts.Register(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
			return
		}
		s.log.Error().Err(err).Str("username", req.Username).Msg("failed to register user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	token, err := GenerateToken(s.jwt, userID, req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, AuthResponse{Token: token})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	userID, err := s.accounts.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	}

	token, err := GenerateToken(s.jwt, userID, req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// handleCreateDebate mints a room id and announces the new debate to both
// parties, each frame naming the other user as the opponent.
func (s *Server) handleCreateDebate(c *gin.Context) {
	var req CreateDebateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserA == req.UserB {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "two distinct usernames are required"})
		return
	}

	s.mu.Lock()
	a, aConnected := s.clients[req.UserA]
	b, bConnected := s.clients[req.UserB]
	s.mu.Unlock()
	if !aConnected || !bConnected {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "both users must be connected"})
		return
	}

	roomID := NewRoomID()
	s.announceDebate(a, roomID, b.username)
	s.announceDebate(b, roomID, a.username)
	c.JSON(http.StatusCreated, CreateDebateResponse{DebateRoomID: roomID})
}

func (s *Server) announceDebate(to *client, roomID, opponentName string) {
	raw, err := json.Marshal(gin.H{
		"type":         proto.InboundTypeNewDebateCreated,
		"debateRoomId": roomID,
		"opponentName": opponentName,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to serialize debate announcement")
		return
	}
	select {
	case to.send <- raw:
	default:
		s.log.Warn().Str("username", to.username).Msg("dropping debate announcement for slow client")
	}
}

// handleInject pushes a raw frame to a connected user. Demo/test only.
func (s *Server) handleInject(c *gin.Context) {
	username := c.Param("username")

	raw, err := c.GetRawData()
	if err != nil || !json.Valid(raw) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "body must be a JSON frame"})
		return
	}

	s.mu.Lock()
	target, connected := s.clients[username]
	s.mu.Unlock()
	if !connected {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not connected"})
		return
	}

	select {
	case target.send <- raw:
		c.Status(http.StatusAccepted)
	default:
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "client send buffer full"})
	}
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	cl, err := s.handshake(ctx, conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws handshake failed")
		conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	s.mu.Lock()
	s.clients[cl.username] = cl
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.clients[cl.username] == cl {
			delete(s.clients, cl.username)
		}
		s.mu.Unlock()
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.readLoop(ctx, conn, cl)
	}()
	go func() {
		errCh <- s.writeLoop(ctx, conn, cl)
	}()

	err = <-errCh
	cancel()
	<-errCh

	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Debug().Err(err).Str("username", cl.username).Msg("ws connection closed")
	}
	conn.Close(websocket.StatusNormalClosure, "closing")
}

// handshake waits for the authenticate frame and acknowledges or rejects it.
func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (*client, error) {
	var frame proto.Authenticate
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		return nil, err
	}
	if frame.Type != proto.OutboundTypeAuthenticate {
		return nil, errors.New("expected authenticate frame")
	}

	claims, err := ValidateToken(s.jwt, frame.AuthToken)
	if err != nil {
		writeErr := wsjson.Write(ctx, conn, gin.H{
			"type":    proto.InboundTypeAuthError,
			"message": "token expired or invalid",
		})
		if writeErr != nil {
			return nil, writeErr
		}
		return nil, err
	}

	if err := wsjson.Write(ctx, conn, gin.H{
		"type":   proto.InboundTypeAuthenticated,
		"userId": claims.UserID,
	}); err != nil {
		return nil, err
	}

	return &client{
		userID:   claims.UserID,
		username: claims.Username,
		send:     make(chan []byte, 16),
	}, nil
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, cl *client) error {
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		tag, err := proto.PeekType(raw)
		if err != nil {
			s.log.Debug().Err(err).Msg("discarding malformed client frame")
			continue
		}

		switch tag {
		case proto.OutboundTypeTyping:
			var typing proto.Typing
			if err := json.Unmarshal(raw, &typing); err != nil {
				continue
			}
			s.relay(cl, proto.InboundTypeOpponentTyping, gin.H{
				"debateRoomId": typing.DebateRoomID,
				"isTyping":     typing.IsTyping,
				"userId":       cl.userID,
			})
		case "debate_message":
			var msg struct {
				DebateRoomID string `json:"debateRoomId"`
				Content      string `json:"content"`
			}
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			s.relay(cl, proto.InboundTypeNewDebateMessage, gin.H{
				"debateRoomId": msg.DebateRoomID,
				"message": proto.ChatMessage{
					SenderID:   cl.userID,
					SenderName: cl.username,
					Content:    msg.Content,
					SentAt:     time.Now().Unix(),
				},
			})
		default:
			s.log.Debug().Str("type", tag).Msg("ignoring client frame")
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, cl *client) error {
	for {
		select {
		case raw := <-cl.send:
			if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// relay fans a frame out to every connected client except the sender.
func (s *Server) relay(from *client, frameType string, fields gin.H) {
	fields["type"] = frameType
	raw, err := json.Marshal(fields)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to serialize relay frame")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for username, cl := range s.clients {
		if cl == from {
			continue
		}
		select {
		case cl.send <- raw:
		default:
			s.log.Warn().Str("username", username).Msg("dropping frame for slow client")
		}
	}
}

// NewRoomID mints a debate room identifier for demo flows.
func NewRoomID() string {
	return "room-" + uuid.NewString()
}
