package proto

import "encoding/json"

// Frame type tags for messages sent by the client.
const (
	OutboundTypeAuthenticate = "authenticate"
	OutboundTypeTyping       = "typing"
)

// Frame type tags for messages pushed by the server.
const (
	InboundTypeAuthenticated    = "authenticated"
	InboundTypeAuthError        = "auth_error"
	InboundTypeNewDebateMessage = "new_debate_message"
	InboundTypeUserNotification = "user_notification"
	InboundTypeDebateEnded      = "debate_ended"
	InboundTypeNewDebateCreated = "new_debate_created"
	InboundTypeOpponentTyping   = "opponent_typing"
)

// Envelope carries only the discriminant tag; the full frame is decoded in a
// second pass once the tag is known.
type Envelope struct {
	Type string `json:"type"`
}

// PeekType extracts the type tag from a raw frame.
func PeekType(raw []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}

// Authenticate is sent by the client immediately after the channel opens.
type Authenticate struct {
	Type      string `json:"type"`
	AuthToken string `json:"authToken"`
}

// Typing is a best-effort, fire-and-forget typing indicator.
type Typing struct {
	Type         string `json:"type"`
	DebateRoomID string `json:"debateRoomId"`
	IsTyping     bool   `json:"isTyping"`
}

// Authenticated acknowledges a successful handshake.
type Authenticated struct {
	UserID string `json:"userId"`
}

// AuthError reports a failed handshake. Terminal for the connection.
type AuthError struct {
	Message string `json:"message"`
}

// ChatMessage is the payload of a new_debate_message frame.
type ChatMessage struct {
	SenderID   string `json:"senderId,omitempty"`
	SenderName string `json:"senderName,omitempty"`
	Content    string `json:"content"`
	SentAt     int64  `json:"sentAt,omitempty"`
}

// NewDebateMessage delivers a chat message for one debate room.
type NewDebateMessage struct {
	DebateRoomID string      `json:"debateRoomId"`
	Message      ChatMessage `json:"message"`
}

// Notification is a session-wide notice with no room affinity.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// UserNotification wraps a session-wide notification frame.
type UserNotification struct {
	Notification Notification `json:"notification"`
}

// DebateEnded announces that a debate reached its conclusion.
type DebateEnded struct {
	DebateRoomID string `json:"debateRoomId"`
}

// NewDebateCreated announces that a new debate matched this user.
type NewDebateCreated struct {
	DebateRoomID string `json:"debateRoomId"`
	OpponentName string `json:"opponentName"`
}

// OpponentTyping forwards the opponent's typing indicator.
type OpponentTyping struct {
	DebateRoomID string `json:"debateRoomId"`
	IsTyping     bool   `json:"isTyping"`
	UserID       string `json:"userId"`
}
