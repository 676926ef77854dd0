package windows

// Position is a 2D screen coordinate, mutated by drag operations.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Window is one debate conversation the user has surfaced in the UI.
// Display metadata is immutable after creation; only Minimized and Position
// change in place.
type Window struct {
	DebateRoomID string    `json:"debateRoomId"`
	TopicTitle   string    `json:"topicTitle"`
	OpponentName string    `json:"opponentName"`
	OpponentID   string    `json:"opponentId"`
	Minimized    bool      `json:"isMinimized"`
	Position     *Position `json:"position,omitempty"`
}
