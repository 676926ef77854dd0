package windows

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/debatesync/internal/storage"
)

// Multiplexer tracks which debate conversations are currently surfaced, their
// minimized state and position, and persists the open-set across reloads.
//
// It is the single source of truth for conversation visibility: a room is
// visible when its window is open and not minimized. The multiplexer is not
// goroutine-safe; the owning session serializes access.
type Multiplexer struct {
	open  []*Window
	store storage.Store
	log   *zerolog.Logger

	// onVisible is invoked whenever an open or restore makes a room visible,
	// so the unread counter for that room can be cleared.
	onVisible func(debateRoomID string)
}

// NewMultiplexer builds a multiplexer seeded from the persisted open-set.
// A missing or malformed stored value yields an empty open-set, never an error.
func NewMultiplexer(store storage.Store, logger *zerolog.Logger) *Multiplexer {
	m := &Multiplexer{store: store, log: logger}
	m.rehydrate()
	return m
}

// SetOnVisible registers the callback invoked when a room becomes visible.
func (m *Multiplexer) SetOnVisible(fn func(debateRoomID string)) {
	m.onVisible = fn
}

// Open surfaces a window for desc.DebateRoomID. If a window for that room
// already exists it is restored in place and its other fields are left
// untouched; a re-open is not a re-create. Either way the room becomes
// visible.
func (m *Multiplexer) Open(desc Window) {
	if w := m.find(desc.DebateRoomID); w != nil {
		w.Minimized = false
	} else {
		desc.Minimized = false
		m.open = append(m.open, &desc)
	}
	m.persist()
	m.markVisible(desc.DebateRoomID)
}

// Close removes the window entirely. The room's unread counter is left alone:
// closing a conversation does not imply reading it.
func (m *Multiplexer) Close(debateRoomID string) {
	for i, w := range m.open {
		if w.DebateRoomID == debateRoomID {
			m.open = append(m.open[:i], m.open[i+1:]...)
			m.persist()
			return
		}
	}
}

// Minimize hides the window without closing it. Unknown ids are no-ops.
func (m *Multiplexer) Minimize(debateRoomID string) {
	w := m.find(debateRoomID)
	if w == nil {
		return
	}
	w.Minimized = true
	m.persist()
}

// Restore un-minimizes the window and, like Open, marks the room visible.
// Unknown ids are no-ops.
func (m *Multiplexer) Restore(debateRoomID string) {
	w := m.find(debateRoomID)
	if w == nil {
		return
	}
	w.Minimized = false
	m.persist()
	m.markVisible(debateRoomID)
}

// UpdatePosition records the window's screen position. Unknown ids are no-ops.
func (m *Multiplexer) UpdatePosition(debateRoomID string, pos Position) {
	w := m.find(debateRoomID)
	if w == nil {
		return
	}
	w.Position = &pos
	m.persist()
}

// Get returns a copy of the window for the room, if open.
func (m *Multiplexer) Get(debateRoomID string) (Window, bool) {
	if w := m.find(debateRoomID); w != nil {
		return *w, true
	}
	return Window{}, false
}

// Visible reports whether the room's window is open and not minimized.
func (m *Multiplexer) Visible(debateRoomID string) bool {
	w := m.find(debateRoomID)
	return w != nil && !w.Minimized
}

// List returns a copy of the open-set in open order.
func (m *Multiplexer) List() []Window {
	out := make([]Window, 0, len(m.open))
	for _, w := range m.open {
		out = append(out, *w)
	}
	return out
}

// Len returns the number of open windows.
func (m *Multiplexer) Len() int {
	return len(m.open)
}

func (m *Multiplexer) find(debateRoomID string) *Window {
	for _, w := range m.open {
		if w.DebateRoomID == debateRoomID {
			return w
		}
	}
	return nil
}

func (m *Multiplexer) markVisible(debateRoomID string) {
	if m.onVisible != nil {
		m.onVisible(debateRoomID)
	}
}

// persist re-serializes the whole open-set after every mutation. An empty set
// deletes the stored entry instead of persisting an empty array.
func (m *Multiplexer) persist() {
	if m.store == nil {
		return
	}
	if len(m.open) == 0 {
		if err := m.store.Delete(storage.KeyOpenWindows); err != nil {
			m.log.Warn().Err(err).Msg("failed to clear persisted windows")
		}
		return
	}
	data, err := json.Marshal(m.open)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to serialize open windows")
		return
	}
	if err := m.store.Put(storage.KeyOpenWindows, data); err != nil {
		m.log.Warn().Err(err).Msg("failed to persist open windows")
	}
}

func (m *Multiplexer) rehydrate() {
	if m.store == nil {
		return
	}
	data, found, err := m.store.Get(storage.KeyOpenWindows)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to read persisted windows")
		return
	}
	if !found {
		return
	}
	var open []*Window
	if err := json.Unmarshal(data, &open); err != nil {
		m.log.Warn().Err(err).Msg("discarding malformed persisted windows")
		return
	}

	// Parseable but invalid entries (null elements, missing ids, duplicate
	// ids) are dropped rather than carried; a window without an id can never
	// be addressed, and a duplicate would break the one-window-per-room rule.
	seen := make(map[string]bool, len(open))
	kept := make([]*Window, 0, len(open))
	for _, w := range open {
		if w == nil || w.DebateRoomID == "" || seen[w.DebateRoomID] {
			continue
		}
		seen[w.DebateRoomID] = true
		kept = append(kept, w)
	}
	if dropped := len(open) - len(kept); dropped > 0 {
		m.log.Warn().Int("dropped", dropped).Msg("discarding invalid persisted window entries")
	}
	m.open = kept
}
