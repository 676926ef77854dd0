package unread

import (
	"github.com/rs/zerolog"

	"github.com/vovakirdan/debatesync/internal/proto"
)

// DebateListCacheKey names the external cache entry for the user's grouped
// debate list. The aggregator only marks it stale; fetching and rendering the
// list belongs to the collaborator that owns the cache.
const DebateListCacheKey = "debates:grouped"

// previewLimit caps the message preview shown in notifications.
const previewLimit = 100

// Notification is a transient, toast-style notice surfaced to the user.
type Notification struct {
	Title string
	Body  string
}

// Notifier receives transient notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Visibility answers whether a debate room is currently visible to the user.
// The aggregator queries it on every event instead of keeping its own copy.
type Visibility interface {
	Visible(debateRoomID string) bool
}

// Invalidator marks an external cache entry stale.
type Invalidator interface {
	Invalidate(key string)
}

// InvalidatorFunc adapts a function to the Invalidator interface.
type InvalidatorFunc func(key string)

func (f InvalidatorFunc) Invalidate(key string) { f(key) }

// Aggregator decides, per inbound event, whether the event was seen (window
// open and not minimized) or unseen, maintains per-room unread counters, and
// emits transient notifications. Entry absence in the counter map means zero.
//
// Not goroutine-safe; the owning session serializes access.
type Aggregator struct {
	counts     map[string]int
	visibility Visibility
	notifier   Notifier
	cache      Invalidator
	log        *zerolog.Logger
}

// NewAggregator constructs an aggregator with an empty counter map.
// notifier and cache may be nil when no sink is attached.
func NewAggregator(visibility Visibility, notifier Notifier, cache Invalidator, logger *zerolog.Logger) *Aggregator {
	return &Aggregator{
		counts:     make(map[string]int),
		visibility: visibility,
		notifier:   notifier,
		cache:      cache,
		log:        logger,
	}
}

// OnMessage handles a new_debate_message event. A message for a visible room
// is considered seen: no counter change, no notification. Anything else
// increments the room's counter and surfaces a preview notification.
func (a *Aggregator) OnMessage(debateRoomID string, msg proto.ChatMessage) {
	if a.visibility != nil && a.visibility.Visible(debateRoomID) {
		return
	}

	a.Increment(debateRoomID)

	sender := msg.SenderName
	if sender == "" {
		sender = "Your opponent"
	}
	a.notify(Notification{
		Title: sender,
		Body:  preview(msg.Content),
	})
}

// OnSystemNotification surfaces a session-wide notification. Counters are
// never touched; these events have no room affinity.
func (a *Aggregator) OnSystemNotification(n proto.Notification) {
	a.notify(Notification{Title: n.Title, Body: n.Body})
}

// OnDebateEnded prompts the user to rate their opponent. The window stays
// open until the user closes it and counters are untouched.
func (a *Aggregator) OnDebateEnded(debateRoomID string) {
	a.log.Debug().Str("room", debateRoomID).Msg("debate ended")
	a.notify(Notification{
		Title: "Debate ended",
		Body:  "The debate has ended. Don't forget to rate your opponent!",
	})
}

// OnNewDebate marks the grouped debate list stale and announces the match.
func (a *Aggregator) OnNewDebate(debateRoomID, opponentName string) {
	if a.cache != nil {
		a.cache.Invalidate(DebateListCacheKey)
	}
	a.log.Debug().Str("room", debateRoomID).Str("opponent", opponentName).Msg("new debate created")
	a.notify(Notification{
		Title: "New debate",
		Body:  "A new debate with " + opponentName + " has started.",
	})
}

// Set assigns a room's counter. Non-positive values remove the entry.
func (a *Aggregator) Set(debateRoomID string, count int) {
	if count <= 0 {
		delete(a.counts, debateRoomID)
		return
	}
	a.counts[debateRoomID] = count
}

// Increment bumps a room's counter, creating the entry lazily.
func (a *Aggregator) Increment(debateRoomID string) {
	a.counts[debateRoomID]++
}

// Clear removes the room's counter entry. Absence means zero, so a cleared
// room contributes nothing to the total and does not linger as a zero entry.
func (a *Aggregator) Clear(debateRoomID string) {
	delete(a.counts, debateRoomID)
}

// Count returns the room's unread count, zero when absent.
func (a *Aggregator) Count(debateRoomID string) int {
	return a.counts[debateRoomID]
}

// Total is the visible badge count: the sum of all counters, recomputed on
// every read so it can never drift from its sources.
func (a *Aggregator) Total() int {
	total := 0
	for _, n := range a.counts {
		total += n
	}
	return total
}

// Counts returns a snapshot of the counter map.
func (a *Aggregator) Counts() map[string]int {
	out := make(map[string]int, len(a.counts))
	for room, n := range a.counts {
		out[room] = n
	}
	return out
}

func (a *Aggregator) notify(n Notification) {
	if a.notifier != nil {
		a.notifier.Notify(n)
	}
}

// preview truncates content for display in a notification.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit])
}
