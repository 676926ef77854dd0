package unread

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/vovakirdan/debatesync/internal/log"
	"github.com/vovakirdan/debatesync/internal/proto"
)

type fakeVisibility map[string]bool

func (v fakeVisibility) Visible(roomID string) bool { return v[roomID] }

type sink struct {
	notes []Notification
	keys  []string
}

func (s *sink) Notify(n Notification) { s.notes = append(s.notes, n) }
func (s *sink) Invalidate(key string) { s.keys = append(s.keys, key) }

func newTestAggregator(vis fakeVisibility) (*Aggregator, *sink) {
	out := &sink{}
	return NewAggregator(vis, out, out, log.Nop()), out
}

func TestMessageForHiddenRoomCountsAndNotifies(t *testing.T) {
	a, out := newTestAggregator(fakeVisibility{})

	a.OnMessage("room-1", proto.ChatMessage{SenderName: "alice", Content: "hello"})

	if got := a.Count("room-1"); got != 1 {
		t.Fatalf("expected counter 1, got %d", got)
	}
	if len(out.notes) != 1 {
		t.Fatalf("expected one notification, got %d", len(out.notes))
	}
	if out.notes[0].Title != "alice" || out.notes[0].Body != "hello" {
		t.Fatalf("unexpected notification: %+v", out.notes[0])
	}
}

func TestMessageForVisibleRoomIsSeen(t *testing.T) {
	a, out := newTestAggregator(fakeVisibility{"room-1": true})

	a.OnMessage("room-1", proto.ChatMessage{SenderName: "alice", Content: "hello"})

	if got := a.Count("room-1"); got != 0 {
		t.Fatalf("seen message must not increment, got %d", got)
	}
	if len(out.notes) != 0 {
		t.Fatalf("seen message must not notify, got %+v", out.notes)
	}
}

func TestNotificationPreviewAndFallback(t *testing.T) {
	tests := []struct {
		name      string
		msg       proto.ChatMessage
		wantTitle string
		wantLen   int
	}{
		{
			name:      "long content truncated to 100 runes",
			msg:       proto.ChatMessage{SenderName: "bob", Content: strings.Repeat("я", 250)},
			wantTitle: "bob",
			wantLen:   100,
		},
		{
			name:      "missing sender falls back",
			msg:       proto.ChatMessage{Content: "hi"},
			wantTitle: "Your opponent",
			wantLen:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, out := newTestAggregator(fakeVisibility{})
			a.OnMessage("room-1", tt.msg)
			if len(out.notes) != 1 {
				t.Fatalf("expected one notification, got %d", len(out.notes))
			}
			n := out.notes[0]
			if n.Title != tt.wantTitle {
				t.Fatalf("expected title %q, got %q", tt.wantTitle, n.Title)
			}
			if got := len([]rune(n.Body)); got != tt.wantLen {
				t.Fatalf("expected body of %d runes, got %d", tt.wantLen, got)
			}
		})
	}
}

func TestSystemNotificationNeverTouchesCounters(t *testing.T) {
	a, out := newTestAggregator(fakeVisibility{})

	a.OnSystemNotification(proto.Notification{Title: "Maintenance", Body: "tonight"})

	if a.Total() != 0 {
		t.Fatalf("system notification must not touch counters, total=%d", a.Total())
	}
	if len(out.notes) != 1 || out.notes[0].Title != "Maintenance" {
		t.Fatalf("expected pass-through notification, got %+v", out.notes)
	}
}

func TestDebateEndedNotifiesOnly(t *testing.T) {
	a, out := newTestAggregator(fakeVisibility{})

	a.OnDebateEnded("room-1")

	if a.Total() != 0 {
		t.Fatalf("debate_ended must not touch counters")
	}
	if len(out.notes) != 1 || !strings.Contains(out.notes[0].Body, "rate your opponent") {
		t.Fatalf("expected rate-your-opponent prompt, got %+v", out.notes)
	}
}

func TestNewDebateInvalidatesListCache(t *testing.T) {
	a, out := newTestAggregator(fakeVisibility{})

	a.OnNewDebate("room-9", "carol")

	if len(out.keys) != 1 || out.keys[0] != DebateListCacheKey {
		t.Fatalf("expected %q invalidated, got %v", DebateListCacheKey, out.keys)
	}
	if len(out.notes) != 1 || !strings.Contains(out.notes[0].Body, "carol") {
		t.Fatalf("expected announcement naming the opponent, got %+v", out.notes)
	}
}

func TestTotalIsAlwaysTheSum(t *testing.T) {
	a, _ := newTestAggregator(fakeVisibility{})

	a.Increment("room-1")
	a.Increment("room-1")
	a.Increment("room-2")
	a.Set("room-3", 5)

	if got := a.Total(); got != 8 {
		t.Fatalf("expected total 8, got %d", got)
	}

	a.Clear("room-3")
	if got := a.Total(); got != 3 {
		t.Fatalf("expected total 3 after clear, got %d", got)
	}
}

func TestClearDeletesTheEntry(t *testing.T) {
	a, _ := newTestAggregator(fakeVisibility{})

	a.Increment("room-1")
	a.Clear("room-1")

	counts := a.Counts()
	if _, present := counts["room-1"]; present {
		t.Fatalf("clear must delete the entry, not zero it: %v", counts)
	}
	if a.Count("room-1") != 0 {
		t.Fatalf("absent entry must read as zero")
	}
}

func TestSetNonPositiveRemovesEntry(t *testing.T) {
	a, _ := newTestAggregator(fakeVisibility{})

	a.Set("room-1", 3)
	a.Set("room-1", 0)

	if _, present := a.Counts()["room-1"]; present {
		t.Fatalf("setting zero must remove the entry")
	}
}

func TestCounterMapRoundTripPreservesAbsence(t *testing.T) {
	a, _ := newTestAggregator(fakeVisibility{})
	a.Increment("room-1")
	a.Increment("room-2")
	a.Clear("room-2")

	data, err := json.Marshal(a.Counts())
	if err != nil {
		t.Fatalf("marshal counters: %v", err)
	}
	var decoded map[string]int
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal counters: %v", err)
	}

	if _, present := decoded["room-2"]; present {
		t.Fatalf("cleared room must stay absent after a round trip: %v", decoded)
	}
	sum := 0
	for _, n := range decoded {
		sum += n
	}
	if sum != a.Total() {
		t.Fatalf("round trip changed the total: %d != %d", sum, a.Total())
	}
}
