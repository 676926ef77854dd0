package devserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vovakirdan/debatesync/internal/log"
	"github.com/vovakirdan/debatesync/internal/proto"
)

func connectedClient(srv *Server, userID, username string) *client {
	cl := &client{userID: userID, username: username, send: make(chan []byte, 4)}
	srv.mu.Lock()
	srv.clients[username] = cl
	srv.mu.Unlock()
	return cl
}

func mustFrame(t *testing.T, cl *client) []byte {
	t.Helper()
	select {
	case raw := <-cl.send:
		return raw
	default:
		t.Fatalf("expected a frame queued for %s", cl.username)
		return nil
	}
}

func TestCreateDebateAnnouncesToBothParties(t *testing.T) {
	srv := New("test-secret", log.Nop())
	alice := connectedClient(srv, "u-1", "alice")
	bob := connectedClient(srv, "u-2", "bob")
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/debate",
		strings.NewReader(`{"userA":"alice","userB":"bob"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp CreateDebateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.DebateRoomID, "room-") {
		t.Fatalf("unexpected room id %q", resp.DebateRoomID)
	}

	// Each side is told about the room, naming the other as the opponent.
	rawAlice := mustFrame(t, alice)
	if tag, err := proto.PeekType(rawAlice); err != nil || tag != proto.InboundTypeNewDebateCreated {
		t.Fatalf("expected new_debate_created frame, got tag=%q err=%v", tag, err)
	}
	var toAlice, toBob proto.NewDebateCreated
	if err := json.Unmarshal(rawAlice, &toAlice); err != nil {
		t.Fatalf("decode alice frame: %v", err)
	}
	if err := json.Unmarshal(mustFrame(t, bob), &toBob); err != nil {
		t.Fatalf("decode bob frame: %v", err)
	}
	if toAlice.DebateRoomID != resp.DebateRoomID || toBob.DebateRoomID != resp.DebateRoomID {
		t.Fatalf("room id mismatch: alice=%+v bob=%+v", toAlice, toBob)
	}
	if toAlice.OpponentName != "bob" || toBob.OpponentName != "alice" {
		t.Fatalf("opponent names crossed: alice saw %q, bob saw %q",
			toAlice.OpponentName, toBob.OpponentName)
	}
}

func TestCreateDebateRoomIDsAreUnique(t *testing.T) {
	srv := New("test-secret", log.Nop())
	alice := connectedClient(srv, "u-1", "alice")
	bob := connectedClient(srv, "u-2", "bob")
	router := srv.Router()

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/debate",
			strings.NewReader(`{"userA":"alice","userB":"bob"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp CreateDebateResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if seen[resp.DebateRoomID] {
			t.Fatalf("room id %q minted twice", resp.DebateRoomID)
		}
		seen[resp.DebateRoomID] = true
		mustFrame(t, alice)
		mustFrame(t, bob)
	}
}

func TestCreateDebateRejectsBadRequests(t *testing.T) {
	srv := New("test-secret", log.Nop())
	connectedClient(srv, "u-1", "alice")
	router := srv.Router()

	cases := []struct {
		name string
		body string
		code int
	}{
		{"missing user", `{"userA":"alice"}`, http.StatusBadRequest},
		{"same user twice", `{"userA":"alice","userB":"alice"}`, http.StatusBadRequest},
		{"opponent not connected", `{"userA":"alice","userB":"ghost"}`, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/debate", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, w.Code, w.Body.String())
			}
		})
	}
}
