package statusfeed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/updatewatch/agent/internal/updates"
)

func TestSnapshotEndpointServesLatest(t *testing.T) {
	feed := New()
	feed.Publish(updates.Snapshot{Count: 3, SecurityCount: 1, Message: "You have 3 updates (1 security)"})

	srv := httptest.NewServer(feed.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/updates/snapshot")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var snap updates.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if snap.Count != 3 || snap.SecurityCount != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestFeedPushesOnPublish(t *testing.T) {
	feed := New()
	feed.Publish(updates.Snapshot{Count: 1})

	srv := httptest.NewServer(feed.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/updates/feed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// subscribers get the current snapshot on connect
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first Message
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if first.Type != TypeSnapshot || first.Snapshot == nil || first.Snapshot.Count != 1 {
		t.Fatalf("unexpected initial message %+v", first)
	}

	feed.Publish(updates.Snapshot{Count: 5, ImportantCount: 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pushed Message
	if err := conn.ReadJSON(&pushed); err != nil {
		t.Fatalf("read pushed snapshot: %v", err)
	}
	if pushed.Snapshot == nil || pushed.Snapshot.Count != 5 || pushed.Snapshot.ImportantCount != 2 {
		t.Fatalf("unexpected pushed message %+v", pushed)
	}
}

func TestFeedPushesEventMessages(t *testing.T) {
	feed := New()
	srv := httptest.NewServer(feed.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/updates/feed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var initial Message
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}

	feed.PublishEula(updates.EulaRequest{EulaID: "E1", Vendor: "acme"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read eula message: %v", err)
	}
	if msg.Type != TypeEulaRequired || msg.Eula == nil || msg.Eula.EulaID != "E1" {
		t.Fatalf("unexpected eula message %+v", msg)
	}
}
