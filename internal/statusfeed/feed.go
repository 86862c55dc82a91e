// Package statusfeed exposes the aggregate update state to local consumers:
// a JSON snapshot endpoint plus a WebSocket feed that pushes a fresh snapshot
// on every aggregate change.
package statusfeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/updatewatch/agent/internal/logging"
	"github.com/updatewatch/agent/internal/updates"
)

var log = logging.L("statusfeed")

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// loopback-only service, no cross-origin concerns
	CheckOrigin: func(*http.Request) bool { return true },
}

// Message is the envelope pushed to feed subscribers.
type Message struct {
	Type          string                       `json:"type"`
	Snapshot      *updates.Snapshot            `json:"snapshot,omitempty"`
	Eula          *updates.EulaRequest         `json:"eula,omitempty"`
	Detail        *updates.Detail              `json:"detail,omitempty"`
	RepoSignature *updates.RepoSignaturePrompt `json:"repoSignature,omitempty"`
}

// Message types.
const (
	TypeSnapshot         = "snapshot"
	TypeCheckFinished    = "check-finished"
	TypeUpdatesInstalled = "updates-installed"
	TypeEulaRequired     = "eula-required"
	TypeUpdateDetail     = "update-detail"
	TypeRepoSigRequired  = "repo-signature-required"
)

// Feed broadcasts snapshots and events to subscribed WebSocket clients and
// serves the latest snapshot over plain HTTP. Publishing methods may be
// called from any goroutine.
type Feed struct {
	mu      sync.RWMutex
	latest  updates.Snapshot
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func New() *Feed {
	return &Feed{clients: make(map[*client]struct{})}
}

// Publish stores the snapshot and pushes it to every subscriber.
func (f *Feed) Publish(snap updates.Snapshot) {
	f.mu.Lock()
	f.latest = snap
	f.mu.Unlock()
	f.broadcast(Message{Type: TypeSnapshot, Snapshot: &snap})
}

// PublishEvent pushes a bare event notification (check finished, updates
// installed).
func (f *Feed) PublishEvent(eventType string) {
	f.broadcast(Message{Type: eventType})
}

// PublishEula surfaces the license agreement currently blocking an install.
func (f *Feed) PublishEula(req updates.EulaRequest) {
	f.broadcast(Message{Type: TypeEulaRequired, Eula: &req})
}

// PublishDetail delivers a changelog fetched via GetUpdateDetails.
func (f *Feed) PublishDetail(d updates.Detail) {
	f.broadcast(Message{Type: TypeUpdateDetail, Detail: &d})
}

// PublishRepoSignature surfaces a repository key prompt.
func (f *Feed) PublishRepoSignature(p updates.RepoSignaturePrompt) {
	f.broadcast(Message{Type: TypeRepoSigRequired, RepoSignature: &p})
}

// broadcast pushes one message to every subscriber. Subscribers that cannot
// keep up are dropped rather than blocking the publisher.
func (f *Feed) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("feed message marshal failed", logging.KeyError, err)
		return
	}

	f.mu.Lock()
	for c := range f.clients {
		select {
		case c.send <- data:
		default:
			log.Warn("dropping slow feed subscriber")
			delete(f.clients, c)
			close(c.send)
		}
	}
	f.mu.Unlock()
}

// Handler returns the feed's HTTP routes.
func (f *Feed) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/updates/snapshot", f.handleSnapshot)
	mux.HandleFunc("GET /v1/updates/feed", f.handleFeed)
	return mux
}

func (f *Feed) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	f.mu.RLock()
	snap := f.latest
	f.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.Debug("snapshot write failed", logging.KeyError, err)
	}
}

func (f *Feed) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("feed upgrade failed", logging.KeyError, err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}

	f.mu.Lock()
	f.clients[c] = struct{}{}
	snap := f.latest
	f.mu.Unlock()
	if initial, err := json.Marshal(Message{Type: TypeSnapshot, Snapshot: &snap}); err == nil {
		c.send <- initial
	}

	go f.writeLoop(c)
	go f.readLoop(c)
}

func (f *Feed) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			f.drop(c)
			return
		}
	}
	// send channel closed by Publish after the client fell behind
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"))
}

// readLoop discards inbound messages and notices disconnects.
func (f *Feed) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			f.drop(c)
			return
		}
	}
}

func (f *Feed) drop(c *client) {
	f.mu.Lock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
	f.mu.Unlock()
}
