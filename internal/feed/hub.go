// Package feed broadcasts market events to websocket subscribers: trades,
// shop lifecycle changes with rendered sign lines, and owner notices. The
// hub doubles as the registry's presentation hooks.
package feed

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"chestmarket.gg/internal/market"
	"chestmarket.gg/internal/protocol"
)

// Renderer derives the presentation payload for a shop: its sign lines and
// current status. Supplied by the host so the hub stays decoupled from the
// registry's storage resolver.
type Renderer func(s *market.Shop) (protocol.SignLines, market.ShopStatus)

type Hub struct {
	render Renderer
	log    *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.Mutex
	subs map[uint64]chan []byte
}

func NewHub(render Renderer, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(os.Stdout, "[feed] ", log.LstdFlags)
	}
	return &Hub{
		render: render,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[uint64]chan []byte{},
	}
}

// Handler upgrades the connection and streams events until the client goes
// away. A subscriber that cannot keep up has events dropped, never queued
// without bound.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id := h.nextID.Add(1)
		out := make(chan []byte, 256)

		h.mu.Lock()
		h.subs[id] = out
		h.mu.Unlock()
		defer func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		}()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-done:
					writeErr <- nil
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: drains control frames and detects disconnect.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		close(done)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Subscribers reports the current connection count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Printf("feed: marshal: %v", err)
		return
	}
	h.mu.Lock()
	for _, out := range h.subs {
		select {
		case out <- b:
		default:
			// Slow subscriber: drop rather than stall the market.
		}
	}
	h.mu.Unlock()
}

// RecordTrade implements market.StatsSink so the hub can sit in the same
// fan-out as the trade log and the sqlite index.
func (h *Hub) RecordTrade(r market.Receipt) {
	h.broadcast(r.Event())
}

// market.Hooks implementation.

func (h *Hub) OnShopCreated(s *market.Shop) { h.shopEvent(protocol.TypeShopCreated, s) }
func (h *Hub) OnShopChanged(s *market.Shop) { h.shopEvent(protocol.TypeShopChanged, s) }

func (h *Hub) OnShopRemoved(id string) {
	h.broadcast(protocol.ShopEvent{Type: protocol.TypeShopRemoved, ShopID: id})
}

func (h *Hub) Notify(ownerID, message string) {
	h.broadcast(protocol.Notice{Type: protocol.TypeNotice, OwnerID: ownerID, Message: message})
}

func (h *Hub) shopEvent(typ string, s *market.Shop) {
	ev := protocol.ShopEvent{Type: typ, ShopID: s.ID, Owner: s.OwnerName}
	if h.render != nil {
		sign, status := h.render(s)
		ev.Sign = &sign
		ev.Status = string(status)
	}
	h.broadcast(ev)
}
