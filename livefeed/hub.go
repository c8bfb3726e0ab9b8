package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"papeleria/globals"
	"papeleria/models"
	"papeleria/mq"
	"papeleria/utils"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
)

// AdminRoom receives every order event; customers only get their own.
const AdminRoom = "admin"

func UserRoom(userID string) string { return "user:" + userID }

type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	Room   string
	UserID string
}

type broadcastMsg struct {
	Room string
	Data []byte
}

type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	quit       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 64),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.Room] == nil {
				h.rooms[c.Room] = make(map[*Client]bool)
			}
			h.rooms[c.Room][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			for c := range h.rooms[m.Room] {
				select {
				case c.Send <- m.Data:
				default:
					// slow consumer
					h.drop(c)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for _, conns := range h.rooms {
				for c := range conns {
					h.drop(c)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	conns := h.rooms[c.Room]
	if conns == nil || !conns[c] {
		return
	}
	delete(conns, c)
	close(c.Send)
	if len(conns) == 0 {
		delete(h.rooms, c.Room)
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Register adds c to its room. It reports false once the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case <-h.quit:
		return false
	default:
	}
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Publish queues data for every client in room.
func (h *Hub) Publish(room string, data []byte) {
	select {
	case h.broadcast <- broadcastMsg{Room: room, Data: data}:
	case <-h.quit:
	}
}

// Dispatch fans an order event out to the admin room and the owner's room.
func (h *Hub) Dispatch(ev models.OrderEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		globals.Log.Warn().Err(err).Msg("marshal order event")
		return
	}
	h.Publish(AdminRoom, data)
	if ev.UserID != "" {
		h.Publish(UserRoom(ev.UserID), data)
	}
}

// Relay feeds Redis order events into the hub until ctx ends.
func Relay(ctx context.Context, rdb *redis.Client, h *Hub) {
	mq.Subscribe(ctx, rdb, h.Dispatch)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler upgrades an authenticated request. Admins join AdminRoom, everyone
// else follows their own orders.
func (h *Hub) Handler() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id, ok := utils.IdentityFromRequest(r)
		if !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		room := UserRoom(id.UserID)
		if id.IsAdmin {
			room = AdminRoom
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			globals.Log.Warn().Err(err).Msg("websocket upgrade")
			return
		}
		client := &Client{
			Conn:   conn,
			Send:   make(chan []byte, 32),
			Room:   room,
			UserID: id.UserID,
		}
		if !h.Register(client) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			conn.Close()
			return
		}
		go writePump(client)
		go readPump(client, h)
	}
}

func writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for the peer going away; the feed is one-way.
func readPump(c *Client, h *Hub) {
	defer func() {
		h.Unregister(c)
		c.Conn.Close()
	}()
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
