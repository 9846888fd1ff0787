// Package realtime relays fan locations, check-ins and order updates to
// WebSocket clients grouped in rooms.
package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/metrics"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// delivery is a message bound for a room, or for a single client when target is set.
type delivery struct {
	room    string
	target  *Client
	exclude uint64
	msg     Message
}

type membership struct {
	client *Client
	room   string
	join   bool
}

type Options struct {
	SendBuffer     int
	MessagesPerSec float64
	MessageBurst   int
	AllowedOrigins []string
}

// Hub owns client registration and room membership. Only the Run loop
// writes to or closes a client's send channel.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	deliveries chan delivery
	membership chan membership
	Register   chan *Client
	Unregister chan *Client
	opts       Options
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

func NewHub(opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.MessagesPerSec <= 0 {
		opts.MessagesPerSec = 5
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = 10
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		deliveries: make(chan delivery, 1024),
		membership: make(chan membership, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		opts:       opts,
		done:       make(chan struct{}),
	}
}

// RunWithContext processes lifecycle events and deliveries until ctx ends,
// then closes every client.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			n := h.GetClientCount()
			h.stopOnce.Do(func() { close(h.done) })
			h.closeAllClients()
			logging.Info().Str("component", "websocket-hub").Int("clients_closed", n).Msg("websocket hub stopped")
			return ctx.Err()
		default:
		}

		// lifecycle first so joins are applied before later deliveries
		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		case m := <-h.membership:
			h.applyMembership(m)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			continue
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case m := <-h.membership:
			h.applyMembership(m)
		case d := <-h.deliveries:
			h.drainMembership()
			h.deliver(d)
		}
	}
}

// drainMembership applies joins queued before a delivery that won the select.
func (h *Hub) drainMembership() {
	for {
		select {
		case m := <-h.membership:
			h.applyMembership(m)
		default:
			return
		}
	}
}

// Serve lets the hub run under a suture supervisor.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	for _, room := range c.defaultRooms() {
		h.addToRoom(c, room)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Uint64("client_id", c.id).Str("user_id", c.user.ID).Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	total := len(h.clients)
	h.mu.Unlock()

	if removed {
		metrics.WSConnections.Set(float64(total))
		logging.Info().Uint64("client_id", c.id).Int("total_clients", total).Msg("websocket client disconnected")
	}
}

// removeLocked drops c from every room and closes its send channel.
func (h *Hub) removeLocked(c *Client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	for room, members := range h.rooms {
		if members[c] {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(c.send)
	return true
}

func (h *Hub) addToRoom(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[c] = true
}

func (h *Hub) applyMembership(m membership) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[m.client] {
		return
	}
	if m.join {
		h.addToRoom(m.client, m.room)
		return
	}
	if members, ok := h.rooms[m.room]; ok {
		delete(members, m.client)
		if len(members) == 0 {
			delete(h.rooms, m.room)
		}
	}
}

func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var targets []*Client
	if d.target != nil {
		if h.clients[d.target] {
			targets = []*Client{d.target}
		}
	} else {
		for c := range h.rooms[d.room] {
			if c.id != d.exclude {
				targets = append(targets, c)
			}
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })
	}

	for _, c := range targets {
		select {
		case c.send <- d.msg:
			metrics.WSMessages.WithLabelValues("out", d.msg.Type).Inc()
		default:
			// slow consumer
			h.removeLocked(c)
			metrics.WSDropped.Inc()
			logging.Warn().Uint64("client_id", c.id).Str("user_id", c.user.ID).Msg("send buffer full, dropping websocket client")
		}
	}
	metrics.WSConnections.Set(float64(len(h.clients)))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, c := range clients {
		h.removeLocked(c)
	}
	metrics.WSConnections.Set(0)
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.deliveries <- d:
	default:
		logging.Warn().Str("room", d.room).Str("message_type", d.msg.Type).Msg("delivery channel full, dropping message")
	}
}

// BroadcastToRoom sends to every member of room except excludeClientID.
func (h *Hub) BroadcastToRoom(room, msgType string, data any, excludeClientID uint64) {
	h.enqueue(delivery{room: room, exclude: excludeClientID, msg: Message{Type: msgType, Data: data}})
}

// SendToUser reaches every open connection of the user.
func (h *Hub) SendToUser(userID, msgType string, data any) {
	h.BroadcastToRoom(domain.UserRoom(userID), msgType, data, 0)
}

func (h *Hub) sendTo(c *Client, msgType string, data any) {
	h.enqueue(delivery{target: c, msg: Message{Type: msgType, Data: data}})
}

// attach hands a new client to the hub, false once the hub has stopped.
func (h *Hub) attach(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) join(c *Client, room string) {
	select {
	case h.membership <- membership{client: c, room: room, join: true}:
	case <-h.done:
	}
}

func (h *Hub) leave(c *Client, room string) {
	select {
	case h.membership <- membership{client: c, room: room}:
	case <-h.done:
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize reports how many clients are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
