package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/service"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	handleTimeout  = 5 * time.Second
)

// clientIDCounter hands out increasing ids so broadcasts can be ordered.
var clientIDCounter atomic.Uint64

// LocationRelay handles the inbound events that touch venues.
type LocationRelay interface {
	JoinStadium(ctx context.Context, stadiumID string) (*domain.Stadium, error)
	UpdateLocation(ctx context.Context, userID string, in service.LocationUpdate, senderID uint64) (*domain.UserLocation, error)
	CheckIn(ctx context.Context, userID, eventID string) (*domain.CheckInNotice, bool, error)
}

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type stadiumPayload struct {
	StadiumID string `json:"stadiumId"`
}

type locationPayload struct {
	StadiumID string  `json:"stadiumId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

type checkInPayload struct {
	EventID string `json:"eventId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	id      uint64
	user    domain.User
	hub     *Hub
	relay   LocationRelay
	conn    *websocket.Conn
	send    chan Message
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
	log     zerolog.Logger
}

func NewClient(hub *Hub, relay LocationRelay, conn *websocket.Conn, user domain.User) *Client {
	id := clientIDCounter.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.ContextWithUserID(ctx, user.ID)

	return &Client{
		id:      id,
		user:    user,
		hub:     hub,
		relay:   relay,
		conn:    conn,
		send:    make(chan Message, hub.opts.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(hub.opts.MessagesPerSec), hub.opts.MessageBurst),
		ctx:     ctx,
		cancel:  cancel,
		log:     logging.With().Uint64("client_id", id).Str("user_id", user.ID).Logger(),
	}
}

func (c *Client) ID() uint64 {
	return c.id
}

// defaultRooms are joined on registration.
func (c *Client) defaultRooms() []string {
	rooms := []string{domain.UserRoom(c.user.ID)}
	if c.user.IsAdmin() {
		rooms = append(rooms, domain.AdminsRoom)
	}
	return rooms
}

// readPump reads frames until the connection fails, then unregisters.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.hub.detach(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Error().Err(err).Msg("unexpected websocket close error")
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(domain.EventError, errorPayload{Message: "malformed message"})
			continue
		}
		metrics.WSMessages.WithLabelValues("in", messageLabel(msg.Type)).Inc()

		if !c.limiter.Allow() {
			c.reply(domain.EventError, errorPayload{Message: "rate limit exceeded"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg inbound) {
	ctx, cancel := context.WithTimeout(c.ctx, handleTimeout)
	defer cancel()

	switch msg.Type {
	case domain.EventPing:
		c.reply(domain.EventPong, nil)

	case domain.EventJoinStadium:
		var p stadiumPayload
		if err := decodePayload(msg.Data, &p); err != nil {
			c.fail(msg.Type, err)
			return
		}
		stadium, err := c.relay.JoinStadium(ctx, p.StadiumID)
		if err != nil {
			c.fail(msg.Type, err)
			return
		}
		c.hub.join(c, domain.StadiumRoom(stadium.ID))
		c.reply(domain.EventStadiumJoined, stadium)

	case domain.EventLeaveStadium:
		var p stadiumPayload
		if err := decodePayload(msg.Data, &p); err != nil || p.StadiumID == "" {
			c.fail(msg.Type, service.ErrInvalidInput)
			return
		}
		c.hub.leave(c, domain.StadiumRoom(p.StadiumID))

	case domain.EventLocationUpdate:
		var p locationPayload
		if err := decodePayload(msg.Data, &p); err != nil {
			c.fail(msg.Type, err)
			return
		}
		_, err := c.relay.UpdateLocation(ctx, c.user.ID, service.LocationUpdate{
			StadiumID: p.StadiumID,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Accuracy:  p.Accuracy,
		}, c.id)
		if err != nil {
			c.fail(msg.Type, err)
		}

	case domain.EventCheckIn:
		var p checkInPayload
		if err := decodePayload(msg.Data, &p); err != nil {
			c.fail(msg.Type, err)
			return
		}
		if _, _, err := c.relay.CheckIn(ctx, c.user.ID, p.EventID); err != nil {
			c.fail(msg.Type, err)
		}

	default:
		c.reply(domain.EventError, errorPayload{Message: "unknown event type: " + msg.Type})
	}
}

func decodePayload(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return service.ErrInvalidInput
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return service.ErrInvalidInput
	}
	return nil
}

// fail reports err to the client without leaking internals.
func (c *Client) fail(event string, err error) {
	msg := "internal error"
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		msg = err.Error()
	case errors.Is(err, domain.ErrNotFound):
		msg = "not found"
	default:
		c.log.Error().Err(err).Str("event", event).Msg("websocket event failed")
	}
	c.reply(domain.EventError, errorPayload{Message: msg})
}

func (c *Client) reply(msgType string, data any) {
	c.hub.sendTo(c, msgType, data)
}

// writePump drains send to the connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// the hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(message)
			if err != nil {
				c.log.Error().Err(err).Str("type", message.Type).Msg("failed to encode message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// messageLabel keeps the metric label set bounded.
func messageLabel(t string) string {
	switch t {
	case domain.EventPing, domain.EventJoinStadium, domain.EventLeaveStadium,
		domain.EventLocationUpdate, domain.EventCheckIn:
		return t
	}
	return "unknown"
}
