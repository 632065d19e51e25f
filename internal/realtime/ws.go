package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

const (
	FrameHello      = "hello"
	FrameInvalidate = "invalidate"
)

// Frame is what the server pushes over the websocket. An invalidate frame
// summarises a debounced burst; clients re-fetch slots when they see one.
type Frame struct {
	Type           string      `json:"type"`
	Rooms          []string    `json:"rooms,omitempty"`
	Events         []EventType `json:"events,omitempty"`
	AppointmentIDs []uuid.UUID `json:"appointment_ids,omitempty"`
	Count          int         `json:"count,omitempty"`
	SentAt         time.Time   `json:"sent_at"`
}

type WSHandler struct {
	hub      *Hub
	debounce time.Duration
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, debounce time.Duration, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		hub:      hub,
		debounce: debounce,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeRooms upgrades the request and streams invalidations for rooms until
// the peer goes away. Room authorization is the caller's job.
func (h *WSHandler) ServeRooms(w http.ResponseWriter, r *http.Request, rooms []string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	sub := h.hub.Subscribe(rooms...)
	defer sub.Close()

	h.logger.Debug("realtime subscriber connected", "rooms", rooms)

	done := make(chan struct{})
	go readPump(conn, done)
	h.writePump(conn, sub, done)
}

func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, sub *Subscription, done <-chan struct{}) {
	flush := make(chan struct{}, 1)
	deb := NewDebouncer(h.debounce, func() {
		select {
		case flush <- struct{}{}:
		default:
		}
	})
	defer deb.Stop()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := writeFrame(conn, Frame{Type: FrameHello, Rooms: sub.Rooms(), SentAt: time.Now().UTC()}); err != nil {
		return
	}

	var batch burst
	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			batch.add(ev)
			deb.Trigger()
		case <-flush:
			if batch.count == 0 {
				continue
			}
			frame := batch.frame(sub.Rooms())
			batch = burst{}
			if err := writeFrame(conn, frame); err != nil {
				h.logger.Debug("realtime write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// burst accumulates the events coalesced into one invalidate frame.
type burst struct {
	count   int
	types   []EventType
	appts   []uuid.UUID
	seenTyp map[EventType]struct{}
	seenApp map[uuid.UUID]struct{}
}

func (b *burst) add(ev Event) {
	if b.seenTyp == nil {
		b.seenTyp = make(map[EventType]struct{})
		b.seenApp = make(map[uuid.UUID]struct{})
	}
	b.count++
	if _, ok := b.seenTyp[ev.Type]; !ok {
		b.seenTyp[ev.Type] = struct{}{}
		b.types = append(b.types, ev.Type)
	}
	if ev.AppointmentID != nil {
		if _, ok := b.seenApp[*ev.AppointmentID]; !ok {
			b.seenApp[*ev.AppointmentID] = struct{}{}
			b.appts = append(b.appts, *ev.AppointmentID)
		}
	}
}

func (b *burst) frame(rooms []string) Frame {
	return Frame{
		Type:           FrameInvalidate,
		Rooms:          rooms,
		Events:         b.types,
		AppointmentIDs: b.appts,
		Count:          b.count,
		SentAt:         time.Now().UTC(),
	}
}
