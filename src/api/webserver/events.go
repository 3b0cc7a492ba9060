package webserver

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/stake-plus/base-buddies/src/bus"
)

const (
	eventBuffer = 32
	pingEvery   = 30 * time.Second
	writeWait   = 10 * time.Second
)

// EventStream pushes bus events to websocket clients.
type EventStream struct {
	events   Events
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewEventStream(events Events, origins []string, log *zap.Logger) EventStream {
	return EventStream{
		events: events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return o == "" || slices.Contains(origins, "*") || slices.Contains(origins, o)
			},
		},
		log: log.Named("events"),
	}
}

func (s EventStream) Stream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := make(chan bus.Event, eventBuffer)
	cancel := s.events.Subscribe(func(ev bus.Event) {
		select {
		case ch <- ev:
		default:
			s.log.Warn("slow websocket client, event dropped", zap.Uint64("id", ev.ChallengeID))
		}
	})
	defer cancel()

	// The read side only watches for the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		case ev := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
