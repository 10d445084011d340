package endpoints

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vakit/internal/http/api"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/api/packets"
)

const (
	defaultRecent = 50
	streamBuffer  = 32
	writeWait     = 10 * time.Second
	pingPeriod    = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type EventsController struct {
	history EventHistory
	stream  EventStream
}

// EventsModule mounts GET /events/recent and the GET /events/ws stream.
func EventsModule(history EventHistory, stream EventStream) api.Module {
	ctl := &EventsController{history: history, stream: stream}
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_GET("/events/recent", ctl.recent)
		c.RAW(http.MethodGet, "/events/ws", ctl.streamEvents, false)
	})
}

// GET /api/events/recent?limit=N
func (e *EventsController) recent(ctx *gin.Context) (any, *api.Error) {
	limit := defaultRecent
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, api.BadRequest("invalid limit")
		}
		limit = n
	}
	evs, err := e.history.Recent(ctx.Request.Context(), limit)
	if err != nil {
		return nil, api.Internal(err.Error())
	}
	return packets.EventsResponse{Events: evs}, nil
}

// GET /api/events/ws
func (e *EventsController) streamEvents(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, cancel := e.stream.Stream(streamBuffer)
	defer cancel()

	// the client never sends anything; reading detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Debug().Str("client", ctx.ClientIP()).Msg("event stream connected")
	defer log.Debug().Str("client", ctx.ClientIP()).Msg("event stream disconnected")

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ctx.Request.Context().Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
