package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	maxReadSize = 4 << 10

	defaultPushInterval = time.Second
	minPushInterval     = 10 * time.Millisecond
	maxPushInterval     = 10 * time.Second

	wsTypeState  = "state"
	wsTypeSeries = "series"
)

// wsEnvelope frames every pushed message. "state" carries models.OvenState,
// "series" carries models.RunSeries.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Clients authenticate with a bearer token, so the origin is not checked.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveFeed pushes oven state and the run series to one websocket client.
type liveFeed struct {
	h        *Handler
	conn     *websocket.Conn
	interval time.Duration
}

// @Summary      Live oven feed
// @Description  Pushes a "state" and a "series" envelope every interval until the client disconnects.
// @Tags         oven
// @Security     BearerAuth
// @Param        interval      query  string  false  "Push period as a Go duration, e.g. 500ms"
// @Param        interval_ms   query  int     false  "Push period in milliseconds"
// @Param        access_token  query  string  false  "Bearer token when headers cannot be set"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := pushInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	feed := &liveFeed{h: h, conn: conn, interval: interval}
	feed.run(c.Request.Context())
}

// pushInterval reads ?interval=500ms, then ?interval_ms=500. Values outside
// the allowed range fall back to the default.
func pushInterval(c *gin.Context) time.Duration {
	candidates := make([]time.Duration, 0, 2)
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			candidates = append(candidates, d)
		}
	}
	if s := c.Query("interval_ms"); s != "" {
		if ms, err := strconv.Atoi(s); err == nil {
			candidates = append(candidates, time.Duration(ms)*time.Millisecond)
		}
	}
	for _, d := range candidates {
		if d >= minPushInterval && d <= maxPushInterval {
			return d
		}
	}
	return defaultPushInterval
}

func (f *liveFeed) run(ctx context.Context) {
	f.conn.SetReadLimit(maxReadSize)
	_ = f.conn.SetReadDeadline(time.Now().Add(pongWait))
	f.conn.SetPongHandler(func(string) error {
		return f.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	gone := make(chan struct{})
	go f.drain(gone)

	if err := f.push(ctx); err != nil {
		f.logInfo("ws_initial_push_failed", err)
		return
	}

	push := time.NewTicker(f.interval)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := f.write(websocket.PingMessage, nil); err != nil {
				f.logInfo("ws_ping_failed", err)
				return
			}
		case <-push.C:
			if err := f.push(ctx); err != nil {
				f.logInfo("ws_push_failed", err)
				return
			}
		}
	}
}

// drain reads until the client goes away so control frames are processed.
func (f *liveFeed) drain(gone chan<- struct{}) {
	defer close(gone)
	for {
		if _, _, err := f.conn.ReadMessage(); err != nil {
			f.logInfo("ws_client_gone", err)
			return
		}
	}
}

// push sends the state, then the series. A state failure ends the feed; a
// series failure is reported in-band.
func (f *liveFeed) push(ctx context.Context) error {
	mon := f.h.services.Monitoring

	st, err := mon.GetState(ctx)
	if err != nil {
		if f.h.log != nil {
			f.h.log.Errorw("ws_get_state_failed", "err", err)
		}
		return err
	}
	if err := f.write(websocket.TextMessage, wsEnvelope{Type: wsTypeState, Data: st}); err != nil {
		return err
	}

	series, err := mon.GetSeries(ctx)
	if err != nil {
		if f.h.log != nil {
			f.h.log.Warnw("ws_get_series_failed", "err", err)
		}
		return f.write(websocket.TextMessage, wsEnvelope{Type: wsTypeSeries, Error: errGetSeries})
	}
	return f.write(websocket.TextMessage, wsEnvelope{Type: wsTypeSeries, Data: series})
}

// write sends a JSON text frame or a control frame under a write deadline.
func (f *liveFeed) write(kind int, v interface{}) error {
	_ = f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if kind == websocket.TextMessage {
		return f.conn.WriteJSON(v)
	}
	return f.conn.WriteMessage(kind, nil)
}

func (f *liveFeed) logInfo(msg string, err error) {
	if f.h.log != nil {
		f.h.log.Infow(msg, "err", err)
	}
}
