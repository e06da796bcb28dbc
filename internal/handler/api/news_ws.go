package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	xhttp "ForexPulse/pkg/http"
	xlogger "ForexPulse/pkg/logger"
	"ForexPulse/pkg/util"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsBatchLimit = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// NewsStream upgrades to a websocket and pushes every news item stored after
// the last one sent. The cursor starts at ?since= when given, else at connect time.
func (h *Handler) NewsStream(c echo.Context) error {
	since := time.Now().UTC()
	if raw := c.QueryParam("since"); raw != "" {
		t, ok := util.ParseTime(raw)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("since", "since is not a valid time: %q", raw))
		}
		since = t
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(h.pushPoll)
	defer poll.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	push := func() bool {
		items, err := h.q.NewsInsertedSince(ctx, since, wsBatchLimit)
		if err != nil {
			h.logger.Warn("ws news poll failed", xlogger.Error(err))
			return true
		}
		for _, item := range items {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(item); err != nil {
				return false
			}
			if item.CreatedAt.After(since) {
				since = item.CreatedAt
			}
		}
		return true
	}

	if !push() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return nil
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-poll.C:
			if !push() {
				return nil
			}
		}
	}
}
