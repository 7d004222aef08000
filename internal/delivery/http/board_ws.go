package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/vogiaan1904/farm-waitlist/internal/delivery"
	"github.com/vogiaan1904/farm-waitlist/internal/service"
	resp "github.com/vogiaan1904/farm-waitlist/pkg/response"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// BoardWebSocket streams the open board of a riding type. The first frame is
// the current board; each later frame is the change that happened plus the
// board re-read after it.
func (h *Handler) BoardWebSocket(c *gin.Context) {
	caller := callerFrom(c)
	rtID := c.Param("id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.l.Warnf(c.Request.Context(), "delivery.http.BoardWebSocket: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	upds := make(chan *service.BoardStreamUpdate, 10)
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.svc.StreamBoard(ctx, caller, rtID, upds)
	}()

	// Clients never send data frames; reading only tracks pongs and close.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-errCh:
			if err != nil && ctx.Err() == nil {
				h.closeWithError(ctx, conn, err)
			}
			return

		case upd := <-upds:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(upd); err != nil {
				h.l.Warnf(ctx, "delivery.http.BoardWebSocket: %v", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeWithError sends the error body as a final frame, then a close frame.
func (h *Handler) closeWithError(ctx context.Context, conn *websocket.Conn, err error) {
	if _, ok := delivery.LookupError(err); !ok {
		h.l.Errorf(ctx, "delivery.http.BoardWebSocket: %v", err)
	}
	_, body := resp.ParseHTTPError(delivery.HTTPError(err))

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteJSON(body)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, body.ErrorCode))
}
