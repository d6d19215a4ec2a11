package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"efrog/internal/judge/model"
	"efrog/internal/judge/realtime"
	"efrog/pkg/utils/logger"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// pingPeriod doubles as the drain wait slice so idle connections
	// get pinged between partial results.
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RealtimeController serves the per-submission live-result channel.
type RealtimeController struct {
	hub *realtime.Hub
}

// NewRealtimeController creates a new controller.
func NewRealtimeController(hub *realtime.Hub) *RealtimeController {
	return &RealtimeController{hub: hub}
}

// Attach upgrades to a websocket and streams the submission's result
// messages. A session allows one subscriber; reconnecting replays the
// backlog from the start.
func (h *RealtimeController) Attach(c *gin.Context) {
	submissionID := c.Param("id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	session, ok := h.hub.Get(submissionID)
	if !ok {
		h.sendNotice(conn, http.StatusNotFound, "there is no active testing for this submission")
		return
	}
	if !session.Attach() {
		h.sendNotice(conn, http.StatusConflict, "somebody is already subscribed to this testing")
		return
	}
	defer func() {
		session.Detach()
		h.hub.Reap(submissionID)
	}()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Read pump. The client never sends data; this only notices pongs
	// and disconnects.
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.stream(ctx, conn, session); err != nil {
		logger.Warn(ctx, "realtime stream closed",
			zap.String("submission_id", submissionID),
			zap.Error(err))
	}
}

func (h *RealtimeController) stream(ctx context.Context, conn *websocket.Conn, session *realtime.Session) error {
	offset := 0
	for {
		var messages []string
		messages, offset = session.Drain(offset)
		for _, message := range messages {
			if err := writeText(conn, message); err != nil {
				return err
			}
		}
		if session.Finished() {
			// Confirm there is nothing appended between the drain and
			// the finish flag before closing.
			if remaining, next := session.Drain(offset); len(remaining) > 0 {
				offset = next
				for _, message := range remaining {
					if err := writeText(conn, message); err != nil {
						return err
					}
				}
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			return conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}

		waitCtx, cancel := context.WithTimeout(ctx, pingPeriod)
		err := session.Wait(waitCtx)
		cancel()
		if err == nil {
			continue
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
			continue
		}
		return err
	}
}

func (h *RealtimeController) sendNotice(conn *websocket.Conn, status int, message string) {
	_ = writeText(conn, model.NewNoticeMessage(status, message))
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""))
}

func writeText(conn *websocket.Conn, message string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, []byte(message))
}
