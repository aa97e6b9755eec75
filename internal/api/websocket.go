package api

import (
	"context"
	"net/http"
	"time"

	"market-gateway/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamBuffer = 16
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocket streams enabled-pair rate snapshots to the client until it disconnects.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warn("ws upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"code":"Unavailable","message":"bus not ready"}`))
		return
	}

	stream, unsub := s.Bus.Subscribe(events.EventRateSnapshot, streamBuffer)
	defer unsub()
	if s.Metrics != nil {
		s.Metrics.StreamClientConnected(1)
		defer s.Metrics.StreamClientConnected(-1)
	}

	// Reader loop only detects the close; clients send nothing meaningful.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-stream:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				s.Logger.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}
}

// RunRateBroadcast publishes an enabled-pair rate snapshot every interval while anyone is listening.
// It blocks until ctx is done.
func (s *Server) RunRateBroadcast(ctx context.Context, interval time.Duration) {
	if s.Bus == nil || s.Snapshot == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.Bus.Subscribers(events.EventRateSnapshot) == 0 {
			continue
		}
		out, err := s.Snapshot.Rates(ctx)
		if err != nil {
			s.Logger.Warn("rate snapshot failed", zap.Error(err))
			continue
		}
		s.Bus.Publish(events.EventRateSnapshot, events.RateSnapshot{At: time.Now().UTC(), Rates: out})
	}
}
