package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/clubpulse/activity-monitor/middleware"
	"github.com/clubpulse/activity-monitor/services/realtime"
	"github.com/clubpulse/activity-monitor/utils"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// Subscriber hands out realtime subscriptions
type Subscriber interface {
	Subscribe() (*realtime.Subscription, error)
}

// RealtimeHandler streams hub events to dashboard clients over a websocket
type RealtimeHandler struct {
	hub            Subscriber
	originPatterns []string
	writeTimeout   time.Duration
	logger         *zap.Logger
}

// NewRealtimeHandler creates a new RealtimeHandler. allowedOrigins uses the CORS format
// (scheme://host[:port], wildcards allowed in the host).
func NewRealtimeHandler(hub Subscriber, allowedOrigins []string, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub:            hub,
		originPatterns: originPatterns(allowedOrigins),
		writeTimeout:   10 * time.Second,
		logger:         logger,
	}
}

// HandleSubscribe handles GET /api/v1/realtime
func (h *RealtimeHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	sub, err := h.hub.Subscribe()
	if err != nil {
		_ = utils.WriteError(w, http.StatusServiceUnavailable, "Realtime channel unavailable", nil)
		return
	}
	defer sub.Close()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead handles control frames and cancels ctx on disconnect.
	ctx := conn.CloseRead(r.Context())

	h.logger.Debug("realtime subscriber connected", zap.String("request_id", requestID))

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := h.write(ctx, conn, event); err != nil {
				h.logger.Debug("realtime write failed", zap.String("request_id", requestID), zap.Error(err))
				return
			}
		}
	}
}

func (h *RealtimeHandler) write(ctx context.Context, conn *websocket.Conn, event realtime.Event) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, event)
}

// originPatterns converts CORS origins to the host patterns websocket.Accept matches against
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if _, host, ok := strings.Cut(origin, "://"); ok {
			origin = host
		}
		patterns = append(patterns, strings.TrimSuffix(origin, "/"))
	}
	return patterns
}
