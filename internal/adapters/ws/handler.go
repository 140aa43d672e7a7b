package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/devcollab/server/internal/auth"
	"github.com/devcollab/server/internal/collab"
	"github.com/devcollab/server/internal/domain"
	"github.com/devcollab/server/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	Verifier   *auth.Verifier
	Hub        *collab.Hub
	Met        *metrics.Metrics
	JoinLimit  *JoinRateLimiter
	ReadLimit  int64
	PingPeriod time.Duration
}

// bearerToken pulls the handshake credential from the token query
// parameter or the Authorization header. It is never read from an event
// payload.
func bearerToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	h := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return after
	}
	return ""
}

// Handle is the gatekeeper plus upgrade. A bad credential is refused
// with a generic error before any handler attaches: no pumps, no
// registration, no state.
func (h *Handler) Handle(ctx context.Context, c *gin.Context) {
	identity, err := h.Verifier.Verify(bearerToken(c))
	if err != nil {
		h.Met.HandshakesRejected.Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication error"})
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}

	conn := newConn(domain.ConnectionID(uuid.NewString()), identity, sock)
	h.Met.ConnectionsAccepted.Inc()
	h.Hub.Register(conn)
	log.Info().Str("module", "adapters.ws").Str("conn", string(conn.ID())).Str("user", string(identity.UserID)).Msg("connection accepted")

	ctx, cancel := context.WithCancel(ctx)
	// Closing the socket on cancellation unblocks the read pump, so a
	// server shutdown does not wait on idle clients.
	context.AfterFunc(ctx, conn.Close)
	go h.writePump(ctx, cancel, conn)
	go h.readPump(ctx, cancel, conn)
}

func (h *Handler) writePump(ctx context.Context, cancel context.CancelFunc, c *Conn) {
	ticker := time.NewTicker(h.pingPeriod())
	defer func() {
		ticker.Stop()
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.sock.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", string(c.id)).Msg("write failed")
				return
			}
		}
	}
}

func (h *Handler) readPump(ctx context.Context, cancel context.CancelFunc, c *Conn) {
	defer func() {
		// The read loop ending is the disconnecting signal: the hub
		// notifies the room before dropping the presence entry.
		h.Hub.Disconnect(c.ID())
		c.Close()
		cancel()
		log.Info().Str("module", "adapters.ws").Str("conn", string(c.id)).Msg("connection closed")
	}()

	if h.ReadLimit > 0 {
		c.sock.SetReadLimit(h.ReadLimit)
	}
	deadline := h.pingPeriod() * 10 / 9
	_ = c.sock.SetReadDeadline(time.Now().Add(deadline))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.sock.ReadMessage()
			if err != nil {
				return
			}
			if !h.handleFrame(ctx, c, data) {
				return
			}
		}
	}
}

// handleFrame decodes one envelope and routes it. Returns false when the
// connection must close (failed join).
func (h *Handler) handleFrame(ctx context.Context, c *Conn, data []byte) bool {
	var env collab.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", string(c.id)).Msg("bad envelope")
		return true
	}

	if env.Type != collab.EventJoinRequest {
		h.Hub.Dispatch(c.ID(), env)
		return true
	}

	var p struct {
		Room string `json:"roomId"`
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.Room == "" {
		log.Warn().Str("module", "adapters.ws").Str("conn", string(c.id)).Msg("bad join payload")
		return true
	}

	if h.JoinLimit != nil && !h.JoinLimit.Allow(c.identity.UserID) {
		h.Met.EventsDiscarded.Inc()
		log.Warn().Str("module", "adapters.ws").Str("user", string(c.identity.UserID)).Msg("join rate limited")
		return true
	}

	if err := h.Hub.Join(ctx, c, domain.RoomID(p.Room)); err != nil {
		// Fail closed: deny entry and drop the connection. The close
		// reason stays generic.
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authorization denied")
		_ = c.sock.WriteControl(websocket.CloseMessage, msg, deadline)
		return false
	}
	return true
}

func (h *Handler) pingPeriod() time.Duration {
	if h.PingPeriod > 0 {
		return h.PingPeriod
	}
	return 54 * time.Second
}
