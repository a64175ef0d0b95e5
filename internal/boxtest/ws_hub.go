package boxtest

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/mystery-box/client/internal/auth"
	"github.com/mystery-box/client/internal/events"
	"go.uber.org/zap"
)

type wsClient struct {
	conn   *websocket.Conn
	stream string
}

// wsHub pushes payment events to connected clients, keyed by telegram user id.
type wsHub struct {
	secret string
	log    *zap.Logger

	mu          sync.Mutex
	connections map[int64][]*wsClient
}

func newWSHub(secret string, log *zap.Logger) *wsHub {
	return &wsHub{
		secret:      secret,
		log:         log,
		connections: make(map[int64][]*wsClient),
	}
}

func (h *wsHub) broadcast(stream string, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	// writes on one conn must not interleave
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.connections {
		for _, cl := range clients {
			if cl.stream != "" && cl.stream != stream {
				continue
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("websocket write failed", zap.Error(err))
			}
		}
	}
}

func (h *wsHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, clients := range h.connections {
		n += len(clients)
	}
	return n
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.connections {
		for _, cl := range clients {
			_ = cl.conn.Close()
		}
	}
}

func wsUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *wsHub) handleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.secret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	tgID := claims.TelegramUserID
	client := &wsClient{conn: conn, stream: conn.Query("stream")}

	h.mu.Lock()
	h.connections[tgID] = append(h.connections[tgID], client)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.connections[tgID] = slices.DeleteFunc(h.connections[tgID], func(cl *wsClient) bool {
			return cl == client
		})
		if len(h.connections[tgID]) == 0 {
			delete(h.connections, tgID)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// keeps the connection open until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
