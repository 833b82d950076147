package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"guard-relay/shared/constants"
	"guard-relay/shared/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время, разрешенное для чтения следующего pong сообщения от клиента.
	pongWait = 60 * time.Second
	// Отправлять пинги клиенту с этим периодом. Должно быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер сообщения, разрешенный от клиента.
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Client - одно окно приложения, подключенное по WebSocket.
type Client struct {
	id         string
	userID     uuid.UUID
	typ        models.ClientType
	controlled bool
	conn       *websocket.Conn // nil до ServeConn

	mu     sync.Mutex
	url    string
	send   chan []byte
	closed bool
}

// ClientInfo описывает окно при подключении.
type ClientInfo struct {
	UserID     uuid.UUID
	URL        string
	Type       models.ClientType
	Controlled bool
}

func newClient(info ClientInfo) *Client {
	typ := info.Type
	if typ == "" {
		typ = models.ClientTypeWindow
	}
	return &Client{
		id:         uuid.NewString(),
		userID:     info.UserID,
		typ:        typ,
		controlled: info.Controlled,
		url:        info.URL,
		send:       make(chan []byte, sendBufferSize),
	}
}

func (c *Client) ID() string              { return c.id }
func (c *Client) Type() models.ClientType { return c.typ }
func (c *Client) UserID() uuid.UUID       { return c.userID }
func (c *Client) Controlled() bool        { return c.controlled }

// URL is the last location reported by the window.
func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

func (c *Client) setURL(url string) {
	c.mu.Lock()
	c.url = url
	c.mu.Unlock()
}

// Focus asks the window to bring itself to the foreground.
func (c *Client) Focus(ctx context.Context) error {
	return c.Send(ctx, Message{Type: constants.WSEventFocus})
}

// Send queues msg without blocking. It fails with ErrClientGone after the
// client disconnected and with ErrQueueOverflow when the buffer is full.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return models.ErrClientGone
	}
	select {
	case c.send <- raw:
		return nil
	default:
		return models.ErrQueueOverflow
	}
}

// close идемпотентен; writePump увидит закрытый канал и отправит CloseMessage.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump читает сообщения окна, пока соединение живо.
func (c *Client) readPump(r *Registry, logger *zap.Logger) {
	defer func() {
		r.Unregister(c)
		_ = c.conn.Close()
		logger.Info("readPump finished")
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.Error(err))
			} else {
				logger.Info("WebSocket connection closed")
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("Malformed client message ignored", zap.Error(err), zap.Int("size", len(raw)))
			continue
		}
		r.handleMessage(c, msg)
	}
}

// writePump откачивает сообщения из канала send в соединение.
func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		logger.Info("writePump finished")
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error("Failed to write message", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
