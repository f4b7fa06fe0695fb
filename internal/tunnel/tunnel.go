package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/whookdev/composer/internal/models"
)

const (
	pingInterval = 20 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// Connection is one end of the message channel between the composer and
// the executor. Inbound messages are delivered on Messages in arrival order.
type Connection struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	inbound chan *models.Message

	done      chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
}

func NewConnection(id string, conn *websocket.Conn, logger *slog.Logger) *Connection {
	t := &Connection{
		id:      id,
		conn:    conn,
		logger:  logger.With("component", "tunnel", "connection_id", id),
		inbound: make(chan *models.Message, 16),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}

	go t.readPump()

	return t
}

// Dial opens the composer end of the channel.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Connection, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing executor: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dialing executor: %w", err)
	}

	return NewConnection(url, conn, logger), nil
}

// Handle keeps the connection alive with pings until it closes.
func (t *Connection) Handle() error {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-pingTicker.C:
			if err := t.conn.WriteControl(
				websocket.PingMessage,
				[]byte{},
				time.Now().Add(writeWait),
			); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}

		case <-t.done:
			return nil
		}
	}
}

// Send writes msg to the peer. It returns once the message is written and
// never waits for an answer.
func (t *Connection) Send(ctx context.Context, msg *models.Message) error {
	select {
	case <-t.done:
		return fmt.Errorf("tunnel closed")
	default:
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := t.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("sending %s message: %w", msg.Type, err)
	}

	t.logger.Debug("sent message", "type", msg.Type, "request_id", msg.RequestID)
	return nil
}

// Messages is closed when the connection ends.
func (t *Connection) Messages() <-chan *models.Message {
	return t.inbound
}

func (t *Connection) Done() <-chan struct{} {
	return t.done
}

func (t *Connection) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closing)
		t.writeMu.Lock()
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

func (t *Connection) readPump() {
	defer func() {
		t.logger.Info("readPump ending")
		t.conn.Close()
		close(t.inbound)
		close(t.done)
	}()

	t.conn.SetReadDeadline(time.Now().Add(pongWait))

	t.conn.SetPongHandler(func(string) error {
		t.logger.Debug("received pong")
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	t.conn.SetPingHandler(func(data string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return t.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		var msg models.Message
		err := t.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				t.logger.Error("websocket read error", "error", err)
				return
			}
			t.logger.Info("websocket closed normally")
			return
		}

		t.logger.Debug("received message",
			"type", msg.Type,
			"request_id", msg.RequestID)

		select {
		case t.inbound <- &msg:
		case <-t.closing:
			return
		}
	}
}

// Upgrader accepts channel connections on the executor.
func Upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			//TODO: implement proper origin checking
			return true
		},
	}
}
