package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"remoteplay/native/internal/domain"
	"remoteplay/native/internal/logging"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultPingInterval = 20 * time.Second
	writeWait           = 5 * time.Second
)

// Client manages the WebSocket connection to the signaling endpoint.
type Client struct {
	url     string
	handler domain.SignalHandler
	log     zerolog.Logger

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// PingInterval defaults to 20s; zero or less disables keepalive pings.
	PingInterval time.Duration

	conn *websocket.Conn

	mu        sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
	eventOnce sync.Once
}

// NewClient creates a signaling client for url. handler receives every
// inbound message on the read goroutine.
func NewClient(url string, handler domain.SignalHandler) *Client {
	return &Client{
		url:          url,
		handler:      handler,
		log:          logging.New("signal"),
		PingInterval: defaultPingInterval,
		closed:       make(chan struct{}),
	}
}

// Connect dials the signaling WebSocket and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	c.log.Info().Str("url", c.url).Msg("connecting")

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		conn.Close()
		return errors.New("signaling client closed during dial")
	default:
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop()
	if c.PingInterval > 0 {
		go c.pingLoop()
	}

	return nil
}

// Send encodes msg and writes it as a single text frame.
func (c *Client) Send(msg domain.SignalMessage) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return errors.New("signaling client closed")
	default:
	}
	if c.conn == nil {
		return errors.New("signaling client not connected")
	}

	c.log.Debug().Str("type", msg.SignalType()).Msg(">>>")
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Close shuts down the WebSocket connection. It is safe to call more
// than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.closed)
		conn := c.conn
		if conn != nil {
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
		}
		c.mu.Unlock()

		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Client) readLoop() {
	defer c.eventOnce.Do(c.handler.OnSignalClose)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info().Msg("remote closed signaling connection")
				return
			}
			c.log.Warn().Err(err).Msg("read error")
			c.handler.OnSignalError(fmt.Errorf("websocket read: %w", err))
			return
		}

		msg, err := Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed message")
			var malformed *domain.MalformedSignalError
			if errors.As(err, &malformed) {
				c.handler.OnSignalError(err)
			}
			continue
		}

		c.log.Debug().Str("type", msg.SignalType()).Msg("<<<")
		c.handler.OnSignalMessage(msg)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(
				websocket.PingMessage,
				[]byte{},
				time.Now().Add(writeWait),
			)
			c.mu.Unlock()
			if err != nil {
				if !c.isClosed() {
					c.log.Warn().Err(err).Msg("ping error")
				}
				return
			}
		}
	}
}
