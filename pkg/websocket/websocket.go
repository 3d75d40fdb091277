package websocketPkg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"OpticalFactory/internal/entity"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const defaultLandmarkURL = "ws://localhost:8000/api/v1/landmarks/ws"

var ErrNotConnected = errors.New("not connected to landmark service")

type IWebsocket interface {
	DetectLandmarks(ctx context.Context, frame []byte) (*entity.LandmarkDetectionResult, error)
	IsConnected() bool
	Reconnect() error
	CloseConnections()
}

type ClientOption func(*webSocketClient)

func WithTimeouts(read, write time.Duration) ClientOption {
	return func(c *webSocketClient) {
		c.readTimeout = read
		c.writeTimeout = write
	}
}

func WithPingInterval(d time.Duration) ClientOption {
	return func(c *webSocketClient) {
		c.pingInterval = d
	}
}

func WithLogger(log *logrus.Logger) ClientOption {
	return func(c *webSocketClient) {
		c.log = log
	}
}

// webSocketClient keeps one connection to the landmark detector. The detector
// answers frames in order, so round trips are serialised by reqMu.
type webSocketClient struct {
	url  string
	conn *websocket.Conn
	mu   sync.Mutex

	reqMu sync.Mutex

	log          *logrus.Logger
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewLandmarkClient dials url in the background; an empty url falls back to
// AI_LANDMARK_URL.
func NewLandmarkClient(url string, opts ...ClientOption) IWebsocket {
	if url == "" {
		url = os.Getenv("AI_LANDMARK_URL")
	}
	if url == "" {
		url = defaultLandmarkURL
	}

	client := &webSocketClient{
		url:          url,
		log:          logrus.StandardLogger(),
		pingInterval: 30 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(client)
	}

	go client.connectInBackground()

	return client
}

func (c *webSocketClient) connectInBackground() {
	if _, err := c.connection(); err != nil {
		c.log.WithFields(logrus.Fields{
			"url":   c.url,
			"error": err.Error(),
		}).Warn("Initial connection to landmark service failed, will retry on demand")
		return
	}
	c.log.WithField("url", c.url).Info("Connected to landmark service")
}

func (c *webSocketClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn != nil
}

// Reconnect drops the current connection, if any, and dials again.
func (c *webSocketClient) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked()
	return c.dialLocked()
}

func (c *webSocketClient) CloseConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked()
}

// connection returns the live connection, dialling when there is none.
func (c *webSocketClient) connection() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dialLocked(); err != nil {
			return nil, err
		}
	}
	return c.conn, nil
}

func (c *webSocketClient) dialLocked() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrNotConnected, c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout)); err != nil {
			c.log.WithError(err).Debug("Error sending pong to landmark service")
		}
		return nil
	})

	c.conn = conn
	go c.keepAlive(conn)

	return nil
}

func (c *webSocketClient) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// drop forgets conn unless it has already been replaced.
func (c *webSocketClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.dropLocked()
	}
}

func (c *webSocketClient) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		current := c.conn
		c.mu.Unlock()

		if current != conn {
			return
		}

		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
			c.log.WithError(err).Warn("Ping to landmark service failed, marking connection as dead")
			c.drop(conn)
			return
		}
	}
}

// DetectLandmarks sends one encoded image and waits for the detector's reply.
// A detector-side error reply is returned as an error; "no face" is not an
// error.
func (c *webSocketClient) DetectLandmarks(ctx context.Context, frame []byte) (*entity.LandmarkDetectionResult, error) {
	if len(frame) == 0 {
		return nil, errors.New("empty frame")
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	if err := conn.SetWriteDeadline(c.deadline(ctx, c.writeTimeout)); err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("%w: send frame: %w", ErrNotConnected, err)
	}

	if err := conn.SetReadDeadline(c.deadline(ctx, c.readTimeout)); err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	_, message, err := conn.ReadMessage()
	if err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("%w: read reply: %w", ErrNotConnected, err)
	}

	var result entity.LandmarkDetectionResult
	if err := jsoniter.Unmarshal(message, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling landmark response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("landmark service: %s", result.Error)
	}

	c.log.WithFields(logrus.Fields{
		"detected":  result.Detected,
		"landmarks": len(result.Landmarks),
	}).Debug("Received landmarks")

	return &result, nil
}

func (c *webSocketClient) deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}
