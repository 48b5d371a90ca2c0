package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketConfig holds configuration for the game channel connection
type WebSocketConfig struct {
	URL            string
	Header         http.Header
	HandshakeWait  time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	FrameBuffer    int
}

// DefaultWebSocketConfig returns default channel settings
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeWait:  10 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1 << 20, // snapshots carry the whole player list
		FrameBuffer:    64,
	}
}

// GameURL builds the channel URL for a game from the site base URL
func GameURL(base string, gameID uuid.UUID) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/game/" + gameID.String() + "/"
	return u.String(), nil
}

// WebSocketSource reads frames from the game's websocket channel
type WebSocketSource struct {
	config WebSocketConfig
	dialer *websocket.Dialer
	frames chan []byte

	mu   sync.Mutex
	conn *websocket.Conn

	done      chan struct{}
	closeOnce sync.Once
}

func NewWebSocketSource(config WebSocketConfig) *WebSocketSource {
	if config.FrameBuffer <= 0 {
		config.FrameBuffer = 64
	}
	return &WebSocketSource{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeWait,
		},
		frames: make(chan []byte, config.FrameBuffer),
		done:   make(chan struct{}),
	}
}

func (s *WebSocketSource) Frames() <-chan []byte {
	return s.frames
}

// Run dials the channel and pumps frames until the server closes it, ctx is
// cancelled or Close is called. A normal close returns nil.
func (s *WebSocketSource) Run(ctx context.Context) error {
	defer close(s.frames)

	conn, _, err := s.dialer.DialContext(ctx, s.config.URL, s.config.Header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.config.URL, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	log.Info().Str("url", s.config.URL).Msg("channel connected")

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-pumpCtx.Done():
		case <-s.done:
		}
		conn.Close()
	}()
	go s.pingPump(pumpCtx, conn)

	err = s.readPump(pumpCtx, conn)
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *WebSocketSource) readPump(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(s.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info().Msg("channel closed by server")
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				log.Warn().Int("code", closeErr.Code).Str("text", closeErr.Text).Msg("channel closed")
			}
			return fmt.Errorf("read frame: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		if !forward(ctx, s.frames, s.done, message) {
			return nil
		}
	}
}

// pingPump keeps the read deadline alive through server pongs
func (s *WebSocketSource) pingPump(ctx context.Context, conn *websocket.Conn) {
	if s.config.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout))
			s.mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}

// Close sends a close frame and stops Run
func (s *WebSocketSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		conn := s.conn
		if conn != nil {
			err = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.config.WriteTimeout),
			)
		}
		s.mu.Unlock()
		close(s.done)
	})
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}
