package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the relayed channel. When Stream is set
// frames are read through an ordered JetStream consumer, otherwise from core
// NATS subscriptions.
type NATSConfig struct {
	URL           string
	Stream        string
	GameID        uuid.UUID
	Username      string
	MaxReconnects int
	ReconnectWait time.Duration
	FrameBuffer   int
}

// DefaultNATSConfig returns default relay settings
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		FrameBuffer:   64,
	}
}

// GameSubject carries the broadcast update and game_deleted frames
func GameSubject(gameID uuid.UUID) string {
	return fmt.Sprintf("game.%s.events", gameID)
}

// UserSubject carries one player's personal frames
func UserSubject(username string) string {
	return fmt.Sprintf("user.%s.events", username)
}

// Subjects returns every subject the session listens on
func (c NATSConfig) Subjects() []string {
	return []string{GameSubject(c.GameID), UserSubject(c.Username)}
}

// NATSSource reads frames relayed onto NATS
type NATSSource struct {
	config NATSConfig
	frames chan []byte

	mu sync.Mutex
	nc *nats.Conn

	done      chan struct{}
	closeOnce sync.Once
}

func NewNATSSource(config NATSConfig) *NATSSource {
	if config.FrameBuffer <= 0 {
		config.FrameBuffer = 64
	}
	return &NATSSource{
		config: config,
		frames: make(chan []byte, config.FrameBuffer),
		done:   make(chan struct{}),
	}
}

func (s *NATSSource) Frames() <-chan []byte {
	return s.frames
}

// Run connects and forwards frames until ctx is cancelled or Close is called
func (s *NATSSource) Run(ctx context.Context) error {
	defer close(s.frames)

	opts := []nats.Option{
		nats.Name("bizmonopoly-live-" + s.config.Username),
		nats.MaxReconnects(s.config.MaxReconnects),
		nats.ReconnectWait(s.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(s.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	s.mu.Lock()
	s.nc = nc
	s.mu.Unlock()

	msgs := make(chan []byte, s.config.FrameBuffer)
	stop, err := s.subscribe(ctx, nc, msgs)
	if err != nil {
		return err
	}
	defer stop()

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Strs("subjects", s.config.Subjects()).
		Str("stream", s.config.Stream).
		Msg("subscribed to relayed channel")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrClosed
		case data := <-msgs:
			if !forward(ctx, s.frames, s.done, data) {
				continue
			}
		}
	}
}

// deliverer copies each message payload onto msgs. It gives up once ctx is
// done or the source is closed so a stalled reader cannot wedge NATS callbacks.
func (s *NATSSource) deliverer(ctx context.Context, msgs chan<- []byte) func([]byte) {
	return func(data []byte) {
		frame := append([]byte(nil), data...)
		select {
		case msgs <- frame:
		case <-ctx.Done():
		case <-s.done:
		}
	}
}

// relay drains a channel subscription in arrival order until stopped is closed
func relay(inbound <-chan *nats.Msg, stopped <-chan struct{}, deliver func([]byte)) {
	for {
		select {
		case m := <-inbound:
			deliver(m.Data)
		case <-stopped:
			return
		}
	}
}

func (s *NATSSource) subscribe(ctx context.Context, nc *nats.Conn, msgs chan<- []byte) (func(), error) {
	deliver := s.deliverer(ctx, msgs)

	if s.config.Stream == "" {
		// Channel subscriptions are fed from the connection's single read
		// loop, so frames keep their wire order across both subjects.
		inbound := make(chan *nats.Msg, 4*s.config.FrameBuffer)
		var subs []*nats.Subscription
		for _, subject := range s.config.Subjects() {
			sub, err := nc.ChanSubscribe(subject, inbound)
			if err != nil {
				return nil, fmt.Errorf("subscribe %s: %w", subject, err)
			}
			subs = append(subs, sub)
		}

		stopped := make(chan struct{})
		go relay(inbound, stopped, deliver)

		return func() {
			close(stopped)
			for _, sub := range subs {
				if err := sub.Unsubscribe(); err != nil {
					log.Debug().Err(err).Str("subject", sub.Subject).Msg("unsubscribe failed")
				}
			}
		}, nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	consumer, err := js.OrderedConsumer(ctx, s.config.Stream, jetstream.OrderedConsumerConfig{
		FilterSubjects: s.config.Subjects(),
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create ordered consumer: %w", err)
	}
	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) { deliver(msg.Data()) })
	if err != nil {
		return nil, fmt.Errorf("start consumer: %w", err)
	}
	return consumeCtx.Stop, nil
}

// Close stops Run and drains the connection
func (s *NATSSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		nc := s.nc
		s.mu.Unlock()
		if nc != nil && !nc.IsClosed() {
			err = nc.Drain()
		}
	})
	return err
}
