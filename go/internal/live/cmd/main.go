package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bizmonopoly/go/internal/live/clock"
	"github.com/mcdev12/bizmonopoly/go/internal/live/commands"
	"github.com/mcdev12/bizmonopoly/go/internal/live/config"
	"github.com/mcdev12/bizmonopoly/go/internal/live/dispatch"
	"github.com/mcdev12/bizmonopoly/go/internal/live/flash"
	"github.com/mcdev12/bizmonopoly/go/internal/live/inspect"
	"github.com/mcdev12/bizmonopoly/go/internal/live/transport"
	"github.com/mcdev12/bizmonopoly/go/internal/live/ui"
	"github.com/mcdev12/bizmonopoly/go/internal/live/view"
)

func main() {
	configPath := flag.String("config", os.Getenv("LIVE_CONFIG"), "path to YAML config")
	interactive := flag.Bool("console", true, "read commands from stdin")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	session := view.NewSession(cfg.ParsedGameID(), cfg.Username, cfg.CSRFToken, cfg.Observer)

	store, closeStore := setupFlashStore(cfg.Database)
	defer closeStore()

	// A notice left by a previous session is shown once
	if msg, err := store.Pop(context.Background(), cfg.Username); err != nil {
		log.Error().Err(err).Msg("failed to read flash message")
	} else if msg != nil {
		log.Warn().Str("level", msg.Level).Msg(msg.Text)
	}

	client := commands.NewClient(cfg.BaseURL, session)
	client.SetTimeout(cfg.CommandTimeout)
	if cfg.SessionCookie != "" {
		client.SetHeader("Cookie", "sessionid="+cfg.SessionCookie)
	}

	source, err := setupSource(cfg, session)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up channel")
	}

	dispatcher := dispatch.New(dispatch.Config{
		Session:      session,
		Clock:        clock.New(clockwork.NewRealClock(), 0, session.Paused()),
		Renderer:     ui.NewLogRenderer(),
		Commander:    client,
		Flash:        store,
		TickInterval: cfg.TickInterval,
	})
	dispatcher.MountWorkflows()

	log.Info().
		Str("game_id", cfg.GameID).
		Str("username", cfg.Username).
		Str("transport", cfg.Transport).
		Bool("observer", cfg.Observer).
		Msg("starting live client")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := source.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, transport.ErrClosed) {
			log.Error().Err(err).Msg("channel stopped")
		}
	}()

	var server *http.Server
	if cfg.InspectAddr != "" {
		server = inspect.NewServer(cfg.InspectAddr, dispatcher)
		go func() {
			log.Info().Str("addr", server.Addr).Msg("inspector starting")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("inspector failed")
			}
		}()
	}

	if *interactive {
		go NewConsole(dispatcher, client).Run(ctx, os.Stdin)
	}

	// Wait for interrupt signal
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	err = dispatcher.Run(ctx, source.Frames())
	switch {
	case err == nil:
		log.Info().Msg("session ended by server")
	case errors.Is(err, context.Canceled):
	case errors.Is(err, dispatch.ErrChannelClosed):
		log.Warn().Msg("channel closed")
	default:
		log.Error().Err(err).Msg("dispatcher stopped")
	}

	// Graceful shutdown
	cancel()
	if err := source.Close(); err != nil {
		log.Debug().Err(err).Msg("channel close")
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("inspector shutdown failed")
		}
	}

	log.Info().Msg("live client shutdown complete")
}

func setupFlashStore(cfg config.DatabaseConfig) (flash.Store, func()) {
	if !cfg.Enabled() {
		return flash.NewMemoryStore(), func() {}
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	store := flash.NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate flash store")
	}

	log.Info().Str("database", cfg.Database).Msg("using postgres flash store")
	return store, func() { db.Close() }
}

func setupSource(cfg config.Config, session *view.Session) (transport.Source, error) {
	if cfg.Transport == config.TransportNATS {
		natsCfg := transport.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Stream = cfg.NATS.Stream
		natsCfg.GameID = session.GameID()
		natsCfg.Username = session.Username()
		return transport.NewNATSSource(natsCfg), nil
	}

	url, err := transport.GameURL(cfg.BaseURL, session.GameID())
	if err != nil {
		return nil, err
	}
	wsCfg := transport.DefaultWebSocketConfig()
	wsCfg.URL = url
	wsCfg.Header = http.Header{}
	wsCfg.Header.Set("Origin", cfg.BaseURL)
	if cfg.SessionCookie != "" {
		wsCfg.Header.Set("Cookie", "sessionid="+cfg.SessionCookie)
	}
	return transport.NewWebSocketSource(wsCfg), nil
}
