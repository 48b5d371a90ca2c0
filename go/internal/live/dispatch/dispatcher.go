package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bizmonopoly/go/internal/live/clock"
	"github.com/mcdev12/bizmonopoly/go/internal/live/commands"
	"github.com/mcdev12/bizmonopoly/go/internal/live/events"
	"github.com/mcdev12/bizmonopoly/go/internal/live/flash"
	"github.com/mcdev12/bizmonopoly/go/internal/live/modal"
	"github.com/mcdev12/bizmonopoly/go/internal/live/pending"
	"github.com/mcdev12/bizmonopoly/go/internal/live/ui"
	"github.com/mcdev12/bizmonopoly/go/internal/live/view"
)

var (
	// ErrSessionEnded is returned once a game_deleted event has been handled
	ErrSessionEnded = errors.New("session ended")
	// ErrChannelClosed is returned when the frame source closes
	ErrChannelClosed = errors.New("channel closed")
)

// DefaultRedirect is where a deleted game sends the player
const DefaultRedirect = "/games/list/"

// Commander is the subset of the command client the workflows submit through
type Commander interface {
	CastVote(ctx context.Context, candidateID int64) (commands.Result, error)
	ChooseBanker(ctx context.Context, bankerID int64) (commands.Result, error)
	AnswerQuestion(ctx context.Context, a commands.Answer) (commands.Result, error)
	GradeAnswer(ctx context.Context, questionID int64, approved bool, askToken string) (commands.Result, error)
}

// Config holds the dispatcher's collaborators
type Config struct {
	Session   *view.Session
	Clock     *clock.Clock
	Renderer  ui.Renderer
	Commander Commander
	Flash     flash.Store
	// Scheduler overrides how submit work runs; defaults to a goroutine whose
	// result is posted back onto the loop
	Scheduler    modal.Scheduler
	TickInterval time.Duration
}

// Dispatcher owns the view state and every workflow. All of them are mutated
// only on the goroutine running Run, or by direct calls before Run starts.
type Dispatcher struct {
	session   *view.Session
	clock     *clock.Clock
	renderer  ui.Renderer
	commander Commander
	flash     flash.Store
	scheduler modal.Scheduler
	interval  time.Duration

	state     view.State
	router    *pending.Router
	workflows map[modal.Name]*modal.Workflow
	ended     bool

	posted chan func()
	done   chan struct{}
	stop   sync.Once

	frame     ui.Frame
	modals    map[modal.Name]modal.Snapshot
	published atomic.Pointer[Published]
}

// New wires a dispatcher. Workflows exist immediately but only receive
// server requests once mounted.
func New(cfg Config) *Dispatcher {
	if cfg.Flash == nil {
		cfg.Flash = flash.NewMemoryStore()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New(nil, 0, cfg.Session.Paused())
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = clock.DefaultTickInterval
	}

	d := &Dispatcher{
		session:   cfg.Session,
		clock:     cfg.Clock,
		renderer:  cfg.Renderer,
		commander: cfg.Commander,
		flash:     cfg.Flash,
		scheduler: cfg.Scheduler,
		interval:  cfg.TickInterval,
		state:     view.NewState(cfg.Session.GameID(), cfg.Session.Observer()),
		router:    pending.NewRouter(),
		posted:    make(chan func(), 64),
		done:      make(chan struct{}),
		modals:    make(map[modal.Name]modal.Snapshot),
	}
	if d.scheduler == nil {
		d.scheduler = d
	}
	d.state.Paused = cfg.Session.Paused()
	d.state.Observer = cfg.Session.Observer()
	d.frame = ui.NewFrame(d.state, cfg.Session.Username())
	d.workflows = d.buildWorkflows()
	d.publish()
	return d
}

// Run processes frames, posted input and clock ticks until the context is
// cancelled, the source closes, or the game is deleted (nil error).
func (d *Dispatcher) Run(ctx context.Context, frames <-chan []byte) error {
	defer d.stop.Do(func() { close(d.done) })

	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	log.Info().
		Str("game_id", d.session.GameID().String()).
		Str("username", d.session.Username()).
		Dur("tick", d.interval).
		Msg("dispatcher started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("dispatcher shutting down")
			return ctx.Err()

		case frame, ok := <-frames:
			if !ok {
				return ErrChannelClosed
			}
			if err := d.HandleFrame(ctx, frame); errors.Is(err, ErrSessionEnded) {
				return nil
			}

		case fn := <-d.posted:
			fn()

		case <-ticker.Chan():
			d.renderer.ClockTick(d.clock.RenderTick())
		}
	}
}

// Post queues fn to run on the loop. It returns false once the loop is gone.
func (d *Dispatcher) Post(fn func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.posted <- fn:
		return true
	case <-d.done:
		return false
	}
}

// Async implements modal.Scheduler: work runs on its own goroutine and its
// continuation is applied on the loop
func (d *Dispatcher) Async(work func() func()) {
	go func() {
		cont := work()
		if !d.Post(cont) {
			log.Debug().Msg("loop stopped, dropping command result")
		}
	}()
}

// HandleFrame decodes and applies a single frame. Undecodable frames are
// logged and dropped.
func (d *Dispatcher) HandleFrame(ctx context.Context, frame []byte) error {
	if d.ended {
		return ErrSessionEnded
	}

	msg, err := events.Decode(frame)
	if err != nil {
		log.Warn().
			Err(err).
			Int("bytes", len(frame)).
			Msg("dropping undecodable frame")
		return nil
	}
	return d.Handle(ctx, msg)
}

// Handle applies one decoded message
func (d *Dispatcher) Handle(ctx context.Context, msg events.Message) error {
	if d.ended {
		return ErrSessionEnded
	}

	switch m := msg.(type) {
	case events.Update:
		d.applyUpdate(m)
	case events.Personal:
		d.Classify(m)
	case events.GameDeleted:
		return d.endSession(ctx, m)
	default:
		log.Warn().Str("type", fmt.Sprintf("%T", msg)).Msg("unhandled message")
	}
	return nil
}

func (d *Dispatcher) applyUpdate(u events.Update) {
	prev := d.state
	prev.Observer = d.session.Observer()

	next, fx := view.Apply(prev, u, d.session.Username())
	d.state = next

	if fx.Elapsed != nil {
		d.clock.SetElapsed(*fx.Elapsed)
	}
	if fx.Paused != nil {
		d.session.SetPaused(*fx.Paused)
		d.clock.SetPaused(*fx.Paused)
	}
	if fx.PlayersChanged {
		d.workflows[modal.ElectionVote].Refresh(candidateChoices(next.Election.Candidates))
	}

	d.render()
}

// SetObserver applies a confirmed mode switch and re-derives the frame so
// permissions and receivers follow the new mode without waiting for an update.
// Must run on the loop.
func (d *Dispatcher) SetObserver(observer bool) {
	d.session.SetObserver(observer)
	d.state.Observer = observer
	d.render()
}

func (d *Dispatcher) render() {
	d.frame = ui.NewFrame(d.state, d.session.Username())
	d.publish()
	d.renderer.Render(d.frame)
}

func (d *Dispatcher) endSession(ctx context.Context, m events.GameDeleted) error {
	d.ended = true

	name := m.Name
	if name == "" {
		name = "Название игры"
	}
	msg := flash.Message{
		Text:  fmt.Sprintf("Игра «%s» была удалена", name),
		Level: string(events.LevelWarning),
	}
	if err := d.flash.Put(ctx, d.session.Username(), msg); err != nil {
		log.Error().Err(err).Msg("failed to store flash message")
	}

	redirect := m.Redirect
	if redirect == "" {
		redirect = DefaultRedirect
	}

	for _, wf := range d.workflows {
		wf.Cancel()
	}

	d.publish()

	log.Info().
		Str("game_id", d.session.GameID().String()).
		Str("redirect", redirect).
		Msg("game deleted, ending session")
	d.renderer.Navigate(redirect)
	return ErrSessionEnded
}

// Ended reports whether the session has been terminated
func (d *Dispatcher) Ended() bool {
	return d.ended
}

// State returns the current view. Loop only.
func (d *Dispatcher) State() view.State {
	return d.state
}

// Workflow returns the named workflow. Loop only.
func (d *Dispatcher) Workflow(name modal.Name) *modal.Workflow {
	return d.workflows[name]
}

// Clock exposes the session clock
func (d *Dispatcher) Clock() *clock.Clock {
	return d.clock
}

// Session exposes the session context
func (d *Dispatcher) Session() *view.Session {
	return d.session
}
