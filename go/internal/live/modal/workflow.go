package modal

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bizmonopoly/go/internal/live/events"
)

// Name identifies a workflow
type Name string

const (
	ElectionVote   Name = "election_vote"
	BankerChoice   Name = "banker_choice"
	QuestionAnswer Name = "question_answer"
	QuestionReview Name = "question_review"
)

// State of a workflow
type State int

const (
	StateClosed State = iota
	StateOpen
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateSubmitting:
		return "submitting"
	default:
		return "closed"
	}
}

// Choice is one selectable option
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// OpenRequest describes what a newly opened modal shows
type OpenRequest struct {
	Prompt  string
	Choices []Choice
	// Token is echoed back verbatim on submit
	Token string
	// FreeText collects a typed answer instead of a choice
	FreeText bool
	// Subject is the id the interaction is about, e.g. a question id
	Subject int64
}

// Session is one open modal instance
type Session struct {
	ID         uuid.UUID
	Request    OpenRequest
	SelectedID string
	Text       string
}

// Submission is what a Submitter sends to the server
type Submission struct {
	SessionID uuid.UUID
	ChoiceID  string
	Text      string
	Token     string
	Subject   int64
}

// Outcome is a successful submit result
type Outcome struct {
	// NoContent means the confirmation arrives later as a personal message
	NoContent bool
	Message   string
}

// Submitter issues the network command for a workflow
type Submitter func(ctx context.Context, sub Submission) (Outcome, error)

// Notifier shows toasts
type Notifier interface {
	Notify(level events.Level, text string)
}

// Scheduler runs work off the loop and re-posts the returned continuation
// onto it
type Scheduler interface {
	Async(work func() func())
}

// UserMessager is implemented by errors that carry a server-provided reason
type UserMessager interface {
	UserMessage() string
}

// Messages are the texts a workflow shows
type Messages struct {
	Success     string
	Failure     string
	NoSelection string
}

// Snapshot is the renderable view of a workflow
type Snapshot struct {
	Name       Name     `json:"name"`
	State      string   `json:"state"`
	Prompt     string   `json:"prompt,omitempty"`
	Choices    []Choice `json:"choices,omitempty"`
	SelectedID string   `json:"selected_id,omitempty"`
	Text       string   `json:"text,omitempty"`
	FreeText   bool     `json:"free_text,omitempty"`
	// CanSubmit mirrors the enabled state of the submit control
	CanSubmit bool `json:"can_submit"`
}

// Config wires a workflow to its collaborators
type Config struct {
	Name      Name
	Submit    Submitter
	Notifier  Notifier
	Scheduler Scheduler
	Messages  Messages
	// OnChange is called after every state transition
	OnChange func(Snapshot)
}

// Workflow is the open/select/submit/close state machine for one modal. It is
// owned by the dispatch loop and must only be called from it.
type Workflow struct {
	cfg     Config
	state   State
	session *Session
}

// New creates a closed workflow
func New(cfg Config) *Workflow {
	if cfg.Messages.Failure == "" {
		cfg.Messages.Failure = "Не удалось отправить. Попробуйте ещё раз."
	}
	if cfg.Messages.NoSelection == "" {
		cfg.Messages.NoSelection = "Сначала сделайте выбор."
	}
	return &Workflow{cfg: cfg}
}

func (w *Workflow) Name() Name {
	return w.cfg.Name
}

func (w *Workflow) State() State {
	return w.state
}

// Session returns the active session, nil when closed
func (w *Workflow) Session() *Session {
	return w.session
}

// Open starts a fresh session with no selection. Opening over an existing
// session replaces it and any in-flight result for it is discarded.
func (w *Workflow) Open(req OpenRequest) {
	req.Choices = append([]Choice(nil), req.Choices...)
	w.session = &Session{
		ID:      uuid.New(),
		Request: req,
	}
	w.state = StateOpen

	log.Debug().
		Str("workflow", string(w.cfg.Name)).
		Str("session_id", w.session.ID.String()).
		Int("choices", len(req.Choices)).
		Msg("workflow opened")
	w.changed()
}

// Select marks a choice. Unknown ids and selections outside Open are ignored.
func (w *Workflow) Select(id string) bool {
	if w.state != StateOpen {
		return false
	}
	if !hasChoice(w.session.Request.Choices, id) {
		return false
	}
	w.session.SelectedID = id
	w.changed()
	return true
}

// SetText records a free-text answer
func (w *Workflow) SetText(text string) bool {
	if w.state != StateOpen || !w.session.Request.FreeText {
		return false
	}
	w.session.Text = text
	w.changed()
	return true
}

// Refresh replaces the choice list in place. The selection survives only if
// its id is still offered.
func (w *Workflow) Refresh(choices []Choice) {
	if w.session == nil {
		return
	}
	w.session.Request.Choices = append([]Choice(nil), choices...)
	if !hasChoice(choices, w.session.SelectedID) {
		w.session.SelectedID = ""
	}
	w.changed()
}

// Cancel closes the modal. An in-flight submit is not cancelled; its result is
// dropped when it lands.
func (w *Workflow) Cancel() {
	if w.state == StateClosed {
		return
	}
	w.close()
}

// Submit sends the selection. It returns true when a network command was
// issued. While Submitting it does nothing.
func (w *Workflow) Submit(ctx context.Context) bool {
	if w.state != StateOpen {
		return false
	}

	sub, ok := w.submission()
	if !ok {
		w.notify(events.LevelWarning, w.cfg.Messages.NoSelection)
		return false
	}

	w.state = StateSubmitting
	w.changed()

	session := w.session
	submit := w.cfg.Submit
	w.cfg.Scheduler.Async(func() func() {
		outcome, err := submit(ctx, sub)
		return func() { w.complete(session, outcome, err) }
	})
	return true
}

func (w *Workflow) submission() (Submission, bool) {
	s := w.session
	sub := Submission{
		SessionID: s.ID,
		ChoiceID:  s.SelectedID,
		Token:     s.Request.Token,
		Subject:   s.Request.Subject,
	}
	if s.Request.FreeText {
		sub.Text = strings.TrimSpace(s.Text)
		return sub, sub.Text != ""
	}
	return sub, s.SelectedID != ""
}

// complete runs on the loop once the network call returns
func (w *Workflow) complete(session *Session, outcome Outcome, err error) {
	if w.session != session || w.state != StateSubmitting {
		log.Debug().
			Str("workflow", string(w.cfg.Name)).
			Str("session_id", session.ID.String()).
			Msg("discarding result for stale session")
		return
	}

	if err != nil {
		log.Warn().
			Err(err).
			Str("workflow", string(w.cfg.Name)).
			Msg("workflow submit failed")
		w.state = StateOpen
		w.changed()
		w.notify(events.LevelError, failureText(err, w.cfg.Messages.Failure))
		return
	}

	w.close()
	if outcome.NoContent {
		return
	}
	text := outcome.Message
	if text == "" {
		text = w.cfg.Messages.Success
	}
	w.notify(events.LevelSuccess, text)
}

func (w *Workflow) close() {
	w.state = StateClosed
	w.session = nil
	w.changed()
}

// Snapshot returns the renderable state
func (w *Workflow) Snapshot() Snapshot {
	snap := Snapshot{Name: w.cfg.Name, State: w.state.String()}
	if w.session == nil {
		return snap
	}
	snap.Prompt = w.session.Request.Prompt
	snap.Choices = append([]Choice(nil), w.session.Request.Choices...)
	snap.SelectedID = w.session.SelectedID
	snap.Text = w.session.Text
	snap.FreeText = w.session.Request.FreeText
	snap.CanSubmit = w.state == StateOpen
	return snap
}

func (w *Workflow) changed() {
	if w.cfg.OnChange != nil {
		w.cfg.OnChange(w.Snapshot())
	}
}

func (w *Workflow) notify(level events.Level, text string) {
	if text == "" || w.cfg.Notifier == nil {
		return
	}
	w.cfg.Notifier.Notify(level, text)
}

func failureText(err error, fallback string) string {
	var um UserMessager
	if errors.As(err, &um) {
		if reason := strings.TrimSpace(um.UserMessage()); reason != "" {
			return reason
		}
	}
	return fallback
}

func hasChoice(choices []Choice, id string) bool {
	if id == "" {
		return false
	}
	for _, c := range choices {
		if c.ID == id {
			return true
		}
	}
	return false
}
