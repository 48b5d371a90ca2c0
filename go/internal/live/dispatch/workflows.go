package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bizmonopoly/go/internal/live/commands"
	"github.com/mcdev12/bizmonopoly/go/internal/live/events"
	"github.com/mcdev12/bizmonopoly/go/internal/live/modal"
	"github.com/mcdev12/bizmonopoly/go/internal/live/pending"
	"github.com/mcdev12/bizmonopoly/go/internal/live/ui"
	"github.com/mcdev12/bizmonopoly/go/internal/live/view"
)

// Published is the read-only copy of the loop's state handed to other
// goroutines
type Published struct {
	Frame  ui.Frame         `json:"view"`
	Modals []modal.Snapshot `json:"modals"`
	Ended  bool             `json:"ended"`
}

// Published returns the latest snapshot. Safe from any goroutine.
func (d *Dispatcher) Published() *Published {
	return d.published.Load()
}

func (d *Dispatcher) publish() {
	modals := make([]modal.Snapshot, 0, len(d.modals))
	for _, snap := range d.modals {
		modals = append(modals, snap)
	}
	sort.Slice(modals, func(i, j int) bool { return modals[i].Name < modals[j].Name })

	d.published.Store(&Published{
		Frame:  d.frame,
		Modals: modals,
		Ended:  d.ended,
	})
}

// Notify implements modal.Notifier
func (d *Dispatcher) Notify(level events.Level, text string) {
	d.renderer.Toast(level, text)
}

func (d *Dispatcher) buildWorkflows() map[modal.Name]*modal.Workflow {
	newWorkflow := func(name modal.Name, submit modal.Submitter, msgs modal.Messages) *modal.Workflow {
		wf := modal.New(modal.Config{
			Name:      name,
			Submit:    submit,
			Notifier:  d,
			Scheduler: d.scheduler,
			Messages:  msgs,
			OnChange: func(snap modal.Snapshot) {
				d.modals[snap.Name] = snap
				d.publish()
				d.renderer.ModalChanged(snap)
			},
		})
		d.modals[name] = wf.Snapshot()
		return wf
	}

	return map[modal.Name]*modal.Workflow{
		modal.ElectionVote: newWorkflow(modal.ElectionVote, d.submitVote, modal.Messages{
			Success:     "Ваш голос учтён.",
			NoSelection: "Выберите кандидата.",
		}),
		modal.BankerChoice: newWorkflow(modal.BankerChoice, d.submitBanker, modal.Messages{
			Success:     "Банкир выбран.",
			NoSelection: "Выберите банкира.",
		}),
		modal.QuestionAnswer: newWorkflow(modal.QuestionAnswer, d.submitAnswer, modal.Messages{
			Success:     "Ответ отправлен.",
			NoSelection: "Выберите или введите ответ.",
		}),
		modal.QuestionReview: newWorkflow(modal.QuestionReview, d.submitGrade, modal.Messages{
			Success:     "Оценка отправлена.",
			NoSelection: "Отметьте ответ как верный или неверный.",
		}),
	}
}

// MountWorkflows registers the server-driven workflows with the router. Any
// requests that arrived before this drain in arrival order.
func (d *Dispatcher) MountWorkflows() {
	for _, name := range []modal.Name{modal.BankerChoice, modal.QuestionAnswer, modal.QuestionReview} {
		d.router.Mount(pending.Key(name), d.requestHandler(d.workflows[name]))
	}
}

// UnmountWorkflows detaches the handlers; later requests queue again
func (d *Dispatcher) UnmountWorkflows() {
	for _, name := range []modal.Name{modal.BankerChoice, modal.QuestionAnswer, modal.QuestionReview} {
		d.router.Unmount(pending.Key(name))
	}
}

// Pending reports how many requests are queued for a workflow
func (d *Dispatcher) Pending(name modal.Name) int {
	return d.router.Pending(pending.Key(name))
}

func (d *Dispatcher) requestHandler(wf *modal.Workflow) pending.Handler {
	return func(req pending.Request) {
		switch req.Type {
		case pending.RequestOpen:
			open, ok := req.Payload.(modal.OpenRequest)
			if !ok {
				log.Warn().
					Str("workflow", string(wf.Name())).
					Str("payload", fmt.Sprintf("%T", req.Payload)).
					Msg("open request without modal payload")
				return
			}
			wf.Open(open)
		case pending.RequestClose:
			wf.Cancel()
		}
	}
}

// OpenElectionVote opens the vote modal with the current candidates
func (d *Dispatcher) OpenElectionVote() {
	d.workflows[modal.ElectionVote].Open(modal.OpenRequest{
		Prompt:  "Голосование",
		Choices: candidateChoices(d.state.Election.Candidates),
	})
}

// Input runs fn on the loop. It returns false once the loop has stopped.
func (d *Dispatcher) Input(fn func()) bool {
	return d.Post(fn)
}

// RunCommand issues a command off the loop. A non-empty text from fn is shown
// as a success toast, an error as an error toast. Most commands return no
// text; their confirmation arrives as a later update or personal message.
func (d *Dispatcher) RunCommand(ctx context.Context, name string, fn func(ctx context.Context) (string, error)) {
	d.scheduler.Async(func() func() {
		text, err := fn(ctx)
		return func() {
			if err != nil {
				log.Warn().Err(err).Str("command", name).Msg("command failed")
				d.Notify(events.LevelError, commandFailure(err))
				return
			}
			if text != "" {
				d.Notify(events.LevelSuccess, text)
			}
		}
	})
}

// ToggleMode switches between player and observer off the loop and applies the
// confirmed mode on it.
func (d *Dispatcher) ToggleMode(ctx context.Context, toggle func(ctx context.Context) (bool, error)) {
	d.scheduler.Async(func() func() {
		observer, err := toggle(ctx)
		return func() {
			if err != nil {
				log.Warn().Err(err).Str("command", "toggle_mode").Msg("command failed")
				d.Notify(events.LevelError, commandFailure(err))
				return
			}
			d.SetObserver(observer)
			if observer {
				d.Notify(events.LevelSuccess, "Вы перешли в режим наблюдателя")
			} else {
				d.Notify(events.LevelSuccess, "Вы снова в игре")
			}
		}
	})
}

func commandFailure(err error) string {
	var um modal.UserMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return "Не удалось выполнить действие. Попробуйте ещё раз."
}

func candidateChoices(candidates []view.Candidate) []modal.Choice {
	choices := make([]modal.Choice, 0, len(candidates))
	for _, c := range candidates {
		choices = append(choices, modal.Choice{
			ID:    strconv.FormatInt(c.ID, 10),
			Label: c.Username,
		})
	}
	return choices
}

func (d *Dispatcher) submitVote(ctx context.Context, sub modal.Submission) (modal.Outcome, error) {
	id, err := strconv.ParseInt(sub.ChoiceID, 10, 64)
	if err != nil {
		return modal.Outcome{}, fmt.Errorf("invalid candidate id %q: %w", sub.ChoiceID, err)
	}
	return outcome(d.commander.CastVote(ctx, id))
}

func (d *Dispatcher) submitBanker(ctx context.Context, sub modal.Submission) (modal.Outcome, error) {
	id, err := strconv.ParseInt(sub.ChoiceID, 10, 64)
	if err != nil {
		return modal.Outcome{}, fmt.Errorf("invalid banker id %q: %w", sub.ChoiceID, err)
	}
	return outcome(d.commander.ChooseBanker(ctx, id))
}

func (d *Dispatcher) submitAnswer(ctx context.Context, sub modal.Submission) (modal.Outcome, error) {
	answer := commands.Answer{
		QuestionID: sub.Subject,
		AskToken:   sub.Token,
	}
	if sub.ChoiceID != "" {
		idx, err := strconv.Atoi(sub.ChoiceID)
		if err != nil {
			return modal.Outcome{}, fmt.Errorf("invalid choice index %q: %w", sub.ChoiceID, err)
		}
		answer.ChoiceIndex = &idx
	} else {
		answer.Text = sub.Text
	}
	return outcome(d.commander.AnswerQuestion(ctx, answer))
}

func (d *Dispatcher) submitGrade(ctx context.Context, sub modal.Submission) (modal.Outcome, error) {
	return outcome(d.commander.GradeAnswer(ctx, sub.Subject, sub.ChoiceID == ReviewApprove, sub.Token))
}

func outcome(res commands.Result, err error) (modal.Outcome, error) {
	if err != nil {
		return modal.Outcome{}, err
	}
	return modal.Outcome{NoContent: res.NoContent, Message: res.Message}, nil
}
