package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bizmonopoly/go/internal/live/events"
	"github.com/mcdev12/bizmonopoly/go/internal/live/modal"
	"github.com/mcdev12/bizmonopoly/go/internal/live/pending"
)

const defaultPlayerName = "Игрок"

// Review choice ids
const (
	ReviewApprove = "approve"
	ReviewReject  = "reject"
)

// Classify routes one personal message. It reports whether anything was shown
// or forwarded.
func (d *Dispatcher) Classify(p events.Personal) bool {
	switch dir := p.Directive.(type) {
	case events.BankerSelectionStarted:
		d.router.Deliver(pending.Key(modal.BankerChoice), pending.Request{
			Type:    pending.RequestOpen,
			Payload: bankerRequest(dir.Candidates),
		})
		return true

	case events.BankerSelectionHide:
		d.router.Deliver(pending.Key(modal.BankerChoice), pending.Request{Type: pending.RequestClose})
		return true

	case events.Question:
		return d.deliverMounted(modal.QuestionAnswer, questionRequest(dir))

	case events.QuestionReview:
		return d.deliverMounted(modal.QuestionReview, reviewRequest(dir))

	case events.QuestionReport:
		level, text := reportText(dir)
		d.renderer.Toast(level, text)
		return true

	case events.Notice:
		text := dir.Text
		if !dir.Plain {
			text = strings.TrimSpace(text)
		}
		if strings.TrimSpace(text) == "" {
			return false
		}
		d.renderer.Toast(dir.Level, text)
		return true

	default:
		log.Warn().Str("directive", fmt.Sprintf("%T", dir)).Msg("unhandled directive")
		return false
	}
}

// deliverMounted opens a workflow that has no pending queue. Without a mounted
// target the message is a logged no-op.
func (d *Dispatcher) deliverMounted(name modal.Name, req modal.OpenRequest) bool {
	key := pending.Key(name)
	if !d.router.Mounted(key) {
		log.Warn().
			Str("workflow", string(name)).
			Msg("workflow not mounted, ignoring request")
		return false
	}
	d.router.Deliver(key, pending.Request{Type: pending.RequestOpen, Payload: req})
	return true
}

func bankerRequest(candidates []events.Candidate) modal.OpenRequest {
	choices := make([]modal.Choice, 0, len(candidates))
	for _, c := range candidates {
		choices = append(choices, modal.Choice{
			ID:    strconv.FormatInt(c.ID, 10),
			Label: c.Username,
		})
	}
	return modal.OpenRequest{
		Prompt:  "Выберите банкира",
		Choices: choices,
	}
}

func questionRequest(q events.Question) modal.OpenRequest {
	choices := make([]modal.Choice, 0, len(q.Choices))
	for i, c := range q.Choices {
		choices = append(choices, modal.Choice{ID: strconv.Itoa(i), Label: c})
	}
	prompt := q.Text
	if q.From != "" {
		prompt = fmt.Sprintf("%s спрашивает: %s", q.From, q.Text)
	}
	return modal.OpenRequest{
		Prompt:   prompt,
		Choices:  choices,
		Token:    q.AskToken,
		FreeText: len(choices) == 0,
		Subject:  q.QuestionID,
	}
}

func reviewRequest(r events.QuestionReview) modal.OpenRequest {
	player := r.Player
	if player == "" {
		player = defaultPlayerName
	}
	return modal.OpenRequest{
		Prompt: fmt.Sprintf("%s\n%s ответил: %s", r.Question, player, r.Answer),
		Choices: []modal.Choice{
			{ID: ReviewApprove, Label: "Верно"},
			{ID: ReviewReject, Label: "Неверно"},
		},
		Token:   r.AskToken,
		Subject: r.QuestionID,
	}
}

func reportText(r events.QuestionReport) (events.Level, string) {
	player := r.Player
	if player == "" {
		player = defaultPlayerName
	}
	switch {
	case r.Correct == nil:
		level := r.Level
		if level == "" {
			level = events.LevelInfo
		}
		return level, fmt.Sprintf("%s ответил на вопрос №%s.", player, r.QuestionID)
	case *r.Correct:
		return events.LevelSuccess, fmt.Sprintf("%s ответил верно на вопрос №%s.", player, r.QuestionID)
	default:
		return events.LevelWarning, fmt.Sprintf("%s ответил неверно на вопрос №%s.", player, r.QuestionID)
	}
}
