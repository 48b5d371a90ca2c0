package ui

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bizmonopoly/go/internal/live/events"
	"github.com/mcdev12/bizmonopoly/go/internal/live/modal"
)

// LogRenderer renders to structured logs, for the headless client
type LogRenderer struct {
	lastTick string
}

func NewLogRenderer() *LogRenderer {
	return &LogRenderer{}
}

func (r *LogRenderer) Render(f Frame) {
	ev := log.Info().
		Int("players", len(f.Players)).
		Int64("bank_balance", f.State.BankBalance).
		Bool("paused", f.State.Paused).
		Bool("voting", f.VotingBanner).
		Bool("can_upgrade_role", f.Permissions.CanUpgradeRole).
		Bool("can_ask_question", f.Permissions.CanAskQuestion)
	if !f.State.Observer {
		ev = ev.
			Int64("money", f.State.Wallet.Money).
			Int("influence", f.State.Wallet.Influence).
			Str("role", f.State.Wallet.Role)
	}
	if f.Countdown != "" {
		ev = ev.Str("election_countdown", f.Countdown)
	}
	ev.Msg("view updated")
}

func (r *LogRenderer) Toast(level events.Level, text string) {
	log.WithLevel(toastLevel(level)).Str("toast", string(level)).Msg(text)
}

func (r *LogRenderer) ModalChanged(snap modal.Snapshot) {
	log.Info().
		Str("workflow", string(snap.Name)).
		Str("state", snap.State).
		Str("prompt", snap.Prompt).
		Int("choices", len(snap.Choices)).
		Str("selected_id", snap.SelectedID).
		Msg("modal changed")
}

// ClockTick only logs when the displayed second changes
func (r *LogRenderer) ClockTick(text string) {
	if text == r.lastTick {
		return
	}
	r.lastTick = text
	log.Debug().Str("elapsed", text).Msg("clock")
}

func (r *LogRenderer) Navigate(url string) {
	log.Info().Str("url", url).Msg("navigating away")
}

func toastLevel(level events.Level) zerolog.Level {
	switch level {
	case events.LevelError:
		return zerolog.ErrorLevel
	case events.LevelWarning:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
