package ui

import (
	"github.com/mcdev12/bizmonopoly/go/internal/live/events"
	"github.com/mcdev12/bizmonopoly/go/internal/live/modal"
	"github.com/mcdev12/bizmonopoly/go/internal/live/view"
)

// Frame is everything a render pass needs: the view plus the affordances
// derived from it for this render
type Frame struct {
	State        view.State       `json:"state"`
	Permissions  view.Permissions `json:"permissions"`
	VotingBanner bool             `json:"voting_banner"`
	Countdown    string           `json:"election_countdown,omitempty"`
	Players      []view.Player    `json:"visible_players"`
	Receivers    []view.Receiver  `json:"receivers"`
}

// NewFrame derives a frame from the current view
func NewFrame(s view.State, username string) Frame {
	return Frame{
		State:        s,
		Permissions:  view.Affordances(s),
		VotingBanner: view.VotingBanner(s),
		Countdown:    view.ElectionCountdown(s),
		Players:      view.VisiblePlayers(s),
		Receivers:    view.Receivers(s, username),
	}
}

// Renderer is the presentation sink driven by the dispatch loop
type Renderer interface {
	Render(f Frame)
	Toast(level events.Level, text string)
	ModalChanged(snap modal.Snapshot)
	ClockTick(text string)
	Navigate(url string)
}
