package view

import (
	"fmt"
	"strconv"
)

// Permissions are role-gated affordances. Always recompute them from the
// current State.
type Permissions struct {
	CanUpgradeRole bool `json:"can_upgrade_role"`
	CanAskQuestion bool `json:"can_ask_question"`
	IsPolitician   bool `json:"is_politician"`
}

// Affordances derives the permissions for the signed-in player
func Affordances(s State) Permissions {
	if s.Self == nil {
		return Permissions{}
	}
	politician := s.Self.SpecialRole == SpecialRolePolitician
	if s.Observer {
		return Permissions{IsPolitician: politician}
	}
	return Permissions{
		CanUpgradeRole: s.Self.SpecialRole == SpecialRoleNone && s.Self.RoleID < maxUpgradableRoleID,
		CanAskQuestion: politician,
		IsPolitician:   politician,
	}
}

// VotingBanner reports whether the "voting in progress" indicator is shown.
// The countdown can be nonzero slightly before or after the voting flag flips.
func VotingBanner(s State) bool {
	if s.Election.IsVoting {
		return true
	}
	return s.Election.RemainingSeconds != nil && *s.Election.RemainingSeconds > 0
}

// ElectionCountdown formats the remaining election time as MM:SS
func ElectionCountdown(s State) string {
	if s.Election.RemainingSeconds == nil {
		return ""
	}
	secs := *s.Election.RemainingSeconds
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Receiver is a transfer destination option
type Receiver struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

const (
	ReceiverBank       = "bank"
	ReceiverGovernment = "gov"
)

// Receivers lists transfer destinations: other playing non-politicians, then
// the bank and the government. Observers cannot transfer and get none.
func Receivers(s State, username string) []Receiver {
	if s.Observer {
		return nil
	}
	receivers := make([]Receiver, 0, len(s.Players)+2)
	for _, p := range s.Players {
		if p.IsObserver || p.Username == username || p.SpecialRole == SpecialRolePolitician {
			continue
		}
		receivers = append(receivers, Receiver{Value: "p" + strconv.FormatInt(p.ID, 10), Label: p.Username})
	}
	return append(receivers,
		Receiver{Value: ReceiverBank, Label: "Банк"},
		Receiver{Value: ReceiverGovernment, Label: "Государство"},
	)
}

// VisiblePlayers is the player list as rendered: observers are not shown
func VisiblePlayers(s State) []Player {
	visible := make([]Player, 0, len(s.Players))
	for _, p := range s.Players {
		if !p.IsObserver {
			visible = append(visible, p)
		}
	}
	return visible
}
