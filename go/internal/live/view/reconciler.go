package view

import (
	"github.com/mcdev12/bizmonopoly/go/internal/live/events"
)

// Effects describes what a reconciliation changed so the caller can drive
// the clock, open workflows and the renderer.
type Effects struct {
	WalletChanged   bool
	BankChanged     bool
	PlayersChanged  bool
	ElectionChanged bool
	// Elapsed is set when the snapshot carried an authoritative elapsed time
	Elapsed *float64
	// Paused is set when the snapshot carried the pause flag
	Paused *bool
}

// Empty reports whether the snapshot changed nothing at all
func (e Effects) Empty() bool {
	return !e.WalletChanged && !e.BankChanged && !e.PlayersChanged &&
		!e.ElectionChanged && e.Elapsed == nil && e.Paused == nil
}

// Apply merges a snapshot into the previous view and returns the new view.
// Present fields overwrite, absent fields are kept. An observer view never
// has its own numbers written. prev is not modified.
func Apply(prev State, u events.Update, username string) (State, Effects) {
	next := prev
	var fx Effects

	if !prev.Observer {
		if u.Money != nil {
			next.Wallet.Money = *u.Money
			fx.WalletChanged = true
		}
		if u.Influence != nil {
			next.Wallet.Influence = *u.Influence
			fx.WalletChanged = true
		}
		if u.Role != nil {
			next.Wallet.Role = *u.Role
			fx.WalletChanged = true
		}
	}

	if u.BankBalance != nil {
		next.BankBalance = *u.BankBalance
		fx.BankChanged = true
	}

	if u.ElapsedSeconds != nil {
		elapsed := *u.ElapsedSeconds
		fx.Elapsed = &elapsed
	}

	if u.Paused != nil {
		paused := *u.Paused
		next.Paused = paused
		fx.Paused = &paused
	}

	if u.IsVoting != nil {
		next.Election.IsVoting = *u.IsVoting
		fx.ElectionChanged = true
	}
	if u.ElectionRemaining != nil {
		remaining := *u.ElectionRemaining
		next.Election.RemainingSeconds = &remaining
		fx.ElectionChanged = true
	}

	if u.HasPlayers() {
		next.Players, next.Self = rebuildPlayers(prev, u.Players, username)
		fx.PlayersChanged = true

		if next.Self != nil && !next.Observer && !next.Self.IsObserver {
			next.Wallet = Wallet{
				Money:     next.Self.Money,
				Influence: next.Self.Influence,
				Role:      next.Self.Role,
			}
			fx.WalletChanged = true
		}
	} else if prev.Self != nil {
		self := *prev.Self
		next.Self = &self
	}

	next.Election.Candidates = electionCandidates(next.Players, username)

	return next, fx
}

// rebuildPlayers replaces the list wholesale in server order and re-derives self
func rebuildPlayers(prev State, records []events.PlayerRecord, username string) ([]Player, *Player) {
	players := make([]Player, 0, len(records))
	var self *Player

	for _, r := range records {
		p := Player{
			ID:          r.ID,
			Username:    r.Username,
			Role:        r.Role,
			Money:       r.Money,
			Influence:   r.Influence,
			IsObserver:  r.IsObserver,
			IsActive:    r.IsActive,
			SpecialRole: r.SpecialRole,
			RoleID:      r.RoleID,
		}
		players = append(players, p)

		if self == nil && r.Username == username {
			s := p
			if prev.Observer {
				s.Money, s.Influence, s.Role, s.RoleID = 0, 0, "", 0
				if prev.Self != nil {
					s.Money = prev.Self.Money
					s.Influence = prev.Self.Influence
					s.Role = prev.Self.Role
					s.RoleID = prev.Self.RoleID
				}
			}
			self = &s
		}
	}

	return players, self
}

// electionCandidates is every active, non-observer player other than self
func electionCandidates(players []Player, username string) []Candidate {
	candidates := make([]Candidate, 0, len(players))
	for _, p := range players {
		if p.IsObserver || !p.IsActive || p.Username == username {
			continue
		}
		candidates = append(candidates, Candidate{ID: p.ID, Username: p.Username})
	}
	return candidates
}
