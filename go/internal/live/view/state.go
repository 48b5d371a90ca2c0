package view

import (
	"github.com/google/uuid"
)

// SpecialRole values as the server encodes them
const (
	SpecialRoleNone       = 0
	SpecialRoleBanker     = 1
	SpecialRolePolitician = 2
)

// maxUpgradableRoleID is the highest role id that can still be upgraded from
const maxUpgradableRoleID = 3

// Player is one row of the authoritative player list
type Player struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	Money       int64  `json:"money"`
	Influence   int    `json:"influence"`
	IsObserver  bool   `json:"is_observer"`
	IsActive    bool   `json:"is_active"`
	SpecialRole int    `json:"special_role"`
	RoleID      int    `json:"role_id"`
}

// Candidate is an electable player
type Candidate struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Election is the voting part of the view
type Election struct {
	IsVoting         bool        `json:"is_voting"`
	RemainingSeconds *int        `json:"remaining_seconds,omitempty"`
	Candidates       []Candidate `json:"candidates"`
}

// Wallet is the self panel: the numbers shown for the signed-in player
type Wallet struct {
	Money     int64  `json:"money"`
	Influence int    `json:"influence"`
	Role      string `json:"role"`
}

// State is the local projection of the authoritative game state. It is only
// ever replaced through Apply.
type State struct {
	GameID      uuid.UUID `json:"game_id"`
	Self        *Player   `json:"self,omitempty"`
	Players     []Player  `json:"players"`
	Observer    bool      `json:"is_observer"`
	Wallet      Wallet    `json:"wallet"`
	BankBalance int64     `json:"bank_balance"`
	Paused      bool      `json:"paused"`
	Election    Election  `json:"election"`
}

// NewState returns the empty view created when the channel opens
func NewState(gameID uuid.UUID, observer bool) State {
	return State{
		GameID:   gameID,
		Observer: observer,
	}
}
