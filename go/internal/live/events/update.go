package events

// Update is a possibly-partial authoritative snapshot. Nil pointers mean the
// field was absent from the frame.
type Update struct {
	Money             *int64         `json:"money,omitempty"`
	Influence         *int           `json:"influence,omitempty"`
	Role              *string        `json:"role,omitempty"`
	BankBalance       *int64         `json:"bank_balance,omitempty"`
	ElapsedSeconds    *float64       `json:"elapsed_seconds,omitempty"`
	Paused            *bool          `json:"paused,omitempty"`
	IsVoting          *bool          `json:"is_voting,omitempty"`
	ElectionRemaining *int           `json:"election_remaining,omitempty"`
	Players           []PlayerRecord `json:"players,omitempty"`
}

func (Update) Type() MessageType { return MessageTypeUpdate }
func (Update) isMessage()        {}

// HasPlayers reports whether the snapshot carried a player list (possibly empty)
func (u Update) HasPlayers() bool {
	return u.Players != nil
}

// PlayerRecord is one entry of the server-ordered player list
type PlayerRecord struct {
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
