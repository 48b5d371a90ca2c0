package commands

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

const (
	StatusOK             = "ok"
	StatusDeleted        = "deleted"
	StatusLeft           = "left"
	StatusAlreadyRunning = "already_running"
)

// Transfer moves money to a receiver: "p<player id>", "bank" or "gov"
func (c *Client) Transfer(ctx context.Context, receiver string, amount int64) (Result, error) {
	form := url.Values{}
	form.Set("receiver_id", receiver)
	form.Set("amount", strconv.FormatInt(amount, 10))
	return c.post(ctx, c.gamePath("transfer"), form, true)
}

// TogglePause is fire-and-forget; the new state arrives as an update
func (c *Client) TogglePause(ctx context.Context) error {
	_, err := c.post(ctx, c.gamePath("toggle_pause"), nil, false)
	return err
}

// ToggleMode switches between player and observer. The confirmed flag is
// written back to the session.
func (c *Client) ToggleMode(ctx context.Context) (bool, error) {
	res, err := c.post(ctx, c.gamePath("toggle_mode"), nil, true)
	if err != nil {
		return false, err
	}
	if res.Status != StatusOK || res.IsObserver == nil {
		return false, fmt.Errorf("%w: toggle mode returned %q", ErrUnexpectedStatus, res.Status)
	}
	c.session.SetObserver(*res.IsObserver)
	return *res.IsObserver, nil
}

func (c *Client) DeleteGame(ctx context.Context) error {
	return c.expectStatus(ctx, "delete", StatusDeleted)
}

func (c *Client) LeaveGame(ctx context.Context) error {
	return c.expectStatus(ctx, "leave", StatusLeft)
}

// UpdateSettings posts the settings form as is
func (c *Client) UpdateSettings(ctx context.Context, settings url.Values) error {
	_, err := c.post(ctx, c.gamePath("update_settings"), settings, false)
	return err
}

func (c *Client) UpgradeRole(ctx context.Context) (Result, error) {
	return c.post(ctx, c.gamePath("upgrade_role"), nil, true)
}

// CastVote votes for a candidate in the running election
func (c *Client) CastVote(ctx context.Context, candidateID int64) (Result, error) {
	form := url.Values{}
	form.Set("candidate_id", strconv.FormatInt(candidateID, 10))
	return c.post(ctx, c.gamePath("election/vote"), form, true)
}

// StartElection starts an election early. Status is "already_running" when
// one is in progress.
func (c *Client) StartElection(ctx context.Context) (Result, error) {
	return c.post(ctx, c.gamePath("election/start"), nil, true)
}

func (c *Client) ChooseBanker(ctx context.Context, bankerID int64) (Result, error) {
	form := url.Values{}
	form.Set("banker_id", strconv.FormatInt(bankerID, 10))
	return c.post(ctx, c.gamePath("banker/choose"), form, true)
}

// AskQuestion sends a question to a player. A zero questionID lets the server
// pick one. May return NoContent.
func (c *Client) AskQuestion(ctx context.Context, targetPlayerID, questionID int64) (Result, error) {
	form := url.Values{}
	form.Set("target_player_id", strconv.FormatInt(targetPlayerID, 10))
	if questionID != 0 {
		form.Set("question_id", strconv.FormatInt(questionID, 10))
	}
	return c.post(ctx, c.gamePath("questions/ask"), form, true)
}

// Answer is a reply to a question: a choice index or free text
type Answer struct {
	QuestionID  int64
	ChoiceIndex *int
	Text        string
	AskToken    string
}

// AnswerQuestion may return NoContent
func (c *Client) AnswerQuestion(ctx context.Context, a Answer) (Result, error) {
	form := url.Values{}
	form.Set("question_id", strconv.FormatInt(a.QuestionID, 10))
	if a.ChoiceIndex != nil {
		form.Set("choice_index", strconv.Itoa(*a.ChoiceIndex))
	} else {
		form.Set("answer_text", a.Text)
	}
	form.Set("ask_token", a.AskToken)
	return c.post(ctx, c.gamePath("questions/answer"), form, true)
}

// GradeAnswer approves or rejects a pending free-text answer
func (c *Client) GradeAnswer(ctx context.Context, questionID int64, approved bool, askToken string) (Result, error) {
	form := url.Values{}
	form.Set("question_id", strconv.FormatInt(questionID, 10))
	form.Set("approved", strconv.FormatBool(approved))
	form.Set("ask_token", askToken)
	return c.post(ctx, c.gamePath("questions/grade"), form, true)
}

func (c *Client) expectStatus(ctx context.Context, action, want string) error {
	res, err := c.post(ctx, c.gamePath(action), nil, true)
	if err != nil {
		return err
	}
	if res.Status != want {
		return fmt.Errorf("%w: %s returned %q", ErrUnexpectedStatus, action, res.Status)
	}
	return nil
}
