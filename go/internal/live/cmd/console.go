package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bizmonopoly/go/internal/live/commands"
	"github.com/mcdev12/bizmonopoly/go/internal/live/dispatch"
	"github.com/mcdev12/bizmonopoly/go/internal/live/modal"
)

var errUsage = errors.New("usage")

// Actions are the fire-and-forget game commands the console can issue
type Actions interface {
	Transfer(ctx context.Context, receiver string, amount int64) (commands.Result, error)
	TogglePause(ctx context.Context) error
	ToggleMode(ctx context.Context) (bool, error)
	DeleteGame(ctx context.Context) error
	LeaveGame(ctx context.Context) error
	UpdateSettings(ctx context.Context, settings url.Values) error
	UpgradeRole(ctx context.Context) (commands.Result, error)
	StartElection(ctx context.Context) (commands.Result, error)
	AskQuestion(ctx context.Context, targetPlayerID, questionID int64) (commands.Result, error)
}

// Console turns stdin lines into loop input
type Console struct {
	d       *dispatch.Dispatcher
	actions Actions
}

func NewConsole(d *dispatch.Dispatcher, actions Actions) *Console {
	return &Console{d: d, actions: actions}
}

// Run reads lines until r is exhausted or ctx is done
func (c *Console) Run(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fn, err := c.Parse(ctx, line)
		if err != nil {
			log.Warn().Err(err).Str("input", line).Msg("bad command")
			continue
		}
		if !c.d.Input(fn) {
			return
		}
	}
}

var workflowAliases = map[string]modal.Name{
	"vote":   modal.ElectionVote,
	"banker": modal.BankerChoice,
	"answer": modal.QuestionAnswer,
	"review": modal.QuestionReview,
}

func workflowName(s string) (modal.Name, error) {
	if name, ok := workflowAliases[s]; ok {
		return name, nil
	}
	switch name := modal.Name(s); name {
	case modal.ElectionVote, modal.BankerChoice, modal.QuestionAnswer, modal.QuestionReview:
		return name, nil
	}
	return "", fmt.Errorf("unknown workflow %q", s)
}

// Parse turns one line into a function to run on the loop
func (c *Console) Parse(ctx context.Context, line string) (func(), error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errUsage
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		return func() {
			log.Info().Msg("commands: transfer <p<id>|bank|gov> <amount>, pause, mode, upgrade, elect, " +
				"ask <player id> [question id], leave, delete, settings key=value..., open vote, " +
				"select <workflow> <id>, text <workflow> <answer>, submit <workflow>, cancel <workflow>, state")
		}, nil

	case "transfer":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: transfer <receiver> <amount>", errUsage)
		}
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || amount <= 0 {
			return nil, fmt.Errorf("invalid amount %q", args[1])
		}
		return c.command(ctx, "transfer", func(ctx context.Context) (string, error) {
			res, err := c.actions.Transfer(ctx, args[0], amount)
			return res.Message, err
		}), nil

	case "pause":
		return c.command(ctx, "toggle_pause", func(ctx context.Context) (string, error) {
			return "", c.actions.TogglePause(ctx)
		}), nil

	case "mode":
		return func() { c.d.ToggleMode(ctx, c.actions.ToggleMode) }, nil

	case "upgrade":
		return c.command(ctx, "upgrade_role", func(ctx context.Context) (string, error) {
			res, err := c.actions.UpgradeRole(ctx)
			return res.Message, err
		}), nil

	case "elect":
		return c.command(ctx, "start_election", func(ctx context.Context) (string, error) {
			res, err := c.actions.StartElection(ctx)
			if err == nil && res.Status == commands.StatusAlreadyRunning {
				return "Выборы уже идут", nil
			}
			return res.Message, err
		}), nil

	case "ask":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("%w: ask <player id> [question id]", errUsage)
		}
		target, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid player id %q", args[0])
		}
		var question int64
		if len(args) == 2 {
			if question, err = strconv.ParseInt(args[1], 10, 64); err != nil {
				return nil, fmt.Errorf("invalid question id %q", args[1])
			}
		}
		return c.command(ctx, "ask_question", func(ctx context.Context) (string, error) {
			res, err := c.actions.AskQuestion(ctx, target, question)
			return res.Message, err
		}), nil

	case "leave":
		return c.command(ctx, "leave", func(ctx context.Context) (string, error) {
			return "", c.actions.LeaveGame(ctx)
		}), nil

	case "delete":
		return c.command(ctx, "delete", func(ctx context.Context) (string, error) {
			return "", c.actions.DeleteGame(ctx)
		}), nil

	case "settings":
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: settings key=value...", errUsage)
		}
		form := url.Values{}
		for _, kv := range args {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("invalid setting %q", kv)
			}
			form.Add(k, v)
		}
		return c.command(ctx, "update_settings", func(ctx context.Context) (string, error) {
			return "", c.actions.UpdateSettings(ctx, form)
		}), nil

	case "open":
		if len(args) != 1 || args[0] != "vote" {
			return nil, fmt.Errorf("%w: open vote", errUsage)
		}
		return c.d.OpenElectionVote, nil

	case "select", "text", "submit", "cancel":
		if len(args) < 1 {
			return nil, fmt.Errorf("%w: %s <workflow>", errUsage, cmd)
		}
		name, err := workflowName(args[0])
		if err != nil {
			return nil, err
		}
		return c.workflowInput(ctx, cmd, name, args[1:])

	case "state":
		return func() {
			data, err := json.Marshal(c.d.Published())
			if err != nil {
				log.Error().Err(err).Msg("failed to encode view")
				return
			}
			log.Info().RawJSON("view", data).Msg("current view")
		}, nil
	}

	return nil, fmt.Errorf("unknown command %q", cmd)
}

func (c *Console) workflowInput(ctx context.Context, cmd string, name modal.Name, args []string) (func(), error) {
	switch cmd {
	case "select":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: select <workflow> <id>", errUsage)
		}
		return func() {
			if !c.d.Workflow(name).Select(args[0]) {
				log.Warn().Str("workflow", string(name)).Str("id", args[0]).Msg("selection ignored")
			}
		}, nil
	case "text":
		text := strings.Join(args, " ")
		return func() {
			if !c.d.Workflow(name).SetText(text) {
				log.Warn().Str("workflow", string(name)).Msg("text ignored")
			}
		}, nil
	case "submit":
		return func() { c.d.Workflow(name).Submit(ctx) }, nil
	default:
		return func() { c.d.Workflow(name).Cancel() }, nil
	}
}

func (c *Console) command(ctx context.Context, name string, fn func(ctx context.Context) (string, error)) func() {
	return func() { c.d.RunCommand(ctx, name, fn) }
}
