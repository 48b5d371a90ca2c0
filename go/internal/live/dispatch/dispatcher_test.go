package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bizmonopoly/go/internal/live/clock"
	"github.com/mcdev12/bizmonopoly/go/internal/live/commands"
	"github.com/mcdev12/bizmonopoly/go/internal/live/events"
	"github.com/mcdev12/bizmonopoly/go/internal/live/flash"
	"github.com/mcdev12/bizmonopoly/go/internal/live/modal"
	"github.com/mcdev12/bizmonopoly/go/internal/live/ui"
	"github.com/mcdev12/bizmonopoly/go/internal/live/view"
)

// inlineScheduler completes submits immediately, as if the network answered
// before the next loop iteration
type inlineScheduler struct{}

func (inlineScheduler) Async(work func() func()) { work()() }

type fakeCommander struct {
	mu      sync.Mutex
	votes   []int64
	bankers []int64
	answers []commands.Answer
	grades  []bool
	result  commands.Result
	err     error
}

func (c *fakeCommander) CastVote(_ context.Context, id int64) (commands.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.votes = append(c.votes, id)
	return c.result, c.err
}

func (c *fakeCommander) ChooseBanker(_ context.Context, id int64) (commands.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bankers = append(c.bankers, id)
	return c.result, c.err
}

func (c *fakeCommander) AnswerQuestion(_ context.Context, a commands.Answer) (commands.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers = append(c.answers, a)
	return c.result, c.err
}

func (c *fakeCommander) GradeAnswer(_ context.Context, _ int64, approved bool, _ string) (commands.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grades = append(c.grades, approved)
	return c.result, c.err
}

type fixture struct {
	d         *Dispatcher
	rec       *ui.Recorder
	commander *fakeCommander
	flash     *flash.MemoryStore
	fake      *clockwork.FakeClock
}

func newFixture(t *testing.T, observer bool, scheduler modal.Scheduler) *fixture {
	t.Helper()
	f := &fixture{
		rec:       ui.NewRecorder(),
		commander: &fakeCommander{},
		flash:     flash.NewMemoryStore(),
		fake:      clockwork.NewFakeClock(),
	}
	session := view.NewSession(uuid.New(), "Ann", "csrf", observer)
	f.d = New(Config{
		Session:   session,
		Clock:     clock.New(f.fake, 0, false),
		Renderer:  f.rec,
		Commander: f.commander,
		Flash:     f.flash,
		Scheduler: scheduler,
	})
	return f
}

func (f *fixture) frame(t *testing.T, frame string) {
	t.Helper()
	require.NoError(t, f.d.HandleFrame(context.Background(), []byte(frame)))
}

const rosterFrame = `{"type":"update","data":{"players":[
	{"id":1,"username":"Ann","role":"Предприниматель","money":100,"influence":1,"is_active":true,"role_id":1},
	{"id":2,"username":"Bob","role":"Рабочий","money":50,"influence":0,"is_active":true,"role_id":1},
	{"id":3,"username":"Cid","role":"Рабочий","money":50,"influence":0,"is_active":true,"role_id":1}
]}}`

func TestQuestionReportToast(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})

	f.frame(t, `{"type":"personal","message":{"data":{"kind":"question_report","player":"Ann","question_id":7,"correct":true}}}`)
	f.frame(t, `{"type":"personal","message":{"data":{"kind":"question_report","question_id":8,"correct":false}}}`)
	f.frame(t, `{"type":"personal","message":{"data":{"kind":"question_report","player":"Bob","question_id":"9"}}}`)

	assert.Equal(t, []ui.Toast{
		{Level: events.LevelSuccess, Text: "Ann ответил верно на вопрос №7."},
		{Level: events.LevelWarning, Text: "Игрок ответил неверно на вопрос №8."},
		{Level: events.LevelInfo, Text: "Bob ответил на вопрос №9."},
	}, f.rec.ToastList())
}

func TestQuestionReportUnknownOutcome(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})

	f.frame(t, `{"type":"personal","message":{"data":{"kind":"question_report","player":"Ann","question_id":7,"correct":0}}}`)
	f.frame(t, `{"type":"personal","message":{"level":"success","data":{"kind":"question_report","player":"Bob","question_id":8}}}`)

	assert.Equal(t, []ui.Toast{
		{Level: events.LevelInfo, Text: "Ann ответил на вопрос №7."},
		{Level: events.LevelSuccess, Text: "Bob ответил на вопрос №8."},
	}, f.rec.ToastList())
}

func TestNoticeToasts(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})

	f.frame(t, `{"type":"personal","message":"Вам перевели 100"}`)
	f.frame(t, `{"type":"personal","message":{"message":"  Недостаточно средств  ","level":"error"}}`)
	f.frame(t, `{"type":"personal","message":{"message":"   "}}`)
	f.frame(t, `{"type":"personal","message":""}`)

	assert.Equal(t, []ui.Toast{
		{Level: events.LevelInfo, Text: "Вам перевели 100"},
		{Level: events.LevelError, Text: "Недостаточно средств"},
	}, f.rec.ToastList())
}

func TestBankerStartThenHideBeforeMountNetsClosed(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})

	f.frame(t, `{"type":"personal","message":{"data":{"kind":"banker_selection_started","candidates":[{"id":2,"username":"Bob"}]}}}`)
	f.frame(t, `{"type":"personal","message":{"data":{"kind":"banker_selection_hide"}}}`)

	assert.Equal(t, 2, f.d.Pending(modal.BankerChoice))
	assert.Empty(t, f.rec.ModalStates(modal.BankerChoice))

	f.d.MountWorkflows()

	assert.Equal(t, 0, f.d.Pending(modal.BankerChoice))
	assert.Equal(t, modal.StateClosed, f.d.Workflow(modal.BankerChoice).State())
	assert.Equal(t, []string{"open", "closed"}, f.rec.ModalStates(modal.BankerChoice))
}

func TestBankerQueueStartsFreshAfterDrain(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})

	f.frame(t, `{"type":"personal","message":{"data":{"kind":"banker_selection_started","candidates":[{"id":2,"username":"Bob"}]}}}`)
	f.d.MountWorkflows()
	require.Equal(t, modal.StateOpen, f.d.Workflow(modal.BankerChoice).State())

	f.d.UnmountWorkflows()
	f.frame(t, `{"type":"personal","message":{"data":{"kind":"banker_selection_hide"}}}`)
	assert.Equal(t, 1, f.d.Pending(modal.BankerChoice))
	assert.Equal(t, modal.StateOpen, f.d.Workflow(modal.BankerChoice).State())

	f.d.MountWorkflows()
	assert.Equal(t, modal.StateClosed, f.d.Workflow(modal.BankerChoice).State())
}

func TestBankerChoiceSubmit(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})
	f.d.MountWorkflows()

	f.frame(t, `{"type":"personal","message":{"data":{"kind":"banker_selection_started","candidates":[{"id":2,"username":"Bob"},{"id":3,"username":"Cid"}]}}}`)
	wf := f.d.Workflow(modal.BankerChoice)
	require.True(t, wf.Select("3"))
	require.True(t, wf.Submit(context.Background()))

	assert.Equal(t, []int64{3}, f.commander.bankers)
	assert.Equal(t, modal.StateClosed, wf.State())
	assert.Equal(t, []ui.Toast{{Level: events.LevelSuccess, Text: "Банкир выбран."}}, f.rec.ToastList())
}

func TestQuestionIgnoredUntilMounted(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})
	frame := `{"type":"personal","message":{"data":{"kind":"question","question_id":12,"text":"Столица?","ask_token":"tok-1"}}}`

	f.frame(t, frame)
	assert.Equal(t, modal.StateClosed, f.d.Workflow(modal.QuestionAnswer).State())
	assert.Equal(t, 0, f.d.Pending(modal.QuestionAnswer))

	f.d.MountWorkflows()
	f.frame(t, frame)

	wf := f.d.Workflow(modal.QuestionAnswer)
	require.Equal(t, modal.StateOpen, wf.State())
	snap := wf.Snapshot()
	assert.True(t, snap.FreeText)
	assert.Empty(t, snap.Choices)
}

func TestQuestionAnswerEchoesToken(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})
	f.d.MountWorkflows()
	f.commander.result = commands.Result{NoContent: true}

	f.frame(t, `{"type":"personal","message":{"data":{"kind":"question","question_id":12,"text":"2+2?","choices":["3","4"],"ask_token":"tok-1","from":"Pol"}}}`)
	wf := f.d.Workflow(modal.QuestionAnswer)
	require.True(t, wf.Select("1"))
	require.True(t, wf.Submit(context.Background()))

	require.Len(t, f.commander.answers, 1)
	got := f.commander.answers[0]
	assert.Equal(t, int64(12), got.QuestionID)
	assert.Equal(t, "tok-1", got.AskToken)
	require.NotNil(t, got.ChoiceIndex)
	assert.Equal(t, 1, *got.ChoiceIndex)

	// no-content replies close silently
	assert.Equal(t, modal.StateClosed, wf.State())
	assert.Empty(t, f.rec.ToastList())
}

func TestQuestionReviewGrades(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})
	f.d.MountWorkflows()

	f.frame(t, `{"type":"personal","message":{"data":{"kind":"question_review","question_id":5,"question":"Почему?","player":"Bob","player_id":2,"answer":"потому","ask_token":"t"}}}`)
	wf := f.d.Workflow(modal.QuestionReview)
	require.Equal(t, modal.StateOpen, wf.State())
	require.True(t, wf.Select(ReviewReject))
	require.True(t, wf.Submit(context.Background()))

	assert.Equal(t, []bool{false}, f.commander.grades)
}

func TestElectionVoteFailureKeepsSelection(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})
	f.frame(t, rosterFrame)
	f.commander.err = &commands.APIError{StatusCode: 400, Reason: "Голосование завершено"}

	f.d.OpenElectionVote()
	wf := f.d.Workflow(modal.ElectionVote)
	require.Len(t, wf.Snapshot().Choices, 2)
	require.True(t, wf.Select("2"))
	require.True(t, wf.Submit(context.Background()))

	assert.Equal(t, []int64{2}, f.commander.votes)
	assert.Equal(t, modal.StateOpen, wf.State())
	assert.Equal(t, "2", wf.Snapshot().SelectedID)
	assert.Equal(t, []ui.Toast{{Level: events.LevelError, Text: "Голосование завершено"}}, f.rec.ToastList())
}

func TestElectionCandidatesRefreshInPlace(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})
	f.frame(t, rosterFrame)
	f.d.OpenElectionVote()
	wf := f.d.Workflow(modal.ElectionVote)
	require.True(t, wf.Select("3"))

	// Bob goes inactive; Cid stays selected
	f.frame(t, `{"type":"update","data":{"players":[
		{"id":1,"username":"Ann","is_active":true},
		{"id":2,"username":"Bob","is_active":false},
		{"id":3,"username":"Cid","is_active":true}
	]}}`)
	assert.Equal(t, []modal.Choice{{ID: "3", Label: "Cid"}}, wf.Snapshot().Choices)
	assert.Equal(t, "3", wf.Snapshot().SelectedID)

	// Cid leaves too; the selection is cleared
	f.frame(t, `{"type":"update","data":{"players":[
		{"id":1,"username":"Ann","is_active":true},
		{"id":3,"username":"Cid","is_active":true,"is_observer":true}
	]}}`)
	assert.Empty(t, wf.Snapshot().Choices)
	assert.Empty(t, wf.Snapshot().SelectedID)
}

func TestResyncThenPauseFreezesClock(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})
	f.fake.Advance(30 * time.Second)

	f.frame(t, `{"type":"update","data":{"elapsed_seconds":120,"paused":true}}`)
	assert.Equal(t, "00:02:00", f.d.Clock().RenderTick())
	assert.True(t, f.d.Session().Paused())

	f.fake.Advance(10 * time.Second)
	assert.Equal(t, "00:02:00", f.d.Clock().RenderTick())

	f.frame(t, `{"type":"update","data":{"paused":false}}`)
	f.fake.Advance(5 * time.Second)
	assert.Equal(t, "00:02:05", f.d.Clock().RenderTick())
}

func TestPausedClockStaysFrozenAcrossTicks(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan []byte)
	errCh := make(chan error, 1)
	go func() { errCh <- f.d.Run(ctx, frames) }()

	frames <- []byte(`{"type":"update","data":{"elapsed_seconds":120,"paused":true}}`)
	require.NoError(t, f.fake.BlockUntilContext(ctx, 1))

	for i := 1; i <= 10; i++ {
		f.fake.Advance(clock.DefaultTickInterval)
		require.Eventually(t, func() bool {
			return len(f.rec.TickList()) >= i
		}, time.Second, time.Millisecond)
	}

	for _, tick := range f.rec.TickList() {
		assert.Equal(t, "00:02:00", tick)
	}

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestObserverWalletUntouched(t *testing.T) {
	f := newFixture(t, true, inlineScheduler{})

	f.frame(t, `{"type":"update","data":{"money":999,"influence":5,"role":"Банкир"}}`)
	f.frame(t, rosterFrame)

	assert.Equal(t, view.Wallet{}, f.d.State().Wallet)
	assert.Nil(t, f.d.Published().Frame.Receivers)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})

	f.frame(t, `{"type":`)
	f.frame(t, ``)
	f.frame(t, `{"type":"chat"}`)
	f.frame(t, `{"type":"update","data":{"bank_balance":5000}}`)

	assert.Equal(t, int64(5000), f.d.State().BankBalance)
	require.Len(t, f.rec.Frames, 1)
}

func TestGameDeletedEndsSession(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})
	f.d.MountWorkflows()
	f.frame(t, `{"type":"personal","message":{"data":{"kind":"banker_selection_started","candidates":[{"id":2,"username":"Bob"}]}}}`)

	err := f.d.HandleFrame(context.Background(), []byte(`{"type":"game_deleted","name":"Весна"}`))
	require.ErrorIs(t, err, ErrSessionEnded)

	assert.Equal(t, []string{DefaultRedirect}, f.rec.Navigated)
	assert.Equal(t, modal.StateClosed, f.d.Workflow(modal.BankerChoice).State())
	assert.True(t, f.d.Published().Ended)

	msg, err := f.flash.Pop(context.Background(), "Ann")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, flash.Message{Text: "Игра «Весна» была удалена", Level: "warning"}, *msg)

	// nothing reconciles afterwards
	err = f.d.HandleFrame(context.Background(), []byte(`{"type":"update","data":{"bank_balance":1}}`))
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.Equal(t, int64(0), f.d.State().BankBalance)
}

func TestGameDeletedDefaults(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})

	err := f.d.HandleFrame(context.Background(), []byte(`{"type":"game_deleted","redirect":"/lobby/"}`))
	require.ErrorIs(t, err, ErrSessionEnded)

	assert.Equal(t, []string{"/lobby/"}, f.rec.Navigated)
	msg, err := f.flash.Pop(context.Background(), "Ann")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "Игра «Название игры» была удалена", msg.Text)
}

func TestRunProcessesFramesInOrder(t *testing.T) {
	f := newFixture(t, false, nil)
	frames := make(chan []byte, 4)
	frames <- []byte(`{"type":"update","data":{"bank_balance":10}}`)
	frames <- []byte(`{"type":"update","data":{"bank_balance":20}}`)
	frames <- []byte(`{"type":"game_deleted","name":"x"}`)
	frames <- []byte(`{"type":"update","data":{"bank_balance":30}}`)

	err := f.d.Run(context.Background(), frames)
	require.NoError(t, err)

	require.Len(t, f.rec.Frames, 2)
	assert.Equal(t, int64(10), f.rec.Frames[0].State.BankBalance)
	assert.Equal(t, int64(20), f.rec.Frames[1].State.BankBalance)
	assert.Equal(t, int64(20), f.d.Published().Frame.State.BankBalance)
}

func TestRunStopsOnClosedChannelAndCancel(t *testing.T) {
	f := newFixture(t, false, nil)
	frames := make(chan []byte)
	close(frames)
	assert.ErrorIs(t, f.d.Run(context.Background(), frames), ErrChannelClosed)

	g := newFixture(t, false, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.d.Run(ctx, make(chan []byte))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, g.d.Input(func() {}))
}

func TestRunAppliesSubmitResultOnLoop(t *testing.T) {
	f := newFixture(t, false, nil)
	f.frame(t, rosterFrame)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames := make(chan []byte)
	errCh := make(chan error, 1)
	go func() { errCh <- f.d.Run(ctx, frames) }()

	state := make(chan modal.State, 1)
	require.True(t, f.d.Input(func() {
		f.d.OpenElectionVote()
		wf := f.d.Workflow(modal.ElectionVote)
		wf.Select("2")
		wf.Submit(ctx)
		// the result is posted back, so the modal is still submitting here
		state <- wf.State()
	}))
	assert.Equal(t, modal.StateSubmitting, <-state)

	require.Eventually(t, func() bool {
		return len(f.rec.ToastList()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Ваш голос учтён.", f.rec.ToastList()[0].Text)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunCommandToasts(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})

	f.d.RunCommand(context.Background(), "toggle_pause", func(context.Context) (string, error) {
		return "", &commands.APIError{StatusCode: 403, Reason: "Только банкир может ставить паузу"}
	})
	f.d.RunCommand(context.Background(), "leave", func(context.Context) (string, error) {
		return "", errors.New("connection reset")
	})
	f.d.RunCommand(context.Background(), "noop", func(context.Context) (string, error) { return "", nil })
	f.d.RunCommand(context.Background(), "transfer", func(context.Context) (string, error) {
		return "Перевод выполнен", nil
	})

	assert.Equal(t, []ui.Toast{
		{Level: events.LevelError, Text: "Только банкир может ставить паузу"},
		{Level: events.LevelError, Text: "Не удалось выполнить действие. Попробуйте ещё раз."},
		{Level: events.LevelSuccess, Text: "Перевод выполнен"},
	}, f.rec.ToastList())
}

func TestModeSwitchRederivesFrame(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})
	f.frame(t, rosterFrame)

	before := f.d.Published().Frame
	require.True(t, before.Permissions.CanUpgradeRole)
	require.Len(t, before.Receivers, 4)

	f.d.ToggleMode(context.Background(), func(context.Context) (bool, error) { return true, nil })

	got := f.d.Published().Frame
	assert.True(t, got.State.Observer)
	assert.True(t, f.d.Session().Observer())
	assert.Nil(t, got.Receivers)
	assert.False(t, got.Permissions.CanUpgradeRole)
	assert.Equal(t, []ui.Toast{{Level: events.LevelSuccess, Text: "Вы перешли в режим наблюдателя"}}, f.rec.ToastList())

	// Numbers stay put until the next update
	assert.Equal(t, int64(100), got.State.Self.Money)

	f.d.ToggleMode(context.Background(), func(context.Context) (bool, error) { return false, nil })
	assert.False(t, f.d.Published().Frame.State.Observer)
	assert.Len(t, f.d.Published().Frame.Receivers, 4)
}

func TestModeSwitchFailureKeepsMode(t *testing.T) {
	f := newFixture(t, false, inlineScheduler{})
	f.frame(t, rosterFrame)

	f.d.ToggleMode(context.Background(), func(context.Context) (bool, error) {
		return false, &commands.APIError{StatusCode: 403, Reason: "Недоступно"}
	})

	assert.False(t, f.d.Published().Frame.State.Observer)
	assert.Len(t, f.d.Published().Frame.Receivers, 4)
	assert.Equal(t, []ui.Toast{{Level: events.LevelError, Text: "Недоступно"}}, f.rec.ToastList())
}
