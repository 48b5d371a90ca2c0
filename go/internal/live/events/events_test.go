package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePartialUpdate(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"update","data":{"paused":true}}`))
	require.NoError(t, err)

	update, ok := msg.(Update)
	require.True(t, ok)
	require.NotNil(t, update.Paused)
	assert.True(t, *update.Paused)
	assert.Nil(t, update.Money)
	assert.False(t, update.HasPlayers())
}

func TestDecodeEmptyPlayerListIsPresent(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"update","data":{"players":[]}}`))
	require.NoError(t, err)
	assert.True(t, msg.(Update).HasPlayers())
}

func TestDecodePlayers(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"update","data":{"players":[
		{"id":3,"username":"Ann","role":"Банкир","money":500,"influence":2,"is_observer":false,"is_active":true,"special_role":1,"role_id":2}
	]}}`))
	require.NoError(t, err)

	players := msg.(Update).Players
	require.Len(t, players, 1)
	assert.Equal(t, PlayerRecord{
		ID: 3, Username: "Ann", Role: "Банкир", Money: 500, Influence: 2,
		IsActive: true, SpecialRole: 1, RoleID: 2,
	}, players[0])
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"chat","message":"hi"}`))
	assert.True(t, errors.Is(err, ErrUnknownMessage))
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	assert.Error(t, err)

	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestDecodeGameDeleted(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"game_deleted","name":"Весна","redirect":"/games/list/"}`))
	require.NoError(t, err)
	assert.Equal(t, GameDeleted{Name: "Весна", Redirect: "/games/list/"}, msg)
}

func TestDecodePersonalDirectives(t *testing.T) {
	yes := true
	no := false

	tests := []struct {
		name  string
		frame string
		want  Directive
	}{
		{
			name:  "plain string",
			frame: `{"type":"personal","message":"Вам перевели 100"}`,
			want:  Notice{Text: "Вам перевели 100", Level: LevelInfo, Plain: true},
		},
		{
			name:  "structured with level",
			frame: `{"type":"personal","message":{"message":"Недостаточно средств","level":"ERROR"}}`,
			want:  Notice{Text: "Недостаточно средств", Level: LevelError},
		},
		{
			name:  "outer level used when inner missing",
			frame: `{"type":"personal","message":{"message":"ok"},"level":"success"}`,
			want:  Notice{Text: "ok", Level: LevelSuccess},
		},
		{
			name:  "unknown kind falls back to text",
			frame: `{"type":"personal","message":{"message":"hello","data":{"kind":"mystery"}}}`,
			want:  Notice{Text: "hello", Level: LevelInfo},
		},
		{
			name:  "banker selection started",
			frame: `{"type":"personal","message":{"message":"","data":{"kind":"banker_selection_started","candidates":[{"id":1,"username":"Bob"}]}}}`,
			want:  BankerSelectionStarted{Candidates: []Candidate{{ID: 1, Username: "Bob"}}},
		},
		{
			name:  "banker selection hide",
			frame: `{"type":"personal","message":{"data":{"kind":"banker_selection_hide"}}}`,
			want:  BankerSelectionHide{},
		},
		{
			name:  "question with choices",
			frame: `{"type":"personal","message":{"data":{"kind":"question","question_id":12,"text":"2+2?","choices":["3","4"],"ask_token":"tok-1","from":"Pol"}}}`,
			want:  Question{QuestionID: 12, Text: "2+2?", Choices: []string{"3", "4"}, AskToken: "tok-1", From: "Pol"},
		},
		{
			name:  "question review",
			frame: `{"type":"personal","message":{"data":{"kind":"question_review","question_id":"5","question":"Why?","player":"Ann","player_id":9,"answer":"because","ask_token":"t"}}}`,
			want:  QuestionReview{QuestionID: 5, Question: "Why?", Player: "Ann", PlayerID: 9, Answer: "because", AskToken: "t"},
		},
		{
			name:  "question report correct",
			frame: `{"type":"personal","message":{"data":{"kind":"question_report","player":"Ann","question_id":7,"correct":true}}}`,
			want:  QuestionReport{Player: "Ann", QuestionID: "7", Correct: &yes, Level: LevelInfo},
		},
		{
			name:  "question report numeric correct",
			frame: `{"type":"personal","message":{"data":{"kind":"question_report","player":"Ann","question_id":7,"correct":1}}}`,
			want:  QuestionReport{Player: "Ann", QuestionID: "7", Correct: &yes, Level: LevelInfo},
		},
		{
			name:  "question report incorrect",
			frame: `{"type":"personal","message":{"data":{"kind":"question_report","player":"Ann","question_id":7,"correct":false}}}`,
			want:  QuestionReport{Player: "Ann", QuestionID: "7", Correct: &no, Level: LevelInfo},
		},
		{
			name:  "question report zero is unknown",
			frame: `{"type":"personal","message":{"data":{"kind":"question_report","player":"Ann","question_id":7,"correct":0}}}`,
			want:  QuestionReport{Player: "Ann", QuestionID: "7", Level: LevelInfo},
		},
		{
			name:  "question report carries server level",
			frame: `{"type":"personal","message":{"level":"success","data":{"kind":"question_report","question_id":7}}}`,
			want:  QuestionReport{QuestionID: "7", Level: LevelSuccess},
		},
		{
			name:  "question id with trailing junk",
			frame: `{"type":"personal","message":{"data":{"kind":"question","question_id":"7abc","text":"?"}}}`,
			want:  Question{Text: "?"},
		},
		{
			name:  "question report unknown outcome",
			frame: `{"type":"personal","message":{"data":{"kind":"question_report","question_id":7}}}`,
			want:  QuestionReport{QuestionID: "7", Level: LevelInfo},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			personal, ok := msg.(Personal)
			require.True(t, ok)
			assert.Equal(t, tt.want, personal.Directive)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelWarning, ParseLevel(" Warning "))
	assert.Equal(t, LevelInfo, ParseLevel("critical"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
}
