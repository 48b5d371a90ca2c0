package events

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Level is the severity a toast is shown at
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// ParseLevel normalises a server-provided level, falling back to info
func ParseLevel(s string) Level {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelInfo, LevelSuccess, LevelWarning, LevelError:
		return l
	default:
		return LevelInfo
	}
}

// Kind tags a structured personal directive
type Kind string

const (
	KindBankerSelectionStarted Kind = "banker_selection_started"
	KindBankerSelectionHide    Kind = "banker_selection_hide"
	KindQuestion               Kind = "question"
	KindQuestionReview         Kind = "question_review"
	KindQuestionReport         Kind = "question_report"
)

// Personal is a unicast message carrying exactly one Directive
type Personal struct {
	Directive Directive
}

func (Personal) Type() MessageType { return MessageTypePersonal }
func (Personal) isMessage()        {}

// Directive is the closed set of personal message variants. Notice is the
// fallback for messages without a recognised kind.
type Directive interface {
	directive()
}

// Candidate is a selectable player in a server-initiated choice
type Candidate struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type BankerSelectionStarted struct {
	Candidates []Candidate
}

type BankerSelectionHide struct{}

// Question asks this player to answer. An empty Choices means free text.
type Question struct {
	QuestionID int64
	Text       string
	Choices    []string
	AskToken   string
	From       string
}

// QuestionReview asks a politician to grade another player's free-text answer
type QuestionReview struct {
	QuestionID int64
	Question   string
	Player     string
	PlayerID   int64
	Answer     string
	AskToken   string
}

// QuestionReport tells a politician how a player answered. Correct is nil when
// the outcome is unknown; Level is then the server's level for the notice.
type QuestionReport struct {
	Player     string
	QuestionID string
	Correct    *bool
	Level      Level
}

// Notice is plain informational text. Plain is set when the server sent a
// bare string rather than a structured message.
type Notice struct {
	Text  string
	Level Level
	Plain bool
}

func (BankerSelectionStarted) directive() {}
func (BankerSelectionHide) directive()    {}
func (Question) directive()               {}
func (QuestionReview) directive()         {}
func (QuestionReport) directive()         {}
func (Notice) directive()                 {}

type structuredPersonal struct {
	Message json.RawMessage `json:"message"`
	Level   string          `json:"level"`
	Data    *directiveData  `json:"data"`
}

// directiveData is the union of every kind-specific field
type directiveData struct {
	Kind       Kind            `json:"kind"`
	Candidates []Candidate     `json:"candidates"`
	QuestionID json.RawMessage `json:"question_id"`
	Text       string          `json:"text"`
	Question   string          `json:"question"`
	Choices    []string        `json:"choices"`
	AskToken   string          `json:"ask_token"`
	From       string          `json:"from"`
	Player     string          `json:"player"`
	PlayerID   int64           `json:"player_id"`
	Answer     string          `json:"answer"`
	Correct    json.RawMessage `json:"correct"`
}

func decodePersonal(raw json.RawMessage, outerLevel string) (Personal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Personal{Directive: Notice{Level: LevelInfo}}, nil
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return Personal{}, err
		}
		return Personal{Directive: Notice{Text: text, Level: LevelInfo, Plain: true}}, nil
	}

	var msg structuredPersonal
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Personal{}, err
	}

	levelText := msg.Level
	if levelText == "" {
		levelText = outerLevel
	}
	level := ParseLevel(levelText)

	if msg.Data != nil {
		switch msg.Data.Kind {
		case KindBankerSelectionStarted:
			return Personal{Directive: BankerSelectionStarted{Candidates: msg.Data.Candidates}}, nil
		case KindBankerSelectionHide:
			return Personal{Directive: BankerSelectionHide{}}, nil
		case KindQuestion:
			text := msg.Data.Text
			if text == "" {
				text = msg.Data.Question
			}
			return Personal{Directive: Question{
				QuestionID: numericID(msg.Data.QuestionID),
				Text:       text,
				Choices:    msg.Data.Choices,
				AskToken:   msg.Data.AskToken,
				From:       msg.Data.From,
			}}, nil
		case KindQuestionReview:
			question := msg.Data.Question
			if question == "" {
				question = msg.Data.Text
			}
			return Personal{Directive: QuestionReview{
				QuestionID: numericID(msg.Data.QuestionID),
				Question:   question,
				Player:     msg.Data.Player,
				PlayerID:   msg.Data.PlayerID,
				Answer:     msg.Data.Answer,
				AskToken:   msg.Data.AskToken,
			}}, nil
		case KindQuestionReport:
			return Personal{Directive: QuestionReport{
				Player:     msg.Data.Player,
				QuestionID: scalarText(msg.Data.QuestionID),
				Correct:    parseCorrect(msg.Data.Correct),
				Level:      level,
			}}, nil
		}
	}

	return Personal{Directive: Notice{Text: scalarText(msg.Message), Level: level}}, nil
}

// parseCorrect accepts true, 1 and false. Anything else, 0 included, is an
// unknown outcome.
func parseCorrect(raw json.RawMessage) *bool {
	yes, no := true, false
	switch string(bytes.TrimSpace(raw)) {
	case "true", "1":
		return &yes
	case "false":
		return &no
	default:
		return nil
	}
}

// scalarText renders a JSON string or number as text
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func numericID(raw json.RawMessage) int64 {
	id, err := strconv.ParseInt(scalarText(raw), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
