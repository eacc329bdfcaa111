package models

import (
	"encoding/json"
	"log/slog"

	"github.com/myrjola/flowcast/internal/errors"
)

// QuestionID identifies a question node. The empty QuestionID means "no next question".
type QuestionID string

// AnswerKind determines how a question is answered and which branching rules it carries.
type AnswerKind string

const (
	AnswerKindText    AnswerKind = "text"
	AnswerKindNumber  AnswerKind = "number"
	AnswerKindBoolean AnswerKind = "boolean"
	AnswerKindChoice  AnswerKind = "choice"
)

// Valid reports whether k is one of the known answer kinds.
func (k AnswerKind) Valid() bool {
	switch k {
	case AnswerKindText, AnswerKindNumber, AnswerKindBoolean, AnswerKindChoice:
		return true
	}
	return false
}

var ErrUnknownKind = errors.NewSentinel("unknown answer kind")

// Image is media sent together with a question.
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId,omitempty"`
	Alt      string `json:"alt,omitempty"`
}

// Question is a node in the question graph.
type Question struct {
	ID      QuestionID
	Text    string
	Caption string
	Image   *Image
	// Order is used for default traversal. The question with the lowest order is the entry point of the flow.
	Order int
	// DefaultNext is the fallback next question for every kind. Empty ends the flow.
	DefaultNext QuestionID
	// Input carries the answer kind together with the branching rules that only make sense for that kind.
	Input Input
}

// Kind returns the answer kind of the question.
func (q Question) Kind() AnswerKind {
	if q.Input == nil {
		return ""
	}
	return q.Input.Kind()
}

// HasImage reports whether the question is sent with media.
func (q Question) HasImage() bool {
	return q.Image != nil && q.Image.URL != ""
}

// Input is one of [TextInput], [NumberInput], [BooleanInput] or [ChoiceInput].
type Input interface {
	Kind() AnswerKind
	isInput()
}

// TextInput accepts free text and always continues to the default next question.
type TextInput struct{}

// NumberInput accepts a number and branches on the first matching rule.
type NumberInput struct {
	// DisplayDigits is a display hint for the expected number of digits. Zero means no hint. It is not enforced.
	DisplayDigits int          `json:"displayDigits,omitempty"`
	Rules         []NumberRule `json:"rules,omitempty"`
}

// BooleanInput accepts yes or no. Empty targets fall back to the default next question.
type BooleanInput struct {
	IfTrue  QuestionID `json:"ifTrue,omitempty"`
	IfFalse QuestionID `json:"ifFalse,omitempty"`
}

// ChoiceInput accepts one of Options.
type ChoiceInput struct {
	// Options is the ordered answer vocabulary. The order is also the display order.
	Options []string      `json:"options"`
	Routes  []ChoiceRoute `json:"routes,omitempty"`
}

func (TextInput) Kind() AnswerKind    { return AnswerKindText }
func (NumberInput) Kind() AnswerKind  { return AnswerKindNumber }
func (BooleanInput) Kind() AnswerKind { return AnswerKindBoolean }
func (ChoiceInput) Kind() AnswerKind  { return AnswerKindChoice }

func (TextInput) isInput()    {}
func (NumberInput) isInput()  {}
func (BooleanInput) isInput() {}
func (ChoiceInput) isInput()  {}

// Operator compares a numeric answer against a rule.
type Operator string

const (
	OpLT      Operator = "lt"
	OpLTE     Operator = "lte"
	OpEQ      Operator = "eq"
	OpGTE     Operator = "gte"
	OpGT      Operator = "gt"
	OpBetween Operator = "between"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpLT, OpLTE, OpEQ, OpGTE, OpGT, OpBetween:
		return true
	}
	return false
}

// NumberRule routes numeric answers. Value2 is the inclusive upper bound and is required iff Op is OpBetween.
type NumberRule struct {
	Op     Operator   `json:"op"`
	Value  float64    `json:"value"`
	Value2 *float64   `json:"value2,omitempty"`
	Next   QuestionID `json:"next,omitempty"`
}

// ChoiceRoute routes a choice answer. An empty Next explicitly ends the flow and does not fall back to the default.
type ChoiceRoute struct {
	Option string     `json:"option"`
	Next   QuestionID `json:"next"`
}

// EncodeInput serialises the kind specific part of a question for storage.
func EncodeInput(in Input) ([]byte, error) {
	if in == nil {
		return nil, errors.Wrap(ErrUnknownKind, "encode nil input")
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrap(err, "marshal input", slog.String("kind", string(in.Kind())))
	}
	return data, nil
}

// DecodeInput is the inverse of [EncodeInput]. Fields that belong to other kinds are ignored.
func DecodeInput(kind AnswerKind, data []byte) (Input, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	var (
		in  Input
		err error
	)
	switch kind {
	case AnswerKindText:
		in = TextInput{}
	case AnswerKindNumber:
		var v NumberInput
		err = json.Unmarshal(data, &v)
		in = v
	case AnswerKindBoolean:
		var v BooleanInput
		err = json.Unmarshal(data, &v)
		in = v
	case AnswerKindChoice:
		var v ChoiceInput
		err = json.Unmarshal(data, &v)
		in = v
	default:
		return nil, errors.Wrap(ErrUnknownKind, "decode input", slog.String("kind", string(kind)))
	}
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal input", slog.String("kind", string(kind)))
	}
	return in, nil
}

type questionJSON struct {
	ID          QuestionID      `json:"id"`
	Text        string          `json:"text"`
	Caption     string          `json:"caption,omitempty"`
	Image       *Image          `json:"image,omitempty"`
	Order       int             `json:"order"`
	DefaultNext QuestionID      `json:"defaultNext,omitempty"`
	Kind        AnswerKind      `json:"kind"`
	Input       json.RawMessage `json:"input,omitempty"`
}

// MarshalJSON flattens the question with the answer kind next to the kind specific input.
func (q Question) MarshalJSON() ([]byte, error) {
	var (
		input json.RawMessage
		err   error
	)
	if q.Input != nil {
		if input, err = EncodeInput(q.Input); err != nil {
			return nil, err
		}
	}
	data, err := json.Marshal(questionJSON{
		ID:          q.ID,
		Text:        q.Text,
		Caption:     q.Caption,
		Image:       q.Image,
		Order:       q.Order,
		DefaultNext: q.DefaultNext,
		Kind:        q.Kind(),
		Input:       input,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal question", slog.String("id", string(q.ID)))
	}
	return data, nil
}

// UnmarshalJSON is the inverse of [Question.MarshalJSON].
func (q *Question) UnmarshalJSON(data []byte) error {
	var v questionJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Wrap(err, "unmarshal question")
	}
	in, err := DecodeInput(v.Kind, v.Input)
	if err != nil {
		return err
	}
	*q = Question{
		ID:          v.ID,
		Text:        v.Text,
		Caption:     v.Caption,
		Image:       v.Image,
		Order:       v.Order,
		DefaultNext: v.DefaultNext,
		Input:       in,
	}
	return nil
}
