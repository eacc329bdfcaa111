package models

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"

	"github.com/myrjola/flowcast/internal/errors"
)

// ErrAnswerMismatch is returned when an answer does not fit the question it is recorded for.
var ErrAnswerMismatch = errors.NewSentinel("answer does not match question")

// Answer is a typed answer. The zero value has no kind and matches no question.
type Answer struct {
	kind    AnswerKind
	text    string
	number  float64
	boolean bool
}

// TextAnswer answers a text question.
func TextAnswer(s string) Answer { return Answer{kind: AnswerKindText, text: s} }

// NumberAnswer answers a number question.
func NumberAnswer(n float64) Answer { return Answer{kind: AnswerKindNumber, number: n} }

// BooleanAnswer answers a yes/no question.
func BooleanAnswer(b bool) Answer { return Answer{kind: AnswerKindBoolean, boolean: b} }

// ChoiceAnswer answers a choice question with the option label.
func ChoiceAnswer(option string) Answer { return Answer{kind: AnswerKindChoice, text: option} }

func (a Answer) Kind() AnswerKind { return a.kind }

// Text returns the text of a text answer or the option label of a choice answer.
func (a Answer) Text() string { return a.text }

func (a Answer) Number() float64 { return a.number }

func (a Answer) Bool() bool { return a.boolean }

func (a Answer) String() string {
	switch a.kind {
	case AnswerKindNumber:
		return strconv.FormatFloat(a.number, 'f', -1, 64)
	case AnswerKindBoolean:
		return strconv.FormatBool(a.boolean)
	case AnswerKindText, AnswerKindChoice:
		return a.text
	}
	return ""
}

// MarshalJSON encodes the bare value: a string, number or boolean.
func (a Answer) MarshalJSON() ([]byte, error) {
	var v any
	switch a.kind {
	case AnswerKindNumber:
		v = a.number
	case AnswerKindBoolean:
		v = a.boolean
	case AnswerKindText, AnswerKindChoice:
		v = a.text
	default:
		return []byte("null"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal answer", slog.String("kind", string(a.kind)))
	}
	return data, nil
}

// ParseAnswer decodes a bare JSON value as an answer of the given kind.
//
// The JSON type must match the kind: a string for text and choice, a finite number for number and a boolean for
// boolean. Otherwise ErrAnswerMismatch is returned.
func ParseAnswer(kind AnswerKind, raw json.RawMessage) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	mismatch := func(cause error) error {
		err := ErrAnswerMismatch
		if cause != nil {
			err = errors.Join(ErrAnswerMismatch, cause)
		}
		return errors.Wrap(err, "parse answer", slog.String("kind", string(kind)), slog.String("raw", string(raw)))
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Answer{}, mismatch(nil)
	}
	switch kind {
	case AnswerKindText, AnswerKindChoice:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Answer{}, mismatch(err)
		}
		if kind == AnswerKindChoice {
			return ChoiceAnswer(s), nil
		}
		return TextAnswer(s), nil
	case AnswerKindNumber:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return Answer{}, mismatch(err)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return Answer{}, mismatch(nil)
		}
		return NumberAnswer(n), nil
	case AnswerKindBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Answer{}, mismatch(err)
		}
		return BooleanAnswer(b), nil
	}
	return Answer{}, errors.Wrap(ErrUnknownKind, "parse answer", slog.String("kind", string(kind)))
}
