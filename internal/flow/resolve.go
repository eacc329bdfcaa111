// Package flow evaluates the question graph: which question follows a given answer.
//
// Everything in this package is pure and safe for concurrent use.
package flow

import (
	"log/slog"

	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/models"
)

// Terminal is returned when the flow ends and no further prompt is sent.
const Terminal models.QuestionID = ""

// ErrAnswerMismatch is returned when the answer kind differs from the question kind. Callers are expected to validate
// answers before resolving.
var ErrAnswerMismatch = models.ErrAnswerMismatch

// ResolveNext returns the question that follows answer a to question q, or [Terminal].
//
// Choice routes and number rules are evaluated in list order and the first match wins, even when its target is
// Terminal. Only when nothing matches does the question's DefaultNext apply. Boolean targets that are not set fall
// back to DefaultNext.
func ResolveNext(q models.Question, a models.Answer) (models.QuestionID, error) {
	if a.Kind() != q.Kind() {
		return Terminal, errors.Wrap(ErrAnswerMismatch, "resolve next",
			slog.String("question_id", string(q.ID)),
			slog.String("question_kind", string(q.Kind())),
			slog.String("answer_kind", string(a.Kind())))
	}

	switch in := q.Input.(type) {
	case models.TextInput:
		return q.DefaultNext, nil
	case models.BooleanInput:
		next := in.IfFalse
		if a.Bool() {
			next = in.IfTrue
		}
		if next != Terminal {
			return next, nil
		}
		return q.DefaultNext, nil
	case models.ChoiceInput:
		for _, route := range in.Routes {
			if route.Option == a.Text() {
				return route.Next, nil
			}
		}
		return q.DefaultNext, nil
	case models.NumberInput:
		for _, rule := range in.Rules {
			if Matches(rule, a.Number()) {
				return rule.Next, nil
			}
		}
		return q.DefaultNext, nil
	}
	return Terminal, errors.Wrap(models.ErrUnknownKind, "resolve next", slog.String("question_id", string(q.ID)))
}

// Matches reports whether n satisfies rule. Both bounds of a between rule are inclusive. A between rule without an
// upper bound matches nothing.
func Matches(rule models.NumberRule, n float64) bool {
	switch rule.Op {
	case models.OpLT:
		return n < rule.Value
	case models.OpLTE:
		return n <= rule.Value
	case models.OpEQ:
		return n == rule.Value
	case models.OpGTE:
		return n >= rule.Value
	case models.OpGT:
		return n > rule.Value
	case models.OpBetween:
		return rule.Value2 != nil && rule.Value <= n && n <= *rule.Value2
	}
	return false
}
