package flow

import (
	"log/slog"

	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/models"
)

// ErrInvalidQuestion is returned for malformed questions and branching rules. It is meant for authoring time so that
// malformed rules never reach traversal.
var ErrInvalidQuestion = errors.NewSentinel("invalid question")

// Validate checks a single question and returns every problem found, joined.
func Validate(q models.Question) error {
	var problems []error
	invalid := func(msg string, attrs ...slog.Attr) {
		attrs = append([]slog.Attr{slog.String("question_id", string(q.ID))}, attrs...)
		problems = append(problems, errors.Wrap(ErrInvalidQuestion, msg, attrs...))
	}

	if q.ID == "" {
		invalid("missing id")
	}
	if q.Text == "" {
		invalid("missing question text")
	}
	if q.Image != nil && q.Image.URL == "" && (q.Image.PublicID != "" || q.Image.Alt != "") {
		invalid("image without url")
	}

	switch in := q.Input.(type) {
	case models.TextInput, models.BooleanInput:
	case models.NumberInput:
		if in.DisplayDigits < 0 {
			invalid("negative display digits", slog.Int("display_digits", in.DisplayDigits))
		}
		for i, rule := range in.Rules {
			switch {
			case !rule.Op.Valid():
				invalid("unknown operator", slog.Int("rule", i), slog.String("op", string(rule.Op)))
			case rule.Op == models.OpBetween && rule.Value2 == nil:
				invalid("between rule without upper bound", slog.Int("rule", i))
			case rule.Op == models.OpBetween && *rule.Value2 < rule.Value:
				invalid("between rule with upper bound below lower bound", slog.Int("rule", i))
			case rule.Op != models.OpBetween && rule.Value2 != nil:
				invalid("upper bound on non-between rule", slog.Int("rule", i), slog.String("op", string(rule.Op)))
			}
		}
	case models.ChoiceInput:
		if len(in.Options) == 0 {
			invalid("choice without options")
		}
		seen := make(map[string]bool, len(in.Options))
		for _, option := range in.Options {
			if option == "" {
				invalid("empty option")
			}
			if seen[option] {
				invalid("duplicate option", slog.String("option", option))
			}
			seen[option] = true
		}
		routed := make(map[string]bool, len(in.Routes))
		for _, route := range in.Routes {
			if routed[route.Option] {
				invalid("more than one route for option", slog.String("option", route.Option))
			}
			routed[route.Option] = true
		}
	default:
		invalid("unknown answer kind")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.Join(problems...)
}
