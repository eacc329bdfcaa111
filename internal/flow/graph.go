package flow

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/models"
)

var ErrUnknownQuestion = errors.NewSentinel("unknown question")

// Graph is an immutable view of the question nodes sorted by order.
type Graph struct {
	questions []models.Question
	index     map[models.QuestionID]int
}

// NewGraph sorts a copy of questions by order. Questions with equal order keep their relative position.
func NewGraph(questions []models.Question) (*Graph, error) {
	sorted := slices.Clone(questions)
	slices.SortStableFunc(sorted, func(a, b models.Question) int {
		return cmp.Compare(a.Order, b.Order)
	})
	index := make(map[models.QuestionID]int, len(sorted))
	for i, q := range sorted {
		if _, ok := index[q.ID]; ok {
			return nil, errors.Wrap(ErrInvalidQuestion, "duplicate question id", slog.String("question_id", string(q.ID)))
		}
		index[q.ID] = i
	}
	return &Graph{questions: sorted, index: index}, nil
}

// Entry returns the first question of the flow. It is false for an empty graph.
func (g *Graph) Entry() (models.Question, bool) {
	if len(g.questions) == 0 {
		return models.Question{}, false
	}
	return g.questions[0], true
}

func (g *Graph) Get(id models.QuestionID) (models.Question, bool) {
	i, ok := g.index[id]
	if !ok {
		return models.Question{}, false
	}
	return g.questions[i], true
}

// Questions returns the questions in order.
func (g *Graph) Questions() []models.Question {
	return slices.Clone(g.questions)
}

func (g *Graph) Len() int {
	return len(g.questions)
}

// Next resolves the answer to question id and returns the next question. ok is false when the flow ends.
func (g *Graph) Next(id models.QuestionID, a models.Answer) (next models.Question, ok bool, err error) {
	q, found := g.Get(id)
	if !found {
		return models.Question{}, false, errors.Wrap(ErrUnknownQuestion, "get question", slog.String("question_id", string(id)))
	}
	nextID, err := ResolveNext(q, a)
	if err != nil {
		return models.Question{}, false, err
	}
	if nextID == Terminal {
		return models.Question{}, false, nil
	}
	if next, found = g.Get(nextID); !found {
		return models.Question{}, false, errors.Wrap(ErrUnknownQuestion, "get next question",
			slog.String("question_id", string(id)), slog.String("next_id", string(nextID)))
	}
	return next, true, nil
}

// Targets lists every question id that q can lead to, including DefaultNext, without duplicates.
func Targets(q models.Question) []models.QuestionID {
	var targets []models.QuestionID
	add := func(id models.QuestionID) {
		if id != Terminal && !slices.Contains(targets, id) {
			targets = append(targets, id)
		}
	}
	switch in := q.Input.(type) {
	case models.BooleanInput:
		add(in.IfTrue)
		add(in.IfFalse)
	case models.ChoiceInput:
		for _, route := range in.Routes {
			add(route.Next)
		}
	case models.NumberInput:
		for _, rule := range in.Rules {
			add(rule.Next)
		}
	}
	add(q.DefaultNext)
	return targets
}
