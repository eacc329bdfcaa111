// Package graphfile reads and writes question graphs as YAML documents so that flows can be authored and reviewed
// as files.
//
//	questions:
//	  - id: consent
//	    text: Shall we start?
//	    kind: boolean
//	    ifTrue: age
//	  - id: age
//	    text: How old are you?
//	    kind: number
//	    rules:
//	      - {op: lt, value: 18, next: minor}
//
// The order of a question is its 1-based position in the file.
package graphfile

import (
	"cmp"
	"io"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/models"
	"gopkg.in/yaml.v3"
)

type document struct {
	Questions []question `yaml:"questions"`
}

type question struct {
	ID          string `yaml:"id,omitempty"`
	Text        string `yaml:"text"`
	Caption     string `yaml:"caption,omitempty"`
	Image       *image `yaml:"image,omitempty"`
	DefaultNext string `yaml:"defaultNext,omitempty"`
	Kind        string `yaml:"kind"`

	DisplayDigits int    `yaml:"displayDigits,omitempty"`
	Rules         []rule `yaml:"rules,omitempty"`

	IfTrue  string `yaml:"ifTrue,omitempty"`
	IfFalse string `yaml:"ifFalse,omitempty"`

	Options []string `yaml:"options,omitempty"`
	Routes  []route  `yaml:"routes,omitempty"`
}

type image struct {
	URL      string `yaml:"url"`
	PublicID string `yaml:"publicId,omitempty"`
	Alt      string `yaml:"alt,omitempty"`
}

type rule struct {
	Op     string   `yaml:"op"`
	Value  float64  `yaml:"value"`
	Value2 *float64 `yaml:"value2,omitempty"`
	Next   string   `yaml:"next,omitempty"`
}

// route has no omitempty on next. An empty next ends the flow.
type route struct {
	Option string `yaml:"option"`
	Next   string `yaml:"next"`
}

// Load reads a graph file. Questions without an id get a random one. Unknown fields are rejected.
func Load(r io.Reader) ([]models.Question, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var doc document
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode graph file")
	}
	questions := make([]models.Question, 0, len(doc.Questions))
	for i, q := range doc.Questions {
		converted, err := q.model(i + 1)
		if err != nil {
			return nil, errors.Wrap(err, "convert question", slog.Int("position", i+1))
		}
		questions = append(questions, converted)
	}
	return questions, nil
}

func (q question) model(order int) (models.Question, error) {
	var in models.Input
	switch kind := models.AnswerKind(q.Kind); kind {
	case models.AnswerKindText:
		in = models.TextInput{}
	case models.AnswerKindNumber:
		var rules []models.NumberRule
		for _, r := range q.Rules {
			rules = append(rules, models.NumberRule{
				Op:     models.Operator(r.Op),
				Value:  r.Value,
				Value2: r.Value2,
				Next:   models.QuestionID(r.Next),
			})
		}
		in = models.NumberInput{DisplayDigits: q.DisplayDigits, Rules: rules}
	case models.AnswerKindBoolean:
		in = models.BooleanInput{IfTrue: models.QuestionID(q.IfTrue), IfFalse: models.QuestionID(q.IfFalse)}
	case models.AnswerKindChoice:
		var routes []models.ChoiceRoute
		for _, r := range q.Routes {
			routes = append(routes, models.ChoiceRoute{Option: r.Option, Next: models.QuestionID(r.Next)})
		}
		in = models.ChoiceInput{Options: q.Options, Routes: routes}
	default:
		return models.Question{}, errors.Wrap(models.ErrUnknownKind, "convert kind", slog.String("kind", q.Kind))
	}
	id := q.ID
	if id == "" {
		id = uuid.NewString()
	}
	var img *models.Image
	if q.Image != nil {
		img = &models.Image{URL: q.Image.URL, PublicID: q.Image.PublicID, Alt: q.Image.Alt}
	}
	return models.Question{
		ID:          models.QuestionID(id),
		Text:        q.Text,
		Caption:     q.Caption,
		Image:       img,
		Order:       order,
		DefaultNext: models.QuestionID(q.DefaultNext),
		Input:       in,
	}, nil
}

// Write writes questions sorted by order.
func Write(w io.Writer, questions []models.Question) error {
	sorted := slices.Clone(questions)
	slices.SortStableFunc(sorted, func(a, b models.Question) int { return cmp.Compare(a.Order, b.Order) })
	doc := document{Questions: make([]question, 0, len(sorted))}
	for _, q := range sorted {
		doc.Questions = append(doc.Questions, fromModel(q))
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return errors.Wrap(err, "encode graph file")
	}
	if err := encoder.Close(); err != nil {
		return errors.Wrap(err, "close encoder")
	}
	return nil
}

func fromModel(q models.Question) question {
	out := question{
		ID:          string(q.ID),
		Text:        q.Text,
		Caption:     q.Caption,
		DefaultNext: string(q.DefaultNext),
		Kind:        string(q.Kind()),
	}
	if q.Image != nil {
		out.Image = &image{URL: q.Image.URL, PublicID: q.Image.PublicID, Alt: q.Image.Alt}
	}
	switch in := q.Input.(type) {
	case models.NumberInput:
		out.DisplayDigits = in.DisplayDigits
		for _, r := range in.Rules {
			out.Rules = append(out.Rules, rule{Op: string(r.Op), Value: r.Value, Value2: r.Value2, Next: string(r.Next)})
		}
	case models.BooleanInput:
		out.IfTrue, out.IfFalse = string(in.IfTrue), string(in.IfFalse)
	case models.ChoiceInput:
		out.Options = in.Options
		for _, r := range in.Routes {
			out.Routes = append(out.Routes, route{Option: r.Option, Next: string(r.Next)})
		}
	}
	return out
}
