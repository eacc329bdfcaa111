// Package conversation records the answers recipients give and advances them through the question graph.
package conversation

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/flow"
	"github.com/myrjola/flowcast/internal/models"
)

type QuestionGetter interface {
	Get(ctx context.Context, id models.QuestionID) (models.Question, error)
}

type ResponseStore interface {
	RecordResponse(
		ctx context.Context,
		recipientID string,
		questionID models.QuestionID,
		answer models.Answer,
		confirmed bool,
	) error
}

type Recorder struct {
	questions QuestionGetter
	responses ResponseStore
	logger    *slog.Logger
}

func NewRecorder(questions QuestionGetter, responses ResponseStore, logger *slog.Logger) *Recorder {
	return &Recorder{
		questions: questions,
		responses: responses,
		logger:    logger.With(slog.String("source", "conversation")),
	}
}

// Record stores the answer of recipientID to questionID and returns the id of the next question, which is
// [flow.Terminal] when the flow ends.
//
// The answer must be of the question's kind and a choice answer must be one of the options, otherwise
// [flow.ErrAnswerMismatch] is returned and nothing is stored.
func (r *Recorder) Record(
	ctx context.Context,
	recipientID string,
	questionID models.QuestionID,
	answer models.Answer,
	confirmed bool,
) (models.QuestionID, error) {
	q, err := r.questions.Get(ctx, questionID)
	if err != nil {
		return flow.Terminal, errors.Wrap(err, "get question")
	}
	return r.record(ctx, recipientID, q, answer, confirmed)
}

// ParseAndRecord decodes raw against the question's kind and records it like [Recorder.Record].
func (r *Recorder) ParseAndRecord(
	ctx context.Context,
	recipientID string,
	questionID models.QuestionID,
	raw json.RawMessage,
	confirmed bool,
) (models.QuestionID, error) {
	q, err := r.questions.Get(ctx, questionID)
	if err != nil {
		return flow.Terminal, errors.Wrap(err, "get question")
	}
	answer, err := models.ParseAnswer(q.Kind(), raw)
	if err != nil {
		return flow.Terminal, errors.Wrap(err, "parse answer", slog.String("question_id", string(questionID)))
	}
	return r.record(ctx, recipientID, q, answer, confirmed)
}

func (r *Recorder) record(
	ctx context.Context,
	recipientID string,
	q models.Question,
	answer models.Answer,
	confirmed bool,
) (models.QuestionID, error) {
	if err := checkAnswer(q, answer); err != nil {
		return flow.Terminal, err
	}
	next, err := flow.ResolveNext(q, answer)
	if err != nil {
		return flow.Terminal, errors.Wrap(err, "resolve next question")
	}
	if err = r.responses.RecordResponse(ctx, recipientID, q.ID, answer, confirmed); err != nil {
		return flow.Terminal, errors.Wrap(err, "record response")
	}
	r.logger.LogAttrs(ctx, slog.LevelDebug, "recorded response",
		slog.String("recipient_id", recipientID),
		slog.String("question_id", string(q.ID)),
		slog.String("next_question_id", string(next)))
	return next, nil
}

func checkAnswer(q models.Question, answer models.Answer) error {
	attrs := []slog.Attr{
		slog.String("question_id", string(q.ID)),
		slog.String("question_kind", string(q.Kind())),
		slog.String("answer_kind", string(answer.Kind())),
	}
	if answer.Kind() != q.Kind() {
		return errors.Wrap(flow.ErrAnswerMismatch, "check answer kind", attrs...)
	}
	if in, ok := q.Input.(models.ChoiceInput); ok && !slices.Contains(in.Options, answer.Text()) {
		return errors.Wrap(flow.ErrAnswerMismatch, "check option", append(attrs, slog.String("option", answer.Text()))...)
	}
	return nil
}
