package conversation_test

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/myrjola/flowcast/internal/conversation"
	"github.com/myrjola/flowcast/internal/flow"
	"github.com/myrjola/flowcast/internal/models"
	"github.com/myrjola/flowcast/internal/repositories"
	"github.com/myrjola/flowcast/internal/sqlite"
	"github.com/myrjola/flowcast/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*conversation.Recorder, *repositories.RecipientRepository) {
	t.Helper()
	ctx := t.Context()
	logger := testhelpers.NewLogger(io.Discard)
	database, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	questions := repositories.NewQuestionRepository(database, logger)
	recipients := repositories.NewRecipientRepository(database, logger)
	for _, q := range []models.Question{
		{ID: "consent", Text: "Start?", Order: 1, Input: models.BooleanInput{IfTrue: "colour"}},
		{ID: "colour", Text: "Colour?", Order: 2, DefaultNext: "age", Input: models.ChoiceInput{
			Options: []string{"red", "blue", "green"},
			Routes:  []models.ChoiceRoute{{Option: "red", Next: "age"}, {Option: "blue"}},
		}},
		{ID: "age", Text: "Age?", Order: 3, Input: models.NumberInput{Rules: []models.NumberRule{
			{Op: models.OpLT, Value: 18, Next: "minor"},
		}}},
		{ID: "minor", Text: "Sorry", Order: 4, Input: models.TextInput{}},
	} {
		require.NoError(t, questions.Save(ctx, q))
	}
	_, _, err = recipients.CreateIfAbsent(ctx, "1", "Asha")
	require.NoError(t, err)
	return conversation.NewRecorder(questions, recipients, logger), recipients
}

func TestRecorder_Record(t *testing.T) {
	t.Parallel()
	recorder, recipients := setup(t)
	ctx := t.Context()

	tests := []struct {
		name       string
		questionID models.QuestionID
		answer     models.Answer
		wantNext   models.QuestionID
		wantErr    error
	}{
		{name: "yes", questionID: "consent", answer: models.BooleanAnswer(true), wantNext: "colour"},
		{name: "no without target ends", questionID: "consent", answer: models.BooleanAnswer(false), wantNext: flow.Terminal},
		{name: "routed option", questionID: "colour", answer: models.ChoiceAnswer("red"), wantNext: "age"},
		{name: "explicit terminal route", questionID: "colour", answer: models.ChoiceAnswer("blue"), wantNext: flow.Terminal},
		{name: "unrouted option", questionID: "colour", answer: models.ChoiceAnswer("green"), wantNext: "age"},
		{name: "unknown option", questionID: "colour", answer: models.ChoiceAnswer("pink"), wantErr: flow.ErrAnswerMismatch},
		{name: "wrong kind", questionID: "age", answer: models.TextAnswer("12"), wantErr: flow.ErrAnswerMismatch},
		{name: "number rule", questionID: "age", answer: models.NumberAnswer(12), wantNext: "minor"},
		{name: "unknown question", questionID: "nope", answer: models.TextAnswer("x"), wantErr: repositories.ErrNotFound},
	}
	for _, tt := range tests {
		next, err := recorder.Record(ctx, "1", tt.questionID, tt.answer, true)
		if tt.wantErr != nil {
			require.ErrorIs(t, err, tt.wantErr, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		require.Equal(t, tt.wantNext, next, tt.name)
	}

	recipient, err := recipients.Find(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, []models.Response{
		{QuestionID: "consent", Answer: models.BooleanAnswer(false), Confirmed: true},
		{QuestionID: "colour", Answer: models.ChoiceAnswer("green"), Confirmed: true},
		{QuestionID: "age", Answer: models.NumberAnswer(12), Confirmed: true},
	}, recipient.Responses, "rejected answers are not stored and the latest answer wins")
}

func TestRecorder_ParseAndRecord(t *testing.T) {
	t.Parallel()
	recorder, _ := setup(t)
	ctx := t.Context()

	next, err := recorder.ParseAndRecord(ctx, "1", "age", json.RawMessage(`21`), false)
	require.NoError(t, err)
	require.Equal(t, flow.Terminal, next)

	_, err = recorder.ParseAndRecord(ctx, "1", "age", json.RawMessage(`"21"`), false)
	require.ErrorIs(t, err, flow.ErrAnswerMismatch)

	_, err = recorder.ParseAndRecord(ctx, "2", "age", json.RawMessage(`21`), false)
	require.ErrorIs(t, err, repositories.ErrNotFound, "unknown recipient")
}
