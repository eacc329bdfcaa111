package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/models"
	"github.com/myrjola/flowcast/internal/sqlite"
)

type RecipientRepository struct {
	database *sqlite.Database
	logger   *slog.Logger
}

func NewRecipientRepository(database *sqlite.Database, logger *slog.Logger) *RecipientRepository {
	return &RecipientRepository{
		database: database,
		logger:   logger.With("source", "RecipientRepository"),
	}
}

type recipientRow struct {
	ID          string `db:"id"`
	DisplayName string `db:"display_name"`
	AdminViewed bool   `db:"admin_viewed"`
	Created     string `db:"created"`
	Updated     string `db:"updated"`
}

type responseRow struct {
	RecipientID string `db:"recipient_id"`
	QuestionID  string `db:"question_id"`
	Kind        string `db:"kind"`
	Answer      string `db:"answer"`
	Confirmed   bool   `db:"confirmed"`
}

func (row recipientRow) recipient() (models.Recipient, error) {
	created, err := time.Parse(time.RFC3339Nano, row.Created)
	if err != nil {
		return models.Recipient{}, errors.Wrap(err, "parse created", slog.String("recipient_id", row.ID))
	}
	updated, err := time.Parse(time.RFC3339Nano, row.Updated)
	if err != nil {
		return models.Recipient{}, errors.Wrap(err, "parse updated", slog.String("recipient_id", row.ID))
	}
	return models.Recipient{
		ID:          row.ID,
		DisplayName: row.DisplayName,
		AdminViewed: row.AdminViewed,
		Responses:   []models.Response{},
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func (row responseRow) response() (models.Response, error) {
	answer, err := models.ParseAnswer(models.AnswerKind(row.Kind), json.RawMessage(row.Answer))
	if err != nil {
		return models.Response{}, errors.Wrap(err, "decode answer",
			slog.String("recipient_id", row.RecipientID), slog.String("question_id", row.QuestionID))
	}
	return models.Response{QuestionID: models.QuestionID(row.QuestionID), Answer: answer, Confirmed: row.Confirmed}, nil
}

const selectRecipients = `SELECT id, display_name, admin_viewed, created, updated FROM recipients`

// Find returns the recipient with its responses in the order they were first given.
func (r *RecipientRepository) Find(ctx context.Context, id string) (models.Recipient, error) {
	var row recipientRow
	err := r.database.ReadOnly.GetContext(ctx, &row, selectRecipients+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Recipient{}, errors.Wrap(ErrNotFound, "find recipient", slog.String("recipient_id", id))
	}
	if err != nil {
		return models.Recipient{}, wrapStore(err, "find recipient", slog.String("recipient_id", id))
	}
	recipient, err := row.recipient()
	if err != nil {
		return models.Recipient{}, err
	}

	var responses []responseRow
	if err = r.database.ReadOnly.SelectContext(ctx, &responses, `SELECT recipient_id, question_id, kind, answer, confirmed
FROM responses
WHERE recipient_id = ?
ORDER BY position`, id); err != nil {
		return models.Recipient{}, wrapStore(err, "select responses", slog.String("recipient_id", id))
	}
	for _, resp := range responses {
		response, err := resp.response()
		if err != nil {
			return models.Recipient{}, err
		}
		recipient.Responses = append(recipient.Responses, response)
	}
	return recipient, nil
}

// ListFilter narrows [RecipientRepository.List]. A nil field matches everything.
type ListFilter struct {
	AdminViewed *bool
}

// List returns the recipients newest first together with their responses.
func (r *RecipientRepository) List(ctx context.Context, filter ListFilter) ([]models.Recipient, error) {
	where := `WHERE @admin_viewed IS NULL OR admin_viewed = @admin_viewed`
	var adminViewed sql.NullBool
	if filter.AdminViewed != nil {
		adminViewed = sql.NullBool{Bool: *filter.AdminViewed, Valid: true}
	}
	param := sql.Named("admin_viewed", adminViewed)

	var rows []recipientRow
	if err := r.database.ReadOnly.SelectContext(ctx, &rows,
		selectRecipients+` `+where+` ORDER BY created DESC, id`, param); err != nil {
		return nil, wrapStore(err, "select recipients")
	}
	var responses []responseRow
	if err := r.database.ReadOnly.SelectContext(ctx, &responses, `SELECT recipient_id, question_id, kind, answer, confirmed
FROM responses
WHERE recipient_id IN (SELECT id FROM recipients `+where+`)
ORDER BY recipient_id, position`, param); err != nil {
		return nil, wrapStore(err, "select responses")
	}

	byRecipient := make(map[string][]models.Response, len(rows))
	for _, resp := range responses {
		response, err := resp.response()
		if err != nil {
			return nil, err
		}
		byRecipient[resp.RecipientID] = append(byRecipient[resp.RecipientID], response)
	}
	recipients := make([]models.Recipient, 0, len(rows))
	for _, row := range rows {
		recipient, err := row.recipient()
		if err != nil {
			return nil, err
		}
		if rs, ok := byRecipient[row.ID]; ok {
			recipient.Responses = rs
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}

// CreateIfAbsent creates an empty record for the recipient unless one exists. An existing record is returned
// unchanged with created set to false.
func (r *RecipientRepository) CreateIfAbsent(
	ctx context.Context,
	id string,
	displayName string,
) (models.Recipient, bool, error) {
	var row recipientRow
	err := r.database.ReadWrite.GetContext(ctx, &row, `INSERT INTO recipients (id, display_name)
VALUES (?, ?)
ON CONFLICT (id) DO NOTHING
RETURNING id, display_name, admin_viewed, created, updated`, id, displayName)
	if errors.Is(err, sql.ErrNoRows) {
		var existing models.Recipient
		if existing, err = r.Find(ctx, id); err != nil {
			return models.Recipient{}, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return models.Recipient{}, false, wrapStore(err, "insert recipient", slog.String("recipient_id", id))
	}
	recipient, err := row.recipient()
	if err != nil {
		return models.Recipient{}, false, err
	}
	r.logger.LogAttrs(ctx, slog.LevelDebug, "created recipient", slog.String("recipient_id", id))
	return recipient, true, nil
}

// RecordResponse stores the answer to a question. A new response is appended after the existing ones and an
// existing response is updated in place keeping its position.
func (r *RecipientRepository) RecordResponse(
	ctx context.Context,
	recipientID string,
	questionID models.QuestionID,
	answer models.Answer,
	confirmed bool,
) error {
	encoded, err := answer.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encode answer")
	}
	attrs := []slog.Attr{slog.String("recipient_id", recipientID), slog.String("question_id", string(questionID))}
	stmt := `INSERT INTO responses (recipient_id, question_id, position, kind, answer, confirmed)
SELECT @recipient_id,
       @question_id,
       (SELECT COALESCE(MAX(position), 0) + 1 FROM responses WHERE recipient_id = @recipient_id),
       @kind,
       @answer,
       @confirmed
FROM recipients
WHERE id = @recipient_id
ON CONFLICT (recipient_id, question_id) DO UPDATE SET kind      = excluded.kind,
                                                      answer    = excluded.answer,
                                                      confirmed = excluded.confirmed,
                                                      answered  = STRFTIME('%Y-%m-%dT%H:%M:%fZ')`
	result, err := r.database.ReadWrite.ExecContext(ctx, stmt,
		sql.Named("recipient_id", recipientID),
		sql.Named("question_id", string(questionID)),
		sql.Named("kind", string(answer.Kind())),
		sql.Named("answer", string(encoded)),
		sql.Named("confirmed", confirmed),
	)
	if err != nil {
		return wrapStore(err, "upsert response", attrs...)
	}
	return requireAffected(result, "upsert response", attrs...)
}

// MarkViewed sets the operator maintained viewed flag.
func (r *RecipientRepository) MarkViewed(ctx context.Context, id string, viewed bool) error {
	result, err := r.database.ReadWrite.ExecContext(ctx,
		`UPDATE recipients SET admin_viewed = ?, updated = STRFTIME('%Y-%m-%dT%H:%M:%fZ') WHERE id = ?`, viewed, id)
	if err != nil {
		return wrapStore(err, "update viewed", slog.String("recipient_id", id))
	}
	return requireAffected(result, "update viewed", slog.String("recipient_id", id))
}

func (r *RecipientRepository) DeleteResponse(ctx context.Context, recipientID string, questionID models.QuestionID) error {
	attrs := []slog.Attr{slog.String("recipient_id", recipientID), slog.String("question_id", string(questionID))}
	result, err := r.database.ReadWrite.ExecContext(ctx,
		`DELETE FROM responses WHERE recipient_id = ? AND question_id = ?`, recipientID, questionID)
	if err != nil {
		return wrapStore(err, "delete response", attrs...)
	}
	return requireAffected(result, "delete response", attrs...)
}

// Delete removes the recipient and its responses.
func (r *RecipientRepository) Delete(ctx context.Context, id string) error {
	result, err := r.database.ReadWrite.ExecContext(ctx, `DELETE FROM recipients WHERE id = ?`, id)
	if err != nil {
		return wrapStore(err, "delete recipient", slog.String("recipient_id", id))
	}
	return requireAffected(result, "delete recipient", slog.String("recipient_id", id))
}
