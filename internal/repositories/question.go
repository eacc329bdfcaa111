package repositories

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/models"
	"github.com/myrjola/flowcast/internal/sqlite"
)

type QuestionRepository struct {
	database *sqlite.Database
	logger   *slog.Logger
}

func NewQuestionRepository(database *sqlite.Database, logger *slog.Logger) *QuestionRepository {
	return &QuestionRepository{
		database: database,
		logger:   logger.With("source", "QuestionRepository"),
	}
}

type questionRow struct {
	ID            string `db:"id"`
	Text          string `db:"text"`
	Caption       string `db:"caption"`
	ImageURL      string `db:"image_url"`
	ImagePublicID string `db:"image_public_id"`
	ImageAlt      string `db:"image_alt"`
	Order         int    `db:"order"`
	DefaultNext   string `db:"default_next"`
	Kind          string `db:"kind"`
	Input         string `db:"input"`
}

const selectQuestions = `SELECT id, text, caption, image_url, image_public_id, image_alt, "order", default_next, kind, input
FROM questions`

func (row questionRow) question() (models.Question, error) {
	in, err := models.DecodeInput(models.AnswerKind(row.Kind), []byte(row.Input))
	if err != nil {
		return models.Question{}, errors.Wrap(err, "decode input", slog.String("question_id", row.ID))
	}
	q := models.Question{
		ID:          models.QuestionID(row.ID),
		Text:        row.Text,
		Caption:     row.Caption,
		Image:       nil,
		Order:       row.Order,
		DefaultNext: models.QuestionID(row.DefaultNext),
		Input:       in,
	}
	if row.ImageURL != "" || row.ImagePublicID != "" || row.ImageAlt != "" {
		q.Image = &models.Image{URL: row.ImageURL, PublicID: row.ImagePublicID, Alt: row.ImageAlt}
	}
	return q, nil
}

// List returns all questions ordered by order ascending. Ties are broken by id.
func (r *QuestionRepository) List(ctx context.Context) ([]models.Question, error) {
	var rows []questionRow
	if err := r.database.ReadOnly.SelectContext(ctx, &rows, selectQuestions+` ORDER BY "order", id`); err != nil {
		return nil, wrapStore(err, "select questions")
	}
	questions := make([]models.Question, 0, len(rows))
	for _, row := range rows {
		q, err := row.question()
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (r *QuestionRepository) Get(ctx context.Context, id models.QuestionID) (models.Question, error) {
	var row questionRow
	err := r.database.ReadOnly.GetContext(ctx, &row, selectQuestions+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Question{}, errors.Wrap(ErrNotFound, "get question", slog.String("question_id", string(id)))
	}
	if err != nil {
		return models.Question{}, wrapStore(err, "get question", slog.String("question_id", string(id)))
	}
	return row.question()
}

// Save inserts the question or replaces the stored question with the same id.
func (r *QuestionRepository) Save(ctx context.Context, q models.Question) error {
	input, err := models.EncodeInput(q.Input)
	if err != nil {
		return errors.Wrap(err, "encode input", slog.String("question_id", string(q.ID)))
	}
	var image models.Image
	if q.Image != nil {
		image = *q.Image
	}
	stmt := `INSERT INTO questions (id, text, caption, image_url, image_public_id, image_alt, "order", default_next,
                       kind, input)
VALUES (@id, @text, @caption, @image_url, @image_public_id, @image_alt, @order, @default_next, @kind, @input)
ON CONFLICT (id) DO UPDATE SET text            = excluded.text,
                               caption         = excluded.caption,
                               image_url       = excluded.image_url,
                               image_public_id = excluded.image_public_id,
                               image_alt       = excluded.image_alt,
                               "order"         = excluded."order",
                               default_next    = excluded.default_next,
                               kind            = excluded.kind,
                               input           = excluded.input,
                               updated         = STRFTIME('%Y-%m-%dT%H:%M:%fZ')`
	params := []any{
		sql.Named("id", string(q.ID)),
		sql.Named("text", q.Text),
		sql.Named("caption", q.Caption),
		sql.Named("image_url", image.URL),
		sql.Named("image_public_id", image.PublicID),
		sql.Named("image_alt", image.Alt),
		sql.Named("order", q.Order),
		sql.Named("default_next", string(q.DefaultNext)),
		sql.Named("kind", string(q.Kind())),
		sql.Named("input", string(input)),
	}
	if _, err = r.database.ReadWrite.ExecContext(ctx, stmt, params...); err != nil {
		return wrapStore(err, "upsert question", slog.String("question_id", string(q.ID)))
	}
	return nil
}

// Reorder sets the order of the given questions to their 1-based position in ids. Every id must exist.
func (r *QuestionRepository) Reorder(ctx context.Context, ids []models.QuestionID) error {
	tx, err := r.database.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return wrapStore(err, "begin transaction")
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			r.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback transaction",
				errors.SlogError(errors.Wrap(rollbackErr, "rollback")))
		}
	}()
	for i, id := range ids {
		if err = updateOrder(ctx, tx, id, i+1); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return wrapStore(err, "commit transaction")
	}
	return nil
}

func updateOrder(ctx context.Context, tx *sqlx.Tx, id models.QuestionID, order int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE questions SET "order" = ?, updated = STRFTIME('%Y-%m-%dT%H:%M:%fZ') WHERE id = ?`, order, id)
	if err != nil {
		return wrapStore(err, "update order", slog.String("question_id", string(id)))
	}
	return requireAffected(result, "update order", slog.String("question_id", string(id)))
}

func (r *QuestionRepository) Delete(ctx context.Context, id models.QuestionID) error {
	result, err := r.database.ReadWrite.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return wrapStore(err, "delete question", slog.String("question_id", string(id)))
	}
	return requireAffected(result, "delete question", slog.String("question_id", string(id)))
}

// requireAffected returns ErrNotFound when the statement matched no rows.
func requireAffected(result sql.Result, msg string, attrs ...slog.Attr) error {
	n, err := result.RowsAffected()
	if err != nil {
		return wrapStore(err, msg, attrs...)
	}
	if n == 0 {
		return errors.Wrap(ErrNotFound, msg, attrs...)
	}
	return nil
}
