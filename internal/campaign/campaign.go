// Package campaign sends the entry question of the flow to a list of recipients.
//
// A run creates the recipient records that are missing, composes the entry question into channel messages and sends
// them to every recipient. Failures are isolated per recipient and collected into the [Report].
package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/flowcast/internal/compose"
	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/flow"
	"github.com/myrjola/flowcast/internal/logging"
	"github.com/myrjola/flowcast/internal/models"
	"github.com/myrjola/flowcast/internal/recipients"
)

var (
	ErrNoEntryQuestion = errors.NewSentinel("no entry question")
	ErrNoSender        = errors.NewSentinel("no sender configured")
	// ErrChannel wraps every failure reported by the outbound channel including send timeouts.
	ErrChannel = errors.NewSentinel("channel send failed")
)

// Sender delivers one message to a recipient on the outbound channel.
type Sender interface {
	Send(ctx context.Context, to string, msg compose.Message) error
}

// SenderFunc adapts a function to [Sender].
type SenderFunc func(ctx context.Context, to string, msg compose.Message) error

func (f SenderFunc) Send(ctx context.Context, to string, msg compose.Message) error {
	return f(ctx, to, msg)
}

// RecordStore creates recipient records. created is false when the record already existed.
type RecordStore interface {
	CreateIfAbsent(ctx context.Context, recipientID, displayName string) (r models.Recipient, created bool, err error)
}

// QuestionLister lists the questions of the flow ordered by order ascending.
type QuestionLister interface {
	List(ctx context.Context) ([]models.Question, error)
}

// RowError describes a row that failed.
type RowError struct {
	RecipientID string `json:"recipientId"`
	Detail      string `json:"detail"`
}

// Report summarises a run. When the run is not cancelled SentCount + len(Errors) == TotalRows.
type Report struct {
	TotalRows      int        `json:"totalRows"`
	CreatedRecords int        `json:"createdRecords"`
	SentCount      int        `json:"sentCount"`
	Errors         []RowError `json:"errors"`
	// Cancelled is set when the run stopped early. The counts cover the rows processed before that.
	Cancelled bool `json:"cancelled"`
}

// Options configures a [Dispatcher]. Zero values get defaults.
type Options struct {
	// SendTimeout bounds every send. A timed out send is a channel failure.
	SendTimeout time.Duration
	// Pacer defaults to [NoPacing].
	Pacer Pacer
	// Observer defaults to an observer that does nothing.
	Observer Observer
}

const defaultSendTimeout = 10 * time.Second

type Dispatcher struct {
	logger      *slog.Logger
	store       RecordStore
	sender      Sender
	pacer       Pacer
	observer    Observer
	sendTimeout time.Duration
}

// NewDispatcher creates a Dispatcher. A nil sender is allowed so that the server can start without channel
// credentials but runs fail with [ErrNoSender].
func NewDispatcher(logger *slog.Logger, store RecordStore, sender Sender, opts Options) *Dispatcher {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Pacer == nil {
		opts.Pacer = NoPacing{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Dispatcher{
		logger:      logger.With(slog.String("source", "campaign")),
		store:       store,
		sender:      sender,
		pacer:       opts.Pacer,
		observer:    opts.Observer,
		sendTimeout: opts.SendTimeout,
	}
}

// EntryQuestion returns the question a campaign starts with.
func EntryQuestion(ctx context.Context, questions QuestionLister) (models.Question, error) {
	qs, err := questions.List(ctx)
	if err != nil {
		return models.Question{}, errors.Wrap(err, "list questions")
	}
	graph, err := flow.NewGraph(qs)
	if err != nil {
		return models.Question{}, errors.Wrap(err, "build question graph")
	}
	entry, ok := graph.Entry()
	if !ok {
		return models.Question{}, ErrNoEntryQuestion
	}
	return entry, nil
}

func (d *Dispatcher) checkPreconditions(entry models.Question) error {
	if entry.ID == "" {
		return ErrNoEntryQuestion
	}
	if d.sender == nil {
		return ErrNoSender
	}
	return nil
}

// Run processes rows one at a time in order, waiting on the pacer between rows.
//
// Cancelling ctx stops the run between rows. The row in flight completes and the partial report is returned with
// Cancelled set and a nil error. Errors are only returned for unmet preconditions.
func (d *Dispatcher) Run(ctx context.Context, rows []recipients.Row, entry models.Question) (Report, error) {
	if err := d.checkPreconditions(entry); err != nil {
		return Report{}, err
	}
	ctx, start := d.startRun(ctx, rows, entry)
	messages := compose.Compose(entry)

	var (
		report = newReport(rows)
		failed bool
	)
	for i, row := range rows {
		if i > 0 && d.pacer.Wait(ctx, failed) != nil {
			report.Cancelled = true
			break
		}
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		result := d.processRow(context.WithoutCancel(ctx), row, messages)
		report.add(row, result)
		failed = result.err != nil
	}

	d.finishRun(ctx, report, start)
	return report, nil
}

func (d *Dispatcher) startRun(ctx context.Context, rows []recipients.Row, entry models.Question) (context.Context, time.Time) {
	ctx = logging.WithAttrs(ctx, slog.String("campaign_id", uuid.NewString()))
	d.logger.LogAttrs(ctx, slog.LevelInfo, "starting campaign",
		slog.Int("rows", len(rows)), slog.String("entry_question_id", string(entry.ID)))
	return ctx, time.Now()
}

func (d *Dispatcher) finishRun(ctx context.Context, report Report, start time.Time) {
	elapsed := time.Since(start)
	d.observer.RunFinished(report, elapsed)
	level := slog.LevelInfo
	if report.Cancelled {
		level = slog.LevelWarn
	}
	d.logger.LogAttrs(ctx, level, "campaign finished",
		slog.Int("total_rows", report.TotalRows),
		slog.Int("created_records", report.CreatedRecords),
		slog.Int("sent", report.SentCount),
		slog.Int("failed", len(report.Errors)),
		slog.Bool("cancelled", report.Cancelled),
		slog.Duration("elapsed", elapsed))
}

func newReport(rows []recipients.Row) Report {
	return Report{TotalRows: len(rows), Errors: []RowError{}}
}

func (r *Report) add(row recipients.Row, result rowResult) {
	if result.created {
		r.CreatedRecords++
	}
	if result.err != nil {
		r.Errors = append(r.Errors, RowError{RecipientID: row.RecipientID, Detail: result.err.Error()})
		return
	}
	r.SentCount++
}

type rowResult struct {
	created bool
	err     error
}

// processRow never returns early on cancellation. The caller passes a context that is not cancelled with the run.
func (d *Dispatcher) processRow(ctx context.Context, row recipients.Row, messages []compose.Message) rowResult {
	ctx = logging.WithAttrs(ctx, slog.String("recipient_id", row.RecipientID))
	result := d.deliver(ctx, row, messages)
	outcome := OutcomeSent
	switch {
	case errors.Is(result.err, ErrChannel):
		outcome = OutcomeChannelError
	case result.err != nil:
		outcome = OutcomeStoreError
	}
	d.observer.RowProcessed(outcome, result.created)
	if result.err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "campaign row failed", errors.SlogError(result.err))
	} else {
		d.logger.LogAttrs(ctx, slog.LevelDebug, "campaign row sent", slog.Bool("created", result.created))
	}
	return result
}

func (d *Dispatcher) deliver(ctx context.Context, row recipients.Row, messages []compose.Message) rowResult {
	_, created, err := d.store.CreateIfAbsent(ctx, row.RecipientID, row.DisplayName)
	if err != nil {
		return rowResult{err: errors.Wrap(err, "create recipient record")}
	}
	for i, msg := range messages {
		if err = d.send(ctx, row.RecipientID, msg); err != nil {
			return rowResult{created: created, err: errors.Wrap(err, "send message",
				slog.Int("message", i), slog.String("message_type", fmt.Sprintf("%T", msg)))}
		}
	}
	return rowResult{created: created}
}

func (d *Dispatcher) send(ctx context.Context, to string, msg compose.Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.sender.Send(ctx, to, msg); err != nil {
		return errors.Wrap(errors.Join(ErrChannel, err), "send to channel", slog.String("recipient_id", to))
	}
	return nil
}
