package campaign

import (
	"context"
	"log/slog"

	"github.com/myrjola/flowcast/internal/compose"
	"github.com/myrjola/flowcast/internal/models"
	"github.com/myrjola/flowcast/internal/recipients"
	"golang.org/x/sync/errgroup"
)

// RunConcurrent processes rows with up to workers rows in flight. Rows are started in input order after waiting on
// the pacer, which should be a shared [RatePacer] so that the channel rate limit holds across workers.
//
// Cancellation stops starting new rows and the rows in flight complete. The report lists errors in input order like
// [Dispatcher.Run].
func (d *Dispatcher) RunConcurrent(
	ctx context.Context,
	rows []recipients.Row,
	entry models.Question,
	workers int,
) (Report, error) {
	if err := d.checkPreconditions(entry); err != nil {
		return Report{}, err
	}
	ctx, start := d.startRun(ctx, rows, entry)
	d.logger.LogAttrs(ctx, slog.LevelDebug, "using worker pool", slog.Int("workers", workers))
	messages := compose.Compose(entry)

	var (
		results = make([]rowResult, len(rows))
		started int
		g       errgroup.Group
	)
	g.SetLimit(max(workers, 1))
	detached := context.WithoutCancel(ctx)
	for i, row := range rows {
		if d.pacer.Wait(ctx, false) != nil || ctx.Err() != nil {
			break
		}
		started++
		g.Go(func() error {
			results[i] = d.processRow(detached, row, messages)
			return nil
		})
	}
	_ = g.Wait() // Rows never return errors, failures are kept in results.

	report := newReport(rows)
	report.Cancelled = started < len(rows)
	for i := range started {
		report.add(rows[i], results[i])
	}

	d.finishRun(ctx, report, start)
	return report, nil
}

// Dispatch runs sequentially with one worker and concurrently otherwise.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	rows []recipients.Row,
	entry models.Question,
	workers int,
) (Report, error) {
	if workers > 1 {
		return d.RunConcurrent(ctx, rows, entry, workers)
	}
	return d.Run(ctx, rows, entry)
}
