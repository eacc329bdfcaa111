package campaign

import "time"

// Outcome classifies a processed row.
type Outcome string

const (
	OutcomeSent         Outcome = "sent"
	OutcomeChannelError Outcome = "channel_error"
	OutcomeStoreError   Outcome = "store_error"
)

// Observer is notified about run progress. Implementations must be safe for concurrent use because
// [Dispatcher.RunConcurrent] processes rows in parallel.
type Observer interface {
	RowProcessed(outcome Outcome, created bool)
	RunFinished(report Report, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) RowProcessed(Outcome, bool)         {}
func (nopObserver) RunFinished(Report, time.Duration) {}
