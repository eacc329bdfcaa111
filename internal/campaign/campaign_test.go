package campaign_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/myrjola/flowcast/internal/campaign"
	"github.com/myrjola/flowcast/internal/compose"
	"github.com/myrjola/flowcast/internal/models"
	"github.com/myrjola/flowcast/internal/recipients"
	"github.com/myrjola/flowcast/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]models.Recipient
	fail    map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]models.Recipient{}, fail: map[string]bool{}}
}

func (s *memoryStore) CreateIfAbsent(_ context.Context, id, name string) (models.Recipient, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[id] {
		return models.Recipient{}, false, errors.New("store unavailable")
	}
	if r, ok := s.records[id]; ok {
		return r, false, nil
	}
	r := models.Recipient{ID: id, DisplayName: name}
	s.records[id] = r
	return r, true, nil
}

type sent struct {
	to  string
	msg compose.Message
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	fail map[string]bool
	// hook runs before every send.
	hook func(ctx context.Context, to string) error
}

func (s *fakeSender) Send(ctx context.Context, to string, msg compose.Message) error {
	if s.hook != nil {
		if err := s.hook(ctx, to); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[to] {
		return errors.New("recipient not on channel")
	}
	s.sent = append(s.sent, sent{to: to, msg: msg})
	return nil
}

func (s *fakeSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []string
	for _, m := range s.sent {
		result = append(result, m.to)
	}
	return result
}

var entry = models.Question{ID: "q1", Text: "What is your name?", Input: models.TextInput{}}

func rows(ids ...string) []recipients.Row {
	result := make([]recipients.Row, len(ids))
	for i, id := range ids {
		result[i] = recipients.Row{RecipientID: id, DisplayName: "User " + id}
	}
	return result
}

func TestRun_IsolatesFailures(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	sender := &fakeSender{fail: map[string]bool{"2": true}}
	d := campaign.NewDispatcher(testhelpers.NewTestLogger(t), store, sender, campaign.Options{})

	report, err := d.Run(t.Context(), rows("1", "2", "3"), entry)
	require.NoError(t, err)
	require.Equal(t, 3, report.TotalRows)
	require.Equal(t, 3, report.CreatedRecords)
	require.Equal(t, 2, report.SentCount)
	require.Len(t, report.Errors, 1)
	require.Equal(t, "2", report.Errors[0].RecipientID)
	require.Contains(t, report.Errors[0].Detail, "recipient not on channel")
	require.False(t, report.Cancelled)
	require.Equal(t, []string{"1", "3"}, sender.recipients())
}

func TestRun_StoreFailureSkipsSend(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	store.fail["1"] = true
	sender := &fakeSender{}
	d := campaign.NewDispatcher(testhelpers.NewTestLogger(t), store, sender, campaign.Options{})

	report, err := d.Run(t.Context(), rows("1", "2"), entry)
	require.NoError(t, err)
	require.Equal(t, 1, report.SentCount)
	require.Equal(t, 1, report.CreatedRecords)
	require.Equal(t, []campaign.RowError{{RecipientID: "1", Detail: "create recipient record: store unavailable"}},
		report.Errors)
	require.Equal(t, []string{"2"}, sender.recipients())
}

func TestRun_ExistingRecordsAreNotCreated(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	d := campaign.NewDispatcher(testhelpers.NewTestLogger(t), store, &fakeSender{}, campaign.Options{})

	first, err := d.Run(t.Context(), rows("1", "2"), entry)
	require.NoError(t, err)
	require.Equal(t, 2, first.CreatedRecords)

	second, err := d.Run(t.Context(), rows("1", "2"), entry)
	require.NoError(t, err)
	require.Equal(t, 0, second.CreatedRecords)
	require.Equal(t, 2, second.SentCount)
}

func TestRun_SendsEveryComposedMessage(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	d := campaign.NewDispatcher(testhelpers.NewTestLogger(t), newMemoryStore(), sender, campaign.Options{})
	q := models.Question{
		ID:    "q1",
		Text:  "Which one?",
		Image: &models.Image{URL: "https://example.com/a.png"},
		Input: models.ChoiceInput{Options: []string{"a", "b"}},
	}

	report, err := d.Run(t.Context(), rows("1"), q)
	require.NoError(t, err)
	require.Equal(t, 1, report.SentCount)
	require.Len(t, sender.sent, 2)
	require.IsType(t, compose.Image{}, sender.sent[0].msg)
	require.IsType(t, compose.ChoiceList{}, sender.sent[1].msg)
}

func TestRun_Preconditions(t *testing.T) {
	t.Parallel()
	logger := testhelpers.NewTestLogger(t)

	d := campaign.NewDispatcher(logger, newMemoryStore(), &fakeSender{}, campaign.Options{})
	_, err := d.Run(t.Context(), rows("1"), models.Question{})
	require.ErrorIs(t, err, campaign.ErrNoEntryQuestion)

	d = campaign.NewDispatcher(logger, newMemoryStore(), nil, campaign.Options{})
	_, err = d.Run(t.Context(), rows("1"), entry)
	require.ErrorIs(t, err, campaign.ErrNoSender)
	_, err = d.RunConcurrent(t.Context(), rows("1"), entry, 2)
	require.ErrorIs(t, err, campaign.ErrNoSender)
}

func TestRun_Cancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	var sendErrs []error
	sender := &fakeSender{hook: func(sendCtx context.Context, to string) error {
		if to == "2" {
			cancel()
		}
		sendErrs = append(sendErrs, sendCtx.Err())
		return nil
	}}
	d := campaign.NewDispatcher(testhelpers.NewTestLogger(t), newMemoryStore(), sender, campaign.Options{})

	report, err := d.Run(ctx, rows("1", "2", "3", "4"), entry)
	require.NoError(t, err)
	require.True(t, report.Cancelled)
	require.Equal(t, 4, report.TotalRows)
	require.Equal(t, 2, report.SentCount, "the row in flight completes")
	require.Empty(t, report.Errors)
	require.Equal(t, []error{nil, nil}, sendErrs, "sends are not interrupted by cancellation")
}

func TestRun_SendTimeout(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{hook: func(ctx context.Context, to string) error {
		if to != "slow" {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	}}
	d := campaign.NewDispatcher(testhelpers.NewTestLogger(t), newMemoryStore(), sender, campaign.Options{
		SendTimeout: 10 * time.Millisecond,
	})

	report, err := d.Run(t.Context(), rows("slow", "fast"), entry)
	require.NoError(t, err)
	require.Equal(t, 1, report.SentCount)
	require.Len(t, report.Errors, 1)
	require.Equal(t, "slow", report.Errors[0].RecipientID)
	require.Contains(t, report.Errors[0].Detail, context.DeadlineExceeded.Error())
	require.Contains(t, report.Errors[0].Detail, campaign.ErrChannel.Error())
	require.Contains(t, report.Errors[0].Detail, "send to channel")
}

type recordingPacer struct {
	mu     sync.Mutex
	failed []bool
}

func (p *recordingPacer) Wait(ctx context.Context, failed bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, failed)
	return ctx.Err()
}

func TestRun_PacesBetweenRows(t *testing.T) {
	t.Parallel()
	pacer := &recordingPacer{}
	sender := &fakeSender{fail: map[string]bool{"2": true}}
	d := campaign.NewDispatcher(testhelpers.NewTestLogger(t), newMemoryStore(), sender, campaign.Options{Pacer: pacer})

	_, err := d.Run(t.Context(), rows("1", "2", "3"), entry)
	require.NoError(t, err)
	require.Equal(t, []bool{false, true}, pacer.failed)
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[campaign.Outcome]int
	created  int
	reports  []campaign.Report
}

func (o *countingObserver) RowProcessed(outcome campaign.Outcome, created bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[campaign.Outcome]int{}
	}
	o.outcomes[outcome]++
	if created {
		o.created++
	}
}

func (o *countingObserver) RunFinished(report campaign.Report, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, report)
}

func TestRunConcurrent(t *testing.T) {
	t.Parallel()
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprint(i)
	}
	var inFlight, maxInFlight atomic.Int32
	sender := &fakeSender{
		fail: map[string]bool{"5": true, "12": true},
		hook: func(context.Context, string) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			return nil
		},
	}
	store := newMemoryStore()
	store.fail["7"] = true
	observer := &countingObserver{}
	d := campaign.NewDispatcher(testhelpers.NewTestLogger(t), store, sender, campaign.Options{
		Pacer:    campaign.NewRatePacer(1000, 20),
		Observer: observer,
	})

	report, err := d.RunConcurrent(t.Context(), rows(ids...), entry, 4)
	require.NoError(t, err)
	require.Equal(t, 20, report.TotalRows)
	require.Equal(t, 17, report.SentCount)
	require.Equal(t, 19, report.CreatedRecords)
	require.False(t, report.Cancelled)
	var failed []string
	for _, e := range report.Errors {
		failed = append(failed, e.RecipientID)
	}
	require.Equal(t, []string{"5", "7", "12"}, failed, "errors keep input order")
	require.LessOrEqual(t, maxInFlight.Load(), int32(4))

	require.Equal(t, 17, observer.outcomes[campaign.OutcomeSent])
	require.Equal(t, 2, observer.outcomes[campaign.OutcomeChannelError])
	require.Equal(t, 1, observer.outcomes[campaign.OutcomeStoreError])
	require.Equal(t, 19, observer.created)
	require.Equal(t, []campaign.Report{report}, observer.reports)
}

type cancellingPacer struct {
	calls  atomic.Int32
	after  int32
	cancel context.CancelFunc
}

func (p *cancellingPacer) Wait(ctx context.Context, _ bool) error {
	if p.calls.Add(1) > p.after {
		p.cancel()
	}
	return ctx.Err()
}

func TestRunConcurrent_Cancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	sender := &fakeSender{}
	d := campaign.NewDispatcher(testhelpers.NewTestLogger(t), newMemoryStore(), sender, campaign.Options{
		Pacer: &cancellingPacer{after: 3, cancel: cancel},
	})

	report, err := d.RunConcurrent(ctx, rows("1", "2", "3", "4", "5"), entry, 2)
	require.NoError(t, err)
	require.True(t, report.Cancelled)
	require.Equal(t, 5, report.TotalRows)
	require.Equal(t, 3, report.SentCount)
	require.ElementsMatch(t, []string{"1", "2", "3"}, sender.recipients())
}

func TestDispatch_SelectsRunner(t *testing.T) {
	t.Parallel()
	pacer := &recordingPacer{}
	d := campaign.NewDispatcher(testhelpers.NewTestLogger(t), newMemoryStore(), &fakeSender{}, campaign.Options{Pacer: pacer})

	_, err := d.Dispatch(t.Context(), rows("1", "2"), entry, 1)
	require.NoError(t, err)
	require.Len(t, pacer.failed, 1, "sequential runs wait between rows")

	_, err = d.Dispatch(t.Context(), rows("1", "2"), entry, 2)
	require.NoError(t, err)
	require.Len(t, pacer.failed, 3, "worker pool waits before every row")
}

type questionList []models.Question

func (l questionList) List(context.Context) ([]models.Question, error) {
	return l, nil
}

func TestEntryQuestion(t *testing.T) {
	t.Parallel()
	_, err := campaign.EntryQuestion(t.Context(), questionList(nil))
	require.ErrorIs(t, err, campaign.ErrNoEntryQuestion)

	got, err := campaign.EntryQuestion(t.Context(), questionList{
		{ID: "b", Order: 2, Input: models.TextInput{}},
		{ID: "a", Order: 1, Input: models.TextInput{}},
	})
	require.NoError(t, err)
	require.Equal(t, models.QuestionID("a"), got.ID)
}
