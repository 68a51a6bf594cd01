package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ledgerline/internal/config"
	"github.com/mattjoyce/ledgerline/internal/extract"
	"github.com/mattjoyce/ledgerline/internal/journal"
	"github.com/mattjoyce/ledgerline/internal/relay"
	"github.com/mattjoyce/ledgerline/internal/webhook"
)

// --- hand-rolled fakes ---

type fakeExtractor struct {
	mu      sync.Mutex
	results map[string]*extract.Record // text -> record
	errs    map[string]error
	calls   []string
	refs    []time.Time
	delay   time.Duration
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, ref time.Time) (*extract.Record, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	f.refs = append(f.refs, ref)
	if err, ok := f.errs[text]; ok {
		return nil, err
	}
	return f.results[text], nil
}

type fakeLedger struct {
	mu       sync.Mutex
	appended []*extract.Record
	err      error
}

func (f *fakeLedger) Append(ctx context.Context, r *extract.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, r)
	return nil
}

func (f *fakeLedger) SheetName() string { return "MR202512" }

type fakeReplier struct {
	mu      sync.Mutex
	replies map[string]string // replyToken -> text
	err     error
}

func (f *fakeReplier) Reply(ctx context.Context, token, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.replies == nil {
		f.replies = make(map[string]string)
	}
	f.replies[token] = text
	return nil
}

type fakeForwarder struct {
	mu     sync.Mutex
	calls  int
	result *relay.ForwardResult
	err    error
}

func (f *fakeForwarder) Forward(ctx context.Context, d webhook.Delivery) (*relay.ForwardResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []journal.RecordRequest
}

func (f *fakeJournal) Record(ctx context.Context, req journal.RecordRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, req)
	return "entry-id", nil
}

func (f *fakeJournal) statuses() []journal.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]journal.Status, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Status
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fixedNow(t *testing.T) time.Time {
	t.Helper()
	ts, err := time.Parse(extract.DateLayout, "2025/12/28")
	require.NoError(t, err)
	return ts
}

func textDelivery(events ...string) webhook.Delivery {
	parts := make([]string, len(events))
	for i, text := range events {
		parts[i] = fmt.Sprintf(`{"type":"message","replyToken":"rt%d","message":{"type":"text","text":%q}}`, i, text)
	}
	return webhook.Delivery{
		ID:   "dlv-test",
		Body: []byte(`{"events":[` + strings.Join(parts, ",") + `]}`),
	}
}

func drain(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}

func TestExtractMode_RecordedAndReplied(t *testing.T) {
	ex := &fakeExtractor{results: map[string]*extract.Record{
		"午餐 150": {Item: "午餐", Amount: 150, Date: "2025/12/28"},
	}}
	lg := &fakeLedger{}
	rp := &fakeReplier{}
	jr := &fakeJournal{}

	d := New(config.ModeExtract, ex, lg, rp, nil, jr, testLogger())
	d.now = func() time.Time { return fixedNow(t) }

	d.Process(textDelivery("午餐 150"))
	drain(t, d)

	// Exactly one append, one reply.
	require.Len(t, lg.appended, 1)
	assert.Equal(t, "午餐", lg.appended[0].Item)
	assert.Equal(t, float64(150), lg.appended[0].Amount)

	require.Len(t, rp.replies, 1)
	reply := rp.replies["rt0"]
	assert.Contains(t, reply, "✅")
	assert.Contains(t, reply, "午餐")
	assert.Contains(t, reply, "150")
	assert.Contains(t, reply, "2025/12/28")
	assert.Contains(t, reply, "MR202512")

	assert.Equal(t, []journal.Status{journal.StatusRecorded}, jr.statuses())

	// The reference date handed to extraction is "today".
	require.Len(t, ex.refs, 1)
	assert.Equal(t, fixedNow(t), ex.refs[0])
}

func TestExtractMode_NoExpenseIsSilent(t *testing.T) {
	ex := &fakeExtractor{results: map[string]*extract.Record{}} // nil record
	lg := &fakeLedger{}
	rp := &fakeReplier{}
	jr := &fakeJournal{}

	d := New(config.ModeExtract, ex, lg, rp, nil, jr, testLogger())
	d.Process(textDelivery("今天天氣真好"))
	drain(t, d)

	assert.Empty(t, lg.appended, "no ledger write for non-expense text")
	assert.Empty(t, rp.replies, "no reply for non-expense text")
	assert.Equal(t, []journal.Status{journal.StatusSkipped}, jr.statuses())
}

func TestExtractMode_AppendFailureMeansSilence(t *testing.T) {
	ex := &fakeExtractor{results: map[string]*extract.Record{
		"午餐 150": {Item: "午餐", Amount: 150, Date: "2025/12/28"},
	}}
	lg := &fakeLedger{err: fmt.Errorf("quota exceeded")}
	rp := &fakeReplier{}
	jr := &fakeJournal{}

	d := New(config.ModeExtract, ex, lg, rp, nil, jr, testLogger())
	d.Process(textDelivery("午餐 150"))
	drain(t, d)

	assert.Empty(t, rp.replies, "append failure must not produce a reply")
	assert.Equal(t, []journal.Status{journal.StatusSkipped}, jr.statuses())
}

func TestExtractMode_ReplyFailureAfterAppend(t *testing.T) {
	ex := &fakeExtractor{results: map[string]*extract.Record{
		"午餐 150": {Item: "午餐", Amount: 150, Date: "2025/12/28"},
	}}
	lg := &fakeLedger{}
	rp := &fakeReplier{err: fmt.Errorf("invalid reply token")}
	jr := &fakeJournal{}

	d := New(config.ModeExtract, ex, lg, rp, nil, jr, testLogger())
	d.Process(textDelivery("午餐 150"))
	drain(t, d)

	assert.Len(t, lg.appended, 1, "the row stays in the ledger")
	assert.Equal(t, []journal.Status{journal.StatusReplyFailed}, jr.statuses())
}

func TestExtractMode_EventFailureDoesNotAbortBatch(t *testing.T) {
	ex := &fakeExtractor{
		results: map[string]*extract.Record{
			"晚餐 300": {Item: "晚餐", Amount: 300, Date: "2025/12/28"},
		},
		errs: map[string]error{
			"午餐 150": fmt.Errorf("model unavailable"),
		},
	}
	lg := &fakeLedger{}
	rp := &fakeReplier{}
	jr := &fakeJournal{}

	d := New(config.ModeExtract, ex, lg, rp, nil, jr, testLogger())
	d.Process(textDelivery("午餐 150", "晚餐 300"))
	drain(t, d)

	// Events processed in arrival order; the second survives the first's failure.
	require.Equal(t, []string{"午餐 150", "晚餐 300"}, ex.calls)
	require.Len(t, lg.appended, 1)
	assert.Equal(t, "晚餐", lg.appended[0].Item)
	assert.Equal(t, []journal.Status{journal.StatusSkipped, journal.StatusRecorded}, jr.statuses())
}

func TestExtractMode_NonTextEventsIgnored(t *testing.T) {
	ex := &fakeExtractor{}
	jr := &fakeJournal{}
	d := New(config.ModeExtract, ex, &fakeLedger{}, &fakeReplier{}, nil, jr, testLogger())

	d.Process(webhook.Delivery{
		ID:   "dlv-sticker",
		Body: []byte(`{"events":[{"type":"message","replyToken":"rt","message":{"type":"sticker"}},{"type":"follow"}]}`),
	})
	drain(t, d)

	assert.Empty(t, ex.calls, "non-text events never reach extraction")
	assert.Empty(t, jr.entries)
}

func TestExtractMode_UnparseableBodyDropped(t *testing.T) {
	ex := &fakeExtractor{}
	jr := &fakeJournal{}
	d := New(config.ModeExtract, ex, &fakeLedger{}, &fakeReplier{}, nil, jr, testLogger())

	d.Process(webhook.Delivery{ID: "dlv-bad", Body: []byte(`{"events": [`)})
	drain(t, d)

	assert.Empty(t, ex.calls)
	assert.Equal(t, []journal.Status{journal.StatusSkipped}, jr.statuses())
}

func TestRelayMode_OneForwardPerDelivery(t *testing.T) {
	fw := &fakeForwarder{result: &relay.ForwardResult{StatusCode: 200, Body: "ok"}}
	jr := &fakeJournal{}

	d := New(config.ModeRelay, nil, nil, nil, fw, jr, testLogger())
	// Multiple events in the body: still exactly one forward.
	d.Process(textDelivery("午餐 150", "晚餐 300", "咖啡 85"))
	drain(t, d)

	assert.Equal(t, 1, fw.calls)
	assert.Equal(t, []journal.Status{journal.StatusForwarded}, jr.statuses())
}

func TestRelayMode_ForwardFailureJournaled(t *testing.T) {
	fw := &fakeForwarder{err: fmt.Errorf("context deadline exceeded")}
	jr := &fakeJournal{}

	d := New(config.ModeRelay, nil, nil, nil, fw, jr, testLogger())
	d.Process(textDelivery("午餐 150"))
	drain(t, d)

	assert.Equal(t, []journal.Status{journal.StatusForwardFailed}, jr.statuses())
}

func TestProcess_Detaches(t *testing.T) {
	ex := &fakeExtractor{
		results: map[string]*extract.Record{},
		delay:   300 * time.Millisecond,
	}
	d := New(config.ModeExtract, ex, &fakeLedger{}, &fakeReplier{}, nil, &fakeJournal{}, testLogger())

	start := time.Now()
	d.Process(textDelivery("午餐 150"))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 100*time.Millisecond, "Process must not wait on the pipeline")
	drain(t, d)
}

func TestShutdown_TimesOutOnStuckPipeline(t *testing.T) {
	ex := &fakeExtractor{
		results: map[string]*extract.Record{},
		delay:   2 * time.Second,
	}
	d := New(config.ModeExtract, ex, &fakeLedger{}, &fakeReplier{}, nil, &fakeJournal{}, testLogger())
	d.Process(textDelivery("午餐 150"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, d.Shutdown(ctx))
}
