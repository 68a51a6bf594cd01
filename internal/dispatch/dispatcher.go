package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/ledgerline/internal/config"
	"github.com/mattjoyce/ledgerline/internal/extract"
	"github.com/mattjoyce/ledgerline/internal/journal"
	"github.com/mattjoyce/ledgerline/internal/line"
	"github.com/mattjoyce/ledgerline/internal/relay"
	"github.com/mattjoyce/ledgerline/internal/webhook"
)

// Extractor turns free text plus a reference date into a structured record.
type Extractor interface {
	Extract(ctx context.Context, text string, referenceDate time.Time) (*extract.Record, error)
}

// LedgerAppender appends one confirmed record to the ledger.
type LedgerAppender interface {
	Append(ctx context.Context, record *extract.Record) error
	SheetName() string
}

// Replier sends the confirmation message back to the sender.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// Forwarder relays a raw delivery downstream.
type Forwarder interface {
	Forward(ctx context.Context, delivery webhook.Delivery) (*relay.ForwardResult, error)
}

// Journal records pipeline outcomes.
type Journal interface {
	Record(ctx context.Context, req journal.RecordRequest) (string, error)
}

// Dispatcher routes each acknowledged delivery down the configured
// pipeline. It implements webhook.Processor.
type Dispatcher struct {
	mode      config.Mode
	extractor Extractor
	ledger    LedgerAppender
	replier   Replier
	forwarder Forwarder
	journal   Journal
	logger    *slog.Logger

	// now is injectable for deterministic reference dates in tests.
	now func() time.Time

	wg sync.WaitGroup
}

// New creates a Dispatcher. Extract-mode dependencies (extractor, ledger,
// replier) may be nil in relay mode and vice versa.
func New(mode config.Mode, extractor Extractor, ledger LedgerAppender, replier Replier, forwarder Forwarder, jrnl Journal, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		mode:      mode,
		extractor: extractor,
		ledger:    ledger,
		replier:   replier,
		forwarder: forwarder,
		journal:   jrnl,
		logger:    logger,
		now:       time.Now,
	}
}

// Process detaches the delivery onto its own goroutine and returns
// promptly. See the package documentation for the detachment contract.
func (d *Dispatcher) Process(delivery webhook.Delivery) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.processDelivery(context.Background(), delivery)
	}()
}

// Shutdown waits for in-flight deliveries until ctx expires.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}
}

func (d *Dispatcher) processDelivery(ctx context.Context, delivery webhook.Delivery) {
	logger := d.logger.With("delivery_id", delivery.ID)

	switch d.mode {
	case config.ModeRelay:
		d.relayDelivery(ctx, logger, delivery)
	case config.ModeExtract:
		d.extractDelivery(ctx, logger, delivery)
	default:
		logger.Error("unknown dispatch mode", "mode", d.mode)
	}
}

// relayDelivery forwards the raw delivery once (per delivery, not per
// event). The outcome is logged and journaled only.
func (d *Dispatcher) relayDelivery(ctx context.Context, logger *slog.Logger, delivery webhook.Delivery) {
	result, err := d.forwarder.Forward(ctx, delivery)
	if err != nil {
		logger.Error("forward failed", "error", err)
		d.record(ctx, logger, journal.RecordRequest{
			DeliveryID: delivery.ID,
			Mode:       string(config.ModeRelay),
			Status:     journal.StatusForwardFailed,
			Detail:     err.Error(),
		})
		return
	}

	d.record(ctx, logger, journal.RecordRequest{
		DeliveryID: delivery.ID,
		Mode:       string(config.ModeRelay),
		Status:     journal.StatusForwarded,
		Detail:     fmt.Sprintf("status %d", result.StatusCode),
	})
}

// extractDelivery iterates the delivery's events in arrival order. Each
// event is handled independently; a failure on one never aborts the rest.
func (d *Dispatcher) extractDelivery(ctx context.Context, logger *slog.Logger, delivery webhook.Delivery) {
	body, err := line.ParseWebhookBody(delivery.Body)
	if err != nil {
		logger.Warn("unparseable delivery body, dropping", "error", err)
		d.record(ctx, logger, journal.RecordRequest{
			DeliveryID: delivery.ID,
			Mode:       string(config.ModeExtract),
			Status:     journal.StatusSkipped,
			Detail:     "unparseable body",
		})
		return
	}

	for i, event := range body.Events {
		if !event.IsTextMessage() {
			continue
		}
		d.handleTextEvent(ctx, logger.With("event", i), delivery.ID, event)
	}
}

func (d *Dispatcher) handleTextEvent(ctx context.Context, logger *slog.Logger, deliveryID string, event line.Event) {
	referenceDate := d.now()

	record, err := d.extractor.Extract(ctx, event.Message.Text, referenceDate)
	if err != nil {
		logger.Error("extraction failed, skipping event", "error", err)
		d.record(ctx, logger, journal.RecordRequest{
			DeliveryID: deliveryID,
			Mode:       string(config.ModeExtract),
			Status:     journal.StatusSkipped,
			Detail:     err.Error(),
		})
		return
	}
	if !record.Valid() {
		// No financial intent in the message. Silence, not an error.
		logger.Debug("no expense detected, skipping event")
		d.record(ctx, logger, journal.RecordRequest{
			DeliveryID: deliveryID,
			Mode:       string(config.ModeExtract),
			Status:     journal.StatusSkipped,
			Detail:     "no expense detected",
		})
		return
	}

	if err := d.ledger.Append(ctx, record); err != nil {
		// The sender receives silence, not an error message.
		logger.Error("ledger append failed, skipping event",
			"item", record.Item,
			"amount", record.Amount,
			"error", err,
		)
		d.record(ctx, logger, journal.RecordRequest{
			DeliveryID: deliveryID,
			Mode:       string(config.ModeExtract),
			Status:     journal.StatusSkipped,
			Item:       record.Item,
			Amount:     record.Amount,
			Date:       record.Date,
			Detail:     err.Error(),
		})
		return
	}

	logger.Info("expense recorded",
		"item", record.Item,
		"amount", record.Amount,
		"date", record.Date,
	)

	replyText := fmt.Sprintf("✅ 已記錄到 %s\n日期：%s\n項目：%s\n金額：$%s",
		d.ledger.SheetName(), record.Date, record.Item, record.FormatAmount())

	if err := d.replier.Reply(ctx, event.ReplyToken, replyText); err != nil {
		// The row is in the ledger; only the confirmation was lost.
		logger.Error("reply failed", "error", err)
		d.record(ctx, logger, journal.RecordRequest{
			DeliveryID: deliveryID,
			Mode:       string(config.ModeExtract),
			Status:     journal.StatusReplyFailed,
			Item:       record.Item,
			Amount:     record.Amount,
			Date:       record.Date,
			Detail:     err.Error(),
		})
		return
	}

	d.record(ctx, logger, journal.RecordRequest{
		DeliveryID: deliveryID,
		Mode:       string(config.ModeExtract),
		Status:     journal.StatusRecorded,
		Item:       record.Item,
		Amount:     record.Amount,
		Date:       record.Date,
	})
}

// record writes a journal row; journal failures are log-only.
func (d *Dispatcher) record(ctx context.Context, logger *slog.Logger, req journal.RecordRequest) {
	if d.journal == nil {
		return
	}
	if _, err := d.journal.Record(ctx, req); err != nil {
		logger.Error("journal write failed", "error", err)
	}
}
