// Package ledger appends confirmed expense records to a spreadsheet-backed
// ledger. The sheet is append-only: no updates, no existence checks, and no
// idempotency key — replaying a delivery produces duplicate rows by design.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/mattjoyce/ledgerline/internal/extract"
)

// The ledger has a fixed six-column layout:
// A 消費日, B 入帳日, C 明細, D/E (blank), F 金額.
// Expense date always equals posting date; no accrual distinction is modeled.
const appendRange = "%s!A:F"

// Writer appends rows to one named sheet tab.
type Writer struct {
	service   *sheets.Service
	sheetID   string
	sheetName string
	timeout   time.Duration
	logger    *slog.Logger
}

// WriterConfig holds ledger destination settings.
type WriterConfig struct {
	SheetID   string
	SheetName string

	// CredentialsFile is a Google service-account JSON key. Empty means
	// application default credentials.
	CredentialsFile string

	// Endpoint overrides the Sheets API base URL (tests only). Setting it
	// also disables authentication.
	Endpoint string

	Timeout time.Duration
}

// NewWriter constructs a Writer and its authenticated Sheets service.
func NewWriter(ctx context.Context, config WriterConfig, logger *slog.Logger) (*Writer, error) {
	if config.SheetID == "" {
		return nil, fmt.Errorf("ledger: sheet ID is required")
	}
	if config.SheetName == "" {
		return nil, fmt.Errorf("ledger: sheet name is required")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var opts []option.ClientOption
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint), option.WithoutAuthentication())
	} else if config.CredentialsFile != "" {
		opts = append(opts,
			option.WithCredentialsFile(config.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		)
	} else {
		opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ledger: create sheets service: %w", err)
	}

	return &Writer{
		service:   service,
		sheetID:   config.SheetID,
		sheetName: config.SheetName,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// SheetName returns the ledger tab name (used in confirmation replies).
func (w *Writer) SheetName() string { return w.sheetName }

// BuildRow maps a record onto the fixed six-column layout.
func BuildRow(record *extract.Record) []interface{} {
	return []interface{}{
		record.Date, // A: 消費日
		record.Date, // B: 入帳日
		record.Item, // C: 明細
		"",          // D
		"",          // E
		record.Amount, // F: 金額
	}
}

// Append adds exactly one row after the sheet's existing data range.
// USER_ENTERED input lets the sheet recognize the date and amount the way
// a typed entry would, instead of storing literal strings.
func (w *Writer) Append(ctx context.Context, record *extract.Record) error {
	if !record.Valid() {
		return fmt.Errorf("ledger: record is not usable")
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	values := &sheets.ValueRange{
		Values: [][]interface{}{BuildRow(record)},
	}

	resp, err := w.service.Spreadsheets.Values.
		Append(w.sheetID, fmt.Sprintf(appendRange, w.sheetName), values).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("ledger: append row: %w", err)
	}

	updated := int64(0)
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRows
	}
	w.logger.Debug("ledger row appended",
		"sheet", w.sheetName,
		"item", record.Item,
		"amount", record.Amount,
		"date", record.Date,
		"updated_rows", updated,
	)
	return nil
}
