package extract

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar format shared with the ledger (zh-TW short
// date, e.g. 2025/12/28).
const DateLayout = "2006/01/02"

// Record is one structured expense extracted from free text. A record is
// usable only when both Item and Amount are present; Date is always an
// absolute YYYY/MM/DD string by the time a Record leaves this package.
type Record struct {
	Item   string  `json:"item"`
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
}

// Valid reports whether the record satisfies the usability invariant.
func (r *Record) Valid() bool {
	return r != nil && strings.TrimSpace(r.Item) != "" && r.Amount != 0
}

// FormatAmount renders the amount as a plain number, the way the ledger
// and the confirmation reply show it (150, not 150.00).
func (r *Record) FormatAmount() string {
	return strconv.FormatFloat(r.Amount, 'f', -1, 64)
}

// FormatDate renders a reference date in the ledger's calendar format.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
