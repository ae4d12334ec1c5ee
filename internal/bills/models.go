package bills

import (
	"errors"
	"fmt"
	"time"
)

// Bill is one priced, consolidated call. Bills are append-only and unique
// per SourceCallURL.
type Bill struct {
	ID            int64
	SourceCallURL string

	Subscriber  string
	Destination string

	StartTimestamp time.Time
	StopTimestamp  time.Time
	CallDuration   time.Duration

	// CallPriceMinor is in centavos.
	CallPriceMinor int64
}

// URL is where the subscriber's bills are served.
func URL(subscriber string) string { return fmt.Sprintf("/bills/%s", subscriber) }

// Statement is a subscriber's bill for one closed month.
type Statement struct {
	Subscriber string       `json:"subscriber"`
	Period     string       `json:"period"`
	Calls      []BilledCall `json:"calls"`
}

type BilledCall struct {
	Destination   string `json:"destination"`
	CallStartDate string `json:"call_start_date"`
	CallStartTime string `json:"call_start_time"`
	CallDuration  string `json:"call_duration"`
	CallPrice     string `json:"call_price"`
}

var (
	ErrForbidden       = errors.New("bills: subscriber required")
	ErrBadPeriod       = errors.New("bills: invalid period")
	ErrPeriodNotClosed = errors.New("bills: period is not closed yet")
	ErrNoCalls         = errors.New("bills: no calls in period")
	ErrNotConsolidated = errors.New("bills: call is not consolidated")
)
