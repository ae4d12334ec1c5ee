package bills

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"telephone-billing/internal/calls"
	"telephone-billing/internal/tariff"
)

type Service struct {
	repo     Repository
	schedule tariff.RateSchedule
	clock    func() time.Time
}

func NewService(repo Repository, schedule tariff.RateSchedule) *Service {
	return &Service{repo: repo, schedule: schedule, clock: time.Now}
}

// Price builds the bill for a consolidated call without storing it.
func (s *Service) Price(c calls.Call) (Bill, tariff.Breakdown, error) {
	if !c.Consolidated() {
		return Bill{}, tariff.Breakdown{}, ErrNotConsolidated
	}
	start, stop := *c.StartTimestamp, *c.StopTimestamp
	b, err := tariff.Compute(start, stop, s.schedule)
	if err != nil {
		return Bill{}, tariff.Breakdown{}, fmt.Errorf("bills: call %d: %w", c.CallID, err)
	}
	return Bill{
		SourceCallURL:  c.URL(),
		Subscriber:     c.Source,
		Destination:    c.Destination,
		StartTimestamp: start,
		StopTimestamp:  stop,
		CallDuration:   stop.Sub(start),
		CallPriceMinor: b.PriceMinor,
	}, b, nil
}

// Save stores a bill once per source call. A repeat returns the stored bill.
func (s *Service) Save(ctx context.Context, b Bill) (Bill, bool, error) {
	return s.repo.InsertBill(ctx, b)
}

// GetBill renders the subscriber's statement for month/year.
//
// Without a month the previous calendar month is used; a month without a
// year means the current year. Only closed months can be billed.
func (s *Service) GetBill(ctx context.Context, subscriber, month, year string) (Statement, error) {
	subscriber = strings.TrimSpace(subscriber)
	if subscriber == "" {
		return Statement{}, ErrForbidden
	}
	from, err := s.Period(month, year)
	if err != nil {
		return Statement{}, err
	}
	to := from.AddDate(0, 1, 0)

	rows, err := s.repo.ListBySubscriber(ctx, subscriber, from, to)
	if err != nil {
		return Statement{}, err
	}
	if len(rows) == 0 {
		return Statement{}, ErrNoCalls
	}

	out := Statement{
		Subscriber: subscriber,
		Period:     from.Format(periodLayout),
		Calls:      make([]BilledCall, 0, len(rows)),
	}
	for _, b := range rows {
		out.Calls = append(out.Calls, BilledCall{
			Destination:   b.Destination,
			CallStartDate: b.StartTimestamp.Format(dateLayout),
			CallStartTime: b.StartTimestamp.Format(clockLayout),
			CallDuration:  FormatDuration(b.CallDuration),
			CallPrice:     FormatPrice(b.CallPriceMinor),
		})
	}
	return out, nil
}

// Period resolves month/year to the first instant of that month. The current
// and future months are rejected with ErrPeriodNotClosed.
func (s *Service) Period(month, year string) (time.Time, error) {
	now := s.clock().UTC()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	month, year = strings.TrimSpace(month), strings.TrimSpace(year)
	if month == "" {
		if year != "" {
			return time.Time{}, fmt.Errorf("%w: year given without month", ErrBadPeriod)
		}
		return current.AddDate(0, -1, 0), nil
	}

	m, ok := parseMonth(month)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown month %q", ErrBadPeriod, month)
	}
	y := now.Year()
	if year != "" {
		n, err := strconv.Atoi(year)
		if err != nil || n < 1 || n > 9999 {
			return time.Time{}, fmt.Errorf("%w: invalid year %q", ErrBadPeriod, year)
		}
		y = n
	}

	p := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	if !p.Before(current) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrPeriodNotClosed, p.Format(periodLayout))
	}
	return p, nil
}

func parseMonth(s string) (time.Month, bool) {
	if len(s) != 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String()[:3], s) {
			return m, true
		}
	}
	return 0, false
}
