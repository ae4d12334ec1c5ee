package tariff

import "time"

// Compute prices a call that ran over [start, stop).
//
// Contract:
// - Pure calculation; no clock, no I/O.
// - Only seconds inside the FullRate window of each calendar day the call
//   touches are billable. Whole minutes only (floor).
// - Price is never below the standing charge.
func Compute(start, stop time.Time, s RateSchedule) (Breakdown, error) {
	if !stop.After(start) {
		return Breakdown{}, ErrInvalidInterval
	}

	sec := billableSeconds(start, stop.In(start.Location()), s.FullRate)
	minutes := sec / 60

	return Breakdown{
		BillableSeconds: sec,
		BillableMinutes: minutes,
		PriceMinor:      s.StandingChargeMinor + s.MinuteChargeMinor*minutes,
	}, nil
}

// ComputePrice is Compute without the breakdown.
func ComputePrice(start, stop time.Time, s RateSchedule) (int64, error) {
	b, err := Compute(start, stop, s)
	if err != nil {
		return 0, err
	}
	return b.PriceMinor, nil
}

// billableSeconds walks day by day from the start date, clipping each day's
// window against [start, stop), until a window opens after stop.
func billableSeconds(start, stop time.Time, w Window) int64 {
	y, m, d := start.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, start.Location())

	var total time.Duration
	for {
		open, closing := w.bounds(day)
		if open.After(stop) {
			break
		}

		lo := open
		if start.After(lo) {
			lo = start
		}
		hi := closing
		if stop.Before(hi) {
			hi = stop
		}
		// A call that starts after the window closed (or ends before it opens)
		// yields a negative span here; it contributes nothing.
		if hi.After(lo) {
			total += hi.Sub(lo)
		}

		day = day.AddDate(0, 0, 1)
	}
	return int64(total / time.Second)
}
