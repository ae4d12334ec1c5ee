package tariff

import (
	"errors"
	"fmt"
	"time"
)

// Amounts are expressed in minor units (e.g., centavos) using int64.

// Window is a daily time-of-day interval [Start, End) during which the
// per-minute charge applies. Minutes outside it are only covered by the
// standing charge.
type Window struct {
	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	EndHour     int `json:"end_hour"`
	EndMinute   int `json:"end_minute"`
}

// RateSchedule is the pricing policy for a single call.
type RateSchedule struct {
	// StandingChargeMinor is charged once per call, regardless of duration.
	StandingChargeMinor int64 `json:"standing_charge_minor"`

	// MinuteChargeMinor is charged per whole minute inside FullRate.
	MinuteChargeMinor int64 `json:"minute_charge_minor"`

	FullRate Window `json:"full_rate"`
}

// DefaultSchedule is R$ 0,36 standing charge plus R$ 0,09 per minute
// between 06:01 and 22:00.
func DefaultSchedule() RateSchedule {
	return RateSchedule{
		StandingChargeMinor: 36,
		MinuteChargeMinor:   9,
		FullRate:            Window{StartHour: 6, StartMinute: 1, EndHour: 22, EndMinute: 0},
	}
}

// Breakdown is the result of pricing one call.
type Breakdown struct {
	BillableSeconds int64 `json:"billable_seconds"`
	BillableMinutes int64 `json:"billable_minutes"`
	PriceMinor      int64 `json:"price_minor"`
}

var (
	ErrInvalidInterval = errors.New("tariff: stop must be after start")
	ErrInvalidSchedule = errors.New("tariff: invalid rate schedule")
)

// Validate is meant to run once, when the schedule is loaded from config.
func (s RateSchedule) Validate() error {
	if s.StandingChargeMinor <= 0 {
		return fmt.Errorf("%w: standing charge must be > 0", ErrInvalidSchedule)
	}
	if s.MinuteChargeMinor < 0 {
		return fmt.Errorf("%w: minute charge must be >= 0", ErrInvalidSchedule)
	}
	return s.FullRate.validate()
}

func (w Window) validate() error {
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 {
		return fmt.Errorf("%w: window hours must be within 0..23", ErrInvalidSchedule)
	}
	if w.StartMinute < 0 || w.StartMinute > 59 || w.EndMinute < 0 || w.EndMinute > 59 {
		return fmt.Errorf("%w: window minutes must be within 0..59", ErrInvalidSchedule)
	}
	if w.StartHour*60+w.StartMinute >= w.EndHour*60+w.EndMinute {
		return fmt.Errorf("%w: window start must be before window end", ErrInvalidSchedule)
	}
	return nil
}

// bounds returns the window for the calendar day of day, in day's location.
func (w Window) bounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	loc := day.Location()
	open := time.Date(y, m, d, w.StartHour, w.StartMinute, 0, 0, loc)
	closing := time.Date(y, m, d, w.EndHour, w.EndMinute, 0, 0, loc)
	return open, closing
}
