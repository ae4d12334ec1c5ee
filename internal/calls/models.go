package calls

import (
	"errors"
	"fmt"
	"time"
)

// Registry is one raw start or stop event as observed by the switch.
//
// Timestamps are stored as given: the wall clock is kept and no timezone
// conversion is applied. Registries are append-only.
type Registry struct {
	ID          int64     `json:"id,omitempty"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	CallID      int64     `json:"call_id"`
	Source      string    `json:"source,omitempty"`
	Destination string    `json:"destination,omitempty"`
}

type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
)

func (r Registry) URL() string { return fmt.Sprintf("/registry/%d", r.ID) }

// Call is the consolidated view of one call_id.
//
// A call is consolidated once both timestamps are set. Only consolidated
// calls are billed or served to readers.
type Call struct {
	CallID         int64      `json:"call_id"`
	StartTimestamp *time.Time `json:"start_timestamp"`
	StopTimestamp  *time.Time `json:"stop_timestamp"`
	Source         string     `json:"source"`
	Destination    string     `json:"destination"`
}

type State string

const (
	StateAbsent       State = "absent"
	StateStartOnly    State = "start-only"
	StateStopOnly     State = "stop-only"
	StateConsolidated State = "consolidated"
)

func (c Call) State() State {
	switch {
	case c.StartTimestamp != nil && c.StopTimestamp != nil:
		return StateConsolidated
	case c.StartTimestamp != nil:
		return StateStartOnly
	case c.StopTimestamp != nil:
		return StateStopOnly
	default:
		return StateAbsent
	}
}

func (c Call) Consolidated() bool { return c.State() == StateConsolidated }

func (c Call) URL() string { return URL(c.CallID) }

// URL is the locator of a call; bills keep it as their source.
func URL(callID int64) string { return fmt.Sprintf("/calls/%d", callID) }

// Duration is stop - start for consolidated calls, zero otherwise.
func (c Call) Duration() time.Duration {
	if !c.Consolidated() {
		return 0
	}
	return c.StopTimestamp.Sub(*c.StartTimestamp)
}

var (
	ErrNotFound     = errors.New("calls: not found")
	ErrInvalidEvent = errors.New("calls: invalid event")
)
