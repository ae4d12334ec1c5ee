package calls

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Area code (first digit 1-9) followed by an 8 to 10 digit number.
var phonePattern = regexp.MustCompile(`^[1-9][0-9]\d{8,10}$`)

const (
	msgRequired      = "This field is required."
	msgPhone         = "The number is not a valid phone number."
	msgInteger       = "A valid integer is required."
	msgDatetime      = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."
	msgSameNumber    = "Source and destination must be different numbers."
	msgStopNoNumbers = "This field must be empty on a stop event."
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// RegistryInput is a registry as submitted, before validation.
type RegistryInput struct {
	Type        string          `json:"type"`
	Timestamp   string          `json:"timestamp"`
	CallID      json.RawMessage `json:"call_id"`
	Source      *string         `json:"source"`
	Destination *string         `json:"destination"`
}

// ValidationError maps field names to messages.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], " ")))
	}
	return "calls: invalid registry: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// ValidateRegistry checks a submitted registry and converts it. The error, if
// any, is a *ValidationError listing every offending field.
func ValidateRegistry(in RegistryInput) (Registry, error) {
	var (
		out  Registry
		verr ValidationError
	)

	switch t := strings.TrimSpace(in.Type); {
	case validate.Var(t, "required") != nil:
		verr.add("type", msgRequired)
	case validate.Var(t, "oneof=start stop") != nil:
		verr.add("type", fmt.Sprintf("%q is not a valid choice.", t))
	default:
		out.Type = EventType(t)
	}

	if strings.TrimSpace(in.Timestamp) == "" {
		verr.add("timestamp", msgRequired)
	} else if ts, err := ParseTimestamp(in.Timestamp); err != nil {
		verr.add("timestamp", msgDatetime)
	} else {
		out.Timestamp = ts
	}

	if id, msg := parseCallID(in.CallID); msg != "" {
		verr.add("call_id", msg)
	} else {
		out.CallID = id
	}

	source, destination := deref(in.Source), deref(in.Destination)
	switch out.Type {
	case EventStart:
		checkPhone(&verr, "source", source)
		checkPhone(&verr, "destination", destination)
		if source != "" && source == destination {
			verr.add("non_field_errors", msgSameNumber)
		}
		out.Source, out.Destination = source, destination
	case EventStop:
		if source != "" {
			verr.add("source", msgStopNoNumbers)
		}
		if destination != "" {
			verr.add("destination", msgStopNoNumbers)
		}
	}

	if len(verr.Fields) > 0 {
		return Registry{}, &verr
	}
	return out, nil
}

func checkPhone(verr *ValidationError, field, v string) {
	if err := validate.Var(v, "required"); err != nil {
		verr.add(field, msgRequired)
		return
	}
	if err := validate.Var(v, "phone"); err != nil {
		verr.add(field, msgPhone)
	}
}

func parseCallID(raw json.RawMessage) (int64, string) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, msgRequired
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
		if s == "" {
			return 0, msgRequired
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, msgInteger
	}
	if validate.Var(n, "gt=0") != nil {
		return 0, msgInteger
	}
	return n, ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// ParseTimestamp accepts ISO-8601 date-times with or without an offset. The
// wall clock is kept as written and tagged UTC, so "21:57:13-03:00" and
// "21:57:13" both yield 21:57:13.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		y, mo, d := t.Date()
		h, mi, sec := t.Clock()
		return time.Date(y, mo, d, h, mi, sec, t.Nanosecond(), time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("calls: unparsable timestamp %q", s)
}
