package calls

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func strp(s string) *string { return &s }

func startInput() RegistryInput {
	return RegistryInput{
		Type:        "start",
		Timestamp:   "2016-02-29T12:00:00Z",
		CallID:      json.RawMessage(`70`),
		Source:      strp("99988526423"),
		Destination: strp("9993468278"),
	}
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	return verr.Fields
}

func TestValidateRegistry_ValidStart(t *testing.T) {
	reg, err := ValidateRegistry(startInput())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if reg.Type != EventStart || reg.CallID != 70 {
		t.Fatalf("unexpected registry %+v", reg)
	}
	want := time.Date(2016, 2, 29, 12, 0, 0, 0, time.UTC)
	if !reg.Timestamp.Equal(want) {
		t.Fatalf("expected %s, got %s", want, reg.Timestamp)
	}
}

func TestValidateRegistry_ValidStop(t *testing.T) {
	reg, err := ValidateRegistry(RegistryInput{Type: "stop", Timestamp: "2016-02-29T14:00:00", CallID: json.RawMessage(`"70"`)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if reg.Type != EventStop || reg.CallID != 70 || reg.Source != "" {
		t.Fatalf("unexpected registry %+v", reg)
	}
}

func TestValidateRegistry_InvalidPhone(t *testing.T) {
	for _, bad := range []string{"0998852642", "99988", "9998852642311", "99a88526423"} {
		in := startInput()
		in.Source = strp(bad)
		fields := fieldErrors(t, mustFail(ValidateRegistry(in)))
		if len(fields["source"]) != 1 || fields["source"][0] != msgPhone {
			t.Fatalf("%s: expected phone error, got %v", bad, fields)
		}
	}
}

func TestValidateRegistry_StartRequiresNumbers(t *testing.T) {
	in := startInput()
	in.Source = nil
	in.Destination = strp("")
	fields := fieldErrors(t, mustFail(ValidateRegistry(in)))
	if fields["source"][0] != msgRequired || fields["destination"][0] != msgRequired {
		t.Fatalf("expected required errors, got %v", fields)
	}
}

func TestValidateRegistry_SameSourceAndDestination(t *testing.T) {
	in := startInput()
	in.Destination = in.Source
	fields := fieldErrors(t, mustFail(ValidateRegistry(in)))
	if len(fields["non_field_errors"]) != 1 {
		t.Fatalf("expected non_field_errors, got %v", fields)
	}
}

func TestValidateRegistry_StopForbidsNumbers(t *testing.T) {
	in := startInput()
	in.Type = "stop"
	fields := fieldErrors(t, mustFail(ValidateRegistry(in)))
	if len(fields["source"]) != 1 || len(fields["destination"]) != 1 {
		t.Fatalf("expected source and destination errors, got %v", fields)
	}
}

func TestValidateRegistry_MissingFields(t *testing.T) {
	fields := fieldErrors(t, mustFail(ValidateRegistry(RegistryInput{})))
	for _, f := range []string{"type", "timestamp", "call_id"} {
		if len(fields[f]) != 1 || fields[f][0] != msgRequired {
			t.Fatalf("expected %s required, got %v", f, fields)
		}
	}
}

func TestValidateRegistry_BadValues(t *testing.T) {
	in := startInput()
	in.Type = "pause"
	in.Timestamp = "yesterday"
	in.CallID = json.RawMessage(`"abc"`)
	fields := fieldErrors(t, mustFail(ValidateRegistry(in)))
	if fields["type"][0] != `"pause" is not a valid choice.` {
		t.Fatalf("unexpected type error %v", fields["type"])
	}
	if fields["timestamp"][0] != msgDatetime {
		t.Fatalf("unexpected timestamp error %v", fields["timestamp"])
	}
	if fields["call_id"][0] != msgInteger {
		t.Fatalf("unexpected call_id error %v", fields["call_id"])
	}
}

func TestParseTimestamp_KeepsWallClock(t *testing.T) {
	want := time.Date(2019, 4, 26, 21, 57, 13, 0, time.UTC)
	for _, in := range []string{
		"2019-04-26T21:57:13Z",
		"2019-04-26T21:57:13-03:00",
		"2019-04-26T21:57:13",
		"2019-04-26 21:57:13",
	} {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("%s: expected %s, got %s", in, want, got)
		}
	}
}

func mustFail(_ Registry, err error) error { return err }
