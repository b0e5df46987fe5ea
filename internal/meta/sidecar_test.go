package meta

import (
	"testing"
	"time"

	"github.com/franz/bcr-index/internal/recording"
)

const bcrSidecar = `{
  "timestamp_unix_ms": 1684859700123,
  "timestamp": "2023-05-23T18:35:00.123+02:00",
  "direction": "out",
  "sim_slot": 1,
  "call_log_name": "Johnny",
  "calls": [
    {
      "direction": "out",
      "phone_number": "+391235829248",
      "phone_number_formatted": "+39 123 582 9248",
      "caller_name": null,
      "contact_name": "John Doe"
    }
  ],
  "output": {
    "format": {
      "type": "OGG/Opus",
      "mime_type_container": "audio/ogg",
      "mime_type_audio": "audio/opus"
    },
    "recording": {
      "sample_rate": 48000,
      "channel_count": 1,
      "duration_secs_wall": 62.5,
      "duration_secs_total": 61.48,
      "duration_secs_encoded": 61.4
    }
  }
}`

func TestParseSidecar(t *testing.T) {
	sc, err := ParseSidecar([]byte(bcrSidecar))
	if err != nil {
		t.Fatalf("ParseSidecar failed: %v", err)
	}

	date, ok := sc.Date()
	expected := time.Date(2023, 5, 23, 18, 35, 0, 123*int(time.Millisecond), time.FixedZone("", 2*3600))
	if !ok || !date.Equal(expected) {
		t.Errorf("Date() = %v, %v, expected %v", date, ok, expected)
	}
	if d, ok := sc.Duration(); !ok || d != 61.48 {
		t.Errorf("Duration() = %v, %v, expected 61.48", d, ok)
	}
	if got := sc.MimeType(); got != "audio/ogg" {
		t.Errorf("MimeType() = %q, expected audio/ogg", got)
	}
	if got := sc.CallDirection(); got != recording.DirectionOut {
		t.Errorf("CallDirection() = %q, expected out", got)
	}
	if got := sc.OpName(); got != "John Doe" {
		t.Errorf("OpName() = %q, expected John Doe", got)
	}
	if got := sc.OpNumber(); got != "+391235829248" {
		t.Errorf("OpNumber() = %q, expected +391235829248", got)
	}
	if sc.SimSlot == nil || *sc.SimSlot != 1 {
		t.Errorf("SimSlot = %v, expected 1", sc.SimSlot)
	}
}

func TestParseSidecar_Conference(t *testing.T) {
	sc, err := ParseSidecar([]byte(`{
		"direction": "conference",
		"calls": [
			{"phone_number": "111", "contact_name": "Alice"},
			{"phone_number": "222", "caller_name": "Bob"}
		]
	}`))
	if err != nil {
		t.Fatalf("ParseSidecar failed: %v", err)
	}
	if got := sc.OpName(); got != "Alice, Bob" {
		t.Errorf("OpName() = %q, expected \"Alice, Bob\"", got)
	}
	if got := sc.OpNumber(); got != "111, 222" {
		t.Errorf("OpNumber() = %q, expected \"111, 222\"", got)
	}
	if got := sc.CallDirection(); got != recording.DirectionConference {
		t.Errorf("CallDirection() = %q, expected conference", got)
	}
	if _, ok := sc.Date(); ok {
		t.Error("Date() reported a date for a sidecar without timestamps")
	}
}

func TestParseSidecar_UnixMillisOnly(t *testing.T) {
	sc, err := ParseSidecar([]byte(`{"timestamp_unix_ms": 1684859700123, "call_log_name": " Mom "}`))
	if err != nil {
		t.Fatalf("ParseSidecar failed: %v", err)
	}
	date, ok := sc.Date()
	if !ok || date.UnixMilli() != 1684859700123 {
		t.Errorf("Date() = %v, %v, expected unix ms 1684859700123", date, ok)
	}
	if got := sc.OpName(); got != "Mom" {
		t.Errorf("OpName() = %q, expected Mom", got)
	}
}

func TestParseSidecar_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"not an object", `["a"]`},
		{"truncated", `{"direction": "in"`},
		{"wrong type", `{"sim_slot": "one"}`},
		{"bad timestamp", `{"timestamp": "yesterday"}`},
		{"plain text", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if sc, err := ParseSidecar([]byte(tt.data)); err == nil {
				t.Errorf("ParseSidecar(%q) = %+v, expected error", tt.data, sc)
			}
		})
	}
}
