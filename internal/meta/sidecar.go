package meta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/franz/bcr-index/internal/recording"
)

// Sidecar is the JSON metadata file the call recorder writes next to each
// recording. Unknown fields are ignored.
type Sidecar struct {
	TimestampUnixMs *int64        `json:"timestamp_unix_ms"`
	Timestamp       string        `json:"timestamp"`
	Direction       string        `json:"direction"`
	SimSlot         *int          `json:"sim_slot"`
	CallLogName     string        `json:"call_log_name"`
	Calls           []SidecarCall `json:"calls"`
	Output          *struct {
		Format *struct {
			Type              string `json:"type"`
			MimeTypeContainer string `json:"mime_type_container"`
			MimeTypeAudio     string `json:"mime_type_audio"`
		} `json:"format"`
		Recording *struct {
			SampleRate          int      `json:"sample_rate"`
			ChannelCount        int      `json:"channel_count"`
			DurationSecsTotal   *float64 `json:"duration_secs_total"`
			DurationSecsEncoded *float64 `json:"duration_secs_encoded"`
		} `json:"recording"`
	} `json:"output"`
}

// SidecarCall is one call leg; conference recordings carry several
type SidecarCall struct {
	Direction            string `json:"direction"`
	PhoneNumber          string `json:"phone_number"`
	PhoneNumberFormatted string `json:"phone_number_formatted"`
	CallerName           string `json:"caller_name"`
	ContactName          string `json:"contact_name"`
}

// ParseSidecar decodes sidecar content. Anything that is not a JSON object
// with correctly typed fields is rejected.
func ParseSidecar(data []byte) (*Sidecar, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty metadata file")
	}
	if trimmed[0] != '{' {
		return nil, errors.New("metadata is not a JSON object")
	}
	var sc Sidecar
	if err := json.Unmarshal(trimmed, &sc); err != nil {
		return nil, err
	}
	if sc.Timestamp != "" && sc.TimestampUnixMs == nil {
		if _, err := time.Parse(time.RFC3339Nano, sc.Timestamp); err != nil {
			return nil, fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	return &sc, nil
}

// Date returns the call start time, preferring the zoned timestamp
func (s *Sidecar) Date() (time.Time, bool) {
	if s.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, s.Timestamp); err == nil {
			return t, true
		}
	}
	if s.TimestampUnixMs != nil {
		return time.UnixMilli(*s.TimestampUnixMs), true
	}
	return time.Time{}, false
}

// Duration returns the recorded length in seconds
func (s *Sidecar) Duration() (float64, bool) {
	if s.Output == nil || s.Output.Recording == nil {
		return 0, false
	}
	if d := s.Output.Recording.DurationSecsTotal; d != nil {
		return *d, true
	}
	if d := s.Output.Recording.DurationSecsEncoded; d != nil {
		return *d, true
	}
	return 0, false
}

// MimeType returns the container MIME type
func (s *Sidecar) MimeType() string {
	if s.Output == nil || s.Output.Format == nil {
		return ""
	}
	return s.Output.Format.MimeTypeContainer
}

// CallDirection maps the recorder's direction string
func (s *Sidecar) CallDirection() recording.Direction {
	if d := parseDirection(s.Direction); d != "" {
		return d
	}
	if len(s.Calls) == 1 {
		return parseDirection(s.Calls[0].Direction)
	}
	return ""
}

// OpName returns the best display name of the other party.
// Conference legs are joined with ", ".
func (s *Sidecar) OpName() string {
	var names []string
	for _, c := range s.Calls {
		if n := firstNonEmpty(c.ContactName, c.CallerName); n != "" {
			names = append(names, CleanName(n))
		}
	}
	if len(names) > 0 {
		return strings.Join(names, ", ")
	}
	return CleanName(s.CallLogName)
}

// OpNumber returns the phone number(s) of the other party
func (s *Sidecar) OpNumber() string {
	var numbers []string
	for _, c := range s.Calls {
		if c.PhoneNumber != "" {
			numbers = append(numbers, c.PhoneNumber)
		}
	}
	return strings.Join(numbers, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
