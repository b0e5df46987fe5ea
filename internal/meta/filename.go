package meta

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/franz/bcr-index/internal/recording"
)

// FilenameMeta holds call attributes encoded in a recorder output file name
type FilenameMeta struct {
	Date       time.Time
	Direction  recording.Direction
	SimSlot    int
	Number     string
	Name       string
	Confidence float64 // 0.0-1.0 how much of the name matched the pattern
}

var (
	// 20230523_183500.123+0200 (milliseconds and offset optional)
	datePrefix  = regexp.MustCompile(`^(\d{8}_\d{6})(?:\.(\d{1,3}))?([+-]\d{4})?`)
	simSegment  = regexp.MustCompile(`^(?:sim)?([1-9])$`)
	phoneNumber = regexp.MustCompile(`^\+?[0-9][0-9\-() ]{2,}$`)
)

// ParseFilename extracts call attributes from names such as
// "20230523_183500.123+0200_out_sim1_+391235829248_John Doe.m4a".
// Fields that are absent stay zero; non-matching names yield Confidence 0.
func ParseFilename(name string) *FilenameMeta {
	stem := recording.Stem(name)
	meta := &FilenameMeta{}

	m := datePrefix.FindStringSubmatch(stem)
	if m == nil {
		return meta
	}
	date, ok := parseDate(m[1], m[2], m[3])
	if !ok {
		return meta
	}
	meta.Date = date
	meta.Confidence = 0.5

	rest := strings.TrimPrefix(stem[len(m[0]):], "_")
	if rest == "" {
		return meta
	}
	segments := strings.Split(rest, "_")

	if d := parseDirection(segments[0]); d != "" {
		meta.Direction = d
		meta.Confidence += 0.2
		segments = segments[1:]
	}
	if len(segments) > 0 {
		if sm := simSegment.FindStringSubmatch(segments[0]); sm != nil {
			meta.SimSlot, _ = strconv.Atoi(sm[1])
			meta.Confidence += 0.1
			segments = segments[1:]
		}
	}
	if len(segments) > 0 && phoneNumber.MatchString(segments[0]) {
		meta.Number = segments[0]
		meta.Confidence += 0.1
		segments = segments[1:]
	}
	if len(segments) > 0 {
		meta.Name = CleanName(strings.Join(segments, "_"))
		meta.Confidence += 0.1
	}
	return meta
}

func parseDate(stamp, millis, offset string) (time.Time, bool) {
	loc := time.Local
	if offset != "" {
		sign := 1
		if offset[0] == '-' {
			sign = -1
		}
		hh, _ := strconv.Atoi(offset[1:3])
		mm, _ := strconv.Atoi(offset[3:5])
		loc = time.FixedZone("", sign*(hh*3600+mm*60))
	}
	t, err := time.ParseInLocation("20060102_150405", stamp, loc)
	if err != nil {
		return time.Time{}, false
	}
	if millis != "" {
		for len(millis) < 3 {
			millis += "0"
		}
		ms, _ := strconv.Atoi(millis)
		t = t.Add(time.Duration(ms) * time.Millisecond)
	}
	return t, true
}

func parseDirection(s string) recording.Direction {
	switch strings.ToLower(s) {
	case "in", "incoming":
		return recording.DirectionIn
	case "out", "outgoing":
		return recording.DirectionOut
	case "conference":
		return recording.DirectionConference
	}
	return ""
}
