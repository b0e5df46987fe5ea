package recording

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// SortKey selects the attribute used to order recordings for display
type SortKey string

const (
	SortByDate     SortKey = "date"
	SortByName     SortKey = "name"
	SortByDuration SortKey = "duration"
	SortBySize     SortKey = "size"
)

// ParseSortKey validates a user supplied sort key
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(s)); k {
	case SortByDate, SortByName, SortByDuration, SortBySize:
		return k, nil
	case "":
		return SortByDate, nil
	}
	return "", fmt.Errorf("unknown sort key %q (use date, name, duration or size)", s)
}

// Sorted returns a display copy of idx. Dates sort newest first unless
// reverse is set; the other keys ascend. Ties fall back to AudioFile.
func Sorted(idx Index, key SortKey, reverse bool) Index {
	out := idx.Clone()
	compare := func(a, b Recording) int {
		var c int
		switch key {
		case SortByName:
			c = cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case SortByDuration:
			c = cmp.Compare(a.Duration, b.Duration)
		case SortBySize:
			c = cmp.Compare(a.Size, b.Size)
		default:
			c = b.Date.Compare(a.Date)
		}
		if c == 0 {
			c = cmp.Compare(a.AudioFile, b.AudioFile)
		}
		if reverse {
			return -c
		}
		return c
	}
	slices.SortStableFunc(out, compare)
	return out
}
