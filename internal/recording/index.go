package recording

// Index is an ordered sequence of recordings keyed by AudioFile.
// Values are stored by value so copies never alias a published index.
type Index []Recording

// Keys builds an AudioFile -> position lookup
func (idx Index) Keys() map[string]int {
	keys := make(map[string]int, len(idx))
	for i, r := range idx {
		if _, seen := keys[r.AudioFile]; !seen {
			keys[r.AudioFile] = i
		}
	}
	return keys
}

// Find returns the recording stored under audioFile
func (idx Index) Find(audioFile string) (Recording, bool) {
	for _, r := range idx {
		if r.AudioFile == audioFile {
			return r, true
		}
	}
	return Recording{}, false
}

// Clone returns an independent copy of the index
func (idx Index) Clone() Index {
	if idx == nil {
		return Index{}
	}
	out := make(Index, len(idx))
	copy(out, idx)
	return out
}

// Without returns a new index lacking the entry for audioFile
func (idx Index) Without(audioFile string) Index {
	out := make(Index, 0, len(idx))
	for _, r := range idx {
		if r.AudioFile != audioFile {
			out = append(out, r)
		}
	}
	return out
}

// Live drops every entry marked StatusDeleted
func (idx Index) Live() Index {
	out := make(Index, 0, len(idx))
	for _, r := range idx {
		if r.Status != StatusDeleted {
			out = append(out, r)
		}
	}
	return out
}

// Dedupe keeps the first entry for each AudioFile and reports dropped names
func (idx Index) Dedupe() (Index, []string) {
	seen := make(map[string]bool, len(idx))
	out := make(Index, 0, len(idx))
	var dropped []string
	for _, r := range idx {
		if seen[r.AudioFile] {
			dropped = append(dropped, r.AudioFile)
			continue
		}
		seen[r.AudioFile] = true
		out = append(out, r)
	}
	return out, dropped
}
