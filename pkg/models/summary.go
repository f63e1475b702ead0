package models

// Summary aggregates decoded entries.
type Summary struct {
	Entries int `json:"entries"`
	Decoded int `json:"decoded"`
	Failed  int `json:"failed"`

	// Sum adds the values of decoded entries only.
	Sum int64 `json:"sum"`

	// UniqueCount counts output digits 1, 4, 7 and 8 across all entries,
	// including those decoded before a failure in the same entry.
	UniqueCount int `json:"unique_count"`

	// DigitHistogram counts every decoded output digit.
	DigitHistogram [10]int `json:"digit_histogram"`
}

// Add folds one decoded entry into the summary.
func (s *Summary) Add(entry *DecodedEntry) {
	s.Entries++
	s.UniqueCount += entry.UniqueCount
	for _, d := range entry.Digits {
		if d >= 0 && d <= 9 {
			s.DigitHistogram[d]++
		}
	}
	if entry.Decoded() {
		s.Decoded++
		s.Sum += int64(entry.Value)
		return
	}
	s.Failed++
}

// Merge folds another summary into s.
func (s *Summary) Merge(other Summary) {
	s.Entries += other.Entries
	s.Decoded += other.Decoded
	s.Failed += other.Failed
	s.Sum += other.Sum
	s.UniqueCount += other.UniqueCount
	for i := range s.DigitHistogram {
		s.DigitHistogram[i] += other.DigitHistogram[i]
	}
}

// Summarize builds a summary over entries.
func Summarize(entries []*DecodedEntry) Summary {
	var s Summary
	for _, e := range entries {
		s.Add(e)
	}
	return s
}
