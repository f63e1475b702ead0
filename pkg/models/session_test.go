package models

import (
	"testing"
)

func TestValidateSessionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "my-session", false},
		{"valid single char", "a", false},
		{"valid with numbers", "test123", false},
		{"valid with hyphens", "day-8-input", false},
		{"empty", "", true},
		{"too long", string(make([]byte, 129)), true},
		{"uppercase", "MySession", true},
		{"spaces", "my session", true},
		{"underscore", "my_session", true},
		{"starts with hyphen", "-session", true},
		{"ends with hyphen", "session-", true},
		{"special chars", "my@session", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSessionSaveOptions(t *testing.T) {
	decoded := &DecodedEntry{Source: SourceCLI, Status: StatusDecoded}
	failed := &DecodedEntry{Source: SourceOTLPHTTP, Status: StatusFailed}

	tests := []struct {
		name        string
		opts        SessionSaveOptions
		wantErr     bool
		wantDecoded bool
		wantFailed  bool
	}{
		{"all", SessionSaveOptions{Name: "all"}, false, true, true},
		{"decoded only", SessionSaveOptions{Name: "ok", Status: StatusDecoded}, false, true, false},
		{"otlp only", SessionSaveOptions{Name: "otlp", Sources: []string{SourceOTLPHTTP}}, false, false, true},
		{"bad status", SessionSaveOptions{Name: "x", Status: "pending"}, true, false, false},
		{"bad name", SessionSaveOptions{Name: "Bad Name"}, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := tt.opts.Includes(decoded); got != tt.wantDecoded {
				t.Errorf("Includes(decoded) = %v, want %v", got, tt.wantDecoded)
			}
			if got := tt.opts.Includes(failed); got != tt.wantFailed {
				t.Errorf("Includes(failed) = %v, want %v", got, tt.wantFailed)
			}
		})
	}
}

func TestSummaryAdd(t *testing.T) {
	entries := []*DecodedEntry{
		{Digits: []int{5, 3, 5, 3}, Value: 5353, Status: StatusDecoded},
		{Digits: []int{8, 3, 9, 4}, Value: 8394, UniqueCount: 2, Status: StatusDecoded},
		{Digits: []int{1, 7}, UniqueCount: 2, Status: StatusFailed, Error: "ambiguous"},
	}

	s := Summarize(entries)
	if s.Entries != 3 || s.Decoded != 2 || s.Failed != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.Sum != 5353+8394 {
		t.Errorf("Sum = %d, want %d", s.Sum, 5353+8394)
	}
	if s.UniqueCount != 4 {
		t.Errorf("UniqueCount = %d, want 4", s.UniqueCount)
	}
	if s.DigitHistogram[3] != 3 || s.DigitHistogram[5] != 2 || s.DigitHistogram[1] != 1 {
		t.Errorf("unexpected histogram: %v", s.DigitHistogram)
	}

	var merged Summary
	merged.Merge(s)
	merged.Merge(s)
	if merged.Sum != 2*s.Sum || merged.Entries != 6 || merged.DigitHistogram[3] != 6 {
		t.Errorf("unexpected merged summary: %+v", merged)
	}
}

func TestEntryString(t *testing.T) {
	e := Entry{}
	if got := e.String(); got != " |" {
		t.Errorf("empty entry String() = %q", got)
	}
}
