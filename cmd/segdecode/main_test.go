package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fidde/segment_decoder/pkg/models"
)

const canonical = "acedgfb cdfbe gcdfa fbcad dab cefabd cdfgeb eafb cagedb ab | cdfeb fcadb cdfeb cdbaf"

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestDecodeReferenceFile(t *testing.T) {
	path := filepath.Join("..", "..", "internal", "analyzer", "testdata", "reference.txt")

	stdout, stderr, err := execute(t, "", "decode", path, "--workers", "3")
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if stderr != "" {
		t.Errorf("unexpected warnings: %s", stderr)
	}
	if stdout != "unique: 26\nsum: 61229\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestDecodeStdinJSON(t *testing.T) {
	stdin := canonical + "\n\nbogus line\n"

	stdout, stderr, err := execute(t, stdin, "decode", "-", "--json")
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(stderr, "line 3") {
		t.Errorf("expected warning for line 3, got %q", stderr)
	}

	var summary models.Summary
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if summary.Entries != 2 || summary.Failed != 1 || summary.Sum != 5353 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestDecodeMissingFile(t *testing.T) {
	_, _, err := execute(t, "", "decode", filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestEntry(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{
			name: "quoted line",
			args: []string{"entry", canonical},
			want: "digits: 5 3 5 3\nvalue: 5353\n",
		},
		{
			name: "split arguments",
			args: append([]string{"entry"}, strings.Fields(canonical)...),
			want: "digits: 5 3 5 3\nvalue: 5353\n",
		},
		{
			name:    "malformed",
			args:    []string{"entry", "ab | cd"},
			wantErr: true,
		},
		{
			name:    "no arguments",
			args:    []string{"entry"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, "", tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && stdout != tt.want {
				t.Errorf("stdout = %q, want %q", stdout, tt.want)
			}
		})
	}
}
