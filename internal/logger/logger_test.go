package logger

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{
			name:   "short string unchanged",
			input:  "hello",
			maxLen: 50,
			want:   "hello",
		},
		{
			name:   "exact length unchanged",
			input:  strings.Repeat("a", 50),
			maxLen: 50,
			want:   strings.Repeat("a", 50),
		},
		{
			name:   "long ascii truncated",
			input:  strings.Repeat("a", 60),
			maxLen: 50,
			want:   strings.Repeat("a", 47) + "...",
		},
		{
			// The cut at byte 47 lands mid-rune; it must back up to the
			// previous boundary instead of emitting half an "é".
			name:   "cut backs up to a rune boundary",
			input:  strings.Repeat("é", 30),
			maxLen: 50,
			want:   strings.Repeat("é", 23) + "...",
		},
		{
			name:   "tiny limit",
			input:  "hello world",
			maxLen: 3,
			want:   "...",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := truncate(tc.input, tc.maxLen)
			if got != tc.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8: %q", tc.input, tc.maxLen, got)
			}
		})
	}
}
