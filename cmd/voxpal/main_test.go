package main

import (
	"testing"
	"unicode/utf8"
)

func TestClip(t *testing.T) {
	tests := []struct {
		value string
		width int
		want  string
	}{
		{"127.0.0.1:8080", 19, "127.0.0.1:8080"},
		{"exactly-nineteen-19", 19, "exactly-nineteen-19"},
		{"postgres://voxpal@db:5432/voxpal", 19, "postgres://voxpal@…"},
		{"Compañía Señorial España", 19, "Compañía Señorial …"},
		{"ññññññññññññññññññññññ", 5, "ññññ…"},
	}
	for _, tt := range tests {
		got := clip(tt.value, tt.width)
		if got != tt.want {
			t.Errorf("clip(%q, %d) = %q, want %q", tt.value, tt.width, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("clip(%q, %d) produced invalid UTF-8", tt.value, tt.width)
		}
		if n := utf8.RuneCountInString(got); n > tt.width {
			t.Errorf("clip(%q, %d) is %d runes", tt.value, tt.width, n)
		}
	}
}
