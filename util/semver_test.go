package util

import (
	"reflect"
	"testing"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"1.0.0", "2.0.0", -1},
		{"2.0.0", "1.0.0", 1},
		{"1.2.3", "1.2.3", 0},
		{"1.10.0", "1.9.0", 1},
		{"2.0.0-beta.1", "2.0.0", -1},
		// non-semver falls back to string ordering
		{"abc", "abd", -1},
		{"def", "abc", 1},
	}

	for _, tt := range tests {
		if got := CompareVersions(tt.a, tt.b); got != tt.expected {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestSatisfiesRange(t *testing.T) {
	tests := []struct {
		version  string
		rng      string
		expected bool
	}{
		{"2.2.0", "^2.0.0", true},
		{"1.9.0", "^2.0.0", false},
		{"3.0.0", "^2.0.0", false},
		{"1.2.5", "~1.2.0", true},
		{"1.3.0", "~1.2.0", false},
		{"5.0.0", ">=4.0.0 <6.0.0", true},
		{"1.0.0", "not-a-range", false},
		{"not-a-version", "^1.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.version+" vs "+tt.rng, func(t *testing.T) {
			if got := SatisfiesRange(tt.version, tt.rng); got != tt.expected {
				t.Errorf("SatisfiesRange(%q, %q) = %v, want %v", tt.version, tt.rng, got, tt.expected)
			}
		})
	}
}

func TestSatisfiesAll(t *testing.T) {
	if !SatisfiesAll("2.2.0", []string{"^2.0.0", ">=2.1.0"}) {
		t.Error("expected 2.2.0 to satisfy both ranges")
	}
	if SatisfiesAll("2.0.0", []string{"^2.0.0", ">=2.1.0"}) {
		t.Error("expected 2.0.0 to fail the >=2.1.0 range")
	}
	if !SatisfiesAll("1.0.0", nil) {
		t.Error("empty range list should always satisfy")
	}
}

func TestSortVersionsDescending(t *testing.T) {
	versions := []string{"1.8.0", "2.1.0", "1.9.0", "2.2.0", "2.0.0"}
	SortVersionsDescending(versions)
	expected := []string{"2.2.0", "2.1.0", "2.0.0", "1.9.0", "1.8.0"}
	if !reflect.DeepEqual(versions, expected) {
		t.Errorf("SortVersionsDescending = %v, want %v", versions, expected)
	}
}

func TestHighestSatisfying(t *testing.T) {
	published := []string{"1.8.0", "1.9.0", "2.0.0", "2.1.0", "2.2.0"}

	tests := []struct {
		name     string
		ranges   []string
		expected string
	}{
		{"single caret range", []string{"^2.0.0"}, "2.2.0"},
		{"intersecting ranges", []string{"^2.0.0", "<2.2.0"}, "2.1.0"},
		{"no candidate", []string{"^3.0.0"}, ""},
		{"tilde range", []string{"~1.8.0"}, "1.8.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HighestSatisfying(published, tt.ranges); got != tt.expected {
				t.Errorf("HighestSatisfying(%v) = %q, want %q", tt.ranges, got, tt.expected)
			}
		})
	}
}
