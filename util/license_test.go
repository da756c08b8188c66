package util

import (
	"testing"

	"github.com/depscope/depscope/model"
)

func TestLicenseChoicesFromString(t *testing.T) {
	t.Run("single id", func(t *testing.T) {
		choices := LicenseChoicesFromString("MIT")
		if len(choices) != 1 {
			t.Fatalf("expected 1 choice, got %d", len(choices))
		}
		if choices[0].License == nil || choices[0].License.ID != "MIT" {
			t.Errorf("expected id entry MIT, got %+v", choices[0])
		}
	})

	t.Run("and expression splits", func(t *testing.T) {
		choices := LicenseChoicesFromString("MIT AND Apache-2.0")
		if len(choices) != 2 {
			t.Fatalf("expected 2 choices, got %d", len(choices))
		}
		if choices[0].License.ID != "MIT" || choices[1].License.ID != "Apache-2.0" {
			t.Errorf("unexpected choices: %+v", choices)
		}
	})

	t.Run("or expression kept intact", func(t *testing.T) {
		choices := LicenseChoicesFromString("MIT OR GPL-2.0-only")
		if len(choices) != 1 {
			t.Fatalf("expected 1 choice, got %d", len(choices))
		}
		if choices[0].Expression != "MIT OR GPL-2.0-only" {
			t.Errorf("expected expression choice, got %+v", choices[0])
		}
	})

	t.Run("free text becomes name", func(t *testing.T) {
		choices := LicenseChoicesFromString("Custom License v2 (internal)")
		if len(choices) != 1 {
			t.Fatalf("expected 1 choice, got %d", len(choices))
		}
		if choices[0].License == nil || choices[0].License.Name != "Custom License v2 (internal)" {
			t.Errorf("expected name entry, got %+v", choices[0])
		}
	})

	t.Run("empty", func(t *testing.T) {
		if choices := LicenseChoicesFromString(""); choices != nil {
			t.Errorf("expected nil, got %v", choices)
		}
	})
}

func TestLicenseStringFromChoices(t *testing.T) {
	choices := []model.LicenseChoice{
		{License: &model.LicenseEntry{ID: "MIT"}},
		{License: &model.LicenseEntry{Name: "Custom License"}},
		{Expression: "Apache-2.0 OR BSD-3-Clause"},
	}
	got := LicenseStringFromChoices(choices)
	want := "MIT AND Custom License AND Apache-2.0 OR BSD-3-Clause"
	if got != want {
		t.Errorf("LicenseStringFromChoices = %q, want %q", got, want)
	}

	if got := LicenseStringFromChoices(nil); got != "" {
		t.Errorf("expected empty string for nil choices, got %q", got)
	}
}

func TestLicenseRoundTrip(t *testing.T) {
	raw := "MIT AND Apache-2.0"
	if got := LicenseStringFromChoices(LicenseChoicesFromString(raw)); got != raw {
		t.Errorf("round trip changed the string: %q -> %q", raw, got)
	}
}
