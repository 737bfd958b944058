package ui

import "testing"

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("IASMEEN_DARK_MODE", "1")
	if dark := DetectTheme(); !dark.IsDark {
		t.Fatalf("expected dark theme when IASMEEN_DARK_MODE=1")
	}

	t.Setenv("IASMEEN_DARK_MODE", "")
	if light := DetectTheme(); light.IsDark {
		t.Fatalf("expected light theme when IASMEEN_DARK_MODE is unset")
	}

	t.Setenv("COLORFGBG", "15;0")
	if dark := DetectTheme(); !dark.IsDark {
		t.Fatalf("expected dark theme for a black COLORFGBG background")
	}
}
