package utils

import "testing"

func TestSanitizeString(t *testing.T) {
	got := SanitizeString("  <b>Rider</b>\x07 ")
	want := "&lt;b&gt;Rider&lt;/b&gt;"
	if got != want {
		t.Errorf("SanitizeString = %q, want %q", got, want)
	}
}

func TestSanitizeEmail(t *testing.T) {
	if got := SanitizeEmail("  Rider@Example.COM "); got != "rider@example.com" {
		t.Errorf("SanitizeEmail = %q", got)
	}
}

func TestSanitizePhone(t *testing.T) {
	if got := SanitizePhone(" +961 (3) 123-456 ext"); got != "+961 (3) 123-456 " {
		t.Errorf("SanitizePhone = %q", got)
	}
}
