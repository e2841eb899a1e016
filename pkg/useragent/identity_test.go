package useragent

import (
	"strings"
	"testing"
)

func TestIdentity_String(t *testing.T) {
	got := Identity{Contact: "https://acme.example/bot"}.String()
	want := "SiphonBot/1.0 (+https://acme.example/bot)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIdentity_DefaultContact(t *testing.T) {
	got := Default().String()
	if !strings.HasPrefix(got, Token+"/") {
		t.Errorf("expected identity to start with token, got %q", got)
	}
	if !strings.Contains(got, DefaultContact) {
		t.Errorf("expected default contact in %q", got)
	}
}
