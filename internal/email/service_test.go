package email

import (
	"strings"
	"testing"
)

func TestIsConfigured(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"empty", Config{}, false},
		{"no host", Config{Port: "587", From: "mail@mosaic.local"}, false},
		{"no port", Config{Host: "smtp.mosaic.local", From: "mail@mosaic.local"}, false},
		{"no from", Config{Host: "smtp.mosaic.local", Port: "587"}, false},
		{"complete", Config{Host: "smtp.mosaic.local", Port: "587", From: "mail@mosaic.local"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewService(tc.cfg).IsConfigured(); got != tc.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSendWithoutConfigFails(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendVerificationEmail("a@b.c", "Avery", "http://x/verify"); err == nil {
		t.Fatal("expected error when SMTP is unconfigured")
	}
}

func TestVerificationMailContent(t *testing.T) {
	html, err := renderMail(verifyMail{
		UserName:  "Avery Quinn",
		ActionURL: "https://mosaic.example/verify-email?token=abc123",
	})
	if err != nil {
		t.Fatalf("renderMail: %v", err)
	}
	for _, want := range []string{
		"Avery Quinn",
		"https://mosaic.example/verify-email?token=abc123",
		"shared story",
		"24 hours",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("verification mail missing %q", want)
		}
	}
}

func TestResetMailContent(t *testing.T) {
	html, err := renderMail(resetMail{
		UserName:  "Avery Quinn",
		ActionURL: "https://mosaic.example/reset-password?token=xyz789",
	})
	if err != nil {
		t.Fatalf("renderMail: %v", err)
	}
	for _, want := range []string{
		"Avery Quinn",
		"https://mosaic.example/reset-password?token=xyz789",
		"1 hour",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("reset mail missing %q", want)
		}
	}
}

func TestRenderMailUnknownPayload(t *testing.T) {
	if _, err := renderMail(struct{}{}); err == nil {
		t.Fatal("expected error for unknown payload type")
	}
}
