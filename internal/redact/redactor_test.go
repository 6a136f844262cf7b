package redact

import (
	"context"
	"strings"
	"testing"
)

func TestRedact_Email(t *testing.T) {
	r := NewRegex()
	res, err := r.Redact(context.Background(), "reach me at john.doe@acme.com tomorrow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(res.RedactedText, "john.doe@acme.com") {
		t.Errorf("email survived redaction: %q", res.RedactedText)
	}
	if !strings.Contains(res.RedactedText, "<EMAIL>") {
		t.Errorf("expected <EMAIL> placeholder, got %q", res.RedactedText)
	}
	if res.Count != 1 {
		t.Errorf("expected 1 redaction, got %d", res.Count)
	}
}

func TestRedact_SSN(t *testing.T) {
	r := NewRegex()
	res, err := r.Redact(context.Background(), "the SSN is 123-45-6789 on file")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.RedactedText, "123-45-6789") {
		t.Errorf("SSN survived redaction: %q", res.RedactedText)
	}
	if !strings.Contains(res.RedactedText, "<SSN>") {
		t.Errorf("expected <SSN> placeholder, got %q", res.RedactedText)
	}
}

func TestRedact_Phone(t *testing.T) {
	r := NewRegex()
	res, err := r.Redact(context.Background(), "call 555-867-5309 after lunch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.RedactedText, "555-867-5309") {
		t.Errorf("phone survived redaction: %q", res.RedactedText)
	}
}

func TestRedact_CreditCardBeatsPhone(t *testing.T) {
	r := NewRegex()
	res, err := r.Redact(context.Background(), "card 4111 1111 1111 1111 was charged")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.RedactedText, "<CREDIT_CARD>") {
		t.Errorf("expected <CREDIT_CARD> placeholder, got %q", res.RedactedText)
	}
	// The whole number goes as one span, not partially as a phone.
	if strings.Contains(res.RedactedText, "1111") {
		t.Errorf("digits leaked around the placeholder: %q", res.RedactedText)
	}
}

func TestRedact_MultipleEntities(t *testing.T) {
	r := NewRegex()
	text := "email a@b.co, backup c@d.org, server at 10.0.0.1"
	res, err := r.Redact(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Count != 3 {
		t.Errorf("expected 3 redactions, got %d (%q)", res.Count, res.RedactedText)
	}
	if strings.Count(res.RedactedText, "<EMAIL>") != 2 {
		t.Errorf("expected 2 <EMAIL> placeholders, got %q", res.RedactedText)
	}
	if !strings.Contains(res.RedactedText, "<IP_ADDRESS>") {
		t.Errorf("expected <IP_ADDRESS> placeholder, got %q", res.RedactedText)
	}
}

func TestRedact_CleanTextUnchanged(t *testing.T) {
	r := NewRegex()
	text := "nothing sensitive here, just planning the offsite"
	res, err := r.Redact(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RedactedText != text {
		t.Errorf("clean text was modified: %q", res.RedactedText)
	}
	if res.Count != 0 {
		t.Errorf("expected 0 redactions, got %d", res.Count)
	}
}
