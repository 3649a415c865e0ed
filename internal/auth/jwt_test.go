package auth

import (
	"testing"
	"time"
)

func TestIssueParseRoundTrip(t *testing.T) {
	tok, err := Issue("user-1", "teacher", "smartattend", "key", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := Parse(tok.Value, "key", "smartattend")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q, want user-1", claims.Subject)
	}
	if claims.Role != "teacher" {
		t.Errorf("role = %q, want teacher", claims.Role)
	}
}

func TestParseExpired(t *testing.T) {
	tok, err := Issue("user-1", "student", "smartattend", "key", -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Parse(tok.Value, "key", "smartattend"); err == nil {
		t.Fatal("expired token parsed without error")
	}
}

func TestParseWrongKey(t *testing.T) {
	tok, err := Issue("user-1", "student", "smartattend", "key-a", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Parse(tok.Value, "key-b", "smartattend"); err == nil {
		t.Fatal("token with wrong key parsed without error")
	}
}

func TestParseIssuerMismatch(t *testing.T) {
	tok, err := Issue("user-1", "student", "other", "key", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Parse(tok.Value, "key", "smartattend"); err == nil {
		t.Fatal("token with wrong issuer parsed without error")
	}
}

func TestParseMalformed(t *testing.T) {
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := Parse(tok, "key", "smartattend"); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", tok)
		}
	}
}
