package qrtoken

import (
	"testing"
	"time"
)

func TestIssueDecodeRoundTrip(t *testing.T) {
	iss := NewIssuer("test-key", "smartattend", 2*time.Minute)
	now := time.Now().UTC().Truncate(time.Second)

	token, sess, err := iss.Issue("10A", "teacher-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if sess.Class != "10A" || sess.TeacherID != "teacher-1" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if !sess.ExpiresAt.Equal(now.Add(2 * time.Minute)) {
		t.Fatalf("expiry = %s, want issue+2m", sess.ExpiresAt)
	}

	decoded, err := iss.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Class != "10A" || decoded.TeacherID != "teacher-1" {
		t.Fatalf("decoded session mismatch: %+v", decoded)
	}
	if !decoded.IssuedAt.Equal(now) {
		t.Fatalf("issued at = %s, want %s", decoded.IssuedAt, now)
	}
}

func TestDecodeExpired(t *testing.T) {
	iss := NewIssuer("test-key", "smartattend", time.Nanosecond)
	token, _, err := iss.Issue("10A", "teacher-1", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := iss.Decode(token); err != ErrInvalid {
		t.Fatalf("decode expired = %v, want ErrInvalid", err)
	}
}

func TestDecodeWrongKey(t *testing.T) {
	issued, _, err := NewIssuer("key-a", "smartattend", time.Minute).Issue("10A", "t1", time.Now().UTC())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewIssuer("key-b", "smartattend", time.Minute).Decode(issued); err != ErrInvalid {
		t.Fatalf("decode with wrong key = %v, want ErrInvalid", err)
	}
}

func TestDecodeWrongIssuer(t *testing.T) {
	issued, _, err := NewIssuer("key", "other-system", time.Minute).Issue("10A", "t1", time.Now().UTC())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewIssuer("key", "smartattend", time.Minute).Decode(issued); err != ErrInvalid {
		t.Fatalf("decode with wrong issuer = %v, want ErrInvalid", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	iss := NewIssuer("key", "smartattend", time.Minute)
	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := iss.Decode(tok); err != ErrInvalid {
			t.Fatalf("decode(%q) = %v, want ErrInvalid", tok, err)
		}
	}
}
