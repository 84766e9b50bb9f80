package invitetoken

import (
	"testing"
	"time"
)

const testSecret = "test-secret-0123456789abcdef"

func TestSignVerifyRoundTrip(t *testing.T) {
	codec, err := New(Options{Secret: testSecret, TTL: time.Hour})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	token, expires, err := codec.Sign("inv-1", "proj-1", "bob@example.com")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if time.Until(expires) < 50*time.Minute {
		t.Fatalf("unexpected expiry: %v", expires)
	}
	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.InvitationID != "inv-1" || claims.ProjectID != "proj-1" || claims.Email != "bob@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	codec, err := New(Options{Secret: testSecret, TTL: time.Millisecond, Leeway: time.Millisecond})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	token, _, err := codec.Sign("inv-1", "proj-1", "bob@example.com")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := codec.Verify(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer, _ := New(Options{Secret: testSecret})
	other, _ := New(Options{Secret: "another-secret-0123456789abcdef"})
	token, _, err := signer.Sign("inv-1", "proj-1", "bob@example.com")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := other.Verify(token); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}
}

func TestNewRejectsShortSecret(t *testing.T) {
	if _, err := New(Options{Secret: "short"}); err == nil {
		t.Fatalf("expected short secret to fail")
	}
}

func TestSignRequiresInvitationID(t *testing.T) {
	codec, _ := New(Options{Secret: testSecret})
	if _, _, err := codec.Sign("", "proj-1", "bob@example.com"); err == nil {
		t.Fatalf("expected missing invitation id to fail")
	}
}
