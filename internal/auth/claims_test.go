package auth

import (
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := "test-secret-key-for-jwt-signing"

	token, err := IssueToken("ops-dashboard", secret, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("IssueToken() returned empty token")
	}

	claims, err := ParseToken(token, secret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "ops-dashboard" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "ops-dashboard")
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := IssueToken("ops-dashboard", "correct-secret", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	if _, err := ParseToken(token, "wrong-secret"); err == nil {
		t.Error("ParseToken() should fail with wrong secret")
	}
}

func TestParseToken_MalformedToken(t *testing.T) {
	if _, err := ParseToken("", "secret"); err == nil {
		t.Error("ParseToken() should fail with empty token")
	}
	if _, err := ParseToken("abc.def", "secret"); err == nil {
		t.Error("ParseToken() should fail with malformed JWT")
	}
	if _, err := ParseToken("not-a-valid-jwt", "secret"); err == nil {
		t.Error("ParseToken() should fail with an invalid token string")
	}
}

func TestIssueToken_DefaultTTL(t *testing.T) {
	token, err := IssueToken("ops-dashboard", "secret", 0)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := ParseToken(token, "secret")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	expectedExpiry := time.Now().Add(24 * time.Hour)
	diff := claims.ExpiresAt.Time.Sub(expectedExpiry)
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("default TTL should be ~24h, got expiry diff of %v", diff)
	}
}
