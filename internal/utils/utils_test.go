package utils

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "actor-1", RoleShopper, "s123", 15)
	if err != nil {
		t.Fatal(err)
	}
	c, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Subject != "actor-1" || c.Role != RoleShopper || c.StudentID != "s123" {
		t.Fatalf("unexpected claims %+v", c)
	}
	if _, err := ParseAccessToken("other", tok.Token); err == nil {
		t.Fatal("expected signature failure with the wrong secret")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "actor-1", RoleShopper, "", -1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken("s3cret", tok.Token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(hash, "hunter2") || VerifyPassword(hash, "hunter3") || VerifyPassword("", "") {
		t.Fatal("unexpected verification result")
	}
}
