package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	digest, err := h.Hash("password123")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if digest == "password123" {
		t.Fatal("digest must not equal the plain password")
	}
	if !h.Verify("password123", digest) {
		t.Error("Verify should accept the original password")
	}
	if h.Verify("password124", digest) {
		t.Error("Verify should reject a different password")
	}
}

func TestBcryptHasher_VerifyRejectsEmptyDigest(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	if h.Verify("password123", "") {
		t.Error("Verify should reject an empty digest")
	}
}

func TestNewBcryptHasher_OutOfRangeCostUsesDefault(t *testing.T) {
	if got := NewBcryptHasher(0).cost; got != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", got, bcrypt.DefaultCost)
	}
	if got := NewBcryptHasher(bcrypt.MaxCost + 1).cost; got != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", got, bcrypt.DefaultCost)
	}
}
