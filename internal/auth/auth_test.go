package auth

import (
	"testing"
	"time"
)

func TestMintAndVerify(t *testing.T) {
	token, err := MintToken("test-secret", "player-1", time.Hour)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}

	playerID, err := VerifyToken("test-secret", token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if playerID != "player-1" {
		t.Errorf("player id = %q, want %q", playerID, "player-1")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := MintToken("secret-a", "player-1", time.Hour)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	if _, err := VerifyToken("secret-b", token); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	token, err := MintToken("test-secret", "player-1", -time.Minute)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	if _, err := VerifyToken("test-secret", token); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	if _, err := VerifyToken("test-secret", "not-a-token"); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
