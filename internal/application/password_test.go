package application

import (
	"errors"
	"strings"
	"testing"
)

var testArgon2idParams = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestPasswordHashVerify(t *testing.T) {
	t.Parallel()

	hash, err := CreatePasswordHash("correct-horse", testArgon2idParams)
	if err != nil {
		t.Fatalf("CreatePasswordHash returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected hash encoding %q", hash)
	}

	if err := VerifyPassword(hash, "correct-horse"); err != nil {
		t.Fatalf("expected matching password, got %v", err)
	}
	if err := VerifyPassword(hash, "wrong-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	other, err := CreatePasswordHash("correct-horse", testArgon2idParams)
	if err != nil {
		t.Fatalf("CreatePasswordHash returned error: %v", err)
	}
	if other == hash {
		t.Fatalf("expected distinct salts per hash")
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"plain":                                  ErrInvalidPasswordHash,
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5":   ErrInvalidPasswordHash,
		"$argon2id$v=16$m=1,t=1,p=1$c2FsdA$a2V5": ErrIncompatiblePasswordVersion,
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5": ErrInvalidPasswordHash,
		"$argon2id$v=19$m=1,t=1,p=1$!!!$a2V5":    ErrInvalidPasswordHash,
	}
	for stored, want := range cases {
		if err := VerifyPassword(stored, "secret"); !errors.Is(err, want) {
			t.Errorf("VerifyPassword(%q) = %v, want %v", stored, err, want)
		}
	}
}

func TestPasswordProblem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		email    string
		wantOK   bool
	}{
		{name: "strong", password: "correct-horse", email: "ada@example.com", wantOK: true},
		{name: "too short", password: "abc12", email: "ada@example.com"},
		{name: "numeric", password: "12345678", email: "ada@example.com"},
		{name: "contains email name", password: "lovelace-2030", email: "lovelace@example.com"},
		{name: "short local part ignored", password: "adamant-rock", email: "ad@example.com", wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := passwordProblem(tt.password, tt.email)
			if (got == "") != tt.wantOK {
				t.Fatalf("passwordProblem(%q) = %q, wantOK %v", tt.password, got, tt.wantOK)
			}
		})
	}
}
