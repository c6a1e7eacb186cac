package crypto

import (
	"errors"
	"strings"
	"testing"
)

// ============================================================
// Тесты HashPassword
// ============================================================

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{
			name:     "valid password",
			password: "dashboard-secret-123",
			wantErr:  nil,
		},
		{
			name:     "empty password",
			password: "",
			wantErr:  ErrEmptyPassword,
		},
		{
			name:     "password at max length",
			password: strings.Repeat("a", MaxPasswordLength),
			wantErr:  nil,
		},
		{
			name:     "password too long",
			password: strings.Repeat("a", MaxPasswordLength+1),
			wantErr:  ErrPasswordTooLong,
		},
		{
			name:     "unicode password",
			password: "пароль-дашборда",
			wantErr:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("HashPassword() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr == nil {
				if hash == "" {
					t.Error("HashPassword() returned empty hash")
				}
				if hash == tt.password {
					t.Error("HashPassword() returned plaintext password")
				}
				if !strings.HasPrefix(hash, "$2a$") && !strings.HasPrefix(hash, "$2b$") {
					t.Errorf("HashPassword() hash has unexpected format: %s", hash[:4])
				}
			}
		})
	}
}

func TestHashPassword_UniqueSalt(t *testing.T) {
	// Два хеша одного пароля должны отличаться (разный salt)
	hash1, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	hash2, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if hash1 == hash2 {
		t.Error("Two hashes of the same password are identical, salt is not random")
	}
}

// ============================================================
// Тесты VerifyPassword
// ============================================================

func TestVerifyPassword(t *testing.T) {
	password := "correct-horse-battery"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		wantErr  error
	}{
		{
			name:     "correct password",
			password: password,
			hash:     hash,
			wantErr:  nil,
		},
		{
			name:     "wrong password",
			password: "wrong-password",
			hash:     hash,
			wantErr:  ErrPasswordMismatch,
		},
		{
			name:     "empty password",
			password: "",
			hash:     hash,
			wantErr:  ErrEmptyPassword,
		},
		{
			name:     "empty hash",
			password: password,
			hash:     "",
			wantErr:  ErrInvalidHash,
		},
		{
			name:     "garbage hash",
			password: password,
			hash:     "not-a-bcrypt-hash",
			wantErr:  ErrInvalidHash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyPassword(tt.password, tt.hash)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifyPassword() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckPasswordMatch(t *testing.T) {
	hash, err := HashPassword("my-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !CheckPasswordMatch("my-password", hash) {
		t.Error("CheckPasswordMatch() = false for correct password")
	}
	if CheckPasswordMatch("other-password", hash) {
		t.Error("CheckPasswordMatch() = true for wrong password")
	}
}

// ============================================================
// Тесты SecureCompare
// ============================================================

func TestSecureCompare(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
		eq   bool
	}{
		{"equal secrets", "webhook-secret", "webhook-secret", true},
		{"different secrets", "webhook-secret", "other-secret", false},
		{"different length", "short", "a-much-longer-secret", false},
		{"empty expected", "anything", "", false},
		{"both empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecureCompare(tt.got, tt.want); got != tt.eq {
				t.Errorf("SecureCompare(%q, %q) = %v, want %v", tt.got, tt.want, got, tt.eq)
			}
		})
	}
}
