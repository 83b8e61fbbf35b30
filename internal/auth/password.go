package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// tokenBytes gives reset tokens 256 bits of entropy.
const tokenBytes = 32

// Hash returns a bcrypt hash of the password.
func Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(b), err
}

// Verify reports whether password matches the stored bcrypt hash.
func Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken returns a 32-byte cryptographically random hex string.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// AdminProvisioner is the minimal interface needed to provision the admin
// record.
type AdminProvisioner interface {
	Exists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, email, passwordHash string) error
}

// SeedAdmin creates the admin record with the given password if it does not
// exist yet. An existing record is never touched.
func SeedAdmin(ctx context.Context, records AdminProvisioner, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	exists, err := records.Exists(ctx, email)
	if err != nil {
		return fmt.Errorf("seed: check admin record: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := Hash(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return fmt.Errorf("seed: admin password longer than 72 bytes")
		}
		return fmt.Errorf("seed: hash password: %w", err)
	}

	if err := records.Create(ctx, email, hash); err != nil {
		return fmt.Errorf("seed: create admin record: %w", err)
	}
	slog.Info("seed: provisioned admin record", "email", email)
	return nil
}
