// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package account

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// UpgradingHasher hashes with argon2id and also verifies hashes imported
// from older deployments: Django pbkdf2_sha256 and bcrypt.
// Anything that is not a current argon2id hash reports NeedsUpgrade.
type UpgradingHasher struct {
	current *Argon2idHasher
}

// NewUpgradingHasher wraps current as the hasher for new passwords.
func NewUpgradingHasher(current *Argon2idHasher) *UpgradingHasher {
	return &UpgradingHasher{current: current}
}

// Hash delegates to the argon2id hasher.
func (h *UpgradingHasher) Hash(password string) (string, error) {
	return h.current.Hash(password)
}

// Verify dispatches on the hash prefix.
func (h *UpgradingHasher) Verify(password, hash string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return h.current.Verify(password, hash)
	case strings.HasPrefix(hash, "pbkdf2_sha256$"):
		return verifyDjangoPBKDF2(password, hash)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return verifyBcrypt(password, hash)
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unrecognized hash format")
	}
}

// NeedsUpgrade implements PasswordHasher.
func (h *UpgradingHasher) NeedsUpgrade(hash string) bool {
	return h.current.NeedsUpgrade(hash)
}

// pbkdf2_sha256$<iterations>$<salt>$<base64 key>
func verifyDjangoPBKDF2(password, encoded string) (bool, error) {
	parts := strings.SplitN(encoded, "$", 4)
	if len(parts) != 4 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid pbkdf2 hash format")
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid pbkdf2 iteration count")
	}
	expected, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(expected) == 0 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid pbkdf2 key encoding")
	}
	computed := pbkdf2.Key([]byte(password), []byte(parts[2]), iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func verifyBcrypt(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
}
