package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/spec-kit/inkmarket-service/internal/domain"
)

const secretBytes = 32

// SecretStatus is the outcome of redeeming a single-use token.
type SecretStatus int

const (
	SecretMismatch SecretStatus = iota
	SecretValid
	SecretExpired
)

// SecretIssue is a freshly minted single-use token. Cleartext goes to the
// user exactly once; only Hash and ExpiresAt are persisted.
type SecretIssue struct {
	Cleartext string
	Hash      string
	ExpiresAt time.Time
}

// Stored returns the persisted half of the token.
func (s SecretIssue) Stored() *domain.SecretToken {
	return &domain.SecretToken{Hash: s.Hash, ExpiresAt: s.ExpiresAt}
}

// IssueSecret generates a random token valid for ttl from now.
func IssueSecret(now time.Time, ttl time.Duration) (SecretIssue, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return SecretIssue{}, err
	}
	cleartext := hex.EncodeToString(buf)
	return SecretIssue{
		Cleartext: cleartext,
		Hash:      HashSecret(cleartext),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// HashSecret derives the storage form of a cleartext token.
func HashSecret(cleartext string) string {
	sum := sha256.Sum256([]byte(cleartext))
	return hex.EncodeToString(sum[:])
}

// VerifySecret checks cleartext against the stored token.
func VerifySecret(cleartext string, stored *domain.SecretToken, now time.Time) SecretStatus {
	if stored == nil || stored.Hash == "" || cleartext == "" {
		return SecretMismatch
	}
	if subtle.ConstantTimeCompare([]byte(HashSecret(cleartext)), []byte(stored.Hash)) != 1 {
		return SecretMismatch
	}
	if now.After(stored.ExpiresAt) {
		return SecretExpired
	}
	return SecretValid
}
