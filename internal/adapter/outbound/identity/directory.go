// Package identity maps bearer API keys to user accounts. Keys are stored
// hashed; raw key material exists only at issue time.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
)

// ErrInvalidKey is returned when an API key is unknown or revoked.
var ErrInvalidKey = errors.New("invalid api key")

// keyPrefix marks keys issued by this directory.
const keyPrefix = "agk_"

// argon2idParams follows the OWASP minimum configuration.
// Memory: 47 MiB, Iterations: 1, Parallelism: 1.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// KeyEntry is one stored API key.
type KeyEntry struct {
	// ID is the key identifier, distinct from the key material.
	ID string
	// UserID is the account the key resolves to.
	UserID string
	// Hash is the stored key hash: Argon2id PHC format for issued keys,
	// sha256:<hex> for keys seeded from configuration.
	Hash string
	// Revoked blocks resolution without deleting the entry.
	Revoked bool
	// CreatedAt is when the key was issued (UTC).
	CreatedAt time.Time
}

// Directory is an in-memory API key directory. Issued keys are hashed with
// Argon2id; configuration-seeded keys use SHA-256 so resolution has a
// constant-time lookup fast path.
type Directory struct {
	mu      sync.RWMutex
	entries []KeyEntry
	// sha256Index maps sha256 hex digests to entry index for seeded keys.
	sha256Index map[string]int
}

// NewDirectory creates an empty key directory.
func NewDirectory() *Directory {
	return &Directory{sha256Index: make(map[string]int)}
}

// SeedKey registers a raw key from configuration under a SHA-256 hash.
// Used for dev and demo environments where keys live in config files.
func (d *Directory) SeedKey(rawKey, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	digest := sha256Hex(rawKey)
	d.entries = append(d.entries, KeyEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Hash:      "sha256:" + digest,
		CreatedAt: time.Now().UTC(),
	})
	d.sha256Index[digest] = len(d.entries) - 1
}

// Issue generates a new API key for userID and returns the raw key. The
// raw key is not recoverable afterwards; only its Argon2id hash is kept.
func (d *Directory) Issue(_ context.Context, userID string) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key material: %w", err)
	}
	rawKey := keyPrefix + hex.EncodeToString(buf)

	hash, err := argon2id.CreateHash(rawKey, argon2idParams)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, KeyEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Hash:      hash,
		CreatedAt: time.Now().UTC(),
	})
	return rawKey, nil
}

// Resolve returns the user ID for a raw key.
// Returns ErrInvalidKey for unknown or revoked keys.
func (d *Directory) Resolve(_ context.Context, rawKey string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// Fast path: seeded keys by SHA-256 digest.
	if idx, ok := d.sha256Index[sha256Hex(rawKey)]; ok {
		e := d.entries[idx]
		want := strings.TrimPrefix(e.Hash, "sha256:")
		if !e.Revoked && subtle.ConstantTimeCompare([]byte(want), []byte(sha256Hex(rawKey))) == 1 {
			return e.UserID, nil
		}
		return "", ErrInvalidKey
	}

	// Issued keys require Argon2id verification over all candidates.
	for _, e := range d.entries {
		if !strings.HasPrefix(e.Hash, "$argon2id$") {
			continue
		}
		match, err := argon2id.ComparePasswordAndHash(rawKey, e.Hash)
		if err != nil || !match {
			continue
		}
		if e.Revoked {
			return "", ErrInvalidKey
		}
		return e.UserID, nil
	}
	return "", ErrInvalidKey
}

// RevokeUser revokes every key belonging to userID and reports how many
// keys were affected.
func (d *Directory) RevokeUser(_ context.Context, userID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for i := range d.entries {
		if d.entries[i].UserID == userID && !d.entries[i].Revoked {
			d.entries[i].Revoked = true
			n++
		}
	}
	return n
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
