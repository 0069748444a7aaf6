package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDirectory_IssueAndResolve(t *testing.T) {
	d := NewDirectory()
	ctx := context.Background()

	rawKey, err := d.Issue(ctx, "u1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if !strings.HasPrefix(rawKey, keyPrefix) {
		t.Errorf("key = %q, want %q prefix", rawKey, keyPrefix)
	}

	userID, err := d.Resolve(ctx, rawKey)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if userID != "u1" {
		t.Errorf("Resolve() = %q, want u1", userID)
	}

	if _, err := d.Resolve(ctx, "agk_wrong"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Resolve() unknown key error = %v, want ErrInvalidKey", err)
	}
}

func TestDirectory_SeededKey(t *testing.T) {
	d := NewDirectory()
	d.SeedKey("dev-key-alpha", "u2")

	userID, err := d.Resolve(context.Background(), "dev-key-alpha")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if userID != "u2" {
		t.Errorf("Resolve() = %q, want u2", userID)
	}
}

func TestDirectory_RevokeUser(t *testing.T) {
	d := NewDirectory()
	ctx := context.Background()

	rawKey, err := d.Issue(ctx, "u1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	d.SeedKey("seeded", "u1")

	if n := d.RevokeUser(ctx, "u1"); n != 2 {
		t.Errorf("RevokeUser() = %d, want 2", n)
	}
	if _, err := d.Resolve(ctx, rawKey); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Resolve() revoked key error = %v, want ErrInvalidKey", err)
	}
	if _, err := d.Resolve(ctx, "seeded"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Resolve() revoked seeded key error = %v, want ErrInvalidKey", err)
	}
}
