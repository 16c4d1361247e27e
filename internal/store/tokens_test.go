package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/armeria/internal/db"
)

func TestRevokeAndCheckToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, database, "session-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("fresh session reported as revoked")
	}

	if err := RevokeToken(ctx, database, "session-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	// A second logout with the same token is a no-op.
	if err := RevokeToken(ctx, database, "session-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken again: %v", err)
	}

	for jti, want := range map[string]bool{"session-1": true, "session-2": false} {
		got, err := IsTokenRevoked(ctx, database, jti)
		if err != nil {
			t.Fatalf("IsTokenRevoked(%s): %v", jti, err)
		}
		if got != want {
			t.Errorf("IsTokenRevoked(%s) = %v, want %v", jti, got, want)
		}
	}
}

func TestPurgeRevokedTokens(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if err := RevokeToken(ctx, database, "old", now.Add(-time.Hour)); err != nil {
		t.Fatalf("RevokeToken old: %v", err)
	}
	if err := RevokeToken(ctx, database, "live", now.Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken live: %v", err)
	}

	// Revocations of expired tokens are dropped on every revoke.
	if revoked, _ := IsTokenRevoked(ctx, database, "old"); revoked {
		t.Error("expired revocation was kept")
	}

	n, err := PurgeRevokedTokens(ctx, database, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("PurgeRevokedTokens: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d revocations, want 1", n)
	}
	if revoked, _ := IsTokenRevoked(ctx, database, "live"); revoked {
		t.Error("revocation still present after its token expired")
	}
}
