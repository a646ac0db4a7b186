package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { rs.Close() })
	return rs, mr
}

func TestLookupReturnsOnlyUserID(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "hash-1", "usr-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}

	user, err := rs.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession: %v", err)
	}
	if user.ID != "usr-1" {
		t.Fatalf("user id = %q", user.ID)
	}
	// Names, relations and the trusted bit live in Postgres; the session
	// record deliberately carries none of them.
	if user.DisplayName != "" || user.Relation != "" || user.Trusted {
		t.Fatalf("session record should carry only the id, got %+v", user)
	}
}

func TestTokensStoredUnderPrefixedHash(t *testing.T) {
	rs, mr := newTestStore(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "abc123", "usr-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], "refresh:") {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestRotationSingleUse(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()
	deadline := time.Now().Add(time.Hour)

	if err := rs.SaveRefreshSession(ctx, "old-hash", "usr-1", deadline); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}

	// Rotate: revoke the presented token, save its replacement.
	if err := rs.RevokeRefreshSession(ctx, "old-hash"); err != nil {
		t.Fatalf("RevokeRefreshSession: %v", err)
	}
	if err := rs.SaveRefreshSession(ctx, "new-hash", "usr-1", deadline); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}

	if _, err := rs.LookupRefreshSession(ctx, "old-hash"); err == nil {
		t.Fatal("rotated token should be single use")
	}
	user, err := rs.LookupRefreshSession(ctx, "new-hash")
	if err != nil {
		t.Fatalf("LookupRefreshSession: %v", err)
	}
	if user.ID != "usr-1" {
		t.Fatalf("user id = %q", user.ID)
	}
}

func TestExpiredTokenNotFound(t *testing.T) {
	rs, mr := newTestStore(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "hash-1", "usr-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := rs.LookupRefreshSession(ctx, "hash-1"); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestPastDeadlineFallsBackToDefaultTTL(t *testing.T) {
	rs, mr := newTestStore(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "hash-1", "usr-1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}
	ttl := mr.TTL("refresh:hash-1")
	if ttl <= 0 || ttl > defaultTTL {
		t.Fatalf("ttl = %v", ttl)
	}
}

func TestRevokeUnknownTokenIsNoop(t *testing.T) {
	rs, _ := newTestStore(t)
	if err := rs.RevokeRefreshSession(context.Background(), "never-saved"); err != nil {
		t.Fatalf("RevokeRefreshSession: %v", err)
	}
}

func TestLookupUnknownToken(t *testing.T) {
	rs, _ := newTestStore(t)
	if _, err := rs.LookupRefreshSession(context.Background(), "never-saved"); err == nil {
		t.Fatal("expected error for unknown token")
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()
	deadline := time.Now().Add(time.Hour)

	if err := rs.SaveRefreshSession(ctx, "hash-a", "usr-a", deadline); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}
	if err := rs.SaveRefreshSession(ctx, "hash-b", "usr-b", deadline); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}
	if err := rs.RevokeRefreshSession(ctx, "hash-a"); err != nil {
		t.Fatalf("RevokeRefreshSession: %v", err)
	}

	if _, err := rs.LookupRefreshSession(ctx, "hash-a"); err == nil {
		t.Fatal("revoked session should be gone")
	}
	user, err := rs.LookupRefreshSession(ctx, "hash-b")
	if err != nil {
		t.Fatalf("LookupRefreshSession: %v", err)
	}
	if user.ID != "usr-b" {
		t.Fatalf("user id = %q", user.ID)
	}
}
