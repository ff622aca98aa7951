//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

// Run with: REDIS_TEST_ADDR=localhost:6379 go test -tags=integration ./internal/cache

func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping integration test")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	type session struct{ UserID string }
	c := NewRedisCache[session](client, "bankroll:test:"+t.Name()+":", time.Minute)
	c.Delete(ctx, "tok")

	if !c.Add(ctx, "tok", session{UserID: "u1"}) {
		t.Fatalf("first add must store")
	}
	if c.Add(ctx, "tok", session{UserID: "u2"}) {
		t.Fatalf("second add must be rejected")
	}
	got, ok := c.Get(ctx, "tok")
	if !ok || got.UserID != "u1" {
		t.Fatalf("unexpected value %+v ok=%v", got, ok)
	}
	c.Delete(ctx, "tok")
	if _, ok := c.Get(ctx, "tok"); ok {
		t.Fatalf("expected miss after delete")
	}
}
