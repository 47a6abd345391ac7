package cache

import (
	"context"
	"testing"
	"time"

	"github.com/example/goods-transport/internal/models"
)

func TestBanAndExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if _, banned, _ := c.BanReason(ctx, "u1"); banned {
		t.Fatal("fresh cache must report not banned")
	}
	if err := c.Ban(ctx, "u1", "fraud", time.Hour); err != nil {
		t.Fatal(err)
	}
	reason, banned, err := c.BanReason(ctx, "u1")
	if err != nil || !banned {
		t.Fatalf("expected banned, got banned=%v err=%v", banned, err)
	}
	if reason != "fraud" {
		t.Fatalf("expected reason fraud, got %q", reason)
	}

	// expired markers behave like absent ones
	_ = c.Ban(ctx, "u2", "spam", -time.Second)
	if _, banned, _ := c.BanReason(ctx, "u2"); banned {
		t.Fatal("expired ban must not apply")
	}
}

func TestLocationRoundTripAndKinds(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	loc := models.Location{Lat: 52.52, Lon: 13.40, Timestamp: time.Now()}

	if err := c.SetLocation(ctx, KindRequest, "r1", loc, time.Hour); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.Location(ctx, KindRequest, "r1")
	if err != nil || !ok {
		t.Fatalf("expected location, ok=%v err=%v", ok, err)
	}
	if got.Lat != loc.Lat || got.Lon != loc.Lon {
		t.Fatalf("unexpected location %+v", got)
	}

	// same id under a different kind is a different key
	if _, ok, _ := c.Location(ctx, KindCarrier, "r1"); ok {
		t.Fatal("kinds must not share keys")
	}
}

func TestUserCaching(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	u := models.User{ID: "u1", DisplayName: "Ada", Email: "ada@example.com"}

	if _, ok, _ := c.User(ctx, "u1"); ok {
		t.Fatal("expected cache miss")
	}
	if err := c.SetUser(ctx, u, time.Hour); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.User(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected cached user, ok=%v err=%v", ok, err)
	}
	if got.Email != u.Email {
		t.Fatalf("expected %q, got %q", u.Email, got.Email)
	}
}
