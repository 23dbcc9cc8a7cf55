package session

import (
	"testing"
	"time"

	"github.com/Lakunake/Sync-Player/internal/clock"
)

var epoch = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestRateLimiterWindow(t *testing.T) {
	clk := clock.NewMock(epoch)
	rl := NewRateLimiter(clk)
	addr := "203.0.113.5:51000"

	for i := 0; i < rateLimitEvents; i++ {
		if ok, _ := rl.Allow(addr); !ok {
			t.Fatalf("event %d denied inside the window", i)
		}
	}
	ok, retry := rl.Allow(addr)
	if ok {
		t.Fatal("event over the limit allowed")
	}
	if retry != rateLimitCooldown {
		t.Fatalf("retryAfter = %v, want %v", retry, rateLimitCooldown)
	}

	// Still cooling down
	clk.Advance(2 * time.Second)
	if ok, retry := rl.Allow(addr); ok || retry != 3*time.Second {
		t.Fatalf("cooldown: ok=%v retry=%v", ok, retry)
	}

	// Once the window rolls over, the bucket refills
	clk.Advance(8 * time.Second)
	if ok, _ := rl.Allow(addr); !ok {
		t.Fatal("denied after the window rolled over")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	clk := clock.NewMock(epoch)
	rl := NewRateLimiter(clk)
	addr := "203.0.113.5:51000"

	for i := 0; i < rateLimitEvents; i++ {
		rl.Allow(addr)
	}
	clk.Advance(rateLimitWindow)
	if ok, _ := rl.Allow(addr); !ok {
		t.Fatal("fresh window denied")
	}
}

func TestRateLimiterPerAddress(t *testing.T) {
	clk := clock.NewMock(epoch)
	rl := NewRateLimiter(clk)

	for i := 0; i <= rateLimitEvents; i++ {
		rl.Allow("203.0.113.5:51000")
	}
	if ok, _ := rl.Allow("203.0.113.9:51000"); !ok {
		t.Fatal("one noisy address throttled another")
	}
}

func TestRateLimiterLoopbackBypass(t *testing.T) {
	rl := NewRateLimiter(clock.NewMock(epoch))
	for i := 0; i < rateLimitEvents*3; i++ {
		if ok, _ := rl.Allow("127.0.0.1:40000"); !ok {
			t.Fatal("loopback throttled")
		}
	}
	if ok, _ := rl.Allow("[::1]:40000"); !ok {
		t.Fatal("IPv6 loopback throttled")
	}
}

func TestEncodeEnvelope(t *testing.T) {
	frame, err := Encode("sync", map[string]any{"position": 1.5})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"event":"sync","data":{"position":1.5}}`
	if string(frame) != want {
		t.Fatalf("frame = %s, want %s", frame, want)
	}

	frame, err = Encode("bsl-check", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(frame) != `{"event":"bsl-check"}` {
		t.Fatalf("nil payload frame = %s", frame)
	}
}
