package httpapi

import (
	"testing"
	"time"
)

func TestLoginLimiterWindow(t *testing.T) {
	l := newLoginLimiter()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < l.max; i++ {
		if !l.Allow("ip:1.2.3.4", now) {
			t.Fatalf("attempt %d rejected below limit", i+1)
		}
	}
	if l.Allow("ip:1.2.3.4", now) {
		t.Fatalf("attempt above limit allowed")
	}
	if !l.Allow("ip:5.6.7.8", now) {
		t.Fatalf("unrelated key throttled")
	}

	// Old attempts fall out of the window.
	later := now.Add(l.window + time.Second)
	if !l.Allow("ip:1.2.3.4", later) {
		t.Fatalf("attempt after window expiry rejected")
	}
}

func TestLoginLimiterAllowAll(t *testing.T) {
	l := newLoginLimiter()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < l.max; i++ {
		if !l.AllowAll(now, "ip:1.2.3.4", "email:a@b.com") {
			t.Fatalf("attempt %d rejected below limit", i+1)
		}
	}
	if l.AllowAll(now, "ip:1.2.3.4", "email:a@b.com") {
		t.Fatalf("attempt above limit allowed")
	}

	// The email key is exhausted too, even from a fresh address.
	if l.AllowAll(now, "ip:9.9.9.9", "email:a@b.com") {
		t.Fatalf("exhausted account key allowed via new address")
	}
	if !l.AllowAll(now, "ip:9.9.9.9", "email:other@b.com") {
		t.Fatalf("fresh key pair throttled")
	}
}
