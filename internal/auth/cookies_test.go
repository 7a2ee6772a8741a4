package auth

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCookieCodec_SignAndVerify(t *testing.T) {
	codec := NewCookieCodec([]byte(strings.Repeat("x", 32)))

	encoded := codec.Encode("user-1")
	if encoded == "user-1" {
		t.Fatalf("expected signed cookie value")
	}

	id, ok := codec.Decode(encoded)
	if !ok || id != "user-1" {
		t.Fatalf("expected decode ok for signed cookie")
	}

	_, ok = codec.Decode(encoded + "x")
	if ok {
		t.Fatalf("expected tampered cookie to fail verification")
	}
}

func TestCookieCodec_Unsigned(t *testing.T) {
	codec := NewCookieCodec(nil)
	id, ok := codec.Decode("user-1")
	if !ok || id != "user-1" {
		t.Fatalf("expected unsigned cookie to decode")
	}
	if _, ok := codec.Decode(""); ok {
		t.Fatalf("expected empty cookie to fail")
	}
}

func TestRememberMeCookieHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	SetRememberMeCookie(rec, "tok-1", false)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != RememberMeCookieName || c.Value != "tok-1" {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if !c.HttpOnly {
		t.Fatalf("expected httpOnly cookie")
	}
	if c.MaxAge != int(RememberMeTTL.Seconds()) {
		t.Fatalf("expected 30-day max age, got %d", c.MaxAge)
	}

	rec = httptest.NewRecorder()
	ClearRememberMeCookie(rec, false)
	c = rec.Result().Cookies()[0]
	if c.MaxAge != -1 || c.Value != "" {
		t.Fatalf("expected cleared cookie, got %+v", c)
	}
}

func TestNewToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok := NewToken()
		if tok == "" || seen[tok] {
			t.Fatalf("expected unique non-empty tokens")
		}
		seen[tok] = true
	}
}
