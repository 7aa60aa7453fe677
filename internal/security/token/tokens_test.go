package token

import (
	"strings"
	"testing"
)

func TestGenerateOpaque(t *testing.T) {
	a, err := GenerateOpaque(32)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := GenerateOpaque(32)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a == b {
		t.Fatalf("two tokens came out identical")
	}
	// 32 bytes -> 43 chars base64url sin padding
	if len(a) != 43 {
		t.Fatalf("unexpected token length %d", len(a))
	}
	if strings.ContainsAny(a, "+/=") {
		t.Fatalf("token is not URL-safe: %q", a)
	}
}

func TestSHA256Base64URL_Deterministic(t *testing.T) {
	h1 := SHA256Base64URL("hello")
	h2 := SHA256Base64URL("hello")
	if h1 != h2 {
		t.Fatalf("digest not deterministic")
	}
	if h1 == "hello" {
		t.Fatalf("digest equals input")
	}
	if SHA256Base64URL("hellO") == h1 {
		t.Fatalf("different inputs collided")
	}
}

func TestMACBase64URL_PepperMatters(t *testing.T) {
	m1 := MACBase64URL([]byte("pepper-a"), "gk_secret")
	m2 := MACBase64URL([]byte("pepper-a"), "gk_secret")
	m3 := MACBase64URL([]byte("pepper-b"), "gk_secret")
	if m1 != m2 {
		t.Fatalf("mac not deterministic")
	}
	if m1 == m3 {
		t.Fatalf("different peppers produced the same mac")
	}
}
