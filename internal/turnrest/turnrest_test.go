package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"testing"
	"time"
)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(GeneratorConfig{
		SharedSecret:   "north-remembers",
		TTLSeconds:     600,
		UsernamePrefix: "spark",
		Now:            func() time.Time { return time.Unix(1_700_000_000, 0) },
		NewID:          func() string { return "fixed-id" },
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestGenerateDeterministic(t *testing.T) {
	g := newTestGenerator(t)

	creds, err := g.Generate("conn-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if creds.ExpiryUnix != 1_700_000_600 {
		t.Fatalf("expiry=%d, want %d", creds.ExpiryUnix, 1_700_000_600)
	}
	wantUser := "1700000600:spark:conn-1"
	if creds.Username != wantUser {
		t.Fatalf("username=%q, want %q", creds.Username, wantUser)
	}

	mac := hmac.New(sha1.New, []byte("north-remembers"))
	mac.Write([]byte(wantUser))
	if want := base64.StdEncoding.EncodeToString(mac.Sum(nil)); creds.Credential != want {
		t.Fatalf("credential=%q, want %q", creds.Credential, want)
	}
}

func TestGenerateRandomUsesIDSource(t *testing.T) {
	g := newTestGenerator(t)
	creds, err := g.GenerateRandom()
	if err != nil {
		t.Fatalf("GenerateRandom: %v", err)
	}
	if creds.Username != "1700000600:spark:fixed-id" {
		t.Fatalf("username=%q", creds.Username)
	}
}

func TestGenerateRejectsColons(t *testing.T) {
	g := newTestGenerator(t)
	if _, err := g.Generate("a:b"); err == nil {
		t.Fatalf("expected error for ':' in connection id")
	}
}

func TestNewGeneratorValidation(t *testing.T) {
	if _, err := NewGenerator(GeneratorConfig{TTLSeconds: 1, UsernamePrefix: "p"}); err == nil {
		t.Fatalf("expected error for missing secret")
	}
	if _, err := NewGenerator(GeneratorConfig{SharedSecret: "s", UsernamePrefix: "p"}); err == nil {
		t.Fatalf("expected error for non-positive TTL")
	}
	if _, err := NewGenerator(GeneratorConfig{SharedSecret: "s", TTLSeconds: 1, UsernamePrefix: "a:b"}); err == nil {
		t.Fatalf("expected error for ':' in prefix")
	}
}
