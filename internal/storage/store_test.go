package storage

import (
	"context"
	"testing"

	"github.com/giftar/giftpin/internal/config"
)

func TestNewWithoutEndpoint(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{Bucket: "giftpin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store != nil {
		t.Fatalf("expected nil store without endpoint")
	}
}

func TestObjectKey(t *testing.T) {
	cases := map[string]string{
		"card.png":             "shops/7/abc-card.png",
		"../../etc/passwd":     "shops/7/abc-passwd",
		`C:\photos\my pic.jpg`: "shops/7/abc-my_pic.jpg",
		"":                     "shops/7/abc",
	}
	for filename, want := range cases {
		if got := objectKey(7, "abc", filename); got != want {
			t.Fatalf("objectKey(%q) = %q, want %q", filename, got, want)
		}
	}
}

func TestOwns(t *testing.T) {
	key := objectKey(12, "abc", "card.png")
	if !Owns(12, key) {
		t.Fatalf("expected shop 12 to own %s", key)
	}
	if Owns(1, key) {
		t.Fatalf("shop 1 must not own %s", key)
	}
}
