package assets

import (
	"strings"
	"testing"
)

func TestMemoryStore_Good(t *testing.T) {
	store := NewMemoryStore()
	h1, err := store.Publish("worker.js", "text/javascript", []byte("a"))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	h2, err := store.Publish("worker.js", "text/javascript", []byte("b"))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if h1 == h2 {
		t.Error("expected distinct handles for each publish")
	}
	if !IsLocal(h1) || !strings.HasSuffix(h1.String(), "/worker.js") {
		t.Errorf("unexpected handle %s", h1)
	}

	data, contentType, err := store.Resolve(h2)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if string(data) != "b" || contentType != "text/javascript" {
		t.Errorf("unexpected resolve result %q %q", data, contentType)
	}

	if err := store.Revoke(h1); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 resource after revoke, got %d", store.Len())
	}
}

func TestMemoryStore_Bad(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Publish("", "text/plain", nil); err == nil {
		t.Error("expected an error for an empty name")
	}
	if _, _, err := store.Resolve("https://cdn.example.com/worker.js"); err == nil {
		t.Error("expected remote handles to be rejected")
	}
	if _, _, err := store.Resolve("blob:missing/worker.js"); err == nil {
		t.Error("expected unknown handles to fail")
	}
	if err := store.Revoke("blob:missing/worker.js"); err == nil {
		t.Error("expected revoking an unknown handle to fail")
	}
}
