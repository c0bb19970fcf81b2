package vectorstore_test

import (
	"context"
	"testing"

	"github.com/westonopentrain/capsule-match/internal/vectorstore"
)

func TestRegistry_RegisterGetList(t *testing.T) {
	r := vectorstore.NewRegistry()
	store := vectorstore.NewMemoryStore()

	r.Register("memory", store)

	got, err := r.Get("memory")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != store {
		t.Error("Get() returned a different store than was registered")
	}

	names := r.List()
	if len(names) != 1 || names[0] != "memory" {
		t.Errorf("List() = %v, want [memory]", names)
	}
}

func TestRegistry_GetMissingDriverErrors(t *testing.T) {
	r := vectorstore.NewRegistry()
	_, err := r.Get("nonexistent")
	if err == nil {
		t.Fatal("Get() error = nil, want error for unregistered driver")
	}
}

func TestRegistry_HealthCheckAll(t *testing.T) {
	r := vectorstore.NewRegistry()
	r.Register("memory", vectorstore.NewMemoryStore())

	results := r.HealthCheckAll(context.Background())
	if len(results) != 1 {
		t.Fatalf("HealthCheckAll() returned %d entries, want 1", len(results))
	}
	if err, ok := results["memory"]; !ok || err != nil {
		t.Errorf("HealthCheckAll()[memory] = %v, want nil error", err)
	}
}
