package idgen_test

import (
	"testing"

	"github.com/voxbridge/voxbridge/adapters/idgen"
)

func TestUUID_Unique(t *testing.T) {
	g := idgen.UUID{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.New()
		if len(id) != 36 {
			t.Fatalf("id %q has length %d, want 36", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestSequential(t *testing.T) {
	g := idgen.NewSequential("req")
	if got := g.New(); got != "req-1" {
		t.Errorf("first id = %q, want req-1", got)
	}
	if got := g.New(); got != "req-2" {
		t.Errorf("second id = %q, want req-2", got)
	}
}
