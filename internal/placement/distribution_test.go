package placement

import (
	"fmt"
	"testing"
)

func TestPrimaryIndexDeterministic(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 7} {
		first := PrimaryIndex("a.txt", n)
		for i := 0; i < 10; i++ {
			if got := PrimaryIndex("a.txt", n); got != first {
				t.Fatalf("n=%d: got %d, then %d", n, first, got)
			}
		}
		if first < 0 || first >= n {
			t.Errorf("n=%d: index %d out of range", n, first)
		}
	}
}

func TestNameHash(t *testing.T) {
	tests := []struct {
		name string
		hash uint32
		idx3 int
		idx4 int
	}{
		// md5("a.txt") = a5e54d1f...
		{"a.txt", 0x1f4de5a5, 1, 1},
		{"b.txt", 0xce6a50ce, 1, 2},
		{"report.pdf", 0xf413685c, 0, 0},
	}
	for _, tt := range tests {
		if got := NameHash(tt.name); got != tt.hash {
			t.Errorf("NameHash(%q) = %#x, want %#x", tt.name, got, tt.hash)
		}
		if got := PrimaryIndex(tt.name, 3); got != tt.idx3 {
			t.Errorf("PrimaryIndex(%q, 3) = %d, want %d", tt.name, got, tt.idx3)
		}
		if got := PrimaryIndex(tt.name, 4); got != tt.idx4 {
			t.Errorf("PrimaryIndex(%q, 4) = %d, want %d", tt.name, got, tt.idx4)
		}
	}
}

func TestPrimaryIndexSpread(t *testing.T) {
	const n = 4
	seen := make(map[int]int)
	for i := 0; i < 100; i++ {
		seen[PrimaryIndex(fmt.Sprintf("file-%d.bin", i), n)]++
	}
	if len(seen) < 2 {
		t.Errorf("all names collided on one node: %v", seen)
	}
}

func TestPlan(t *testing.T) {
	targets, err := Plan("a.txt", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 3 {
		t.Fatalf("expected 3 targets, got %d", len(targets))
	}

	primary := PrimaryIndex("a.txt", 3)
	for j, tg := range targets {
		if tg.Chunk != j {
			t.Errorf("target %d has chunk %d", j, tg.Chunk)
		}
		if want := (primary + j) % 3; tg.Primary != want {
			t.Errorf("chunk %d: primary %d, want %d", j, tg.Primary, want)
		}
		if want := (tg.Primary + 1) % 3; tg.Replica != want {
			t.Errorf("chunk %d: replica %d, want %d", j, tg.Replica, want)
		}
	}
}

func TestPlanSingleNode(t *testing.T) {
	targets, err := Plan("only.bin", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 || targets[0].Primary != 0 || targets[0].Replica != 0 {
		t.Errorf("unexpected plan for single node: %+v", targets)
	}
}

func TestPlanInvalidSize(t *testing.T) {
	if _, err := Plan("a", 0); err == nil {
		t.Error("expected error for empty cluster")
	}
}
