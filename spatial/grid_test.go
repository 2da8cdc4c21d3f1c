package spatial

import (
	"testing"

	"github.com/pthm-cable/crowdsim/vecmath"
)

func newTestGrid() *Grid[int] {
	return New[int](vecmath.Vec2{X: -5, Y: -5}, vecmath.Vec2{X: 10, Y: 10}, 4, 4)
}

func TestQueryFindsMembers(t *testing.T) {
	g := newTestGrid()
	h := g.Insert(42)
	g.Update(h, 0, 0)

	got := g.Query(vecmath.Vec2{X: 0, Y: 0}, 1, nil)
	if len(got) != 1 || got[0] != 42 {
		t.Fatalf("Query = %v, want [42]", got)
	}
}

func TestQueryExcludesFarAgents(t *testing.T) {
	g := newTestGrid()
	h := g.Insert(1)
	g.Update(h, 4.9, 4.9)

	got := g.Query(vecmath.Vec2{X: 0, Y: 0}, 0.5, nil)
	if len(got) != 0 {
		t.Fatalf("Query = %v, want empty", got)
	}
}

func TestQueryIsUnordereAndUnique(t *testing.T) {
	g := newTestGrid()
	handles := make([]Handle, 0, 5)
	for i := 0; i < 5; i++ {
		h := g.Insert(i)
		g.Update(h, 0, 0)
		handles = append(handles, h)
	}

	got := g.Query(vecmath.Vec2{X: 0, Y: 0}, 1, nil)
	if len(got) != 5 {
		t.Fatalf("Query returned %d results, want 5", len(got))
	}
	seen := make(map[int]bool)
	for _, owner := range got {
		if seen[owner] {
			t.Fatalf("owner %d returned more than once", owner)
		}
		seen[owner] = true
	}
}

// Overflow bin: an agent far outside the super-region is found by a query
// centered on it, but never shows up in a query over the super-region itself.
func TestOverflowBin(t *testing.T) {
	g := newTestGrid()
	h := g.Insert(7)
	g.Update(h, 1e6, 0)

	got := g.Query(vecmath.Vec2{X: 1e6, Y: 0}, 0.1, nil)
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("Query at overflow location = %v, want [7]", got)
	}

	got = g.Query(vecmath.Vec2{X: 0, Y: 0}, 0.1, nil)
	if len(got) != 0 {
		t.Fatalf("Query inside super-region = %v, want empty", got)
	}
}

func TestUpdateMovesAcrossBins(t *testing.T) {
	g := newTestGrid()
	h := g.Insert(9)
	g.Update(h, -4, -4)
	if got := g.Query(vecmath.Vec2{X: -4, Y: -4}, 0.5, nil); len(got) != 1 {
		t.Fatalf("expected to find owner before move, got %v", got)
	}

	g.Update(h, 4, 4)
	if got := g.Query(vecmath.Vec2{X: -4, Y: -4}, 0.5, nil); len(got) != 0 {
		t.Fatalf("owner still found at old location: %v", got)
	}
	if got := g.Query(vecmath.Vec2{X: 4, Y: 4}, 0.5, nil); len(got) != 1 || got[0] != 9 {
		t.Fatalf("Query at new location = %v, want [9]", got)
	}
}

func TestRemoveIsIdempotentAndUnlinks(t *testing.T) {
	g := newTestGrid()
	h := g.Insert(3)
	g.Update(h, 0, 0)
	g.Remove(h)
	g.Remove(h) // must not panic or double-free

	got := g.Query(vecmath.Vec2{X: 0, Y: 0}, 1, nil)
	if len(got) != 0 {
		t.Fatalf("Query after Remove = %v, want empty", got)
	}
}

func TestFreedHandleIsReused(t *testing.T) {
	g := newTestGrid()
	h1 := g.Insert(1)
	g.Update(h1, 0, 0)
	g.Remove(h1)

	h2 := g.Insert(2)
	if h2 != h1 {
		t.Fatalf("expected freed handle %v to be reused, got %v", h1, h2)
	}
	g.Update(h2, 0, 0)
	got := g.Query(vecmath.Vec2{X: 0, Y: 0}, 1, nil)
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("Query = %v, want [2]", got)
	}
}

func TestQueryReusesDstBacking(t *testing.T) {
	g := newTestGrid()
	h := g.Insert(5)
	g.Update(h, 0, 0)

	buf := make([]int, 0, 8)
	got := g.Query(vecmath.Vec2{X: 0, Y: 0}, 1, buf)
	if cap(got) != cap(buf) {
		t.Fatalf("Query allocated a new backing array instead of reusing dst")
	}
}
