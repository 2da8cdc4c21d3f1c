// Package spatial implements the uniform-grid bin lattice used to answer
// per-agent neighbor queries in O(bins overlapped) rather than O(agents).
//
// It is a generic transliteration of the locality-query database in
// original_source/library/src/lq2D.cpp (itself derived from Craig Reynolds'
// OpenSteer locality-query facility): a rectangular super-region subdivided
// into div_x * div_y equal bins plus one catch-all "overflow" bin for
// anything outside the super-region, each bin holding a doubly linked list
// of proxies.
package spatial

import "github.com/pthm-cable/crowdsim/vecmath"

// Handle identifies a proxy owned by a Grid. The zero value is not a valid
// handle; use NullHandle to test for "no proxy".
type Handle int32

// NullHandle is the sentinel for "not inserted" / "already removed".
const NullHandle Handle = -1

type proxy[T any] struct {
	owner      T
	x, y       float64
	bin        int32 // index into Grid.bins; -1 if not yet placed
	prev, next Handle
	alive      bool
}

// Grid is a uniform-grid spatial index over owners of type T. T is typically
// a pointer to the caller's agent type; the grid never dereferences it, it
// only stores and returns it.
type Grid[T any] struct {
	originX, originY float64
	sizeX, sizeY     float64
	divX, divY       int

	bins    []Handle // head of each bin's linked list; len == divX*divY+1 (last is overflow)
	overIdx int32

	proxies []proxy[T]
	free    []Handle
}

// New allocates a Grid covering [origin, origin+size) subdivided into
// divX*divY equal bins, plus one overflow bin for out-of-range coordinates.
func New[T any](origin, size vecmath.Vec2, divX, divY int) *Grid[T] {
	if divX <= 0 || divY <= 0 {
		panic("spatial: divX and divY must be positive")
	}
	bincount := divX*divY + 1
	bins := make([]Handle, bincount)
	for i := range bins {
		bins[i] = NullHandle
	}
	return &Grid[T]{
		originX: origin.X,
		originY: origin.Y,
		sizeX:   size.X,
		sizeY:   size.Y,
		divX:    divX,
		divY:    divY,
		bins:    bins,
		overIdx: int32(divX * divY),
	}
}

// binIndex returns the bin index for point (x, y), or the overflow index if
// the point lies outside the super-region. Integer truncation (floor for
// positive coordinates measured from the origin) is the tie-break at bin
// boundaries, matching lqBinForLocation2D.
func (g *Grid[T]) binIndex(x, y float64) int32 {
	if x < g.originX || y < g.originY || x >= g.originX+g.sizeX || y >= g.originY+g.sizeY {
		return g.overIdx
	}
	ix := int((x - g.originX) / g.sizeX * float64(g.divX))
	iy := int((y - g.originY) / g.sizeY * float64(g.divY))
	return int32(ix*g.divY + iy)
}

// Insert allocates a proxy for owner with no position yet; a following call
// to Update places it in the correct bin. The returned handle is stable
// until the proxy is Removed.
func (g *Grid[T]) Insert(owner T) Handle {
	var h Handle
	if n := len(g.free); n > 0 {
		h = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		h = Handle(len(g.proxies))
		g.proxies = append(g.proxies, proxy[T]{})
	}
	g.proxies[h] = proxy[T]{owner: owner, bin: -1, prev: NullHandle, next: NullHandle, alive: true}
	return h
}

// unlink removes the proxy from whatever bin list it currently occupies,
// without touching its recorded bin index (callers relink or clear it).
func (g *Grid[T]) unlink(h Handle) {
	p := &g.proxies[h]
	if p.bin == -1 {
		return
	}
	if p.prev == NullHandle {
		g.bins[p.bin] = p.next
	} else {
		g.proxies[p.prev].next = p.next
	}
	if p.next != NullHandle {
		g.proxies[p.next].prev = p.prev
	}
	p.prev = NullHandle
	p.next = NullHandle
}

func (g *Grid[T]) linkInto(h Handle, bin int32) {
	p := &g.proxies[h]
	head := g.bins[bin]
	p.prev = NullHandle
	p.next = head
	if head != NullHandle {
		g.proxies[head].prev = h
	}
	g.bins[bin] = h
	p.bin = bin
}

// Update moves the proxy to the bin for (x, y) if it changed, and records
// the new position. O(1) unless the proxy crosses a bin boundary, in which
// case it is still O(1), just with a relink.
func (g *Grid[T]) Update(h Handle, x, y float64) {
	p := &g.proxies[h]
	newBin := g.binIndex(x, y)
	if p.bin != newBin {
		g.unlink(h)
		g.linkInto(h, newBin)
	}
	p.x, p.y = x, y
}

// Remove unlinks and frees the proxy. Idempotent: removing an already-removed
// (or never-placed) handle is a no-op.
func (g *Grid[T]) Remove(h Handle) {
	if h == NullHandle || h >= Handle(len(g.proxies)) {
		return
	}
	p := &g.proxies[h]
	if !p.alive {
		return
	}
	g.unlink(h)
	p.bin = -1
	p.alive = false
	var zero T
	p.owner = zero
	g.free = append(g.free, h)
}

// Query appends to dst every owner whose proxy lies strictly within radius
// of center, and returns the extended slice. The result is unordered and
// contains no duplicates (each agent owns at most one proxy).
func (g *Grid[T]) Query(center vecmath.Vec2, radius float64, dst []T) []T {
	x, y := center.X, center.Y
	radiusSq := radius * radius

	completelyOutside := x+radius < g.originX ||
		y+radius < g.originY ||
		x-radius >= g.originX+g.sizeX ||
		y-radius >= g.originY+g.sizeY

	if completelyOutside {
		return g.scanBin(g.overIdx, x, y, radiusSq, dst)
	}

	minBinX := int((x - radius - g.originX) / g.sizeX * float64(g.divX))
	minBinY := int((y - radius - g.originY) / g.sizeY * float64(g.divY))
	maxBinX := int((x + radius - g.originX) / g.sizeX * float64(g.divX))
	maxBinY := int((y + radius - g.originY) / g.sizeY * float64(g.divY))

	partlyOut := false
	if minBinX < 0 {
		partlyOut = true
		minBinX = 0
	}
	if minBinY < 0 {
		partlyOut = true
		minBinY = 0
	}
	if maxBinX >= g.divX {
		partlyOut = true
		maxBinX = g.divX - 1
	}
	if maxBinY >= g.divY {
		partlyOut = true
		maxBinY = g.divY - 1
	}

	if partlyOut {
		dst = g.scanBin(g.overIdx, x, y, radiusSq, dst)
	}

	for ix := minBinX; ix <= maxBinX; ix++ {
		for iy := minBinY; iy <= maxBinY; iy++ {
			dst = g.scanBin(int32(ix*g.divY+iy), x, y, radiusSq, dst)
		}
	}
	return dst
}

func (g *Grid[T]) scanBin(bin int32, x, y, radiusSq float64, dst []T) []T {
	for h := g.bins[bin]; h != NullHandle; h = g.proxies[h].next {
		p := &g.proxies[h]
		dx := p.x - x
		dy := p.y - y
		if dx*dx+dy*dy < radiusSq {
			dst = append(dst, p.owner)
		}
	}
	return dst
}
