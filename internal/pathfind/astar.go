// Package pathfind implements grid A* over the world's blocking oracle.
package pathfind

import (
	"container/heap"

	"github.com/talgya/idle-isle/internal/world"
)

// DefaultMaxExplored caps node expansion when callers pass a non-positive limit.
const DefaultMaxExplored = 2000

// stepCost is the flat cost of every orthogonal move.
// TODO: cheaper road tiles would plug in here as a per-tile cost lookup.
const stepCost = 1

// Finder runs A* searches on one grid. Scratch buffers are sized to the grid
// and reused between searches, so a Finder should be kept for as long as the
// grid does not change. Not safe for concurrent use.
type Finder struct {
	grid   world.Grid
	width  int
	height int

	gScore []int
	parent []int32
	stamp  []uint32 // Search generation that last touched each cell
	closed []uint32
	gen    uint32
}

// New creates a Finder bound to g.
func New(g world.Grid) *Finder {
	w, h := g.Size()
	n := w * h
	return &Finder{
		grid:   g,
		width:  w,
		height: h,
		gScore: make([]int, n),
		parent: make([]int32, n),
		stamp:  make([]uint32, n),
		closed: make([]uint32, n),
	}
}

// Bind points the Finder at another grid of the same size, keeping the
// scratch buffers. Callers must rebuild with New when the size changes.
func (f *Finder) Bind(g world.Grid) {
	f.grid = g
}

// Grid returns the grid the Finder searches.
func (f *Finder) Grid() world.Grid {
	return f.grid
}

// Size returns the grid dimensions the scratch buffers were sized for.
func (f *Finder) Size() (int, int) {
	return f.width, f.height
}

func (f *Finder) inBounds(p world.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < f.width && p.Y < f.height
}

func (f *Finder) index(p world.Point) int {
	return p.Y*f.width + p.X
}

func (f *Finder) point(i int) world.Point {
	return world.Pt(i%f.width, i/f.width)
}

type openNode struct {
	idx int
	g   int
	f   int
	seq uint64 // Insertion order; final tie-break
}

type openSet []openNode

func (o openSet) Len() int { return len(o) }

func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	// Deeper nodes first on equal f keeps open-field searches narrow.
	if o[i].g != o[j].g {
		return o[i].g > o[j].g
	}
	return o[i].seq < o[j].seq
}

func (o openSet) Swap(i, j int) { o[i], o[j] = o[j], o[i] }

func (o *openSet) Push(x any) { *o = append(*o, x.(openNode)) }

func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	item := old[n-1]
	*o = old[:n-1]
	return item
}

// FindPath returns the tiles to walk from start to goal, excluding start and
// including goal, or nil when no path exists. It returns nil immediately if
// either end is out of bounds or the goal is blocked, and gives up (nil) once
// more than maxExplored nodes have been expanded. The start tile itself may
// be blocked; only tiles entered are tested.
func (f *Finder) FindPath(start, goal world.Point, maxExplored int) []world.Point {
	if !f.inBounds(start) || !f.inBounds(goal) {
		return nil
	}
	if f.grid.IsBlocked(goal.X, goal.Y) {
		return nil
	}
	if start == goal {
		return []world.Point{}
	}
	if maxExplored <= 0 {
		maxExplored = DefaultMaxExplored
	}

	f.nextGeneration()

	startIdx := f.index(start)
	goalIdx := f.index(goal)
	f.touch(startIdx, 0, -1)

	var seq uint64
	open := &openSet{{idx: startIdx, g: 0, f: world.Manhattan(start, goal), seq: seq}}
	explored := 0

	for open.Len() > 0 {
		current := heap.Pop(open).(openNode)
		if f.closed[current.idx] == f.gen {
			continue
		}
		if current.g > f.gScore[current.idx] {
			continue // Stale entry superseded by a cheaper push
		}
		f.closed[current.idx] = f.gen

		if current.idx == goalIdx {
			return f.reconstruct(goalIdx)
		}

		explored++
		if explored > maxExplored {
			return nil
		}

		cp := f.point(current.idx)
		for _, np := range cp.Neighbors() {
			if !f.inBounds(np) || f.grid.IsBlocked(np.X, np.Y) {
				continue
			}
			ni := f.index(np)
			if f.closed[ni] == f.gen {
				continue
			}
			tentative := current.g + stepCost
			if f.stamp[ni] == f.gen && tentative >= f.gScore[ni] {
				continue
			}
			f.touch(ni, tentative, int32(current.idx))
			seq++
			heap.Push(open, openNode{
				idx: ni,
				g:   tentative,
				f:   tentative + world.Manhattan(np, goal),
				seq: seq,
			})
		}
	}

	return nil
}

// nextGeneration invalidates all scratch state without clearing the slices.
func (f *Finder) nextGeneration() {
	f.gen++
	if f.gen == 0 {
		// Wrapped: stale stamps could alias the new generation.
		clear(f.stamp)
		clear(f.closed)
		f.gen = 1
	}
}

func (f *Finder) touch(i, g int, parent int32) {
	f.stamp[i] = f.gen
	f.gScore[i] = g
	f.parent[i] = parent
}

// reconstruct walks parent pointers from the goal back to the start, then
// reverses, dropping the start cell.
func (f *Finder) reconstruct(goalIdx int) []world.Point {
	var path []world.Point
	for i := int32(goalIdx); i >= 0 && f.parent[i] >= 0; i = f.parent[i] {
		path = append(path, f.point(int(i)))
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}
