package world

import (
	"errors"

	"github.com/spaghettifunk/voxelray/engine/core"
)

// FillPolicy decides which chunks are active when a world is built.
type FillPolicy interface {
	Contains(c Coord) bool
	// Bounds is the smallest box holding every contained chunk.
	Bounds() (origin Coord, extent [3]int)
}

// CuboidFill activates a box of chunks.
type CuboidFill struct {
	Origin Coord
	Extent [3]int
}

// CenteredCuboid is a box of the given extent centered in the world.
func CenteredCuboid(extent [3]int) CuboidFill {
	var origin Coord
	for a := 0; a < 3; a++ {
		origin[a] = (WorldChunks - extent[a]) / 2
	}
	return CuboidFill{Origin: origin, Extent: extent}
}

func (f CuboidFill) Contains(c Coord) bool {
	for a := 0; a < 3; a++ {
		if c[a] < f.Origin[a] || c[a] >= f.Origin[a]+f.Extent[a] {
			return false
		}
	}
	return true
}

func (f CuboidFill) Bounds() (Coord, [3]int) {
	return f.Origin, f.Extent
}

// SphereFill activates the chunks whose grid position lies within Radius of Center.
type SphereFill struct {
	Center Coord
	Radius int
}

func (f SphereFill) Contains(c Coord) bool {
	dx, dy, dz := c[0]-f.Center[0], c[1]-f.Center[1], c[2]-f.Center[2]
	return dx*dx+dy*dy+dz*dz < f.Radius*f.Radius
}

func (f SphereFill) Bounds() (Coord, [3]int) {
	var origin Coord
	var extent [3]int
	for a := 0; a < 3; a++ {
		lo := max(f.Center[a]-f.Radius+1, 0)
		hi := min(f.Center[a]+f.Radius, WorldChunks)
		origin[a] = lo
		extent[a] = max(hi-lo, 0)
	}
	return origin, extent
}

type FullFill struct{}

func (FullFill) Contains(Coord) bool { return true }

func (FullFill) Bounds() (Coord, [3]int) {
	return Coord{}, [3]int{WorldChunks, WorldChunks, WorldChunks}
}

type EmptyFill struct{}

func (EmptyFill) Contains(Coord) bool { return false }

func (EmptyFill) Bounds() (Coord, [3]int) {
	return Coord{}, [3]int{}
}

// ApplyFill resets d and hands out sequential slots from 1 to every chunk the policy
// contains, in directory order. Chunks past the pool capacity stay empty. It returns the
// number of chunks assigned and the number clipped.
func ApplyFill(d *Directory, policy FillPolicy) (assigned, clipped int, err error) {
	d.Reset()
	for i := 0; i < DirSize; i++ {
		c := CoordOf(i)
		if !policy.Contains(c) {
			continue
		}
		if _, err := d.Activate(c); err != nil {
			if errors.Is(err, core.ErrAllocation) {
				clipped++
				continue
			}
			return d.Assigned(), clipped, err
		}
	}
	if clipped > 0 {
		core.LogWarn("Fill requested %d chunks, pool holds %d: %d left empty.", d.Assigned()+clipped, MaxChunks-1, clipped)
	}
	return d.Assigned(), clipped, nil
}

// Resized grows (step > 0) or shrinks a cuboid or sphere fill by step chunks on every side,
// clamped to the world. Other policies, and resizes that change nothing, report false.
func Resized(policy FillPolicy, step int) (FillPolicy, bool) {
	switch f := policy.(type) {
	case CuboidFill:
		var out CuboidFill
		for a := 0; a < 3; a++ {
			lo := max(f.Origin[a]-step, 0)
			hi := min(f.Origin[a]+f.Extent[a]+step, WorldChunks)
			if hi <= lo {
				// never shrink below one chunk
				mid := f.Origin[a] + f.Extent[a]/2
				lo, hi = mid, mid+1
			}
			out.Origin[a], out.Extent[a] = lo, hi-lo
		}
		return out, out != f
	case SphereFill:
		out := f
		out.Radius = min(max(f.Radius+step, 1), WorldChunks/2)
		return out, out != f
	}
	return policy, false
}
