package world

import (
	"fmt"

	"github.com/spaghettifunk/voxelray/engine/containers"
	"github.com/spaghettifunk/voxelray/engine/core"
	vmath "github.com/spaghettifunk/voxelray/engine/math"
)

const (
	// ChunkSize is the number of voxels along one chunk edge.
	ChunkSize   = 32
	ChunkVolume = ChunkSize * ChunkSize * ChunkSize
	// WorldChunks is the number of chunks along one world edge.
	WorldChunks = 32
	DirSize     = WorldChunks * WorldChunks * WorldChunks
	// MaxChunks bounds the chunk payloads resident in the pool, including the empty slot.
	MaxChunks = 2048

	// EmptySlot is the all-air chunk every unassigned directory entry resolves to.
	EmptySlot uint32 = 0
)

// Coord is a position on the chunk grid.
type Coord [3]int

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c[0], c[1], c[2])
}

// Index returns the directory index of chunk (x,y,z), X fastest.
func Index(x, y, z int) (int, error) {
	if !vmath.InRange(x, 0, WorldChunks) || !vmath.InRange(y, 0, WorldChunks) || !vmath.InRange(z, 0, WorldChunks) {
		return 0, fmt.Errorf("chunk (%d,%d,%d) outside [0,%d): %w", x, y, z, WorldChunks, core.ErrOutOfBounds)
	}
	return x + y*WorldChunks + z*WorldChunks*WorldChunks, nil
}

// CoordOf is the inverse of Index.
func CoordOf(index int) Coord {
	return Coord{
		index % WorldChunks,
		(index / WorldChunks) % WorldChunks,
		index / (WorldChunks * WorldChunks),
	}
}

// VoxelIndex addresses a voxel inside a chunk payload in the same X-fastest order.
func VoxelIndex(x, y, z int) (int, error) {
	if !vmath.InRange(x, 0, ChunkSize) || !vmath.InRange(y, 0, ChunkSize) || !vmath.InRange(z, 0, ChunkSize) {
		return 0, fmt.Errorf("voxel (%d,%d,%d) outside [0,%d): %w", x, y, z, ChunkSize, core.ErrOutOfBounds)
	}
	return x + y*ChunkSize + z*ChunkSize*ChunkSize, nil
}

// Directory is the host image of the chunk directory: one pool slot per grid cell, 0 for
// air. Slot 0 is never handed out.
type Directory struct {
	slots    []uint32
	free     *containers.RingQueue[uint32]
	next     uint32
	assigned int
	// dirty marks host changes the device buffer has not received.
	dirty bool
}

func NewDirectory() *Directory {
	return &Directory{
		slots: make([]uint32, DirSize),
		free:  containers.NewRingQueue[uint32](MaxChunks),
		next:  1,
		dirty: true,
	}
}

// Slot returns the pool slot of chunk c, EmptySlot when unassigned.
func (d *Directory) Slot(c Coord) (uint32, error) {
	i, err := Index(c[0], c[1], c[2])
	if err != nil {
		return 0, err
	}
	return d.slots[i], nil
}

// Resolve returns the slot at a directory index, falling back to the empty chunk.
func (d *Directory) Resolve(index int) uint32 {
	if index < 0 || index >= DirSize {
		return EmptySlot
	}
	return d.slots[index]
}

// Activate assigns a pool slot to chunk c, reusing evicted slots (oldest first) before
// fresh ones.
// An already active chunk keeps its slot.
func (d *Directory) Activate(c Coord) (uint32, error) {
	i, err := Index(c[0], c[1], c[2])
	if err != nil {
		return 0, err
	}
	if s := d.slots[i]; s != EmptySlot {
		return s, nil
	}

	var slot uint32
	switch {
	case !d.free.IsEmpty():
		slot, _ = d.free.Dequeue()
	case d.next < MaxChunks:
		slot = d.next
		d.next++
	default:
		return 0, fmt.Errorf("activating chunk %s: pool of %d slots exhausted: %w", c, MaxChunks, core.ErrAllocation)
	}
	d.slots[i] = slot
	d.assigned++
	d.dirty = true
	return slot, nil
}

// Evict returns the slot of chunk c to the free list. The pool contents of that slot are
// stale until regenerated.
func (d *Directory) Evict(c Coord) error {
	i, err := Index(c[0], c[1], c[2])
	if err != nil {
		return err
	}
	s := d.slots[i]
	if s == EmptySlot {
		return nil
	}
	d.slots[i] = EmptySlot
	// at most MaxChunks-1 slots are ever handed out, the queue cannot fill
	_ = d.free.Enqueue(s)
	d.assigned--
	d.dirty = true
	return nil
}

// Assigned is the number of chunks holding a non-empty slot.
func (d *Directory) Assigned() int {
	return d.assigned
}

// Reset clears every entry and restarts slot numbering at 1.
func (d *Directory) Reset() {
	clear(d.slots)
	d.free.Clear()
	d.next = 1
	d.assigned = 0
	d.dirty = true
}

// Dirty reports whether the directory changed since it was last committed.
func (d *Directory) Dirty() bool {
	return d.dirty
}

func (d *Directory) markCommitted() {
	d.dirty = false
}

// Each calls fn for every assigned chunk in directory order.
func (d *Directory) Each(fn func(c Coord, slot uint32)) {
	for i, s := range d.slots {
		if s != EmptySlot {
			fn(CoordOf(i), s)
		}
	}
}
