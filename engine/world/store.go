package world

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
	"github.com/spaghettifunk/voxelray/engine/renderer/vulkan"
)

// Render kernel bindings of the two world buffers.
const (
	DirectoryBinding uint32 = 1
	PoolBinding      uint32 = 2
)

// uploadBatch is the number of chunks staged per one-shot copy.
const uploadBatch = 64

// VoxelFunc gives the content of voxel (x,y,z) of chunk c.
type VoxelFunc func(c Coord, x, y, z int) uint32

type StoreOptions struct {
	Fill FillPolicy
	// Content fills the assigned chunks through a staged upload. When nil the pool is left
	// zeroed for the generator.
	Content VoxelFunc
}

// Store owns the directory buffer (host visible) and the chunk pool (device local).
type Store struct {
	context *vulkan.VulkanContext

	Directory       *Directory
	DirectoryBuffer *vulkan.Buffer
	PoolBuffer      *vulkan.Buffer

	fill    FillPolicy
	content VoxelFunc
}

// Regenerate rewrites the pool slots of chunks that were just assigned.
type Regenerate func(chunks []Coord) error

// directoryWriter is the host side of the directory buffer.
type directoryWriter interface {
	Write(offset vk.DeviceSize, data []byte) error
}

func NewStore(context *vulkan.VulkanContext, options StoreOptions) (*Store, error) {
	if options.Fill == nil {
		options.Fill = EmptyFill{}
	}
	s := &Store{
		context:   context,
		Directory: NewDirectory(),
		fill:      options.Fill,
		content:   options.Content,
	}
	if err := s.init(options); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(options StoreOptions) error {
	storage := vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	transferDst := vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)

	dir, err := vulkan.BufferCreate(s.context, DirectoryBytes, storage, vulkan.PlacementHostVisible, "Chunk Directory")
	if err != nil {
		return err
	}
	s.DirectoryBuffer = dir

	pool, err := vulkan.BufferCreate(s.context, PoolBytes, storage|transferDst, vulkan.PlacementDeviceLocal, "Chunk Pool")
	if err != nil {
		return err
	}
	s.PoolBuffer = pool

	assigned, _, err := ApplyFill(s.Directory, options.Fill)
	if err != nil {
		return err
	}
	if err := s.Commit(); err != nil {
		return err
	}

	// slot 0 is the canonical empty chunk
	if err := s.PoolBuffer.Fill(s.context, 0); err != nil {
		return err
	}
	if options.Content != nil {
		var chunks []Coord
		s.Directory.Each(func(c Coord, _ uint32) {
			chunks = append(chunks, c)
		})
		if err := s.upload(options.Content, chunks); err != nil {
			return err
		}
	}

	core.LogInfo("World store ready: %d chunks assigned.", assigned)
	return nil
}

// upload stages the content of the given assigned chunks into their pool slots.
func (s *Store) upload(content VoxelFunc, chunks []Coord) error {
	type pending struct {
		slot uint32
		data []uint32
	}
	var batch []pending
	// consecutive slots go up in one copy
	flush := func() error {
		for start := 0; start < len(batch); {
			end := start + 1
			for end < len(batch) && batch[end].slot == batch[end-1].slot+1 {
				end++
			}
			run := make([][]uint32, 0, end-start)
			for _, p := range batch[start:end] {
				run = append(run, p.data)
			}
			payload, err := EncodeChunks(run...)
			if err != nil {
				return err
			}
			if err := s.PoolBuffer.Upload(s.context, vk.DeviceSize(SlotOffset(batch[start].slot)), payload); err != nil {
				return fmt.Errorf("uploading slots %d..%d: %w", batch[start].slot, batch[end-1].slot, err)
			}
			start = end
		}
		batch = batch[:0]
		return nil
	}

	for _, c := range chunks {
		slot, err := s.Directory.Slot(c)
		if err != nil {
			return err
		}
		if slot == EmptySlot {
			return fmt.Errorf("uploading chunk %s without a pool slot: %w", c, core.ErrOutOfBounds)
		}
		batch = append(batch, pending{slot: slot, data: BuildChunk(c, content)})
		if len(batch) == uploadBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// Restage uploads the configured content of the given chunks again. Without content they
// are cleared to air. It is the Regenerate of worlds built on the host.
func (s *Store) Restage(chunks []Coord) error {
	content := s.content
	if content == nil {
		content = func(Coord, int, int, int) uint32 { return 0 }
	}
	return s.upload(content, chunks)
}

// BuildChunk evaluates content over one chunk in X-fastest order.
func BuildChunk(c Coord, content VoxelFunc) []uint32 {
	out := make([]uint32, ChunkVolume)
	i := 0
	for z := 0; z < ChunkSize; z++ {
		for y := 0; y < ChunkSize; y++ {
			for x := 0; x < ChunkSize; x++ {
				out[i] = content(c, x, y, z)
				i++
			}
		}
	}
	return out
}

// SphereChunk fills each chunk with a ball of radius 14 voxels around its center.
func SphereChunk(_ Coord, x, y, z int) uint32 {
	const center, radius = 16, 14
	dx, dy, dz := x-center, y-center, z-center
	if dx*dx+dy*dy+dz*dz < radius*radius {
		return 1
	}
	return 0
}

// Edit evicts then activates chunks with the device idle, and returns once regenerate has
// rewritten every newly assigned slot. No frame is drawn before Edit returns, so reused
// slots are never sampled with the contents of the chunk they last held.
func (s *Store) Edit(evict, activate []Coord, regenerate Regenerate) error {
	if err := s.context.WaitIdle(); err != nil {
		return err
	}
	return editDirectory(s.Directory, s.DirectoryBuffer, evict, activate, regenerate)
}

// Refill moves the world to another fill policy, touching only the chunks that differ.
func (s *Store) Refill(policy FillPolicy, regenerate Regenerate) error {
	evict, activate := fillDiff(s.Directory, policy)
	if err := s.Edit(evict, activate, regenerate); err != nil {
		return err
	}
	s.fill = policy
	core.LogInfo("World refilled: %d evicted, %d activated, %d assigned.", len(evict), len(activate), s.Directory.Assigned())
	return nil
}

// fillDiff lists the assigned chunks policy drops and the empty ones it adds.
func fillDiff(d *Directory, policy FillPolicy) (evict, activate []Coord) {
	for i := 0; i < DirSize; i++ {
		c := CoordOf(i)
		in := policy.Contains(c)
		switch assigned := d.Resolve(i) != EmptySlot; {
		case assigned && !in:
			evict = append(evict, c)
		case !assigned && in:
			activate = append(activate, c)
		}
	}
	return evict, activate
}

// editDirectory publishes the directory before regenerating because the generation kernel
// finds its slots through the device copy. If regeneration fails the new chunks are evicted
// and the directory published again. Activations past the pool capacity stay empty.
func editDirectory(d *Directory, w directoryWriter, evict, activate []Coord, regenerate Regenerate) error {
	for _, list := range [][]Coord{evict, activate} {
		for _, c := range list {
			if _, err := Index(c[0], c[1], c[2]); err != nil {
				return err
			}
		}
	}

	for _, c := range evict {
		if err := d.Evict(c); err != nil {
			return err
		}
	}
	var fresh []Coord
	clipped := 0
	for _, c := range activate {
		if slot, _ := d.Slot(c); slot != EmptySlot {
			continue
		}
		if _, err := d.Activate(c); err != nil {
			if errors.Is(err, core.ErrAllocation) {
				clipped++
				continue
			}
			return err
		}
		fresh = append(fresh, c)
	}
	if clipped > 0 {
		core.LogWarn("Edit requested %d more chunks than the pool holds, left empty.", clipped)
	}

	if !d.Dirty() {
		return nil
	}
	if err := commitDirectory(w, d); err != nil {
		return err
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := regenerate(fresh); err != nil {
		for _, c := range fresh {
			_ = d.Evict(c)
		}
		if cerr := commitDirectory(w, d); cerr != nil {
			return errors.Join(err, cerr)
		}
		return err
	}
	return nil
}

// Commit pushes the whole host directory to the device buffer. Nothing may be reading it.
func (s *Store) Commit() error {
	return commitDirectory(s.DirectoryBuffer, s.Directory)
}

func commitDirectory(w directoryWriter, d *Directory) error {
	if err := w.Write(0, EncodeDirectory(d)); err != nil {
		return err
	}
	d.markCommitted()
	return nil
}

func (s *Store) Fill() FillPolicy {
	return s.fill
}

// StorageBindings attaches the directory and the pool to the render kernel.
func (s *Store) StorageBindings() []vulkan.StorageBinding {
	return []vulkan.StorageBinding{
		{Binding: DirectoryBinding, Buffer: s.DirectoryBuffer},
		{Binding: PoolBinding, Buffer: s.PoolBuffer},
	}
}

// Destroy releases the pool then the directory. Nothing may still be reading them.
func (s *Store) Destroy() {
	if s.PoolBuffer != nil {
		s.PoolBuffer.Destroy(s.context)
		s.PoolBuffer = nil
	}
	if s.DirectoryBuffer != nil {
		s.DirectoryBuffer.Destroy(s.context)
		s.DirectoryBuffer = nil
	}
}
