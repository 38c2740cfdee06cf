package world

import (
	"encoding/binary"
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
	"github.com/spaghettifunk/voxelray/engine/renderer/vulkan"
)

// Generation kernel interface: directory at 0, pool at 1, ivec3 origin as push constants.
const (
	generatorDirectoryBinding uint32 = 0
	generatorPoolBinding      uint32 = 1
	GeneratorConstantsSize    uint32 = 12
)

type GeneratorState int

const (
	GeneratorIdle GeneratorState = iota
	GeneratorDispatched
)

// Generator fills pool slots on the GPU, one work group per chunk. It never assigns
// directory slots.
type Generator struct {
	context  *vulkan.VulkanContext
	store    *Store
	pipeline *vulkan.VulkanPipeline
	state    GeneratorState
}

func NewGenerator(context *vulkan.VulkanContext, store *Store, code []uint32) (*Generator, error) {
	pipeline, err := vulkan.NewComputePipeline(context, &vulkan.VulkanPipelineConfig{
		Name: "generate",
		Code: code,
		Bindings: []vulkan.DescriptorBinding{
			{Binding: generatorDirectoryBinding, Type: vk.DescriptorTypeStorageBuffer},
			{Binding: generatorPoolBinding, Type: vk.DescriptorTypeStorageBuffer},
		},
		PushConstantSize: GeneratorConstantsSize,
		SetCount:         1,
	})
	if err != nil {
		return nil, err
	}
	pipeline.WriteBuffer(context, 0, generatorDirectoryBinding, store.DirectoryBuffer)
	pipeline.WriteBuffer(context, 0, generatorPoolBinding, store.PoolBuffer)

	return &Generator{
		context:  context,
		store:    store,
		pipeline: pipeline,
	}, nil
}

func (g *Generator) State() GeneratorState {
	return g.state
}

// published rejects work while the device directory lags the host one. The kernel finds
// its slots on the device and skips chunks it sees as empty.
func (g *Generator) published() error {
	if g.store.Directory.Dirty() {
		return fmt.Errorf("directory has uncommitted changes: %w", core.ErrDispatch)
	}
	return nil
}

// validate rejects regions leaving the grid or touching an unassigned chunk.
func (g *Generator) validate(origin [3]int32, extent [3]uint32) error {
	if err := g.published(); err != nil {
		return err
	}
	for a := 0; a < 3; a++ {
		lo := int64(origin[a])
		hi := lo + int64(extent[a])
		if extent[a] == 0 || lo < 0 || hi > WorldChunks {
			return fmt.Errorf("region origin %v extent %v outside [0,%d)^3: %w", origin, extent, WorldChunks, core.ErrOutOfBounds)
		}
	}
	for z := int(origin[2]); z < int(origin[2])+int(extent[2]); z++ {
		for y := int(origin[1]); y < int(origin[1])+int(extent[1]); y++ {
			for x := int(origin[0]); x < int(origin[0])+int(extent[0]); x++ {
				slot, err := g.store.Directory.Slot(Coord{x, y, z})
				if err != nil {
					return err
				}
				if slot == EmptySlot {
					return fmt.Errorf("chunk (%d,%d,%d) has no pool slot: %w", x, y, z, core.ErrOutOfBounds)
				}
			}
		}
	}
	return nil
}

// Run generates every chunk in the region and blocks until the GPU is done.
func (g *Generator) Run(origin [3]int32, extent [3]uint32) error {
	if err := g.validate(origin, extent); err != nil {
		return err
	}
	if err := g.dispatch([]region{{origin: origin, extent: extent}}); err != nil {
		return fmt.Errorf("generating origin %v extent %v: %w", origin, extent, err)
	}
	core.LogDebug("Generated %d chunks at %v.", extent[0]*extent[1]*extent[2], origin)
	return nil
}

// Generate rewrites the given chunks, one work group each, in a single submission. It is
// the Regenerate of worlds built on the GPU.
func (g *Generator) Generate(chunks []Coord) error {
	if err := g.published(); err != nil {
		return err
	}
	regions := make([]region, 0, len(chunks))
	for _, c := range chunks {
		slot, err := g.store.Directory.Slot(c)
		if err != nil {
			return err
		}
		if slot == EmptySlot {
			return fmt.Errorf("chunk %s has no pool slot: %w", c, core.ErrOutOfBounds)
		}
		regions = append(regions, region{
			origin: [3]int32{int32(c[0]), int32(c[1]), int32(c[2])},
			extent: [3]uint32{1, 1, 1},
		})
	}
	if len(regions) == 0 {
		return nil
	}
	if err := g.dispatch(regions); err != nil {
		return fmt.Errorf("generating %d chunks: %w", len(regions), err)
	}
	core.LogDebug("Generated %d chunks.", len(regions))
	return nil
}

func (g *Generator) dispatch(regions []region) error {
	g.state = GeneratorDispatched
	defer func() { g.state = GeneratorIdle }()

	err := g.context.ImmediateSubmit(func(cb *vulkan.VulkanCommandBuffer) error {
		g.pipeline.Bind(cb)
		g.pipeline.BindSet(cb, 0)
		for _, r := range regions {
			if err := g.pipeline.PushConstants(cb, originConstants(r.origin)); err != nil {
				return err
			}
			vk.CmdDispatch(cb.Handle, r.extent[0], r.extent[1], r.extent[2])
		}
		return nil
	})
	if err != nil && !errors.Is(err, core.ErrDispatch) && !core.IsFatal(err) {
		err = fmt.Errorf("%w: %w", core.ErrDispatch, err)
	}
	return err
}

func originConstants(origin [3]int32) []byte {
	constants := make([]byte, 0, GeneratorConstantsSize)
	for _, v := range origin {
		constants = binary.LittleEndian.AppendUint32(constants, uint32(v))
	}
	return constants
}

// RunFill generates every chunk the policy assigned. A fully assigned bounding box goes
// out as one dispatch, otherwise each run of assigned chunks along X is dispatched alone.
func (g *Generator) RunFill(policy FillPolicy) error {
	for _, r := range fillRegions(g.store.Directory, policy) {
		if err := g.Run(r.origin, r.extent); err != nil {
			return err
		}
	}
	return nil
}

type region struct {
	origin [3]int32
	extent [3]uint32
}

func fillRegions(d *Directory, policy FillPolicy) []region {
	origin, extent := policy.Bounds()
	if extent[0] <= 0 || extent[1] <= 0 || extent[2] <= 0 {
		return nil
	}

	full := true
	var rows []region
	for z := origin[2]; z < origin[2]+extent[2]; z++ {
		for y := origin[1]; y < origin[1]+extent[1]; y++ {
			start := -1
			for x := origin[0]; x <= origin[0]+extent[0]; x++ {
				assigned := false
				if x < origin[0]+extent[0] {
					slot, err := d.Slot(Coord{x, y, z})
					assigned = err == nil && slot != EmptySlot
				}
				if !assigned {
					if x < origin[0]+extent[0] {
						full = false
					}
					if start >= 0 {
						rows = append(rows, region{
							origin: [3]int32{int32(start), int32(y), int32(z)},
							extent: [3]uint32{uint32(x - start), 1, 1},
						})
						start = -1
					}
					continue
				}
				if start < 0 {
					start = x
				}
			}
		}
	}
	if full {
		return []region{{
			origin: [3]int32{int32(origin[0]), int32(origin[1]), int32(origin[2])},
			extent: [3]uint32{uint32(extent[0]), uint32(extent[1]), uint32(extent[2])},
		}}
	}
	return rows
}

// Reload swaps the generation kernel and regenerates the current fill with it. ImmediateSubmit
// waits for each dispatch, so nothing is using the old pipeline.
func (g *Generator) Reload(code []uint32) error {
	if err := g.context.WaitIdle(); err != nil {
		return err
	}
	if err := g.pipeline.Reload(g.context, code); err != nil {
		return err
	}
	return g.RunFill(g.store.Fill())
}

func (g *Generator) Destroy() {
	if g.pipeline != nil {
		g.pipeline.Destroy(g.context)
		g.pipeline = nil
	}
}
