package vulkan

import (
	"fmt"
	"unsafe"

	"github.com/google/uuid"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
)

// Placement selects where a buffer's memory lives.
type Placement int

const (
	// PlacementHostVisible memory is host-visible and coherent, and stays mapped for its lifetime.
	PlacementHostVisible Placement = iota
	// PlacementDeviceLocal memory is only reachable from the GPU.
	PlacementDeviceLocal
)

func (p Placement) String() string {
	switch p {
	case PlacementHostVisible:
		return "host-visible"
	case PlacementDeviceLocal:
		return "device-local"
	}
	return fmt.Sprintf("Placement(%d)", int(p))
}

func (p Placement) propertyFlags() vk.MemoryPropertyFlags {
	if p == PlacementHostVisible {
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}

// Allocation is one block of device memory.
type Allocation struct {
	ID        uuid.UUID
	Name      string
	Memory    vk.DeviceMemory
	Size      vk.DeviceSize
	TypeIndex uint32
	Placement Placement

	// mapped covers the whole allocation for host-visible placements, nil otherwise.
	mapped []byte
}

// DeviceAllocator hands out one allocation per buffer. Allocate and Free take the
// memory lock of the package lock pool for the call only.
type DeviceAllocator struct {
	device     vk.Device
	properties vk.PhysicalDeviceMemoryProperties
	callbacks  *vk.AllocationCallbacks

	live map[uuid.UUID]*Allocation
}

func NewDeviceAllocator(device vk.Device, properties vk.PhysicalDeviceMemoryProperties, callbacks *vk.AllocationCallbacks) *DeviceAllocator {
	return &DeviceAllocator{
		device:     device,
		properties: properties,
		callbacks:  callbacks,
		live:       make(map[uuid.UUID]*Allocation),
	}
}

// findMemoryType returns the first memory type allowed by filter that has every bit of flags.
func findMemoryType(properties vk.PhysicalDeviceMemoryProperties, filter uint32, flags vk.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < properties.MemoryTypeCount && i < vk.MaxMemoryTypes; i++ {
		if filter&(1<<i) == 0 {
			continue
		}
		if properties.MemoryTypes[i].PropertyFlags&flags == flags {
			return i, true
		}
	}
	return 0, false
}

func (a *DeviceAllocator) Allocate(requirements vk.MemoryRequirements, placement Placement, name string) (*Allocation, error) {
	typeIndex, ok := findMemoryType(a.properties, requirements.MemoryTypeBits, placement.propertyFlags())
	if !ok {
		return nil, fmt.Errorf("no %s memory type for %q (filter %#x): %w", placement, name, requirements.MemoryTypeBits, core.ErrAllocation)
	}

	alloc := &Allocation{
		ID:        uuid.New(),
		Name:      name,
		Size:      requirements.Size,
		TypeIndex: typeIndex,
		Placement: placement,
	}
	err := lockPool.SafeCall(MemoryManagement, func() error {
		info := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  requirements.Size,
			MemoryTypeIndex: typeIndex,
		}
		var mem vk.DeviceMemory
		if res := vk.AllocateMemory(a.device, &info, a.callbacks, &mem); res != vk.Success {
			return resultError("vkAllocateMemory", res, core.ErrAllocation)
		}
		alloc.Memory = mem

		if placement == PlacementHostVisible {
			var ptr unsafe.Pointer
			if res := vk.MapMemory(a.device, mem, 0, requirements.Size, 0, &ptr); res != vk.Success {
				vk.FreeMemory(a.device, mem, a.callbacks)
				return resultError("vkMapMemory", res, core.ErrAllocation)
			}
			alloc.mapped = unsafe.Slice((*byte)(ptr), int(requirements.Size))
		}
		a.live[alloc.ID] = alloc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("allocating %d bytes for %q: %w", requirements.Size, name, err)
	}

	core.LogDebug("allocated %d bytes of %s memory for %q (%s)", alloc.Size, placement, name, alloc.ID)
	return alloc, nil
}

func (a *DeviceAllocator) Free(alloc *Allocation) {
	if alloc == nil || alloc.Memory == vk.NullDeviceMemory {
		return
	}
	lockPool.SafeCall(MemoryManagement, func() error {
		if alloc.mapped != nil {
			vk.UnmapMemory(a.device, alloc.Memory)
			alloc.mapped = nil
		}
		vk.FreeMemory(a.device, alloc.Memory, a.callbacks)
		delete(a.live, alloc.ID)
		return nil
	})
	alloc.Memory = vk.NullDeviceMemory
}

// Live reports the number of allocations not yet freed.
func (a *DeviceAllocator) Live() int {
	n := 0
	lockPool.SafeCall(MemoryManagement, func() error {
		n = len(a.live)
		return nil
	})
	return n
}

// Destroy logs every allocation still alive. Leaked memory is released with the device.
func (a *DeviceAllocator) Destroy() {
	lockPool.SafeCall(MemoryManagement, func() error {
		for id, alloc := range a.live {
			core.LogWarn("leaked %d bytes of %s memory: %q (%s)", alloc.Size, alloc.Placement, alloc.Name, id)
		}
		a.live = make(map[uuid.UUID]*Allocation)
		return nil
	})
}
