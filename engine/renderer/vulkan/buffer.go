package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
)

// Buffer is a GPU buffer bound at offset 0 of its own allocation.
type Buffer struct {
	Handle vk.Buffer
	// Size is the size requested by the caller. The allocation may be larger.
	Size      vk.DeviceSize
	Usage     vk.BufferUsageFlags
	Placement Placement
	Name      string

	allocation *Allocation
	mapped     []byte
}

// BufferCreate creates the buffer, allocates memory sized to the device requirements and
// binds it. Partially created objects are released on failure.
func BufferCreate(context *VulkanContext, size vk.DeviceSize, usage vk.BufferUsageFlags, placement Placement, name string) (*Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer %q has zero size: %w", name, core.ErrAllocation)
	}
	buffer := &Buffer{
		Size:      size,
		Usage:     usage,
		Placement: placement,
		Name:      name,
	}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		err := resultError("vkCreateBuffer", res, core.ErrAllocation)
		core.LogError("buffer %q: %s", name, err)
		return nil, err
	}
	buffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	alloc, err := context.Memory.Allocate(requirements, placement, name)
	if err != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		core.LogError("buffer %q: %s", name, err)
		return nil, err
	}
	buffer.allocation = alloc

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, alloc.Memory, 0); res != vk.Success {
		buffer.Destroy(context)
		err := resultError("vkBindBufferMemory", res, core.ErrAllocation)
		core.LogError("buffer %q: %s", name, err)
		return nil, err
	}
	if alloc.mapped != nil {
		buffer.mapped = alloc.mapped[:size]
	}
	return buffer, nil
}

// Write copies data into the mapped memory at offset. Host-visible memory is coherent so
// no flush is needed.
func (b *Buffer) Write(offset vk.DeviceSize, data []byte) error {
	if b.mapped == nil {
		return fmt.Errorf("write to %s buffer %q: %w", b.Placement, b.Name, core.ErrMap)
	}
	if offset > b.Size || vk.DeviceSize(len(data)) > b.Size-offset {
		return fmt.Errorf("write of %d bytes at %d into %q of size %d: %w", len(data), offset, b.Name, b.Size, core.ErrOutOfBounds)
	}
	copy(b.mapped[offset:], data)
	return nil
}

// Read returns a copy of length bytes of the mapped memory at offset.
func (b *Buffer) Read(offset, length vk.DeviceSize) ([]byte, error) {
	if b.mapped == nil {
		return nil, fmt.Errorf("read from %s buffer %q: %w", b.Placement, b.Name, core.ErrMap)
	}
	if offset > b.Size || length > b.Size-offset {
		return nil, fmt.Errorf("read of %d bytes at %d from %q of size %d: %w", length, offset, b.Name, b.Size, core.ErrOutOfBounds)
	}
	out := make([]byte, length)
	copy(out, b.mapped[offset:offset+length])
	return out, nil
}

// Upload copies data into a device-local buffer through a temporary staging buffer and a
// one-shot submission.
func (b *Buffer) Upload(context *VulkanContext, offset vk.DeviceSize, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if offset > b.Size || vk.DeviceSize(len(data)) > b.Size-offset {
		return fmt.Errorf("upload of %d bytes at %d into %q of size %d: %w", len(data), offset, b.Name, b.Size, core.ErrOutOfBounds)
	}
	staging, err := BufferCreate(context, vk.DeviceSize(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), PlacementHostVisible, b.Name+" staging")
	if err != nil {
		return err
	}
	defer staging.Destroy(context)

	if err := staging.Write(0, data); err != nil {
		return err
	}
	return context.ImmediateSubmit(func(cb *VulkanCommandBuffer) error {
		vk.CmdCopyBuffer(cb.Handle, staging.Handle, b.Handle, 1, []vk.BufferCopy{{
			SrcOffset: 0,
			DstOffset: offset,
			Size:      vk.DeviceSize(len(data)),
		}})
		return nil
	})
}

// BufferCreateDeviceLocalWithData creates a device-local buffer holding data. The usage
// gains the transfer-destination bit.
func BufferCreateDeviceLocalWithData(context *VulkanContext, usage vk.BufferUsageFlags, data []byte, name string) (*Buffer, error) {
	usage |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	buffer, err := BufferCreate(context, vk.DeviceSize(len(data)), usage, PlacementDeviceLocal, name)
	if err != nil {
		return nil, err
	}
	if err := buffer.Upload(context, 0, data); err != nil {
		buffer.Destroy(context)
		return nil, err
	}
	return buffer, nil
}

// Fill sets every 32-bit word of the buffer to value on the GPU. The buffer needs the
// transfer-destination usage.
func (b *Buffer) Fill(context *VulkanContext, value uint32) error {
	return context.ImmediateSubmit(func(cb *VulkanCommandBuffer) error {
		vk.CmdFillBuffer(cb.Handle, b.Handle, 0, vk.DeviceSize(vk.WholeSize), value)
		return nil
	})
}

// Destroy frees the memory first and then the buffer handle. Calling it twice is a bug.
func (b *Buffer) Destroy(context *VulkanContext) {
	if b.allocation != nil {
		context.Memory.Free(b.allocation)
		b.allocation = nil
		b.mapped = nil
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
}

// Descriptor describes the whole buffer for a storage buffer binding.
func (b *Buffer) Descriptor() vk.DescriptorBufferInfo {
	return vk.DescriptorBufferInfo{
		Buffer: b.Handle,
		Offset: 0,
		Range:  vk.DeviceSize(vk.WholeSize),
	}
}
