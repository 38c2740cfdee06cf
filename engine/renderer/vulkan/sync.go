package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
)

// FrameSync holds the per-slot image-available semaphores and in-flight fences, and the
// per-image render-finished semaphores. Presentation order follows image indices, not
// slots, so render-finished must be indexed by image.
type FrameSync struct {
	ImageAvailable []vk.Semaphore
	RenderFinished []vk.Semaphore
	InFlight       []*VulkanFence
}

// FrameSyncCreate creates slotCount slots and imageCount render-finished semaphores.
// Fences start signaled so the first wait on each slot returns at once.
func FrameSyncCreate(context *VulkanContext, slotCount, imageCount uint32) (*FrameSync, error) {
	fs := &FrameSync{
		ImageAvailable: make([]vk.Semaphore, 0, slotCount),
		RenderFinished: make([]vk.Semaphore, 0, imageCount),
		InFlight:       make([]*VulkanFence, 0, slotCount),
	}
	err := lockPool.SafeCall(SynchronizationManagement, func() error {
		for i := uint32(0); i < slotCount; i++ {
			sem, err := newSemaphore(context)
			if err != nil {
				return err
			}
			fs.ImageAvailable = append(fs.ImageAvailable, sem)

			fence, err := NewFence(context, true)
			if err != nil {
				return err
			}
			fs.InFlight = append(fs.InFlight, fence)
		}
		for i := uint32(0); i < imageCount; i++ {
			sem, err := newSemaphore(context)
			if err != nil {
				return err
			}
			fs.RenderFinished = append(fs.RenderFinished, sem)
		}
		return nil
	})
	if err != nil {
		fs.Destroy(context)
		return nil, err
	}
	core.LogDebug("Frame sync created: %d slots, %d images.", slotCount, imageCount)
	return fs, nil
}

func newSemaphore(context *VulkanContext) (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sem vk.Semaphore
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &info, context.Allocator, &sem); res != vk.Success {
		return vk.NullSemaphore, resultError("vkCreateSemaphore", res, core.ErrAllocation)
	}
	return sem, nil
}

func (fs *FrameSync) SlotCount() uint32 {
	return uint32(len(fs.InFlight))
}

// Destroy must only run after the device is idle.
func (fs *FrameSync) Destroy(context *VulkanContext) {
	lockPool.SafeCall(SynchronizationManagement, func() error {
		for _, sem := range fs.ImageAvailable {
			vk.DestroySemaphore(context.Device.LogicalDevice, sem, context.Allocator)
		}
		for _, sem := range fs.RenderFinished {
			vk.DestroySemaphore(context.Device.LogicalDevice, sem, context.Allocator)
		}
		for _, fence := range fs.InFlight {
			fence.FenceDestroy(context)
		}
		return nil
	})
	fs.ImageAvailable = nil
	fs.RenderFinished = nil
	fs.InFlight = nil
}
