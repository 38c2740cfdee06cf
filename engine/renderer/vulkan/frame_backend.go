package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
)

// Render kernel interface.
const (
	RenderTargetBinding uint32 = 0
	// CameraConstantsSize holds the inverse view and inverse projection matrices.
	CameraConstantsSize uint32 = 128
)

// StorageBinding attaches a buffer to a storage buffer binding of the render kernel.
type StorageBinding struct {
	Binding uint32
	Buffer  *Buffer
}

type vulkanBackend struct {
	context        *VulkanContext
	swapchain      *VulkanSwapchain
	sync           *FrameSync
	commandBuffers []*VulkanCommandBuffer
	pipeline       *VulkanPipeline
	storage        []StorageBinding
}

// NewVulkanFrameEngine creates the swapchain, one sync slot and command buffer per image,
// and the render pipeline bound to the swapchain views and the given storage buffers.
func NewVulkanFrameEngine(context *VulkanContext, renderCode []uint32, storage []StorageBinding, width, height uint32) (*FrameEngine, error) {
	b := &vulkanBackend{
		context: context,
		storage: storage,
	}
	if err := b.init(renderCode, width, height); err != nil {
		b.Destroy()
		return nil, core.WrapStage(core.StageConstruction, err)
	}
	return NewFrameEngine(b, width, height), nil
}

func (b *vulkanBackend) init(renderCode []uint32, width, height uint32) error {
	swapchain, err := SwapchainCreate(b.context, width, height)
	if err != nil {
		return err
	}
	b.swapchain = swapchain

	if err := b.RebuildFrameResources(swapchain.ImageCount); err != nil {
		return err
	}

	bindings := []DescriptorBinding{{Binding: RenderTargetBinding, Type: vk.DescriptorTypeStorageImage}}
	for _, s := range b.storage {
		bindings = append(bindings, DescriptorBinding{Binding: s.Binding, Type: vk.DescriptorTypeStorageBuffer})
	}
	pipeline, err := NewComputePipeline(b.context, &VulkanPipelineConfig{
		Name:             "raytrace",
		Code:             renderCode,
		Bindings:         bindings,
		PushConstantSize: CameraConstantsSize,
		SetCount:         swapchain.ImageCount,
	})
	if err != nil {
		return err
	}
	b.pipeline = pipeline

	return b.BindTargets()
}

func (b *vulkanBackend) WaitForFence(slot uint32) error {
	return b.sync.InFlight[slot].FenceWait(b.context, noTimeout)
}

func (b *vulkanBackend) AcquireNextImage(slot uint32) (uint32, bool, error) {
	return b.swapchain.AcquireNextImage(b.context, noTimeout, b.sync.ImageAvailable[slot])
}

func (b *vulkanBackend) ResetFrame(slot uint32) error {
	return b.commandBuffers[slot].Reset()
}

func (b *vulkanBackend) RecordFrame(slot, imageIndex uint32, constants []byte) error {
	if imageIndex >= b.swapchain.ImageCount {
		return fmt.Errorf("image index %d of %d: %w", imageIndex, b.swapchain.ImageCount, core.ErrDispatch)
	}
	cb := b.commandBuffers[slot]
	if err := cb.Begin(true, false); err != nil {
		return err
	}
	image := b.swapchain.Images[imageIndex]

	toShaderWrite.record(cb.Handle, image)
	b.pipeline.Bind(cb)
	b.pipeline.BindSet(cb, int(imageIndex))
	if err := b.pipeline.PushConstants(cb, constants); err != nil {
		return err
	}
	x, y, z := dispatchGroups(b.swapchain.Extent)
	vk.CmdDispatch(cb.Handle, x, y, z)
	toPresent.record(cb.Handle, image)

	return cb.End()
}

func (b *vulkanBackend) Submit(slot, imageIndex uint32) error {
	// the fence stays signaled until a submission is certain to follow
	if err := b.sync.InFlight[slot].FenceReset(b.context); err != nil {
		return err
	}
	cb := b.commandBuffers[slot]
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{b.sync.ImageAvailable[slot]},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{b.sync.RenderFinished[imageIndex]},
	}
	err := lockPool.SafeQueueCall(b.context.Device.QueueFamilyIndex, func() error {
		res := vk.QueueSubmit(b.context.Device.Queue, 1, []vk.SubmitInfo{submitInfo}, b.sync.InFlight[slot].Handle)
		return resultError("vkQueueSubmit", res, core.ErrDispatch)
	})
	if err != nil {
		return err
	}
	cb.UpdateSubmitted()
	return nil
}

func (b *vulkanBackend) Present(imageIndex uint32) (bool, error) {
	return b.swapchain.Present(b.context, b.sync.RenderFinished[imageIndex], imageIndex)
}

func (b *vulkanBackend) WaitIdle() error {
	return b.context.WaitIdle()
}

func (b *vulkanBackend) RebuildSurface(width, height uint32) (uint32, error) {
	if err := b.swapchain.Recreate(b.context, width, height); err != nil {
		return 0, err
	}
	return b.swapchain.ImageCount, nil
}

func (b *vulkanBackend) RebuildFrameResources(count uint32) error {
	b.destroyFrameResources()

	sync, err := FrameSyncCreate(b.context, count, count)
	if err != nil {
		return err
	}
	b.sync = sync

	cbs, err := NewVulkanCommandBuffers(b.context, b.context.Device.CommandPool, true, count)
	if err != nil {
		return err
	}
	b.commandBuffers = cbs
	return nil
}

func (b *vulkanBackend) BindTargets() error {
	if uint32(len(b.pipeline.DescriptorSets)) != b.swapchain.ImageCount {
		if err := b.pipeline.ResizeSets(b.context, b.swapchain.ImageCount); err != nil {
			return err
		}
	}
	for i, view := range b.swapchain.Views {
		b.pipeline.WriteStorageImage(b.context, i, RenderTargetBinding, view)
		for _, s := range b.storage {
			b.pipeline.WriteBuffer(b.context, i, s.Binding, s.Buffer)
		}
	}
	return nil
}

func (b *vulkanBackend) ReloadPipeline(code []uint32) error {
	return b.pipeline.Reload(b.context, code)
}

func (b *vulkanBackend) SlotCount() uint32 {
	if b.sync == nil {
		return 0
	}
	return b.sync.SlotCount()
}

func (b *vulkanBackend) destroyFrameResources() {
	for _, cb := range b.commandBuffers {
		cb.Free(b.context, b.context.Device.CommandPool)
	}
	b.commandBuffers = nil
	if b.sync != nil {
		b.sync.Destroy(b.context)
		b.sync = nil
	}
}

// Destroy releases in reverse creation order. The device must be idle.
func (b *vulkanBackend) Destroy() {
	if b.pipeline != nil {
		b.pipeline.Destroy(b.context)
		b.pipeline = nil
	}
	b.destroyFrameResources()
	if b.swapchain != nil {
		b.swapchain.Destroy(b.context)
		b.swapchain = nil
	}
}
