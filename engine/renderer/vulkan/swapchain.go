package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
)

// VulkanSwapchain owns the presentable images and one view per image. The frame compute
// pass writes straight into these images.
type VulkanSwapchain struct {
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	Usage       vk.ImageUsageFlags
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView
}

func SwapchainCreate(context *VulkanContext, width uint32, height uint32) (*VulkanSwapchain, error) {
	vs := &VulkanSwapchain{}
	if err := vs.create(context, width, height); err != nil {
		vs.destroy(context)
		return nil, err
	}
	return vs, nil
}

// Recreate tears down the views and the old swapchain before building the replacement, so
// the surface never has two live swapchains. The device must be idle.
func (vs *VulkanSwapchain) Recreate(context *VulkanContext, width uint32, height uint32) error {
	vs.destroy(context)
	if err := vs.create(context, width, height); err != nil {
		vs.destroy(context)
		return err
	}
	return nil
}

func (vs *VulkanSwapchain) Destroy(context *VulkanContext) {
	vs.destroy(context)
}

// AcquireNextImage returns the index of the next presentable image. A suboptimal
// swapchain still yields a usable image.
func (vs *VulkanSwapchain) AcquireNextImage(context *VulkanContext, timeoutNs uint64, imageAvailable vk.Semaphore) (uint32, bool, error) {
	var index uint32
	res := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNs, imageAvailable, vk.NullFence, &index)
	switch res {
	case vk.Success:
		return index, false, nil
	case vk.Suboptimal:
		return index, true, nil
	}
	return 0, false, resultError("vkAcquireNextImageKHR", res, core.ErrSwapchain)
}

// Present queues the image for presentation once renderFinished is signaled.
func (vs *VulkanSwapchain) Present(context *VulkanContext, renderFinished vk.Semaphore, imageIndex uint32) (bool, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	var res vk.Result
	lockPool.SafeQueueCall(context.Device.QueueFamilyIndex, func() error {
		res = vk.QueuePresent(context.Device.Queue, &presentInfo)
		return nil
	})
	switch res {
	case vk.Success:
		return false, nil
	case vk.Suboptimal:
		return true, nil
	}
	return false, resultError("vkQueuePresentKHR", res, core.ErrSwapchain)
}

func (vs *VulkanSwapchain) create(context *VulkanContext, width, height uint32) error {
	support := &context.Device.SwapchainSupport
	if err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, support); err != nil {
		return err
	}
	plan, err := negotiateSwapchain(support, width, height)
	if err != nil {
		return err
	}
	if plan.Usage&vk.ImageUsageFlags(vk.ImageUsageStorageBit) == 0 {
		core.LogWarn("Surface format %d does not support storage writes.", plan.Format.Format)
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    plan.ImageCount,
		ImageFormat:      plan.Format.Format,
		ImageColorSpace:  plan.Format.ColorSpace,
		ImageExtent:      plan.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       plan.Usage,
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     plan.Transform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      plan.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	var handle vk.Swapchain
	err = lockPool.SafeCall(SwapchainManagement, func() error {
		res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &handle)
		return resultError("vkCreateSwapchainKHR", res, core.ErrSwapchain)
	})
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	vs.Handle = handle
	vs.ImageFormat = plan.Format
	vs.PresentMode = plan.PresentMode
	vs.Extent = plan.Extent
	vs.Usage = plan.Usage

	var imageCount uint32
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, vs.Handle, &imageCount, nil); res != vk.Success {
		return resultError("vkGetSwapchainImagesKHR", res, core.ErrSwapchain)
	}
	vs.Images = make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, vs.Handle, &imageCount, vs.Images); res != vk.Success {
		return resultError("vkGetSwapchainImagesKHR", res, core.ErrSwapchain)
	}
	vs.ImageCount = imageCount

	vs.Views = make([]vk.ImageView, 0, imageCount)
	for i := range vs.Images {
		view, err := ImageViewCreate(context, vs.Images[i], plan.Format.Format)
		if err != nil {
			return fmt.Errorf("image view %d: %w", i, err)
		}
		vs.Views = append(vs.Views, view)
	}

	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d.", vs.Extent.Width, vs.Extent.Height, vs.ImageCount, vs.PresentMode)
	return nil
}

// destroy releases the views first and the swapchain second. Images belong to the
// swapchain and go with it.
func (vs *VulkanSwapchain) destroy(context *VulkanContext) {
	for _, view := range vs.Views {
		ImageViewDestroy(context, view)
	}
	vs.Views = nil
	vs.Images = nil
	vs.ImageCount = 0

	if vs.Handle != vk.NullSwapchain {
		lockPool.SafeCall(SwapchainManagement, func() error {
			vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
			return nil
		})
		vs.Handle = vk.NullSwapchain
	}
}
