package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
	vmath "github.com/spaghettifunk/voxelray/engine/math"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// swapchainPlan is the negotiated shape of a swapchain before any handle is created.
type swapchainPlan struct {
	Format      vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	ImageCount  uint32
	Usage       vk.ImageUsageFlags
	Transform   vk.SurfaceTransformFlagBits
}

// negotiateSwapchain picks format, present mode, extent, image count and usage from what
// the surface reports. It never fails on format, only when nothing is reported at all.
func negotiateSwapchain(support *VulkanSwapchainSupportInfo, width, height uint32) (swapchainPlan, error) {
	var plan swapchainPlan
	if len(support.Formats) == 0 {
		return plan, fmt.Errorf("surface reports no formats: %w", core.ErrSwapchain)
	}
	if len(support.PresentModes) == 0 {
		return plan, fmt.Errorf("surface reports no present modes: %w", core.ErrSwapchain)
	}

	plan.Format = support.Formats[0]
	for _, format := range support.Formats {
		if format.Format == vk.FormatR8g8b8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			plan.Format = format
			break
		}
	}

	plan.PresentMode = vk.PresentModeFifo
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox {
			plan.PresentMode = mode
			break
		}
	}

	caps := support.Capabilities
	if caps.CurrentExtent.Width != math.MaxUint32 {
		plan.Extent = caps.CurrentExtent
	} else {
		plan.Extent = vk.Extent2D{
			Width:  vmath.Clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
			Height: vmath.Clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
		}
	}

	plan.ImageCount = caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && plan.ImageCount > caps.MaxImageCount {
		plan.ImageCount = caps.MaxImageCount
	}

	plan.Usage = vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	if caps.SupportedUsageFlags&vk.ImageUsageFlags(vk.ImageUsageStorageBit) != 0 {
		plan.Usage |= vk.ImageUsageFlags(vk.ImageUsageStorageBit)
	}

	plan.Transform = caps.CurrentTransform
	return plan, nil
}
