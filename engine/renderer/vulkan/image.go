package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
)

// ImageViewCreate makes a 2D color view over an image owned elsewhere, such as a
// swapchain image.
func ImageViewCreate(context *VulkanContext, image vk.Image, format vk.Format) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorSubresourceRange(),
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &view); res != vk.Success {
		return vk.NullImageView, resultError("vkCreateImageView", res, core.ErrSwapchain)
	}
	return view, nil
}

func ImageViewDestroy(context *VulkanContext, view vk.ImageView) {
	if view != vk.NullImageView {
		vk.DestroyImageView(context.Device.LogicalDevice, view, context.Allocator)
	}
}
