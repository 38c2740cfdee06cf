package vulkan

import (
	"errors"
	"math"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
)

func testSupport() *VulkanSwapchainSupportInfo {
	return &VulkanSwapchainSupportInfo{
		Capabilities: vk.SurfaceCapabilities{
			MinImageCount:       2,
			MaxImageCount:       8,
			CurrentExtent:       vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
			MinImageExtent:      vk.Extent2D{Width: 64, Height: 64},
			MaxImageExtent:      vk.Extent2D{Width: 4096, Height: 2048},
			SupportedUsageFlags: vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageStorageBit | vk.ImageUsageColorAttachmentBit),
			CurrentTransform:    vk.SurfaceTransformIdentityBit,
		},
		Formats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
	}
}

func TestNegotiateSwapchainPreferences(t *testing.T) {
	plan, err := negotiateSwapchain(testSupport(), 800, 600)
	if err != nil {
		t.Fatalf("negotiateSwapchain: %v", err)
	}
	if plan.Format.Format != vk.FormatR8g8b8a8Unorm {
		t.Errorf("format = %d, want R8G8B8A8_UNORM", plan.Format.Format)
	}
	if plan.PresentMode != vk.PresentModeMailbox {
		t.Errorf("present mode = %d, want mailbox", plan.PresentMode)
	}
	if plan.Extent.Width != 800 || plan.Extent.Height != 600 {
		t.Errorf("extent = %dx%d, want 800x600", plan.Extent.Width, plan.Extent.Height)
	}
	if plan.ImageCount != 3 {
		t.Errorf("image count = %d, want 3", plan.ImageCount)
	}
	if plan.Usage&vk.ImageUsageFlags(vk.ImageUsageStorageBit) == 0 || plan.Usage&vk.ImageUsageFlags(vk.ImageUsageTransferDstBit) == 0 {
		t.Errorf("usage = %#x, want storage and transfer dst", plan.Usage)
	}
}

func TestNegotiateSwapchainFallbacks(t *testing.T) {
	support := testSupport()
	support.Formats = []vk.SurfaceFormat{{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}}
	support.PresentModes = []vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo}
	support.Capabilities.SupportedUsageFlags = vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)

	plan, err := negotiateSwapchain(support, 800, 600)
	if err != nil {
		t.Fatalf("negotiateSwapchain: %v", err)
	}
	if plan.Format.Format != vk.FormatB8g8r8a8Srgb {
		t.Errorf("format = %d, want the first reported format", plan.Format.Format)
	}
	if plan.PresentMode != vk.PresentModeFifo {
		t.Errorf("present mode = %d, want fifo", plan.PresentMode)
	}
	if plan.Usage&vk.ImageUsageFlags(vk.ImageUsageStorageBit) != 0 {
		t.Error("storage usage requested although unsupported")
	}
}

func TestNegotiateSwapchainExtent(t *testing.T) {
	tests := []struct {
		name          string
		current       vk.Extent2D
		width, height uint32
		want          vk.Extent2D
	}{
		{"fixed by the surface", vk.Extent2D{Width: 1280, Height: 720}, 800, 600, vk.Extent2D{Width: 1280, Height: 720}},
		{"clamped up", vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}, 1, 1, vk.Extent2D{Width: 64, Height: 64}},
		{"clamped down", vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}, 10000, 10000, vk.Extent2D{Width: 4096, Height: 2048}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			support := testSupport()
			support.Capabilities.CurrentExtent = tt.current
			plan, err := negotiateSwapchain(support, tt.width, tt.height)
			if err != nil {
				t.Fatal(err)
			}
			if plan.Extent.Width != tt.want.Width || plan.Extent.Height != tt.want.Height {
				t.Errorf("extent = %+v, want %+v", plan.Extent, tt.want)
			}
		})
	}
}

func TestNegotiateSwapchainImageCount(t *testing.T) {
	tests := []struct {
		name     string
		min, max uint32
		want     uint32
	}{
		{"min plus one", 2, 8, 3},
		{"capped at max", 3, 3, 3},
		{"no upper limit", 4, 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			support := testSupport()
			support.Capabilities.MinImageCount = tt.min
			support.Capabilities.MaxImageCount = tt.max
			plan, err := negotiateSwapchain(support, 800, 600)
			if err != nil {
				t.Fatal(err)
			}
			if plan.ImageCount != tt.want {
				t.Errorf("image count = %d, want %d", plan.ImageCount, tt.want)
			}
		})
	}
}

func TestNegotiateSwapchainNothingReported(t *testing.T) {
	support := testSupport()
	support.Formats = nil
	if _, err := negotiateSwapchain(support, 800, 600); !errors.Is(err, core.ErrSwapchain) {
		t.Errorf("no formats: err = %v, want ErrSwapchain", err)
	}
	support = testSupport()
	support.PresentModes = nil
	if _, err := negotiateSwapchain(support, 800, 600); !errors.Is(err, core.ErrSwapchain) {
		t.Errorf("no present modes: err = %v, want ErrSwapchain", err)
	}
}

func TestNegotiateSwapchainIsIdempotent(t *testing.T) {
	support := testSupport()
	first, err := negotiateSwapchain(support, 1024, 768)
	if err != nil {
		t.Fatal(err)
	}
	second, err := negotiateSwapchain(support, 1024, 768)
	if err != nil {
		t.Fatal(err)
	}
	if first.ImageCount != second.ImageCount {
		t.Errorf("image count %d then %d", first.ImageCount, second.ImageCount)
	}
	if first.Extent.Width != second.Extent.Width || first.Extent.Height != second.Extent.Height {
		t.Errorf("extent %dx%d then %dx%d", first.Extent.Width, first.Extent.Height, second.Extent.Width, second.Extent.Height)
	}
	if first.Format.Format != second.Format.Format || first.PresentMode != second.PresentMode {
		t.Error("format or present mode changed between negotiations")
	}
}
