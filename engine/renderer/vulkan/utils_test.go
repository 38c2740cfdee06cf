package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
)

func TestResultError(t *testing.T) {
	tests := []struct {
		name   string
		result vk.Result
		kind   error
		want   error
	}{
		{"device lost overrides kind", vk.ErrorDeviceLost, core.ErrDispatch, core.ErrDeviceLost},
		{"out of date overrides kind", vk.ErrorOutOfDate, core.ErrSwapchain, core.ErrSurfaceOutOfDate},
		{"oom is an allocation error", vk.ErrorOutOfDeviceMemory, core.ErrDispatch, core.ErrAllocation},
		{"oom while building the swapchain", vk.ErrorOutOfHostMemory, core.ErrSwapchain, core.ErrAllocation},
		{"other codes keep the kind", vk.ErrorInitializationFailed, core.ErrDispatch, core.ErrDispatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resultError("vkOp", tt.result, tt.kind)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want kind %v", err, tt.want)
			}
		})
	}
	if resultError("vkOp", vk.Success, core.ErrDispatch) != nil {
		t.Error("success must not produce an error")
	}
}

func TestVulkanResultString(t *testing.T) {
	if got := VulkanResultString(vk.ErrorDeviceLost, false); got != "VK_ERROR_DEVICE_LOST" {
		t.Errorf("got %q", got)
	}
	if got := VulkanResultString(vk.Result(-12345), false); got != "VkResult(-12345)" {
		t.Errorf("got %q", got)
	}
	if !VulkanResultIsSuccess(vk.Suboptimal) || VulkanResultIsSuccess(vk.ErrorOutOfDate) {
		t.Error("success classification is wrong")
	}
}

func TestCString(t *testing.T) {
	var name [16]byte
	copy(name[:], "VK_LAYER_x")
	if got := CString(name[:]); got != "VK_LAYER_x" {
		t.Errorf("got %q", got)
	}
	if got := CString([]byte("full")); got != "full" {
		t.Errorf("got %q", got)
	}
}

func TestBytesOf(t *testing.T) {
	b := bytesOf([]int32{1, -1, 7})
	if len(b) != 12 {
		t.Fatalf("len = %d, want 12", len(b))
	}
	if bytesOf[uint32](nil) != nil {
		t.Error("empty slice should give nil")
	}
}
