package vulkan

import (
	"slices"
	"testing"

	vk "github.com/goki/vulkan"
)

func TestSelectQueueFamily(t *testing.T) {
	graphics := vk.QueueFlags(vk.QueueGraphicsBit)
	compute := vk.QueueFlags(vk.QueueComputeBit)
	req := &VulkanPhysicalDeviceRequirements{Compute: true, Present: true}

	tests := []struct {
		name     string
		families []queueFamilyCaps
		want     uint32
		ok       bool
	}{
		{"first family does both", []queueFamilyCaps{{graphics | compute, 16, true}}, 0, true},
		{"present only elsewhere", []queueFamilyCaps{{compute, 2, false}, {graphics, 1, true}}, 0, false},
		{"skips empty family", []queueFamilyCaps{{compute, 0, true}, {compute, 1, true}}, 1, true},
		{"compute family after graphics", []queueFamilyCaps{{graphics, 1, true}, {compute, 4, true}}, 1, true},
		{"no families", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := selectQueueFamily(tt.families, req)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("selectQueueFamily = %d, %t, want %d, %t", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMissingExtensions(t *testing.T) {
	available := []string{"VK_KHR_swapchain", "VK_KHR_portability_subset"}
	if m := missingExtensions([]string{"VK_KHR_swapchain"}, available); len(m) != 0 {
		t.Errorf("missing = %v", m)
	}
	m := missingExtensions([]string{"VK_KHR_swapchain", "VK_EXT_mesh_shader"}, available)
	if !slices.Equal(m, []string{"VK_EXT_mesh_shader"}) {
		t.Errorf("missing = %v", m)
	}
}
