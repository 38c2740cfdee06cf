package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
)

func TestDescriptorPoolSizes(t *testing.T) {
	bindings := []DescriptorBinding{
		{Binding: 0, Type: vk.DescriptorTypeStorageImage},
		{Binding: 1, Type: vk.DescriptorTypeStorageBuffer},
		{Binding: 2, Type: vk.DescriptorTypeStorageBuffer},
	}
	sizes := descriptorPoolSizes(bindings, 3)
	if len(sizes) != 2 {
		t.Fatalf("got %d pool sizes, want 2", len(sizes))
	}
	want := map[vk.DescriptorType]uint32{
		vk.DescriptorTypeStorageImage:  3,
		vk.DescriptorTypeStorageBuffer: 6,
	}
	for _, s := range sizes {
		if s.DescriptorCount != want[s.Type] {
			t.Errorf("type %d: count %d, want %d", s.Type, s.DescriptorCount, want[s.Type])
		}
	}
	if got := descriptorPoolSizes(nil, 4); len(got) != 0 {
		t.Errorf("no bindings gave %d sizes", len(got))
	}
}

func TestPushConstantsSizeMismatch(t *testing.T) {
	p := &VulkanPipeline{Name: "generate", pushConstantSize: 12}
	err := p.PushConstants(&VulkanCommandBuffer{}, make([]byte, 16))
	if !errors.Is(err, core.ErrDispatch) {
		t.Errorf("PushConstants = %v, want ErrDispatch", err)
	}
}
