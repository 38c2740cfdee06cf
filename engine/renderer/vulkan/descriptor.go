package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
)

// DescriptorBinding is one compute-stage binding of a pipeline's single descriptor set.
type DescriptorBinding struct {
	Binding uint32
	Type    vk.DescriptorType
}

// descriptorPoolSizes sums the descriptors of each type needed for setCount sets.
func descriptorPoolSizes(bindings []DescriptorBinding, setCount uint32) []vk.DescriptorPoolSize {
	var sizes []vk.DescriptorPoolSize
	index := make(map[vk.DescriptorType]int)
	for _, b := range bindings {
		i, ok := index[b.Type]
		if !ok {
			i = len(sizes)
			index[b.Type] = i
			sizes = append(sizes, vk.DescriptorPoolSize{Type: b.Type})
		}
		sizes[i].DescriptorCount += setCount
	}
	return sizes
}

func createDescriptorSetLayout(context *VulkanContext, bindings []DescriptorBinding) (vk.DescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &info, context.Allocator, &layout); res != vk.Success {
		return vk.NullDescriptorSetLayout, resultError("vkCreateDescriptorSetLayout", res, core.ErrDispatch)
	}
	return layout, nil
}

// allocateDescriptorSets creates a pool sized for count sets of layout and allocates them.
func allocateDescriptorSets(context *VulkanContext, layout vk.DescriptorSetLayout, bindings []DescriptorBinding, count uint32) (vk.DescriptorPool, []vk.DescriptorSet, error) {
	sizes := descriptorPoolSizes(bindings, count)
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       count,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool); res != vk.Success {
		return vk.NullDescriptorPool, nil, resultError("vkCreateDescriptorPool", res, core.ErrDispatch)
	}

	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, count)
	if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &sets[0]); res != vk.Success {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, pool, context.Allocator)
		return vk.NullDescriptorPool, nil, resultError("vkAllocateDescriptorSets", res, core.ErrDispatch)
	}
	return pool, sets, nil
}
