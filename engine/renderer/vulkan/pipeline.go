package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
)

type VulkanPipelineConfig struct {
	Name string
	// Code is the SPIR-V of the compute shader.
	Code     []uint32
	Bindings []DescriptorBinding
	// PushConstantSize is the size in bytes of the compute push constant block, 0 for none.
	PushConstantSize uint32
	// SetCount is the number of descriptor sets allocated up front.
	SetCount uint32
}

// VulkanPipeline is a compute pipeline with one descriptor set layout and a pool of sets
// built from it.
type VulkanPipeline struct {
	Name           string
	Handle         vk.Pipeline
	PipelineLayout vk.PipelineLayout
	SetLayout      vk.DescriptorSetLayout
	DescriptorPool vk.DescriptorPool
	DescriptorSets []vk.DescriptorSet

	bindings         []DescriptorBinding
	pushConstantSize uint32
}

func NewComputePipeline(context *VulkanContext, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	if config.PushConstantSize > maxPushConstantSize {
		return nil, fmt.Errorf("pipeline %q: push constants of %d bytes exceed the guaranteed %d: %w", config.Name, config.PushConstantSize, maxPushConstantSize, core.ErrDispatch)
	}
	pipeline := &VulkanPipeline{
		Name:             config.Name,
		bindings:         config.Bindings,
		pushConstantSize: config.PushConstantSize,
	}

	err := lockPool.SafeCall(PipelineManagement, func() error {
		layout, err := createDescriptorSetLayout(context, config.Bindings)
		if err != nil {
			return err
		}
		pipeline.SetLayout = layout

		layoutInfo := vk.PipelineLayoutCreateInfo{
			SType:          vk.StructureTypePipelineLayoutCreateInfo,
			SetLayoutCount: 1,
			PSetLayouts:    []vk.DescriptorSetLayout{layout},
		}
		if config.PushConstantSize > 0 {
			layoutInfo.PushConstantRangeCount = 1
			layoutInfo.PPushConstantRanges = []vk.PushConstantRange{{
				StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
				Offset:     0,
				Size:       config.PushConstantSize,
			}}
		}
		var pipelineLayout vk.PipelineLayout
		if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &pipelineLayout); res != vk.Success {
			return resultError("vkCreatePipelineLayout", res, core.ErrDispatch)
		}
		pipeline.PipelineLayout = pipelineLayout
		return nil
	})
	if err == nil {
		err = pipeline.build(context, config.Code)
	}
	if err == nil && config.SetCount > 0 {
		err = pipeline.ResizeSets(context, config.SetCount)
	}
	if err != nil {
		pipeline.Destroy(context)
		err = fmt.Errorf("pipeline %q: %w", config.Name, err)
		core.LogError(err.Error())
		return nil, err
	}

	core.LogDebug("Compute pipeline %q created.", config.Name)
	return pipeline, nil
}

// build creates the pipeline handle from code with the existing layout.
func (pipeline *VulkanPipeline) build(context *VulkanContext, code []uint32) error {
	module, err := NewShaderModule(context, pipeline.Name, code)
	if err != nil {
		return err
	}
	defer vk.DestroyShaderModule(context.Device.LogicalDevice, module, context.Allocator)

	createInfo := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Stage:              computeStage(module),
		Layout:             pipeline.PipelineLayout,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	handles := make([]vk.Pipeline, 1)
	err = lockPool.SafeCall(PipelineManagement, func() error {
		res := vk.CreateComputePipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{createInfo}, context.Allocator, handles)
		return resultError("vkCreateComputePipelines", res, core.ErrDispatch)
	})
	if err != nil {
		return err
	}
	pipeline.Handle = handles[0]
	return nil
}

// Reload swaps in a pipeline built from new code. Layout and descriptor sets stay valid.
// The device must be idle.
func (pipeline *VulkanPipeline) Reload(context *VulkanContext, code []uint32) error {
	old := pipeline.Handle
	if err := pipeline.build(context, code); err != nil {
		pipeline.Handle = old
		return fmt.Errorf("reloading pipeline %q: %w", pipeline.Name, err)
	}
	if old != vk.NullPipeline {
		lockPool.SafeCall(PipelineManagement, func() error {
			vk.DestroyPipeline(context.Device.LogicalDevice, old, context.Allocator)
			return nil
		})
	}
	core.LogInfo("Pipeline %q reloaded.", pipeline.Name)
	return nil
}

// ResizeSets drops every descriptor set and allocates count fresh ones. Bindings must be
// written again afterwards.
func (pipeline *VulkanPipeline) ResizeSets(context *VulkanContext, count uint32) error {
	if count == 0 {
		return fmt.Errorf("pipeline %q needs at least one descriptor set: %w", pipeline.Name, core.ErrDispatch)
	}
	return lockPool.SafeCall(PipelineManagement, func() error {
		if pipeline.DescriptorPool != vk.NullDescriptorPool {
			vk.DestroyDescriptorPool(context.Device.LogicalDevice, pipeline.DescriptorPool, context.Allocator)
			pipeline.DescriptorPool = vk.NullDescriptorPool
			pipeline.DescriptorSets = nil
		}
		pool, sets, err := allocateDescriptorSets(context, pipeline.SetLayout, pipeline.bindings, count)
		if err != nil {
			return err
		}
		pipeline.DescriptorPool = pool
		pipeline.DescriptorSets = sets
		return nil
	})
}

func (pipeline *VulkanPipeline) WriteStorageImage(context *VulkanContext, set int, binding uint32, view vk.ImageView) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          pipeline.DescriptorSets[set],
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageImage,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageView:   view,
			ImageLayout: vk.ImageLayoutGeneral,
		}},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (pipeline *VulkanPipeline) WriteBuffer(context *VulkanContext, set int, binding uint32, buffer *Buffer) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          pipeline.DescriptorSets[set],
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageBuffer,
		PBufferInfo:     []vk.DescriptorBufferInfo{buffer.Descriptor()},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindPipeline(commandBuffer.Handle, vk.PipelineBindPointCompute, pipeline.Handle)
}

func (pipeline *VulkanPipeline) BindSet(commandBuffer *VulkanCommandBuffer, set int) {
	vk.CmdBindDescriptorSets(commandBuffer.Handle, vk.PipelineBindPointCompute, pipeline.PipelineLayout, 0, 1, []vk.DescriptorSet{pipeline.DescriptorSets[set]}, 0, nil)
}

// PushConstants uploads data, which must match the declared push constant size.
func (pipeline *VulkanPipeline) PushConstants(commandBuffer *VulkanCommandBuffer, data []byte) error {
	if uint32(len(data)) != pipeline.pushConstantSize || len(data) == 0 {
		return fmt.Errorf("pipeline %q expects %d bytes of push constants, got %d: %w", pipeline.Name, pipeline.pushConstantSize, len(data), core.ErrDispatch)
	}
	vk.CmdPushConstants(commandBuffer.Handle, pipeline.PipelineLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, uint32(len(data)), unsafe.Pointer(&data[0]))
	return nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	lockPool.SafeCall(PipelineManagement, func() error {
		if pipeline.DescriptorPool != vk.NullDescriptorPool {
			vk.DestroyDescriptorPool(context.Device.LogicalDevice, pipeline.DescriptorPool, context.Allocator)
			pipeline.DescriptorPool = vk.NullDescriptorPool
			pipeline.DescriptorSets = nil
		}
		if pipeline.Handle != vk.NullPipeline {
			vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
			pipeline.Handle = vk.NullPipeline
		}
		if pipeline.PipelineLayout != vk.NullPipelineLayout {
			vk.DestroyPipelineLayout(context.Device.LogicalDevice, pipeline.PipelineLayout, context.Allocator)
			pipeline.PipelineLayout = vk.NullPipelineLayout
		}
		if pipeline.SetLayout != vk.NullDescriptorSetLayout {
			vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, pipeline.SetLayout, context.Allocator)
			pipeline.SetLayout = vk.NullDescriptorSetLayout
		}
		return nil
	})
}
