package vulkan

import (
	vk "github.com/goki/vulkan"
	vmath "github.com/spaghettifunk/voxelray/engine/math"
)

// imageTransition pairs layouts with the access masks and pipeline stages on both sides.
type imageTransition struct {
	OldLayout vk.ImageLayout
	NewLayout vk.ImageLayout
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
}

var (
	// toShaderWrite makes an acquired image writable by the compute pass. The old
	// contents are discarded.
	toShaderWrite = imageTransition{
		OldLayout: vk.ImageLayoutUndefined,
		NewLayout: vk.ImageLayoutGeneral,
		SrcAccess: 0,
		DstAccess: vk.AccessFlags(vk.AccessShaderWriteBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
	}
	toPresent = imageTransition{
		OldLayout: vk.ImageLayoutGeneral,
		NewLayout: vk.ImageLayoutPresentSrc,
		SrcAccess: vk.AccessFlags(vk.AccessShaderWriteBit),
		DstAccess: 0,
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
	}
)

func colorSubresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func (t imageTransition) barrier(image vk.Image) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       t.SrcAccess,
		DstAccessMask:       t.DstAccess,
		OldLayout:           t.OldLayout,
		NewLayout:           t.NewLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    colorSubresourceRange(),
	}
}

func (t imageTransition) record(cb vk.CommandBuffer, image vk.Image) {
	vk.CmdPipelineBarrier(cb, t.SrcStage, t.DstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{t.barrier(image)})
}

// dispatchGroups covers the extent with workGroupSize x workGroupSize groups.
func dispatchGroups(extent vk.Extent2D) (uint32, uint32, uint32) {
	return vmath.DivCeil(extent.Width, workGroupSize), vmath.DivCeil(extent.Height, workGroupSize), 1
}
