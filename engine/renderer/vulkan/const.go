package vulkan

import "math"

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// workGroupSize is the local size of the render kernel in X and Y.
const workGroupSize = 16

/**
 * @brief Push constant bytes every implementation must support.
 * Camera constants use all of it.
 */
const maxPushConstantSize uint32 = 128

// noTimeout makes fence waits and image acquisition block indefinitely.
const noTimeout uint64 = math.MaxUint64
