package vulkan

import (
	"errors"

	"github.com/spaghettifunk/voxelray/engine/core"
)

// FrameBackend is the device side of one frame. Slots index the sync set and command
// buffers, image indices index the swapchain.
type FrameBackend interface {
	WaitForFence(slot uint32) error
	AcquireNextImage(slot uint32) (imageIndex uint32, suboptimal bool, err error)
	// ResetFrame readies the slot's command buffer for recording.
	ResetFrame(slot uint32) error
	RecordFrame(slot, imageIndex uint32, constants []byte) error
	// Submit unsignals the slot fence and submits with it.
	Submit(slot, imageIndex uint32) error
	Present(imageIndex uint32) (suboptimal bool, err error)
	WaitIdle() error
	// RebuildSurface recreates the swapchain and returns its image count.
	RebuildSurface(width, height uint32) (uint32, error)
	// RebuildFrameResources recreates the sync set and command buffers for count slots.
	RebuildFrameResources(count uint32) error
	// BindTargets points the render pipeline's per-image descriptor sets at the current views.
	BindTargets() error
	ReloadPipeline(code []uint32) error
	SlotCount() uint32
	Destroy()
}

// FrameEngine drives acquire, record, submit and present for one frame at a time and
// rebuilds the surface when it goes stale. It is not safe for concurrent use.
type FrameEngine struct {
	backend FrameBackend

	frame        uint64
	currentFrame uint32
	// stale is set when a frame failed after its acquire, leaving a semaphore signaled
	// with nothing waiting on it.
	stale bool

	width  uint32
	height uint32
}

func NewFrameEngine(backend FrameBackend, width, height uint32) *FrameEngine {
	return &FrameEngine{
		backend: backend,
		width:   width,
		height:  height,
	}
}

// Frame is the number of frames presented so far. It wraps.
func (fe *FrameEngine) Frame() uint64 {
	return fe.frame
}

func (fe *FrameEngine) CurrentFrame() uint32 {
	return fe.currentFrame
}

func (fe *FrameEngine) Size() (uint32, uint32) {
	return fe.width, fe.height
}

// DrawFrame renders one frame with the given push constants. An out-of-date surface is
// rebuilt and the acquire retried once. A suboptimal one is rendered and rebuilt after
// presenting. A frame whose recording failed is never submitted, and the frame resources
// are rebuilt before the next one draws.
func (fe *FrameEngine) DrawFrame(constants []byte) error {
	if fe.width == 0 || fe.height == 0 {
		return nil
	}
	if fe.stale {
		if err := fe.rebuildFrameResources(); err != nil {
			return err
		}
	}

	slot := fe.currentFrame
	if err := fe.backend.WaitForFence(slot); err != nil {
		return core.WrapStage(core.StageWait, err)
	}

	imageIndex, suboptimal, err := fe.backend.AcquireNextImage(slot)
	if errors.Is(err, core.ErrSurfaceOutOfDate) {
		core.LogDebug("Surface out of date on acquire, rebuilding.")
		if err := fe.rebuild(fe.width, fe.height); err != nil {
			return err
		}
		slot = fe.currentFrame
		if err := fe.backend.WaitForFence(slot); err != nil {
			return core.WrapStage(core.StageWait, err)
		}
		imageIndex, suboptimal, err = fe.backend.AcquireNextImage(slot)
	}
	if err != nil {
		return core.WrapStage(core.StageAcquire, err)
	}

	if err := fe.backend.ResetFrame(slot); err != nil {
		fe.stale = true
		return core.WrapStage(core.StageRecord, err)
	}
	if err := fe.backend.RecordFrame(slot, imageIndex, constants); err != nil {
		fe.stale = true
		return core.WrapStage(core.StageRecord, err)
	}
	if err := fe.backend.Submit(slot, imageIndex); err != nil {
		fe.stale = true
		return core.WrapStage(core.StageSubmit, err)
	}

	presentSuboptimal, err := fe.backend.Present(imageIndex)
	if errors.Is(err, core.ErrSurfaceOutOfDate) {
		presentSuboptimal, err = true, nil
	}
	if err != nil {
		fe.stale = true
		return core.WrapStage(core.StagePresent, err)
	}

	fe.frame++
	fe.currentFrame = (fe.currentFrame + 1) % fe.backend.SlotCount()

	if suboptimal || presentSuboptimal {
		core.LogDebug("Surface suboptimal, rebuilding after present.")
		return fe.rebuild(fe.width, fe.height)
	}
	return nil
}

// rebuildFrameResources replaces the sync set and command buffers after a failed frame.
func (fe *FrameEngine) rebuildFrameResources() error {
	if err := fe.backend.WaitIdle(); err != nil {
		return core.WrapStage(core.StageResize, err)
	}
	if err := fe.backend.RebuildFrameResources(fe.backend.SlotCount()); err != nil {
		return core.WrapStage(core.StageResize, err)
	}
	core.LogDebug("Frame resources rebuilt after a failed frame.")
	fe.currentFrame = 0
	fe.stale = false
	return nil
}

// Resize rebuilds the surface for a new window size. A zero size pauses drawing until the
// next non-zero resize.
func (fe *FrameEngine) Resize(width, height uint32) error {
	fe.width, fe.height = width, height
	if width == 0 || height == 0 {
		return nil
	}
	return fe.rebuild(width, height)
}

func (fe *FrameEngine) rebuild(width, height uint32) error {
	if err := fe.backend.WaitIdle(); err != nil {
		return core.WrapStage(core.StageResize, err)
	}
	imageCount, err := fe.backend.RebuildSurface(width, height)
	if err != nil {
		return core.WrapStage(core.StageResize, err)
	}
	if imageCount != fe.backend.SlotCount() {
		core.LogInfo("Image count changed from %d to %d, rebuilding frame resources.", fe.backend.SlotCount(), imageCount)
		if err := fe.backend.RebuildFrameResources(imageCount); err != nil {
			return core.WrapStage(core.StageResize, err)
		}
		fe.stale = false
	}
	fe.currentFrame = 0
	if err := fe.backend.BindTargets(); err != nil {
		return core.WrapStage(core.StageResize, err)
	}
	return nil
}

// ReloadPipeline swaps the render kernel between frames.
func (fe *FrameEngine) ReloadPipeline(code []uint32) error {
	if err := fe.backend.WaitIdle(); err != nil {
		return err
	}
	return fe.backend.ReloadPipeline(code)
}

// Destroy waits for the device and releases every frame resource.
func (fe *FrameEngine) Destroy() error {
	err := fe.backend.WaitIdle()
	fe.backend.Destroy()
	return core.WrapStage(core.StageShutdown, err)
}
