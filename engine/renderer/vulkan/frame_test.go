package vulkan

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/spaghettifunk/voxelray/engine/core"
)

type fakeBackend struct {
	slots      uint32
	images     uint32
	nextImage  uint32
	imagesNext uint32 // image count reported by the next RebuildSurface, 0 keeps the current

	acquireErrs  []error // consumed one per acquire
	acquireSubop bool
	recordErr    error
	presentSubop bool

	events        []string
	rebuilds      int
	resourceSizes []uint32
	binds         int
}

func (f *fakeBackend) log(format string, args ...interface{}) {
	f.events = append(f.events, fmt.Sprintf(format, args...))
}

func (f *fakeBackend) WaitForFence(slot uint32) error {
	f.log("wait %d", slot)
	return nil
}

func (f *fakeBackend) AcquireNextImage(slot uint32) (uint32, bool, error) {
	if len(f.acquireErrs) > 0 {
		err := f.acquireErrs[0]
		f.acquireErrs = f.acquireErrs[1:]
		if err != nil {
			f.log("acquire %d failed", slot)
			return 0, false, err
		}
	}
	idx := f.nextImage % f.images
	f.nextImage++
	f.log("acquire %d -> %d", slot, idx)
	return idx, f.acquireSubop, nil
}

func (f *fakeBackend) ResetFrame(slot uint32) error {
	f.log("reset %d", slot)
	return nil
}

func (f *fakeBackend) RecordFrame(slot, imageIndex uint32, constants []byte) error {
	if f.recordErr != nil {
		f.log("record %d failed", slot)
		return f.recordErr
	}
	f.log("record %d", slot)
	return nil
}

func (f *fakeBackend) Submit(slot, imageIndex uint32) error {
	f.log("submit %d image %d", slot, imageIndex)
	return nil
}

func (f *fakeBackend) Present(imageIndex uint32) (bool, error) {
	f.log("present %d", imageIndex)
	return f.presentSubop, nil
}

func (f *fakeBackend) WaitIdle() error {
	f.log("idle")
	return nil
}

func (f *fakeBackend) RebuildSurface(width, height uint32) (uint32, error) {
	f.rebuilds++
	if f.imagesNext != 0 {
		f.images = f.imagesNext
	}
	f.nextImage = 0
	f.log("rebuild surface %dx%d", width, height)
	return f.images, nil
}

func (f *fakeBackend) RebuildFrameResources(count uint32) error {
	f.slots = count
	f.resourceSizes = append(f.resourceSizes, count)
	f.log("rebuild resources %d", count)
	return nil
}

func (f *fakeBackend) BindTargets() error {
	f.binds++
	return nil
}

func (f *fakeBackend) ReloadPipeline(code []uint32) error { return nil }
func (f *fakeBackend) SlotCount() uint32                  { return f.slots }
func (f *fakeBackend) Destroy()                           {}

func (f *fakeBackend) count(event string) int {
	n := 0
	for _, e := range f.events {
		if e == event {
			n++
		}
	}
	return n
}

func (f *fakeBackend) indexOf(event string, nth int) int {
	for i, e := range f.events {
		if e == event {
			if nth == 0 {
				return i
			}
			nth--
		}
	}
	return -1
}

var camera = make([]byte, CameraConstantsSize)

func TestFrameSlotRotation(t *testing.T) {
	backend := &fakeBackend{slots: 2, images: 2}
	fe := NewFrameEngine(backend, 800, 600)

	var visited []uint32
	for i := 0; i < 5; i++ {
		visited = append(visited, fe.CurrentFrame())
		if err := fe.DrawFrame(camera); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	want := []uint32{0, 1, 0, 1, 0}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visited slots %v, want %v", visited, want)
		}
	}
	if fe.Frame() != 5 {
		t.Errorf("frame counter = %d, want 5", fe.Frame())
	}

	// slot 0 is waited on for the third time before the third submission records
	thirdWait := backend.indexOf("wait 0", 1)
	thirdRecord := backend.indexOf("record 0", 1)
	if thirdWait < 0 || thirdRecord < 0 || thirdWait > thirdRecord {
		t.Errorf("fence for slot 0 not waited before recording the 3rd frame: %v", backend.events)
	}
}

func TestFrameStepOrder(t *testing.T) {
	backend := &fakeBackend{slots: 2, images: 3}
	fe := NewFrameEngine(backend, 800, 600)
	if err := fe.DrawFrame(camera); err != nil {
		t.Fatal(err)
	}
	want := []string{"wait 0", "acquire 0 -> 0", "reset 0", "record 0", "submit 0 image 0", "present 0"}
	if len(backend.events) != len(want) {
		t.Fatalf("events %v, want %v", backend.events, want)
	}
	for i := range want {
		if backend.events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, backend.events[i], want[i])
		}
	}
}

func TestFrameResizeChangesImageCount(t *testing.T) {
	backend := &fakeBackend{slots: 3, images: 3, imagesNext: 2}
	fe := NewFrameEngine(backend, 800, 600)
	for i := 0; i < 2; i++ {
		if err := fe.DrawFrame(camera); err != nil {
			t.Fatal(err)
		}
	}
	if fe.CurrentFrame() != 2 {
		t.Fatalf("current frame = %d before resize", fe.CurrentFrame())
	}

	if err := fe.Resize(1024, 768); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if backend.slots != 2 || len(backend.resourceSizes) != 1 || backend.resourceSizes[0] != 2 {
		t.Errorf("frame resources rebuilt as %v, slots %d, want one rebuild of 2", backend.resourceSizes, backend.slots)
	}
	if fe.CurrentFrame() != 0 {
		t.Errorf("current frame = %d after resize, want 0", fe.CurrentFrame())
	}
	if backend.binds != 1 {
		t.Errorf("descriptor sets bound %d times, want 1", backend.binds)
	}
	if backend.indexOf("idle", 0) > backend.indexOf("rebuild surface 1024x768", 0) {
		t.Error("surface rebuilt before the device was idle")
	}
	if w, h := fe.Size(); w != 1024 || h != 768 {
		t.Errorf("size = %dx%d", w, h)
	}
}

func TestFrameResizeSameImageCount(t *testing.T) {
	backend := &fakeBackend{slots: 3, images: 3}
	fe := NewFrameEngine(backend, 800, 600)
	if err := fe.Resize(800, 600); err != nil {
		t.Fatal(err)
	}
	if len(backend.resourceSizes) != 0 {
		t.Errorf("frame resources rebuilt %v although image count did not change", backend.resourceSizes)
	}
	if backend.binds != 1 {
		t.Errorf("binds = %d, want 1", backend.binds)
	}
}

func TestFrameOutOfDateRebuildsAndRetries(t *testing.T) {
	backend := &fakeBackend{
		slots:       2,
		images:      2,
		acquireErrs: []error{fmt.Errorf("acquire: %w", core.ErrSurfaceOutOfDate)},
	}
	fe := NewFrameEngine(backend, 800, 600)
	if err := fe.DrawFrame(camera); err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}
	if backend.rebuilds != 1 {
		t.Errorf("rebuilds = %d, want 1", backend.rebuilds)
	}
	if backend.count("present 0") != 1 {
		t.Errorf("retried frame was not presented: %v", backend.events)
	}
}

func TestFrameOutOfDateTwiceFails(t *testing.T) {
	outOfDate := fmt.Errorf("acquire: %w", core.ErrSurfaceOutOfDate)
	backend := &fakeBackend{slots: 2, images: 2, acquireErrs: []error{outOfDate, outOfDate}}
	fe := NewFrameEngine(backend, 800, 600)

	err := fe.DrawFrame(camera)
	var se *core.StageError
	if !errors.As(err, &se) || se.Stage != core.StageAcquire {
		t.Fatalf("err = %v, want an acquisition StageError", err)
	}
	if backend.count("reset 0") != 0 {
		t.Error("frame reset after a failed acquire")
	}
}

func TestFrameSuboptimalRendersThenRebuilds(t *testing.T) {
	backend := &fakeBackend{slots: 2, images: 2, acquireSubop: true}
	fe := NewFrameEngine(backend, 800, 600)
	if err := fe.DrawFrame(camera); err != nil {
		t.Fatal(err)
	}
	present := backend.indexOf("present 0", 0)
	rebuild := backend.indexOf("rebuild surface 800x600", 0)
	if present < 0 || rebuild < 0 || rebuild < present {
		t.Errorf("want present before rebuild, got %v", backend.events)
	}
	if fe.CurrentFrame() != 0 || fe.Frame() != 1 {
		t.Errorf("current frame %d, frame %d", fe.CurrentFrame(), fe.Frame())
	}
}

func TestFrameRecordFailureIsNotSubmitted(t *testing.T) {
	backend := &fakeBackend{slots: 2, images: 2, recordErr: fmt.Errorf("push: %w", core.ErrDispatch)}
	fe := NewFrameEngine(backend, 800, 600)

	err := fe.DrawFrame(camera)
	var se *core.StageError
	if !errors.As(err, &se) || se.Stage != core.StageRecord {
		t.Fatalf("err = %v, want a recording StageError", err)
	}
	if !errors.Is(err, core.ErrDispatch) {
		t.Errorf("kind lost: %v", err)
	}
	for _, e := range backend.events {
		if e == "submit 0 image 0" {
			t.Fatal("half-recorded command buffer was submitted")
		}
	}
	if fe.Frame() != 0 || fe.CurrentFrame() != 0 {
		t.Error("failed frame advanced the counters")
	}
}

func TestFrameZeroSizePausesDrawing(t *testing.T) {
	backend := &fakeBackend{slots: 2, images: 2}
	fe := NewFrameEngine(backend, 800, 600)
	if err := fe.Resize(0, 600); err != nil {
		t.Fatal(err)
	}
	if err := fe.DrawFrame(camera); err != nil {
		t.Fatal(err)
	}
	if len(backend.events) != 0 {
		t.Errorf("minimized window still drew: %v", backend.events)
	}
}

func TestFrameSlotAndImageIndexDiverge(t *testing.T) {
	backend := &fakeBackend{slots: 2, images: 3}
	fe := NewFrameEngine(backend, 800, 600)
	for i := 0; i < 6; i++ {
		if err := fe.DrawFrame(camera); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	var submits, presents []string
	for _, e := range backend.events {
		switch {
		case strings.HasPrefix(e, "submit"):
			submits = append(submits, e)
		case strings.HasPrefix(e, "present"):
			presents = append(presents, e)
		}
	}
	wantSubmits := []string{
		"submit 0 image 0", "submit 1 image 1", "submit 0 image 2",
		"submit 1 image 0", "submit 0 image 1", "submit 1 image 2",
	}
	wantPresents := []string{"present 0", "present 1", "present 2", "present 0", "present 1", "present 2"}
	if !slices.Equal(submits, wantSubmits) {
		t.Errorf("submits %v, want %v", submits, wantSubmits)
	}
	if !slices.Equal(presents, wantPresents) {
		t.Errorf("presents %v, want %v", presents, wantPresents)
	}
}

func TestFrameAfterFailedRecordRebuildsResources(t *testing.T) {
	backend := &fakeBackend{slots: 2, images: 2, recordErr: fmt.Errorf("push: %w", core.ErrDispatch)}
	fe := NewFrameEngine(backend, 800, 600)
	if err := fe.DrawFrame(camera); err == nil {
		t.Fatal("DrawFrame succeeded with a failing record")
	}

	backend.recordErr = nil
	backend.events = nil
	if err := fe.DrawFrame(camera); err != nil {
		t.Fatalf("DrawFrame after a failed frame: %v", err)
	}
	if len(backend.resourceSizes) != 1 || backend.resourceSizes[0] != 2 {
		t.Errorf("frame resources rebuilt as %v, want one rebuild of 2", backend.resourceSizes)
	}
	rebuild := backend.indexOf("rebuild resources 2", 0)
	wait := backend.indexOf("wait 0", 0)
	if backend.indexOf("idle", 0) > rebuild || rebuild < 0 || wait < rebuild {
		t.Errorf("want idle, rebuild, then the fence wait: %v", backend.events)
	}
	if backend.count("present 1") != 1 {
		t.Errorf("frame after recovery not presented: %v", backend.events)
	}

	// recovered once, later frames draw without rebuilding
	if err := fe.DrawFrame(camera); err != nil {
		t.Fatal(err)
	}
	if len(backend.resourceSizes) != 1 {
		t.Errorf("resources rebuilt again: %v", backend.resourceSizes)
	}
}
