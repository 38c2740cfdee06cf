package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/voxelray/engine/core"
)

var startTime float64 = 0

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window

	resized       bool
	width, height int

	lastX, lastY float64
	dx, dy       float64
	hasCursor    bool

	pressed []glfw.Key
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window
	p.width, p.height = window.GetFramebufferSize()

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetCursorPosCallback(p.cursorPosCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	if glfw.RawMouseMotionSupported() {
		p.Window.SetInputMode(glfw.RawMouseMotion, glfw.True)
	}
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	startTime = glfw.GetTime()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events. It returns false once the window
// was asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// RequestClose makes the next PumpMessages return false.
func (p *Platform) RequestClose() {
	p.Window.SetShouldClose(true)
}

// FramebufferSize is the drawable size in pixels, zero while minimized.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	return uint32(max(p.width, 0)), uint32(max(p.height, 0))
}

// TakeResize reports a framebuffer size change since the last call.
func (p *Platform) TakeResize() (uint32, uint32, bool) {
	if !p.resized {
		return 0, 0, false
	}
	p.resized = false
	w, h := p.FramebufferSize()
	return w, h, true
}

func (p *Platform) KeyDown(key glfw.Key) bool {
	return p.Window.GetKey(key) == glfw.Press
}

// TakePresses returns the keys pressed since the last call, in order.
func (p *Platform) TakePresses() []glfw.Key {
	keys := p.pressed
	p.pressed = nil
	return keys
}

// CursorDelta returns the cursor motion accumulated since the last call.
func (p *Platform) CursorDelta() (float64, float64) {
	dx, dy := p.dx, p.dy
	p.dx, p.dy = 0, 0
	return dx, dy
}

// RequiredInstanceExtensions lists the instance extensions the window surface needs.
func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("failed to create window surface: %w", err)
	}
	return vk.SurfaceFromPointer(surface), nil
}

// GetAbsoluteTime is the time in seconds since the platform started.
func GetAbsoluteTime() float64 {
	return glfw.GetTime() - startTime
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	if key == glfw.KeyEscape {
		core.LogInfo("Escape pressed, shutting down.")
		w.SetShouldClose(true)
		return
	}
	p.pressed = append(p.pressed, key)
}

func (p *Platform) cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	if p.hasCursor {
		p.dx += xpos - p.lastX
		p.dy += ypos - p.lastY
	}
	p.lastX, p.lastY = xpos, ypos
	p.hasCursor = true
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	if width == p.width && height == p.height {
		return
	}
	p.width, p.height = width, height
	p.resized = true
}
