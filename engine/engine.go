package engine

import (
	"os"
	"sync/atomic"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/voxelray/engine/assets"
	"github.com/spaghettifunk/voxelray/engine/core"
	"github.com/spaghettifunk/voxelray/engine/platform"
	"github.com/spaghettifunk/voxelray/engine/renderer/components"
	"github.com/spaghettifunk/voxelray/engine/renderer/vulkan"
	"github.com/spaghettifunk/voxelray/engine/world"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const (
	renderKernel   = "raytrace"
	generateKernel = "generate"

	moveSpeed        float32 = 96.0 // voxels per second
	mouseSensitivity float32 = 0.002
)

type Engine struct {
	currentStage Stage
	config       *ApplicationConfig
	isRunning    atomic.Bool
	isSuspended  bool

	platform     *platform.Platform
	assetManager *assets.AssetManager
	context      *vulkan.VulkanContext
	store        *world.Store
	generator    *world.Generator
	frames       *vulkan.FrameEngine
	camera       *components.Camera

	width    uint32
	height   uint32
	clock    *core.Clock
	metrics  *core.FrameMetrics
	lastTime float64
}

func New(config *ApplicationConfig) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	level, _ := core.ParseLogLevel(config.Log.Level)
	core.SetLogLevel(level)

	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       config,
		platform:     platform.New(),
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
		width:        config.Window.Width,
		height:       config.Window.Height,
	}, nil
}

// Initialize brings up the window, the device, the world and the frame engine, in that
// order. Any failure is a construction StageError; whatever was built is left for Shutdown.
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	if err := e.initialize(); err != nil {
		return core.WrapStage(core.StageConstruction, err)
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) initialize() error {
	cfg := e.config
	if err := e.platform.Startup(cfg.Window.Title, cfg.Window.X, cfg.Window.Y, cfg.Window.Width, cfg.Window.Height); err != nil {
		return err
	}
	e.width, e.height = e.platform.FramebufferSize()

	am, err := assets.NewAssetManager(cfg.Renderer.ShaderDir)
	if err != nil {
		return err
	}
	e.assetManager = am

	e.context, err = vulkan.ContextCreate(e.platform, vulkan.ContextOptions{
		ApplicationName: cfg.Window.Title,
		Validation:      cfg.Renderer.Validation,
	})
	if err != nil {
		return err
	}

	fill, err := cfg.FillPolicy()
	if err != nil {
		return err
	}
	options := world.StoreOptions{Fill: fill}
	if cfg.World.Content == ContentStaged {
		options.Content = world.SphereChunk
	}
	e.store, err = world.NewStore(e.context, options)
	if err != nil {
		return err
	}

	if cfg.World.Content == ContentGenerated {
		if err := e.generate(fill); err != nil {
			return err
		}
	}

	if cfg.Debug.DirectoryDump != "" {
		if err := e.dumpDirectory(cfg.Debug.DirectoryDump); err != nil {
			core.LogWarn("Directory dump failed: %s", err)
		}
	}

	renderCode, err := e.assetManager.LoadShader(renderKernel)
	if err != nil {
		return err
	}
	e.frames, err = vulkan.NewVulkanFrameEngine(e.context, renderCode, e.store.StorageBindings(), e.width, e.height)
	if err != nil {
		return err
	}

	e.camera = components.NewCamera(e.width, e.height)

	if cfg.Renderer.HotReload {
		if err := e.assetManager.Watch(); err != nil {
			core.LogWarn("Shader hot reload disabled: %s", err)
		}
	}
	return nil
}

func (e *Engine) generate(fill world.FillPolicy) error {
	code, err := e.assetManager.LoadShader(generateKernel)
	if err != nil {
		return err
	}
	e.generator, err = world.NewGenerator(e.context, e.store, code)
	if err != nil {
		return err
	}
	start := platform.GetAbsoluteTime()
	if err := e.generator.RunFill(fill); err != nil {
		return core.WrapStage(core.StageGeneration, err)
	}
	core.LogInfo("World generated in %.1f ms.", (platform.GetAbsoluteTime()-start)*1000)
	return nil
}

func (e *Engine) dumpDirectory(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := world.WriteDirectoryBMP(f, e.store.Directory); err != nil {
		f.Close()
		return err
	}
	core.LogInfo("Directory atlas written to %s.", path)
	return f.Close()
}

// Run draws frames until the window closes or Stop is called. It returns the first
// frame error, tagged with its stage.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}

		if width, height, ok := e.platform.TakeResize(); ok {
			if err := e.onResized(width, height); err != nil {
				return err
			}
		}

		e.reloadShaders()

		if e.isSuspended {
			glfw.WaitEventsTimeout(0.1)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := platform.GetAbsoluteTime()

		if err := e.handleInput(float32(delta)); err != nil {
			return err
		}

		if err := e.frames.DrawFrame(e.camera.PushConstants()); err != nil {
			return err
		}

		frameElapsedTime := platform.GetAbsoluteTime() - frameStartTime
		if e.metrics.Update(frameElapsedTime) {
			core.LogDebug("%.0f fps, %.2f ms/frame", e.metrics.FPS(), e.metrics.FrameTime())
		}

		e.lastTime = currentTime
	}
	return nil
}

// Stop asks Run to return after the current frame. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) handleInput(delta float32) error {
	for _, key := range e.platform.TakePresses() {
		switch key {
		case glfw.KeyRightBracket:
			if err := e.resizeFill(1); err != nil {
				return err
			}
		case glfw.KeyLeftBracket:
			if err := e.resizeFill(-1); err != nil {
				return err
			}
		}
	}

	var dir mgl32.Vec3
	if e.platform.KeyDown(glfw.KeyW) {
		dir[2] += 1
	}
	if e.platform.KeyDown(glfw.KeyS) {
		dir[2] -= 1
	}
	if e.platform.KeyDown(glfw.KeyA) {
		dir[0] -= 1
	}
	if e.platform.KeyDown(glfw.KeyD) {
		dir[0] += 1
	}
	if e.platform.KeyDown(glfw.KeySpace) {
		dir[1] += 1
	}
	if e.platform.KeyDown(glfw.KeyLeftShift) {
		dir[1] -= 1
	}
	e.camera.Move(dir, moveSpeed*delta)

	if dx, dy := e.platform.CursorDelta(); dx != 0 || dy != 0 {
		e.camera.Rotate(float32(dx), float32(dy), mouseSensitivity)
	}
	return nil
}

// resizeFill grows or shrinks the active fill by step chunks on every side. Newly active
// chunks are regenerated before the next frame draws.
func (e *Engine) resizeFill(step int) error {
	policy, ok := world.Resized(e.store.Fill(), step)
	if !ok {
		return nil
	}
	regenerate := e.store.Restage
	if e.generator != nil {
		regenerate = e.generator.Generate
	}
	start := platform.GetAbsoluteTime()
	if err := e.store.Refill(policy, regenerate); err != nil {
		return core.WrapStage(core.StageGeneration, err)
	}
	core.LogDebug("Fill resized in %.1f ms.", (platform.GetAbsoluteTime()-start)*1000)
	return nil
}

// reloadShaders rebuilds the pipelines of kernels rewritten on disk. A kernel that fails to
// load or build keeps the previous one.
func (e *Engine) reloadShaders() {
	for {
		var name string
		select {
		case name = <-e.assetManager.Changed():
		default:
			return
		}

		code, err := e.assetManager.LoadShader(name)
		if err != nil {
			core.LogError("Reloading %s: %s", name, err)
			continue
		}
		switch {
		case name == renderKernel:
			err = e.frames.ReloadPipeline(code)
		case name == generateKernel && e.generator != nil:
			err = e.generator.Reload(code)
		default:
			continue
		}
		if err != nil {
			core.LogError("Reloading %s: %s", name, err)
		}
	}
}

func (e *Engine) onResized(width, height uint32) error {
	if width == e.width && height == e.height {
		return nil
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return e.frames.Resize(width, height)
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.camera.SetAspect(width, height)
	return e.frames.Resize(width, height)
}

// Shutdown releases everything Initialize built, newest first. It reports the first
// failure but always runs to the end.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var first error

	if e.frames != nil {
		if err := e.frames.Destroy(); err != nil && first == nil {
			first = err
		}
		e.frames = nil
	}
	if e.context != nil {
		if err := e.context.WaitIdle(); err != nil && first == nil {
			first = core.WrapStage(core.StageShutdown, err)
		}
	}
	if e.generator != nil {
		e.generator.Destroy()
		e.generator = nil
	}
	if e.store != nil {
		e.store.Destroy()
		e.store = nil
	}
	if e.assetManager != nil {
		if err := e.assetManager.Shutdown(); err != nil && first == nil {
			first = core.WrapStage(core.StageShutdown, err)
		}
	}
	if e.context != nil {
		e.context.Destroy()
		e.context = nil
	}
	if err := e.platform.Shutdown(); err != nil && first == nil {
		first = core.WrapStage(core.StageShutdown, err)
	}
	return first
}

// GetFramebufferSize returns the width and height (in this order) of the drawable.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}
