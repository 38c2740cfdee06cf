package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxelray/engine/core"
)

// SurfaceProvider is the window the context presents to.
type SurfaceProvider interface {
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

type ContextOptions struct {
	ApplicationName string
	Validation      bool
}

// VulkanContext owns the instance, surface, device and memory allocator. Every buffer,
// pipeline and swapchain must be destroyed before it.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice
	Memory *DeviceAllocator
}

func ContextCreate(provider SurfaceProvider, options ContextOptions) (*VulkanContext, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("GetInstanceProcAddress is nil: %w", core.ErrAllocation)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize vk: %v: %w", err, core.ErrAllocation)
	}

	context := &VulkanContext{
		Device: &VulkanDevice{},
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(0, 1, 0)),
		PApplicationName:   VulkanSafeString(options.ApplicationName),
		PEngineName:        VulkanSafeString("voxelray"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := append([]string{}, provider.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if options.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		ok, err := validationLayerAvailable()
		if err != nil {
			return nil, err
		}
		if ok {
			layers = append(layers, validationLayerName)
			core.LogInfo("Validation layers enabled.")
		} else {
			core.LogWarn("Validation requested but %s is not installed.", validationLayerName)
		}
	}
	core.LogDebug("Required instance extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, context.Allocator, &instance); res != vk.Success {
		return nil, resultError("vkCreateInstance", res, core.ErrAllocation)
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, context.Allocator)
		return nil, fmt.Errorf("failed to init instance: %v: %w", err, core.ErrAllocation)
	}
	context.Instance = instance
	core.LogInfo("Vulkan Instance created.")

	if options.Validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(instance, &debugCreateInfo, context.Allocator, &dbg); res != vk.Success {
			core.LogWarn("vkCreateDebugReportCallbackEXT failed with %s", VulkanResultString(res, false))
		} else {
			context.debugMessenger = dbg
			core.LogDebug("Vulkan debugger created.")
		}
	}

	surface, err := provider.CreateSurface(instance)
	if err != nil {
		context.Destroy()
		return nil, fmt.Errorf("surface creation failed: %v: %w", err, core.ErrSwapchain)
	}
	context.Surface = surface
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(context); err != nil {
		context.Destroy()
		return nil, err
	}
	context.Memory = NewDeviceAllocator(context.Device.LogicalDevice, context.Device.Memory, context.Allocator)

	core.LogInfo("Vulkan context initialized successfully.")
	return context, nil
}

func validationLayerAvailable() (bool, error) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false, resultError("vkEnumerateInstanceLayerProperties", res, core.ErrAllocation)
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false, resultError("vkEnumerateInstanceLayerProperties", res, core.ErrAllocation)
	}
	for i := range layers {
		layers[i].Deref()
		if CString(layers[i].LayerName[:]) == validationLayerName {
			return true, nil
		}
	}
	return false, nil
}

// ImmediateSubmit records fn into a one-shot command buffer, submits it and blocks until
// the queue has finished executing it.
func (vc *VulkanContext) ImmediateSubmit(fn func(cb *VulkanCommandBuffer) error) error {
	cb, err := AllocateAndBeginSingleUse(vc, vc.Device.CommandPool)
	if err != nil {
		return err
	}
	if err := fn(cb); err != nil {
		cb.Free(vc, vc.Device.CommandPool)
		return err
	}
	return cb.EndSingleUse(vc, vc.Device.CommandPool, vc.Device.Queue)
}

func (vc *VulkanContext) WaitIdle() error {
	if vc.Device == nil || vc.Device.LogicalDevice == nil {
		return nil
	}
	if res := vk.DeviceWaitIdle(vc.Device.LogicalDevice); res != vk.Success {
		return resultError("vkDeviceWaitIdle", res, core.ErrDispatch)
	}
	return nil
}

// Destroy tears down in reverse creation order. Dependents must already be gone.
func (vc *VulkanContext) Destroy() {
	if vc.Memory != nil {
		vc.Memory.Destroy()
		vc.Memory = nil
	}
	DeviceDestroy(vc)

	if vc.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(vc.Instance, vc.Surface, vc.Allocator)
		vc.Surface = vk.NullSurface
	}
	if vc.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vc.Instance, vc.debugMessenger, vc.Allocator)
		vc.debugMessenger = vk.NullDebugReportCallback
	}
	if vc.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
