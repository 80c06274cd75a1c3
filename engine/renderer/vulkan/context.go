package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/passgraph/engine/core"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// VulkanContext is a headless instance with one logical device that has a
// graphics queue. Render passes are compiled against its Device.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	PhysicalDevice     vk.PhysicalDevice
	Properties         vk.PhysicalDeviceProperties
	GraphicsQueueIndex uint32

	Device *LogicalDevice
}

// NewVulkanContext loads Vulkan through procAddr, creates the instance and
// picks a physical device according to cfg.
func NewVulkanContext(cfg core.RendererConfig, procAddr unsafe.Pointer) (*VulkanContext, error) {
	if procAddr == nil {
		return nil, core.NativeErrorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to initialize vk"), core.ErrNativeCreation)
	}

	context := &VulkanContext{}
	if err := context.createInstance(cfg); err != nil {
		return nil, err
	}
	if err := context.selectPhysicalDevice(cfg.PreferDiscreteGPU); err != nil {
		context.Destroy()
		return nil, err
	}
	if err := context.createLogicalDevice(); err != nil {
		context.Destroy()
		return nil, err
	}
	return context, nil
}

func (vc *VulkanContext) createInstance(cfg core.RendererConfig) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(cfg.ApplicationName),
		PEngineName:        VulkanSafeString("passgraph"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	var extensions []string
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1 // VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)

	var layers []string
	if cfg.Validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		available, err := instanceLayers()
		if err != nil {
			return err
		}
		if _, ok := available[validationLayerName]; !ok {
			return core.ConfigErrorf("required validation layer is missing: %s", validationLayerName)
		}
		layers = append(layers, validationLayerName)
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if err := resultError("vkCreateInstance", vk.CreateInstance(&createInfo, vc.Allocator, &vc.Instance)); err != nil {
		core.LogError("%s", err)
		return err
	}
	if err := vk.InitInstance(vc.Instance); err != nil {
		return errors.Mark(errors.Wrap(err, "loading instance functions"), core.ErrNativeCreation)
	}
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func instanceLayers() (map[string]struct{}, error) {
	var count uint32
	if err := resultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, err
	}
	properties := make([]vk.LayerProperties, count)
	if err := resultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, properties)); err != nil {
		return nil, err
	}
	layers := make(map[string]struct{}, count)
	for i := range properties {
		properties[i].Deref()
		layers[cString(properties[i].LayerName[:])] = struct{}{}
	}
	return layers, nil
}

func (vc *VulkanContext) selectPhysicalDevice(preferDiscrete bool) error {
	var count uint32
	if err := resultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(vc.Instance, &count, nil)); err != nil {
		return err
	}
	if count == 0 {
		return core.NativeErrorf("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := resultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(vc.Instance, &count, devices)); err != nil {
		return err
	}

	selected := -1
	for i, device := range devices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(device, &properties)
		properties.Deref()

		queueIndex, ok := graphicsQueueFamily(device)
		if !ok {
			core.LogInfo("Device '%s' has no graphics queue, skipping.", cString(properties.DeviceName[:]))
			continue
		}
		discrete := properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu
		if selected >= 0 && !(preferDiscrete && discrete) {
			continue
		}
		selected = i
		vc.PhysicalDevice = device
		vc.Properties = properties
		vc.GraphicsQueueIndex = queueIndex
		if !preferDiscrete || discrete {
			break
		}
	}
	if selected < 0 {
		return core.NativeErrorf("no physical devices were found which meet the requirements")
	}

	api := vk.Version(vc.Properties.ApiVersion)
	core.LogInfo("Selected device: '%s' (Vulkan %d.%d.%d).",
		cString(vc.Properties.DeviceName[:]), api.Major(), api.Minor(), api.Patch())
	return nil
}

func graphicsQueueFamily(device vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)
	for i := range families {
		families[i].Deref()
		if vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

func (vc *VulkanContext) createLogicalDevice() error {
	core.LogInfo("Creating logical device...")
	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: vc.GraphicsQueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(queueCreateInfos)),
		PQueueCreateInfos:    queueCreateInfos,
	}

	var handle vk.Device
	if err := resultError("vkCreateDevice", vk.CreateDevice(vc.PhysicalDevice, &deviceCreateInfo, vc.Allocator, &handle)); err != nil {
		return err
	}
	vc.Device = NewLogicalDevice(handle, vc.Allocator)
	core.LogInfo("Logical device created.")
	return nil
}

// Destroy waits for the device to go idle and releases device and instance.
func (vc *VulkanContext) Destroy() {
	if vc.Device != nil {
		if err := vc.Device.WaitIdle(); err != nil {
			core.LogWarn("%s", err)
		}
		core.LogInfo("Destroying logical device...")
		vc.Device.Destroy()
		vc.Device = nil
	}
	vc.PhysicalDevice = nil
	if vc.Instance != nil {
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}
