package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Device creates and destroys the native objects a render pass is built
// from. LogicalDevice implements it on top of a vk.Device.
type Device interface {
	CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error)
	DestroyRenderPass(renderPass vk.RenderPass)

	CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(layout vk.PipelineLayout)

	// CreateGraphicsPipelines creates every pipeline of infos in one call.
	// On failure the returned slice still holds whatever pipelines the
	// driver did create, so the caller can release them.
	CreateGraphicsPipelines(infos []vk.GraphicsPipelineCreateInfo) ([]vk.Pipeline, error)
	DestroyPipeline(pipeline vk.Pipeline)

	CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(framebuffer vk.Framebuffer)

	CreateShaderModule(info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)
}

/**
 * @brief A logical device together with the allocator and lock pool used
 * for every object created on it.
 */
type LogicalDevice struct {
	/** @brief The native device handle. */
	Handle vk.Device
	/** @brief Host allocation callbacks, nil for the driver default. */
	Allocator *vk.AllocationCallbacks

	locks *VulkanLockPool
}

func NewLogicalDevice(handle vk.Device, allocator *vk.AllocationCallbacks) *LogicalDevice {
	return &LogicalDevice{
		Handle:    handle,
		Allocator: allocator,
		locks:     NewVulkanLockPool(),
	}
}

func (d *LogicalDevice) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var renderPass vk.RenderPass
	err := d.locks.SafeCall(RenderpassManagement, func() error {
		return resultError("vkCreateRenderPass", vk.CreateRenderPass(d.Handle, info, d.Allocator, &renderPass))
	})
	return renderPass, err
}

func (d *LogicalDevice) DestroyRenderPass(renderPass vk.RenderPass) {
	_ = d.locks.SafeCall(RenderpassManagement, func() error {
		vk.DestroyRenderPass(d.Handle, renderPass, d.Allocator)
		return nil
	})
}

func (d *LogicalDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	err := d.locks.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreatePipelineLayout", vk.CreatePipelineLayout(d.Handle, info, d.Allocator, &layout))
	})
	return layout, err
}

func (d *LogicalDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	_ = d.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipelineLayout(d.Handle, layout, d.Allocator)
		return nil
	})
}

func (d *LogicalDevice) CreateGraphicsPipelines(infos []vk.GraphicsPipelineCreateInfo) ([]vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, len(infos))
	err := d.locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateGraphicsPipelines(
			d.Handle,
			vk.NullPipelineCache,
			uint32(len(infos)),
			infos,
			d.Allocator,
			pipelines)
		return resultError("vkCreateGraphicsPipelines", result)
	})
	return pipelines, err
}

func (d *LogicalDevice) DestroyPipeline(pipeline vk.Pipeline) {
	_ = d.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(d.Handle, pipeline, d.Allocator)
		return nil
	})
}

func (d *LogicalDevice) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var framebuffer vk.Framebuffer
	err := d.locks.SafeCall(FramebufferManagement, func() error {
		return resultError("vkCreateFramebuffer", vk.CreateFramebuffer(d.Handle, info, d.Allocator, &framebuffer))
	})
	return framebuffer, err
}

func (d *LogicalDevice) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	_ = d.locks.SafeCall(FramebufferManagement, func() error {
		vk.DestroyFramebuffer(d.Handle, framebuffer, d.Allocator)
		return nil
	})
}

func (d *LogicalDevice) CreateShaderModule(info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	var module vk.ShaderModule
	err := d.locks.SafeCall(ShaderManagement, func() error {
		return resultError("vkCreateShaderModule", vk.CreateShaderModule(d.Handle, info, d.Allocator, &module))
	})
	return module, err
}

func (d *LogicalDevice) DestroyShaderModule(module vk.ShaderModule) {
	_ = d.locks.SafeCall(ShaderManagement, func() error {
		vk.DestroyShaderModule(d.Handle, module, d.Allocator)
		return nil
	})
}

// WaitIdle blocks until the device has finished all submitted work.
func (d *LogicalDevice) WaitIdle() error {
	return d.locks.SafeCall(DeviceManagement, func() error {
		return resultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.Handle))
	})
}

// Destroy releases the device itself. Every object created on it must
// already be destroyed.
func (d *LogicalDevice) Destroy() {
	if d.Handle == nil {
		return
	}
	_ = d.locks.SafeCall(DeviceManagement, func() error {
		vk.DestroyDevice(d.Handle, d.Allocator)
		d.Handle = nil
		return nil
	})
}
