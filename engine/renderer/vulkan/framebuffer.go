package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/passgraph/engine/core"
)

type Framebuffer struct {
	Handle      vk.Framebuffer
	Width       uint32
	Height      uint32
	Attachments []vk.ImageView
	RenderPass  *RenderPass

	device Device
}

// NewFramebuffer binds one image view per attachment of renderPass.
func NewFramebuffer(device Device, renderPass *RenderPass, width, height uint32, attachments []vk.ImageView) (*Framebuffer, error) {
	expected := len(renderPass.Plan().Formats)
	if len(attachments) != expected {
		return nil, core.ConfigErrorf("framebuffer needs %d attachments, got %d", expected, len(attachments))
	}

	outFramebuffer := &Framebuffer{
		Width:       width,
		Height:      height,
		Attachments: append([]vk.ImageView(nil), attachments...),
		RenderPass:  renderPass,
		device:      device,
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass.Handle(),
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	handle, err := device.CreateFramebuffer(&framebufferCreateInfo)
	if err != nil {
		core.LogError("failed to create framebuffer: %s", err)
		return nil, err
	}
	outFramebuffer.Handle = handle
	return outFramebuffer, nil
}

// BeginInfo returns the begin info covering the whole framebuffer.
func (f *Framebuffer) BeginInfo(clearValues []vk.ClearValue) vk.RenderPassBeginInfo {
	return vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  f.RenderPass.Handle(),
		Framebuffer: f.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{
				Width:  f.Width,
				Height: f.Height,
			},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
}

// BeginRenderPass records the start of the render pass. The first subpass is
// recorded inline or from secondary command buffers.
func (f *Framebuffer) BeginRenderPass(commandBuffer vk.CommandBuffer, clearValues []vk.ClearValue, firstSubpassInline bool) {
	beginInfo := f.BeginInfo(clearValues)
	vk.CmdBeginRenderPass(commandBuffer, &beginInfo, SubpassContents(firstSubpassInline))
}

func SubpassContents(inline bool) vk.SubpassContents {
	if inline {
		return vk.SubpassContentsInline
	}
	return vk.SubpassContentsSecondaryCommandBuffers
}

// ClearValues returns one clear value per attachment of the plan: color
// attachments clear to color, depth/stencil ones to depth and stencil.
func (p *Plan) ClearValues(color [4]float32, depth float32, stencil uint32) []vk.ClearValue {
	values := make([]vk.ClearValue, len(p.Formats))
	for i, format := range p.Formats {
		if IsDepthFormat(format) {
			values[i].SetDepthStencil(depth, stencil)
		} else {
			values[i].SetColor(color[:])
		}
	}
	return values
}

func (f *Framebuffer) Destroy() {
	if f.Handle == nil {
		return
	}
	f.device.DestroyFramebuffer(f.Handle)
	f.Handle = nil
	f.Attachments = nil
	f.RenderPass = nil
}
