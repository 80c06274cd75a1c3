package vulkan

import (
	vk "github.com/goki/vulkan"
)

// AccessKind is the way a subpass touches an attachment.
type AccessKind uint8

const (
	AccessUnused AccessKind = iota
	AccessColorWrite
	AccessDepthStencilWrite
	AccessInputRead
)

func (k AccessKind) String() string {
	switch k {
	case AccessUnused:
		return "unused"
	case AccessColorWrite:
		return "color-write"
	case AccessDepthStencilWrite:
		return "depth-stencil-write"
	case AccessInputRead:
		return "input-read"
	}
	return "unknown"
}

// IsWrite reports whether the access writes the attachment.
func (k AccessKind) IsWrite() bool {
	return k == AccessColorWrite || k == AccessDepthStencilWrite
}

// StageMask is the pipeline stage that performs the access.
func (k AccessKind) StageMask() vk.PipelineStageFlags {
	switch k {
	case AccessColorWrite:
		return vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case AccessDepthStencilWrite:
		return vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit)
	case AccessInputRead:
		return vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	}
	return 0
}

// AccessMask is the memory access the kind stands for.
func (k AccessKind) AccessMask() vk.AccessFlags {
	switch k {
	case AccessColorWrite:
		return vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	case AccessDepthStencilWrite:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	case AccessInputRead:
		return vk.AccessFlags(vk.AccessInputAttachmentReadBit)
	}
	return 0
}

// LayoutAccess is the access and stage an image must be synchronized with
// when it is transitioned into, or out of, a layout.
type LayoutAccess struct {
	AccessMask vk.AccessFlags
	StageMask  vk.PipelineStageFlags
}

// LayoutAccessFor returns the access/stage pair for a layout. The boolean is
// false for layouts this package never transitions through.
func LayoutAccessFor(layout vk.ImageLayout) (LayoutAccess, bool) {
	switch layout {
	case vk.ImageLayoutUndefined:
		return LayoutAccess{
			AccessMask: 0,
			StageMask:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		}, true
	case vk.ImageLayoutGeneral:
		return LayoutAccess{
			AccessMask: vk.AccessFlags(vk.AccessMemoryReadBit) | vk.AccessFlags(vk.AccessMemoryWriteBit),
			StageMask:  vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		}, true
	case vk.ImageLayoutTransferSrcOptimal:
		return LayoutAccess{
			AccessMask: vk.AccessFlags(vk.AccessTransferReadBit),
			StageMask:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		}, true
	case vk.ImageLayoutTransferDstOptimal:
		return LayoutAccess{
			AccessMask: vk.AccessFlags(vk.AccessTransferWriteBit),
			StageMask:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		}, true
	case vk.ImageLayoutColorAttachmentOptimal:
		return LayoutAccess{
			AccessMask: AccessColorWrite.AccessMask(),
			StageMask:  AccessColorWrite.StageMask(),
		}, true
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		return LayoutAccess{
			AccessMask: AccessDepthStencilWrite.AccessMask(),
			StageMask:  AccessDepthStencilWrite.StageMask(),
		}, true
	case vk.ImageLayoutDepthStencilReadOnlyOptimal:
		return LayoutAccess{
			AccessMask: vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit) | vk.AccessFlags(vk.AccessInputAttachmentReadBit),
			StageMask:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		}, true
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return LayoutAccess{
			AccessMask: vk.AccessFlags(vk.AccessShaderReadBit),
			StageMask:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		}, true
	case vk.ImageLayoutPresentSrc:
		return LayoutAccess{
			AccessMask: 0,
			StageMask:  vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		}, true
	}
	return LayoutAccess{}, false
}

// LayoutName is a short printable name for the layouts attachments use.
func LayoutName(layout vk.ImageLayout) string {
	switch layout {
	case vk.ImageLayoutUndefined:
		return "undefined"
	case vk.ImageLayoutGeneral:
		return "general"
	case vk.ImageLayoutColorAttachmentOptimal:
		return "color-attachment"
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		return "depth-stencil-attachment"
	case vk.ImageLayoutDepthStencilReadOnlyOptimal:
		return "depth-stencil-read-only"
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return "shader-read-only"
	case vk.ImageLayoutTransferSrcOptimal:
		return "transfer-src"
	case vk.ImageLayoutTransferDstOptimal:
		return "transfer-dst"
	case vk.ImageLayoutPresentSrc:
		return "present-src"
	}
	return "other"
}
