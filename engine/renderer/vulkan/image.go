package vulkan

import (
	"strings"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/passgraph/engine/core"
)

// ImageCapabilities is the set of ways an image is used. It folds into the
// usage flags the image must be created with.
type ImageCapabilities uint32

const (
	CapabilityTransferSrc ImageCapabilities = 1 << iota
	CapabilityTransferDst
	CapabilityColorAttachment
	CapabilityDepthStencilAttachment
	CapabilityInputAttachment
	CapabilitySampled
)

var capabilityUsage = []struct {
	capability ImageCapabilities
	usage      vk.ImageUsageFlagBits
	name       string
}{
	{CapabilityTransferSrc, vk.ImageUsageTransferSrcBit, "transfer-src"},
	{CapabilityTransferDst, vk.ImageUsageTransferDstBit, "transfer-dst"},
	{CapabilityColorAttachment, vk.ImageUsageColorAttachmentBit, "color-attachment"},
	{CapabilityDepthStencilAttachment, vk.ImageUsageDepthStencilAttachmentBit, "depth-stencil-attachment"},
	{CapabilityInputAttachment, vk.ImageUsageInputAttachmentBit, "input-attachment"},
	{CapabilitySampled, vk.ImageUsageSampledBit, "sampled"},
}

func (c ImageCapabilities) Has(other ImageCapabilities) bool {
	return c&other == other
}

// UsageFlags folds the capabilities into image usage flags.
func (c ImageCapabilities) UsageFlags() vk.ImageUsageFlags {
	var flags vk.ImageUsageFlags
	for _, entry := range capabilityUsage {
		if c.Has(entry.capability) {
			flags |= vk.ImageUsageFlags(entry.usage)
		}
	}
	return flags
}

func (c ImageCapabilities) String() string {
	var names []string
	for _, entry := range capabilityUsage {
		if c.Has(entry.capability) {
			names = append(names, entry.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// IsDepthFormat reports whether format has a depth or stencil aspect.
func IsDepthFormat(format vk.Format) bool {
	switch format {
	case vk.FormatD16Unorm, vk.FormatX8D24UnormPack32, vk.FormatD32Sfloat, vk.FormatS8Uint,
		vk.FormatD16UnormS8Uint, vk.FormatD24UnormS8Uint, vk.FormatD32SfloatS8Uint:
		return true
	}
	return false
}

func hasStencil(format vk.Format) bool {
	switch format {
	case vk.FormatS8Uint, vk.FormatD16UnormS8Uint, vk.FormatD24UnormS8Uint, vk.FormatD32SfloatS8Uint:
		return true
	}
	return false
}

// AspectMask returns the aspects a view or barrier of format covers.
func AspectMask(format vk.Format) vk.ImageAspectFlags {
	if !IsDepthFormat(format) {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	var mask vk.ImageAspectFlags
	if format != vk.FormatS8Uint {
		mask |= vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	if hasStencil(format) {
		mask |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return mask
}

// ImageSpec describes a 2D image by its attributes and capabilities.
type ImageSpec struct {
	Width         uint32
	Height        uint32
	Format        vk.Format
	Capabilities  ImageCapabilities
	InitialLayout vk.ImageLayout
}

// CreateInfo returns the create info of an optimally tiled, single sample
// image with the usage its capabilities need.
func (s ImageSpec) CreateInfo() vk.ImageCreateInfo {
	return vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    s.Format,
		Extent: vk.Extent3D{
			Width:  s.Width,
			Height: s.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         s.Capabilities.UsageFlags(),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: s.InitialLayout,
	}
}

// TransitionBarrier builds the barrier moving image from oldLayout to
// newLayout, together with the source and destination stages to record it
// with.
func TransitionBarrier(image vk.Image, aspect vk.ImageAspectFlags, oldLayout, newLayout vk.ImageLayout) (vk.ImageMemoryBarrier, vk.PipelineStageFlags, vk.PipelineStageFlags, error) {
	src, ok := LayoutAccessFor(oldLayout)
	if !ok {
		return vk.ImageMemoryBarrier{}, 0, 0, core.ConfigErrorf("unsupported source layout %s", LayoutName(oldLayout))
	}
	dst, ok := LayoutAccessFor(newLayout)
	if !ok || newLayout == vk.ImageLayoutUndefined {
		return vk.ImageMemoryBarrier{}, 0, 0, core.ConfigErrorf("unsupported destination layout %s", LayoutName(newLayout))
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       src.AccessMask,
		DstAccessMask:       dst.AccessMask,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	return barrier, src.StageMask, dst.StageMask, nil
}

/**
 * @brief An image created elsewhere together with the layout it is
 * currently in.
 */
type VulkanImage struct {
	Handle vk.Image
	View   vk.ImageView
	Spec   ImageSpec
	Layout vk.ImageLayout
}

func NewVulkanImage(handle vk.Image, view vk.ImageView, spec ImageSpec) *VulkanImage {
	return &VulkanImage{
		Handle: handle,
		View:   view,
		Spec:   spec,
		Layout: spec.InitialLayout,
	}
}

// TransitionLayout records a barrier moving the image to newLayout. Nothing
// is recorded when the image is already in that layout.
func (img *VulkanImage) TransitionLayout(commandBuffer vk.CommandBuffer, newLayout vk.ImageLayout) error {
	if img.Layout == newLayout {
		return nil
	}
	barrier, srcStage, dstStage, err := TransitionBarrier(img.Handle, AspectMask(img.Spec.Format), img.Layout, newLayout)
	if err != nil {
		return err
	}
	vk.CmdPipelineBarrier(commandBuffer, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	img.Layout = newLayout
	return nil
}

// AttachmentCapabilities returns, per attachment, the capabilities an image
// needs to serve as that attachment of the plan.
func (p *Plan) AttachmentCapabilities() []ImageCapabilities {
	caps := make([]ImageCapabilities, len(p.Formats))
	for i := range caps {
		for s := 0; s < p.Matrix.SubpassCount(); s++ {
			switch p.Matrix.At(i, s) {
			case AccessColorWrite:
				caps[i] |= CapabilityColorAttachment
			case AccessDepthStencilWrite:
				caps[i] |= CapabilityDepthStencilAttachment
			case AccessInputRead:
				caps[i] |= CapabilityInputAttachment
			}
		}
		switch p.FinalLayouts[i] {
		case vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutDepthStencilReadOnlyOptimal:
			caps[i] |= CapabilitySampled
		case vk.ImageLayoutTransferSrcOptimal:
			caps[i] |= CapabilityTransferSrc
		case vk.ImageLayoutTransferDstOptimal:
			caps[i] |= CapabilityTransferDst
		}
	}
	return caps
}
