package loaders

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/passgraph/engine/core"
	"github.com/spaghettifunk/passgraph/engine/renderer/vulkan"
	"golang.org/x/exp/maps"
)

// Names accepted in pass files. The tables are read-only.
var (
	formatNames = map[string]vk.Format{
		"r8g8b8a8_unorm":      vk.FormatR8g8b8a8Unorm,
		"r8g8b8a8_srgb":       vk.FormatR8g8b8a8Srgb,
		"b8g8r8a8_unorm":      vk.FormatB8g8r8a8Unorm,
		"b8g8r8a8_srgb":       vk.FormatB8g8r8a8Srgb,
		"a2b10g10r10_unorm":   vk.FormatA2b10g10r10UnormPack32,
		"r16g16b16a16_sfloat": vk.FormatR16g16b16a16Sfloat,
		"r32g32b32a32_sfloat": vk.FormatR32g32b32a32Sfloat,
		"r32_sfloat":          vk.FormatR32Sfloat,
		"d16_unorm":           vk.FormatD16Unorm,
		"d32_sfloat":          vk.FormatD32Sfloat,
		"d24_unorm_s8_uint":   vk.FormatD24UnormS8Uint,
		"d32_sfloat_s8_uint":  vk.FormatD32SfloatS8Uint,
	}

	layoutNames = map[string]vk.ImageLayout{
		"undefined":                vk.ImageLayoutUndefined,
		"general":                  vk.ImageLayoutGeneral,
		"color_attachment":         vk.ImageLayoutColorAttachmentOptimal,
		"depth_stencil_attachment": vk.ImageLayoutDepthStencilAttachmentOptimal,
		"depth_stencil_read_only":  vk.ImageLayoutDepthStencilReadOnlyOptimal,
		"shader_read_only":         vk.ImageLayoutShaderReadOnlyOptimal,
		"transfer_src":             vk.ImageLayoutTransferSrcOptimal,
		"transfer_dst":             vk.ImageLayoutTransferDstOptimal,
		"present_src":              vk.ImageLayoutPresentSrc,
	}

	stageNames = map[string]vk.PipelineStageFlagBits{
		"top_of_pipe":             vk.PipelineStageTopOfPipeBit,
		"draw_indirect":           vk.PipelineStageDrawIndirectBit,
		"vertex_input":            vk.PipelineStageVertexInputBit,
		"vertex_shader":           vk.PipelineStageVertexShaderBit,
		"fragment_shader":         vk.PipelineStageFragmentShaderBit,
		"early_fragment_tests":    vk.PipelineStageEarlyFragmentTestsBit,
		"late_fragment_tests":     vk.PipelineStageLateFragmentTestsBit,
		"color_attachment_output": vk.PipelineStageColorAttachmentOutputBit,
		"compute_shader":          vk.PipelineStageComputeShaderBit,
		"transfer":                vk.PipelineStageTransferBit,
		"bottom_of_pipe":          vk.PipelineStageBottomOfPipeBit,
		"host":                    vk.PipelineStageHostBit,
		"all_graphics":            vk.PipelineStageAllGraphicsBit,
		"all_commands":            vk.PipelineStageAllCommandsBit,
	}

	accessNames = map[string]vk.AccessFlagBits{
		"indirect_command_read":          vk.AccessIndirectCommandReadBit,
		"index_read":                     vk.AccessIndexReadBit,
		"vertex_attribute_read":          vk.AccessVertexAttributeReadBit,
		"uniform_read":                   vk.AccessUniformReadBit,
		"input_attachment_read":          vk.AccessInputAttachmentReadBit,
		"shader_read":                    vk.AccessShaderReadBit,
		"shader_write":                   vk.AccessShaderWriteBit,
		"color_attachment_read":          vk.AccessColorAttachmentReadBit,
		"color_attachment_write":         vk.AccessColorAttachmentWriteBit,
		"depth_stencil_attachment_read":  vk.AccessDepthStencilAttachmentReadBit,
		"depth_stencil_attachment_write": vk.AccessDepthStencilAttachmentWriteBit,
		"transfer_read":                  vk.AccessTransferReadBit,
		"transfer_write":                 vk.AccessTransferWriteBit,
		"host_read":                      vk.AccessHostReadBit,
		"host_write":                     vk.AccessHostWriteBit,
		"memory_read":                    vk.AccessMemoryReadBit,
		"memory_write":                   vk.AccessMemoryWriteBit,
	}

	shaderStageNames = map[string]vk.ShaderStageFlagBits{
		"vertex":                  vk.ShaderStageVertexBit,
		"fragment":                vk.ShaderStageFragmentBit,
		"geometry":                vk.ShaderStageGeometryBit,
		"tessellation_control":    vk.ShaderStageTessellationControlBit,
		"tessellation_evaluation": vk.ShaderStageTessellationEvaluationBit,
	}

	blendNames = map[string]vulkan.BlendMode{
		vulkan.BlendDisabled.String(): vulkan.BlendDisabled,
		vulkan.BlendAlpha.String():    vulkan.BlendAlpha,
		vulkan.BlendAdditive.String(): vulkan.BlendAdditive,
	}

	topologyNames = map[string]vk.PrimitiveTopology{
		"point_list":     vk.PrimitiveTopologyPointList,
		"line_list":      vk.PrimitiveTopologyLineList,
		"line_strip":     vk.PrimitiveTopologyLineStrip,
		"triangle_list":  vk.PrimitiveTopologyTriangleList,
		"triangle_strip": vk.PrimitiveTopologyTriangleStrip,
		"triangle_fan":   vk.PrimitiveTopologyTriangleFan,
	}

	polygonModeNames = map[string]vk.PolygonMode{
		"fill":  vk.PolygonModeFill,
		"line":  vk.PolygonModeLine,
		"point": vk.PolygonModePoint,
	}

	cullModeNames = map[string]vk.CullModeFlags{
		"none":           vk.CullModeFlags(vk.CullModeNone),
		"front":          vk.CullModeFlags(vk.CullModeFrontBit),
		"back":           vk.CullModeFlags(vk.CullModeBackBit),
		"front_and_back": vk.CullModeFlags(vk.CullModeFrontAndBack),
	}

	frontFaceNames = map[string]vk.FrontFace{
		"clockwise":         vk.FrontFaceClockwise,
		"counter_clockwise": vk.FrontFaceCounterClockwise,
	}

	compareOpNames = map[string]vk.CompareOp{
		"never":            vk.CompareOpNever,
		"less":             vk.CompareOpLess,
		"equal":            vk.CompareOpEqual,
		"less_or_equal":    vk.CompareOpLessOrEqual,
		"greater":          vk.CompareOpGreater,
		"not_equal":        vk.CompareOpNotEqual,
		"greater_or_equal": vk.CompareOpGreaterOrEqual,
		"always":           vk.CompareOpAlways,
	}

	dynamicStateNames = map[string]vk.DynamicState{
		"viewport":             vk.DynamicStateViewport,
		"scissor":              vk.DynamicStateScissor,
		"line_width":           vk.DynamicStateLineWidth,
		"depth_bias":           vk.DynamicStateDepthBias,
		"blend_constants":      vk.DynamicStateBlendConstants,
		"depth_bounds":         vk.DynamicStateDepthBounds,
		"stencil_compare_mask": vk.DynamicStateStencilCompareMask,
		"stencil_write_mask":   vk.DynamicStateStencilWriteMask,
		"stencil_reference":    vk.DynamicStateStencilReference,
	}

	sampleCountNames = map[int]vk.SampleCountFlagBits{
		1:  vk.SampleCount1Bit,
		2:  vk.SampleCount2Bit,
		4:  vk.SampleCount4Bit,
		8:  vk.SampleCount8Bit,
		16: vk.SampleCount16Bit,
	}
)

// sortedKeys lists the keys of m in ascending order.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// lookup resolves one name, listing the accepted names when it is unknown.
func lookup[T any](table map[string]T, kind string, name string) (T, error) {
	if v, ok := table[strings.ToLower(name)]; ok {
		return v, nil
	}
	var zero T
	return zero, core.ConfigErrorf("unknown %s %q, expected one of: %s", kind, name, strings.Join(sortedKeys(table), ", "))
}

// lookupList resolves every name of a list.
func lookupList[T any](table map[string]T, kind string, names []string) ([]T, error) {
	out := make([]T, 0, len(names))
	for _, name := range names {
		v, err := lookup(table, kind, name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func stageMask(names []string) (vk.PipelineStageFlags, error) {
	bits, err := lookupList(stageNames, "pipeline stage", names)
	if err != nil {
		return 0, err
	}
	var mask vk.PipelineStageFlags
	for _, bit := range bits {
		mask |= vk.PipelineStageFlags(bit)
	}
	return mask, nil
}

func accessMask(names []string) (vk.AccessFlags, error) {
	bits, err := lookupList(accessNames, "access", names)
	if err != nil {
		return 0, err
	}
	var mask vk.AccessFlags
	for _, bit := range bits {
		mask |= vk.AccessFlags(bit)
	}
	return mask, nil
}

// FormatName is the pass-file name of format.
func FormatName(format vk.Format) string {
	for name, f := range formatNames {
		if f == format {
			return name
		}
	}
	return fmt.Sprintf("format(%d)", format)
}

// StageNames spells out the bits of a stage mask, "none" for an empty mask.
func StageNames(mask vk.PipelineStageFlags) string {
	return bitNames(stageNames, func(bit vk.PipelineStageFlagBits) bool {
		return mask&vk.PipelineStageFlags(bit) != 0
	})
}

// AccessNames spells out the bits of an access mask, "none" for an empty mask.
func AccessNames(mask vk.AccessFlags) string {
	return bitNames(accessNames, func(bit vk.AccessFlagBits) bool {
		return mask&vk.AccessFlags(bit) != 0
	})
}

func bitNames[T any](table map[string]T, set func(T) bool) string {
	var names []string
	for _, name := range sortedKeys(table) {
		if set(table[name]) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
