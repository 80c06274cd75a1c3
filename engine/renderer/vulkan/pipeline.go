package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/passgraph/engine/core"
)

// BlendMode selects a color blend attachment state.
type BlendMode int

const (
	BlendDisabled BlendMode = iota
	BlendAlpha
	BlendAdditive
)

var colorComponentsRGBA = vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
	vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit)

func (m BlendMode) String() string {
	switch m {
	case BlendDisabled:
		return "disabled"
	case BlendAlpha:
		return "alpha"
	case BlendAdditive:
		return "additive"
	}
	return "unknown"
}

// AttachmentState returns the blend state of one color attachment.
func (m BlendMode) AttachmentState() vk.PipelineColorBlendAttachmentState {
	switch m {
	case BlendAlpha:
		return vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vk.True,
			SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
			DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorOne,
			DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
			AlphaBlendOp:        vk.BlendOpAdd,
			ColorWriteMask:      colorComponentsRGBA,
		}
	case BlendAdditive:
		return vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vk.True,
			SrcColorBlendFactor: vk.BlendFactorOne,
			DstColorBlendFactor: vk.BlendFactorOne,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorOne,
			DstAlphaBlendFactor: vk.BlendFactorOne,
			AlphaBlendOp:        vk.BlendOpAdd,
			ColorWriteMask:      colorComponentsRGBA,
		}
	default:
		return vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vk.False,
			SrcColorBlendFactor: vk.BlendFactorZero,
			DstColorBlendFactor: vk.BlendFactorZero,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorZero,
			DstAlphaBlendFactor: vk.BlendFactorZero,
			AlphaBlendOp:        vk.BlendOpAdd,
			ColorWriteMask:      colorComponentsRGBA,
		}
	}
}

/**
 * @brief The fixed-function state and shaders of one subpass pipeline.
 * Render pass and subpass are filled in by the render pass.
 */
type GraphicsPipelineSettings struct {
	/** @brief The shader stages, borrowed until the render pass is built. */
	Shaders []*Shader

	/** @brief Vertex buffer bindings, empty for generated geometry. */
	VertexBindings []vk.VertexInputBindingDescription
	/** @brief Vertex attributes read from the bindings. */
	VertexAttributes []vk.VertexInputAttributeDescription

	Topology         vk.PrimitiveTopology
	PrimitiveRestart bool

	/** @brief Viewport and scissor counts, their values are dynamic state. */
	ViewportCount uint32
	ScissorCount  uint32

	PolygonMode vk.PolygonMode
	CullMode    vk.CullModeFlags
	FrontFace   vk.FrontFace
	LineWidth   float32

	Samples vk.SampleCountFlagBits

	LogicOpEnable bool
	LogicOp       vk.LogicOp

	DepthTestEnable  bool
	DepthWriteEnable bool
	DepthCompareOp   vk.CompareOp
	MinDepthBounds   float32
	MaxDepthBounds   float32

	/** @brief One blend mode per color attachment of the subpass. */
	BlendModes []BlendMode

	DynamicStates []vk.DynamicState

	Flags vk.PipelineCreateFlags

	/** @brief The pipeline layout, nil to use the render pass's empty layout. */
	Layout vk.PipelineLayout
}

func NewGraphicsPipelineSettings() *GraphicsPipelineSettings {
	return &GraphicsPipelineSettings{
		Topology:         vk.PrimitiveTopologyTriangleList,
		PrimitiveRestart: false,
		ViewportCount:    1,
		ScissorCount:     1,
		PolygonMode:      vk.PolygonModeFill,
		CullMode:         vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:        vk.FrontFaceClockwise,
		LineWidth:        1.0,
		Samples:          vk.SampleCount1Bit,
		LogicOpEnable:    false,
		LogicOp:          vk.LogicOpCopy,
		DepthTestEnable:  false,
		DepthWriteEnable: false,
		DepthCompareOp:   vk.CompareOpLess,
		MinDepthBounds:   0.0,
		MaxDepthBounds:   1.0,
		DynamicStates: []vk.DynamicState{
			vk.DynamicStateViewport,
			vk.DynamicStateScissor,
		},
		Flags: vk.PipelineCreateFlags(vk.PipelineCreateAllowDerivativesBit),
	}
}

func (s *GraphicsPipelineSettings) AddShaderStages(shaders ...*Shader) {
	s.Shaders = append(s.Shaders, shaders...)
}

// SetBlendModes replaces the blend modes of the color attachments.
func (s *GraphicsPipelineSettings) SetBlendModes(modes ...BlendMode) {
	s.BlendModes = append([]BlendMode(nil), modes...)
}

func (s *GraphicsPipelineSettings) SetLayout(layout vk.PipelineLayout) {
	s.Layout = layout
}

// Clone returns a copy that shares no slices with s. Shaders are shared.
func (s *GraphicsPipelineSettings) Clone() *GraphicsPipelineSettings {
	c := *s
	c.Shaders = append([]*Shader(nil), s.Shaders...)
	c.VertexBindings = append([]vk.VertexInputBindingDescription(nil), s.VertexBindings...)
	c.VertexAttributes = append([]vk.VertexInputAttributeDescription(nil), s.VertexAttributes...)
	c.BlendModes = append([]BlendMode(nil), s.BlendModes...)
	c.DynamicStates = append([]vk.DynamicState(nil), s.DynamicStates...)
	return &c
}

// blendAttachments returns the blend state of every color attachment. With
// no modes set each attachment gets BlendDisabled.
func (s *GraphicsPipelineSettings) blendAttachments(colorAttachments int) []vk.PipelineColorBlendAttachmentState {
	modes := s.BlendModes
	if len(modes) == 0 {
		modes = make([]BlendMode, colorAttachments)
	}
	states := make([]vk.PipelineColorBlendAttachmentState, len(modes))
	for i, mode := range modes {
		states[i] = mode.AttachmentState()
	}
	return states
}

// createInfo builds the create info of the pipeline, leaving layout, render
// pass and subpass to the caller.
func (s *GraphicsPipelineSettings) createInfo(colorAttachments int) (vk.GraphicsPipelineCreateInfo, error) {
	stages := make([]vk.PipelineShaderStageCreateInfo, len(s.Shaders))
	for i, shader := range s.Shaders {
		stage, err := shader.StageInfo()
		if err != nil {
			return vk.GraphicsPipelineCreateInfo{}, err
		}
		stages[i] = stage
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(s.VertexBindings)),
		PVertexBindingDescriptions:      s.VertexBindings,
		VertexAttributeDescriptionCount: uint32(len(s.VertexAttributes)),
		PVertexAttributeDescriptions:    s.VertexAttributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               s.Topology,
		PrimitiveRestartEnable: vkBool(s.PrimitiveRestart),
	}

	// Viewport and scissor values are set while recording.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: s.ViewportCount,
		ScissorCount:  s.ScissorCount,
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             s.PolygonMode,
		CullMode:                s.CullMode,
		FrontFace:               s.FrontFace,
		DepthBiasEnable:         vk.False,
		LineWidth:               s.LineWidth,
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: s.Samples,
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(s.DepthTestEnable),
		DepthWriteEnable:      vkBool(s.DepthWriteEnable),
		DepthCompareOp:        s.DepthCompareOp,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MinDepthBounds:        s.MinDepthBounds,
		MaxDepthBounds:        s.MaxDepthBounds,
	}

	blendAttachments := s.blendAttachments(colorAttachments)
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vkBool(s.LogicOpEnable),
		LogicOp:         s.LogicOp,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(s.DynamicStates)),
		PDynamicStates:    s.DynamicStates,
	}

	return vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		Flags:               s.Flags,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		PTessellationState:  nil,
		Layout:              s.Layout,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}, nil
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

/**
 * @brief A pipeline layout owned by the caller.
 */
type PipelineLayout struct {
	Handle vk.PipelineLayout

	device Device
}

func NewPipelineLayout(device Device, setLayouts []vk.DescriptorSetLayout, pushConstants []vk.PushConstantRange) (*PipelineLayout, error) {
	// NOTE: 32 is the max number of ranges we can ever have, since Vulkan only guarantees 128 bytes with 4-byte alignment.
	if len(pushConstants) > 32 {
		return nil, core.ConfigErrorf("cannot have more than 32 push constant ranges, got %d", len(pushConstants))
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(pushConstants)),
		PPushConstantRanges:    pushConstants,
	}

	handle, err := device.CreatePipelineLayout(&pipelineLayoutCreateInfo)
	if err != nil {
		return nil, errors.Wrap(err, "creating pipeline layout")
	}
	return &PipelineLayout{Handle: handle, device: device}, nil
}

func (l *PipelineLayout) Destroy() {
	if l == nil || l.Handle == nil {
		return
	}
	l.device.DestroyPipelineLayout(l.Handle)
	l.Handle = nil
}
