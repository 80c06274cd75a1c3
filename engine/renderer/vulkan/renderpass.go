package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/passgraph/engine/core"
)

// SubpassDescription declares how one subpass uses the attachments of a
// render pass. Indices refer to the attachment format list.
type SubpassDescription struct {
	InputAttachments        []uint32
	ColorAttachments        []uint32
	DepthStencilAttachments []uint32
	PreDependencies         []ExternalDependency
	PostDependencies        []ExternalDependency
	// Pipeline is copied when the render pass is built.
	Pipeline *GraphicsPipelineSettings
}

func (d SubpassDescription) clone() SubpassDescription {
	c := SubpassDescription{
		InputAttachments:        append([]uint32(nil), d.InputAttachments...),
		ColorAttachments:        append([]uint32(nil), d.ColorAttachments...),
		DepthStencilAttachments: append([]uint32(nil), d.DepthStencilAttachments...),
		PreDependencies:         append([]ExternalDependency(nil), d.PreDependencies...),
		PostDependencies:        append([]ExternalDependency(nil), d.PostDependencies...),
	}
	if d.Pipeline != nil {
		c.Pipeline = d.Pipeline.Clone()
	}
	return c
}

// Plan is everything derived from a render pass description before any
// native object exists.
type Plan struct {
	Formats      []vk.Format
	FinalLayouts []vk.ImageLayout
	Matrix       *AccessMatrix
	Subpasses    []SubpassAttachments
	Dependencies []Dependency
}

// PlanRenderPass analyzes the attachment usage of the subpasses and resolves
// the dependency list.
func PlanRenderPass(formats []vk.Format, finalLayouts []vk.ImageLayout, subpasses []SubpassDescription) (*Plan, error) {
	if err := checkAttachmentArrays(formats, finalLayouts); err != nil {
		return nil, err
	}
	if err := checkSubpasses(subpasses, false); err != nil {
		return nil, err
	}
	descriptions := make([]SubpassDescription, len(subpasses))
	for i := range subpasses {
		descriptions[i] = subpasses[i].clone()
	}
	return planSubpasses(formats, finalLayouts, descriptions)
}

func planSubpasses(formats []vk.Format, finalLayouts []vk.ImageLayout, subpasses []SubpassDescription) (*Plan, error) {
	matrix, resolved, err := AnalyzeAttachments(len(formats), subpasses)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Formats:      append([]vk.Format(nil), formats...),
		FinalLayouts: append([]vk.ImageLayout(nil), finalLayouts...),
		Matrix:       matrix,
		Subpasses:    resolved,
		Dependencies: ResolveDependencies(matrix, subpasses),
	}, nil
}

func checkAttachmentArrays(formats []vk.Format, finalLayouts []vk.ImageLayout) error {
	if len(formats) != len(finalLayouts) {
		return core.ConfigErrorf("%d attachment formats but %d final layouts", len(formats), len(finalLayouts))
	}
	return nil
}

// checkSubpasses rejects a pass without subpasses and blend modes that do not
// match the color attachments of their subpass. Pipeline settings are
// required when requirePipelines is set.
func checkSubpasses(subpasses []SubpassDescription, requirePipelines bool) error {
	if len(subpasses) == 0 {
		return core.ConfigErrorf("render pass has no subpasses")
	}
	for i, subpass := range subpasses {
		if subpass.Pipeline == nil {
			if requirePipelines {
				return core.ConfigErrorf("subpass %d has no pipeline settings", i)
			}
			continue
		}
		modes, colors := len(subpass.Pipeline.BlendModes), len(subpass.ColorAttachments)
		if modes != 0 && modes != colors {
			return core.ConfigErrorf("subpass %d has %d blend modes for %d color attachments", i, modes, colors)
		}
	}
	return nil
}

// AttachmentDescriptions returns the native description of every attachment.
func (p *Plan) AttachmentDescriptions() []vk.AttachmentDescription {
	descriptions := make([]vk.AttachmentDescription, len(p.Formats))
	for i := range p.Formats {
		descriptions[i] = vk.AttachmentDescription{
			Format:         p.Formats[i],
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined, // Do not expect any particular layout before render pass starts.
			FinalLayout:    p.FinalLayouts[i],
		}
	}
	return descriptions
}

func (p *Plan) subpassDescriptions() []vk.SubpassDescription {
	descriptions := make([]vk.SubpassDescription, len(p.Subpasses))
	for i, subpass := range p.Subpasses {
		description := vk.SubpassDescription{
			PipelineBindPoint:       vk.PipelineBindPointGraphics,
			InputAttachmentCount:    uint32(len(subpass.Input)),
			PInputAttachments:       references(subpass.Input),
			ColorAttachmentCount:    uint32(len(subpass.Color)),
			PColorAttachments:       references(subpass.Color),
			PreserveAttachmentCount: uint32(len(subpass.Preserve)),
			PPreserveAttachments:    subpass.Preserve,
		}
		if subpass.DepthStencil != nil {
			depth := subpass.DepthStencil.vulkan()
			description.PDepthStencilAttachment = &depth
		}
		descriptions[i] = description
	}
	return descriptions
}

func references(refs []AttachmentRef) []vk.AttachmentReference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]vk.AttachmentReference, len(refs))
	for i, ref := range refs {
		out[i] = ref.vulkan()
	}
	return out
}

func (p *Plan) createInfo() *vk.RenderPassCreateInfo {
	attachments := p.AttachmentDescriptions()
	subpasses := p.subpassDescriptions()
	dependencies := make([]vk.SubpassDependency, len(p.Dependencies))
	for i, dependency := range p.Dependencies {
		dependencies[i] = dependency.vulkan()
	}
	return &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
}

/**
 * @brief A compiled render pass with one graphics pipeline per subpass.
 */
type RenderPass struct {
	/** @brief Identifier used to correlate log lines of one pass. */
	ID uuid.UUID

	handle      vk.RenderPass
	device      Device
	plan        *Plan
	settings    []*GraphicsPipelineSettings
	pipelines   []vk.Pipeline
	emptyLayout *PipelineLayout
	destroyed   bool
}

// NewRenderPass builds the render pass described by the attachment formats,
// their final layouts and the subpasses, and creates the pipeline of every
// subpass. Pipeline settings are copied; their shaders must stay alive until
// NewRenderPass returns. Either everything is created or nothing is.
func NewRenderPass(device Device, formats []vk.Format, finalLayouts []vk.ImageLayout, subpasses []SubpassDescription) (*RenderPass, error) {
	clock := core.NewClock()
	clock.Start()

	if err := checkAttachmentArrays(formats, finalLayouts); err != nil {
		return nil, err
	}
	if err := checkSubpasses(subpasses, true); err != nil {
		return nil, err
	}

	descriptions := make([]SubpassDescription, len(subpasses))
	settings := make([]*GraphicsPipelineSettings, len(subpasses))
	for i := range subpasses {
		descriptions[i] = subpasses[i].clone()
		settings[i] = descriptions[i].Pipeline
	}

	plan, err := planSubpasses(formats, finalLayouts, descriptions)
	if err != nil {
		return nil, err
	}

	var shaders []*Shader
	for _, s := range settings {
		shaders = append(shaders, s.Shaders...)
	}
	if err := WaitShaders(shaders...); err != nil {
		return nil, errors.Wrap(err, "loading subpass shaders")
	}

	rp := &RenderPass{
		device:   device,
		plan:     plan,
		settings: settings,
	}

	handle, err := device.CreateRenderPass(plan.createInfo())
	if err != nil {
		core.LogError("failed to create render pass: %s", err)
		return nil, err
	}
	rp.handle = handle

	if err := rp.createPipelines(); err != nil {
		core.LogError("failed to create subpass pipelines: %s", err)
		rp.release()
		return nil, err
	}

	rp.ID = core.IdentifierAcquireNewID(rp)
	clock.Stop()
	core.LogDebug("render pass %s created: %d attachments, %d subpasses, %d dependencies, %d preserved references in %s",
		rp.ID, len(plan.Formats), len(plan.Subpasses), len(plan.Dependencies), plan.preserveCount(), clock.Elapsed())
	return rp, nil
}

func (p *Plan) preserveCount() int {
	n := 0
	for _, subpass := range p.Subpasses {
		n += len(subpass.Preserve)
	}
	return n
}

func (rp *RenderPass) createPipelines() error {
	for _, s := range rp.settings {
		if s.Layout == nil {
			layout, err := NewPipelineLayout(rp.device, nil, nil)
			if err != nil {
				return err
			}
			rp.emptyLayout = layout
			break
		}
	}

	infos := make([]vk.GraphicsPipelineCreateInfo, len(rp.settings))
	for i, s := range rp.settings {
		info, err := s.createInfo(len(rp.plan.Subpasses[i].Color))
		if err != nil {
			return errors.Wrapf(err, "subpass %d", i)
		}
		if info.Layout == nil {
			info.Layout = rp.emptyLayout.Handle
		}
		info.RenderPass = rp.handle
		info.Subpass = uint32(i)
		infos[i] = info
	}

	pipelines, err := rp.device.CreateGraphicsPipelines(infos)
	rp.pipelines = pipelines
	if err != nil {
		return err
	}
	if len(pipelines) != len(infos) {
		return core.NativeErrorf("vkCreateGraphicsPipelines returned %d pipelines for %d subpasses", len(pipelines), len(infos))
	}
	for i, pipeline := range pipelines {
		if pipeline == nil {
			return core.NativeErrorf("vkCreateGraphicsPipelines returned no pipeline for subpass %d", i)
		}
	}
	return nil
}

// release destroys the pipelines, the empty layout and the render pass, in
// that order, skipping whatever was never created.
func (rp *RenderPass) release() {
	for _, pipeline := range rp.pipelines {
		if pipeline != nil {
			rp.device.DestroyPipeline(pipeline)
		}
	}
	rp.pipelines = nil

	rp.emptyLayout.Destroy()
	rp.emptyLayout = nil

	if rp.handle != nil {
		rp.device.DestroyRenderPass(rp.handle)
		rp.handle = nil
	}
}

// Destroy releases every object the render pass owns. Calling it again does
// nothing.
func (rp *RenderPass) Destroy() {
	if rp.destroyed {
		return
	}
	rp.destroyed = true
	rp.release()
	if err := core.IdentifierReleaseID(rp.ID); err != nil {
		core.LogWarn("%s", err)
	}
	core.LogDebug("render pass %s destroyed", rp.ID)
}

// SubpassPipeline returns the pipeline bound to subpass index.
func (rp *RenderPass) SubpassPipeline(index uint32) (vk.Pipeline, error) {
	if int(index) >= len(rp.plan.Subpasses) {
		return nil, errors.Wrapf(core.ErrSubpassOutOfRange, "subpass %d of render pass with %d subpasses", index, len(rp.plan.Subpasses))
	}
	if rp.destroyed {
		return nil, errors.Newf("render pass %s has been destroyed", rp.ID)
	}
	return rp.pipelines[index], nil
}

func (rp *RenderPass) Handle() vk.RenderPass { return rp.handle }

func (rp *RenderPass) SubpassCount() uint32 { return uint32(len(rp.plan.Subpasses)) }

// Plan returns the analysis the render pass was built from.
func (rp *RenderPass) Plan() *Plan { return rp.plan }
