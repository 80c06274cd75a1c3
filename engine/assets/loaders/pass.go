package loaders

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/passgraph/engine/core"
	"github.com/spaghettifunk/passgraph/engine/renderer/vulkan"
)

const (
	PassExtensionTOML = ".pass.toml"
	PassExtensionHCL  = ".pass.hcl"
)

// passDocument is the file layout shared by both pass formats. In HCL the
// attachment, subpass and shader names are block labels.
type passDocument struct {
	Name        string          `toml:"name" hcl:"name,optional"`
	Attachments []attachmentDef `toml:"attachment" hcl:"attachment,block"`
	Subpasses   []subpassDef    `toml:"subpass" hcl:"subpass,block"`
}

type attachmentDef struct {
	Name        string `toml:"name" hcl:"name,label"`
	Format      string `toml:"format" hcl:"format"`
	FinalLayout string `toml:"final_layout" hcl:"final_layout"`
}

type subpassDef struct {
	Name         string          `toml:"name" hcl:"name,label"`
	Input        []string        `toml:"input" hcl:"input,optional"`
	Color        []string        `toml:"color" hcl:"color,optional"`
	DepthStencil []string        `toml:"depth_stencil" hcl:"depth_stencil,optional"`
	Pre          []dependencyDef `toml:"pre_dependency" hcl:"pre_dependency,block"`
	Post         []dependencyDef `toml:"post_dependency" hcl:"post_dependency,block"`
	Pipeline     *pipelineDef    `toml:"pipeline" hcl:"pipeline,block"`
}

type dependencyDef struct {
	SrcStage  []string `toml:"src_stage" hcl:"src_stage"`
	DstStage  []string `toml:"dst_stage" hcl:"dst_stage"`
	SrcAccess []string `toml:"src_access" hcl:"src_access,optional"`
	DstAccess []string `toml:"dst_access" hcl:"dst_access,optional"`
	ByRegion  bool     `toml:"by_region" hcl:"by_region,optional"`
}

// Unset fields keep the values of vulkan.NewGraphicsPipelineSettings.
type pipelineDef struct {
	Shaders       []shaderDef `toml:"shader" hcl:"shader,block"`
	Blend         []string    `toml:"blend" hcl:"blend,optional"`
	Topology      string      `toml:"topology" hcl:"topology,optional"`
	PolygonMode   string      `toml:"polygon_mode" hcl:"polygon_mode,optional"`
	CullMode      string      `toml:"cull_mode" hcl:"cull_mode,optional"`
	FrontFace     string      `toml:"front_face" hcl:"front_face,optional"`
	LineWidth     *float64    `toml:"line_width" hcl:"line_width,optional"`
	Samples       *int        `toml:"samples" hcl:"samples,optional"`
	DepthTest     *bool       `toml:"depth_test" hcl:"depth_test,optional"`
	DepthWrite    *bool       `toml:"depth_write" hcl:"depth_write,optional"`
	DepthCompare  string      `toml:"depth_compare" hcl:"depth_compare,optional"`
	DynamicStates []string    `toml:"dynamic_states" hcl:"dynamic_states,optional"`
}

type shaderDef struct {
	Stage      string `toml:"stage" hcl:"stage,label"`
	Path       string `toml:"path" hcl:"path"`
	EntryPoint string `toml:"entry_point" hcl:"entry_point,optional"`
}

/**
 * @brief A decoded pass file, ready for vulkan.PlanRenderPass or
 * vulkan.NewRenderPass.
 */
type PassDescription struct {
	/** @brief The pass name, the file name when the file sets none. */
	Name string
	/** @brief The file the pass was read from. */
	Path string

	/** @brief Attachment names in index order. */
	AttachmentNames []string
	Formats         []vk.Format
	FinalLayouts    []vk.ImageLayout

	/** @brief Subpass names in declaration order. */
	SubpassNames []string
	Subpasses    []vulkan.SubpassDescription

	/** @brief Shaders owned by the description, empty when loaded without a device. */
	Shaders []*vulkan.Shader
}

// Plan runs the dependency derivation on the description.
func (d *PassDescription) Plan() (*vulkan.Plan, error) {
	return vulkan.PlanRenderPass(d.Formats, d.FinalLayouts, d.Subpasses)
}

// Compile builds the render pass and its pipelines on device.
func (d *PassDescription) Compile(device vulkan.Device) (*vulkan.RenderPass, error) {
	return vulkan.NewRenderPass(device, d.Formats, d.FinalLayouts, d.Subpasses)
}

// Destroy releases the shader modules of the description.
func (d *PassDescription) Destroy() {
	for _, shader := range d.Shaders {
		shader.Destroy()
	}
	d.Shaders = nil
}

// IsPassFile reports whether path names a pass description.
func IsPassFile(path string) bool {
	return passFormat(path) != ""
}

// passName strips the directory and the pass extension from path.
func passName(path string) string {
	base := filepath.Base(path)
	switch passFormat(base) {
	case "toml":
		return base[:len(base)-len(PassExtensionTOML)]
	case "hcl":
		return base[:len(base)-len(PassExtensionHCL)]
	}
	return base
}

func passFormat(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, PassExtensionTOML):
		return "toml"
	case strings.HasSuffix(lower, PassExtensionHCL):
		return "hcl"
	}
	return ""
}

/**
 * @brief Loads .pass.toml and .pass.hcl files.
 */
type PassLoader struct {
	/** @brief Creates the shader modules. Nil loads passes without shaders, enough for planning. */
	Device vulkan.Device
}

func (pl *PassLoader) Load(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading pass %s", path)
	}
	desc, err := pl.Decode(path, data)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Type:     ResourceTypePass,
		Name:     desc.Name,
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     desc,
	}, nil
}

func (pl *PassLoader) Unload(res *Resource) error {
	desc, ok := res.Data.(*PassDescription)
	if !ok {
		return errors.Newf("resource %s is not a pass description", res.FullPath)
	}
	desc.Destroy()
	return nil
}

// Decode parses data in the format named by the extension of path. Shader
// paths are relative to the directory of path.
func (pl *PassLoader) Decode(path string, data []byte) (*PassDescription, error) {
	var doc passDocument
	switch passFormat(path) {
	case "toml":
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&doc); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "failed to decode pass file %s", path), core.ErrConfig)
		}
	case "hcl":
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCL(data, path)
		if diags.HasErrors() {
			return nil, errors.Mark(errors.Wrapf(diags, "failed to parse pass file %s", path), core.ErrConfig)
		}
		diags = gohcl.DecodeBody(file.Body, nil, &doc)
		if diags.HasErrors() {
			return nil, errors.Mark(errors.Wrapf(diags, "failed to decode pass file %s", path), core.ErrConfig)
		}
	default:
		return nil, core.ConfigErrorf("%s is not a pass file (%s or %s)", path, PassExtensionTOML, PassExtensionHCL)
	}

	desc, err := pl.build(path, &doc)
	if err != nil {
		return nil, errors.Wrapf(err, "pass %s", path)
	}
	core.LogDebug("pass %s decoded: %d attachments, %d subpasses, %d shaders", desc.Name, len(desc.Formats), len(desc.Subpasses), len(desc.Shaders))
	return desc, nil
}

func (pl *PassLoader) build(path string, doc *passDocument) (*PassDescription, error) {
	desc := &PassDescription{
		Name: doc.Name,
		Path: path,
	}
	if desc.Name == "" {
		desc.Name = passName(path)
	}
	if len(doc.Subpasses) == 0 {
		return nil, core.ConfigErrorf("no subpasses declared")
	}

	attachments := make(map[string]uint32, len(doc.Attachments))
	for i, def := range doc.Attachments {
		if def.Name == "" {
			return nil, core.ConfigErrorf("attachment %d has no name", i)
		}
		if _, exists := attachments[def.Name]; exists {
			return nil, core.ConfigErrorf("attachment %q declared twice", def.Name)
		}
		format, err := lookup(formatNames, "format", def.Format)
		if err != nil {
			return nil, errors.Wrapf(err, "attachment %q", def.Name)
		}
		layout, err := lookup(layoutNames, "layout", def.FinalLayout)
		if err != nil {
			return nil, errors.Wrapf(err, "attachment %q", def.Name)
		}
		attachments[def.Name] = uint32(i)
		desc.AttachmentNames = append(desc.AttachmentNames, def.Name)
		desc.Formats = append(desc.Formats, format)
		desc.FinalLayouts = append(desc.FinalLayouts, layout)
	}

	subpassNames := make(map[string]struct{}, len(doc.Subpasses))
	for i, def := range doc.Subpasses {
		name := def.Name
		if name == "" {
			name = fmt.Sprintf("subpass%d", i)
		}
		if _, exists := subpassNames[name]; exists {
			desc.Destroy()
			return nil, core.ConfigErrorf("subpass %q declared twice", name)
		}
		subpassNames[name] = struct{}{}

		subpass, err := pl.buildSubpass(path, desc, attachments, &def)
		if err != nil {
			desc.Destroy()
			return nil, errors.Wrapf(err, "subpass %q", name)
		}
		desc.SubpassNames = append(desc.SubpassNames, name)
		desc.Subpasses = append(desc.Subpasses, subpass)
	}
	return desc, nil
}

func (pl *PassLoader) buildSubpass(path string, desc *PassDescription, attachments map[string]uint32, def *subpassDef) (vulkan.SubpassDescription, error) {
	var (
		subpass vulkan.SubpassDescription
		err     error
	)
	if subpass.InputAttachments, err = resolveAttachments(attachments, "input", def.Input); err != nil {
		return subpass, err
	}
	if subpass.ColorAttachments, err = resolveAttachments(attachments, "color", def.Color); err != nil {
		return subpass, err
	}
	if subpass.DepthStencilAttachments, err = resolveAttachments(attachments, "depth/stencil", def.DepthStencil); err != nil {
		return subpass, err
	}
	if subpass.PreDependencies, err = buildDependencies(def.Pre); err != nil {
		return subpass, errors.Wrap(err, "pre_dependency")
	}
	if subpass.PostDependencies, err = buildDependencies(def.Post); err != nil {
		return subpass, errors.Wrap(err, "post_dependency")
	}

	settings := vulkan.NewGraphicsPipelineSettings()
	if def.Pipeline != nil {
		if err := pl.applyPipeline(path, desc, settings, def.Pipeline); err != nil {
			return subpass, errors.Wrap(err, "pipeline")
		}
	}
	subpass.Pipeline = settings
	return subpass, nil
}

func resolveAttachments(attachments map[string]uint32, role string, names []string) ([]uint32, error) {
	if len(names) == 0 {
		return nil, nil
	}
	indices := make([]uint32, 0, len(names))
	for _, name := range names {
		index, ok := attachments[name]
		if !ok {
			return nil, core.ConfigErrorf("unknown %s attachment %q, expected one of: %s", role, name, strings.Join(sortedKeys(attachments), ", "))
		}
		indices = append(indices, index)
	}
	return indices, nil
}

func buildDependencies(defs []dependencyDef) ([]vulkan.ExternalDependency, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	deps := make([]vulkan.ExternalDependency, 0, len(defs))
	for _, def := range defs {
		var (
			dep vulkan.ExternalDependency
			err error
		)
		if dep.SrcStageMask, err = stageMask(def.SrcStage); err != nil {
			return nil, err
		}
		if dep.DstStageMask, err = stageMask(def.DstStage); err != nil {
			return nil, err
		}
		if dep.SrcAccessMask, err = accessMask(def.SrcAccess); err != nil {
			return nil, err
		}
		if dep.DstAccessMask, err = accessMask(def.DstAccess); err != nil {
			return nil, err
		}
		if dep.SrcStageMask == 0 || dep.DstStageMask == 0 {
			return nil, core.ConfigErrorf("src_stage and dst_stage must name at least one stage")
		}
		if def.ByRegion {
			dep.Flags = vk.DependencyFlags(vk.DependencyByRegionBit)
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

func (pl *PassLoader) applyPipeline(path string, desc *PassDescription, settings *vulkan.GraphicsPipelineSettings, def *pipelineDef) error {
	var err error
	if def.Blend != nil {
		modes, err := lookupList(blendNames, "blend mode", def.Blend)
		if err != nil {
			return err
		}
		settings.SetBlendModes(modes...)
	}
	if def.Topology != "" {
		if settings.Topology, err = lookup(topologyNames, "topology", def.Topology); err != nil {
			return err
		}
	}
	if def.PolygonMode != "" {
		if settings.PolygonMode, err = lookup(polygonModeNames, "polygon mode", def.PolygonMode); err != nil {
			return err
		}
	}
	if def.CullMode != "" {
		if settings.CullMode, err = lookup(cullModeNames, "cull mode", def.CullMode); err != nil {
			return err
		}
	}
	if def.FrontFace != "" {
		if settings.FrontFace, err = lookup(frontFaceNames, "front face", def.FrontFace); err != nil {
			return err
		}
	}
	if def.DepthCompare != "" {
		if settings.DepthCompareOp, err = lookup(compareOpNames, "compare op", def.DepthCompare); err != nil {
			return err
		}
	}
	if def.LineWidth != nil {
		if *def.LineWidth <= 0 {
			return core.ConfigErrorf("line_width must be positive, got %g", *def.LineWidth)
		}
		settings.LineWidth = float32(*def.LineWidth)
	}
	if def.Samples != nil {
		samples, ok := sampleCountNames[*def.Samples]
		if !ok {
			return core.ConfigErrorf("unsupported sample count %d, expected one of: %v", *def.Samples, sortedKeys(sampleCountNames))
		}
		settings.Samples = samples
	}
	if def.DepthTest != nil {
		settings.DepthTestEnable = *def.DepthTest
	}
	if def.DepthWrite != nil {
		settings.DepthWriteEnable = *def.DepthWrite
	}
	if def.DynamicStates != nil {
		if settings.DynamicStates, err = lookupList(dynamicStateNames, "dynamic state", def.DynamicStates); err != nil {
			return err
		}
	}

	for _, shaderDef := range def.Shaders {
		stage, err := lookup(shaderStageNames, "shader stage", shaderDef.Stage)
		if err != nil {
			return err
		}
		if shaderDef.Path == "" {
			return core.ConfigErrorf("%s shader has no path", shaderDef.Stage)
		}
		if pl.Device == nil {
			continue
		}
		shaderPath := shaderDef.Path
		if !filepath.IsAbs(shaderPath) {
			shaderPath = filepath.Join(filepath.Dir(path), shaderPath)
		}
		shader := vulkan.NewShader(pl.Device, stage, shaderPath, shaderDef.EntryPoint)
		desc.Shaders = append(desc.Shaders, shader)
		settings.AddShaderStages(shader)
	}
	return nil
}
