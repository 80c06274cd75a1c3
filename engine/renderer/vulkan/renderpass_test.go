package vulkan

import (
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/passgraph/engine/core"
	"github.com/stretchr/testify/require"
)

// deferredSubpasses writes albedo and depth, then shades from both into the
// swapchain image.
func deferredSubpasses() ([]vk.Format, []vk.ImageLayout, []SubpassDescription) {
	formats := []vk.Format{vk.FormatB8g8r8a8Unorm, vk.FormatR8g8b8a8Unorm, vk.FormatD32Sfloat}
	layouts := []vk.ImageLayout{vk.ImageLayoutPresentSrc, vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutDepthStencilAttachmentOptimal}
	subpasses := []SubpassDescription{
		{
			ColorAttachments:        []uint32{1},
			DepthStencilAttachments: []uint32{2},
			PreDependencies: []ExternalDependency{{
				SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
				DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
				DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			}},
			Pipeline: NewGraphicsPipelineSettings(),
		},
		{
			InputAttachments: []uint32{1, 2},
			ColorAttachments: []uint32{0},
			Pipeline:         NewGraphicsPipelineSettings(),
		},
	}
	return formats, layouts, subpasses
}

func TestNewRenderPassCreateInfo(t *testing.T) {
	device := &fakeDevice{}
	formats, layouts, subpasses := deferredSubpasses()

	rp, err := NewRenderPass(device, formats, layouts, subpasses)
	require.NoError(t, err)
	defer rp.Destroy()

	require.Len(t, device.renderPassInfos, 1)
	info := device.renderPassInfos[0]

	require.Equal(t, uint32(3), info.AttachmentCount)
	for i, attachment := range info.PAttachments {
		require.Equal(t, formats[i], attachment.Format)
		require.Equal(t, layouts[i], attachment.FinalLayout)
		require.Equal(t, vk.ImageLayoutUndefined, attachment.InitialLayout)
		require.Equal(t, vk.SampleCount1Bit, attachment.Samples)
		require.Equal(t, vk.AttachmentLoadOpClear, attachment.LoadOp)
		require.Equal(t, vk.AttachmentStoreOpStore, attachment.StoreOp)
		require.Equal(t, vk.AttachmentLoadOpDontCare, attachment.StencilLoadOp)
		require.Equal(t, vk.AttachmentStoreOpDontCare, attachment.StencilStoreOp)
	}

	require.Equal(t, uint32(2), info.SubpassCount)
	geometry, lighting := info.PSubpasses[0], info.PSubpasses[1]
	require.Equal(t, vk.PipelineBindPointGraphics, geometry.PipelineBindPoint)
	require.Equal(t, uint32(1), geometry.ColorAttachmentCount)
	require.Equal(t, uint32(1), geometry.PColorAttachments[0].Attachment)
	require.NotNil(t, geometry.PDepthStencilAttachment)
	require.Equal(t, uint32(2), geometry.PDepthStencilAttachment.Attachment)
	require.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal, geometry.PDepthStencilAttachment.Layout)
	require.Zero(t, geometry.InputAttachmentCount)

	require.Equal(t, uint32(2), lighting.InputAttachmentCount)
	require.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, lighting.PInputAttachments[0].Layout)
	require.Equal(t, vk.ImageLayoutDepthStencilReadOnlyOptimal, lighting.PInputAttachments[1].Layout)
	require.Nil(t, lighting.PDepthStencilAttachment)
	require.Zero(t, lighting.PreserveAttachmentCount)

	// One external edge, then one edge per written-then-read attachment.
	require.Equal(t, uint32(3), info.DependencyCount)
	require.Equal(t, vk.SubpassExternal, info.PDependencies[0].SrcSubpass)
	for _, dependency := range info.PDependencies[1:] {
		require.Equal(t, uint32(0), dependency.SrcSubpass)
		require.Equal(t, uint32(1), dependency.DstSubpass)
		require.Equal(t, byRegion, dependency.DependencyFlags)
	}
	require.Equal(t, vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit), info.PDependencies[2].SrcAccessMask)

	require.Equal(t, uint32(2), rp.SubpassCount())
	require.NotNil(t, rp.Handle())
	require.NotEqual(t, uuid.Nil, rp.ID)
}

func TestNewRenderPassPipelinesShareOneEmptyLayout(t *testing.T) {
	device := &fakeDevice{}
	formats, layouts, subpasses := deferredSubpasses()

	rp, err := NewRenderPass(device, formats, layouts, subpasses)
	require.NoError(t, err)
	defer rp.Destroy()

	require.Len(t, device.layoutInfos, 1)
	require.Zero(t, device.layoutInfos[0].SetLayoutCount)
	require.Zero(t, device.layoutInfos[0].PushConstantRangeCount)

	require.Len(t, device.pipelineInfos, 1, "pipelines are created in one batch")
	infos := device.pipelineInfos[0]
	require.Len(t, infos, 2)
	for i, info := range infos {
		require.Equal(t, uint32(i), info.Subpass)
		requireSameHandle(t, rp.Handle(), info.RenderPass, "pipeline %d is bound to the pass", i)
		require.NotNil(t, info.Layout)
		requireSameHandle(t, infos[0].Layout, info.Layout, "pipeline %d shares the empty layout", i)
		require.Equal(t, vk.PipelineCreateFlags(vk.PipelineCreateAllowDerivativesBit), info.Flags)
		require.Equal(t, uint32(1), info.PColorBlendState.AttachmentCount)
		require.Equal(t, BlendDisabled.AttachmentState(), info.PColorBlendState.PAttachments[0])
	}

	for i := uint32(0); i < rp.SubpassCount(); i++ {
		pipeline, err := rp.SubpassPipeline(i)
		require.NoError(t, err)
		require.NotNil(t, pipeline)
	}
}

func TestNewRenderPassUsesProvidedLayouts(t *testing.T) {
	device := &fakeDevice{}
	formats, layouts, subpasses := deferredSubpasses()
	layout := vk.PipelineLayout(unsafe.Pointer(new(byte)))
	for i := range subpasses {
		subpasses[i].Pipeline.SetLayout(layout)
	}

	rp, err := NewRenderPass(device, formats, layouts, subpasses)
	require.NoError(t, err)
	defer rp.Destroy()

	require.Empty(t, device.layoutInfos, "no empty layout is needed")
	for _, info := range device.pipelineInfos[0] {
		requireSameHandle(t, layout, info.Layout, "pipeline uses the provided layout")
	}
}

func TestNewRenderPassCopiesSettings(t *testing.T) {
	device := &fakeDevice{}
	formats, layouts, subpasses := deferredSubpasses()
	subpasses[1].Pipeline.SetBlendModes(BlendAlpha)

	rp, err := NewRenderPass(device, formats, layouts, subpasses)
	require.NoError(t, err)
	defer rp.Destroy()

	subpasses[1].Pipeline.SetBlendModes(BlendAdditive, BlendAdditive)
	subpasses[1].ColorAttachments[0] = 2

	require.Equal(t, []BlendMode{BlendAlpha}, rp.settings[1].BlendModes)
	require.NotSame(t, subpasses[1].Pipeline, rp.settings[1])
	require.Equal(t, uint32(0), rp.Plan().Subpasses[1].Color[0].Attachment)
	require.Equal(t, BlendAlpha.AttachmentState(), device.pipelineInfos[0][1].PColorBlendState.PAttachments[0])
}

func TestNewRenderPassConfigErrorsCreateNothing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(formats *[]vk.Format, layouts *[]vk.ImageLayout, subpasses []SubpassDescription)
	}{
		{"mismatched arrays", func(formats *[]vk.Format, layouts *[]vk.ImageLayout, subpasses []SubpassDescription) {
			*layouts = (*layouts)[:2]
		}},
		{"missing pipeline", func(formats *[]vk.Format, layouts *[]vk.ImageLayout, subpasses []SubpassDescription) {
			subpasses[1].Pipeline = nil
		}},
		{"out of range attachment", func(formats *[]vk.Format, layouts *[]vk.ImageLayout, subpasses []SubpassDescription) {
			subpasses[1].InputAttachments = append(subpasses[1].InputAttachments, 3)
		}},
		{"more blend modes than color attachments", func(formats *[]vk.Format, layouts *[]vk.ImageLayout, subpasses []SubpassDescription) {
			subpasses[1].Pipeline.SetBlendModes(BlendAlpha, BlendAdditive)
		}},
		{"fewer blend modes than color attachments", func(formats *[]vk.Format, layouts *[]vk.ImageLayout, subpasses []SubpassDescription) {
			subpasses[0].ColorAttachments = []uint32{0, 1}
			subpasses[0].Pipeline.SetBlendModes(BlendAlpha)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := &fakeDevice{}
			formats, layouts, subpasses := deferredSubpasses()
			tt.mutate(&formats, &layouts, subpasses)

			rp, err := NewRenderPass(device, formats, layouts, subpasses)
			require.Error(t, err)
			require.True(t, core.IsConfigError(err))
			require.Nil(t, rp)
			require.Empty(t, device.calls)
			require.Empty(t, device.renderPassInfos)
		})
	}
}

func TestNewRenderPassRenderPassFailure(t *testing.T) {
	device := &fakeDevice{failRenderPass: true}
	formats, layouts, subpasses := deferredSubpasses()

	rp, err := NewRenderPass(device, formats, layouts, subpasses)
	require.Error(t, err)
	require.True(t, core.IsNativeError(err))
	require.Nil(t, rp)
	require.Empty(t, device.layoutInfos)
	require.Empty(t, device.pipelineInfos)
}

func TestNewRenderPassLayoutFailureReleasesRenderPass(t *testing.T) {
	device := &fakeDevice{failLayout: true}
	formats, layouts, subpasses := deferredSubpasses()

	rp, err := NewRenderPass(device, formats, layouts, subpasses)
	require.Error(t, err)
	require.True(t, core.IsNativeError(err))
	require.Nil(t, rp)
	require.Empty(t, device.pipelineInfos)
	require.Equal(t, []string{"create:renderpass", "destroy:renderpass"}, device.calls)
}

func TestNewRenderPassBatchFailureReleasesEverything(t *testing.T) {
	tests := []struct {
		name   string
		result func(infos []vk.GraphicsPipelineCreateInfo, d *fakeDevice) ([]vk.Pipeline, error)
	}{
		{"error with partial pipelines", func(infos []vk.GraphicsPipelineCreateInfo, d *fakeDevice) ([]vk.Pipeline, error) {
			d.record("create:pipeline")
			return []vk.Pipeline{vk.Pipeline(fakeHandle()), nil},
				core.NativeErrorf("vkCreateGraphicsPipelines failed with %s", VulkanResultString(vk.ErrorOutOfDeviceMemory, true))
		}},
		{"short batch", func(infos []vk.GraphicsPipelineCreateInfo, d *fakeDevice) ([]vk.Pipeline, error) {
			d.record("create:pipeline")
			return []vk.Pipeline{vk.Pipeline(fakeHandle())}, nil
		}},
		{"nil pipeline", func(infos []vk.GraphicsPipelineCreateInfo, d *fakeDevice) ([]vk.Pipeline, error) {
			d.record("create:pipeline")
			return []vk.Pipeline{nil, vk.Pipeline(fakeHandle())}, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := &fakeDevice{pipelineResult: tt.result}
			formats, layouts, subpasses := deferredSubpasses()

			rp, err := NewRenderPass(device, formats, layouts, subpasses)
			require.Error(t, err)
			require.True(t, core.IsNativeError(err))
			require.Nil(t, rp)
			require.True(t, device.balanced(), "calls: %v", device.calls)
			require.Equal(t, []string{
				"create:renderpass",
				"create:layout",
				"create:pipeline",
				"destroy:pipeline",
				"destroy:layout",
				"destroy:renderpass",
			}, device.calls)
		})
	}
}

func TestRenderPassDestroyOrderAndIdempotence(t *testing.T) {
	device := &fakeDevice{}
	formats, layouts, subpasses := deferredSubpasses()

	rp, err := NewRenderPass(device, formats, layouts, subpasses)
	require.NoError(t, err)
	held := core.IdentifierCount()

	rp.Destroy()
	rp.Destroy()

	require.Equal(t, []string{
		"create:renderpass",
		"create:layout",
		"create:pipeline",
		"create:pipeline",
		"destroy:pipeline",
		"destroy:pipeline",
		"destroy:layout",
		"destroy:renderpass",
	}, device.calls)
	require.Equal(t, held-1, core.IdentifierCount())
	require.Nil(t, rp.Handle())

	_, err = rp.SubpassPipeline(0)
	require.Error(t, err)
}

func TestSubpassPipelineOutOfRange(t *testing.T) {
	device := &fakeDevice{}
	formats, layouts, subpasses := deferredSubpasses()

	rp, err := NewRenderPass(device, formats, layouts, subpasses)
	require.NoError(t, err)
	defer rp.Destroy()

	pipeline, err := rp.SubpassPipeline(2)
	require.Nil(t, pipeline)
	require.True(t, errors.Is(err, core.ErrSubpassOutOfRange))
}

func TestPlanRenderPassMatchesRenderPassPlan(t *testing.T) {
	formats, layouts, subpasses := deferredSubpasses()
	plan, err := PlanRenderPass(formats, layouts, subpasses)
	require.NoError(t, err)

	rp, err := NewRenderPass(&fakeDevice{}, formats, layouts, subpasses)
	require.NoError(t, err)
	defer rp.Destroy()

	if diff := cmp.Diff(plan, rp.Plan(), cmp.AllowUnexported(AccessMatrix{})); diff != "" {
		t.Errorf("plan mismatch (-PlanRenderPass +NewRenderPass):\n%s", diff)
	}
}

func TestPlanRenderPassDoesNotNeedPipelines(t *testing.T) {
	plan, err := PlanRenderPass(
		[]vk.Format{vk.FormatB8g8r8a8Unorm},
		[]vk.ImageLayout{vk.ImageLayoutPresentSrc},
		[]SubpassDescription{{ColorAttachments: []uint32{0}}},
	)
	require.NoError(t, err)
	require.Empty(t, plan.Dependencies)
	require.Empty(t, plan.Subpasses[0].Preserve)

	_, err = PlanRenderPass([]vk.Format{vk.FormatB8g8r8a8Unorm}, nil, nil)
	require.True(t, core.IsConfigError(err))
}

func TestRenderPassRequiresSubpasses(t *testing.T) {
	formats := []vk.Format{vk.FormatB8g8r8a8Unorm}
	layouts := []vk.ImageLayout{vk.ImageLayoutPresentSrc}

	_, err := PlanRenderPass(formats, layouts, nil)
	require.True(t, core.IsConfigError(err))
	require.ErrorContains(t, err, "render pass has no subpasses")

	device := &fakeDevice{}
	rp, err := NewRenderPass(device, formats, layouts, []SubpassDescription{})
	require.True(t, core.IsConfigError(err))
	require.Nil(t, rp)
	require.Empty(t, device.calls)
}

func TestPlanRenderPassChecksBlendModes(t *testing.T) {
	formats, layouts, subpasses := deferredSubpasses()
	subpasses[1].Pipeline.SetBlendModes(BlendAlpha, BlendAlpha)

	_, err := PlanRenderPass(formats, layouts, subpasses)
	require.True(t, core.IsConfigError(err))
	require.ErrorContains(t, err, "subpass 1 has 2 blend modes for 1 color attachments")

	subpasses[1].Pipeline.SetBlendModes(BlendAlpha)
	_, err = PlanRenderPass(formats, layouts, subpasses)
	require.NoError(t, err)
}
