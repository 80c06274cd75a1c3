package vulkan

import (
	"sync"
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/passgraph/engine/core"
	"github.com/stretchr/testify/require"
)

// fakeDevice records every call and hands out distinct fake handles.
type fakeDevice struct {
	mu sync.Mutex

	renderPassInfos []*vk.RenderPassCreateInfo
	layoutInfos     []*vk.PipelineLayoutCreateInfo
	pipelineInfos   [][]vk.GraphicsPipelineCreateInfo
	framebuffers    []*vk.FramebufferCreateInfo
	shaderModules   []*vk.ShaderModuleCreateInfo

	// calls lists create and destroy calls in order, e.g. "destroy:pipeline".
	calls []string

	failRenderPass bool
	failLayout     bool
	failShader     bool
	// pipelineResult overrides the result of CreateGraphicsPipelines.
	pipelineResult func(infos []vk.GraphicsPipelineCreateInfo, d *fakeDevice) ([]vk.Pipeline, error)
}

func fakeHandle() unsafe.Pointer {
	return unsafe.Pointer(new(byte))
}

// requireSameHandle compares native handles by identity. Handles point at
// incomplete C types, so reflection based assertions panic on them.
func requireSameHandle[H comparable](t *testing.T, want, got H, msgAndArgs ...interface{}) {
	t.Helper()
	require.True(t, want == got, msgAndArgs...)
}

func (d *fakeDevice) record(call string) {
	d.calls = append(d.calls, call)
}

func (d *fakeDevice) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.renderPassInfos = append(d.renderPassInfos, info)
	if d.failRenderPass {
		return nil, core.NativeErrorf("vkCreateRenderPass failed with %s", VulkanResultString(vk.ErrorOutOfHostMemory, false))
	}
	d.record("create:renderpass")
	return vk.RenderPass(fakeHandle()), nil
}

func (d *fakeDevice) DestroyRenderPass(vk.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("destroy:renderpass")
}

func (d *fakeDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layoutInfos = append(d.layoutInfos, info)
	if d.failLayout {
		return nil, core.NativeErrorf("vkCreatePipelineLayout failed with %s", VulkanResultString(vk.ErrorOutOfDeviceMemory, false))
	}
	d.record("create:layout")
	return vk.PipelineLayout(fakeHandle()), nil
}

func (d *fakeDevice) DestroyPipelineLayout(vk.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("destroy:layout")
}

func (d *fakeDevice) CreateGraphicsPipelines(infos []vk.GraphicsPipelineCreateInfo) ([]vk.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipelineInfos = append(d.pipelineInfos, infos)
	if d.pipelineResult != nil {
		return d.pipelineResult(infos, d)
	}
	pipelines := make([]vk.Pipeline, len(infos))
	for i := range pipelines {
		pipelines[i] = vk.Pipeline(fakeHandle())
		d.record("create:pipeline")
	}
	return pipelines, nil
}

func (d *fakeDevice) DestroyPipeline(vk.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("destroy:pipeline")
}

func (d *fakeDevice) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.framebuffers = append(d.framebuffers, info)
	d.record("create:framebuffer")
	return vk.Framebuffer(fakeHandle()), nil
}

func (d *fakeDevice) DestroyFramebuffer(vk.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("destroy:framebuffer")
}

func (d *fakeDevice) CreateShaderModule(info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shaderModules = append(d.shaderModules, info)
	if d.failShader {
		return nil, core.NativeErrorf("vkCreateShaderModule failed with %s", VulkanResultString(vk.ErrorInvalidShaderNv, false))
	}
	d.record("create:shader")
	return vk.ShaderModule(fakeHandle()), nil
}

func (d *fakeDevice) DestroyShaderModule(vk.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("destroy:shader")
}

func (d *fakeDevice) count(call string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == call {
			n++
		}
	}
	return n
}

// balanced reports whether every created object was destroyed.
func (d *fakeDevice) balanced() bool {
	for _, kind := range []string{"renderpass", "layout", "pipeline", "framebuffer", "shader"} {
		if d.count("create:"+kind) != d.count("destroy:"+kind) {
			return false
		}
	}
	return true
}

var _ Device = (*fakeDevice)(nil)
var _ Device = (*LogicalDevice)(nil)
