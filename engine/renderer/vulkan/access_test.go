package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"
)

func TestAccessKindStageAndAccessMasks(t *testing.T) {
	tests := []struct {
		kind   AccessKind
		stage  vk.PipelineStageFlags
		access vk.AccessFlags
		write  bool
	}{
		{AccessUnused, 0, 0, false},
		{AccessColorWrite, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), vk.AccessFlags(vk.AccessColorAttachmentWriteBit), true},
		{AccessDepthStencilWrite, vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit), vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit), true},
		{AccessInputRead, vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), vk.AccessFlags(vk.AccessInputAttachmentReadBit), false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			require.Equal(t, tt.stage, tt.kind.StageMask())
			require.Equal(t, tt.access, tt.kind.AccessMask())
			require.Equal(t, tt.write, tt.kind.IsWrite())
		})
	}
}

func TestLayoutAccessFor(t *testing.T) {
	undefined, ok := LayoutAccessFor(vk.ImageLayoutUndefined)
	require.True(t, ok)
	require.Equal(t, vk.AccessFlags(0), undefined.AccessMask)
	require.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), undefined.StageMask)

	transferDst, ok := LayoutAccessFor(vk.ImageLayoutTransferDstOptimal)
	require.True(t, ok)
	require.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), transferDst.AccessMask)
	require.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), transferDst.StageMask)

	color, ok := LayoutAccessFor(vk.ImageLayoutColorAttachmentOptimal)
	require.True(t, ok)
	require.Equal(t, AccessColorWrite.AccessMask(), color.AccessMask)
	require.Equal(t, AccessColorWrite.StageMask(), color.StageMask)

	_, ok = LayoutAccessFor(vk.ImageLayoutPreinitialized)
	require.False(t, ok)
}

func TestLayoutName(t *testing.T) {
	require.Equal(t, "present-src", LayoutName(vk.ImageLayoutPresentSrc))
	require.Equal(t, "shader-read-only", LayoutName(vk.ImageLayoutShaderReadOnlyOptimal))
	require.Equal(t, "other", LayoutName(vk.ImageLayoutPreinitialized))
}
