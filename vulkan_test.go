package gfxtrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestVKImageLayout(t *testing.T) {
	assert.Equal(t, vk.ImageLayoutUndefined, vkImageLayout(DefaultImageUsage, LayoutUndefined))
	assert.Equal(t, vk.ImageLayoutGeneral, vkImageLayout(DefaultImageUsage, LayoutGeneral))
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, vkImageLayout(DefaultImageUsage, LayoutShaderRead))
	assert.Equal(t, vk.ImageLayoutTransferSrcOptimal, vkImageLayout(DefaultImageUsage, LayoutCopyRead))
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, vkImageLayout(DefaultImageUsage, LayoutCopyWrite))

	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal,
		vkImageLayout(DefaultImageUsage|UsageRender, LayoutRender))
	assert.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal,
		vkImageLayout(DefaultImageUsage|UsageRender|UsageDepthStencil, LayoutRender))
	assert.Equal(t, vk.ImageLayoutDepthStencilReadOnlyOptimal,
		vkImageLayout(DefaultImageUsage|UsageDepthStencil, LayoutDepthStencilRead))
}

func TestVKAccessFlags(t *testing.T) {
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferReadBit|vk.AccessTransferWriteBit),
		vkAccessFlags(AccessCopyRead|AccessCopyWrite))
	assert.Equal(t, vk.AccessFlags(vk.AccessShaderReadBit),
		vkAccessFlags(AccessFragmentRead|AccessComputeRead))
	assert.Equal(t, vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit|vk.AccessDepthStencilAttachmentWriteBit),
		vkAccessFlags(AccessDSRead|AccessDSWrite))
	assert.Equal(t, vk.AccessFlags(0), vkAccessFlags(0))
}

func TestVKStageFlags(t *testing.T) {
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vkStageFlags(AccessCopyWrite, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)))
	assert.Equal(t,
		vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit|vk.PipelineStageFragmentShaderBit),
		vkStageFlags(AccessVertexRead|AccessFragmentRead, 0))

	// an empty scope degenerates to the fallback stage
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		vkStageFlags(0, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)))
}

func TestVKSubresourceRange(t *testing.T) {
	q, _ := newTestQueue(t, QueueConfig{})
	img, _ := q.CreateImage(ImageDescriptor{Width: 64, Height: 64, MipLevels: 4, ArrayLayers: 2})

	r := vkSubresourceRange(img, ImageSubrange{BaseMip: 1, NumMips: 2})
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), r.AspectMask)
	assert.Equal(t, uint32(1), r.BaseMipLevel)
	assert.Equal(t, uint32(2), r.LevelCount)
	assert.Equal(t, uint32(2), r.LayerCount, "zero layer count expands to all layers")

	ds, _ := q.CreateImage(ImageDescriptor{Width: 64, Height: 64, Usage: DefaultImageUsage | UsageDepthStencil})
	r = vkSubresourceRange(ds, ImageSubrange{})
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), r.AspectMask)
}
