package gfxtrack

import (
	vk "github.com/vulkan-go/vulkan"
)

// VulkanBackend translates the resolved op stream into Vulkan pipeline
// barriers and events. Every command buffer handed to Record must carry a
// native handle in VKCommandBuffer.
type VulkanBackend struct{}

func (b *VulkanBackend) Record(cb *CommandBuffer, ops []BackendOp) error {
	if cb.VKCommandBuffer == nil {
		return contractErrorf("Record", "command buffer has no native handle")
	}
	for i := range ops {
		op := &ops[i]
		switch op.Kind {
		case OpImageBarrier:
			b.imageBarrier(cb, op)
		case OpFenceSignal:
			vk.CmdSetEvent(cb.VK(), op.Fence.VKEvent,
				vkStageFlags(op.SrcAccess, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)))
		case OpFenceWait:
			barrier := vk.MemoryBarrier{}
			barrier.SType = vk.StructureTypeMemoryBarrier
			barrier.SrcAccessMask = vkAccessFlags(op.SrcAccess)
			barrier.DstAccessMask = vkAccessFlags(op.DstAccess)
			vk.CmdWaitEvents(cb.VK(), 1, []vk.Event{op.Fence.VKEvent},
				vkStageFlags(op.SrcAccess, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)),
				vkStageFlags(op.DstAccess, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)),
				1, []vk.MemoryBarrier{barrier}, 0, nil, 0, nil)
		case OpOwnershipRelease, OpOwnershipAcquire:
			b.ownershipBarrier(cb, op)
		}
	}
	return nil
}

func (b *VulkanBackend) imageBarrier(cb *CommandBuffer, op *BackendOp) {
	barrier := vkImageBarrier(op)
	barrier.SrcQueueFamilyIndex = vk.QueueFamilyIgnored
	barrier.DstQueueFamilyIndex = vk.QueueFamilyIgnored

	sourceStage := vkStageFlags(op.SrcAccess, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit))
	destStage := vkStageFlags(op.DstAccess, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit))

	vk.CmdPipelineBarrier(cb.VK(), sourceStage, destStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// ownershipBarrier emits the release or acquire half of a queue family
// ownership transfer. The release half performs the layout transition; the
// acquire half repeats the same layouts as Vulkan requires the two halves
// to match.
func (b *VulkanBackend) ownershipBarrier(cb *CommandBuffer, op *BackendOp) {
	var src, dst uint32
	if op.Kind == OpOwnershipRelease {
		src = cb.queue.Family()
		dst = op.OtherQueue.Family()
	} else {
		src = op.OtherQueue.Family()
		dst = cb.queue.Family()
	}

	sourceStage := vkStageFlags(op.SrcAccess, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit))
	destStage := vkStageFlags(op.DstAccess, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit))

	if op.Buffer != nil {
		barrier := vk.BufferMemoryBarrier{}
		barrier.SType = vk.StructureTypeBufferMemoryBarrier
		barrier.SrcAccessMask = vkAccessFlags(op.SrcAccess)
		barrier.DstAccessMask = vkAccessFlags(op.DstAccess)
		barrier.SrcQueueFamilyIndex = src
		barrier.DstQueueFamilyIndex = dst
		barrier.Buffer = op.Buffer.VKBuffer
		barrier.Offset = 0
		barrier.Size = vk.DeviceSize(vk.WholeSize)
		vk.CmdPipelineBarrier(cb.VK(), sourceStage, destStage, 0, 0, nil, 1, []vk.BufferMemoryBarrier{barrier}, 0, nil)
		return
	}

	barrier := vkImageBarrier(op)
	barrier.SrcQueueFamilyIndex = src
	barrier.DstQueueFamilyIndex = dst
	barrier.OldLayout = vkImageLayout(op.Image.Usage, op.SrcLayout)
	barrier.NewLayout = vkImageLayout(op.Image.Usage, op.DstLayout)
	vk.CmdPipelineBarrier(cb.VK(), sourceStage, destStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func vkImageBarrier(op *BackendOp) vk.ImageMemoryBarrier {
	barrier := vk.ImageMemoryBarrier{}
	barrier.SType = vk.StructureTypeImageMemoryBarrier
	barrier.OldLayout = vkImageLayout(op.Image.Usage, op.SrcLayout)
	barrier.NewLayout = vkImageLayout(op.Image.Usage, op.DstLayout)
	barrier.Image = op.Image.VKImage
	barrier.SubresourceRange = vkSubresourceRange(op.Image, op.Subrange)
	barrier.SrcAccessMask = vkAccessFlags(op.SrcAccess)
	barrier.DstAccessMask = vkAccessFlags(op.DstAccess)
	return barrier
}

func vkSubresourceRange(img *Image, sub ImageSubrange) vk.ImageSubresourceRange {
	sub = img.resolveSubrange(sub)
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if img.Usage&UsageDepthStencil != 0 {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	}
	r := vk.ImageSubresourceRange{}
	r.AspectMask = aspect
	r.BaseMipLevel = sub.BaseMip
	r.LevelCount = sub.NumMips
	r.BaseArrayLayer = sub.BaseLayer
	r.LayerCount = sub.NumLayers
	return r
}

func vkImageLayout(usage ImageUsageFlags, l ImageLayout) vk.ImageLayout {
	switch l {
	case LayoutUndefined:
		return vk.ImageLayoutUndefined
	case LayoutGeneral:
		return vk.ImageLayoutGeneral
	case LayoutRender:
		if usage&UsageDepthStencil != 0 {
			return vk.ImageLayoutDepthStencilAttachmentOptimal
		}
		return vk.ImageLayoutColorAttachmentOptimal
	case LayoutShaderRead:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case LayoutDepthStencilRead:
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case LayoutCopyRead:
		return vk.ImageLayoutTransferSrcOptimal
	case LayoutCopyWrite:
		return vk.ImageLayoutTransferDstOptimal
	}
	return vk.ImageLayoutGeneral
}

func vkAccessFlags(a AccessFlags) vk.AccessFlags {
	var out vk.AccessFlags
	if a&AccessCopyRead != 0 {
		out |= vk.AccessFlags(vk.AccessTransferReadBit)
	}
	if a&AccessCopyWrite != 0 {
		out |= vk.AccessFlags(vk.AccessTransferWriteBit)
	}
	if a&AccessVertexRead != 0 {
		out |= vk.AccessFlags(vk.AccessShaderReadBit)
	}
	if a&AccessVertexWrite != 0 {
		out |= vk.AccessFlags(vk.AccessShaderWriteBit)
	}
	if a&AccessFragmentRead != 0 {
		out |= vk.AccessFlags(vk.AccessShaderReadBit)
	}
	if a&AccessFragmentWrite != 0 {
		out |= vk.AccessFlags(vk.AccessShaderWriteBit)
	}
	if a&AccessComputeRead != 0 {
		out |= vk.AccessFlags(vk.AccessShaderReadBit)
	}
	if a&AccessComputeWrite != 0 {
		out |= vk.AccessFlags(vk.AccessShaderWriteBit)
	}
	if a&AccessColorWrite != 0 {
		out |= vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit)
	}
	if a&AccessDSRead != 0 {
		out |= vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit)
	}
	if a&AccessDSWrite != 0 {
		out |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}
	return out
}

// vkStageFlags maps an access scope to pipeline stages; empty falls back to
// the given degenerate stage.
func vkStageFlags(a AccessFlags, fallback vk.PipelineStageFlags) vk.PipelineStageFlags {
	var out vk.PipelineStageFlags
	if a&(AccessCopyRead|AccessCopyWrite) != 0 {
		out |= vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	}
	if a&(AccessVertexRead|AccessVertexWrite) != 0 {
		out |= vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit)
	}
	if a&(AccessFragmentRead|AccessFragmentWrite) != 0 {
		out |= vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	}
	if a&(AccessComputeRead|AccessComputeWrite) != 0 {
		out |= vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
	}
	if a&AccessColorWrite != 0 {
		out |= vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	}
	if a&(AccessDSRead|AccessDSWrite) != 0 {
		out |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	}
	if out == 0 {
		return fallback
	}
	return out
}
