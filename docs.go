/*
Package gfxtrack implements automatic resource state tracking and barrier
generation for command buffers recorded against explicit graphics APIs.
Modern APIs like Vulkan moved the burden of synchronization onto the
application: every image has a layout, every hazard needs a pipeline
barrier, and getting any of it wrong is anywhere from a validation warning
to silent corruption. Other APIs, like Metal, track most hazards in the
driver and need almost none of this. This package sits in between: the
application records what it intends to do with each resource, and the
package works out at submission time which barriers the target API actually
needs, which may be none at all.

The central idea is that recording is cheap and resolution is deferred.
While a command buffer records, declarations like "this encoder samples
these images" or "this copy writes that mip level" are appended to a flat
list and nothing else happens. When the buffer is submitted, the package
walks the list once against each image's last known state, computes the
minimal set of layout transitions and memory barriers, and hands them to a
backend as a stream of portable ops. The explicit-barrier backend turns the
stream into vk.CmdPipelineBarrier and event calls; the automatic-hazard
backend drops everything except fences.

Terms used throughout

	Queue		owns resources and executes command buffers; one
			submitting goroutine at a time
	CommandBuffer	an exclusively held recording, from NewCommandBuffer
			to retirement
	Encoder		one render, compute or copy section of a recording;
			shader-use declarations last until the encoder ends
	Tracking unit	the granularity of state tracking within an image,
			whole image by default, finer by usage flag
	Fence		an intra-command-buffer ordering token, not a
			cross-device completion signal
	Proxy		a second handle for a resource on a queue that does
			not own it, fed by the ownership transfer protocol
	Heap		a group of placed images that can be made
			shader-readable in bulk

Resources are reference counted. A command buffer retains everything it
references until it retires, so the application may drop its own references
as soon as recording is done; the reference count is the only piece of
shared state touched with atomics, everything else belongs to the owning
queue.

The package deliberately does not submit to the native queue, allocate
device memory or create native objects. Those live in the surrounding
application, which passes native handles in (the VK-prefixed fields) and
plugs its submission path in through the Submitter interface.
*/
package gfxtrack
