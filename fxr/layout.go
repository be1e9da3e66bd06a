package fxr

import "fxrpatch/process"

// Field offsets inside target structures, all for the 64 bit Elden Ring build
const (
	// CSSfx
	sfxSceneCtrl process.ProcessMemorySize = 0x60
	// GXFfxSceneCtrl
	sceneCtrlResourceManager process.ProcessMemorySize = 0x28
	// GXFfxGraphicsResourceManager
	resourceManagerContainer process.ProcessMemorySize = 0x160
	// FxrResourceContainer
	containerListHead process.ProcessMemorySize = 0x20

	// FxrWrapper
	wrapperDefinition process.ProcessMemorySize = 0x0

	// byte offset of the definition id inside an FXR file
	payloadIDOffset = 0xC
	// shortest payload that still carries a header
	MinPayloadSize = 0x10

	// allocator vtable slot 10 is void* alloc(self, size, align)
	allocatorAllocSlot process.ProcessMemorySize = 10 * process.PointerSize
	allocAlignment    uintptr                   = 0x10
)

// listHeadChain leads from a CSSfx instance to the FXR list head node
var listHeadChain = []process.ProcessMemorySize{
	sfxSceneCtrl,
	sceneCtrlResourceManager,
	resourceManagerContainer,
	containerListHead,
}

// listNode is FxrListNode as laid out in the target
type listNode struct {
	Next    process.ProcessMemoryAddress
	Prev    process.ProcessMemoryAddress
	ID      uint32
	_       uint32
	Wrapper process.ProcessMemoryAddress
}
