package blobtest

import (
	"fxrpatch/game"
	"fxrpatch/pattern"
	"fxrpatch/process"
)

// ForeignCall records one call the code under test made into the image
type ForeignCall struct {
	Name string
	Args []uintptr
}

// FxrWorld is a game with a live CSSfx, its FXR resource list and stand ins
// for the allocator and the two definition routines
type FxrWorld struct {
	*Game

	Slot      process.ProcessMemoryAddress
	Instance  process.ProcessMemoryAddress
	Head      process.ProcessMemoryAddress
	Allocator process.ProcessMemoryAddress

	GetAllocator process.ProcessMemoryAddress
	AllocFn      process.ProcessMemoryAddress
	PatchOffsets process.ProcessMemoryAddress
	PrepareFxr   process.ProcessMemoryAddress

	Calls []ForeignCall
	// RefuseAlloc makes the allocator return null
	RefuseAlloc bool
}

// FxrNode is one list entry placed by AddNode
type FxrNode struct {
	Address process.ProcessMemoryAddress
	Wrapper process.ProcessMemoryAddress
}

// NewFxrWorld builds the world around idioms, usually game.EldenRing's
func NewFxrWorld(g *Game, idioms game.Idioms) *FxrWorld {
	g.t.Helper()
	w := &FxrWorld{Game: g}

	w.Slot = g.Singleton("CSSfx")
	w.Instance = g.Alloc(0x70)
	sceneCtrl := g.Alloc(0x30)
	resourceManager := g.Alloc(0x168)
	container := g.Alloc(0x28)
	w.Head = g.Alloc(0x20)

	g.Pointer(w.Instance+0x60, sceneCtrl)
	g.Pointer(sceneCtrl+0x28, resourceManager)
	g.Pointer(resourceManager+0x160, container)
	g.Pointer(container+0x20, w.Head)
	g.Pointer(w.Head, w.Head)
	g.Pointer(w.Head+0x8, w.Head)

	w.Allocator = g.Alloc(0x10)
	vtable := g.Alloc(0x60)
	g.Pointer(w.Allocator, vtable)

	ret := func(process.ProcessMemoryAddress) []byte { return []byte{0xC3} }
	w.GetAllocator = g.Emit(1, ret)
	w.AllocFn = g.Emit(1, ret)
	g.Pointer(vtable+0x50, w.AllocFn)

	g.RegisterFunction(w.GetAllocator, func(args ...uintptr) uintptr {
		w.record("get_allocator", args)
		return uintptr(w.Allocator)
	})
	g.RegisterFunction(w.AllocFn, func(args ...uintptr) uintptr {
		w.record("alloc", args)
		if w.RefuseAlloc {
			return 0
		}
		addr, err := g.Image.Alloc(process.ProcessMemorySize(args[1]), uint64(args[2]))
		if err != nil {
			return 0
		}
		return uintptr(addr)
	})

	w.EmitCallSite(idioms.GetAllocator, w.GetAllocator)
	w.PatchOffsets = w.EmitFunction("patch_fxr_offsets", idioms.PatchOffsets)
	w.PrepareFxr = w.EmitFunction("prepare_fxr", idioms.PrepareFxr)

	g.Pointer(w.Slot, w.Instance)
	return w
}

func (w *FxrWorld) record(name string, args []uintptr) {
	w.Calls = append(w.Calls, ForeignCall{Name: name, Args: append([]uintptr(nil), args...)})
}

// CallsTo filters the recorded calls by name
func (w *FxrWorld) CallsTo(name string) []ForeignCall {
	var out []ForeignCall
	for _, c := range w.Calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// EmitCallSite places code matching p whose only capture is a rel32 to target
func (w *FxrWorld) EmitCallSite(p *pattern.Pattern, target process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	w.t.Helper()
	m, _ := pattern.ScanFirst(p.Value(), p)
	offset := process.ProcessMemoryAddress(m.Captures[0].Location)
	return w.Emit(p.Len(), func(at process.ProcessMemoryAddress) []byte {
		return Synthesize(p, Rel32(at+offset+4, target))
	})
}

// EmitFunction places code matching p and registers a recording stand in there
func (w *FxrWorld) EmitFunction(name string, p *pattern.Pattern) process.ProcessMemoryAddress {
	w.t.Helper()
	at := w.Emit(p.Len(), func(process.ProcessMemoryAddress) []byte {
		return Synthesize(p)
	})
	w.RegisterFunction(at, func(args ...uintptr) uintptr {
		w.record(name, args)
		return 0
	})
	return at
}

// AddNode appends an entry before the head. A zero definition leaves the
// entry without a wrapper.
func (w *FxrWorld) AddNode(id uint32, definition process.ProcessMemoryAddress) FxrNode {
	w.t.Helper()
	node := FxrNode{Address: w.Alloc(0x20)}

	tail, err := w.ReadPOINTER(w.Head + 0x8)
	if err != nil {
		w.t.Fatalf("reading list tail: %v", err)
	}
	w.Pointer(node.Address, w.Head)
	w.Pointer(node.Address+0x8, tail)
	w.Pointer(tail, node.Address)
	w.Pointer(w.Head+0x8, node.Address)
	w.Uint32(node.Address+0x10, id)

	if definition != 0 {
		node.Wrapper = w.Alloc(0x10)
		w.Pointer(node.Wrapper, definition)
		w.Pointer(node.Address+0x18, node.Wrapper)
	}
	return node
}

// Definition reads the definition pointer a node's wrapper holds
func (w *FxrWorld) Definition(n FxrNode) process.ProcessMemoryAddress {
	w.t.Helper()
	d, err := w.ReadPOINTER(n.Wrapper)
	if err != nil {
		w.t.Fatalf("reading wrapper %s: %v", n.Wrapper.ToString(), err)
	}
	return d
}
