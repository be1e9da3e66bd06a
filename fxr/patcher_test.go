package fxr

import (
	"bytes"
	"errors"
	"testing"

	"fxrpatch/game"
	"fxrpatch/pattern"
	"fxrpatch/process"
	"fxrpatch/process_blob/blobtest"
	"fxrpatch/protocol"
	"fxrpatch/singleton"
)

var modules = []string{blobtest.Module}

func newWorld(t *testing.T) (*blobtest.FxrWorld, *Patcher) {
	t.Helper()
	eldenRing, _ := game.ByID(game.EldenRing)
	w := blobtest.NewFxrWorld(blobtest.NewGame(t, eldenRing.ProductName), eldenRing.Idioms)
	locator := singleton.NewLocator(w, modules)
	return w, NewPatcher(w, locator, eldenRing.Idioms, modules)
}

// stubInstances reports a fixed answer for every type name
type stubInstances struct {
	instance process.ProcessMemoryAddress
	present  bool
	err      error
	lookups  int
}

func (s *stubInstances) GetInstance(string) (process.ProcessMemoryAddress, bool, error) {
	s.lookups++
	return s.instance, s.present, s.err
}

func TestPatchReplacesMatchingDefinition(t *testing.T) {
	w, p := newWorld(t)

	oldA := w.Bytes(make([]byte, 0x20))
	oldB := w.Bytes(make([]byte, 0x20))
	a := w.AddNode(42, oldA)
	b := w.AddNode(7, oldB)

	payload := []byte{
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	if err := p.Patch(payload); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	allocs := w.CallsTo("alloc")
	if len(allocs) != 1 {
		t.Fatalf("alloc called %d times, want 1", len(allocs))
	}
	args := allocs[0].Args
	if len(args) != 3 || args[0] != uintptr(w.Allocator) || args[1] != 20 || args[2] != 0x10 {
		t.Fatalf("alloc args = %#x, want allocator, 20, 0x10", args)
	}

	block := w.Definition(a)
	if block == oldA {
		t.Fatal("node A still points at its old definition")
	}
	got, err := w.ReadMemory(block, process.ProcessMemorySize(len(payload)))
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("new block = %x, %v; want payload copied verbatim", got, err)
	}
	if w.Definition(b) != oldB {
		t.Fatal("node B was modified")
	}

	patched := w.CallsTo("patch_fxr_offsets")
	if len(patched) != 1 {
		t.Fatalf("patch_fxr_offsets called %d times", len(patched))
	}
	if pa := patched[0].Args; len(pa) != 3 || pa[0] != uintptr(block) || pa[1] != pa[0] || pa[2] != pa[0] {
		t.Fatalf("patch_fxr_offsets args = %#x, want the block three times", pa)
	}
	prepared := w.CallsTo("prepare_fxr")
	if len(prepared) != 1 || len(prepared[0].Args) != 1 || prepared[0].Args[0] != uintptr(block) {
		t.Fatalf("prepare_fxr calls = %+v", prepared)
	}

	order := []string{}
	for _, c := range w.Calls {
		order = append(order, c.Name)
	}
	want := []string{"get_allocator", "alloc", "patch_fxr_offsets", "prepare_fxr"}
	if len(order) != len(want) {
		t.Fatalf("call order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("call order = %v, want %v", order, want)
		}
	}
}

func TestShortPayloadIsRejectedBeforeLookup(t *testing.T) {
	w, _ := newWorld(t)
	instances := &stubInstances{}
	p := NewPatcher(w, instances, game.Idioms{}, modules)

	err := p.Patch(make([]byte, 10))
	if !errors.Is(err, protocol.ErrInvalidInput) {
		t.Fatalf("Patch err = %v, want InvalidInput", err)
	}
	if instances.lookups != 0 || len(w.Calls) != 0 {
		t.Fatalf("short payload caused %d lookups and %d calls", instances.lookups, len(w.Calls))
	}
}

func TestUnknownIDIsNoOp(t *testing.T) {
	w, p := newWorld(t)
	old := w.Bytes(make([]byte, 0x20))
	n := w.AddNode(1, old)

	payload := make([]byte, 0x40)
	payload[0xC] = 99
	writes := w.Writes()
	if err := p.Patch(payload); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if w.Writes() != writes {
		t.Fatalf("unknown id wrote memory %d times", w.Writes()-writes)
	}
	if w.Definition(n) != old || len(w.Calls) != 0 {
		t.Fatalf("unknown id changed state: calls %+v", w.Calls)
	}
}

func TestEmptyListTerminates(t *testing.T) {
	w, p := newWorld(t)

	payload := make([]byte, MinPayloadSize)
	if err := p.Patch(payload); err != nil {
		t.Fatalf("Patch on empty list: %v", err)
	}

	list, err := p.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Head() != w.Head {
		t.Fatalf("head = %s, want %s", list.Head().ToString(), w.Head.ToString())
	}
	var walkErr error
	for n := range list.Nodes(&walkErr) {
		t.Errorf("unexpected node %s", n.Address.ToString())
	}
	if walkErr != nil {
		t.Fatal(walkErr)
	}
}

func TestEmptySlotsAreSkipped(t *testing.T) {
	w, p := newWorld(t)
	empty := w.AddNode(42, 0)
	populated := w.AddNode(42, w.Bytes(make([]byte, 0x20)))

	payload := make([]byte, 0x20)
	payload[0xC] = 42
	if err := p.Patch(payload); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	wrapper, err := w.ReadPOINTER(empty.Address + 0x18)
	if err != nil || wrapper != 0 {
		t.Fatalf("empty slot wrapper = %s, %v", wrapper.ToString(), err)
	}
	def, err := w.ReadMemory(w.Definition(populated), 0x20)
	if err != nil || !bytes.Equal(def, payload) {
		t.Fatalf("populated node was not patched: %x, %v", def, err)
	}
}

func TestMissingInstance(t *testing.T) {
	w, p := newWorld(t)
	w.Pointer(w.Slot, 0)

	err := p.Patch(make([]byte, MinPayloadSize))
	if !errors.Is(err, protocol.ErrInstanceMissing) {
		t.Fatalf("Patch err = %v, want InstanceMissing", err)
	}
}

func TestLookupErrorsPropagate(t *testing.T) {
	w, _ := newWorld(t)
	boom := protocol.Errorf(protocol.KindSingletonMapCreation, "no table")
	p := NewPatcher(w, &stubInstances{err: boom}, game.Idioms{}, modules)

	if err := p.Patch(make([]byte, MinPayloadSize)); err != boom {
		t.Fatalf("Patch err = %v, want %v", err, boom)
	}
}

func TestRefusedAllocation(t *testing.T) {
	w, p := newWorld(t)
	n := w.AddNode(5, w.Bytes(make([]byte, 0x20)))
	old := w.Definition(n)
	w.RefuseAlloc = true

	payload := make([]byte, 0x20)
	payload[0xC] = 5
	err := p.Patch(payload)
	if !errors.Is(err, protocol.ErrAllocationFailed) {
		t.Fatalf("Patch err = %v, want AllocationFailed", err)
	}
	if w.Definition(n) != old {
		t.Fatal("definition swapped after a refused allocation")
	}
	if len(w.CallsTo("patch_fxr_offsets")) != 0 {
		t.Fatal("patch_fxr_offsets called after a refused allocation")
	}
}

func TestMissingIdiom(t *testing.T) {
	w, _ := newWorld(t)
	eldenRing, _ := game.ByID(game.EldenRing)
	idioms := eldenRing.Idioms
	idioms.PrepareFxr = pattern.MustCompile("11110000 00001111 11110000 00001111 11110000")

	w.AddNode(3, w.Bytes(make([]byte, 0x20)))
	p := NewPatcher(w, singleton.NewLocator(w, modules), idioms, modules)

	payload := make([]byte, 0x20)
	payload[0xC] = 3
	err := p.Patch(payload)
	if !errors.Is(err, protocol.ErrPatternNotMatched) {
		t.Fatalf("Patch err = %v, want PatternNotMatched", err)
	}
	if len(w.Calls) != 0 {
		t.Fatalf("calls made before every entry point was found: %+v", w.Calls)
	}
	if _, again := p.EntryPoints(); again == nil {
		t.Fatal("entry point failure was not kept")
	}
}

func TestEntryPointsResolveToEmittedCode(t *testing.T) {
	w, p := newWorld(t)
	entries, err := p.EntryPoints()
	if err != nil {
		t.Fatalf("EntryPoints: %v", err)
	}
	want := EntryPoints{GetAllocator: w.GetAllocator, PatchOffsets: w.PatchOffsets, PrepareFxr: w.PrepareFxr}
	if entries != want {
		t.Fatalf("EntryPoints = %+v, want %+v", entries, want)
	}
}

func TestWalkLimit(t *testing.T) {
	w, _ := newWorld(t)
	for id := uint32(1); id <= 4; id++ {
		w.AddNode(id, w.Bytes(make([]byte, 0x10)))
	}

	list := NewList(w, w.Head, 3)
	_, found, err := list.Find(4)
	if found || !errors.Is(err, protocol.ErrMemoryAccess) {
		t.Fatalf("Find past the walk limit = %v, %v; want MemoryAccess", found, err)
	}

	list = NewList(w, w.Head, 0)
	n, found, err := list.Find(4)
	if err != nil || !found || n.ID != 4 {
		t.Fatalf("unbounded Find = %+v, %v, %v", n, found, err)
	}
}

func TestNullNextLinkEndsWalk(t *testing.T) {
	w, _ := newWorld(t)
	first := w.AddNode(1, w.Bytes(make([]byte, 0x10)))
	w.AddNode(2, w.Bytes(make([]byte, 0x10)))
	w.Pointer(first.Address, 0)

	var err error
	var ids []uint32
	for n := range NewList(w, w.Head, 0).Nodes(&err) {
		ids = append(ids, n.ID)
	}
	if err != nil || len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("walk over a broken list = %v, %v; want [1], nil", ids, err)
	}
}
