// Package fxr swaps FXR effect definitions inside a running game.
//
// A patch finds the live definition with the payload's id in the CSSfx
// resource list, hands a copy of the payload to the game's own allocator,
// lets the game relocate and prepare it, and then points the list entry at
// the new block. The old block is left to the game.
package fxr

import (
	"encoding/binary"
	"fmt"

	"fxrpatch/game"
	"fxrpatch/lazyinit"
	"fxrpatch/pattern"
	"fxrpatch/process"
	"fxrpatch/protocol"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Target is what the patcher needs from a process
type Target interface {
	process.MemoryAccess
	process.ProcessRead
	process.ProcessWrite
	process.ForeignCaller
	process.ModuleLookup
}

// InstanceResolver looks up live singleton instances by type name
type InstanceResolver interface {
	GetInstance(name string) (process.ProcessMemoryAddress, bool, error)
}

const (
	DefaultSingleton     = "CSSfx"
	DefaultListWalkLimit = 1 << 16
)

// EntryPoints are the game functions a patch calls
type EntryPoints struct {
	GetAllocator process.ProcessMemoryAddress
	PatchOffsets process.ProcessMemoryAddress
	PrepareFxr   process.ProcessMemoryAddress
}

// Patcher is bound to one attached process
type Patcher struct {
	target    Target
	instances InstanceResolver
	idioms    game.Idioms
	modules   []string
	singleton string
	walkLimit int
	log       *logger.Logger
	entries   *lazyinit.Value[EntryPoints]
}

type Option func(*Patcher)

// WithSingleton overrides the type name of the list owner
func WithSingleton(name string) Option {
	return func(p *Patcher) {
		if name != "" {
			p.singleton = name
		}
	}
}

func WithListWalkLimit(n int) Option {
	return func(p *Patcher) {
		if n > 0 {
			p.walkLimit = n
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(p *Patcher) {
		p.log = log
	}
}

// NewPatcher prepares a patcher. The entry points are located in the .text
// of the first loaded module of modules when the first matching id is seen.
func NewPatcher(target Target, instances InstanceResolver, idioms game.Idioms, modules []string, options ...Option) *Patcher {
	p := &Patcher{
		target:    target,
		instances: instances,
		idioms:    idioms,
		modules:   modules,
		singleton: DefaultSingleton,
		walkLimit: DefaultListWalkLimit,
		log:       logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "fxr")),
	}
	for _, opt := range options {
		opt(p)
	}
	p.entries = lazyinit.New(p.locateEntryPoints)
	return p
}

// PayloadID extracts the definition id from an FXR file
func PayloadID(payload []byte) (uint32, error) {
	if len(payload) < MinPayloadSize {
		return 0, protocol.Errorf(protocol.KindInvalidInput, "fxr payload is %d bytes, need at least %d", len(payload), MinPayloadSize)
	}
	return binary.LittleEndian.Uint32(payload[payloadIDOffset:]), nil
}

// Patch replaces the live definition that has the payload's id. An id that
// is not loaded is not an error and changes nothing. A failure after the
// allocation leaves the block orphaned and the old definition in place.
func (p *Patcher) Patch(payload []byte) error {
	id, err := PayloadID(payload)
	if err != nil {
		return err
	}

	list, err := p.List()
	if err != nil {
		return err
	}

	node, found, err := list.Find(id)
	if err != nil {
		return err
	}
	if !found {
		p.log.Infoln("No loaded fxr with id", id, "nothing to patch")
		return nil
	}

	p.log.Infoln("Patching fxr", id, "at node", node.Address.ToString())
	return p.swap(node, payload)
}

// List resolves the live FXR definition list
func (p *Patcher) List() (*List, error) {
	instance, present, err := p.instances.GetInstance(p.singleton)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, protocol.Errorf(protocol.KindInstanceMissing, "%s has no live instance", p.singleton)
	}

	head, err := process.ReadPointerChain(p.target, instance+process.ProcessMemoryAddress(listHeadChain[0]), listHeadChain[1:]...)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindMemoryAccess, err, "failed to follow %s to the fxr list", p.singleton)
	}
	if head == 0 {
		return nil, protocol.Errorf(protocol.KindMemoryAccess, "%s fxr list head is null", p.singleton)
	}
	return NewList(p.target, head, p.walkLimit), nil
}

func (p *Patcher) swap(node Node, payload []byte) error {
	entries, err := p.entries.Get()
	if err != nil {
		return err
	}

	allocator, err := p.call(entries.GetAllocator, "get_allocator")
	if err != nil {
		return err
	}
	if allocator == 0 {
		return protocol.Errorf(protocol.KindAllocationFailed, "fxr allocator accessor returned null")
	}

	alloc, err := p.allocFunction(process.ProcessMemoryAddress(allocator))
	if err != nil {
		return err
	}

	block, err := p.call(alloc, "allocator alloc", allocator, uintptr(len(payload)), allocAlignment)
	if err != nil {
		return err
	}
	if block == 0 {
		return protocol.Errorf(protocol.KindAllocationFailed, "allocator refused %d bytes", len(payload))
	}
	definition := process.ProcessMemoryAddress(block)

	if err := p.target.WriteMemory(definition, payload); err != nil {
		return protocol.Wrap(protocol.KindMemoryAccess, err, "failed to copy fxr into %s", definition.ToString())
	}

	// the game's relocation routine takes the same block in all three argument registers
	if _, err := p.call(entries.PatchOffsets, "patch_fxr_offsets", block, block, block); err != nil {
		return err
	}
	if _, err := p.call(entries.PrepareFxr, "prepare_fxr", block); err != nil {
		return err
	}

	slot := node.Wrapper + process.ProcessMemoryAddress(wrapperDefinition)
	if err := p.target.WritePOINTER(slot, definition); err != nil {
		return protocol.Wrap(protocol.KindMemoryAccess, err, "failed to swap definition pointer at %s", slot.ToString())
	}

	p.log.Debugln("fxr", node.ID, "now at", definition.ToString())
	return nil
}

func (p *Patcher) allocFunction(allocator process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	vtable, err := p.target.ReadPOINTER(allocator)
	if err != nil {
		return 0, protocol.Wrap(protocol.KindMemoryAccess, err, "failed to read allocator vtable at %s", allocator.ToString())
	}
	fn, err := p.target.ReadPOINTER(vtable + process.ProcessMemoryAddress(allocatorAllocSlot))
	if err != nil {
		return 0, protocol.Wrap(protocol.KindMemoryAccess, err, "failed to read allocator alloc slot at %s", vtable.ToString())
	}
	return fn, nil
}

func (p *Patcher) call(fn process.ProcessMemoryAddress, name string, args ...uintptr) (uintptr, error) {
	ret, err := p.target.Call(process.Win64, fn, args...)
	if err != nil {
		return 0, protocol.Wrap(protocol.KindMemoryAccess, err, "failed to call %s at %s", name, fn.ToString())
	}
	return ret, nil
}

// EntryPoints returns the located game functions, scanning on first use
func (p *Patcher) EntryPoints() (EntryPoints, error) {
	return p.entries.Get()
}

func (p *Patcher) locateEntryPoints() (EntryPoints, error) {
	module, _, err := process.FirstLoadedModule(p.target, p.modules...)
	if err != nil {
		return EntryPoints{}, protocol.Wrap(protocol.KindNoGameBase, err, "failed to locate game base")
	}
	textRange, err := p.target.ModuleSection(module, ".text")
	if err != nil {
		return EntryPoints{}, protocol.Wrap(protocol.KindSectionNotFound, err, "failed to locate %s .text", module)
	}
	text, err := process.ReadSection(p.target, textRange)
	if err != nil {
		return EntryPoints{}, protocol.Wrap(protocol.KindMemoryAccess, err, "failed to read %s .text", module)
	}

	find := func(name string, pat *pattern.Pattern) (pattern.Match, error) {
		m, ok := pattern.ScanFirst(text, pat)
		if !ok {
			return pattern.Match{}, protocol.Errorf(protocol.KindPatternNotMatched, "%s idiom not found in %s .text", name, module)
		}
		return m.Rebase(uint64(textRange.Start)), nil
	}

	m, err := find("get_allocator", p.idioms.GetAllocator)
	if err != nil {
		return EntryPoints{}, err
	}
	if len(m.Captures) != 1 {
		return EntryPoints{}, protocol.Errorf(protocol.KindPatternSyntax, "get_allocator idiom has %d captures, want 1", len(m.Captures))
	}
	getAllocator, err := pattern.ResolveCallTarget(m.Captures[0])
	if err != nil {
		return EntryPoints{}, err
	}

	patchOffsets, err := find("patch_fxr_offsets", p.idioms.PatchOffsets)
	if err != nil {
		return EntryPoints{}, err
	}
	prepare, err := find("prepare_fxr", p.idioms.PrepareFxr)
	if err != nil {
		return EntryPoints{}, err
	}

	entries := EntryPoints{
		GetAllocator: process.ProcessMemoryAddress(getAllocator),
		PatchOffsets: process.ProcessMemoryAddress(patchOffsets.Location),
		PrepareFxr:   process.ProcessMemoryAddress(prepare.Location),
	}
	p.log.Infoln(fmt.Sprintf("fxr entry points get_allocator=%s patch_fxr_offsets=%s prepare_fxr=%s",
		entries.GetAllocator.ToString(), entries.PatchOffsets.ToString(), entries.PrepareFxr.ToString()))
	return entries, nil
}
