// Package singleton finds the target's global singleton instances by type
// name without per-build offsets.
//
// The table is built by scanning .text for the runtime's null check idiom,
// vetting the three addresses each match references, then calling the
// discovered name accessor inside the target to learn each type's name.
// Some singletons only exist in certain game states, which is why an
// instance lookup distinguishes "unknown type" from "currently null".
package singleton

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"fxrpatch/lazyinit"
	"fxrpatch/process"
	"fxrpatch/protocol"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Target is what the locator needs from a process
type Target interface {
	process.MemoryAccess
	process.ProcessRead
	process.ForeignCaller
	process.ModuleLookup
}

// Table maps a type name to the static slot holding its instance pointer
type Table map[string]process.ProcessMemoryAddress

// Names returns the table keys in sorted order
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const DefaultNameMaxLength = 256

// Locator owns the singleton table of one attached process
type Locator struct {
	target        Target
	modules       []string
	nameMaxLength process.ProcessMemorySize
	log           *logger.Logger
	table         *lazyinit.Value[Table]
}

// Option configures a Locator
type Option func(*Locator)

func WithNameMaxLength(n uint) Option {
	return func(l *Locator) {
		if n > 0 {
			l.nameMaxLength = process.ProcessMemorySize(n)
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(l *Locator) {
		l.log = log
	}
}

// NewLocator creates a locator for target. modules are the executable names
// the game may be running as, tried in order.
func NewLocator(target Target, modules []string, options ...Option) *Locator {
	l := &Locator{
		target:        target,
		modules:       modules,
		nameMaxLength: DefaultNameMaxLength,
		log:           logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "singleton")),
	}
	for _, opt := range options {
		opt(l)
	}
	l.table = lazyinit.New(l.build)
	return l
}

// Table returns the singleton table, building it on first use
func (l *Locator) Table() (Table, error) {
	return l.table.Get()
}

func (l *Locator) State() lazyinit.State {
	return l.table.State()
}

// GetInstance resolves the live instance of a singleton type. present is
// false when the type is known but its slot currently holds null.
func (l *Locator) GetInstance(name string) (instance process.ProcessMemoryAddress, present bool, err error) {
	table, err := l.Table()
	if err != nil {
		return 0, false, err
	}

	slot, ok := table[name]
	if !ok {
		return 0, false, protocol.Errorf(protocol.KindNotFound, "singleton %q is not in the table", name)
	}

	instance, err = l.target.ReadPOINTER(slot)
	if err != nil {
		return 0, false, protocol.Wrap(protocol.KindMemoryAccess, err, "failed to read %s slot at %s", name, slot.ToString())
	}
	if instance == 0 {
		return 0, false, nil
	}
	return instance, true, nil
}

func (l *Locator) build() (Table, error) {
	table, err := l.buildTable()
	if err != nil {
		l.log.Warn("Singleton table could not be built: ", err)
		return nil, protocol.Wrap(protocol.KindSingletonMapCreation, err, "failed to build singleton table")
	}
	l.log.Infoln("Singleton table ready with", len(table), "entries")
	return table, nil
}

func (l *Locator) buildTable() (Table, error) {
	module, _, err := process.FirstLoadedModule(l.target, l.modules...)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindNoGameBase, err, "failed to locate game base")
	}

	textRange, err := l.section(module, ".text")
	if err != nil {
		return nil, err
	}
	dataRange, err := l.section(module, ".data")
	if err != nil {
		return nil, err
	}

	text, err := process.ReadSection(l.target, textRange)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindMemoryAccess, err, "failed to read %s .text", module)
	}

	l.log.Infoln("Scanning", module, ".text", textRange.String(), "for singleton null checks")

	table := Table{}
	for c := range Candidates(text, textRange, dataRange) {
		name, ok, err := l.typeName(c)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if prev, dup := table[name]; dup && prev != c.Static {
			l.log.Debugln("Duplicate singleton", name, "at", c.Static.ToString(), "replaces", prev.ToString())
		}
		table[name] = c.Static
	}

	return table, nil
}

func (l *Locator) section(module, name string) (process.SectionRange, error) {
	r, err := l.target.ModuleSection(module, name)
	if err != nil {
		return process.SectionRange{}, protocol.Wrap(protocol.KindSectionNotFound, err, "failed to locate section %s", name)
	}
	return r, nil
}

// typeName calls char* get_singleton_name(metadata). A null, unreadable or
// non UTF-8 result disqualifies only this candidate.
func (l *Locator) typeName(c Candidate) (string, bool, error) {
	ret, err := l.target.Call(process.Win64, c.NameAccessor, uintptr(c.Metadata))
	if err != nil {
		return "", false, protocol.Wrap(protocol.KindMemoryAccess, err, "failed to call name accessor at %s", c.NameAccessor.ToString())
	}
	if ret == 0 {
		l.log.Debugln("Null name for candidate at", c.Location.ToString())
		return "", false, nil
	}

	name, err := l.target.ReadNTS(process.ProcessMemoryAddress(ret), l.nameMaxLength)
	if err != nil {
		l.log.Debugln("Unreadable name for candidate at", c.Location.ToString(), err)
		return "", false, nil
	}
	if name == "" || !utf8.ValidString(name) {
		l.log.Debugln("Malformed name for candidate at", c.Location.ToString(), fmt.Sprintf("%q", name))
		return "", false, nil
	}
	return name, true, nil
}
