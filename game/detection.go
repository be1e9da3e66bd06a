// Package game knows which games the patcher supports and how to tell them apart.
package game

import (
	"fxrpatch/process"
	"fxrpatch/protocol"
)

// ID names a supported game
type ID string

const (
	EldenRing ID = "eldenring"
)

// Game is one supported title. Distribution builds of the same title share
// structure and differ only in the executable name.
type Game struct {
	ID           ID
	ProductName  string
	Modules      []string
	Idioms       Idioms
	SfxSingleton string
}

var supported = []Game{
	{
		ID:           EldenRing,
		ProductName:  "ELDEN RING™",
		Modules:      []string{"eldenring.exe", "start_protected_game.exe"},
		Idioms:       eldenRingIdioms,
		SfxSingleton: "CSSfx",
	},
}

// Supported returns every game this build can patch
func Supported() []Game {
	out := make([]Game, len(supported))
	copy(out, supported)
	return out
}

// ByID looks a game up by its identifier
func ByID(id ID) (Game, bool) {
	for _, g := range supported {
		if g.ID == id {
			return g, true
		}
	}
	return Game{}, false
}

// Detect identifies the running game from the main module's product name
func Detect(p process.ProductNamer) (Game, error) {
	name, err := p.ProductName()
	if err != nil {
		return Game{}, protocol.Wrap(protocol.KindGameDetection, err, "failed to read product name")
	}
	for _, g := range supported {
		if g.ProductName == name {
			return g, nil
		}
	}
	return Game{}, protocol.Errorf(protocol.KindUnknownProductName, "did not recognize game for product name %q", name)
}

// ModuleNames returns the built in executable names followed by extra ones
func (g Game) ModuleNames(extra ...string) []string {
	names := make([]string, 0, len(g.Modules)+len(extra))
	names = append(names, g.Modules...)
	for _, e := range extra {
		dup := false
		for _, n := range names {
			if n == e {
				dup = true
				break
			}
		}
		if !dup {
			names = append(names, e)
		}
	}
	return names
}

// FindModule returns the first of the game's executables loaded in the target
func (g Game) FindModule(l process.ModuleLookup, extra ...string) (string, process.ProcessMemoryAddress, error) {
	name, base, err := process.FirstLoadedModule(l, g.ModuleNames(extra...)...)
	if err != nil {
		return "", 0, protocol.Wrap(protocol.KindNoGameBase, err, "failed to locate %s", g.ID)
	}
	return name, base, nil
}
