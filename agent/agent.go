// Package agent is the in-process entry point: it detects the running game
// once, keeps the singleton table and patcher for the life of the process,
// and answers patch requests arriving across the process boundary.
package agent

import (
	"fmt"

	"fxrpatch/config"
	"fxrpatch/fxr"
	"fxrpatch/game"
	"fxrpatch/process"
	"fxrpatch/protocol"
	"fxrpatch/singleton"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Agent is bound to one attached process
type Agent struct {
	game     game.Game
	module   string
	settings config.Settings
	locator  *singleton.Locator
	patcher  *fxr.Patcher
	log      *logger.Logger
}

// New detects the game running in target and prepares the patching state.
// The singleton table and the entry points are built on the first patch.
func New(target process.Process, settings config.Settings) (*Agent, error) {
	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "agent"))

	g, err := game.Detect(target)
	if err != nil {
		log.Warn("Game detection failed: ", err)
		return nil, err
	}
	module, base, err := g.FindModule(target, settings.Modules...)
	if err != nil {
		return nil, err
	}
	log.Infoln("Attached to", g.ID, "running as", module, "at", base.ToString())

	modules := g.ModuleNames(settings.Modules...)
	locator := singleton.NewLocator(target, modules,
		singleton.WithNameMaxLength(uint(settings.NameMaxLength)))
	patcher := fxr.NewPatcher(target, locator, g.Idioms, modules,
		fxr.WithSingleton(g.SfxSingleton),
		fxr.WithListWalkLimit(settings.ListWalkLimit))

	return &Agent{
		game:     g,
		module:   module,
		settings: settings,
		locator:  locator,
		patcher:  patcher,
		log:      log,
	}, nil
}

func (a *Agent) Game() game.Game {
	return a.game
}

// Module is the executable name the game was found under
func (a *Agent) Module() string {
	return a.module
}

func (a *Agent) Locator() *singleton.Locator {
	return a.locator
}

func (a *Agent) Patcher() *fxr.Patcher {
	return a.patcher
}

// PatchFiles patches each buffer on its own. A failure is reported in that
// file's result and does not stop the remaining files.
func (a *Agent) PatchFiles(files [][]byte) []protocol.FileResult {
	results := make([]protocol.FileResult, 0, len(files))
	for i, file := range files {
		res := protocol.FileResult{Index: i}
		if id, err := fxr.PayloadID(file); err == nil {
			res.ID = id
		}
		if err := a.patcher.Patch(file); err != nil {
			a.log.Warn(fmt.Sprintf("Patching file %d failed: ", i), err)
			res.Error = protocol.FromError(err)
		} else if a.settings.Debug {
			a.log.Infoln("Patched file", i, "id", res.ID)
		}
		results = append(results, res)
	}
	return results
}

// Handle decodes a JSON request, patches every file and returns the JSON response
func (a *Agent) Handle(request []byte) []byte {
	req, err := protocol.DecodeRequest(request)
	if err != nil {
		return protocol.EncodeResponse(protocol.Response{Error: protocol.FromError(err)})
	}
	return protocol.EncodeResponse(protocol.Response{Results: a.PatchFiles(req.Files)})
}
