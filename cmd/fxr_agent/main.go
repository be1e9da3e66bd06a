//go:build windows

// fxr_agent is the DLL injected into the game. Build with
//
//	go build -buildmode=c-shared -o fxr_agent.dll ./cmd/fxr_agent
//
// The injector calls PatchFxr with a JSON request and must hand the
// returned string back to FreeResult.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"fxrpatch/agent"
	"fxrpatch/config"
	"fxrpatch/process_windows"
	"fxrpatch/protocol"
)

var service = agent.NewService(func() (*agent.Agent, error) {
	settings, err := config.FromEnvironment()
	if err != nil {
		return nil, protocol.Wrap(protocol.KindInvalidInput, err, "failed to load settings")
	}
	return agent.New(process_windows.New(), settings)
})

//export PatchFxr
func PatchFxr(request *C.char, length C.int) *C.char {
	var data []byte
	if request != nil && length > 0 {
		data = C.GoBytes(unsafe.Pointer(request), length)
	}
	return C.CString(string(service.Handle(data)))
}

//export FreeResult
func FreeResult(result *C.char) {
	C.free(unsafe.Pointer(result))
}

func main() {}
