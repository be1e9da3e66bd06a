package agent

import (
	"bytes"
	"errors"
	"testing"

	"fxrpatch/config"
	"fxrpatch/game"
	"fxrpatch/lazyinit"
	"fxrpatch/process_blob/blobtest"
	"fxrpatch/protocol"
)

func newWorld(t *testing.T) *blobtest.FxrWorld {
	t.Helper()
	eldenRing, _ := game.ByID(game.EldenRing)
	return blobtest.NewFxrWorld(blobtest.NewGame(t, eldenRing.ProductName), eldenRing.Idioms)
}

func fxrFile(id byte, size int) []byte {
	b := make([]byte, size)
	b[0xC] = id
	for i := 0x10; i < size; i++ {
		b[i] = byte(i)
	}
	return b
}

func TestHandlePatchesEachFile(t *testing.T) {
	w := newWorld(t)
	n := w.AddNode(42, w.Bytes(make([]byte, 0x30)))

	a, err := New(w, config.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Game().ID != game.EldenRing || a.Module() != blobtest.Module {
		t.Fatalf("attached to %s as %s", a.Game().ID, a.Module())
	}

	file := fxrFile(42, 0x30)
	req, err := protocol.EncodeRequest(protocol.Request{Files: [][]byte{file, make([]byte, 4), fxrFile(9, 0x20)}})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := protocol.DecodeResponse(a.Handle(req))
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}

	if resp.Error != nil || len(resp.Results) != 3 {
		t.Fatalf("response = %+v", resp)
	}
	if r := resp.Results[0]; r.Index != 0 || r.ID != 42 || r.Error != nil {
		t.Errorf("result 0 = %+v", r)
	}
	if r := resp.Results[1]; r.Index != 1 || r.Error == nil || r.Error.Kind != protocol.KindInvalidInput {
		t.Errorf("result 1 = %+v, want InvalidInput", r)
	}
	if r := resp.Results[2]; r.ID != 9 || r.Error != nil {
		t.Errorf("result 2 = %+v, an unloaded id is not an error", r)
	}
	if !resp.Failed() || !errors.Is(resp.Err(), protocol.ErrInvalidInput) {
		t.Errorf("Failed = %v, Err = %v", resp.Failed(), resp.Err())
	}

	got, err := w.ReadMemory(w.Definition(n), 0x30)
	if err != nil || !bytes.Equal(got, file) {
		t.Fatalf("definition = %x, %v", got, err)
	}
}

func TestHandleRejectsMalformedRequest(t *testing.T) {
	a, err := New(newWorld(t), config.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := protocol.DecodeResponse(a.Handle([]byte(`{"files": 12}`)))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Kind != protocol.KindInvalidInput || resp.Results != nil {
		t.Fatalf("response = %+v, want InvalidInput", resp)
	}
}

func TestNewRejectsOtherGames(t *testing.T) {
	_, err := New(blobtest.NewGame(t, "SEKIRO™"), config.Default())
	if !errors.Is(err, protocol.ErrUnknownProductName) {
		t.Fatalf("New err = %v, want UnknownProductName", err)
	}
}

func TestInstanceMissingIsPerFile(t *testing.T) {
	w := newWorld(t)
	w.Pointer(w.Slot, 0)
	a, err := New(w, config.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results := a.PatchFiles([][]byte{fxrFile(1, 0x10), fxrFile(2, 0x10)})
	for _, r := range results {
		if r.Error == nil || r.Error.Kind != protocol.KindInstanceMissing {
			t.Errorf("result %d = %+v, want InstanceMissing", r.Index, r)
		}
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
}

func TestServiceAttachesOnce(t *testing.T) {
	w := newWorld(t)
	attaches := 0
	s := NewService(func() (*Agent, error) {
		attaches++
		return New(w, config.Default())
	})
	if s.State() != lazyinit.Uninitialized {
		t.Fatalf("state = %s", s.State())
	}

	req, _ := protocol.EncodeRequest(protocol.Request{Files: [][]byte{fxrFile(5, 0x10)}})
	for i := 0; i < 3; i++ {
		resp, err := protocol.DecodeResponse(s.Handle(req))
		if err != nil || resp.Failed() {
			t.Fatalf("request %d: %+v, %v", i, resp, err)
		}
	}
	if attaches != 1 || s.State() != lazyinit.Ready {
		t.Fatalf("attached %d times, state %s", attaches, s.State())
	}
}

func TestServiceReportsAttachFailure(t *testing.T) {
	s := NewService(func() (*Agent, error) {
		return New(blobtest.NewGame(t, ""), config.Default())
	})
	for i := 0; i < 2; i++ {
		resp, err := protocol.DecodeResponse(s.Handle([]byte(`{"files": []}`)))
		if err != nil {
			t.Fatal(err)
		}
		if resp.Error == nil || resp.Error.Kind != protocol.KindGameDetection {
			t.Fatalf("response %d = %+v, want GameDetection", i, resp)
		}
	}
}
