package game

import (
	"errors"
	"reflect"
	"testing"

	"fxrpatch/process"
	"fxrpatch/process_blob"
	"fxrpatch/protocol"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name    string
		product string
		want    ID
		err     error
	}{
		{"elden ring", "ELDEN RING™", EldenRing, nil},
		{"unknown title", "DARK SOULS III", "", protocol.ErrUnknownProductName},
		{"no version resource", "", "", protocol.ErrGameDetection},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			img := process_blob.NewImage()
			if tc.product != "" {
				img.SetProductName(tc.product)
			}
			g, err := Detect(img)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("Detect err = %v, want %v", err, tc.err)
				}
				return
			}
			if err != nil || g.ID != tc.want {
				t.Fatalf("Detect = %s, %v; want %s", g.ID, err, tc.want)
			}
		})
	}
}

func TestModuleNames(t *testing.T) {
	g, ok := ByID(EldenRing)
	if !ok {
		t.Fatal("ByID(EldenRing) failed")
	}
	got := g.ModuleNames("eldenring.exe", "er_dev.exe", "er_dev.exe")
	want := []string{"eldenring.exe", "start_protected_game.exe", "er_dev.exe"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ModuleNames = %v, want %v", got, want)
	}
}

func TestFindModule(t *testing.T) {
	g, _ := ByID(EldenRing)

	img := process_blob.NewImage()
	err := img.AddModule("start_protected_game.exe", 0x140000000, map[string]process.SectionRange{
		".text": {Start: 0x140001000, End: 0x140002000},
	})
	if err != nil {
		t.Fatal(err)
	}

	name, base, err := g.FindModule(img)
	if err != nil || name != "start_protected_game.exe" || base != 0x140000000 {
		t.Fatalf("FindModule = %s, %s, %v", name, base.ToString(), err)
	}

	_, _, err = g.FindModule(process_blob.NewImage())
	if !errors.Is(err, protocol.ErrNoGameBase) || !errors.Is(err, process.ErrModuleNotFound) {
		t.Fatalf("FindModule on empty image err = %v", err)
	}
}

func TestIdiomsCompile(t *testing.T) {
	for _, g := range Supported() {
		for _, np := range g.Idioms.Named() {
			if np.Pattern == nil || np.Pattern.Len() == 0 {
				t.Errorf("%s %s is empty", g.ID, np.Name)
			}
		}
		if n := g.Idioms.GetAllocator.NumCaptures(); n != 1 {
			t.Errorf("%s get_allocator has %d captures, want 1", g.ID, n)
		}
	}
}
