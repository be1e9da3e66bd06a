// idiom_scan checks a game build for the code idioms the patcher relies on,
// from an executable on disk or a saved image dump, without running the game.
package main

import (
	"flag"
	"fmt"
	"os"

	"fxrpatch/game"
	"fxrpatch/hexdump"
	"fxrpatch/pattern"
	"fxrpatch/process"
	"fxrpatch/process_blob"
	"fxrpatch/singleton"
)

func main() {
	peFlag := flag.String("pe", "", "Executable to map and scan")
	dumpFlag := flag.String("dump", "", "Image dump directory to scan instead of an executable")
	gameFlag := flag.String("game", string(game.EldenRing), "Game whose idioms to look for")
	moduleFlag := flag.String("module", "", "Extra module name to look for in a dump")
	saveFlag := flag.String("save", "", "Save the mapped image as a dump to this directory")
	contextFlag := flag.Int("context", 16, "Bytes of context around each match")
	flag.Parse()

	if (*peFlag == "") == (*dumpFlag == "") {
		fmt.Println("Error: exactly one of --pe or --dump is required")
		flag.Usage()
		os.Exit(1)
	}

	g, ok := game.ByID(game.ID(*gameFlag))
	if !ok {
		fmt.Printf("Error: unknown game %q\n", *gameFlag)
		os.Exit(1)
	}

	img, module, err := open(g, *peFlag, *dumpFlag, *moduleFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if *saveFlag != "" {
		if err := img.Save(*saveFlag); err != nil {
			fmt.Printf("Error saving dump to %s: %v\n", *saveFlag, err)
			os.Exit(1)
		}
		fmt.Printf("Saved image to %s\n", *saveFlag)
	}

	textRange, err := img.ModuleSection(module, ".text")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	text, err := process.ReadSection(img, textRange)
	if err != nil {
		fmt.Printf("Error reading .text: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Scanning %s .text %s\n", module, textRange.String())

	missing := 0
	for _, np := range g.Idioms.Named() {
		if !report(np, text, textRange, *contextFlag) {
			missing++
		}
	}

	if dataRange, err := img.ModuleSection(module, ".data"); err == nil {
		count := 0
		for range singleton.Candidates(text, textRange, dataRange) {
			count++
		}
		fmt.Printf("\n%d singleton null checks pass the section checks\n", count)
	} else {
		fmt.Printf("\nNo .data section, skipping singleton candidates: %v\n", err)
	}

	if missing > 0 {
		fmt.Printf("%d idioms not found\n", missing)
		os.Exit(2)
	}
}

func open(g game.Game, pePath, dumpDir, extraModule string) (*process_blob.Image, string, error) {
	if pePath != "" {
		return process_blob.LoadPE(pePath)
	}

	img, err := process_blob.Load(dumpDir)
	if err != nil {
		return nil, "", fmt.Errorf("loading dump from %s: %w", dumpDir, err)
	}
	var extra []string
	if extraModule != "" {
		extra = append(extra, extraModule)
	}
	module, _, err := g.FindModule(img, extra...)
	if err != nil {
		return nil, "", err
	}
	return img, module, nil
}

// report prints every match of one idiom and dumps the first
func report(np game.NamedPattern, text []byte, textRange process.SectionRange, context int) bool {
	fmt.Printf("\n%s (%d bytes):\n", np.Name, np.Pattern.Len())

	found := false
	for m := range pattern.ScanAll(text, np.Pattern) {
		local := m
		m = m.Rebase(uint64(textRange.Start))
		fmt.Printf("  match at 0x%x", m.Location)
		for i, c := range m.Captures {
			if target, err := pattern.ResolveCallTarget(c); err == nil {
				fmt.Printf("  capture %d -> 0x%x", i, target)
			} else {
				fmt.Printf("  capture %d = %x", i, c.Bytes)
			}
		}
		fmt.Println()

		if !found {
			start := max(0, int(local.Location)-context)
			end := min(len(text), int(local.Location)+np.Pattern.Len()+context)
			spans := []hexdump.Span{}
			for _, c := range local.Captures {
				off := int(c.Location) - start
				spans = append(spans, hexdump.Span{Start: off, End: off + len(c.Bytes)})
			}
			fmt.Print(hexdump.DumpWithHighlights(text[start:end], uint64(textRange.Start)+uint64(start), spans...))
		}
		found = true
	}

	if !found {
		fmt.Println("  not found")
	}
	return found
}
