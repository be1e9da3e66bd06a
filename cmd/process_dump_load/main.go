package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"fxrpatch/hexdump"
	"fxrpatch/process"
	"fxrpatch/process_blob"
)

func main() {
	fromFlag := flag.String("from", "", "Directory containing the dump")
	addrFlag := flag.String("addr", "", "Address to read from (hex)")
	sizeFlag := flag.Int("size", 256, "Number of bytes to hexdump")
	chainFlag := flag.String("chain", "", "Comma separated hex offsets to follow from --addr before dumping")
	flag.Parse()

	if *fromFlag == "" {
		fmt.Println("Error: --from is required")
		flag.Usage()
		os.Exit(1)
	}

	img, err := process_blob.Load(*fromFlag)
	if err != nil {
		fmt.Printf("Error loading dump from %s: %v\n", *fromFlag, err)
		os.Exit(1)
	}

	memoryMap := img.GetMemoryMap()
	fmt.Printf("Loaded dump from %s\n", *fromFlag)
	if name, err := img.ProductName(); err == nil {
		fmt.Printf("Product Name: %s\n", name)
	}
	fmt.Printf("Memory Regions: %d\n", len(memoryMap))

	// If no address is specified, just print summary and exit
	if *addrFlag == "" {
		fmt.Println("\nMemory Map:")
		for _, region := range memoryMap {
			fmt.Printf("  %016x - %016x (%s) %-24s %d bytes\n",
				region.Address, region.End(), region.Perms, region.Name, region.Size)
		}
		return
	}

	addrVal, err := parseHex(*addrFlag)
	if err != nil {
		fmt.Printf("Error parsing address: %v\n", err)
		os.Exit(1)
	}
	addr := process.ProcessMemoryAddress(addrVal)

	if *chainFlag != "" {
		var offsets []process.ProcessMemorySize
		for _, part := range strings.Split(*chainFlag, ",") {
			v, err := parseHex(strings.TrimSpace(part))
			if err != nil {
				fmt.Printf("Error parsing offset %q: %v\n", part, err)
				os.Exit(1)
			}
			offsets = append(offsets, process.ProcessMemorySize(v))
		}
		addr, err = process.ReadPointerChain(img, addr, offsets...)
		if err != nil {
			fmt.Printf("Error following pointer chain: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Pointer chain resolved to %s\n", addr.ToString())
	}

	data, err := img.ReadMemory(addr, process.ProcessMemorySize(*sizeFlag))
	if err != nil {
		fmt.Printf("Error reading memory at %s: %v\n", addr.ToString(), err)
		os.Exit(1)
	}

	fmt.Printf("\nHexdump at %s (%d bytes):\n", addr.ToString(), *sizeFlag)
	options := hexdump.DefaultOptions()
	options.StartAddress = uint64(addr)
	options.MemoryMap = memoryMap
	fmt.Print(hexdump.Dump(data, options))
}

func parseHex(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
}
