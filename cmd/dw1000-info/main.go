// dw1000-info: Dump the identity and status registers of the ranging radios
//
// This tool attaches the radios described in a configuration file, reads
// their identity, configuration and status registers, and prints them or
// saves them as JSON.
//
// Examples:
//
//	# List the CH341A bridges the radios can be attached to
//	./dw1000-info -l
//
//	# Print every radio of the deployment
//	./dw1000-info -c etc/gouwb/uwb-range.yaml
//
//	# Initialise anchor B first, then save its registers
//	./dw1000-info -c etc/gouwb/uwb-range.yaml -r anchor-b -init -o anchor-b.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/gousb"

	"github.com/herlein/gouwb/pkg/ch341"
	"github.com/herlein/gouwb/pkg/config"
	"github.com/herlein/gouwb/pkg/dw1000"
	"github.com/herlein/gouwb/pkg/radio"
	"github.com/herlein/gouwb/pkg/rig"
)

func main() {
	configPath := flag.String("c", "", "Configuration file path (default: built-in reference rig)")
	role := flag.String("r", "", "Radio role: tag, anchor-b or anchor-c (default: all)")
	outputFile := flag.String("o", "", "Write the snapshots to this file as JSON")
	jsonOutput := flag.Bool("json", false, "Output snapshots to stdout as JSON")
	initialise := flag.Bool("init", false, "Reset and initialise each radio before reading it")
	listOnly := flag.Bool("l", false, "List CH341A bridges only")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *listOnly {
		listBridges()
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	roles := radio.Identities[:]
	if *role != "" {
		id, err := radio.ParseIdentity(*role)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		roles = []radio.Identity{id}
	}

	r, err := rig.Open(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	var snapshots []*dw1000.Snapshot
	failed := false
	for _, id := range roles {
		dev := r.Radios[id]
		if *initialise {
			if err := dev.Reset(); err == nil {
				err = dev.Initialise()
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s: %v\n", id, err)
				failed = true
				continue
			}
		}

		snap, err := dev.DumpRegisters()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", id, err)
			failed = true
			continue
		}
		snapshots = append(snapshots, snap)
	}

	switch {
	case *jsonOutput || *outputFile != "":
		data, err := json.MarshalIndent(snapshots, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to marshal snapshots: %v\n", err)
			os.Exit(1)
		}
		if *outputFile == "" {
			fmt.Println(string(data))
			break
		}
		if err := os.WriteFile(*outputFile, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to write %s: %v\n", *outputFile, err)
			os.Exit(1)
		}
		fmt.Printf("Snapshots saved to: %s\n", *outputFile)
	default:
		for _, snap := range snapshots {
			printSnapshot(snap)
		}
	}

	if failed {
		r.Close()
		os.Exit(1)
	}
}

func printSnapshot(s *dw1000.Snapshot) {
	idStatus := "OK"
	if s.DevID != dw1000.DeviceID {
		idStatus = fmt.Sprintf("unexpected, want 0x%08X", dw1000.DeviceID)
	}

	fmt.Printf("%s:\n", s.Name)
	fmt.Printf("  DEV_ID:       0x%08X (%s)\n", s.DevID, idStatus)
	fmt.Printf("  EUI:          %016X\n", s.EUI)
	fmt.Printf("  Channel:      %d\n", s.Channel())
	fmt.Printf("  Preamble:     %d\n", s.PreambleCode())
	fmt.Printf("  SYS_CFG:      0x%08X\n", s.SysCfg)
	fmt.Printf("  TX_POWER:     0x%08X\n", s.TxPower)
	fmt.Printf("  TX_ANTD:      %d\n", s.TxAntd)
	fmt.Printf("  SYS_MASK:     0x%08X\n", s.SysMask)
	fmt.Printf("  SYS_STATUS:   0x%010X %v\n", s.SysStatus, s.Flags)
	fmt.Printf("  SYS_TIME:     0x%010X\n", s.SysTime)
	fmt.Println()
}

func listBridges() {
	context := gousb.NewContext()
	defer context.Close()

	devices, err := ch341.FindAllDevices(context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to enumerate devices: %v\n", err)
		os.Exit(1)
	}

	if len(devices) == 0 {
		fmt.Println("No CH341A bridges found")
		return
	}

	fmt.Printf("Found %d CH341A bridge(s):\n", len(devices))
	for i, device := range devices {
		defer device.Close()
		fmt.Printf("  #%d  %-12s %d:%d  %s\n", i, device.Serial, device.Bus, device.Address, device.Product)
	}

	fmt.Println()
	fmt.Println("Use these selectors as the device of a radio in the configuration file:")
	fmt.Println("  \"#0\"      Select by index")
	fmt.Println("  \"1:10\"    Select by bus:address")
}
