// ch341-reset resets CH341A USB-SPI bridges to recover from USB errors
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/gousb"

	"github.com/herlein/gouwb/pkg/ch341"
)

func main() {
	attempts := flag.Int("attempts", 3, "Number of times to look for bridges")
	deviceSel := flag.String("d", "", "Reset only this bridge (empty resets all). "+ch341.DeviceFlagUsage())
	flag.Parse()

	ctx := gousb.NewContext()
	defer ctx.Close()

	if *deviceSel != "" {
		resetOne(ctx, ch341.DeviceSelector(*deviceSel))
		return
	}

	for attempt := 0; attempt < *attempts; attempt++ {
		devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
			return desc.Vendor == gousb.ID(ch341.VendorID) && desc.Product == gousb.ID(ch341.ProductID)
		})

		if err != nil && len(devs) == 0 {
			fmt.Printf("Attempt %d: Error finding bridges: %v\n", attempt+1, err)
			time.Sleep(time.Second)
			continue
		}

		if len(devs) == 0 {
			fmt.Printf("Attempt %d: No bridges found\n", attempt+1)
			time.Sleep(time.Second)
			continue
		}

		fmt.Printf("Found %d bridge(s)\n", len(devs))
		failed := false
		for i, dev := range devs {
			fmt.Printf("  Bridge %d: %s\n", i, dev.Desc)

			if err := dev.Reset(); err != nil {
				fmt.Printf("    Reset failed: %v\n", err)
				failed = true
			} else {
				fmt.Printf("    Reset OK\n")
			}
			dev.Close()
		}
		if failed {
			os.Exit(1)
		}
		os.Exit(0)
	}

	fmt.Printf("Failed to find/reset bridges after %d attempts\n", *attempts)
	os.Exit(1)
}

// resetOne resets a single bridge that can still be claimed
func resetOne(ctx *gousb.Context, sel ch341.DeviceSelector) {
	dev, err := ch341.SelectDevice(ctx, sel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	fmt.Printf("Resetting %s\n", dev)
	if err := dev.Reset(); err != nil {
		fmt.Printf("    Reset failed: %v\n", err)
		dev.Close()
		os.Exit(1)
	}
	fmt.Printf("    Reset OK\n")
}
