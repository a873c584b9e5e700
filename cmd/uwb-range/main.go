// uwb-range: Continuously range a tag against two anchors with DW1000 radios
//
// The tool runs symmetric double-sided two-way ranging rounds between the
// tag and anchors B and C, prints the smoothed distances, and optionally
// steers a vehicle from them.
//
// Examples:
//
//	# Range with the radios described in the config file
//	./uwb-range -c etc/gouwb/uwb-range.yaml
//
//	# Range against the simulated rig, stop after 100 rounds
//	./uwb-range -sim -count 100
//
//	# Write the default configuration and exit
//	./uwb-range -init -c etc/gouwb/uwb-range.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/herlein/gouwb/pkg/config"
	"github.com/herlein/gouwb/pkg/radio"
	"github.com/herlein/gouwb/pkg/ranging"
	"github.com/herlein/gouwb/pkg/rig"
	"github.com/herlein/gouwb/pkg/uwbsim"
	"github.com/herlein/gouwb/pkg/vehicle"
)

func main() {
	configPath := flag.String("c", "", "Configuration file path (default: built-in reference rig)")
	verbose := flag.Bool("v", false, "Verbose output (debug logs including raw timestamps)")
	sim := flag.Bool("sim", false, "Use simulated radios")
	count := flag.Int("count", 0, "Stop after this many accepted rounds (0 = run forever)")
	initConfig := flag.Bool("init", false, "Write the default configuration to -c and exit")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if *initConfig {
		path := *configPath
		if path == "" {
			path = config.DefaultPath
		}
		if err := config.SaveToFile(config.Default(), path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", path)
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
	if *count < 0 {
		fmt.Fprintln(os.Stderr, "Error: -count must not be negative")
		os.Exit(1)
	}

	var (
		endpoints [len(radio.Identities)]radio.Endpoint
		cleanup   = func() {}
	)
	if *sim {
		air := uwbsim.NewAir(cfg.Simulation)
		endpoints[radio.Tag], endpoints[radio.AnchorB], endpoints[radio.AnchorC] = air.Endpoints()
		log.Info("using simulated radios",
			"distance_b", air.Distance(radio.Tag, radio.AnchorB),
			"distance_c", air.Distance(radio.Tag, radio.AnchorC))
	} else {
		r, err := rig.Open(cfg, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		endpoints[radio.Tag], endpoints[radio.AnchorB], endpoints[radio.AnchorC] = r.Endpoints()
		cleanup = func() { r.Close() }
	}
	defer cleanup()

	rc := cfg.RangingConfig()
	rc.StopAfter = *count
	rc.Logger = log
	rc.Progress = os.Stderr

	seq := ranging.NewSequencer(endpoints[radio.Tag], endpoints[radio.AnchorB], endpoints[radio.AnchorC], rc)
	if err := seq.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to start radios: %v\n", err)
		cleanup()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumers := vehicle.Fanout{vehicle.NewTrace(os.Stdout)}
	dispatcher, err := openDispatchers(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cleanup()
		os.Exit(1)
	}
	if dispatcher != nil {
		defer dispatcher.Close()
		steering := vehicle.NewSteering(cfg.Position.Baseline, dispatcher, log)
		log.Info("steering enabled", "session", steering.Session())
		consumers = append(consumers, steering)
	}

	ranger := ranging.New(seq, rc, consumers)

	fmt.Fprintln(os.Stderr, "Ranging... (Ctrl+C to stop)")
	runErr := ranger.Run(ctx)
	ranger.WriteSummary(os.Stderr)

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		if dispatcher != nil {
			dispatcher.Close()
		}
		cleanup()
		if errors.Is(runErr, ranging.ErrReinitialise) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

// openDispatchers connects the configured vehicle transports. It returns
// nil when steering is disabled.
func openDispatchers(ctx context.Context, cfg *config.Config, log *slog.Logger) (vehicle.Dispatcher, error) {
	if !cfg.Vehicle.Steer {
		return nil, nil
	}

	var multi vehicle.Multi
	if cfg.Vehicle.MQTT.Broker != "" {
		d := vehicle.NewMQTTDispatcher(cfg.Vehicle.MQTT, log)
		if err := d.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		multi = append(multi, d)
	}
	if cfg.Vehicle.Serial.Port != "" {
		d, err := vehicle.OpenSerial(cfg.Vehicle.Serial, log)
		if err != nil {
			multi.Close()
			return nil, err
		}
		multi = append(multi, d)
	}
	if len(multi) == 0 {
		log.Warn("steering enabled without an MQTT broker or serial port; commands are not delivered")
	}
	return multi, nil
}
