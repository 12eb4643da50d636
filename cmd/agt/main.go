// agt CLI
//
// Runs an Alexa Gadget Toolkit accessory: pairs or reconnects to a hub over
// BLE or Classic Bluetooth, exchanges directives/events, and exposes setup
// and status commands. OS package provisioning (the original launch.py's
// apt/pip/patched-bluez installation) is out of scope; this assumes the
// host Bluetooth stack is already usable, per SPEC_FULL.md §1.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/commatea/agt-go/pkg/config"
	"github.com/commatea/agt-go/pkg/gadget"
	"github.com/commatea/agt-go/pkg/logger"
)

var (
	version   = "1.0.0"
	buildTime = "dev"
	gitCommit = "unknown"
)

var (
	gadgetConfigPath string
	statePath        string
	engineConfigPath string
	verbose          bool
	jsonOutput       bool

	pairFlag  bool
	clearFlag bool

	engineCfg *config.EngineConfig
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "agt",
		Short:   "agt - Alexa Gadget Toolkit accessory runner",
		Long:    "agt runs an Alexa Gadget Toolkit accessory: BLE/Classic Bluetooth pairing, reconnect, and directive/event exchange with an Echo hub.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
	}

	rootCmd.PersistentFlags().StringVarP(&gadgetConfigPath, "config", "c", "gadget.ini", "per-gadget INI configuration file")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", ".agt-state.json", "persistent state file (transport mode, paired hub address)")
	rootCmd.PersistentFlags().StringVar(&engineConfigPath, "engine-config", "", "engine config file (logging, MTU, metrics); searches ./agt.yaml and friends if unset")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "log in JSON format")

	rootCmd.AddCommand(
		newSetupCmd(),
		newStartCmd(),
		newStatusCmd(),
		newClearCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogger loads the engine config (logging, MTU, metrics overrides) and
// configures the global logger from it, with --verbose/--json taking
// precedence over the file.
func initLogger() {
	cfg, err := config.LoadEngineConfig(engineConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agt: failed to load engine config, using defaults: %v\n", err)
		cfg = config.DefaultEngineConfig()
	}
	engineCfg = cfg

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	format := cfg.Logging.Format
	if jsonOutput {
		format = "json"
	}
	logger.SetGlobal(logger.New(logger.Config{Level: level, Format: format, Output: cfg.Logging.Output, File: cfg.Logging.File}))
}

// startMetricsServer exposes /metrics over HTTP when the engine config
// enables it, returning a shutdown func that is a no-op if it was disabled.
func startMetricsServer() func(context.Context) error {
	if engineCfg == nil || !engineCfg.Metrics.Enabled {
		return func(context.Context) error { return nil }
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: engineCfg.Metrics.ListenAddress, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Global().Error("agt: metrics server exited", "err", err)
		}
	}()
	logger.Global().Info("agt: metrics listening", "address", engineCfg.Metrics.ListenAddress)
	return srv.Shutdown
}

// newSetupCmd configures the transport mode, prompting on first run and
// offering to switch on subsequent runs (launch.py's --setup/_TRANSPORT_MODE
// flow, minus OS package provisioning). Switching clears the stored hub
// address; it does not remove the host's Bluetooth bond.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Configure the gadget's transport mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogger()
			return runSetup()
		},
	}
}

func runSetup() error {
	st, err := config.LoadState(statePath)
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	current := st.TransportMode
	if current == "" {
		fmt.Println("Which transport mode would you like to configure your gadget for (ble/bt)?")
		mode, err := promptTransportMode(reader)
		if err != nil {
			return err
		}
		st.TransportMode = mode
		if err := config.SaveState(statePath, st); err != nil {
			return fmt.Errorf("failed to write state file: %w", err)
		}
		fmt.Printf("Gadget configured for %s transport mode.\n", mode)
		return nil
	}

	fmt.Printf("Your gadget is currently configured to use %s transport mode.\n", current)
	other := config.TransportClassic
	if current == config.TransportClassic {
		other = config.TransportBLE
	}
	fmt.Printf("Do you want to switch to %s transport mode (y/n)? ", other)
	answer, _ := reader.ReadString('\n')
	if strings.ToLower(strings.TrimSpace(answer)) != "y" {
		fmt.Println("Transport mode unchanged.")
		return nil
	}

	if st.EchoBluetoothAddress != nil {
		fmt.Println("While switching the transport mode, the gadget needs to be unpaired from the Echo device.")
		fmt.Println("Please forget the gadget from the Echo device using the Bluetooth menu in the Alexa app first, then press Enter.")
		_, _ = reader.ReadString('\n')
	}

	st.TransportMode = other
	st.EchoBluetoothAddress = nil
	if err := config.SaveState(statePath, st); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	fmt.Printf("Gadget switched to %s transport mode.\n", other)
	return nil
}

func promptTransportMode(reader *bufio.Reader) (string, error) {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "ble":
			return config.TransportBLE, nil
		case "bt":
			return config.TransportClassic, nil
		}
		fmt.Print("Invalid choice! Which transport mode would you like to configure your gadget for (ble/bt)? ")
	}
}

// newStartCmd creates the start command.
func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the gadget",
		Long:  "Start the gadget: connect to the configured transport, pair or reconnect to the hub, and begin exchanging directives and events.",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogger()
			return runStart()
		},
	}
	cmd.Flags().BoolVar(&pairFlag, "pair", false, "put the gadget in pairing/discoverable mode on start")
	cmd.Flags().BoolVar(&clearFlag, "clear", false, "unpair the bonded hub and clear persisted state before starting")
	return cmd
}

func runStart() error {
	mtu := 0
	advertise := true
	if engineCfg != nil {
		mtu = engineCfg.Transport.MTU
		advertise = engineCfg.Transport.AdvertisingEnabled
	}
	core, err := gadget.New(gadgetConfigPath, statePath, mtu)
	if err != nil {
		return fmt.Errorf("failed to initialize gadget: %w", err)
	}

	stopMetrics := startMetricsServer()

	if clearFlag {
		fmt.Println("Clearing pairing bond and persisted state...")
	}
	if err := core.Start(clearFlag, advertise); err != nil {
		return fmt.Errorf("failed to start gadget: %w", err)
	}
	if !advertise {
		fmt.Println("Advertising disabled by engine config; run 'agt start --pair' or send a reconnect to begin.")
	}

	if pairFlag {
		if err := core.SetDiscoverable(true); err != nil {
			logger.Global().Warn("agt: failed to enter pairing mode", "err", err)
		}
	}

	fmt.Printf("Gadget %q is running. Press Ctrl+C to stop.\n", core.EndpointID())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	fmt.Println("\nShutting down...")
	core.Stop()
	if err := stopMetrics(context.Background()); err != nil {
		logger.Global().Warn("agt: metrics server shutdown error", "err", err)
	}
	fmt.Println("Gadget stopped.")
	return nil
}

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the gadget's persisted transport mode and pairing state",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := config.LoadState(statePath)
			if err != nil {
				return fmt.Errorf("failed to read state file: %w", err)
			}
			if st.TransportMode == "" {
				fmt.Println("Gadget is not configured. Run 'agt setup' first.")
				return nil
			}
			fmt.Printf("Transport mode: %s\n", st.TransportMode)
			if st.EchoBluetoothAddress != nil {
				fmt.Printf("Paired hub address: %s\n", *st.EchoBluetoothAddress)
			} else {
				fmt.Println("Paired hub address: (none)")
			}
			return nil
		},
	}
}

// newClearCmd unpairs the bonded hub and clears persisted state without
// starting the gadget (launch.py's --clear, used standalone).
func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Unpair the bonded hub and clear persisted state",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogger()
			core, err := gadget.New(gadgetConfigPath, statePath, 0)
			if err != nil {
				return fmt.Errorf("failed to initialize gadget: %w", err)
			}
			// Clear needs the transport's BlueZ adapter handle to unpair,
			// so the transport driver has to come up first; Start(true, ...)
			// does the unpair itself, and advertise=false keeps a standalone
			// clear from also broadcasting a pairing advertisement.
			if err := core.Start(true, false); err != nil {
				return fmt.Errorf("failed to clear gadget state: %w", err)
			}
			core.Stop()
			fmt.Println("Gadget unpaired and state cleared.")
			return nil
		},
	}
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("agt %s\n", version)
			fmt.Printf("  Commit:  %s\n", gitCommit)
			fmt.Printf("  Built:   %s\n", buildTime)
		},
	}
}
