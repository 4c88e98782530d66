// Package main is the ccp daemon's entrypoint: load configuration, discover
// topology, wire every component together, and serve the orchestrator's
// JSON-RPC surface until interrupted.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/shirou/gopsutil/v3/cpu"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/capacitymesh/ccp/internal/ccpconfig"
	"github.com/capacitymesh/ccp/internal/ccprover"
	"github.com/capacitymesh/ccp/internal/log"
	"github.com/capacitymesh/ccp/internal/metrics"
	"github.com/capacitymesh/ccp/internal/msr"
	"github.com/capacitymesh/ccp/internal/pin"
	"github.com/capacitymesh/ccp/internal/randomx"
	"github.com/capacitymesh/ccp/internal/rpcserver"
	"github.com/capacitymesh/ccp/internal/simrandomx"
	"github.com/capacitymesh/ccp/internal/store"
	"github.com/capacitymesh/ccp/internal/topology"
)

var configFileFlag = cli.StringFlag{
	Name:  "config",
	Usage: "TOML configuration file",
}

var dumpConfigCommand = cli.Command{
	Action:    dumpConfig,
	Name:      "dumpconfig",
	Usage:     "Show configuration values",
	ArgsUsage: "",
	Flags:     []cli.Flag{configFileFlag},
}

func main() {
	app := cli.NewApp()
	app.Name = "ccp"
	app.Usage = "Capacity Commitment Prover daemon"
	app.Flags = []cli.Flag{configFileFlag}
	app.Commands = []cli.Command{dumpConfigCommand}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (ccpconfig.Config, error) {
	file := c.GlobalString(configFileFlag.Name)
	if file == "" {
		return ccpconfig.Default(), nil
	}
	return ccpconfig.Load(file)
}

func dumpConfig(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return ccpconfig.Dump(os.Stdout, cfg)
}

// banner prints a short, colorized startup line naming the daemon and the
// core count committed to hashing, mirroring the console package's use of
// fatih/color plus a Windows-safe colorable writer.
func banner(cores int) {
	w := colorable.NewColorableStdout()
	bold := color.New(color.FgGreen, color.Bold)
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		bold.DisableColor()
	}
	bold.Fprint(w, "ccp")
	fmt.Fprintf(w, " starting, %d physical core(s) available for commitment\n", cores)
}

func parseArgon2(s string) randomx.Argon2Variant {
	switch s {
	case "avx2":
		return randomx.Argon2AVX2
	case "ssse3":
		return randomx.Argon2SSSE3
	default:
		return randomx.Argon2Default
	}
}

func threadAllocation(cfg ccpconfig.Optimizations) topology.ThreadAllocation {
	if cfg.ThreadsPerCore != nil {
		return topology.Exact{N: *cfg.ThreadsPerCore}
	}
	return topology.Optimal{}
}

// msrPresetForHost picks the preset matching the reported CPU vendor,
// falling back to NoOpPreset on anything cpu_preset_values.rs doesn't cover.
func msrPresetForHost() msr.Preset {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		return msr.NoOpPreset
	}
	switch infos[0].VendorID {
	case "GenuineIntel":
		return msr.IntelPreset
	case "AuthenticAMD":
		return msr.AMDZen3Preset
	default:
		return msr.NoOpPreset
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	level, err := log.ParseLevel(cfg.Logs.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	top, err := topology.Discover()
	if err != nil {
		return fmt.Errorf("discovering CPU topology: %w", err)
	}
	banner(top.PhysicalCoresCount())

	flags := randomx.Flags{
		LargePages: cfg.Optimizations.LargePages,
		HardAES:    cfg.Optimizations.HardAES,
		JIT:        cfg.Optimizations.JIT,
		Secure:     cfg.Optimizations.Secure,
		Argon2:     parseArgon2(cfg.Optimizations.Argon2),
	}

	var poker msr.Poker
	if cfg.Optimizations.MSREnabled {
		poker = msr.NewPoker()
		logicalCores := top.AllLogicalCores()
		cores := make([]uint32, len(logicalCores))
		for i, c := range logicalCores {
			cores[i] = uint32(c)
		}
		if err := poker.Apply(msrPresetForHost(), cores); err != nil {
			log.Warn("failed to apply MSR preset, continuing without it", "err", err)
			poker = nil
		}
	}

	stateDir := filepath.Dir(cfg.State.Path)
	proofs := store.NewProofStore(filepath.Join(stateDir, "proofs"))
	states := store.NewStateStore(stateDir)

	var reg *metrics.Registry
	if cfg.PrometheusEndpoint.Host != "" {
		reg = metrics.New()
		go serveMetrics(cfg.PrometheusEndpoint, reg)
	}

	prover := ccprover.New(
		top,
		threadAllocation(cfg.Optimizations),
		flags,
		simrandomx.NewAllocator(),
		pin.Default(),
		proofs,
		states,
		reg,
	)

	server := rpcserver.New(prover)
	addr := fmt.Sprintf("%s:%d", cfg.RPCEndpoint.Host, cfg.RPCEndpoint.Port)
	httpServer := &http.Server{Addr: addr, Handler: server.Router()}

	errCh := make(chan error, 1)
	go func() {
		log.Info("rpc server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		log.Error("rpc server failed to start", "err", err)
		prover.Stop()
		if poker != nil {
			_ = poker.Reverse()
		}
		return err
	}

	_ = httpServer.Close()
	prover.Stop()
	if poker != nil {
		_ = poker.Reverse()
	}
	return nil
}

func serveMetrics(cfg ccpconfig.PrometheusEndpoint, reg *metrics.Registry) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	log.Info("prometheus endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("prometheus endpoint failed", "err", err)
	}
}
