// Command glulx runs Glulx (and, by file magic, Z-Machine) story
// files. Built on github.com/spf13/cobra rather than the teacher's
// bare flag package, matching the richer CLI shape the rest of the
// retrieved corpus uses for its entrypoints.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atebitftw/glulx/internal/blorb"
	"github.com/atebitftw/glulx/internal/config"
	"github.com/atebitftw/glulx/internal/engine"
	"github.com/atebitftw/glulx/internal/glk"
	"github.com/atebitftw/glulx/internal/vmlog"
	"github.com/atebitftw/glulx/internal/zmachine"
)

var (
	buildVersion = "dev"

	configPath string
	engineName string
	provName   string
	traceFlag  bool
	saveOnExit string
	restoreAt  string
)

func main() {
	root := &cobra.Command{
		Use:   "glulx",
		Short: "Glulx/Z-Machine interactive fiction interpreter",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a glulxrc.yaml (defaults to ~/.glulxrc.yaml)")

	runCmd := &cobra.Command{
		Use:   "run <story-file>",
		Short: "Load and run a story file to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runStory,
	}
	runCmd.Flags().StringVar(&engineName, "engine", "", "engine to use: glulx|zmachine (overrides config)")
	runCmd.Flags().StringVar(&provName, "provider", "", "glk provider: console|tui (overrides config)")
	runCmd.Flags().StringVar(&restoreAt, "restore", "", "restore a save file before running")
	runCmd.Flags().StringVar(&saveOnExit, "save-on-exit", "", "write a save file when the story quits normally")

	traceCmd := &cobra.Command{
		Use:   "trace <story-file>",
		Short: "Run a story file with debug-level logging (instructions are not logged one by one)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			traceFlag = true
			return runStory(cmd, args)
		},
	}
	traceCmd.Flags().StringVar(&engineName, "engine", "", "engine to use: glulx|zmachine (overrides config)")
	traceCmd.Flags().StringVar(&provName, "provider", "", "glk provider: console|tui (overrides config)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the interpreter version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("glulx " + buildVersion)
			return nil
		},
	}

	root.AddCommand(runCmd, traceCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runStory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if engineName != "" {
		cfg.Engine = config.Engine(engineName)
	}
	explicitEngine := engineName != ""
	if provName != "" {
		cfg.Provider = config.Provider(provName)
	}
	if traceFlag {
		cfg.TraceOnBoot = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	vmlog.Init(cfg.TraceOnBoot)
	logger := vmlog.L

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read story file: %w", err)
	}

	if !explicitEngine {
		cfg.Engine = detectEngine(data)
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	if err := eng.Load(data); err != nil {
		return fmt.Errorf("load story: %w", err)
	}

	if restoreAt != "" {
		if err := eng.RestoreState(restoreAt); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}

	runErr := eng.Run()
	if runErr == engine.ErrNotImplemented {
		fmt.Fprintln(os.Stderr, "this engine only validates its header; opcode execution is out of scope")
		return nil
	}
	if runErr != nil {
		logger.Error("run failed", zap.Error(runErr))
		return runErr
	}

	if saveOnExit != "" {
		if err := eng.SaveState(saveOnExit); err != nil {
			return fmt.Errorf("save on exit: %w", err)
		}
	}
	return nil
}

// buildEngine constructs the engine named by cfg.Engine (set from the
// --engine flag or, without it, by detectEngine's magic sniff).
func buildEngine(cfg config.Config) (engine.Engine, error) {
	switch cfg.Engine {
	case config.EngineZMachine:
		return zmachine.New(), nil
	case config.EngineGlulx:
		provider, err := buildProvider(cfg.Provider)
		if err != nil {
			return nil, err
		}
		return engine.NewGlulxEngine(provider, cfg.MaxUndo), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

// detectEngine sniffs a story file's magic to pick an engine. runStory
// calls it whenever --engine is not given, so an engine named only in
// the config file does not take part in the choice. A Glulx image
// (bare or Blorb-wrapped) starts with the 4-byte "Glul" magic once any
// container is peeled off; anything else with a plausible Z-Machine
// version byte (1-8) at offset 0 is assumed to be a Z-Machine story
// file. Falls back to config.EngineGlulx on an inconclusive read.
func detectEngine(data []byte) config.Engine {
	if raw, _, err := blorb.Load(data); err == nil {
		data = raw
	}
	if len(data) >= 4 && string(data[:4]) == "Glul" {
		return config.EngineGlulx
	}
	if len(data) >= 1 && data[0] >= 1 && data[0] <= 8 {
		return config.EngineZMachine
	}
	return config.EngineGlulx
}

func buildProvider(p config.Provider) (glk.Provider, error) {
	switch p {
	case config.ProviderTUI:
		return glk.NewTUIProvider(), nil
	case config.ProviderConsole:
		return glk.NewConsoleProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p)
	}
}
