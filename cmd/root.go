package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/popsim/sim"
	"github.com/inference-sim/popsim/sim/demo"
	"github.com/inference-sim/popsim/sim/instrument"
	"github.com/inference-sim/popsim/sim/trace"
)

var (
	configPath  string  // YAML or TOML kernel config
	seed        int64   // Seed for every random stream
	horizon     float64 // Simulated time limit; 0 runs until no plans remain
	logLevel    string  // Log verbosity level
	traceLevel  string  // Trace detail: none, plans or full
	withMetrics bool    // Print Prometheus metrics after the run

	params = demo.DefaultParams()
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "popsim",
	Short: "Discrete-event simulator for agent-based population models",
}

// runCmd runs the bundled SIR epidemic using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the SIR epidemic model",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", cfg.LogLevel)
		}
		logrus.SetLevel(level)

		if err := simulate(cfg, params, withMetrics, os.Stdout); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
	},
}

// validateCmd checks a config file without running anything
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a kernel config file",
	Run: func(cmd *cobra.Command, args []string) {
		if configPath == "" {
			logrus.Fatalf("--config is required")
		}
		cfg, err := sim.LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid config %s: %v", configPath, err)
		}
		fmt.Printf("%s: ok\n", configPath)
	},
}

// resolveConfig layers the config file (if any) over the defaults, then
// applies the flags the user set explicitly.
func resolveConfig(cmd *cobra.Command) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if configPath != "" {
		loaded, err := sim.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if flags.Changed("log") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("trace") {
		cfg.Trace = trace.TraceLevel(traceLevel)
	}
	return cfg, cfg.Validate()
}

// simulate builds and runs the epidemic and writes its result to w as
// JSON, followed by the trace summary and Prometheus metrics when enabled.
func simulate(cfg sim.Config, p demo.Params, metrics bool, w io.Writer) error {
	sc, rep, err := demo.Build(p)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	var m *instrument.Metrics
	if metrics {
		m = instrument.New(reg)
		sc.Decorate(m.Wrap)
	}
	env, err := sim.NewEnvironment(cfg, sc)
	if err != nil {
		return err
	}
	if m != nil {
		m.Watch(env)
	}
	if err := env.Run(); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	fmt.Fprintln(w, "=== Simulation Result ===")
	if err := enc.Encode(rep.Result()); err != nil {
		return err
	}
	if cfg.Trace != trace.TraceLevelNone {
		fmt.Fprintln(w, "=== Trace Summary ===")
		if err := enc.Encode(trace.Summarize(env.Trace())); err != nil {
			return err
		}
	}
	if metrics {
		fmt.Fprintln(w, "=== Metrics ===")
		mfs, err := reg.Gather()
		if err != nil {
			return err
		}
		for _, mf := range mfs {
			if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
				return err
			}
		}
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Kernel config file (.yaml, .yml or .toml)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for every random stream")
	runCmd.Flags().Float64Var(&horizon, "horizon", 0, "Simulated time limit in days (0 runs until no plans remain)")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&traceLevel, "trace", string(trace.TraceLevelNone), "Trace level (none, plans, full)")
	runCmd.Flags().BoolVar(&withMetrics, "metrics", false, "Print Prometheus metrics after the run")

	// Epidemic parameters
	runCmd.Flags().IntVar(&params.Population, "population", params.Population, "Number of people")
	runCmd.Flags().IntVar(&params.Regions, "regions", params.Regions, "Number of regions")
	runCmd.Flags().IntVar(&params.HouseholdSize, "household-size", params.HouseholdSize, "People per household")
	runCmd.Flags().IntVar(&params.InitialInfected, "infected", params.InitialInfected, "Initial infectious people")
	runCmd.Flags().Float64Var(&params.ContactRate, "contact-rate", params.ContactRate, "Contacts per infectious person per day")
	runCmd.Flags().Float64Var(&params.HouseholdShare, "household-share", params.HouseholdShare, "Fraction of contacts inside the household")
	runCmd.Flags().Float64Var(&params.RecoveryRate, "recovery-rate", params.RecoveryRate, "Recoveries per infectious person per day")
	runCmd.Flags().Float64Var(&params.IsolationProb, "isolation", params.IsolationProb, "Probability a new case isolates")
	runCmd.Flags().Float64Var(&params.DoseInterval, "dose-interval", params.DoseInterval, "Days between vaccine doses (0 disables vaccination)")
	runCmd.Flags().Float64Var(&params.Efficacy, "efficacy", params.Efficacy, "Probability a dose prevents infection")
	runCmd.Flags().Int64Var(&params.MinDoseAge, "min-dose-age", params.MinDoseAge, "Minimum age for a dose")

	validateCmd.Flags().StringVar(&configPath, "config", "", "Kernel config file (.yaml, .yml or .toml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
