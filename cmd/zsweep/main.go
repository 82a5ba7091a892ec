// Command zsweep runs one impedance sweep from the command line and writes
// the result files, like the bench form does over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/RMahshie/zsweep/internal/config"
	"github.com/RMahshie/zsweep/internal/output"
	"github.com/RMahshie/zsweep/internal/sweep"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Error().Err(err).Msg("Sweep failed")
		os.Exit(1)
	}
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"freq-start":  "FREQ_START",
	"freq-end":    "FREQ_END",
	"freq-step":   "FREQ_STEP",
	"freq-points": "FREQ_POINTS",
	"scale":       "SCALE",
	"amp-start":   "AMP_START",
	"amp-end":     "AMP_END",
	"amp-step":    "AMP_STEP",
	"reference":   "REFERENCE",
	"decrease":    "DECREASE",
	"mode":        "MODE",
	"settle":      "SETTLE_MS",
	"simulate":    "SIMULATE",
	"library":     "DWF_LIBRARY",
	"device":      "DEVICE_INDEX",
	"out":         "OUTPUT_DIR",
	"format":      "OUTPUT_FORMATS",
	"header":      "OUTPUT_HEADER",
	"plot":        "OUTPUT_PLOT",
	"log-level":   "LOG_LEVEL",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("zsweep", pflag.ContinueOnError)
	fs.Float64("freq-start", 0, "start frequency in Hz")
	fs.Float64("freq-end", 0, "end frequency in Hz")
	fs.Float64("freq-step", 0, "frequency step in Hz (linear scale)")
	fs.Int("freq-points", 0, "number of frequencies (log scale)")
	fs.String("scale", "", "frequency scale: linear or log")
	fs.Int("amp-start", 0, "start amplitude in mV")
	fs.Int("amp-end", 0, "end amplitude in mV")
	fs.Int("amp-step", 0, "amplitude step in mV")
	fs.Float64("reference", 0, "reference resistor in Ohm")
	fs.Bool("decrease", false, "repeat every amplitude with decreasing frequency")
	fs.Int("mode", 0, "wiring mode: 0, 1 or 8 (IA adapter)")
	fs.Int("settle", 0, "settle time after each frequency change in ms")
	fs.Bool("simulate", false, "use the simulated analyzer")
	fs.String("library", "", "path of the dwf library")
	fs.Int("device", 0, "device index, -1 for the first available")
	fs.StringP("out", "o", "", "output directory")
	fs.StringP("format", "f", "", "comma separated output formats: txt, parquet")
	fs.Bool("header", false, "write a header line to text files")
	fs.Bool("plot", false, "write a PNG plot for every pass")
	fs.String("log-level", "", "log level")
	fs.Bool("list", false, "list attached devices and exit")
	return fs
}

func run(ctx context.Context, args []string, stdout io.Writer) (err error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Flags only override configuration when given
	v := viper.New()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return err
		}
	}
	cfg, err := config.LoadFrom(v, ".")
	if err != nil {
		return err
	}
	config.SetupLogging(cfg.LogLevel, cfg.Server.Env)

	dev := cfg.Device.Analyzer()

	if list, _ := fs.GetBool("list"); list {
		devices, err := dev.Enumerate()
		if err != nil {
			return err
		}
		for _, d := range devices {
			fmt.Fprintf(stdout, "%d\t%s\t%s\n", d.Index, d.Name, d.Serial)
		}
		return nil
	}

	if err := cfg.Sweep.Validate(); err != nil {
		return err
	}
	outputOpts, err := cfg.Output.FactoryOptions()
	if err != nil {
		return err
	}
	factory, err := output.NewFactory(cfg.Output.Dir, cfg.Sweep, outputOpts...)
	if err != nil {
		return err
	}

	if err := dev.Open(ctx); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dev.Close())
	}()
	info := dev.Info()
	log.Info().Str("device", info.Name).Str("serial", info.Serial).Str("version", info.Version).Msg("AD2 connected")

	runner := sweep.NewRunner(dev, cfg.Device.RunnerOptions()...)
	if err := runner.Configure(ctx, cfg.Sweep); err != nil {
		return err
	}

	total := sweep.Points(cfg.Sweep)
	res, err := runner.Run(ctx, cfg.Sweep, factory, func(p sweep.Progress) {
		if p.Done%50 == 0 || p.Done == total {
			log.Info().Int("done", p.Done).Int("total", total).Msg("Progress")
		}
	})
	for _, f := range factory.Files() {
		fmt.Fprintln(stdout, f)
	}
	if err != nil {
		return err
	}

	log.Info().Int("points", res.Points).Msgf("Finished: %.2fs", res.Elapsed.Seconds())
	return nil
}
