/*
passgraph derives the attachment layouts and subpass dependencies of render
pass descriptions, and builds them on a Vulkan device.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/passgraph/engine"
	"github.com/spaghettifunk/passgraph/engine/core"
)

const defaultConfigPath = "passgraph.toml"

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		code := 1
		if exit, ok := err.(*ExitError); ok {
			code = exit.Code
		}
		core.LogError("%s", err)
		stop()
		os.Exit(code)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flagSet := flag.NewFlagSet("passgraph", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() {
		fmt.Fprint(stderr, `
passgraph - render pass dependency derivation.

Usage:
  passgraph [options] plan    FILE...
  passgraph [options] compile FILE...
  passgraph [options] watch   [DIR]

Files end in .pass.toml or .pass.hcl. watch defaults to assets.directory.

Options:
`)
		flagSet.PrintDefaults()
	}
	configPath := flagSet.String("config", defaultConfigPath, "Path to the TOML configuration file.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return &ExitError{Code: 2, Message: "missing command"}
	}

	cfg, err := loadConfig(flagSet, *configPath)
	if err != nil {
		return err
	}
	if err := core.ConfigureLogger(cfg.Log); err != nil {
		return err
	}

	e := engine.New(cfg)
	defer e.Shutdown()

	command, operands := flagSet.Arg(0), flagSet.Args()[1:]
	switch command {
	case "plan":
		if len(operands) == 0 {
			return &ExitError{Code: 2, Message: "plan needs at least one pass file"}
		}
		reports, err := e.Plan(ctx, operands...)
		if err != nil {
			return err
		}
		return writeReports(stdout, reports)

	case "compile":
		if len(operands) == 0 {
			return &ExitError{Code: 2, Message: "compile needs at least one pass file"}
		}
		reports, err := e.Compile(operands...)
		if werr := writeReports(stdout, reports); werr != nil && err == nil {
			err = werr
		}
		return err

	case "watch":
		dir := cfg.Assets.Directory
		if len(operands) > 1 {
			return &ExitError{Code: 2, Message: "watch takes at most one directory"}
		}
		if len(operands) == 1 {
			dir = operands[0]
		}
		return e.Watch(ctx, dir, func(report *engine.Report, err error) {
			if err != nil {
				fmt.Fprintf(stdout, "error: %s\n\n", err)
				return
			}
			if werr := report.Write(stdout); werr != nil {
				core.LogError("%s", werr)
			}
		})
	}

	flagSet.Usage()
	return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", command)}
}

// loadConfig reads the configuration file. The default file is optional, a
// file named with -config is not.
func loadConfig(flagSet *flag.FlagSet, path string) (*core.Config, error) {
	explicit := false
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	if !explicit {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	return core.LoadConfig(path)
}

func writeReports(w io.Writer, reports []*engine.Report) error {
	for _, report := range reports {
		if err := report.Write(w); err != nil {
			return err
		}
	}
	return nil
}
