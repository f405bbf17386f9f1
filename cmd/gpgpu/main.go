// Package main provides the gpgpu CLI, which prints generated kernels.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/born-ml/gpgpu/program"
)

const version = "v0.1.0-dev"

type command struct {
	name  string
	usage string
	run   func(args []string, stdout io.Writer) error
}

var commands = []command{
	{"matmul", "batched matrix multiply", runMatMul},
	{"conv2d", "NHWC convolution", runConv2D},
	{"depthwise", "depthwise NHWC convolution", runDepthwise},
	{"binary", "broadcasting elementwise operator", runBinary},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		usage(stdout)
		return 0
	}
	if args[0] == "version" {
		fmt.Fprintf(stdout, "gpgpu %s\n", version)
		return 0
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := c.run(args[1:], stdout); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 0
			}
			fmt.Fprintf(stderr, "gpgpu %s: %v\n", c.name, err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "gpgpu: unknown command %q\n\n", args[0])
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "gpgpu %s - GPU kernel generator\n\n", version)
	fmt.Fprintln(w, "Usage: gpgpu <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(w, "  %-10s %s\n", "version", "show version")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'gpgpu <command> -h' for the flags of a command.")
}

// common holds the flags shared by every command.
type common struct {
	config     string
	activation string
	production bool
	spirv      bool
	verify     bool
	verbose    bool
	seed       uint64
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "YAML tiling profile")
	fs.StringVar(&c.activation, "activation", "linear", "activation, e.g. relu or leakyrelu(0.1)")
	fs.BoolVar(&c.production, "production", false, "omit NaN checks")
	fs.BoolVar(&c.spirv, "spirv", false, "compile to SPIR-V and print its size instead of WGSL")
	fs.BoolVar(&c.verify, "verify", false, "run on the simulator and compare with the CPU reference")
	fs.BoolVar(&c.verbose, "v", false, "log builds to stderr")
	fs.Uint64Var(&c.seed, "seed", 1, "seed of the -verify inputs")
}

// setup applies the logging flags and loads the tiling profile.
func (c *common) setup() (program.Config, program.Activation, error) {
	if c.verbose {
		program.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	cfg := program.DefaultConfig()
	if c.config != "" {
		var err error
		if cfg, err = program.LoadConfig(c.config); err != nil {
			return cfg, program.Activation{}, err
		}
	}
	cfg.Production = cfg.Production || c.production
	act, err := program.ParseActivation(c.activation)
	return cfg, act, err
}

// emit prints prog and optionally verifies it.
func (c *common) emit(w io.Writer, prog *program.Program, check func(*program.Program) (float64, error)) error {
	if c.spirv {
		spirv, err := prog.SPIRV()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d bytes of SPIR-V\n", prog.Name, len(spirv))
	} else {
		fmt.Fprintf(w, "// %s %s\n", prog.Name, prog.Key)
		fmt.Fprintf(w, "// workgroup %v, dispatch %v\n", prog.WorkgroupSize, prog.Dispatch)
		fmt.Fprint(w, prog.Source)
	}
	if !c.verify {
		return nil
	}
	maxErr, err := check(prog)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "verify: max abs error %.3g\n", maxErr)
	if maxErr > verifyTolerance {
		return fmt.Errorf("verify: error %.3g above tolerance %.3g", maxErr, verifyTolerance)
	}
	return nil
}
