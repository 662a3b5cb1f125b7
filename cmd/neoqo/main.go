// Command neoqo interprets programs written in the language implemented
// by package lang: a stack-and-tape esoteric language tokenized,
// peephole-optimized and executed per spec.md. This file is the CLI
// glue spec.md §1 calls out as an external collaborator — argument
// parsing and file I/O live here, not in package lang.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"neoqo/lang"
)

var (
	interpretSrc string
	debugFlag    bool
	passesFlag   []string
	iterations   int
	tapeSize     int
	acceptWait   time.Duration
)

var passByName = map[string]lang.OptimizerPass{
	"ptr-chains":   lang.OptimizeIncDecPtrChains,
	"val-chains":   lang.OptimizeIncDecValChains,
	"clear-loops":  lang.OptimizeClearLoops,
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: false})

	root := &cobra.Command{
		Use:     "neoqo [input]",
		Short:   "Interpreter for the neoqo stack-and-tape language",
		Version: "0.1.0",
		Args:    cobra.MaximumNArgs(1),
		RunE:    run,
	}
	root.Flags().StringVarP(&interpretSrc, "interpret", "i", "", "Inline program source instead of a file.")
	root.Flags().BoolVar(&debugFlag, "debug", false, "Start the debugger server and wait for neodbg to attach.")
	root.Flags().StringSliceVar(&passesFlag, "passes", nil, "Optimizer passes to run, in order (ptr-chains,val-chains,clear-loops). Defaults to the original tool's pipeline.")
	root.Flags().IntVar(&iterations, "iterations", 2, "Number of full optimizer iterations.")
	root.Flags().IntVar(&tapeSize, "tape-size", 128, "Number of cells on the tape.")
	root.Flags().DurationVar(&acceptWait, "debug-timeout", 5*time.Second, "How long to wait for neodbg to attach before running undebugged.")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	source, err := readSource(args)
	if err != nil {
		logrus.WithError(err).Error("could not read program source")
		return err
	}

	optimizer, err := buildOptimizer()
	if err != nil {
		logrus.WithError(err).Error("invalid optimizer configuration")
		return err
	}

	instructions := lang.Compile(source, optimizer)

	opts := []lang.Option{lang.WithTapeSize(tapeSize)}

	var server *lang.DebugServer
	if debugFlag {
		server = lang.NewDebugServer(logrus.StandardLogger())
		fmt.Fprintln(os.Stderr, "Waiting for neodbg to attach...")
		if server.BindAndAccept(acceptWait) {
			opts = append(opts, lang.WithDebugger(server))
		} else {
			fmt.Fprintln(os.Stderr, "No debugger attached; running undebugged.")
		}
	}

	vm, err := lang.NewVirtualMachine(instructions, opts...)
	if err != nil {
		logrus.WithError(err).Error("program rejected")
		return err
	}

	if err := vm.Run(); err != nil {
		logrus.WithError(err).Error("program terminated with an error")
		return err
	}
	return nil
}

func readSource(args []string) (string, error) {
	if interpretSrc != "" {
		return interpretSrc, nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("specify an input file or -i/--interpret")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("unable to read %s: %w", args[0], err)
	}
	return string(data), nil
}

func buildOptimizer() (*lang.Optimizer, error) {
	if len(passesFlag) == 0 {
		// DefaultOptimizer's pass order, run for the --iterations count
		// (2 unless overridden, which matches DefaultOptimizer itself).
		return lang.NewOptimizer([]lang.OptimizerPass{
			lang.OptimizeIncDecPtrChains,
			lang.OptimizeIncDecValChains,
			lang.OptimizeClearLoops,
		}, iterations), nil
	}

	passes := make([]lang.OptimizerPass, 0, len(passesFlag))
	for _, name := range passesFlag {
		pass, ok := passByName[strings.TrimSpace(strings.ToLower(name))]
		if !ok {
			return nil, fmt.Errorf("unknown optimizer pass: %s", name)
		}
		passes = append(passes, pass)
	}
	return lang.NewOptimizer(passes, iterations), nil
}
