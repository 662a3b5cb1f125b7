// Command neodbg attaches to a running neoqo interpreter started with
// --debug and prints one line per instruction as it is dispatched.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"neoqo/lang"
)

var traceLog = logrus.New()

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: false})
	traceLog.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableLevelTruncation: true})
	traceLog.SetOutput(os.Stdout)

	root := &cobra.Command{
		Use:     "neodbg",
		Short:   "Attach to a neoqo interpreter's debugger socket and print each step",
		Version: "0.1.0",
		Args:    cobra.NoArgs,
		RunE:    run,
	}

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	conn, err := lang.DialDebugClient()
	if err != nil {
		logrus.WithError(err).Error("could not connect to debugger socket")
		return err
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for {
		rec, err := lang.ReadDebugRecord(reader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			logrus.WithError(err).Error("debug stream ended unexpectedly")
			return err
		}

		if rec.Terminate {
			return nil
		}
		if rec.Instr != nil {
			printRecord(*rec.Instr)
		}
	}
}

// printRecord mirrors the original tool's trace line shape:
// "[Line 003:012] Opcode=Inc; Arg=1; Optimized=false", emitted through
// logrus so the same line is both terminal-readable and carries
// structured fields for anyone piping neodbg's output elsewhere.
func printRecord(instr lang.Instruction) {
	arg := "-"
	if instr.Argument != nil {
		arg = fmt.Sprintf("%d", *instr.Argument)
	}
	traceLog.WithFields(logrus.Fields{
		"line":      instr.Line,
		"pos":       instr.Pos,
		"opcode":    instr.Opcode.String(),
		"arg":       arg,
		"optimized": instr.Optimized,
	}).Infof("[Line %03d:%03d] Opcode=%s; Arg=%s; Optimized=%t",
		instr.Line, instr.Pos, instr.Opcode, arg, instr.Optimized)
}
