package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/callbacks"
	"github.com/effective-security/agenttools/pkg/toolfactory"
	"github.com/effective-security/agenttools/toolbox"
	"github.com/effective-security/agenttools/tools"
	"github.com/spf13/cobra"
)

type callFlags struct {
	inputFile string
	stats     bool
	snapshot  string
}

func (c *cli) newCallCommand() *cobra.Command {
	var flags callFlags

	cmd := &cobra.Command{
		Use:   "call <tool> [input]",
		Short: "Call the tool with the JSON input",
		Long: `Call the tool with the JSON input, and print the tool output.
The input is read from --input-file, or from stdin when it is "-".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCall(cmd, &flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.inputFile, "input-file", "i", "", "Read the input from the file")
	cmd.Flags().BoolVar(&flags.stats, "stats", false, "Print the run stats to stderr")
	cmd.Flags().StringVar(&flags.snapshot, "snapshot", "", "Restore the tool from the stored snapshot ID")

	return cmd
}

func (c *cli) runCall(cmd *cobra.Command, flags *callFlags, args []string) error {
	ctx := cmd.Context()
	name := args[0]

	input, err := readInput(cmd.InOrStdin(), flags.inputFile, args[1:])
	if err != nil {
		return err
	}

	var box *toolbox.Toolbox
	if flags.snapshot != "" {
		st, err := c.store(ctx)
		if err != nil {
			return err
		}
		box, err = toolfactory.RestoreToolbox(ctx, st, flags.snapshot)
		if err != nil {
			return err
		}
		box.WithCallback(c.callback(cmd))
	} else {
		box, err = c.toolbox(cmd)
		if err != nil {
			return err
		}
	}

	var pad *callbacks.Scratchpad
	if flags.stats {
		pad = callbacks.NewScratchpad(callbacks.ModeDefault)
		ctx = pad.StartRun(ctx)
		box.WithCallback(callbacks.NewFanout(c.callback(cmd), pad))
	}

	output, err := box.Call(ctx, name, input)

	if pad != nil {
		_, log := pad.EndRun(ctx)
		_, _ = cmd.ErrOrStderr().Write(log)
	}

	if err != nil {
		var te *tools.Error
		if c.verbose && errors.As(err, &te) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", te.Explain())
		}
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
	return err
}

func readInput(stdin io.Reader, file string, args []string) (string, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", errors.WithStack(err)
		}
		return string(b), nil
	}
	if len(args) == 0 || args[0] == "" {
		return "{}", nil
	}
	if args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.WithStack(err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return args[0], nil
}
