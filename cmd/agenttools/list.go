package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

type toolInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	// Parameters is the input schema
	Parameters any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

type toolList struct {
	Tools []toolInfo `json:"tools" yaml:"tools"`
}

func (c *cli) newListCommand() *cobra.Command {
	var functions, strict bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the configured tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			box, err := c.toolbox(cmd)
			if err != nil {
				return err
			}

			if functions {
				return c.print(cmd.OutOrStdout(), map[string]any{"tools": box.FunctionTools(strict)})
			}

			res := toolList{Tools: []toolInfo{}}
			for _, t := range box.Tools() {
				res.Tools = append(res.Tools, toolInfo{
					Name:        t.Name(),
					Description: t.Description(),
				})
			}
			return c.print(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&functions, "functions", false, "Print the tools definitions for the chat completions API")
	cmd.Flags().BoolVar(&strict, "strict", false, "Enable the strict schema in the tools definitions")
	return cmd
}

func (c *cli) newDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <tool>",
		Short: "Print the tool description and its input schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := c.toolbox(cmd)
			if err != nil {
				return err
			}

			t, ok := box.Get(args[0])
			if !ok {
				return errors.Newf("tool %s not found", args[0])
			}
			return c.print(cmd.OutOrStdout(), toolInfo{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			})
		},
	}
}
