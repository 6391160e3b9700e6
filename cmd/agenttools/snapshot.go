package main

import (
	"fmt"

	"github.com/effective-security/agenttools/pkg/toolfactory"
	"github.com/spf13/cobra"
)

func (c *cli) newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage the tool snapshots",
		Long:  `Save the configured tools to the snapshot store, and list, show or delete the stored snapshots.`,
	}

	var prefix string
	save := &cobra.Command{
		Use:   "save",
		Short: "Save the snapshots of the configured tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			box, err := c.toolbox(cmd)
			if err != nil {
				return err
			}
			st, err := c.store(ctx)
			if err != nil {
				return err
			}
			ids, err := toolfactory.SaveToolbox(ctx, st, prefix, box)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]any{"saved": ids})
		},
	}
	save.Flags().StringVar(&prefix, "prefix", "", "Prefix of the snapshot IDs")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the stored snapshot IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := c.store(ctx)
			if err != nil {
				return err
			}
			ids, err := st.List(ctx)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]any{"snapshots": ids})
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the stored snapshot document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.store(ctx)
			if err != nil {
				return err
			}
			s, err := st.Load(ctx, args[0])
			if err != nil {
				return err
			}
			doc, err := s.Marshal()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(doc))
			return err
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete the stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.store(ctx)
			if err != nil {
				return err
			}
			return st.Delete(ctx, args[0])
		},
	}

	cmd.AddCommand(save, list, show, del)
	return cmd
}
