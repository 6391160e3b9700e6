package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/callbacks"
	"github.com/effective-security/agenttools/pkg/llmutils"
	"github.com/effective-security/agenttools/pkg/toolfactory"
	"github.com/effective-security/agenttools/store"
	"github.com/effective-security/agenttools/toolbox"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agenttools", "cli")

// Supported output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// cli holds the global flags and the resources shared by the commands
type cli struct {
	configFile string
	format     string
	debug      bool
	verbose    bool

	cfg *toolfactory.Config
	// newStore is replaced in tests
	newStore func(ctx context.Context, cfg *toolfactory.StoreConfig) (store.SnapshotStore, error)
}

func newRootCommand() *cobra.Command {
	c := &cli{
		newStore: toolfactory.NewStore,
	}
	return c.command()
}

func (c *cli) command() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agenttools",
		Short: "Agent tools CLI",
		Long: `agenttools lists, describes and calls the tools available to LLM agents:
OpenLibrary, Airtable, ImageDescription and HelloWorld.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "Path to the tools configuration file")
	rootCmd.PersistentFlags().StringVarP(&c.format, "format", "f", FormatJSON, "Output format: json, yaml or toml")
	rootCmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Print the tool calls to stderr")

	rootCmd.AddCommand(c.newListCommand())
	rootCmd.AddCommand(c.newDescribeCommand())
	rootCmd.AddCommand(c.newCallCommand())
	rootCmd.AddCommand(c.newSnapshotCommand())

	return rootCmd
}

func (c *cli) init(cmd *cobra.Command) error {
	if c.debug {
		xlog.SetFormatter(xlog.NewStringFormatter(cmd.ErrOrStderr()))
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.ERROR)
	}

	switch c.format {
	case FormatJSON, FormatYAML, FormatTOML:
	default:
		return errors.Newf("unsupported format: %s", c.format)
	}

	cfg, err := toolfactory.LoadConfig(c.configFile)
	if err != nil {
		return errors.WithMessage(err, "failed to load configuration")
	}
	c.cfg = cfg

	logger.KV(xlog.DEBUG, "config", c.configFile, "format", c.format)
	return nil
}

// toolbox returns the tools from the configuration
func (c *cli) toolbox(cmd *cobra.Command) (*toolbox.Toolbox, error) {
	box, err := toolfactory.NewToolbox(c.cfg)
	if err != nil {
		return nil, err
	}
	return box.WithCallback(c.callback(cmd)), nil
}

func (c *cli) callback(cmd *cobra.Command) toolbox.Callback {
	cb := callbacks.NewFanout(callbacks.NewPackageLogger(logger))
	if c.verbose {
		cb.Add(callbacks.NewPrinter(cmd.ErrOrStderr(), callbacks.ModeVerbose))
	}
	return cb
}

func (c *cli) store(ctx context.Context) (store.SnapshotStore, error) {
	return c.newStore(ctx, c.cfg.Store)
}

// print writes the value in the output format
func (c *cli) print(w io.Writer, v any) error {
	switch c.format {
	case FormatYAML:
		// convert to plain values, to encode the schemas by their JSON tags
		plain, err := toPlain(v)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, llmutils.ToYAML(plain))
		return err
	case FormatTOML:
		plain, err := toPlain(v)
		if err != nil {
			return err
		}
		s, err := llmutils.ToTOML(plain)
		if err != nil {
			return errors.Wrap(err, "failed to encode TOML")
		}
		_, err = io.WriteString(w, s)
		return err
	default:
		_, err := fmt.Fprintln(w, llmutils.ToJSONIndent(v))
		return err
	}
}

func toPlain(v any) (any, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var plain any
	if err = json.Unmarshal(js, &plain); err != nil {
		return nil, errors.WithStack(err)
	}
	return plain, nil
}
