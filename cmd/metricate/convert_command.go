package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsawler/metricate"
	"github.com/tsawler/metricate/format"
	"github.com/tsawler/metricate/rounding"
)

// conversionFlags are shared by the commands that run a conversion.
type conversionFlags struct {
	smart       bool
	units       []string
	contentType string
	text        bool
}

func (f *conversionFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.smart, "smart", false, "Use smart rounding (defaults to engine.smart_rounding_default)")
	cmd.Flags().StringSliceVar(&f.units, "units", nil, "Only convert these catalog entries (e.g. miles,feet-range)")
	cmd.Flags().StringVar(&f.contentType, "content-type", "", "Content-Type used to pick the input encoding")
	cmd.Flags().BoolVar(&f.text, "text", false, "Treat the input as plain text")
}

// converter builds a Converter for the command's input and flags.
func (f *conversionFlags) converter(ctx *commandContext, cmd *cobra.Command, args []string) (*metricate.Converter, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.logger(cmd)
	if err != nil {
		return nil, err
	}

	var c *metricate.Converter
	if path := inputArg(args); path != "" {
		c = metricate.Open(path)
	} else {
		c = metricate.FromReader(cmd.InOrStdin())
	}

	smart := cfg.Engine.SmartRoundingDefault
	if cmd.Flags().Changed("smart") {
		smart = f.smart
	}
	c = c.Mode(rounding.ModeFor(smart)).Logger(logger)
	if len(f.units) > 0 {
		c = c.Units(f.units...)
	}
	if f.contentType != "" {
		c = c.ContentType(f.contentType)
	}
	if f.text {
		c = c.Format(format.Text)
	}
	return c, nil
}

func printWarnings(cmd *cobra.Command, warnings []metricate.Warning) {
	if len(warnings) == 0 {
		return
	}
	err := cmd.ErrOrStderr()
	for _, line := range strings.Split(metricate.FormatWarnings(warnings), "\n") {
		fmt.Fprintf(err, "warning: %s\n", line)
	}
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var flags conversionFlags
	var outputPath string
	var plainText bool

	cmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert imperial units in a document to metric",
		Long: "Convert every recognised imperial phrase in an HTML or text document into an annotated metric value.\n" +
			"Reads standard input when no file (or \"-\") is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.converter(ctx, cmd, args)
			if err != nil {
				return err
			}

			var out string
			var warnings []metricate.Warning
			if plainText {
				out, warnings, err = c.Text()
				out += "\n"
			} else {
				out, warnings, err = c.HTML()
			}
			if err != nil {
				return err
			}
			printWarnings(cmd, warnings)
			return writeOutput(cmd, outputPath, out)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result to a file instead of standard output")
	cmd.Flags().BoolVar(&plainText, "plain-text", false, "Print the visible text instead of HTML")
	return cmd
}

func newRevertCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var contentType string

	cmd := &cobra.Command{
		Use:   "revert [file]",
		Short: "Restore the original text of every annotation in a document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c *metricate.Converter
			if path := inputArg(args); path != "" {
				c = metricate.Open(path)
			} else {
				c = metricate.FromReader(cmd.InOrStdin())
			}
			if contentType != "" {
				c = c.ContentType(contentType)
			}
			out, warnings, err := c.Revert()
			if err != nil {
				return err
			}
			printWarnings(cmd, warnings)
			return writeOutput(cmd, outputPath, out)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result to a file instead of standard output")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content-Type used to pick the input encoding")
	return cmd
}
