package main

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
)

// renderDiff marks removed text as [-...-] and inserted text as {+...+},
// or uses terminal colours when colorize is set.
func renderDiff(before, after string, colorize bool) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	if colorize {
		return dmp.DiffPrettyText(diffs)
	}
	var sb strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			sb.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			sb.WriteString("{+" + d.Text + "+}")
		case diffmatchpatch.DiffEqual:
			sb.WriteString(d.Text)
		}
	}
	return sb.String()
}

func newDiffCommand(ctx *commandContext) *cobra.Command {
	var flags conversionFlags

	cmd := &cobra.Command{
		Use:   "diff [file]",
		Short: "Show how conversion changes the visible text of a document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.converter(ctx, cmd, args)
			if err != nil {
				return err
			}
			before, err := c.OriginalText()
			if err != nil {
				return err
			}
			after, warnings, err := c.Text()
			if err != nil {
				return err
			}
			printWarnings(cmd, warnings)

			out := cmd.OutOrStdout()
			if before == after {
				fmt.Fprintln(out, "No changes")
				return nil
			}
			fmt.Fprintln(out, renderDiff(before, after, shouldColorize(out)))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
