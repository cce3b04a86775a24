package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tsawler/metricate"
	"github.com/tsawler/metricate/units"
)

type unitSummary struct {
	name    string
	count   int
	example metricate.Annotation
}

// summarize groups annotations by catalog entry, in catalog order.
func summarize(anns []metricate.Annotation) []unitSummary {
	byName := make(map[string]*unitSummary)
	for _, a := range anns {
		s, ok := byName[a.Unit]
		if !ok {
			s = &unitSummary{name: a.Unit, example: a}
			byName[a.Unit] = s
		}
		s.count++
	}

	out := make([]unitSummary, 0, len(byName))
	for _, p := range units.Catalog() {
		if s, ok := byName[p.Name]; ok {
			out = append(out, *s)
			delete(byName, p.Name)
		}
	}
	// Annotations from a custom catalog have names the built-in one lacks.
	for _, a := range anns {
		if s, ok := byName[a.Unit]; ok {
			out = append(out, *s)
			delete(byName, a.Unit)
		}
	}
	return out
}

func unitTitle(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	var flags conversionFlags

	cmd := &cobra.Command{
		Use:   "report [file]",
		Short: "Summarise the phrases a conversion would annotate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.converter(ctx, cmd, args)
			if err != nil {
				return err
			}
			anns, warnings, err := c.Annotations()
			if err != nil {
				return err
			}
			printWarnings(cmd, warnings)

			out := cmd.OutOrStdout()
			if len(anns) == 0 {
				fmt.Fprintln(out, "No convertible phrases found")
				return nil
			}

			p := message.NewPrinter(language.English)
			summaries := summarize(anns)
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{
					unitTitle(s.name),
					p.Sprintf("%d", s.count),
					s.example.Original + " → " + s.example.Display,
				})
			}
			footer := []string{"Total", p.Sprintf("%d", len(anns)), ""}
			fmt.Fprintln(out, renderTable(
				[]string{"Unit", "Phrases", "Example"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
				footer,
				shouldColorize(out),
			))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
