package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/miradorstack/benford-lab/internal/benford"
	"github.com/miradorstack/benford-lab/internal/interpret"
)

type analyzeOptions struct {
	csv         string
	column      string
	plot        string
	report      string
	expectation string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a Benford analysis on one CSV column",
		Example: `  benford analyze --csv sales.csv --column amount
  benford analyze --csv cities.csv --column population --plot out.png --report out.txt --expect conform`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			analyzer := benford.NewAnalyzer(a.logger)
			res, err := analyzer.Run(opts.csv, opts.column, opts.plot, opts.report)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res, opts)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.csv, "csv", "", "CSV file to analyze")
	cmd.Flags().StringVar(&opts.column, "column", "", "numeric column to test")
	cmd.Flags().StringVar(&opts.plot, "plot", "benford_plot.png", "PNG chart output path (empty to skip)")
	cmd.Flags().StringVar(&opts.report, "report", "benford_report.txt", "text report output path (empty to skip)")
	cmd.Flags().StringVar(&opts.expectation, "expect", "", "expected outcome: conform or nonconform")
	_ = cmd.MarkFlagRequired("csv")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

func printResult(w io.Writer, res *benford.Result, opts *analyzeOptions) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Leading digits of %s (%d values)", res.Column, res.Count)
	t.AppendHeader(table.Row{"Digit", "Count", "Observed", "Benford"})
	for _, d := range res.Digits {
		t.AppendRow(table.Row{d.Digit, d.Count,
			fmt.Sprintf("%.2f%%", d.Observed*100),
			fmt.Sprintf("%.2f%%", d.Expected*100),
		})
	}
	t.AppendFooter(table.Row{"", "", "Chi-squared", fmt.Sprintf("%.5f", res.ChiSquared)})
	t.AppendFooter(table.Row{"", "", "P-value", fmt.Sprintf("%.5f", res.PValue)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.SetStyle(table.StyleLight)
	t.Render()

	verdict := interpret.Interpret(&res.PValue, &res.ChiSquared, res.Column, opts.expectation)
	fmt.Fprintf(w, "\n%s: %s\n%s\n%s\n", res.Conclusion, verdict.Headline, verdict.Detail, verdict.Guidance)
	if opts.plot != "" {
		fmt.Fprintf(w, "Plot:   %s\n", opts.plot)
	}
	if opts.report != "" {
		fmt.Fprintf(w, "Report: %s\n", opts.report)
	}
}
