package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dinehall/boardlink/internal/insights"
	"github.com/dinehall/boardlink/internal/report"
)

func insightsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Show the analytics snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, log, err := newClient()
			if err != nil {
				return err
			}
			svc := insights.New(client, log)
			ctx, cancel := commandContext()
			defer cancel()
			if err := svc.Refresh(ctx); err != nil {
				return err
			}
			snap := svc.Current()
			if flagJSON {
				return printJSON(snap)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PLATFORM\tORDERS\tGROSS\tCOMMISSION\tNET\tMARGIN")
			for _, p := range snap.Platforms {
				fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.1f%%\n",
					p.Platform, p.Orders, p.GrossRevenue, p.Commission, p.NetRevenue, p.MarginPercent)
			}
			w.Flush()

			fmt.Printf("\nsentiment: %d positive, %d neutral, %d negative (score %.2f)\n",
				snap.Sentiment.Positive, snap.Sentiment.Neutral, snap.Sentiment.Negative, snap.Sentiment.Score)
			for _, wt := range snap.WaitTimes {
				fmt.Printf("party of %d: ~%.0f min, %d waiting\n", wt.PartySize, wt.EstimatedMins, wt.PartiesWaiting)
			}
			if len(snap.Partial) > 0 {
				fmt.Printf("stale resources: %v\n", snap.Partial)
			}
			return nil
		},
	}
}

func reportTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report-test",
		Short: "Send a test incident to the error sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, log, err := newClient()
			if err != nil {
				return err
			}
			reporter := report.New(client, 1, log)
			ctx, cancel := commandContext()
			defer cancel()
			reporter.Report(ctx, report.Incident{
				Message:  "boardctl test incident",
				Severity: "info",
			})
			return reporter.Flush(ctx)
		},
	}
}
