package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func tablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List dining tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			svc, err := boardService(ctx)
			if err != nil {
				return err
			}
			snap := svc.Current()
			if flagJSON {
				return printJSON(snap.Tables)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNUMBER\tNAME\tSEATS\tSTATUS\tORDER")
			for _, t := range snap.Tables {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					t.ID, t.Number, t.Name, t.Seats, t.Status, t.CurrentOrderID)
			}
			return w.Flush()
		},
	}
}

func staffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "staff",
		Short: "List staff on shift",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			svc, err := boardService(ctx)
			if err != nil {
				return err
			}
			snap := svc.Current()
			if flagJSON {
				return printJSON(snap.Staff)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE\tSHIFT\tACTIVE\tORDERS\tSALES")
			for _, s := range snap.Staff {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\t%.2f\n",
					s.ID, s.Name, s.Role, s.Shift, s.Active, s.ActiveOrders, s.TotalSales)
			}
			return w.Flush()
		},
	}
}

func statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the board's aggregate stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			svc, err := boardService(ctx)
			if err != nil {
				return err
			}
			stats := svc.Current().Stats
			if flagJSON {
				return printJSON(stats)
			}
			fmt.Printf("open orders:     %d\n", stats.OpenOrders)
			fmt.Printf("ready orders:    %d\n", stats.ReadyOrders)
			fmt.Printf("occupied tables: %d\n", stats.OccupiedTables)
			fmt.Printf("active staff:    %d\n", stats.ActiveStaff)
			fmt.Printf("revenue:         %.2f\n", stats.Revenue)
			fmt.Printf("avg prep:        %.1fm\n", stats.AvgPrepMinutes)
			return nil
		},
	}
}
