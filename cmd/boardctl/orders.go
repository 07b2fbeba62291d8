package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dinehall/boardlink/internal/board"
	"github.com/dinehall/boardlink/internal/domain"
)

// boardService builds a board service seeded with one refresh, so the
// mutators see the same snapshot the daemon would.
func boardService(ctx context.Context) (*board.Service, error) {
	client, log, err := newClient()
	if err != nil {
		return nil, err
	}
	svc := board.New(client, nil, nil, nil, log)
	if err := svc.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	return svc, nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), flagTimeout)
}

func ordersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and mutate orders",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List open orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			svc, err := boardService(ctx)
			if err != nil {
				return err
			}
			snap := svc.Current()
			if flagJSON {
				return printJSON(snap.Orders)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNUMBER\tTABLE\tSTATUS\tPRIORITY\tWAIT\tTOTAL")
			now := time.Now()
			for _, o := range snap.Orders {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%dm\t%.2f\n",
					o.ID, o.Number, o.TableNumber, o.Status, o.Priority, o.WaitMinutes(now), o.Total)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Set an order's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			svc, err := boardService(ctx)
			if err != nil {
				return err
			}
			return svc.UpdateStatus(ctx, args[0], domain.OrderStatus(args[1]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "item-status <order-id> <item-id> <status>",
		Short: "Set one line item's status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			svc, err := boardService(ctx)
			if err != nil {
				return err
			}
			return svc.UpdateItemStatus(ctx, args[0], args[1], domain.ItemStatus(args[2]))
		},
	})

	voidCmd := &cobra.Command{
		Use:   "void <order-id>",
		Short: "Void an order",
		Args:  cobra.ExactArgs(1),
	}
	voidReason := voidCmd.Flags().String("reason", "", "why the order is voided")
	voidCmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()
		svc, err := boardService(ctx)
		if err != nil {
			return err
		}
		return svc.Void(ctx, args[0], *voidReason)
	}
	cmd.AddCommand(voidCmd)

	refundCmd := &cobra.Command{
		Use:   "refund <order-id>",
		Short: "Refund an order",
		Args:  cobra.ExactArgs(1),
	}
	refundAmount := refundCmd.Flags().Float64("amount", 0, "refund amount, 0 for full")
	refundReason := refundCmd.Flags().String("reason", "", "why the order is refunded")
	refundCmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()
		svc, err := boardService(ctx)
		if err != nil {
			return err
		}
		return svc.Refund(ctx, args[0], *refundAmount, *refundReason)
	}
	cmd.AddCommand(refundCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "reprint <order-id>",
		Short: "Reprint an order's kitchen ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			svc, err := boardService(ctx)
			if err != nil {
				return err
			}
			return svc.Reprint(ctx, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "priority <order-id> <n>",
		Short: "Set an order's priority tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("priority must be an integer: %w", err)
			}
			ctx, cancel := commandContext()
			defer cancel()
			svc, err := boardService(ctx)
			if err != nil {
				return err
			}
			return svc.SetPriority(ctx, args[0], priority)
		},
	})

	return cmd
}
