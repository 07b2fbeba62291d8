package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dinehall/boardlink/internal/automation"
	"github.com/dinehall/boardlink/internal/domain"
)

func webhookService() (*automation.Service, error) {
	client, log, err := newClient()
	if err != nil {
		return nil, err
	}
	return automation.New(client, log), nil
}

func webhooksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhooks",
		Short: "Manage outbound webhook subscriptions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := webhookService()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()
			subs, err := svc.List(ctx)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(subs)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTARGET\tEVENTS\tACTIVE")
			for _, sub := range subs {
				fmt.Fprintf(w, "%s\t%s\t%v\t%t\n", sub.ID, sub.TargetURL, sub.Events, sub.Active)
			}
			return w.Flush()
		},
	})

	addCmd := &cobra.Command{
		Use:   "add <target-url>",
		Short: "Register a subscription",
		Args:  cobra.ExactArgs(1),
	}
	addEvents := addCmd.Flags().StringSlice("events", nil, "event names to deliver")
	addSecret := addCmd.Flags().String("secret", "", "signing secret")
	addCmd.RunE = func(cmd *cobra.Command, args []string) error {
		svc, err := webhookService()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()
		created, err := svc.Create(ctx, domain.WebhookSubscription{
			TargetURL: args[0],
			Events:    *addEvents,
			Secret:    *addSecret,
			Active:    true,
		})
		if err != nil {
			return err
		}
		fmt.Println(created.ID)
		return nil
	}
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <subscription-id>",
		Short: "Remove a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := webhookService()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()
			return svc.Delete(ctx, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "test <subscription-id>",
		Short: "Send a test event to a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := webhookService()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()
			return svc.TestFire(ctx, args[0])
		},
	})

	return cmd
}
