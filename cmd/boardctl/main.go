// Command boardctl is the operator's command line for the restaurant
// backend: inspect the board, mutate orders, manage webhook subscriptions
// and pull the analytics snapshot without a screen shell.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/pkg/logger"
)

var (
	flagAPIURL  string
	flagVersion string
	flagLevel   string
	flagJSON    bool
	flagTimeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "boardctl",
		Short:         "Operator CLI for the order board backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagAPIURL, "api", os.Getenv("BOARDLINK_API_URL"), "backend root URL")
	root.PersistentFlags().StringVar(&flagVersion, "app-version", "boardctl", "value sent as X-App-Version")
	root.PersistentFlags().StringVar(&flagLevel, "log-level", "warn", "log level")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "print raw JSON instead of tables")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", 15*time.Second, "per-command timeout")

	root.AddCommand(
		ordersCommand(),
		tablesCommand(),
		staffCommand(),
		statsCommand(),
		webhooksCommand(),
		insightsCommand(),
		reportTestCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "boardctl:", err)
		os.Exit(1)
	}
}

func newClient() (*api.Client, *logger.Logger, error) {
	if flagAPIURL == "" {
		return nil, nil, fmt.Errorf("backend URL required: set --api or BOARDLINK_API_URL")
	}
	log := logger.New("boardctl", flagLevel)
	client, err := api.New(api.Config{
		BaseURL:    flagAPIURL,
		AppVersion: flagVersion,
		Timeout:    flagTimeout,
		Sessions: api.SessionHandlerFunc(func(redirect string) {
			fmt.Fprintln(os.Stderr, "boardctl: session expired, sign in again")
		}),
		Logger: log,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, log, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
