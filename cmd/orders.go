package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/report"
)

var (
	ordersCmd = &cobra.Command{
		Use:   "orders",
		Short: "Order history maintenance",
	}

	ordersBackfillCmd = &cobra.Command{
		Use:   "backfill",
		Short: "Pull the orders of a period from the store API into the order table",
		RunE:  runOrdersBackfill,
	}

	backfillFrom, backfillTo string
)

func init() {
	ordersBackfillCmd.Flags().StringVar(&backfillFrom, "from", "", "first day to backfill, YYYY-MM-DD")
	ordersBackfillCmd.Flags().StringVar(&backfillTo, "to", "", "last day to backfill, YYYY-MM-DD")
	_ = ordersBackfillCmd.MarkFlagRequired("from")
	_ = ordersBackfillCmd.MarkFlagRequired("to")
	ordersCmd.AddCommand(ordersBackfillCmd)
}

func runOrdersBackfill(cmd *cobra.Command, args []string) error {
	period, err := report.ParsePeriod(backfillFrom, backfillTo)
	if err != nil {
		return err
	}
	cfg, a, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.Backfill.BaseURL == "" {
		return fmt.Errorf("order_backfill.base_url is not configured")
	}
	ctx := cmd.Context()
	if err := a.Open(ctx); err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Backfiller().Run(ctx, period.From, period.To)
	if res != nil {
		_ = json.NewEncoder(cmd.OutOrStdout()).Encode(res)
	}
	return err
}
