package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var (
	identityCmd = &cobra.Command{
		Use:   "identity",
		Short: "Customer identity maintenance",
	}

	identitySyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Fold new add-to-cart and purchase events into customer records",
		RunE:  runIdentitySync,
	}
)

func init() {
	identityCmd.AddCommand(identitySyncCmd)
}

func runIdentitySync(cmd *cobra.Command, args []string) error {
	_, a, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := a.Open(ctx); err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Merger().Sync(ctx)
	if res != nil {
		_ = json.NewEncoder(cmd.OutOrStdout()).Encode(res)
	}
	return err
}
