package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// =============================================================================
// 💰 spend 命令
// =============================================================================

func newSpendCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "spend",
		Short: "Show the gateway spend for the configured API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.gateway()
			if err != nil {
				return err
			}
			info, err := client.CheckSpending(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if spend, ok := info.Spend(); ok && !raw {
				fmt.Fprintf(out, "spend: %.4f\n", spend)
				return nil
			}
			var buf bytes.Buffer
			if err := json.Indent(&buf, info.Raw, "", "  "); err != nil {
				return fmt.Errorf("format key info: %w", err)
			}
			fmt.Fprintln(out, buf.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the full /key/info response")
	return cmd
}
