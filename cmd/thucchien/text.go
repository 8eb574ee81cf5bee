package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BaSui01/thucchien/llm/gateway"
)

// =============================================================================
// 📝 text 命令
// =============================================================================

func newTextCmd(a *app) *cobra.Command {
	var opts gateway.TextOptions
	cmd := &cobra.Command{
		Use:   "text <prompt>",
		Short: "Generate text with the chat completions endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.gateway()
			if err != nil {
				return err
			}
			resp, err := client.GenerateText(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			text, err := resp.Text()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.Model, "model", "", "Chat model")
	flags.Float64Var(&opts.Temperature, "temperature", 0, "Sampling temperature (default 1.0)")
	flags.IntVar(&opts.MaxTokens, "max-tokens", 0, "Maximum tokens in the reply")
	return cmd
}
