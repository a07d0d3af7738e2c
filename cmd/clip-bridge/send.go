package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tendant/clip-bridge/pkg/client"
)

func newSendCmd() *cobra.Command {
	var (
		url    string
		file   string
		secret string
	)

	cmd := &cobra.Command{
		Use:   "send [depot-path...]",
		Short: "Send a webhook to a running bridge",
		Long: `Posts a webhook to a running clip-bridge. Either announce depot paths as
added files, or replay a captured payload with --file.`,
		Example: `  clip-bridge send //depot/art/hero.clip
  clip-bridge send --file payload.json --url http://bridge:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && len(args) == 0 {
				return fmt.Errorf("give at least one depot path or --file")
			}

			c := client.New(url).WithSecret(secret)

			if file != "" {
				body, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read payload: %w", err)
				}
				resp, err := c.Send(cmd.Context(), body)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			}

			resp, err := c.Notify(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:8080", "Base URL of the bridge")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON payload file to send")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("WEBHOOK_SECRET"), "Shared webhook secret")

	return cmd
}
