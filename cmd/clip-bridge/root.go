package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tendant/clip-bridge/internal/config"
)

func newRootCmd() *cobra.Command {
	v := config.New()

	serve := newServeCmd(v)

	cmd := &cobra.Command{
		Use:   "clip-bridge",
		Short: "Publish CLIP STUDIO file metadata and previews to Helix DAM",
		Long: `clip-bridge receives file-change webhooks, extracts metadata and a preview
image from every added or modified .clip file with clip_extractor, and
publishes both to Helix DAM.

Running without a subcommand starts the server.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			config.LoadDotEnv()
			setupLogging(v.GetString(config.KeyLogLevel))
		},
		RunE: serve.RunE,
	}
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve)
	cmd.AddCommand(newProcessCmd(v))
	cmd.AddCommand(newSendCmd())

	return cmd
}

// setupLogging installs the default slog logger
func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
