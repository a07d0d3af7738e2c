package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tendant/clip-bridge/internal/config"
	"github.com/tendant/clip-bridge/internal/extractor"
	"github.com/tendant/clip-bridge/pkg/runner"
)

func newProcessCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <depot-path>...",
		Short: "Process files once without starting the server",
		Long: `Runs the full pipeline for each depot path in turn and exits. Useful for
backfilling files that were added before the bridge was running.`,
		Example: `  clip-bridge process //depot/art/hero.clip //depot/art/villain.clip`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(v, cmd.Flags(), map[string]string{
				"extractor":    config.KeyExtractorPath,
				"tool-timeout": config.KeyToolTimeout,
			}); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			r, err := runner.New(cmd.Context(), runner.Config{
				DAMURL:        cfg.DAMURL,
				AccountKey:    cfg.AccountKey,
				ExtractorPath: cfg.ExtractorPath,
				ToolTimeout:   cfg.ToolTimeout,
				DAMTimeout:    cfg.DAMTimeout,
				PreviewMaxDim: cfg.PreviewMaxDim,
				TempDir:       cfg.TempDir,
			})
			if err != nil {
				return err
			}

			var errs []error
			for _, path := range args {
				res, err := r.Process(cmd.Context(), path)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d fields\n", path, res.Outcome, res.Fields)
				if err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().String("extractor", extractor.DefaultTool, "Path to the clip_extractor binary")
	cmd.Flags().String("tool-timeout", "0s", "Time limit for one extractor run (0 = no limit)")

	return cmd
}
