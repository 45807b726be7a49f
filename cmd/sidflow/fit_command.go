package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chrisgleissner/sidflow-sub004/internal/features"
	"github.com/chrisgleissner/sidflow-sub004/internal/pipeline"
	"github.com/chrisgleissner/sidflow-sub004/internal/rating"
)

func newFitCommand(configFlag *string) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "fit <dir|files...>",
		Short: "Fit the rating model from a training corpus",
		Long: "fit renders and analyzes the given tunes, then learns per-feature " +
			"normalization statistics and saves them as the rating model.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			files, err := collectSIDFiles(args)
			if err != nil {
				return err
			}

			classifier, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			defer classifier.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			results, err := classifier.Run(ctx, files)
			if err != nil {
				return err
			}

			sets := make([]features.Set, 0, len(results))
			for _, r := range results {
				if r.Err == nil {
					sets = append(sets, r.Features)
				}
			}
			if len(sets) == 0 {
				return fmt.Errorf("no file in the corpus produced features")
			}

			model, err := rating.Fit(sets)
			if err != nil {
				return err
			}
			target := outputPath
			if target == "" {
				target = cfg.Paths.ModelPath
			}
			if err := model.Save(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fitted %d features from %d of %d files\n",
				len(model.Stats), len(sets), len(files))
			fmt.Fprintf(out, "Model written to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Model destination (defaults to paths.model_path)")
	return cmd
}
