package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chrisgleissner/sidflow-sub004/internal/pipeline"
	"github.com/chrisgleissner/sidflow-sub004/internal/rating"
	"github.com/chrisgleissner/sidflow-sub004/internal/services"
)

func newClassifyCommand(configFlag *string) *cobra.Command {
	var modelPath string
	var showTags bool

	cmd := &cobra.Command{
		Use:   "classify <dir|files...>",
		Short: "Render, analyze, and rate SID tunes",
		Args:  cobra.MinimumNArgs(1),
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

			opts := []pipeline.Option{}
			path := modelPath
			if path == "" {
				path = cfg.Paths.ModelPath
			}
			model, err := rating.Load(path)
			switch {
			case err == nil:
				opts = append(opts, pipeline.WithModel(model))
			case errors.Is(err, services.ErrNotFound):
				fmt.Fprintf(cmd.ErrOrStderr(),
					"No model at %s; classifying without ratings (run 'sidflow fit' first)\n", path)
			default:
				return err
			}

			classifier, err := pipeline.New(cfg, logger, opts...)
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

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, classificationTable(results, showTags))

			snap := classifier.Aggregator().Snapshot()
			fmt.Fprintf(out, "\n%d classified, %d failed, %d rendered, %d retries\n",
				snap.ProcessedFiles, snap.FailedFiles, snap.RenderedFiles, snap.Retries)
			if snap.FailedFiles > 0 {
				return fmt.Errorf("%d of %d files failed", snap.FailedFiles, snap.TotalFiles)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Rating model path (defaults to paths.model_path)")
	cmd.Flags().BoolVar(&showTags, "tags", false, "Include the tag activation column")
	return cmd
}

func classificationTable(results []pipeline.FileResult, showTags bool) string {
	headers := []string{"File", "Title", "Author", "Energy", "Complexity", "Mood"}
	if showTags {
		headers = append(headers, "Tags")
	}
	headers = append(headers, "Status")

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		row := []string{filepath.Base(r.Path), r.Title, r.Author}
		if r.Prediction != nil {
			row = append(row,
				strconv.Itoa(r.Prediction.Ratings[rating.AxisEnergy]),
				strconv.Itoa(r.Prediction.Ratings[rating.AxisComplexity]),
				strconv.Itoa(r.Prediction.Ratings[rating.AxisMood]))
		} else {
			row = append(row, "-", "-", "-")
		}
		if showTags {
			row = append(row, formatTags(r.Prediction))
		}
		if r.Err != nil {
			row = append(row, "failed: "+r.Err.Error())
		} else {
			row = append(row, "ok")
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, 3, 4, 5)
}

func formatTags(p *rating.Prediction) string {
	if p == nil {
		return "-"
	}
	names := make([]string, 0, len(p.Tags))
	for name, tv := range p.Tags {
		if tv.Present && tv.Value >= 0.6 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
