package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"atbat/internal/api/handlers"
	"atbat/internal/config"
	"atbat/internal/core"
	"atbat/internal/dataset"
	"atbat/internal/features"
	"atbat/internal/model"
	"atbat/internal/prediction"
	"atbat/internal/scenario"
	"atbat/internal/session"
)

// paths are the data files shared by every command.
type paths struct {
	events string
	parks  string
	model  string
}

func newRootCmd() *cobra.Command {
	p := &paths{}
	build := config.NewBuildInfo()

	root := &cobra.Command{
		Use:   "atbat",
		Short: "Home-run predictor for historical at-bats",
		Long: `atbat replays batted-ball events from a historical table and asks a
boosted-trees classifier whether a chosen swing would leave the park.`,
		Version:       build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&p.events, "events", "data/train.csv", "Batted-ball events CSV (.zst allowed)")
	root.PersistentFlags().StringVar(&p.parks, "parks", "data/park_dimensions.csv", "Park dimensions CSV (.zst allowed)")
	root.PersistentFlags().StringVar(&p.model, "model", "data/model.json", "Classifier artifact (.zst allowed)")

	root.AddCommand(newScenarioCmd(p))
	root.AddCommand(newPredictCmd(p))
	root.AddCommand(newSchemaCmd(p))
	root.AddCommand(newVersionCmd(build))
	return root
}

func newScenarioCmd(p *paths) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scenario <index>",
		Short: "Describe one scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			table, err := loadTable(cmd.Context(), p)
			if err != nil {
				return err
			}
			view, err := scenario.NewPresenter(table).Describe(index)
			if err != nil {
				return fmt.Errorf("scenario %d of %d: %w", index, table.Len(), err)
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			printView(cmd.OutOrStdout(), view)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func newPredictCmd(p *paths) *cobra.Command {
	var (
		speed      float64
		angle      float64
		bearing    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "predict <index>",
		Short: "Score a swing against one scenario",
		Example: `  atbat predict 0 --speed 104 --angle 25 --bearing center
  atbat predict 3 --speed 88 --angle 12 --bearing left --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}

			req := handlers.SwingRequest{LaunchSpeed: &speed, LaunchAngle: &angle, Bearing: bearing}
			if err := core.NewValidator(quietLogger()).ValidateStruct(req); err != nil {
				return err
			}

			table, err := loadTable(cmd.Context(), p)
			if err != nil {
				return err
			}
			svc, err := newService(table, p)
			if err != nil {
				return err
			}

			result, err := svc.Predict(cmd.Context(), index, req.Swing())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			banner := session.BannerTryAgain
			if result.HomeRun {
				banner = session.BannerHomeRun
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (confidence %.1f%%)\n", banner, result.Confidence*100)
			return nil
		},
	}

	cmd.Flags().Float64Var(&speed, "speed", 50, "Launch speed in mph (0 to 105)")
	cmd.Flags().Float64Var(&angle, "angle", 20, "Launch angle in degrees (-80 to 80)")
	cmd.Flags().StringVar(&bearing, "bearing", "center", "Bearing: left, center or right")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func newSchemaCmd(p *paths) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the ordered feature list",
		Long: `Print the classifier's feature order after checking it against the
encoding of the scenario table. A mismatch is reported as an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadTable(cmd.Context(), p)
			if err != nil {
				return err
			}
			svc, err := newService(table, p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, name := range svc.Features() {
				fmt.Fprintf(out, "%3d  %s\n", i, name)
			}
			return nil
		},
	}
}

func newVersionCmd(build config.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:  %s\n", build.Version)
			fmt.Fprintf(out, "Commit:   %s\n", build.Commit)
			fmt.Fprintf(out, "Built:    %s\n", build.BuildTime)
			return nil
		},
	}
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("index must be a non-negative integer, got %q", s)
	}
	return i, nil
}

func loadTable(ctx context.Context, p *paths) (*dataset.Table, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return dataset.Load(ctx, dataset.LoadOptions{
		EventsPath: p.events,
		ParksPath:  p.parks,
		Logger:     quietLogger(),
	})
}

func newService(table *dataset.Table, p *paths) (*prediction.Service, error) {
	ensemble, err := model.LoadArtifact(p.model)
	if err != nil {
		return nil, err
	}
	return prediction.NewService(features.NewEncoder(table), ensemble, quietLogger())
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printView(w io.Writer, v scenario.View) {
	fmt.Fprintln(w, strings.Join(v.Headline, "\n"))
	fmt.Fprintf(w, "Count: %d-%d, %d out, inning %d\n", v.Count.Balls, v.Count.Strikes, v.Count.Outs, v.Count.Inning)
	if d := v.Park; d.LFDistance != nil && d.CFDistance != nil && d.RFDistance != nil {
		fmt.Fprintf(w, "Walls: LF %g ft, CF %g ft, RF %g ft\n", *d.LFDistance, *d.CFDistance, *d.RFDistance)
	}
}
