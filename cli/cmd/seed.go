package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/sportsagg/cli/pkg/output"
	"github.com/telhawk-systems/sportsagg/ingestion/pkg/publisher"
	"github.com/telhawk-systems/sportsagg/ingestion/pkg/source"
)

// SeedSummary is what the seed command prints, one entry per source.
type SeedSummary struct {
	Batches   int            `json:"batches" yaml:"batches"`
	Published map[string]int `json:"published" yaml:"published"`
	Total     int            `json:"total" yaml:"total"`
}

func newSeedCmd(opts *globalOptions) *cobra.Command {
	var (
		batches int
		seed    int64
		sources []string
		mirror  bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Publish mock game reports",
		Long: `Run each mock source --batches times and publish everything it returns.
With --mirror a mirror source re-reports the games already published with
noisy names and shifted kickoff times, so the processor sees overlapping
reports of the same game.`,
		Example: `  sportsctl seed --batches 10
  sportsctl seed --batches 3 --sources football-mock --seed 42 --mirror=false`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if batches < 1 {
				return fmt.Errorf("--batches must be at least 1")
			}
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			faker := gofakeit.New(seed)
			var all []source.Source
			for _, name := range sources {
				src, err := source.New(strings.TrimSpace(name), faker)
				if err != nil {
					return err
				}
				all = append(all, src)
			}
			var mirrorSrc *source.MirrorSource
			if mirror {
				mirrorSrc = source.NewMirrorSource(faker, source.DefaultMirrorCapacity)
				all = append(all, mirrorSrc)
			}

			js, err := connectGames(ctx, cfg, opts, cmd)
			if err != nil {
				return err
			}
			defer js.Close()
			pub := publisher.New(js, opts.logger(cmd))

			summary := SeedSummary{Batches: batches, Published: make(map[string]int, len(all))}
			for range batches {
				for _, src := range all {
					events, err := src.Fetch(ctx)
					if err != nil {
						return fmt.Errorf("fetch from %s: %w", src.Name(), err)
					}
					n, err := pub.Publish(ctx, events)
					summary.Published[src.Name()] += n
					summary.Total += n
					if err != nil {
						return err
					}
					if mirrorSrc != nil {
						mirrorSrc.Observe(events)
					}
				}
			}

			return output.Render(cmd.OutOrStdout(), opts.output, summary, func() *output.Table {
				names := make([]string, 0, len(summary.Published))
				for name := range summary.Published {
					names = append(names, name)
				}
				sort.Strings(names)

				table := output.NewTable("SOURCE", "PUBLISHED")
				for _, name := range names {
					table.AddRow(name, fmt.Sprint(summary.Published[name]))
				}
				table.AddRow("total", fmt.Sprint(summary.Total))
				return table
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&batches, "batches", "n", 1, "number of fetches per source")
	flags.Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	flags.StringSliceVar(&sources, "sources", source.Names(), "mock sources to run")
	flags.BoolVar(&mirror, "mirror", true, "also run the mirror source")
	return cmd
}
