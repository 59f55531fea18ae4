package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"phredmean/internal/appcore"
	"phredmean/internal/engine"
	"phredmean/internal/jsonlutil"
	"phredmean/internal/stats"
	"phredmean/internal/writers"
	"phredmean/pkg/api"
)

func newChunkCommand(g *globals) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "chunk [FASTQ|-]",
		Short: "Fold a whole FASTQ stream into one partial JSON line",
		Long: `chunk reads a FASTQ stream (stdin by default, gzip allowed) and prints its
per-position sums and counts as one JSON line, for "phredmean combine".`,
		Example: `  zcat reads.fq.gz | split -l 4000000 --filter='phredmean chunk --source reads' | phredmean combine`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := g.load(cmd); err != nil {
				return g.fail(err)
			}
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			part, err := engine.New(engine.Config{}).ProcessStream(cmd.Context(), path)
			if err != nil {
				return g.fail(err)
			}
			if source != "" {
				part.Source = source
			}
			in, done := writers.StartPartialJSONLWriter(g.env.Stdout, 1)
			in <- part.ToAPI()
			close(in)
			if err := <-done; err != nil {
				return g.fail(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source name stamped on the partial (default the path)")
	return cmd
}

func newCombineCommand(g *globals) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "combine [flags]",
		Short: "Reduce partial JSON lines from stdin to mean qualities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eff, _, err := g.load(cmd)
			if err != nil {
				return g.fail(err)
			}
			var partials []stats.Partial
			err = jsonlutil.Decode(g.env.Stdin, func(v api.PartialV1) error {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				p, err := stats.PartialFromAPI(v)
				if err != nil {
					return err
				}
				if source != "" {
					p.Source = source
				}
				partials = append(partials, p)
				return nil
			})
			if err != nil {
				return g.fail(fmt.Errorf("read partials: %w", err))
			}
			if len(partials) == 0 {
				return g.fail(appcore.Usage(errors.New("no partials on stdin")))
			}
			wf := appcore.NewResultWriterFactory(eff.Format, eff.Output)
			if err := wf.Validate(); err != nil {
				return g.fail(err)
			}
			dest := writers.Destination{Output: eff.Output, Format: eff.Format, Stdout: g.env.Stdout}
			if err := dest.Write(stats.Reduce(partials)); err != nil {
				return g.fail(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "merge every partial into this one source")
	addOutputFlags(cmd.Flags(), &g.flags)
	return cmd
}
