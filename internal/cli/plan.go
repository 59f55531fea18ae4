package cli

import (
	"github.com/spf13/cobra"

	"phredmean/internal/appcore"
	"phredmean/internal/cliutil"
	"phredmean/internal/writers"
)

func newPlanCommand(g *globals) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "plan [flags] FASTQ...",
		Short: "Print the work items as JSON lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, logger, err := g.load(cmd)
			if err != nil {
				return g.fail(err)
			}
			sources, err := cliutil.ExpandPositionals(args)
			if err != nil {
				return g.fail(appcore.Usage(err))
			}
			items, err := appcore.Plan(g.env.Stderr, runOptions(eff, sources, quiet, logger, nil))
			if err != nil {
				return g.fail(err)
			}
			in, done := writers.StartWorkItemJSONLWriter(g.env.Stdout, len(items))
			for _, it := range items {
				in <- it.ToAPI()
			}
			close(in)
			if err := <-done; err != nil {
				return g.fail(err)
			}
			return nil
		},
	}
	addPlanFlags(cmd.Flags(), &g.flags)
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress warnings")
	return cmd
}
