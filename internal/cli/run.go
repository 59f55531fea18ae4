package cli

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"phredmean/internal/appcore"
	"phredmean/internal/cliutil"
	"phredmean/internal/cmdutil"
	"phredmean/internal/config"
	"phredmean/internal/metrics"
	"phredmean/internal/pipeline"
)

func retryOf(eff config.Effective) pipeline.Retry {
	return pipeline.Retry{Attempts: eff.Retries + 1, Backoff: eff.RetryBackoff}
}

func runOptions(eff config.Effective, sources []string, quiet bool, logger log.Logger, m *metrics.Metrics) appcore.Options {
	return appcore.Options{
		Sources:       sources,
		Workers:       eff.Workers,
		Chunks:        eff.Chunks,
		MinChunkBytes: eff.MinChunkBytes,
		Quiet:         quiet,
		Logger:        logger,
		Metrics:       m,
	}
}

// serveMetrics registers the collectors and, with addr set, serves them
// until ctx is done.
func serveMetrics(ctx context.Context, addr string, logger log.Logger) *metrics.Metrics {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	if addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, reg, logger); err != nil {
				level.Error(logger).Log("msg", "metrics server failed", "err", err)
			}
		}()
	}
	return m
}

func newRunCommand(g *globals) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run [flags] FASTQ...",
		Short: "Compute per-position mean quality in this process",
		Example: `  phredmean run reads.fastq
  phredmean run -n 8 --format json -o means.json lane1.fastq lane2.fastq
  phredmean run --mode scatter --checkpoint run.db 'data/*.fastq'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, logger, err := g.load(cmd)
			if err != nil {
				return g.fail(err)
			}
			sources, err := cliutil.ExpandPositionals(args)
			if err != nil {
				return g.fail(appcore.Usage(err))
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			m := serveMetrics(ctx, eff.MetricsAddr, logger)

			code := appcore.Run(ctx, g.env.Stdout, g.env.Stderr,
				runOptions(eff, sources, quiet, logger, m),
				appcore.LocalCoordinatorFactory{
					Mode:       eff.Mode,
					Retry:      retryOf(eff),
					Checkpoint: eff.Checkpoint,
					Logger:     logger,
					Metrics:    m,
				},
				appcore.NewResultWriterFactory(eff.Format, eff.Output),
			)
			return exit(code)
		},
	}
	f := cmd.Flags()
	addPlanFlags(f, &g.flags)
	addRetryFlags(f, &g.flags)
	addOutputFlags(f, &g.flags)
	f.StringVar(&g.flags.Mode, config.FlagMode, g.flags.Mode, "local coordinator: "+config.ModePool+" or "+config.ModeScatter)
	f.StringVar(&g.flags.Checkpoint, config.FlagCheckpoint, g.flags.Checkpoint, "bbolt file of finished chunks; a rerun skips them")
	f.StringVar(&g.flags.MetricsAddr, config.FlagMetricsAddr, g.flags.MetricsAddr, "serve Prometheus /metrics on this address")
	f.BoolVarP(&quiet, "quiet", "q", false, "suppress warnings")
	return cmd
}

func newServeCommand(g *globals) *cobra.Command {
	var (
		quiet       bool
		keepWorkers bool
	)
	cmd := &cobra.Command{
		Use:   "serve [flags] FASTQ...",
		Short: "Plan the files and hand the chunks to remote workers",
		Example: `  phredmean serve --listen :50000 --authkey s3cret -o means.csv reads.fastq
  phredmean serve --kafka-brokers k1:9092,k2:9092 --chunks 64 reads.fastq`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, logger, err := g.load(cmd)
			if err != nil {
				return g.fail(err)
			}
			sources, err := cliutil.ExpandPositionals(args)
			if err != nil {
				return g.fail(appcore.Usage(err))
			}
			if eff.AuthKey == "" && !eff.Kafka.Enabled() {
				cmdutil.Warnf(g.env.Stderr, quiet, "broker on %s accepts any worker; set --authkey", eff.Listen)
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			m := serveMetrics(ctx, eff.MetricsAddr, logger)

			code := appcore.Run(ctx, g.env.Stdout, g.env.Stderr,
				runOptions(eff, sources, quiet, logger, m),
				appcore.QueueCoordinatorFactory{
					Transport: appcore.Transport{
						Listen:  eff.Listen,
						AuthKey: eff.AuthKey,
						Codec:   eff.Codec,
						Kafka:   eff.Kafka,
						Logger:  logger,
					},
					Retry:          retryOf(eff),
					PollInterval:   eff.PollInterval,
					RedeliverAfter: eff.RedeliverAfter,
					KeepWorkers:    keepWorkers,
					Logger:         logger,
					Metrics:        m,
				},
				appcore.NewResultWriterFactory(eff.Format, eff.Output),
			)
			return exit(code)
		},
	}
	f := cmd.Flags()
	addPlanFlags(f, &g.flags)
	addRetryFlags(f, &g.flags)
	addOutputFlags(f, &g.flags)
	addTransportFlags(f, &g.flags)
	f.StringVar(&g.flags.Listen, config.FlagListen, g.flags.Listen, "TCP broker address")
	f.DurationVar(&g.flags.RedeliverAfter, config.FlagRedeliverAfter, g.flags.RedeliverAfter, "resend tasks unanswered this long (0 = never)")
	f.BoolVar(&keepWorkers, "keep-workers", false, "do not send workers the stop message when done")
	f.BoolVarP(&quiet, "quiet", "q", false, "suppress warnings")
	return cmd
}

func newWorkCommand(g *globals) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "work [flags]",
		Short: "Run worker loops for a serve controller",
		Example: `  phredmean work --connect ctl:50000 --authkey s3cret -n 8
  phredmean work --kafka-brokers k1:9092`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eff, logger, err := g.load(cmd)
			if err != nil {
				return g.fail(err)
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			m := serveMetrics(ctx, eff.MetricsAddr, logger)

			err = appcore.Work(ctx, appcore.WorkOptions{
				Transport: appcore.Transport{
					Connect: eff.Connect,
					AuthKey: eff.AuthKey,
					Codec:   eff.Codec,
					Kafka:   eff.Kafka,
					Logger:  logger,
				},
				Loops:        eff.Workers,
				PollInterval: eff.PollInterval,
				Name:         name,
				Logger:       logger,
				Metrics:      m,
			})
			if err != nil {
				return g.fail(err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&g.flags.Workers, config.FlagWorkers, "n", g.flags.Workers, "worker loops (0 = all CPUs)")
	f.StringVar(&g.flags.Connect, config.FlagConnect, g.flags.Connect, "controller broker address")
	f.StringVar(&name, "name", "", "worker name in logs (default host:pid)")
	addTransportFlags(f, &g.flags)
	return cmd
}
