package cli

import (
	"strings"

	"github.com/spf13/pflag"

	"phredmean/internal/codec"
	"phredmean/internal/config"
	"phredmean/internal/output"
)

// codecValue lets a flag hold a codec.Type.
type codecValue struct{ t *codec.Type }

func (v codecValue) String() string { return v.t.String() }
func (v codecValue) Type() string   { return "codec" }

func (v codecValue) Set(s string) error {
	t, err := codec.ParseType(s)
	if err != nil {
		return err
	}
	*v.t = t
	return nil
}

func addPlanFlags(f *pflag.FlagSet, e *config.Effective) {
	f.IntVarP(&e.Workers, config.FlagWorkers, "n", e.Workers, "workers (0 = all CPUs); also the chunk count unless --chunks is set")
	f.IntVar(&e.Chunks, config.FlagChunks, e.Chunks, "number of byte-range chunks (0 = one per worker)")
	f.Int64Var(&e.MinChunkBytes, config.FlagMinChunkBytes, e.MinChunkBytes, "smallest chunk worth splitting off")
}

func addRetryFlags(f *pflag.FlagSet, e *config.Effective) {
	f.IntVar(&e.Retries, config.FlagRetries, e.Retries, "retries per failed chunk")
	f.DurationVar(&e.RetryBackoff, config.FlagRetryBackoff, e.RetryBackoff, "backoff step between retries")
}

func addOutputFlags(f *pflag.FlagSet, e *config.Effective) {
	f.StringVarP(&e.Output, config.FlagOutput, "o", e.Output, "output file; one <stem>_<name> file per source when several are given (default stdout)")
	f.StringVar(&e.Format, config.FlagFormat, e.Format,
		"output format: "+output.FormatCSV+", "+output.FormatJSON+", "+output.FormatJSONL+" or "+output.FormatParquet)
}

func addTransportFlags(f *pflag.FlagSet, e *config.Effective) {
	f.StringVar(&e.AuthKey, config.FlagAuthKey, e.AuthKey, "shared broker key")
	f.Var(codecValue{&e.Codec}, config.FlagCodec, "broker frame compression: "+strings.Join(codec.Names(), ", "))
	f.DurationVar(&e.PollInterval, config.FlagPollInterval, e.PollInterval, "wait between empty queue polls")
	f.StringSliceVar(&e.Kafka.Brokers, config.FlagKafkaBrokers, e.Kafka.Brokers, "Kafka seed brokers; replaces the TCP broker")
	f.StringVar(&e.Kafka.JobsTopic, config.FlagKafkaJobs, e.Kafka.JobsTopic, "Kafka topic for tasks")
	f.StringVar(&e.Kafka.ResultsTopic, config.FlagKafkaResults, e.Kafka.ResultsTopic, "Kafka topic for results")
	f.StringVar(&e.MetricsAddr, config.FlagMetricsAddr, e.MetricsAddr, "serve Prometheus /metrics on this address")
}
