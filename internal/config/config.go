// Package config merges the YAML config file with command-line flags.
//
// Precedence per setting: a flag given on the command line, then the file,
// then the built-in default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"phredmean/internal/codec"
)

const (
	// ErrCodeNotFound means the named config file does not exist.
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid means the file cannot be read or parsed, or a value is
	// out of range.
	ErrCodeInvalid = "config_invalid"
)

// EnvConfig names a config file when --config is not given.
const EnvConfig = "PHREDMEAN_CONFIG"

// Flag names shared with the CLI.
const (
	FlagWorkers        = "workers"
	FlagChunks         = "chunks"
	FlagMinChunkBytes  = "min-chunk-bytes"
	FlagRetries        = "retries"
	FlagRetryBackoff   = "retry-backoff"
	FlagMode           = "mode"
	FlagFormat         = "format"
	FlagOutput         = "output"
	FlagCheckpoint     = "checkpoint"
	FlagLogLevel       = "log-level"
	FlagLogFormat      = "log-format"
	FlagListen         = "listen"
	FlagConnect        = "connect"
	FlagAuthKey        = "authkey"
	FlagCodec          = "codec"
	FlagPollInterval   = "poll-interval"
	FlagRedeliverAfter = "redeliver-after"
	FlagMetricsAddr    = "metrics-addr"
	FlagKafkaBrokers   = "kafka-brokers"
	FlagKafkaJobs      = "kafka-jobs-topic"
	FlagKafkaResults   = "kafka-results-topic"
)

// Run modes for local processing.
const (
	ModePool    = "pool"
	ModeScatter = "scatter"
)

// Output formats.
var Formats = []string{"csv", "json", "jsonl", "parquet"}

// Error is a structured configuration error.
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Code == ErrCodeNotFound:
		return fmt.Sprintf("%s: config file %q not found", e.Code, e.Path)
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: config file %q: %v", e.Code, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the error code, or "" if err is not an *Error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// FileConfig mirrors the YAML file. Pointers tell "absent" from zero.
type FileConfig struct {
	Workers       *int           `yaml:"workers"`
	Chunks        *int           `yaml:"chunks"`
	MinChunkBytes *int64         `yaml:"min_chunk_bytes"`
	Retries       *int           `yaml:"retries"`
	RetryBackoff  *time.Duration `yaml:"retry_backoff"`
	Mode          string         `yaml:"mode"`
	Format        string         `yaml:"format"`
	Checkpoint    string         `yaml:"checkpoint"`
	MetricsAddr   string         `yaml:"metrics_addr"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Broker struct {
		Listen         string         `yaml:"listen"`
		Connect        string         `yaml:"connect"`
		AuthKey        string         `yaml:"authkey"`
		Codec          string         `yaml:"codec"`
		PollInterval   *time.Duration `yaml:"poll_interval"`
		RedeliverAfter *time.Duration `yaml:"redeliver_after"`
	} `yaml:"broker"`

	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		JobsTopic     string   `yaml:"jobs_topic"`
		ResultsTopic  string   `yaml:"results_topic"`
		CreateTopics  *bool    `yaml:"create_topics"`
		Partitions    int32    `yaml:"partitions"`
		SASLUsername  string   `yaml:"sasl_username"`
		SASLPassword  string   `yaml:"sasl_password"`
		SASLMechanism string   `yaml:"sasl_mechanism"`
	} `yaml:"kafka"`
}

// Kafka holds the settings of both Kafka topics.
type Kafka struct {
	Brokers       []string
	JobsTopic     string
	ResultsTopic  string
	CreateTopics  bool
	Partitions    int32
	SASLUsername  string
	SASLPassword  string
	SASLMechanism string
}

// Enabled reports whether Kafka replaces the TCP broker.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// Effective is the merged configuration consumed by the commands.
type Effective struct {
	Workers       int
	Chunks        int
	MinChunkBytes int64
	Retries       int
	RetryBackoff  time.Duration
	Mode          string
	Format        string
	Output        string
	Checkpoint    string

	LogLevel  string
	LogFormat string

	Listen         string
	Connect        string
	AuthKey        string
	Codec          codec.Type
	PollInterval   time.Duration
	RedeliverAfter time.Duration
	MetricsAddr    string

	Kafka Kafka
}

// Defaults returns the built-in settings; CLI flag defaults use the same
// values.
func Defaults() Effective {
	return Effective{
		Workers:        0,
		Chunks:         0,
		MinChunkBytes:  4096,
		Retries:        2,
		RetryBackoff:   100 * time.Millisecond,
		Mode:           ModePool,
		Format:         "csv",
		LogLevel:       "warn",
		LogFormat:      "logfmt",
		Listen:         "127.0.0.1:50000",
		Connect:        "127.0.0.1:50000",
		Codec:          codec.Zstd,
		PollInterval:   50 * time.Millisecond,
		RedeliverAfter: 5 * time.Minute,
		Kafka: Kafka{
			JobsTopic:     "phredmean-jobs",
			ResultsTopic:  "phredmean-results",
			CreateTopics:  true,
			SASLMechanism: "PLAIN",
		},
	}
}

// Load reads the config file at path (or $PHREDMEAN_CONFIG when path is
// empty; no file at all is fine) and merges it with flags. isSet reports
// whether a flag was given on the command line; only those override the
// file.
func Load(path string, flags Effective, isSet func(flag string) bool) (Effective, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	var fc FileConfig
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Effective{}, &Error{Code: ErrCodeNotFound, Path: path, Err: err}
			}
			return Effective{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
		}
		if fc, err = Parse(bytes.NewReader(b)); err != nil {
			return Effective{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
		}
	}
	if isSet == nil {
		isSet = func(string) bool { return false }
	}
	eff, err := merge(fc, flags, isSet)
	if err != nil {
		return Effective{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	return eff, nil
}

// Parse decodes a YAML config. Unknown keys are rejected.
func Parse(r io.Reader) (FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return FileConfig{}, err
	}
	return fc, nil
}

func merge(fc FileConfig, flags Effective, isSet func(string) bool) (Effective, error) {
	eff := Defaults()

	// file
	setPtr(&eff.Workers, fc.Workers)
	setPtr(&eff.Chunks, fc.Chunks)
	setPtr(&eff.MinChunkBytes, fc.MinChunkBytes)
	setPtr(&eff.Retries, fc.Retries)
	setPtr(&eff.RetryBackoff, fc.RetryBackoff)
	setStr(&eff.Mode, fc.Mode)
	setStr(&eff.Format, fc.Format)
	setStr(&eff.Checkpoint, fc.Checkpoint)
	setStr(&eff.MetricsAddr, fc.MetricsAddr)
	setStr(&eff.LogLevel, fc.Log.Level)
	setStr(&eff.LogFormat, fc.Log.Format)
	setStr(&eff.Listen, fc.Broker.Listen)
	setStr(&eff.Connect, fc.Broker.Connect)
	setStr(&eff.AuthKey, fc.Broker.AuthKey)
	setPtr(&eff.PollInterval, fc.Broker.PollInterval)
	setPtr(&eff.RedeliverAfter, fc.Broker.RedeliverAfter)
	if fc.Broker.Codec != "" {
		t, err := codec.ParseType(fc.Broker.Codec)
		if err != nil {
			return Effective{}, err
		}
		eff.Codec = t
	}
	if len(fc.Kafka.Brokers) > 0 {
		eff.Kafka.Brokers = append([]string(nil), fc.Kafka.Brokers...)
	}
	setStr(&eff.Kafka.JobsTopic, fc.Kafka.JobsTopic)
	setStr(&eff.Kafka.ResultsTopic, fc.Kafka.ResultsTopic)
	setPtr(&eff.Kafka.CreateTopics, fc.Kafka.CreateTopics)
	if fc.Kafka.Partitions != 0 {
		eff.Kafka.Partitions = fc.Kafka.Partitions
	}
	setStr(&eff.Kafka.SASLUsername, fc.Kafka.SASLUsername)
	setStr(&eff.Kafka.SASLPassword, fc.Kafka.SASLPassword)
	setStr(&eff.Kafka.SASLMechanism, fc.Kafka.SASLMechanism)

	// flags
	overrides := []struct {
		flag  string
		apply func()
	}{
		{FlagWorkers, func() { eff.Workers = flags.Workers }},
		{FlagChunks, func() { eff.Chunks = flags.Chunks }},
		{FlagMinChunkBytes, func() { eff.MinChunkBytes = flags.MinChunkBytes }},
		{FlagRetries, func() { eff.Retries = flags.Retries }},
		{FlagRetryBackoff, func() { eff.RetryBackoff = flags.RetryBackoff }},
		{FlagMode, func() { eff.Mode = flags.Mode }},
		{FlagFormat, func() { eff.Format = flags.Format }},
		{FlagOutput, func() { eff.Output = flags.Output }},
		{FlagCheckpoint, func() { eff.Checkpoint = flags.Checkpoint }},
		{FlagLogLevel, func() { eff.LogLevel = flags.LogLevel }},
		{FlagLogFormat, func() { eff.LogFormat = flags.LogFormat }},
		{FlagListen, func() { eff.Listen = flags.Listen }},
		{FlagConnect, func() { eff.Connect = flags.Connect }},
		{FlagAuthKey, func() { eff.AuthKey = flags.AuthKey }},
		{FlagCodec, func() { eff.Codec = flags.Codec }},
		{FlagPollInterval, func() { eff.PollInterval = flags.PollInterval }},
		{FlagRedeliverAfter, func() { eff.RedeliverAfter = flags.RedeliverAfter }},
		{FlagMetricsAddr, func() { eff.MetricsAddr = flags.MetricsAddr }},
		{FlagKafkaBrokers, func() { eff.Kafka.Brokers = flags.Kafka.Brokers }},
		{FlagKafkaJobs, func() { eff.Kafka.JobsTopic = flags.Kafka.JobsTopic }},
		{FlagKafkaResults, func() { eff.Kafka.ResultsTopic = flags.Kafka.ResultsTopic }},
	}
	for _, o := range overrides {
		if isSet(o.flag) {
			o.apply()
		}
	}
	return eff, eff.Validate()
}

// Validate checks ranges and enumerations.
func (e Effective) Validate() error {
	var errs []error
	if e.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", e.Workers))
	}
	if e.Chunks < 0 {
		errs = append(errs, fmt.Errorf("chunks must be >= 0, got %d", e.Chunks))
	}
	if e.MinChunkBytes < 1 {
		errs = append(errs, fmt.Errorf("min chunk bytes must be >= 1, got %d", e.MinChunkBytes))
	}
	if e.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must be >= 0, got %d", e.Retries))
	}
	if e.RetryBackoff < 0 || e.PollInterval < 0 || e.RedeliverAfter < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if e.Mode != ModePool && e.Mode != ModeScatter {
		errs = append(errs, fmt.Errorf("mode must be %s or %s, got %q", ModePool, ModeScatter, e.Mode))
	}
	if !oneOf(e.Format, Formats...) {
		errs = append(errs, fmt.Errorf("format must be one of %s, got %q", strings.Join(Formats, ", "), e.Format))
	}
	if !oneOf(strings.ToLower(e.LogLevel), "debug", "info", "warn", "warning", "error", "none") {
		errs = append(errs, fmt.Errorf("unknown log level %q", e.LogLevel))
	}
	if !oneOf(strings.ToLower(e.LogFormat), "logfmt", "json") {
		errs = append(errs, fmt.Errorf("unknown log format %q", e.LogFormat))
	}
	if _, err := codec.GetCodec(e.Codec); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func oneOf(s string, set ...string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
