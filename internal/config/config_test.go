package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phredmean/internal/codec"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "phredmean.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func setFlags(names ...string) func(string) bool {
	return func(n string) bool {
		for _, s := range names {
			if s == n {
				return true
			}
		}
		return false
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv(EnvConfig, "")
	eff, err := Load("", Defaults(), nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), eff)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), Defaults(), nil)
	assert.Equal(t, ErrCodeNotFound, Code(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := writeConfig(t, `
workers: 8
chunks: 32
retries: 4
retry_backoff: 250ms
format: jsonl
log:
  level: debug
broker:
  codec: s2
  redeliver_after: 30s
kafka:
  brokers: [k1:9092, k2:9092]
  create_topics: false
`)
	flags := Defaults()
	flags.Workers = 2
	flags.Format = "parquet"

	// Only workers was given on the command line.
	eff, err := Load(path, flags, setFlags(FlagWorkers))
	require.NoError(t, err)
	assert.Equal(t, 2, eff.Workers, "flag beats file")
	assert.Equal(t, "jsonl", eff.Format, "file beats unset flag")
	assert.Equal(t, 32, eff.Chunks)
	assert.Equal(t, 4, eff.Retries)
	assert.Equal(t, 250*time.Millisecond, eff.RetryBackoff)
	assert.Equal(t, "debug", eff.LogLevel)
	assert.Equal(t, codec.S2, eff.Codec)
	assert.Equal(t, 30*time.Second, eff.RedeliverAfter)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, eff.Kafka.Brokers)
	assert.False(t, eff.Kafka.CreateTopics)
	assert.True(t, eff.Kafka.Enabled())
	assert.Equal(t, int64(4096), eff.MinChunkBytes, "default kept")
}

func TestLoad_EnvConfig(t *testing.T) {
	t.Setenv(EnvConfig, writeConfig(t, "mode: scatter\n"))
	eff, err := Load("", Defaults(), nil)
	require.NoError(t, err)
	assert.Equal(t, ModeScatter, eff.Mode)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown key":  "wrokers: 3\n",
		"bad yaml":     "workers: [\n",
		"bad mode":     "mode: mpi\n",
		"bad format":   "format: xlsx\n",
		"bad codec":    "broker:\n  codec: brotli\n",
		"negative":     "workers: -1\n",
		"zero min":     "min_chunk_bytes: 0\n",
		"bad duration": "retry_backoff: soon\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), Defaults(), nil)
			require.Error(t, err)
			assert.Equal(t, ErrCodeInvalid, Code(err))
			assert.True(t, strings.HasPrefix(err.Error(), ErrCodeInvalid))
		})
	}
}

func TestLoad_InvalidFlag(t *testing.T) {
	flags := Defaults()
	flags.Mode = "threads"
	_, err := Load("", flags, setFlags(FlagMode))
	assert.Equal(t, ErrCodeInvalid, Code(err))
}
