package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"

	"phredmean/internal/codec"
)

// ErrProducerOnly is returned by TryGet on a Kafka queue without a consumer
// group.
var ErrProducerOnly = errors.New("queue: kafka queue has no consumer group")

// fanoutHeader pins a stop copy to one partition.
const fanoutHeader = "phredmean-partition"

const (
	defaultKafkaPartitions  = 16
	defaultKafkaPollTimeout = 500 * time.Millisecond
	kafkaMaxPollRecords     = 64
)

// KafkaConfig describes one topic-backed queue.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string // empty: the queue can only Put
	ClientID      string

	// CreateTopic creates Topic with Partitions and ReplicationFactor if it
	// does not exist yet. ReplicationFactor -1 uses the broker default.
	CreateTopic       bool
	Partitions        int32
	ReplicationFactor int16

	SASLUsername  string
	SASLPassword  string
	SASLMechanism string

	Codec       codec.Type
	PollTimeout time.Duration
}

// Validate checks if the configuration is usable.
func (c *KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if c.Partitions < 0 {
		return fmt.Errorf("partitions must not be negative")
	}
	if c.SASLUsername != "" {
		if _, err := parseSASLMechanism(c.SASLMechanism, c.SASLUsername, c.SASLPassword); err != nil {
			return err
		}
	}
	if _, err := codec.GetCodec(c.Codec); err != nil {
		return err
	}
	return nil
}

// SetBrokersFromString parses a comma-separated list of brokers.
func (c *KafkaConfig) SetBrokersFromString(brokers string) {
	c.Brokers = ParseBrokers(brokers)
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseSASLMechanism(mechanism, username, password string) (kgo.Opt, error) {
	switch mechanism {
	case "PLAIN":
		return kgo.SASL(plain.Auth{User: username, Pass: password}.AsMechanism()), nil
	case "SCRAM-SHA-256":
		return kgo.SASL(scram.Auth{User: username, Pass: password}.AsSha256Mechanism()), nil
	case "SCRAM-SHA-512":
		return kgo.SASL(scram.Auth{User: username, Pass: password}.AsSha512Mechanism()), nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %q (supported: PLAIN, SCRAM-SHA-256, SCRAM-SHA-512)", mechanism)
	}
}

func (c *KafkaConfig) clientOpts() ([]kgo.Opt, error) {
	clientID := c.ClientID
	if clientID == "" {
		clientID = "phredmean"
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(c.Brokers...),
		kgo.DefaultProduceTopic(c.Topic),
		kgo.RecordPartitioner(spreadPartitioner()),
		kgo.ClientID(clientID),
		kgo.DialTimeout(10 * time.Second),
		kgo.FetchMinBytes(1),
		kgo.FetchMaxWait(c.pollTimeout()),
	}
	if c.ConsumerGroup != "" {
		opts = append(opts,
			kgo.ConsumerGroup(c.ConsumerGroup),
			kgo.ConsumeTopics(c.Topic),
			kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		)
	}
	if c.SASLUsername != "" && c.SASLPassword != "" {
		o, err := parseSASLMechanism(c.SASLMechanism, c.SASLUsername, c.SASLPassword)
		if err != nil {
			return nil, fmt.Errorf("invalid SASL mechanism: %w", err)
		}
		opts = append(opts, o)
	}
	return opts, nil
}

func (c *KafkaConfig) pollTimeout() time.Duration {
	if c.PollTimeout > 0 {
		return c.PollTimeout
	}
	return defaultKafkaPollTimeout
}

// spreadPartitioner sends each task to the partition its ID hashes to, so
// the tasks of one run reach every consumer in the group. Unkeyed records
// go round robin and stop copies to the partition they name.
func spreadPartitioner() kgo.Partitioner {
	return kgo.BasicConsistentPartitioner(func(string) func(*kgo.Record, int) int {
		var next atomic.Uint64
		return func(r *kgo.Record, n int) int { return partitionFor(r, n, &next) }
	})
}

func partitionFor(r *kgo.Record, n int, next *atomic.Uint64) int {
	for _, h := range r.Headers {
		if h.Key != fanoutHeader {
			continue
		}
		if p, err := strconv.Atoi(string(h.Value)); err == nil && p >= 0 {
			return p % n
		}
	}
	if len(r.Key) > 0 {
		return int(xxhash.Sum64(r.Key) % uint64(n))
	}
	return int((next.Add(1) - 1) % uint64(n))
}

// recordKey keys tasks by their ID; everything else is unkeyed.
func recordKey(m Message) []byte {
	if m.Task != nil && m.Task.ID != "" {
		return []byte(m.Task.ID)
	}
	return nil
}

// Kafka is a Queue backed by one topic. Fetched records are buffered and
// handed out one TryGet at a time.
//
// A stop is written once to every partition, since each group member only
// reads its own partitions. Putting back a stop that was read from the
// topic is a no-op: its copies are already everywhere.
type Kafka struct {
	client *kgo.Client
	cfg    KafkaConfig
	logger log.Logger

	mu      sync.Mutex
	pending []Message
	stops   map[string]struct{} // runs whose stop is already fanned out
}

var _ Queue = (*Kafka)(nil)

// NewKafka connects to the cluster and, if asked, creates the topic.
func NewKafka(ctx context.Context, cfg KafkaConfig, logger log.Logger) (*Kafka, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	opts, err := cfg.clientOpts()
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	k := &Kafka{
		client: client,
		cfg:    cfg,
		logger: log.With(logger, "topic", cfg.Topic),
		stops:  make(map[string]struct{}),
	}
	if cfg.CreateTopic {
		if err := k.ensureTopic(ctx); err != nil {
			client.Close()
			return nil, err
		}
	}
	return k, nil
}

func (k *Kafka) ensureTopic(ctx context.Context) error {
	partitions := k.cfg.Partitions
	if partitions == 0 {
		partitions = defaultKafkaPartitions
	}
	rf := k.cfg.ReplicationFactor
	if rf == 0 {
		rf = -1
	}
	adm := kadm.NewClient(k.client)
	resps, err := adm.CreateTopics(ctx, partitions, rf, nil, k.cfg.Topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", k.cfg.Topic, err)
	}
	for _, r := range resps {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	level.Debug(k.logger).Log("msg", "topic ready", "partitions", partitions)
	return nil
}

func (k *Kafka) Put(ctx context.Context, m Message) error {
	payload, err := encode(k.cfg.Codec, m)
	if err != nil {
		return err
	}
	recs := []*kgo.Record{{Topic: k.cfg.Topic, Key: recordKey(m), Value: payload}}
	if m.Kind == KindStop {
		if recs, err = k.stopRecords(ctx, m.RunID, payload); err != nil || len(recs) == 0 {
			return err
		}
	}
	if err := k.client.ProduceSync(ctx, recs...).FirstErr(); err != nil {
		if errors.Is(err, kgo.ErrClientClosed) {
			return ErrClosed
		}
		return fmt.Errorf("produce to %s: %w", k.cfg.Topic, err)
	}
	return nil
}

// stopRecords returns one stop copy per partition, or none if this run's
// stop was already fanned out.
func (k *Kafka) stopRecords(ctx context.Context, runID string, payload []byte) ([]*kgo.Record, error) {
	k.mu.Lock()
	_, done := k.stops[runID]
	k.stops[runID] = struct{}{}
	k.mu.Unlock()
	if done {
		return nil, nil
	}

	topics, err := kadm.NewClient(k.client).ListTopics(ctx, k.cfg.Topic)
	if err != nil {
		return nil, fmt.Errorf("list partitions of %s: %w", k.cfg.Topic, err)
	}
	td, ok := topics[k.cfg.Topic]
	if !ok {
		return nil, fmt.Errorf("list partitions of %s: topic not found", k.cfg.Topic)
	}
	if td.Err != nil {
		return nil, fmt.Errorf("list partitions of %s: %w", k.cfg.Topic, td.Err)
	}
	return fanout(k.cfg.Topic, payload, len(td.Partitions)), nil
}

func fanout(topic string, payload []byte, partitions int) []*kgo.Record {
	if partitions < 1 {
		partitions = 1
	}
	recs := make([]*kgo.Record, partitions)
	for i := range recs {
		recs[i] = &kgo.Record{
			Topic:   topic,
			Value:   payload,
			Headers: []kgo.RecordHeader{{Key: fanoutHeader, Value: []byte(strconv.Itoa(i))}},
		}
	}
	return recs
}

// TryGet waits at most PollTimeout for records.
func (k *Kafka) TryGet(ctx context.Context) (Message, error) {
	if k.cfg.ConsumerGroup == "" {
		return Message{}, ErrProducerOnly
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.pending) == 0 {
		if err := k.fetch(ctx); err != nil {
			return Message{}, err
		}
	}
	if len(k.pending) == 0 {
		return Message{}, ErrEmpty
	}
	m := k.pending[0]
	k.pending[0] = Message{}
	k.pending = k.pending[1:]
	if m.Kind == KindStop {
		k.stops[m.RunID] = struct{}{}
	}
	return m, nil
}

func (k *Kafka) fetch(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, k.cfg.pollTimeout())
	fetches := k.client.PollRecords(pctx, kafkaMaxPollRecords)
	cancel()

	if fetches.IsClientClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var errs []error
	fetches.EachError(func(topic string, partition int32, err error) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return
		}
		errs = append(errs, fmt.Errorf("fetch %s[%d]: %w", topic, partition, err))
	})
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	fetches.EachRecord(func(r *kgo.Record) {
		var m Message
		if err := decode(r.Value, &m); err != nil {
			level.Warn(k.logger).Log("msg", "dropping undecodable record",
				"partition", r.Partition, "offset", r.Offset, "err", err)
			return
		}
		k.pending = append(k.pending, m)
	})
	return nil
}

// Close flushes nothing; Put is synchronous.
func (k *Kafka) Close() error {
	k.client.Close()
	return nil
}
