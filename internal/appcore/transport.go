package appcore

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"phredmean/internal/codec"
	"phredmean/internal/config"
	"phredmean/internal/logging"
	"phredmean/internal/queue"
)

// Kafka consumer groups. Workers share one group so each task is read once.
const (
	WorkerGroup     = "phredmean-workers"
	ControllerGroup = "phredmean-controller"
)

// Transport says where jobs and results travel: Kafka when brokers are
// configured, otherwise the TCP broker hosted by the controller.
type Transport struct {
	Listen  string
	Connect string
	AuthKey string
	Codec   codec.Type
	Kafka   config.Kafka
	Logger  log.Logger
}

// Endpoints is one side's view of the jobs and results queues.
type Endpoints struct {
	Jobs    queue.Queue
	Results queue.Queue
	// Addr is the address the TCP broker listens on, if hosted.
	Addr    string
	release func() error
}

// Close releases the queues and, for a hosted broker, stops serving.
func (e *Endpoints) Close() error {
	if e.release == nil {
		return nil
	}
	return e.release()
}

// Controller opens the controller side.
func (t Transport) Controller(ctx context.Context) (*Endpoints, error) {
	if t.Kafka.Enabled() {
		return t.kafka(ctx, "", ControllerGroup, "phredmean-controller")
	}
	return t.host(ctx)
}

// Worker opens the worker side for the worker called name.
func (t Transport) Worker(ctx context.Context, name string) (*Endpoints, error) {
	if t.Kafka.Enabled() {
		return t.kafka(ctx, WorkerGroup, "", name)
	}
	c, err := queue.Dial(ctx, t.Connect, queue.DialOptions{AuthKey: t.AuthKey, Codec: t.Codec, Worker: name})
	if err != nil {
		return nil, err
	}
	return &Endpoints{
		Jobs:    c.Queue(queue.JobsQueue),
		Results: c.Queue(queue.ResultsQueue),
		release: c.Close,
	}, nil
}

func (t Transport) host(ctx context.Context) (*Endpoints, error) {
	ln, err := net.Listen("tcp", t.Listen)
	if err != nil {
		return nil, Usage(fmt.Errorf("listen %s: %w", t.Listen, err))
	}
	srv := queue.NewServer(t.AuthKey, t.Logger)
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan error, 1)
	go func() { done <- srv.Serve(sctx, ln) }()

	return &Endpoints{
		Jobs:    srv.Queue(queue.JobsQueue),
		Results: srv.Queue(queue.ResultsQueue),
		Addr:    ln.Addr().String(),
		release: func() error {
			cancel()
			return <-done
		},
	}, nil
}

// kafka opens both topics; an empty group makes that side producer-only.
func (t Transport) kafka(ctx context.Context, jobsGroup, resultsGroup, clientID string) (*Endpoints, error) {
	open := func(topic, group string) (*queue.Kafka, error) {
		return queue.NewKafka(ctx, queue.KafkaConfig{
			Brokers:       t.Kafka.Brokers,
			Topic:         topic,
			ConsumerGroup: group,
			ClientID:      clientID,
			CreateTopic:   t.Kafka.CreateTopics,
			Partitions:    t.Kafka.Partitions,
			SASLUsername:  t.Kafka.SASLUsername,
			SASLPassword:  t.Kafka.SASLPassword,
			SASLMechanism: t.Kafka.SASLMechanism,
			Codec:         t.Codec,
		}, t.Logger)
	}
	jobs, err := open(t.Kafka.JobsTopic, jobsGroup)
	if err != nil {
		return nil, err
	}
	results, err := open(t.Kafka.ResultsTopic, resultsGroup)
	if err != nil {
		jobs.Close()
		return nil, err
	}
	level.Debug(logging.OrNop(t.Logger)).Log("msg", "kafka queues ready",
		"jobs", t.Kafka.JobsTopic, "results", t.Kafka.ResultsTopic)
	return &Endpoints{
		Jobs:    jobs,
		Results: results,
		release: func() error {
			return errors.Join(jobs.Close(), results.Close())
		},
	}, nil
}
