// Package checkpoint persists finished partials so an interrupted run can
// resume without reprocessing work items.
package checkpoint

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	"phredmean/internal/codec"
	"phredmean/internal/metrics"
	"phredmean/internal/plan"
	"phredmean/internal/stats"
	"phredmean/pkg/api"
)

var partialsBucket = []byte("partials")

// record is the stored value. The item is kept so a hash collision can be
// told apart from a hit.
type record struct {
	Item    api.WorkItemV1 `json:"item"`
	ModTime int64          `json:"mod_time"` // unix nanoseconds
	Partial api.PartialV1  `json:"partial"`
}

// Store maps work items to their partials in a bbolt file. Values are
// zstd-compressed JSON. A work item is only found again if its source still
// has the size it had when planned and the modification time it had when
// the partial was computed.
type Store struct {
	db    *bolt.DB
	codec codec.Codec
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(partialsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init checkpoint %s: %w", path, err)
	}
	return &Store{db: db, codec: codec.NewZstdCompressor()}, nil
}

func key(item plan.WorkItem) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], item.Key())
	return k[:]
}

// Get returns the stored partial for item, computed from the source as it
// was at modTime.
func (s *Store) Get(item plan.WorkItem, modTime time.Time) (stats.Partial, bool, error) {
	var (
		rec   record
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(partialsBucket).Get(key(item))
		if v == nil {
			return nil
		}
		raw, err := s.codec.Decompress(v)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		stored := plan.FromAPI(rec.Item)
		stored.Index = item.Index
		found = stored == item && rec.ModTime == modTime.UnixNano()
		return nil
	})
	if err != nil || !found {
		return stats.Partial{}, false, err
	}
	p, err := stats.PartialFromAPI(rec.Partial)
	if err != nil {
		return stats.Partial{}, false, fmt.Errorf("checkpoint entry for %s: %w", item, err)
	}
	return p, true, nil
}

// Put stores p as the result of item read from the source as it was at
// modTime.
func (s *Store) Put(item plan.WorkItem, modTime time.Time, p stats.Partial) error {
	raw, err := json.Marshal(record{Item: item.ToAPI(), ModTime: modTime.UnixNano(), Partial: p.ToAPI()})
	if err != nil {
		return err
	}
	val, err := s.codec.Compress(raw)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(partialsBucket).Put(key(item), val)
	})
}

// Len is the number of stored partials.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(partialsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) Close() error { return s.db.Close() }

type processor interface {
	Process(ctx context.Context, item plan.WorkItem) (stats.Partial, error)
}

// Processor answers from the store when it can and records every partial
// computed by Next. Items whose source cannot be stat'ed go straight to Next.
type Processor struct {
	Store   *Store
	Next    processor
	Metrics *metrics.Metrics
}

func (p *Processor) Process(ctx context.Context, item plan.WorkItem) (stats.Partial, error) {
	// Stat before computing so an edit made meanwhile shows up next run.
	fi, err := os.Stat(item.Source)
	if err != nil {
		return p.Next.Process(ctx, item)
	}
	modTime := fi.ModTime()
	part, ok, err := p.Store.Get(item, modTime)
	if err != nil {
		return stats.Partial{}, err
	}
	if ok {
		p.Metrics.ObserveChunk(metrics.ResultSkipped, 0, 0)
		return part, nil
	}
	part, err = p.Next.Process(ctx, item)
	if err != nil {
		return part, err
	}
	if err := p.Store.Put(item, modTime, part); err != nil {
		return stats.Partial{}, errors.Join(fmt.Errorf("checkpoint %s", item), err)
	}
	return part, nil
}
