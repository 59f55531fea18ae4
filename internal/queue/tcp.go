package queue

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"phredmean/internal/codec"
)

// Queue names hosted by the controller's broker.
const (
	JobsQueue    = "jobs"
	ResultsQueue = "results"
)

const (
	maxFrameSize     = 64 << 20
	handshakeTimeout = 10 * time.Second
)

type hello struct {
	Key    string `json:"key"`
	Codec  string `json:"codec"`
	Worker string `json:"worker,omitempty"`
}

const (
	opPut = "put"
	opGet = "get"
)

type request struct {
	Op    string   `json:"op"`
	Queue string   `json:"queue"`
	Msg   *Message `json:"msg,omitempty"`
}

const (
	statusOK     = "ok"
	statusEmpty  = "empty"
	statusClosed = "closed"
	statusAuth   = "auth"
	statusError  = "error"
)

type response struct {
	Status string   `json:"status"`
	Msg    *Message `json:"msg,omitempty"`
	Err    string   `json:"err,omitempty"`
}

// writeFrame sends one length-prefixed, compressed JSON frame.
func writeFrame(w io.Writer, t codec.Type, v any) error {
	payload, err := encode(t, v)
	if err != nil {
		return err
	}
	if len(payload) > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit %d", len(payload), maxFrameSize)
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	_, err = w.Write(buf)
	return err
}

func readFrame(r io.Reader, v any) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 || n > maxFrameSize {
		return fmt.Errorf("bad frame length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	return decode(buf, v)
}

// Server hosts named in-memory queues for remote workers. The controller
// uses the same queues directly through Queue.
type Server struct {
	authKey []byte
	logger  log.Logger

	mu     sync.Mutex
	queues map[string]*Memory
	conns  map[net.Conn]struct{}
}

func NewServer(authKey string, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Server{
		authKey: []byte(authKey),
		logger:  logger,
		queues:  make(map[string]*Memory),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Queue returns the named queue, creating it on first use.
func (s *Server) Queue(name string) *Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[name]
	if !ok {
		q = NewMemory()
		s.queues[name] = q
	}
	return q
}

// Serve accepts connections on ln until ctx is done, then closes ln and
// every open connection. It returns nil on cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	var wg sync.WaitGroup
	defer func() {
		s.closeConns()
		wg.Wait()
	}()

	level.Info(s.logger).Log("msg", "broker listening", "addr", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				_ = conn.Close()
			}()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	logger := log.With(s.logger, "remote", conn.RemoteAddr())
	br := bufio.NewReader(conn)

	var h hello
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	if err := readFrame(br, &h); err != nil {
		level.Debug(logger).Log("msg", "bad handshake", "err", err)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	if subtle.ConstantTimeCompare([]byte(h.Key), s.authKey) != 1 {
		level.Warn(logger).Log("msg", "rejected connection", "err", ErrAuth)
		_ = writeFrame(conn, codec.None, response{Status: statusAuth, Err: ErrAuth.Error()})
		return
	}
	ct, err := codec.ParseType(h.Codec)
	if err != nil {
		_ = writeFrame(conn, codec.None, response{Status: statusError, Err: err.Error()})
		return
	}
	if err := writeFrame(conn, codec.None, response{Status: statusOK}); err != nil {
		return
	}
	level.Info(logger).Log("msg", "worker connected", "worker", h.Worker, "codec", ct)

	for {
		var req request
		if err := readFrame(br, &req); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				level.Debug(logger).Log("msg", "connection dropped", "err", err)
			}
			return
		}
		if err := writeFrame(conn, ct, s.handle(req)); err != nil {
			return
		}
	}
}

func (s *Server) handle(req request) response {
	q := s.Queue(req.Queue)
	ctx := context.Background()
	switch req.Op {
	case opPut:
		if req.Msg == nil {
			return response{Status: statusError, Err: "put without message"}
		}
		if err := q.Put(ctx, *req.Msg); err != nil {
			return errorResponse(err)
		}
		return response{Status: statusOK}
	case opGet:
		m, err := q.TryGet(ctx)
		if err != nil {
			return errorResponse(err)
		}
		return response{Status: statusOK, Msg: &m}
	default:
		return response{Status: statusError, Err: fmt.Sprintf("unknown op %q", req.Op)}
	}
}

func errorResponse(err error) response {
	switch {
	case errors.Is(err, ErrEmpty):
		return response{Status: statusEmpty}
	case errors.Is(err, ErrClosed):
		return response{Status: statusClosed}
	default:
		return response{Status: statusError, Err: err.Error()}
	}
}

// DialOptions configure a broker connection.
type DialOptions struct {
	AuthKey string
	Codec   codec.Type
	Worker  string // shown in the broker's log
}

// Client is one connection to a broker. Requests from all of its queues
// are serialized over that connection.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	br     *bufio.Reader
	codec  codec.Type
	broken bool
}

// Dial connects to the broker at addr and authenticates.
func Dial(ctx context.Context, addr string, opts DialOptions) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn, br: bufio.NewReader(conn), codec: opts.Codec}

	h := hello{Key: opts.AuthKey, Codec: opts.Codec.String(), Worker: opts.Worker}
	var resp response
	err = c.exchange(ctx, codec.None, h, &resp)
	if err == nil {
		switch resp.Status {
		case statusOK:
			return c, nil
		case statusAuth:
			err = ErrAuth
		default:
			err = errors.New(resp.Err)
		}
	}
	_ = conn.Close()
	return nil, fmt.Errorf("connect %s: %w", addr, err)
}

// Queue returns a handle on the broker's named queue. Closing the handle
// does not close the remote queue.
func (c *Client) Queue(name string) Queue {
	return &remoteQueue{c: c, name: name}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broken = true
	return c.conn.Close()
}

func (c *Client) exchange(ctx context.Context, t codec.Type, req any, resp *response) error {
	if d, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(d)
	} else {
		_ = c.conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := writeFrame(c.conn, t, req); err != nil {
		return err
	}
	return readFrame(c.br, resp)
}

func (c *Client) roundTrip(ctx context.Context, req request) (response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return response{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return response{}, err
	}
	var resp response
	if err := c.exchange(ctx, c.codec, req, &resp); err != nil {
		// A half-written or half-read frame leaves the stream unusable.
		c.broken = true
		_ = c.conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return response{}, ctxErr
		}
		return response{}, fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return resp, nil
}

type remoteQueue struct {
	c    *Client
	name string
}

func (q *remoteQueue) Put(ctx context.Context, m Message) error {
	resp, err := q.c.roundTrip(ctx, request{Op: opPut, Queue: q.name, Msg: &m})
	if err != nil {
		return err
	}
	return resp.err()
}

func (q *remoteQueue) TryGet(ctx context.Context) (Message, error) {
	resp, err := q.c.roundTrip(ctx, request{Op: opGet, Queue: q.name})
	if err != nil {
		return Message{}, err
	}
	if err := resp.err(); err != nil {
		return Message{}, err
	}
	if resp.Msg == nil {
		return Message{}, errors.New("queue: broker sent no message")
	}
	return *resp.Msg, nil
}

func (q *remoteQueue) Close() error { return nil }

func (r response) err() error {
	switch r.Status {
	case statusOK:
		return nil
	case statusEmpty:
		return ErrEmpty
	case statusClosed:
		return ErrClosed
	case statusAuth:
		return ErrAuth
	default:
		return fmt.Errorf("broker: %s", r.Err)
	}
}
