package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/23skdu/longbow-rmsnorm/internal/device"

// DefaultQueueDepth bounds how many launches may be enqueued before Launch blocks.
const DefaultQueueDepth = 64

type launch struct {
	ctx      context.Context
	name     string
	cfg      LaunchConfig
	fn       Kernel
	enqueued time.Time
}

// Stream is an ordered launch queue. Launches run one at a time in enqueue
// order, so work issued later on the same stream observes earlier results.
// Independent streams run concurrently and share nothing but the Device.
//
// Launch returns as soon as the work is queued. Failures are sticky until the
// next Synchronize, which reports the first one.
type Stream struct {
	id      uuid.UUID
	dev     *Device
	scratch *ScratchPool
	queue   chan *launch
	done    chan struct{}

	sendMu sync.RWMutex
	closed bool

	mu      sync.Mutex
	cond    *sync.Cond
	pending int
	err     error
}

// NewStream starts a stream on dev with the given queue depth (0 for default).
func NewStream(dev *Device, queueDepth int) *Stream {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	s := &Stream{
		id:      uuid.New(),
		dev:     dev,
		scratch: NewScratchPool(),
		queue:   make(chan *launch, queueDepth),
		done:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	log.Debug().Str("stream", s.id.String()).Str("device", dev.Name).Int("workers", dev.Workers).Msg("Stream started")
	return s
}

// ID identifies the stream in logs and traces.
func (s *Stream) ID() uuid.UUID {
	return s.id
}

// Device returns the device the stream launches on.
func (s *Stream) Device() *Device {
	return s.dev
}

// Launch enqueues fn over cfg. An invalid configuration is rejected before
// anything is queued. ctx only carries trace context; a launch cannot be
// cancelled once queued.
func (s *Stream) Launch(ctx context.Context, name string, cfg LaunchConfig, fn Kernel) error {
	if err := cfg.Validate(s.dev); err != nil {
		return &LaunchError{Kernel: name, Block: -1, Cause: err}
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return ErrStreamClosed
	}

	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
	inflightLaunches.Inc()

	s.queue <- &launch{ctx: ctx, name: name, cfg: cfg, fn: fn, enqueued: time.Now()}
	return nil
}

// Synchronize blocks until every launch enqueued so far has completed and
// returns the first failure since the previous Synchronize, if any.
func (s *Stream) Synchronize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending > 0 {
		s.cond.Wait()
	}
	err := s.err
	s.err = nil
	return err
}

// Close waits for queued work, stops the stream and returns any unreported failure.
func (s *Stream) Close() error {
	s.sendMu.Lock()
	if s.closed {
		s.sendMu.Unlock()
		return ErrStreamClosed
	}
	s.closed = true
	close(s.queue)
	s.sendMu.Unlock()

	<-s.done
	log.Debug().Str("stream", s.id.String()).Msg("Stream closed")
	return s.Synchronize()
}

func (s *Stream) run() {
	defer close(s.done)
	for l := range s.queue {
		err := s.execute(l)

		s.mu.Lock()
		s.pending--
		if err != nil && s.err == nil {
			s.err = err
		}
		s.cond.Broadcast()
		s.mu.Unlock()
		inflightLaunches.Dec()
	}
}

func (s *Stream) execute(l *launch) error {
	start := time.Now()
	queueWait.Observe(start.Sub(l.enqueued).Seconds())

	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := otel.Tracer(tracerName).Start(ctx, l.name,
		trace.WithAttributes(
			attribute.String("stream.id", s.id.String()),
			attribute.Int("launch.grid", l.cfg.Grid),
			attribute.Int("launch.block", l.cfg.Block),
		))
	defer span.End()

	err := s.runGrid(l)

	kernelDuration.WithLabelValues(l.name).Observe(time.Since(start).Seconds())
	if err != nil {
		launchesTotal.WithLabelValues(l.name, "failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Str("stream", s.id.String()).Str("kernel", l.name).Msg("Kernel launch failed")
		return err
	}
	launchesTotal.WithLabelValues(l.name, "ok").Inc()
	return nil
}

// runGrid splits the grid into contiguous block ranges, one per worker.
func (s *Stream) runGrid(l *launch) error {
	grid := l.cfg.Grid
	workers := s.dev.Workers
	if grid < workers {
		workers = grid
	}
	blocksPerWorker := (grid + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * blocksPerWorker
		if start >= grid {
			break
		}
		end := min(start+blocksPerWorker, grid)
		g.Go(func() error {
			return s.runBlocks(l, start, end)
		})
	}
	return g.Wait()
}

func (s *Stream) runBlocks(l *launch, start, end int) (err error) {
	b := newBlock(l.cfg.Block, s.dev.WarpSize, s.scratch)
	defer b.release()
	defer func() {
		if r := recover(); r != nil {
			err = &LaunchError{Kernel: l.name, Block: b.Idx, Cause: r}
		}
	}()
	for i := start; i < end; i++ {
		b.Idx = i
		l.fn(b)
	}
	return nil
}

func (s *Stream) String() string {
	return fmt.Sprintf("stream %s on %s", s.id, s.dev.Name)
}
