package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/memipc/internal/codec"
	"github.com/GriffinCanCode/memipc/internal/config"
	"github.com/GriffinCanCode/memipc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/memipc/internal/logging"
	"github.com/GriffinCanCode/memipc/internal/mq"
	"github.com/GriffinCanCode/memipc/internal/shared/id"
	"github.com/GriffinCanCode/memipc/internal/shm"
	"github.com/GriffinCanCode/memipc/internal/table"
)

const component = "server"

// wakeupMeta marks the Noop that Shutdown sends to unblock the consumer. A
// wakeup left behind by an earlier instance is skipped, never applied.
var wakeupMeta = []byte("memipc:wakeup")

func wakeupItem() codec.ClientItem {
	return codec.ClientItem{Action: codec.ActionNoop, Meta: wakeupMeta}
}

func isWakeup(item codec.ClientItem) bool {
	return item.Action == codec.ActionNoop && item.TableID == "" && bytes.Equal(item.Meta, wakeupMeta)
}

var (
	ErrAlreadyRunning = errors.New("server is already running")
	ErrStopped        = errors.New("server has been shut down")
)

// ClientReader yields decoded client records.
type ClientReader interface {
	ReadClientItem() (codec.ClientItem, error)
	Close() error
}

// ClientWriter sends client records.
type ClientWriter interface {
	WriteClientItem(codec.ClientItem) error
	Close() error
}

// ServerWriter sends replies.
type ServerWriter interface {
	WriteServerItem(codec.ServerItem) error
	Close() error
}

// depthReporter is implemented by channels that can report their backlog.
type depthReporter interface {
	Attr() (mq.Attr, error)
}

// Channels are the queues a server talks through. Wakeup must feed
// Requests; Replies is optional.
type Channels struct {
	Requests ClientReader
	Wakeup   ClientWriter
	Replies  ServerWriter
}

// Server consumes client records into a shadow of the tables.
type Server struct {
	cfg      *config.Config
	instance id.InstanceID
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	channels Channels
	shadow   *Shadow
	journal  *Journal
	router   *gin.Engine
	http     *http.Server
	started  time.Time

	running      atomic.Bool
	stopping     atomic.Bool
	done         chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error
}

// New opens the queues and journal named by cfg and builds a server on them.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	metrics := monitoring.NewMetrics()

	opts := []table.Option{
		table.WithCapacity(cfg.Queue.MaxItemSize, cfg.Queue.MaxQueueSize),
		table.WithPerm(os.FileMode(cfg.Queue.Perm)),
		table.WithLogger(logger),
		table.WithMetrics(metrics),
	}

	var closers []func() error
	fail := func(err error) (*Server, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	requests, err := table.NewReader(cfg.Queue.Name, opts...)
	if err != nil {
		return fail(fmt.Errorf("open request queue: %w", err))
	}
	closers = append(closers, requests.Close)

	wakeup, err := table.NewWriter(cfg.Queue.Name, opts...)
	if err != nil {
		return fail(fmt.Errorf("open wakeup writer: %w", err))
	}
	closers = append(closers, wakeup.Close)

	ch := Channels{Requests: requests, Wakeup: wakeup}
	if cfg.Queue.ReplyName != "" {
		replies, err := table.NewWriter(cfg.Queue.ReplyName, opts...)
		if err != nil {
			return fail(fmt.Errorf("open reply queue: %w", err))
		}
		closers = append(closers, replies.Close)
		ch.Replies = replies
	}

	var journal *Journal
	if cfg.SharedMemory.Name != "" {
		journal, err = OpenJournal(cfg.SharedMemory.Name, cfg.SharedMemory.Size, logger, shm.WithDir(cfg.SharedMemory.Dir))
		if err != nil {
			return fail(fmt.Errorf("open journal: %w", err))
		}
		closers = append(closers, journal.Close)
	}

	s, err := NewWithChannels(cfg, ch, journal, logger, metrics)
	if err != nil {
		return fail(err)
	}
	return s, nil
}

// NewWithChannels builds a server on already opened channels. journal and
// metrics may be nil.
func NewWithChannels(cfg *config.Config, ch Channels, journal *Journal, logger *logging.Logger, metrics *monitoring.Metrics) (*Server, error) {
	if ch.Requests == nil || ch.Wakeup == nil {
		return nil, errors.New("server requires a request reader and a wakeup writer")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	instance := id.NewInstanceID()

	s := &Server{
		cfg:      cfg,
		instance: instance,
		logger:   logger.With(zap.Stringer("instance", instance)),
		metrics:  metrics,
		channels: ch,
		shadow:   NewShadow(),
		journal:  journal,
		started:  time.Now(),
		done:     make(chan struct{}),
	}

	if journal != nil {
		n, err := journal.Replay(func(item codec.ClientItem) error {
			s.shadow.Apply(item)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("replay journal: %w", err)
		}
		for name, entries := range s.shadow.Tables() {
			metrics.SetShadowEntries(name, entries)
		}
		s.logger.Info("Journal replayed",
			zap.String("path", journal.Path()),
			zap.Int("records", n),
		)
	}

	s.router = s.setupRouter()
	if cfg.Metrics.Enabled {
		s.http = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           s.router,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	s.logger.Info("Server initialized",
		zap.String("queue", cfg.Queue.Name),
		zap.String("reply_queue", cfg.Queue.ReplyName),
		zap.Bool("journal", journal != nil),
		zap.Bool("metrics", cfg.Metrics.Enabled),
	)
	return s, nil
}

// Instance returns the identifier of this server in logs and stats.
func (s *Server) Instance() id.InstanceID {
	return s.instance
}

// Shadow returns the server's shadow tables.
func (s *Server) Shadow() *Shadow {
	return s.shadow
}

// Handler returns the HTTP handler serving metrics and stats.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's metrics collector.
func (s *Server) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Run consumes records until Shutdown is called or the request channel
// fails. It starts the HTTP endpoint first when metrics are enabled.
func (s *Server) Run() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.done)
	if s.stopping.Load() {
		return ErrStopped
	}

	if s.http != nil {
		go func() {
			s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
			if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("HTTP server failed", zap.Error(err))
			}
		}()
	}

	s.logger.Info("Consuming records", zap.String("queue", s.cfg.Queue.Name))
	for {
		item, err := s.channels.Requests.ReadClientItem()
		if err != nil {
			if codec.IsDecodeError(err) {
				s.logger.Warn("Dropping malformed record", zap.Error(err))
				continue
			}
			if errors.Is(err, mq.ErrClosed) || s.stopping.Load() {
				return nil
			}
			s.logger.Error("Request queue failed", zap.Error(err))
			return fmt.Errorf("read request: %w", err)
		}
		if isWakeup(item) {
			if s.stopping.Load() {
				return nil
			}
			s.logger.Debug("Skipping stale wakeup")
			continue
		}
		// Records already taken off the queue are applied even while
		// stopping; the loop ends at the wakeup.
		s.handle(item)
	}
}

func (s *Server) handle(item codec.ClientItem) {
	timer := monitoring.NewTimer(s.metrics, component, "apply")
	reply := s.shadow.Apply(item)

	var err error
	if s.journal != nil && mutates(item.Action) {
		if err = s.journal.Append(item); err != nil {
			s.logger.Warn("Journal append failed",
				zap.String("table", item.TableID),
				zap.Error(err),
			)
		}
	}
	timer.Stop(err)

	entries := s.shadow.Len(item.TableID)
	s.metrics.RecordApplied(item.Action)
	s.metrics.SetShadowEntries(item.TableID, entries)
	s.sampleDepth()

	s.logger.Debug("Applied record",
		zap.String("table", item.TableID),
		zap.Stringer("action", item.Action),
		zap.ByteString("key", item.Key),
		zap.Uint16("priority", item.Priority),
		zap.Int("payload_bytes", len(item.Payload)),
		zap.Int("entries", entries),
	)

	if s.channels.Replies == nil {
		return
	}
	if err := s.channels.Replies.WriteServerItem(reply); err != nil {
		s.logger.Warn("Failed to send reply",
			zap.String("table", item.TableID),
			zap.Error(err),
		)
	}
}

func (s *Server) sampleDepth() {
	r, ok := s.channels.Requests.(depthReporter)
	if !ok || s.metrics == nil {
		return
	}
	if attr, err := r.Attr(); err == nil {
		s.metrics.SetQueueDepth(s.cfg.Queue.Name, attr.CurMsgs)
	}
}

func mutates(a codec.Action) bool {
	return a == codec.ActionAdd || a == codec.ActionDelete
}

// Shutdown stops the consumer, waits for it to return and closes every
// channel. Queues are left in the kernel namespace. Only the first call does
// any work; later calls return its result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.stopping.Store(true)

	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if s.running.Load() {
		select {
		case <-s.done:
		default:
			// The consumer drains up to the wakeup and then returns.
			if err := s.channels.Wakeup.WriteClientItem(wakeupItem()); err != nil {
				s.logger.Error("Failed to wake consumer", zap.Error(err))
				errs = append(errs, fmt.Errorf("wake consumer: %w", err))
			}
		}
		select {
		case <-s.done:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}
	consumerDone := !s.running.Load()
	select {
	case <-s.done:
		consumerDone = true
	default:
	}

	closeLogged := func(what string, fn func() error) {
		if err := fn(); err != nil {
			s.logger.Error("Failed to close "+what, zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", what, err))
		}
	}
	if consumerDone {
		closeLogged("request queue", s.channels.Requests.Close)
	} else {
		// Close waits for the blocked read; leave the descriptor to process exit.
		s.logger.Warn("Consumer still reading, request queue left open")
	}
	closeLogged("wakeup writer", s.channels.Wakeup.Close)
	if s.channels.Replies != nil {
		closeLogged("reply queue", s.channels.Replies.Close)
	}
	if s.journal != nil {
		closeLogged("journal", s.journal.Close)
	}

	s.logger.Info("Server stopped", zap.Duration("uptime", time.Since(s.started)))
	_ = s.logger.Sync()
	return errors.Join(errs...)
}
