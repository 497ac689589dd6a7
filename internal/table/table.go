package table

import (
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/memipc/internal/codec"
	"github.com/GriffinCanCode/memipc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/memipc/internal/logging"
	"github.com/GriffinCanCode/memipc/internal/mq"
	"github.com/GriffinCanCode/memipc/internal/shared/id"
)

const component = "table"

// Record labels used for decode error metrics.
const (
	RecordClientItem = "client_item"
	RecordServerItem = "server_item"
)

// Option configures a TableInterface.
type Option func(*options)

type options struct {
	maxItemSize  int
	maxQueueSize int
	perm         os.FileMode
	logger       *logging.Logger
	metrics      *monitoring.Metrics
}

// WithCapacity sets the item size and queue depth used when the queue is
// created. Attaching to an existing queue keeps its capacity.
func WithCapacity(maxItemSize, maxQueueSize int) Option {
	return func(o *options) {
		o.maxItemSize = maxItemSize
		o.maxQueueSize = maxQueueSize
	}
}

// WithPerm sets the permission bits of a newly created queue.
func WithPerm(perm os.FileMode) Option {
	return func(o *options) { o.perm = perm }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics collector. A nil collector disables metrics.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// TableInterface is a mutex-guarded queue handle that speaks codec records.
type TableInterface struct {
	mu      sync.Mutex
	queue   *mq.Queue
	logger  *logging.Logger
	metrics *monitoring.Metrics
	cleanup runtime.Cleanup
}

// NewWriter opens name for writing, creating it if needed.
func NewWriter(name string, opts ...Option) (*TableInterface, error) {
	return open(name, mq.WriteOnly, opts)
}

// NewReader opens name for reading, creating it if needed.
func NewReader(name string, opts ...Option) (*TableInterface, error) {
	return open(name, mq.ReadOnly|mq.Create, opts)
}

// NewReadWriter opens name for both directions, creating it if needed.
func NewReadWriter(name string, opts ...Option) (*TableInterface, error) {
	return open(name, mq.ReadWrite|mq.Create, opts)
}

func open(name string, mode mq.Mode, opts []Option) (*TableInterface, error) {
	o := options{
		maxItemSize:  mq.DefaultMaxItemSize,
		maxQueueSize: mq.DefaultMaxQueueSize,
		perm:         mq.DefaultPerm,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}

	q, err := mq.Open(name, mq.Config{
		Mode:         mode,
		MaxItemSize:  o.maxItemSize,
		MaxQueueSize: o.maxQueueSize,
		Perm:         o.perm,
	})
	if err != nil {
		o.metrics.RecordOperation(component, "open", 0, err)
		return nil, err
	}

	t := &TableInterface{
		queue:   q,
		logger:  o.logger.With(zap.String("queue", name), zap.Stringer("mode", mode)),
		metrics: o.metrics,
	}
	t.cleanup = runtime.AddCleanup(t, closeAbandoned, abandoned{queue: q, logger: t.logger})

	fields := []zap.Field{
		zap.Int("max_item_size", q.MaxItemSize()),
		zap.Int("max_queue_size", q.MaxQueueSize()),
	}
	if created, ok := id.CreatedAt(name); ok {
		fields = append(fields, zap.Time("name_created", created))
	}
	t.logger.Debug("Queue opened", fields...)
	return t, nil
}

type abandoned struct {
	queue  *mq.Queue
	logger *logging.Logger
}

// closeAbandoned runs when a TableInterface becomes unreachable without an
// explicit Close. It must not fail, so errors are only logged.
func closeAbandoned(a abandoned) {
	if a.queue.Closed() {
		return
	}
	if err := a.queue.Close(); err != nil {
		a.logger.Warn("Failed to close abandoned queue", zap.Error(err))
		return
	}
	a.logger.Debug("Closed abandoned queue")
}

// Name returns the queue name.
func (t *TableInterface) Name() string {
	return t.queue.Name()
}

// MaxItemSize returns the largest message the queue accepts.
func (t *TableInterface) MaxItemSize() int {
	return t.queue.MaxItemSize()
}

// Attr returns the kernel's view of the queue.
func (t *TableInterface) Attr() (mq.Attr, error) {
	return t.queue.Attr()
}

// Write sends one message, blocking while the queue is full.
func (t *TableInterface) Write(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	timer := monitoring.NewTimer(t.metrics, component, "write")
	err := t.queue.Send(msg)
	timer.Stop(err)
	t.metrics.RecordMessage(t.queue.Name(), monitoring.DirectionSent, len(msg), err)
	return err
}

// Read receives one message, blocking while the queue is empty.
func (t *TableInterface) Read() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	timer := monitoring.NewTimer(t.metrics, component, "read")
	msg, err := t.queue.Receive()
	timer.Stop(err)
	t.metrics.RecordMessage(t.queue.Name(), monitoring.DirectionReceived, len(msg), err)
	return msg, err
}

// WriteClientItem encodes item and sends it as one message.
func (t *TableInterface) WriteClientItem(item codec.ClientItem) error {
	return t.writeRecord(item.AppendBinary)
}

// WriteServerItem encodes item and sends it as one message.
func (t *TableInterface) WriteServerItem(item codec.ServerItem) error {
	return t.writeRecord(item.AppendBinary)
}

// ReadClientItem receives one message and decodes it as a ClientItem.
func (t *TableInterface) ReadClientItem() (codec.ClientItem, error) {
	var item codec.ClientItem
	msg, err := t.Read()
	if err != nil {
		return item, err
	}
	if err := item.UnmarshalBinary(msg); err != nil {
		t.metrics.RecordDecodeError(RecordClientItem, err)
		return codec.ClientItem{}, err
	}
	return item, nil
}

// ReadServerItem receives one message and decodes it as a ServerItem.
func (t *TableInterface) ReadServerItem() (codec.ServerItem, error) {
	var item codec.ServerItem
	msg, err := t.Read()
	if err != nil {
		return item, err
	}
	if err := item.UnmarshalBinary(msg); err != nil {
		t.metrics.RecordDecodeError(RecordServerItem, err)
		return codec.ServerItem{}, err
	}
	return item, nil
}

func (t *TableInterface) writeRecord(appendTo func([]byte) ([]byte, error)) error {
	bp := getBuffer()
	defer putBuffer(bp, t.queue.MaxItemSize())

	buf, err := appendTo((*bp)[:0])
	if err != nil {
		return err
	}
	*bp = buf
	return t.Write(buf)
}

// Close releases the descriptor. The queue itself stays in the kernel
// namespace until Unlink. A second Close returns mq.ErrClosed.
//
// Close waits for an in-flight Read or Write to return, so the descriptor is
// never released under a running syscall. Closing a handle whose Read is
// blocked on an empty queue therefore blocks too; wake the reader first.
func (t *TableInterface) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanup.Stop()
	err := t.queue.Close()
	if err != nil {
		t.logger.Debug("Queue close failed", zap.Error(err))
	} else {
		t.logger.Debug("Queue closed")
	}
	return err
}

// Closed reports whether Close has been called.
func (t *TableInterface) Closed() bool {
	return t.queue.Closed()
}

// Unlink removes the queue name from the kernel namespace. The descriptor
// stays usable until Close.
func (t *TableInterface) Unlink() error {
	err := mq.Unlink(t.queue.Name())
	if err == nil {
		t.logger.Debug("Queue unlinked")
	}
	return err
}

// CloseAndUnlink closes the descriptor, waits mq.CloseGracePeriod, then
// unlinks the name. It waits for in-flight calls like Close.
func (t *TableInterface) CloseAndUnlink() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanup.Stop()
	return mq.CloseAndUnlink(t.queue)
}
