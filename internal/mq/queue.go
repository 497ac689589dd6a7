package mq

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

const (
	DefaultMaxItemSize  = 65536
	DefaultMaxQueueSize = 1024
	DefaultPerm         = os.FileMode(0o644)

	// CloseGracePeriod separates close and unlink in CloseAndUnlink so a
	// peer in the middle of an operation can observe the close first.
	CloseGracePeriod = time.Millisecond
)

// Mode selects the access a descriptor is opened with.
type Mode int

const (
	ReadOnly Mode = iota
	WriteOnly
	ReadWrite

	// Create may be OR-ed into any access mode. WriteOnly implies it.
	Create Mode = 1 << 4
)

func (m Mode) access() Mode {
	return m &^ Create
}

func (m Mode) creates() bool {
	return m&Create != 0 || m.access() == WriteOnly
}

func (m Mode) canRead() bool {
	return m.access() == ReadOnly || m.access() == ReadWrite
}

func (m Mode) canWrite() bool {
	return m.access() == WriteOnly || m.access() == ReadWrite
}

// String returns the string representation of the mode
func (m Mode) String() string {
	var s string
	switch m.access() {
	case ReadOnly:
		s = "read-only"
	case WriteOnly:
		s = "write-only"
	case ReadWrite:
		s = "read-write"
	default:
		s = fmt.Sprintf("mode(%d)", int(m.access()))
	}
	if m&Create != 0 {
		s += "|create"
	}
	return s
}

// Attr describes a queue as reported by the kernel.
type Attr struct {
	MaxMsg  int
	MsgSize int
	CurMsgs int
}

// Config controls how a queue is opened or created.
type Config struct {
	Mode         Mode
	MaxItemSize  int
	MaxQueueSize int
	Perm         os.FileMode
}

// Queue is one open message-queue descriptor.
//
// Send and Receive may be called from several goroutines; the kernel keeps
// individual messages atomic. Close must not race with in-flight calls; a
// table.TableInterface serializes its calls and Close on one mutex.
type Queue struct {
	name   string
	fd     int
	mode   Mode
	attr   Attr
	closed atomic.Bool
}

// OpenOrCreate opens the named queue, creating it with the given capacity
// when mode allows creation and the queue does not exist yet.
func OpenOrCreate(name string, mode Mode, maxItemSize, maxQueueSize int) (*Queue, error) {
	return Open(name, Config{
		Mode:         mode,
		MaxItemSize:  maxItemSize,
		MaxQueueSize: maxQueueSize,
		Perm:         DefaultPerm,
	})
}

// Open is OpenOrCreate with explicit permission bits.
func Open(name string, cfg Config) (*Queue, error) {
	kname, err := kernelName(name)
	if err != nil {
		return nil, err
	}
	if cfg.Perm == 0 {
		cfg.Perm = DefaultPerm
	}

	fd, err := sysOpen(kname, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s): %w", ErrOpenFailed, name, cfg.Mode, err)
	}

	attr, err := sysGetAttr(fd)
	if err != nil {
		_ = sysClose(fd)
		return nil, fmt.Errorf("%w: %s: reading attributes: %w", ErrOpenFailed, name, err)
	}

	return &Queue{name: name, fd: fd, mode: cfg.Mode, attr: attr}, nil
}

// Name returns the name the queue was opened with.
func (q *Queue) Name() string {
	return q.name
}

// Mode returns the access mode of this descriptor.
func (q *Queue) Mode() Mode {
	return q.mode
}

// MaxItemSize returns the queue's message size limit.
func (q *Queue) MaxItemSize() int {
	return q.attr.MsgSize
}

// MaxQueueSize returns the queue's depth limit.
func (q *Queue) MaxQueueSize() int {
	return q.attr.MaxMsg
}

// Attr queries the kernel for the queue's current attributes, including the
// number of messages waiting.
func (q *Queue) Attr() (Attr, error) {
	if q.closed.Load() {
		return Attr{}, ErrClosed
	}
	return sysGetAttr(q.fd)
}

// Send submits msg as one message, blocking while the queue is full.
func (q *Queue) Send(msg []byte) error {
	if q.closed.Load() {
		return ErrClosed
	}
	if !q.mode.canWrite() {
		return fmt.Errorf("%w: %s is open %s", ErrSendFailed, q.name, q.mode)
	}
	if len(msg) > q.attr.MsgSize {
		return fmt.Errorf("%w: %d > %d bytes on %s", ErrCapacityExceeded, len(msg), q.attr.MsgSize, q.name)
	}
	if err := sysSend(q.fd, msg); err != nil {
		if isMsgSize(err) {
			return fmt.Errorf("%w: %d bytes on %s: %w", ErrCapacityExceeded, len(msg), q.name, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrSendFailed, q.name, err)
	}
	return nil
}

// Receive blocks until a message is available and returns a copy of exactly
// the received bytes.
func (q *Queue) Receive() ([]byte, error) {
	buf := make([]byte, q.attr.MsgSize)
	n, err := q.ReceiveInto(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n:n], nil
}

// ReceiveInto reads one message into buf, which must be at least
// MaxItemSize bytes, and returns the message length.
func (q *Queue) ReceiveInto(buf []byte) (int, error) {
	if q.closed.Load() {
		return 0, ErrClosed
	}
	if !q.mode.canRead() {
		return 0, fmt.Errorf("%w: %s is open %s", ErrReceiveFailed, q.name, q.mode)
	}
	if len(buf) < q.attr.MsgSize {
		return 0, fmt.Errorf("%w: %s: buffer of %d bytes is smaller than item size %d",
			ErrReceiveFailed, q.name, len(buf), q.attr.MsgSize)
	}
	n, err := sysReceive(q.fd, buf)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrReceiveFailed, q.name, err)
	}
	return n, nil
}

// Close releases this process's descriptor. The queue itself survives.
func (q *Queue) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := sysClose(q.fd); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCloseFailed, q.name, err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	return q.closed.Load()
}

// Unlink removes the named queue from the kernel namespace.
func Unlink(name string) error {
	kname, err := kernelName(name)
	if err != nil {
		return err
	}
	if err := sysUnlink(kname); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnlinkFailed, name, err)
	}
	return nil
}

// CloseAndUnlink closes q, waits CloseGracePeriod and unlinks its name.
// The unlink is attempted even when close fails; both errors are reported.
func CloseAndUnlink(q *Queue) error {
	closeErr := q.Close()
	time.Sleep(CloseGracePeriod)
	return errors.Join(closeErr, Unlink(q.name))
}

// kernelName converts a POSIX queue name ("/name") into the form the
// kernel expects: no leading slash, no interior slash, no NUL byte.
func kernelName(name string) (string, error) {
	k := strings.TrimPrefix(name, "/")
	switch {
	case k == "":
		return "", fmt.Errorf("%w: %q is empty", ErrInvalidName, name)
	case strings.ContainsRune(k, '/'):
		return "", fmt.Errorf("%w: %q contains an interior slash", ErrInvalidName, name)
	case strings.IndexByte(k, 0) >= 0:
		return "", fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidName, name)
	}
	return k, nil
}
