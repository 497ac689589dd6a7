// Package testutil provides mocks and helpers shared by package tests.
package testutil

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/memipc/internal/codec"
	"github.com/GriffinCanCode/memipc/internal/mq"
	"github.com/GriffinCanCode/memipc/internal/shared/id"
)

// Small enough to stay under the default msg_max and RLIMIT_MSGQUEUE for
// unprivileged users.
const (
	ItemSize  = 1024
	QueueSize = 10
)

// QueueName returns a unique queue name and unlinks it when the test ends.
func QueueName(t *testing.T) string {
	t.Helper()
	name := id.NewQueueName("test").String()
	t.Cleanup(func() { _ = mq.Unlink(name) })
	return name
}

// SkipIfUnsupported skips the test when err shows the host has no POSIX
// message queues.
func SkipIfUnsupported(t *testing.T, err error) {
	t.Helper()
	if mq.IsUnsupported(err) {
		t.Skipf("posix message queues unavailable: %v", err)
	}
}

// RequireMessageQueues skips the test unless a queue can be created.
func RequireMessageQueues(t *testing.T) {
	t.Helper()
	name := id.NewQueueName("check").String()
	q, err := mq.OpenOrCreate(name, mq.WriteOnly, ItemSize, QueueSize)
	if err != nil {
		t.Skipf("posix message queues unavailable: %v", err)
	}
	_ = mq.CloseAndUnlink(q)
}

// MockClientReader is a mock source of client records.
type MockClientReader struct {
	mock.Mock
	items     chan codec.ClientItem
	closeOnce sync.Once
}

// NewMockClientReader returns a reader that yields the records pushed with
// Push and reports mq.ErrClosed once closed. Close expectations are optional.
func NewMockClientReader(t *testing.T) *MockClientReader {
	t.Helper()
	m := &MockClientReader{items: make(chan codec.ClientItem, 64)}
	m.On("Close").Return(nil).Maybe()
	return m
}

// Push queues item for a later ReadClientItem.
func (m *MockClientReader) Push(item codec.ClientItem) {
	m.items <- item
}

// ReadClientItem blocks until an item is pushed or the reader is closed.
// A pushed item with TableID DecodeFailure yields a decode error instead.
func (m *MockClientReader) ReadClientItem() (codec.ClientItem, error) {
	item, ok := <-m.items
	if !ok {
		return codec.ClientItem{}, mq.ErrClosed
	}
	if item.TableID == DecodeFailure {
		return codec.ClientItem{}, &codec.FieldError{Field: "table_id", Err: codec.ErrTruncatedField}
	}
	return item, nil
}

// Close mocks the Close method and unblocks pending reads.
func (m *MockClientReader) Close() error {
	args := m.Called()
	m.closeOnce.Do(func() { close(m.items) })
	return args.Error(0)
}

// DecodeFailure is a TableID that makes MockClientReader report a decode
// error for that record.
const DecodeFailure = "!decode"

// MockClientWriter is a mock sink for client records. Writes are forwarded
// to Target when it is set.
type MockClientWriter struct {
	mock.Mock
	Target *MockClientReader
}

// WriteClientItem mocks the WriteClientItem method.
func (m *MockClientWriter) WriteClientItem(item codec.ClientItem) error {
	args := m.Called(item)
	if err := args.Error(0); err != nil {
		return err
	}
	if m.Target != nil {
		m.Target.Push(item)
	}
	return nil
}

// Close mocks the Close method.
func (m *MockClientWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

// NewMockClientWriter returns a writer that accepts everything and forwards
// to target.
func NewMockClientWriter(t *testing.T, target *MockClientReader) *MockClientWriter {
	t.Helper()
	m := &MockClientWriter{Target: target}
	m.On("WriteClientItem", mock.Anything).Return(nil).Maybe()
	m.On("Close").Return(nil).Maybe()
	return m
}

// MockServerWriter is a mock sink for server replies.
type MockServerWriter struct {
	mock.Mock
	Replies chan codec.ServerItem
}

// NewMockServerWriter returns a writer that records every reply.
func NewMockServerWriter(t *testing.T) *MockServerWriter {
	t.Helper()
	m := &MockServerWriter{Replies: make(chan codec.ServerItem, 64)}
	m.On("WriteServerItem", mock.Anything).Return(nil).Maybe()
	m.On("Close").Return(nil).Maybe()
	return m
}

// WriteServerItem mocks the WriteServerItem method.
func (m *MockServerWriter) WriteServerItem(item codec.ServerItem) error {
	args := m.Called(item)
	if err := args.Error(0); err != nil {
		return err
	}
	m.Replies <- item
	return nil
}

// Close mocks the Close method.
func (m *MockServerWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ErrInjected is returned by mocks configured to fail.
var ErrInjected = errors.New("injected failure")
