package server

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/memipc/internal/codec"
	"github.com/GriffinCanCode/memipc/internal/logging"
	"github.com/GriffinCanCode/memipc/internal/shm"
)

// ErrJournalFull is returned when a record does not fit in the journal.
var ErrJournalFull = errors.New("journal is full")

// Journal appends mutating ClientItems to a shared-memory region as
// length-prefixed frames. A zero-length frame marks the end.
type Journal struct {
	mu     sync.Mutex
	region *shm.Region
	end    int64
	logger *logging.Logger
}

// OpenJournal attaches to the named region, creating and sizing it when
// size is positive, and locates the end of the existing frames.
func OpenJournal(name string, size int64, logger *logging.Logger, opts ...shm.Option) (*Journal, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if size > 0 {
		opts = append(opts, shm.WithSize(size))
	}
	region, path, err := shm.OpenOrCreate(name, opts...)
	if err != nil {
		return nil, err
	}

	j := &Journal{region: region, logger: logger.With(zap.String("journal", path))}
	n, err := j.Replay(func(codec.ClientItem) error { return nil })
	if err != nil {
		region.Close()
		return nil, err
	}
	j.logger.Debug("Journal opened", zap.Int("records", n), zap.Int64("end", j.end))
	return j, nil
}

// Replay calls fn for each record in order and returns how many were read.
// Replay stops at the end marker, at the region end, or at the first frame
// that does not decode.
func (j *Journal) Replay(fn func(codec.ClientItem) error) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var (
		off int64
		n   int
	)
	for {
		frame, next, err := j.region.ReadFrame(off)
		if errors.Is(err, shm.ErrOutOfRange) || (err == nil && len(frame) == 0) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("journal read at %d: %w", off, err)
		}

		var item codec.ClientItem
		if err := item.UnmarshalBinary(frame); err != nil {
			j.logger.Warn("Journal truncated at undecodable frame",
				zap.Int64("offset", off),
				zap.Error(err),
			)
			break
		}
		if err := fn(item); err != nil {
			return n, err
		}
		n++
		off = next
	}
	j.end = off
	return n, nil
}

// Append writes item after the last record and moves the end marker.
func (j *Journal) Append(item codec.ClientItem) error {
	data, err := item.MarshalBinary()
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	size, err := j.region.Size()
	if err != nil {
		return err
	}
	next := j.end + shm.FrameHeaderSize + int64(len(data))
	if next > size {
		return fmt.Errorf("%w: %d byte record at offset %d of %d", ErrJournalFull, len(data), j.end, size)
	}

	// Terminate first so a concurrent reader never runs into stale frames.
	if next+shm.FrameHeaderSize <= size {
		if _, err := j.region.WriteFrame(next, nil); err != nil {
			return err
		}
	}
	if _, err := j.region.WriteFrame(j.end, data); err != nil {
		return err
	}
	j.end = next
	return nil
}

// Reset discards every record.
func (j *Journal) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.region.WriteFrame(0, nil); err != nil && !errors.Is(err, shm.ErrOutOfRange) {
		return err
	}
	j.end = 0
	return nil
}

// End returns the offset just past the last record.
func (j *Journal) End() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.end
}

// Path returns the backing file of the journal.
func (j *Journal) Path() string {
	return j.region.Path()
}

// Close syncs and releases the region. The journal contents remain.
func (j *Journal) Close() error {
	syncErr := j.region.Sync()
	return errors.Join(syncErr, j.region.Close())
}
