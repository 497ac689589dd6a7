package shm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	DefaultDir  = "/dev/shm"
	DefaultPerm = os.FileMode(0o644)

	// FrameHeaderSize is the length prefix written in front of each frame.
	FrameHeaderSize = 4
)

var (
	ErrInvalidName = errors.New("invalid region name")
	ErrOpenFailed  = errors.New("failed to open or create shared memory region")
	ErrClosed      = errors.New("shared memory region is closed")
	ErrOutOfRange  = errors.New("access outside shared memory region")
)

type options struct {
	dir     string
	size    int64
	hasSize bool
	perm    os.FileMode
}

// Option configures OpenOrCreate and Remove.
type Option func(*options)

// WithSize resizes the region to exactly n bytes after opening it, whether
// it was created or attached.
func WithSize(n int64) Option {
	return func(o *options) {
		o.size = n
		o.hasSize = true
	}
}

// WithDir overrides the directory regions live in.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithPerm sets the permission bits used when the region is created.
func WithPerm(perm os.FileMode) Option {
	return func(o *options) {
		o.perm = perm
	}
}

func buildOptions(opts []Option) options {
	o := options{perm: DefaultPerm}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dir == "" {
		o.dir = defaultDir()
	}
	return o
}

// defaultDir prefers the shared-memory mount and falls back to the temp
// directory where it does not exist.
func defaultDir() string {
	if info, err := os.Stat(DefaultDir); err == nil && info.IsDir() {
		return DefaultDir
	}
	return os.TempDir()
}

// ResolvePath returns the backing file path for name.
func ResolvePath(name string, opts ...Option) (string, error) {
	clean := strings.TrimPrefix(name, "/")
	switch {
	case clean == "", clean == ".", clean == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsRune(clean, '/'):
		return "", fmt.Errorf("%w: %q contains an interior slash", ErrInvalidName, name)
	case strings.IndexByte(clean, 0) >= 0:
		return "", fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidName, name)
	}
	o := buildOptions(opts)
	return filepath.Join(o.dir, clean), nil
}

// Region is an open handle on a shared-memory region.
type Region struct {
	name string
	path string

	mu   sync.Mutex
	file *os.File
}

// OpenOrCreate attaches to the named region, creating it when it does not
// exist, and returns the handle together with its resolved path.
func OpenOrCreate(name string, opts ...Option) (*Region, string, error) {
	path, err := ResolvePath(name, opts...)
	if err != nil {
		return nil, "", err
	}
	o := buildOptions(opts)
	if o.hasSize && o.size < 0 {
		return nil, path, fmt.Errorf("%w: %s: negative size %d", ErrOpenFailed, path, o.size)
	}

	file, err := openOrCreateFile(path, o.perm)
	if err != nil {
		return nil, path, fmt.Errorf("%w: %s: %w", ErrOpenFailed, path, err)
	}

	if o.hasSize {
		if err := file.Truncate(o.size); err != nil {
			file.Close()
			return nil, path, fmt.Errorf("%w: %s: resize to %d: %w", ErrOpenFailed, path, o.size, err)
		}
	}

	return &Region{name: name, path: path, file: file}, path, nil
}

// openOrCreateFile opens an existing file, or creates it exclusively. When a
// concurrent creator wins the exclusive create, the winner's file is opened.
func openOrCreateFile(path string, perm os.FileMode) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err == nil {
		return file, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, perm)
	if err == nil {
		return file, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, err
	}
	return os.OpenFile(path, os.O_RDWR, 0)
}

// Remove deletes the backing file of the named region. Open handles stay
// usable until closed.
func Remove(name string, opts ...Option) error {
	path, err := ResolvePath(name, opts...)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// Name returns the name the region was opened with.
func (r *Region) Name() string {
	return r.name
}

// Path returns the backing file path.
func (r *Region) Path() string {
	return r.path
}

// Size returns the current size of the region.
func (r *Region) Size() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, ErrClosed
	}
	info, err := r.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Truncate resizes the region to exactly n bytes.
func (r *Region) Truncate(n int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return ErrClosed
	}
	return r.file.Truncate(n)
}

// ReadAt implements io.ReaderAt.
func (r *Region) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, ErrClosed
	}
	return r.file.ReadAt(p, off)
}

// WriteAt implements io.WriterAt. Writes past the current end grow the region.
func (r *Region) WriteAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, ErrClosed
	}
	return r.file.WriteAt(p, off)
}

// Sync flushes the region to its backing store.
func (r *Region) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return ErrClosed
	}
	return r.file.Sync()
}

// WriteFrame writes payload with a 4-byte little-endian length prefix at off
// and returns the offset just past the frame. The frame must fit inside the
// region's current size.
func (r *Region) WriteFrame(off int64, payload []byte) (int64, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return off, fmt.Errorf("%w: frame of %d bytes", ErrOutOfRange, len(payload))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return off, ErrClosed
	}
	end := off + FrameHeaderSize + int64(len(payload))
	if err := r.checkRange(off, end); err != nil {
		return off, err
	}

	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[FrameHeaderSize:], payload)
	if _, err := r.file.WriteAt(buf, off); err != nil {
		return off, err
	}
	return end, nil
}

// ReadFrame reads the frame at off and returns its payload and the offset
// just past it.
func (r *Region) ReadFrame(off int64) ([]byte, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil, off, ErrClosed
	}
	if err := r.checkRange(off, off+FrameHeaderSize); err != nil {
		return nil, off, err
	}

	var hdr [FrameHeaderSize]byte
	if _, err := r.file.ReadAt(hdr[:], off); err != nil {
		return nil, off, err
	}
	n := int64(binary.LittleEndian.Uint32(hdr[:]))
	end := off + FrameHeaderSize + n
	if err := r.checkRange(off, end); err != nil {
		return nil, off, err
	}

	payload := make([]byte, n)
	if _, err := r.file.ReadAt(payload, off+FrameHeaderSize); err != nil {
		return nil, off, err
	}
	return payload, end, nil
}

// checkRange requires [off, end) to lie inside the region. Caller holds mu.
func (r *Region) checkRange(off, end int64) error {
	info, err := r.file.Stat()
	if err != nil {
		return err
	}
	if off < 0 || end < off || end > info.Size() {
		return fmt.Errorf("%w: [%d, %d) in %d bytes", ErrOutOfRange, off, end, info.Size())
	}
	return nil
}

// Close releases the handle. The region and its contents remain for other
// processes until Remove is called.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return ErrClosed
	}
	err := r.file.Close()
	r.file = nil
	return err
}
