// Package id provides centralized ID and channel-name generation.
//
// This package offers:
//   - ULID generation: lexicographically sortable, so names created later sort later
//   - Channel names: unique POSIX queue names ("/prefix_ulid") and region names
//   - Instance IDs: random UUIDs identifying one running consumer in logs
//
// Queue names are lowercased ULIDs so they stay valid under filesystems and
// mqueue mounts that are case-insensitive.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// QueueName is a POSIX message queue name, always starting with "/".
type QueueName string

// RegionName names a shared-memory region.
type RegionName string

// InstanceID identifies one running process in logs and replies.
type InstanceID string

const (
	QueuePrefix    = "mq"
	RegionPrefix   = "shm"
	InstancePrefix = "inst"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	// Default generator with cryptographically secure entropy
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewQueueName generates a unique queue name such as "/mq_01h..." or, with
// a non-empty prefix, "/prefix_01h...".
func NewQueueName(prefix string) QueueName {
	if prefix == "" {
		prefix = QueuePrefix
	}
	return QueueName("/" + strings.ToLower(Default().GenerateWithPrefix(prefix)))
}

// NewRegionName generates a unique shared-memory region name.
func NewRegionName(prefix string) RegionName {
	if prefix == "" {
		prefix = RegionPrefix
	}
	return RegionName(strings.ToLower(Default().GenerateWithPrefix(prefix)))
}

// NewInstanceID generates a random instance identifier. Instances are not
// ordered, so a v4 UUID is used rather than a ULID.
func NewInstanceID() InstanceID {
	return InstanceID(InstancePrefix + "_" + uuid.NewString())
}

// String methods for ID types
func (n QueueName) String() string  { return string(n) }
func (n RegionName) String() string { return string(n) }
func (i InstanceID) String() string { return string(i) }

// Suffix returns the ULID part of a generated name, or "" if name was not
// produced by this package.
func Suffix(name string) string {
	i := strings.LastIndexByte(name, '_')
	if i < 0 {
		return ""
	}
	s := strings.ToUpper(name[i+1:])
	if !IsValid(s) {
		return ""
	}
	return s
}

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

// CreatedAt reports when a generated queue or region name was minted.
func CreatedAt(name string) (time.Time, bool) {
	suffix := Suffix(name)
	if suffix == "" {
		return time.Time{}, false
	}
	ts, err := Timestamp(suffix)
	return ts, err == nil
}
