package server

import (
	"bytes"
	"math"
	"sync"

	"github.com/zhangyunhao116/skipmap"

	"github.com/GriffinCanCode/memipc/internal/codec"
)

// Entry is one shadowed row.
type Entry struct {
	Priority uint16
	Meta     []byte
	Payload  []byte
}

// rows holds one table's entries ordered by key.
type rows = skipmap.FuncMap[string, Entry]

func newRows() *rows {
	return skipmap.NewFunc[string, Entry](func(a, b string) bool {
		return a < b
	})
}

// Shadow is an in-memory copy of the tables mutated through the queue.
// Apply is serialised so each reply sees the table size its own record
// produced; lookups run concurrently with it.
type Shadow struct {
	mu     sync.RWMutex
	tables map[string]*rows
}

// NewShadow returns an empty shadow.
func NewShadow() *Shadow {
	return &Shadow{tables: make(map[string]*rows)}
}

// Apply applies item and returns the reply describing the result.
func (s *Shadow) Apply(item codec.ClientItem) codec.ServerItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply := codec.ServerItem{TableID: item.TableID, Action: item.Action}
	t := s.tables[item.TableID]
	key := string(item.Key)

	switch item.Action {
	case codec.ActionAdd:
		if t == nil {
			t = newRows()
			s.tables[item.TableID] = t
		}
		t.Store(key, Entry{Priority: item.Priority, Meta: item.Meta, Payload: item.Payload})
	case codec.ActionDelete:
		if t != nil {
			t.Delete(key)
			if t.Len() == 0 {
				delete(s.tables, item.TableID)
			}
		}
	case codec.ActionQuery:
		if t != nil {
			if e, ok := t.Load(key); ok {
				reply.Value = bytes.Clone(e.Payload)
			}
		}
	}

	if t != nil {
		reply.Index = clampIndex(t.Len())
	}
	return reply
}

// Get returns the entry stored under key in table.
func (s *Shadow) Get(table, key string) (Entry, bool) {
	t := s.table(table)
	if t == nil {
		return Entry{}, false
	}
	return t.Load(key)
}

// Len returns the number of entries in table.
func (s *Shadow) Len(table string) int {
	t := s.table(table)
	if t == nil {
		return 0
	}
	return t.Len()
}

func (s *Shadow) table(name string) *rows {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[name]
}

// Tables returns the entry count of every non-empty table.
func (s *Shadow) Tables() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.tables))
	for name, t := range s.tables {
		out[name] = t.Len()
	}
	return out
}

// Keys returns the keys of table in sorted order.
func (s *Shadow) Keys(table string) []string {
	t := s.table(table)
	if t == nil {
		return []string{}
	}
	keys := make([]string, 0, t.Len())
	t.Range(func(key string, _ Entry) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// clampIndex saturates n to the range of ServerItem.Index.
func clampIndex(n int) uint16 {
	if n > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(n)
}
