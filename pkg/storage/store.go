// Package storage persists the tabular reports produced by a forecast run.
package storage

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrOutput marks failures to persist a report.
var ErrOutput = errors.New("output error")

// Table is a named report: a header row followed by data rows.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

func (t Table) validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: table has no name", ErrOutput)
	}
	if len(t.Header) == 0 {
		return fmt.Errorf("%w: table %s has no header", ErrOutput, t.Name)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("%w: table %s row %d has %d fields, want %d",
				ErrOutput, t.Name, i+1, len(row), len(t.Header))
		}
	}
	return nil
}

// Store persists report tables. Put replaces any table with the same name.
type Store interface {
	Put(Table) error
}

// MemoryStore keeps tables in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]Table
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]Table)}
}

func (m *MemoryStore) Put(t Table) error {
	if err := t.validate(); err != nil {
		return err
	}

	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = slices.Clone(r)
	}
	t.Header = slices.Clone(t.Header)
	t.Rows = rows

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[t.Name] = t
	return nil
}

// Get returns the table stored under name.
func (m *MemoryStore) Get(name string) (Table, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[name]
	return t, ok
}

// Names returns the stored table names in sorted order.
func (m *MemoryStore) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
