// Package store persists switch records keyed by their derived record address.
package store

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/bitfsorg/deadswitch-go/authority"
	"github.com/bitfsorg/deadswitch-go/deadman"
)

// SwitchStore persists switch records.
type SwitchStore interface {
	// Create stores a new record. Returns deadman.ErrSwitchExists if a record
	// already lives at the switch's record address.
	Create(s *deadman.Switch) error

	// Get retrieves the record at addr.
	Get(addr authority.Address) (*deadman.Switch, error)

	// Put overwrites an existing record.
	Put(s *deadman.Switch) error

	// Delete removes the record at addr.
	Delete(addr authority.Address) error

	// List returns every stored record ordered by record address.
	List() ([]*deadman.Switch, error)

	// ListByOwner returns the records owned by owner.
	ListByOwner(owner authority.Address) ([]*deadman.Switch, error)
}

// Key derives the record address of (owner, switchID).
func Key(owner authority.Address, switchID string) (authority.Address, error) {
	if err := deadman.ValidateSwitchID(switchID); err != nil {
		return authority.Address{}, err
	}
	addr, _, err := deadman.FindRecordAddress(owner, switchID)
	return addr, err
}

// Lookup fetches the record of (owner, switchID).
func Lookup(st SwitchStore, owner authority.Address, switchID string) (*deadman.Switch, error) {
	addr, err := Key(owner, switchID)
	if err != nil {
		return nil, err
	}
	return st.Get(addr)
}

// MemStore is an in-memory SwitchStore. Records are held in encoded form so
// callers never share memory with the store.
type MemStore struct {
	mu      sync.RWMutex
	records map[authority.Address][]byte
}

// Compile-time interface check.
var _ SwitchStore = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[authority.Address][]byte)}
}

func encode(s *deadman.Switch) (authority.Address, []byte, error) {
	if s == nil {
		return authority.Address{}, nil, ErrNilSwitch
	}
	addr, err := s.RecordAddress()
	if err != nil {
		return authority.Address{}, nil, fmt.Errorf("store: record address: %w", err)
	}
	data, err := deadman.SerializeSwitch(s)
	if err != nil {
		return authority.Address{}, nil, err
	}
	return addr, data, nil
}

// Create stores a new record.
func (m *MemStore) Create(s *deadman.Switch) error {
	addr, data, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[addr]; exists {
		return fmt.Errorf("%w: %s/%s", deadman.ErrSwitchExists, s.Owner, s.SwitchID)
	}
	m.records[addr] = data
	return nil
}

// Get retrieves the record at addr.
func (m *MemStore) Get(addr authority.Address) (*deadman.Switch, error) {
	m.mu.RLock()
	data, ok := m.records[addr]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", deadman.ErrSwitchNotFound, addr)
	}
	return deadman.DeserializeSwitch(data)
}

// Put overwrites an existing record.
func (m *MemStore) Put(s *deadman.Switch) error {
	addr, data, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[addr]; !exists {
		return fmt.Errorf("%w: %s", deadman.ErrSwitchNotFound, addr)
	}
	m.records[addr] = data
	return nil
}

// Delete removes the record at addr.
func (m *MemStore) Delete(addr authority.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[addr]; !exists {
		return fmt.Errorf("%w: %s", deadman.ErrSwitchNotFound, addr)
	}
	delete(m.records, addr)
	return nil
}

// List returns every stored record ordered by record address.
func (m *MemStore) List() ([]*deadman.Switch, error) {
	return m.list(func(*deadman.Switch) bool { return true })
}

// ListByOwner returns the records owned by owner.
func (m *MemStore) ListByOwner(owner authority.Address) ([]*deadman.Switch, error) {
	return m.list(func(s *deadman.Switch) bool { return s.Owner == owner })
}

func (m *MemStore) list(keep func(*deadman.Switch) bool) ([]*deadman.Switch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	addrs := make([]authority.Address, 0, len(m.records))
	for a := range m.records {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	var out []*deadman.Switch
	for _, a := range addrs {
		s, err := deadman.DeserializeSwitch(m.records[a])
		if err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", a, err)
		}
		if keep(s) {
			out = append(out, s)
		}
	}
	return out, nil
}
