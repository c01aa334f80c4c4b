package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/deadswitch-go/authority"
	"github.com/bitfsorg/deadswitch-go/deadman"
)

var (
	bucketSwitches = []byte("switches")
	bucketOwners   = []byte("switch_owners")
)

// BoltStore persists switch records in bbolt. Records are keyed by record
// address; an owner index maps owner || record address to nothing.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ SwitchStore = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSwitches, bucketOwners} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

func ownerKey(owner, addr authority.Address) []byte {
	k := make([]byte, 2*authority.AddressLen)
	copy(k, owner[:])
	copy(k[authority.AddressLen:], addr[:])
	return k
}

// Create stores a new record. Returns deadman.ErrSwitchExists if the record
// address is taken.
func (s *BoltStore) Create(sw *deadman.Switch) error {
	addr, data, err := encode(sw)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSwitches)
		if b.Get(addr[:]) != nil {
			return fmt.Errorf("%w: %s/%s", deadman.ErrSwitchExists, sw.Owner, sw.SwitchID)
		}
		if err := b.Put(addr[:], data); err != nil {
			return fmt.Errorf("boltstore: put switch: %w", err)
		}
		if err := tx.Bucket(bucketOwners).Put(ownerKey(sw.Owner, addr), []byte{}); err != nil {
			return fmt.Errorf("boltstore: put owner index: %w", err)
		}
		return nil
	})
}

// Get retrieves the record at addr.
func (s *BoltStore) Get(addr authority.Address) (*deadman.Switch, error) {
	var sw *deadman.Switch
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSwitches).Get(addr[:])
		if data == nil {
			return fmt.Errorf("%w: %s", deadman.ErrSwitchNotFound, addr)
		}
		var err error
		sw, err = deadman.DeserializeSwitch(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sw, nil
}

// Put overwrites an existing record.
func (s *BoltStore) Put(sw *deadman.Switch) error {
	addr, data, err := encode(sw)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSwitches)
		if b.Get(addr[:]) == nil {
			return fmt.Errorf("%w: %s", deadman.ErrSwitchNotFound, addr)
		}
		if err := b.Put(addr[:], data); err != nil {
			return fmt.Errorf("boltstore: update switch: %w", err)
		}
		return nil
	})
}

// Delete removes the record at addr and its owner index entry.
func (s *BoltStore) Delete(addr authority.Address) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSwitches)
		data := b.Get(addr[:])
		if data == nil {
			return fmt.Errorf("%w: %s", deadman.ErrSwitchNotFound, addr)
		}
		sw, err := deadman.DeserializeSwitch(data)
		if err != nil {
			return err
		}
		if err := b.Delete(addr[:]); err != nil {
			return fmt.Errorf("boltstore: delete switch: %w", err)
		}
		if err := tx.Bucket(bucketOwners).Delete(ownerKey(sw.Owner, addr)); err != nil {
			return fmt.Errorf("boltstore: delete owner index: %w", err)
		}
		return nil
	})
}

// List returns every stored record ordered by record address.
func (s *BoltStore) List() ([]*deadman.Switch, error) {
	var out []*deadman.Switch
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSwitches).ForEach(func(k, v []byte) error {
			sw, err := deadman.DeserializeSwitch(v)
			if err != nil {
				return fmt.Errorf("decode %x: %w", k, err)
			}
			out = append(out, sw)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list switches: %w", err)
	}
	return out, nil
}

// ListByOwner returns the records owned by owner.
func (s *BoltStore) ListByOwner(owner authority.Address) ([]*deadman.Switch, error) {
	var out []*deadman.Switch
	err := s.db.View(func(tx *bbolt.Tx) error {
		sb := tx.Bucket(bucketSwitches)
		c := tx.Bucket(bucketOwners).Cursor()
		prefix := owner[:]
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			data := sb.Get(k[authority.AddressLen:])
			if data == nil {
				continue // stale index entry
			}
			sw, err := deadman.DeserializeSwitch(data)
			if err != nil {
				return fmt.Errorf("decode %x: %w", k[authority.AddressLen:], err)
			}
			out = append(out, sw)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list by owner: %w", err)
	}
	return out, nil
}
