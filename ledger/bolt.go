package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/deadswitch-go/authority"
)

var (
	bucketNative = []byte("native")
	bucketTokens = []byte("tokens")
)

// BoltLedger persists balances in a bbolt database. Every transfer runs in a
// single read-write transaction, so the balance check and debit are atomic.
// Program registrations are held in memory and last until Close.
type BoltLedger struct {
	db    *bbolt.DB
	rent  Rent
	progs programs
}

// Compile-time interface checks.
var (
	_ Ledger = (*BoltLedger)(nil)
	_ Funder = (*BoltLedger)(nil)
)

// OpenBoltLedger opens or creates the ledger database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltLedger(dbPath string, rent Rent) (*BoltLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketNative, bucketTokens} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}
	return &BoltLedger{db: db, rent: rent}, nil
}

// Close closes the underlying database.
func (l *BoltLedger) Close() error { return l.db.Close() }

// tokenAccountKey is mint || owner, so one mint's accounts sort together.
func tokenAccountKey(mint, owner authority.Address) []byte {
	k := make([]byte, 2*authority.AddressLen)
	copy(k, mint[:])
	copy(k[authority.AddressLen:], owner[:])
	return k
}

func getAmount(b *bbolt.Bucket, key []byte) uint64 {
	v := b.Get(key)
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func putAmount(b *bbolt.Bucket, key []byte, amount uint64) error {
	if amount == 0 {
		return b.Delete(key)
	}
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, amount)
	return b.Put(key, v)
}

// Balance returns the native balance of addr.
func (l *BoltLedger) Balance(_ context.Context, addr authority.Address) (uint64, error) {
	var bal uint64
	err := l.db.View(func(tx *bbolt.Tx) error {
		bal = getAmount(tx.Bucket(bucketNative), addr[:])
		return nil
	})
	return bal, err
}

// TokenBalance returns owner's balance of mint.
func (l *BoltLedger) TokenBalance(_ context.Context, mint, owner authority.Address) (uint64, error) {
	if mint.IsZero() {
		return 0, ErrInvalidMint
	}
	var bal uint64
	err := l.db.View(func(tx *bbolt.Tx) error {
		bal = getAmount(tx.Bucket(bucketTokens), tokenAccountKey(mint, owner))
		return nil
	})
	return bal, err
}

// Transfer moves native currency out of the account derived from seeds.
// prog must have been issued by this ledger.
func (l *BoltLedger) Transfer(ctx context.Context, prog *Program, from authority.Seeds, to authority.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := l.progs.source(prog, from, amount)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		return boltMove(tx.Bucket(bucketNative), src[:], to[:], amount)
	})
}

// TransferToken moves tokens of mint out of the account derived from seeds.
func (l *BoltLedger) TransferToken(ctx context.Context, prog *Program, mint authority.Address, from authority.Seeds, to authority.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mint.IsZero() {
		return ErrInvalidMint
	}
	src, err := l.progs.source(prog, from, amount)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		return boltMove(tx.Bucket(bucketTokens), tokenAccountKey(mint, src), tokenAccountKey(mint, to), amount)
	})
}

func boltMove(b *bbolt.Bucket, from, to []byte, amount uint64) error {
	fromBal, err := debit(getAmount(b, from), amount)
	if err != nil {
		return err
	}
	if string(from) == string(to) {
		return nil
	}
	toBal, err := credit(getAmount(b, to), amount)
	if err != nil {
		return err
	}
	if err := putAmount(b, from, fromBal); err != nil {
		return fmt.Errorf("ledger: debit: %w", err)
	}
	if err := putAmount(b, to, toBal); err != nil {
		return fmt.Errorf("ledger: credit: %w", err)
	}
	return nil
}

// Register issues the transfer authority for program identity id.
func (l *BoltLedger) Register(id authority.Address) (*Program, error) {
	return l.progs.register(id)
}

// Reserve returns the retained balance for an account of size bytes.
func (l *BoltLedger) Reserve(size int) uint64 {
	return l.rent.Reserve(size)
}

// Credit adds amount to addr's native balance.
func (l *BoltLedger) Credit(_ context.Context, addr authority.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		return boltCredit(tx.Bucket(bucketNative), addr[:], amount)
	})
}

// CreditToken adds amount of mint to owner's token balance.
func (l *BoltLedger) CreditToken(_ context.Context, mint, owner authority.Address, amount uint64) error {
	if mint.IsZero() {
		return ErrInvalidMint
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		return boltCredit(tx.Bucket(bucketTokens), tokenAccountKey(mint, owner), amount)
	})
}

func boltCredit(b *bbolt.Bucket, key []byte, amount uint64) error {
	bal, err := credit(getAmount(b, key), amount)
	if err != nil {
		return err
	}
	return putAmount(b, key, bal)
}
