package watchdog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/deadswitch-go/authority"
	"github.com/bitfsorg/deadswitch-go/deadman"
	"github.com/bitfsorg/deadswitch-go/ledger"
	"github.com/bitfsorg/deadswitch-go/processor"
	"github.com/bitfsorg/deadswitch-go/store"
)

const start = int64(1_700_000_000)

func makeAddr(seed byte) authority.Address {
	var addr authority.Address
	for i := range addr {
		addr[i] = seed
	}
	return addr
}

type fixture struct {
	wd     *Watchdog
	proc   *processor.Processor
	store  *store.MemStore
	ledger *ledger.MemLedger
	clock  *ledger.ManualClock
}

func testConfig() Config {
	return Config{
		Interval:     10 * time.Millisecond,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		Concurrency:  2,
	}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		store:  store.NewMemStore(),
		ledger: ledger.NewMemLedger(ledger.DefaultRent),
		clock:  ledger.NewManualClock(start),
	}
	var err error
	f.proc, err = processor.New(f.store, f.ledger, f.clock, nil)
	require.NoError(t, err)
	f.wd = New(f.proc, f.store, f.clock, cfg, nil)
	return f
}

// addSwitch stores a funded proportional switch with a 100s timeout.
func (f *fixture) addSwitch(t *testing.T, owner byte, id string, fund uint64) *deadman.Switch {
	t.Helper()
	s, err := deadman.Initialize(makeAddr(owner), id, 100, []deadman.Beneficiary{
		{Address: makeAddr(0xB1), ShareBps: 5000},
		{Address: makeAddr(0xB2), ShareBps: 5000},
	}, deadman.Native(), f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.Create(s))
	if fund > 0 {
		escrow, err := s.EscrowAddress()
		require.NoError(t, err)
		require.NoError(t, f.ledger.Credit(context.Background(), escrow, fund+f.ledger.Reserve(0)))
	}
	return s
}

func (f *fixture) balance(t *testing.T, addr authority.Address) uint64 {
	t.Helper()
	bal, err := f.ledger.Balance(context.Background(), addr)
	require.NoError(t, err)
	return bal
}

func TestScan_NothingDue(t *testing.T) {
	f := newFixture(t, testConfig())
	f.addSwitch(t, 0x01, "a", 1000)
	f.addSwitch(t, 0x02, "b", 1000)

	rep, err := f.wd.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Total: 2, Active: 2}, rep)
}

func TestScan_ExpiresAndPays(t *testing.T) {
	f := newFixture(t, testConfig())
	f.addSwitch(t, 0x01, "due", 1000)
	f.addSwitch(t, 0x02, "later", 1000)
	f.clock.Advance(101)
	f.addSwitch(t, 0x03, "fresh", 1000) // created now, not due

	rep, err := f.wd.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 3, rep.Active)
	assert.Equal(t, 2, rep.Expired)
	assert.Equal(t, 2, rep.Triggered)
	assert.Equal(t, 4, rep.Payouts)
	assert.Zero(t, rep.Failures)

	// Each share is taken from what is left in the escrow, so whichever
	// beneficiary is paid first gets 500 and the other 250, per switch.
	assert.Equal(t, uint64(1500), f.balance(t, makeAddr(0xB1))+f.balance(t, makeAddr(0xB2)))

	s, err := store.Lookup(f.store, makeAddr(0x01), "due")
	require.NoError(t, err)
	assert.Equal(t, deadman.StatusExpired, s.Status)

	// Expired switches are left alone on the next pass.
	rep, err = f.wd.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Active)
	assert.Zero(t, rep.Triggered)
	assert.Zero(t, rep.Payouts)
}

func TestScan_EmptyEscrowIsNotAFailure(t *testing.T) {
	f := newFixture(t, testConfig())
	f.addSwitch(t, 0x01, "empty", 0)
	f.clock.Advance(101)

	rep, err := f.wd.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Triggered)
	assert.Zero(t, rep.Payouts)
	assert.Zero(t, rep.Failures)
}

func TestScan_SweepExpired(t *testing.T) {
	cfg := testConfig()
	cfg.SweepExpired = true
	f := newFixture(t, cfg)
	f.addSwitch(t, 0x01, "a", 600)
	f.clock.Advance(101)

	// Someone else expired it but never paid out.
	_, err := f.proc.Expire(context.Background(), makeAddr(0x01), "a")
	require.NoError(t, err)

	rep, err := f.wd.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Triggered)
	assert.Equal(t, 2, rep.Payouts)
	assert.Equal(t, uint64(450), f.balance(t, makeAddr(0xB1))+f.balance(t, makeAddr(0xB2)))
}

func TestScan_AllocationModel(t *testing.T) {
	f := newFixture(t, testConfig())
	mint := makeAddr(0xEE)
	s, err := deadman.InitializeWithAssets(makeAddr(0x01), "alloc", 100, []deadman.Allocation{
		{Address: makeAddr(0xB1), Assets: []deadman.AssetAmount{{Asset: deadman.Native(), Amount: 400}}},
		{Address: makeAddr(0xB2), Assets: []deadman.AssetAmount{{Asset: deadman.Token(mint), Amount: 9}}},
	}, start)
	require.NoError(t, err)
	require.NoError(t, f.store.Create(s))
	escrow, err := s.EscrowAddress()
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, f.ledger.Credit(ctx, escrow, 400))
	require.NoError(t, f.ledger.CreditToken(ctx, mint, escrow, 9))
	f.clock.Advance(101)

	rep, err := f.wd.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Payouts)
	assert.Equal(t, uint64(400), f.balance(t, makeAddr(0xB1)))
	tok, err := f.ledger.TokenBalance(ctx, mint, makeAddr(0xB2))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), tok)

	stored, err := f.store.Get(mustRecord(t, s))
	require.NoError(t, err)
	assert.Empty(t, stored.RemainingPayouts())
}

func mustRecord(t *testing.T, s *deadman.Switch) authority.Address {
	t.Helper()
	addr, err := s.RecordAddress()
	require.NoError(t, err)
	return addr
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(errors.New("connection reset")))
	assert.False(t, retryable(deadman.ErrSwitchNotActive))
	assert.False(t, retryable(fmt.Errorf("wrapped: %w", deadman.ErrInsufficientFunds)))
	assert.False(t, retryable(context.Canceled))
}

func TestSubmit_Retries(t *testing.T) {
	f := newFixture(t, testConfig())

	calls := 0
	err := f.wd.submit(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = f.wd.submit(context.Background(), func() error {
		calls++
		return errors.New("always")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = f.wd.submit(context.Background(), func() error {
		calls++
		return deadman.ErrDeadlineNotPassed
	})
	assert.ErrorIs(t, err, deadman.ErrDeadlineNotPassed)
	assert.Equal(t, 1, calls, "rule violations are not retried")
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, testConfig())
	f.addSwitch(t, 0x01, "a", 1000)
	f.clock.Advance(101)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := f.wd.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s, err := store.Lookup(f.store, makeAddr(0x01), "a")
	require.NoError(t, err)
	assert.Equal(t, deadman.StatusExpired, s.Status)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Positive(t, cfg.Concurrency)
}
