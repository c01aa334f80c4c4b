package deadman

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/deadswitch-go/authority"
)

func makeAddr(seed byte) authority.Address {
	var addr authority.Address
	for i := range addr {
		addr[i] = seed
	}
	return addr
}

func twoWay() []Beneficiary {
	return []Beneficiary{
		{Address: makeAddr(0xB1), ShareBps: 6000},
		{Address: makeAddr(0xB2), ShareBps: 4000},
	}
}

func newActive(t *testing.T, now int64) *Switch {
	t.Helper()
	s, err := Initialize(makeAddr(0x01), "will", 3600, twoWay(), Native(), now)
	require.NoError(t, err)
	return s
}

// --- Initialize tests ---

func TestInitialize(t *testing.T) {
	s := newActive(t, 1000)

	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, int64(4600), s.HeartbeatDeadline)
	assert.Equal(t, int64(1000), s.CreatedAt)
	assert.Equal(t, ModelProportional, s.Model)
	assert.Equal(t, Native(), s.TokenType)

	rec, err := s.RecordAddress()
	require.NoError(t, err)
	esc, err := s.EscrowAddress()
	require.NoError(t, err)
	assert.NotEqual(t, rec, esc)

	wantEsc, bump, err := FindEscrowAddress(s.Owner, s.SwitchID)
	require.NoError(t, err)
	assert.Equal(t, wantEsc, esc)
	assert.Equal(t, bump, s.EscrowBump)
}

func TestInitialize_CopiesBeneficiaries(t *testing.T) {
	in := twoWay()
	s, err := Initialize(makeAddr(0x01), "x", 10, in, Native(), 0)
	require.NoError(t, err)
	in[0].ShareBps = 1
	assert.Equal(t, uint16(6000), s.Beneficiaries[0].ShareBps)
}

func TestInitialize_Validation(t *testing.T) {
	eleven := make([]Beneficiary, MaxBeneficiaries+1)
	for i := range eleven {
		eleven[i] = Beneficiary{Address: makeAddr(byte(i + 1))}
	}
	eleven[0].ShareBps = BasisPointsTotal

	tests := []struct {
		name    string
		id      string
		timeout int64
		bens    []Beneficiary
		asset   Asset
		want    error
	}{
		{"empty id", "", 10, twoWay(), Native(), ErrInvalidSwitchID},
		{"long id", strings.Repeat("a", MaxSwitchIDLen+1), 10, twoWay(), Native(), ErrInvalidSwitchID},
		{"no beneficiaries", "id", 10, nil, Native(), ErrInvalidBeneficiaryCount},
		{"too many beneficiaries", "id", 10, eleven, Native(), ErrInvalidBeneficiaryCount},
		{"sum 9999", "id", 10, []Beneficiary{{makeAddr(1), 9999}}, Native(), ErrInvalidShareDistribution},
		{"sum 10001", "id", 10, []Beneficiary{{makeAddr(1), 5001}, {makeAddr(2), 5000}}, Native(), ErrInvalidShareDistribution},
		{"zero timeout", "id", 0, twoWay(), Native(), ErrInvalidTimeout},
		{"negative timeout", "id", -5, twoWay(), Native(), ErrInvalidTimeout},
		{"overflowing timeout", "id", math.MaxInt64, twoWay(), Native(), ErrInvalidTimeout},
		{"token without mint", "id", 10, twoWay(), Asset{Kind: AssetToken}, ErrInvalidTokenType},
		{"native with mint", "id", 10, twoWay(), Asset{Kind: AssetNative, Mint: makeAddr(9)}, ErrInvalidTokenType},
		// first violation wins
		{"id before count", "", 10, nil, Native(), ErrInvalidSwitchID},
		{"count before shares", "id", 0, nil, Native(), ErrInvalidBeneficiaryCount},
		{"shares before timeout", "id", 0, []Beneficiary{{makeAddr(1), 1}}, Native(), ErrInvalidShareDistribution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Initialize(makeAddr(0x01), tt.id, tt.timeout, tt.bens, tt.asset, 100)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, s)
			if tt.want != ErrInvalidTokenType {
				assert.Equal(t, ClassValidation, Classify(err), "class of %v", err)
			}
		})
	}
}

func TestInitialize_MaxIDLength(t *testing.T) {
	_, err := Initialize(makeAddr(0x01), strings.Repeat("z", MaxSwitchIDLen), 10, twoWay(), Native(), 0)
	assert.NoError(t, err)
}

func TestInitializeWithAssets(t *testing.T) {
	mint := makeAddr(0xEE)
	allocs := []Allocation{
		{Address: makeAddr(0xB1), Assets: []AssetAmount{{Asset: Native(), Amount: 500}, {Asset: Token(mint), Amount: 7}}},
		{Address: makeAddr(0xB2), Assets: []AssetAmount{{Asset: Native(), Amount: 300, Paid: 99}}},
	}
	s, err := InitializeWithAssets(makeAddr(0x01), "assets", 60, allocs, 10)
	require.NoError(t, err)

	assert.Equal(t, ModelAllocation, s.Model)
	assert.Equal(t, int64(70), s.HeartbeatDeadline)
	require.Len(t, s.Beneficiaries, 2)
	for _, b := range s.Beneficiaries {
		assert.Zero(t, b.ShareBps)
	}
	assert.Equal(t, makeAddr(0xB2), s.Beneficiaries[1].Address)
	require.Len(t, s.Allocations, 2)
	assert.Zero(t, s.Allocations[1].Assets[0].Paid, "paid counters start at zero")
	assert.ElementsMatch(t, []Asset{Native(), Token(mint)}, s.Assets())
}

func TestInitializeWithAssets_Validation(t *testing.T) {
	tests := []struct {
		name   string
		allocs []Allocation
		want   error
	}{
		{"none", nil, ErrInvalidBeneficiaryCount},
		{"empty asset list", []Allocation{{Address: makeAddr(1)}}, ErrInvalidAssetAllocation},
		{"zero amount", []Allocation{{Address: makeAddr(1), Assets: []AssetAmount{{Asset: Native()}}}}, ErrInvalidAssetAllocation},
		{"malformed asset", []Allocation{{Address: makeAddr(1), Assets: []AssetAmount{{Asset: Asset{Kind: AssetToken}, Amount: 1}}}}, ErrInvalidAssetAllocation},
		{"duplicate asset", []Allocation{{Address: makeAddr(1), Assets: []AssetAmount{
			{Asset: Native(), Amount: 1}, {Asset: Native(), Amount: 2},
		}}}, ErrInvalidAssetAllocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InitializeWithAssets(makeAddr(0x01), "a", 10, tt.allocs, 0)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// --- Heartbeat tests ---

func TestHeartbeat_AdvancesDeadline(t *testing.T) {
	s := newActive(t, 1000) // deadline 4600

	require.NoError(t, s.Heartbeat(2000))
	assert.Equal(t, int64(5600), s.HeartbeatDeadline)
	assert.Equal(t, StatusActive, s.Status)

	// exactly at the deadline is still on time
	require.NoError(t, s.Heartbeat(5600))
	assert.Equal(t, int64(9200), s.HeartbeatDeadline)
}

func TestHeartbeat_Late(t *testing.T) {
	s := newActive(t, 1000)
	before := *s

	err := s.Heartbeat(4601)
	assert.ErrorIs(t, err, ErrSwitchAlreadyExpired)
	assert.Equal(t, before.HeartbeatDeadline, s.HeartbeatDeadline)
	assert.Equal(t, StatusActive, s.Status)
}

func TestHeartbeat_NeverRetreats(t *testing.T) {
	s := newActive(t, 1000)
	require.NoError(t, s.Heartbeat(3000)) // deadline 6600
	require.NoError(t, s.Heartbeat(2000)) // clock stepped back
	assert.Equal(t, int64(6600), s.HeartbeatDeadline)
}

func TestHeartbeat_NotActive(t *testing.T) {
	for _, st := range []Status{StatusExpired, StatusCanceled} {
		s := newActive(t, 0)
		s.Status = st
		assert.ErrorIs(t, s.Heartbeat(1), ErrSwitchNotActive)
	}
}

// --- Expiry and cancel tests ---

func TestTriggerExpiry(t *testing.T) {
	s := newActive(t, 1000) // deadline 4600

	assert.ErrorIs(t, s.TriggerExpiry(4000), ErrDeadlineNotPassed)
	assert.ErrorIs(t, s.TriggerExpiry(4600), ErrDeadlineNotPassed)
	assert.False(t, CanExpire(s, 4600))
	assert.True(t, CanExpire(s, 4601))

	require.NoError(t, s.TriggerExpiry(4601))
	assert.Equal(t, StatusExpired, s.Status)
	assert.Equal(t, int64(4600), s.HeartbeatDeadline, "expiry changes status only")

	err := s.TriggerExpiry(9999)
	assert.ErrorIs(t, err, ErrSwitchNotActive)
	assert.Equal(t, ClassState, Classify(err))
	assert.False(t, CanExpire(s, 9999))
}

func TestCancel(t *testing.T) {
	s := newActive(t, 0)
	require.NoError(t, s.Cancel())
	assert.Equal(t, StatusCanceled, s.Status)
	assert.ErrorIs(t, s.Cancel(), ErrSwitchNotActive)
}

func TestTerminalStates(t *testing.T) {
	canceled := newActive(t, 0)
	require.NoError(t, canceled.Cancel())
	assert.ErrorIs(t, canceled.TriggerExpiry(1<<40), ErrSwitchNotActive)
	assert.False(t, CanExpire(canceled, 1<<40))
	assert.Equal(t, StatusCanceled, canceled.Status)

	expired := newActive(t, 0)
	require.NoError(t, expired.TriggerExpiry(1<<40))
	assert.ErrorIs(t, expired.Cancel(), ErrSwitchNotActive)
	assert.Equal(t, StatusExpired, expired.Status)
}

func TestClone(t *testing.T) {
	s, err := InitializeWithAssets(makeAddr(1), "c", 10, []Allocation{
		{Address: makeAddr(2), Assets: []AssetAmount{{Asset: Native(), Amount: 10}}},
	}, 0)
	require.NoError(t, err)

	c := s.Clone()
	c.Beneficiaries[0].Address = makeAddr(9)
	c.Allocations[0].Assets[0].Paid = 5
	assert.Equal(t, makeAddr(2), s.Beneficiaries[0].Address)
	assert.Zero(t, s.Allocations[0].Assets[0].Paid)
}

func TestFindBeneficiary_FirstMatchWins(t *testing.T) {
	s := &Switch{Beneficiaries: []Beneficiary{
		{Address: makeAddr(1), ShareBps: 7000},
		{Address: makeAddr(1), ShareBps: 3000},
	}}
	i, b := s.FindBeneficiary(makeAddr(1))
	assert.Equal(t, 0, i)
	assert.Equal(t, uint16(7000), b.ShareBps)

	i, b = s.FindBeneficiary(makeAddr(2))
	assert.Equal(t, -1, i)
	assert.Nil(t, b)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassUnknown, Classify(nil))
	assert.Equal(t, ClassUnknown, Classify(assert.AnError))
	assert.Equal(t, ClassAuthorization, Classify(ErrUnauthorized))
	assert.Equal(t, ClassResource, Classify(ErrInsufficientFunds))
	assert.Equal(t, "resource", ClassResource.String())
}
