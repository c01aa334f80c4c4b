package deadman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeSwitch_RoundTrip(t *testing.T) {
	prop := newActive(t, 1700000000)
	require.NoError(t, prop.Heartbeat(1700000100))
	prop.Nonce = 7

	token, err := Initialize(makeAddr(0x02), "tok", 99, twoWay(), Token(makeAddr(0xEE)), 5)
	require.NoError(t, err)
	require.NoError(t, token.Cancel())

	alloc := newExpiredAlloc(t)
	require.NoError(t, alloc.ApplyAssetDistribution(makeAddr(0xB2), Native(), 120))

	tests := []struct {
		name string
		s    *Switch
	}{
		{"proportional active", prop},
		{"token canceled", token},
		{"allocation expired", alloc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := SerializeSwitch(tt.s)
			require.NoError(t, err)
			assert.Len(t, data, RecordSize(tt.s))

			decoded, err := DeserializeSwitch(data)
			require.NoError(t, err)
			assert.Equal(t, tt.s, decoded)
		})
	}
}

func TestSerializeSwitch_Size(t *testing.T) {
	s := newActive(t, 0)
	// header + "will" + body + 2 beneficiaries + allocation count
	assert.Equal(t, 22+4+58+2*22+1, RecordSize(s))
}

func TestDeserializeSwitch_Invalid(t *testing.T) {
	good, err := SerializeSwitch(newExpiredAlloc(t))
	require.NoError(t, err)

	badVersion := append([]byte(nil), good...)
	badVersion[0] = 9

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", good[:10]},
		{"truncated body", good[:30]},
		{"truncated allocation", good[:len(good)-1]},
		{"trailing bytes", append(append([]byte(nil), good...), 0x00)},
		{"bad version", badVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeserializeSwitch(tt.data)
			assert.ErrorIs(t, err, ErrInvalidRecordData)
		})
	}
}
