package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/deadswitch-go/deadman"
)

var (
	addrA = strings.Repeat("aa", 20)
	addrB = strings.Repeat("bb", 20)
	mintM = strings.Repeat("0c", 20)
)

func TestParseAsset(t *testing.T) {
	for _, s := range []string{"", "native", "NATIVE"} {
		a, err := parseAsset(s)
		require.NoError(t, err)
		assert.True(t, a.IsNative())
	}

	a, err := parseAsset(mintM)
	require.NoError(t, err)
	assert.Equal(t, deadman.AssetToken, a.Kind)
	assert.Equal(t, mintM, a.Mint.String())

	_, err = parseAsset("gold")
	assert.Error(t, err)
}

func TestParseBeneficiary(t *testing.T) {
	b, err := parseBeneficiary(addrA + ":6000")
	require.NoError(t, err)
	assert.Equal(t, addrA, b.Address.String())
	assert.Equal(t, uint16(6000), b.ShareBps)

	for _, bad := range []string{addrA, addrA + ":70000", "xyz:10", addrA + ":-1"} {
		_, err := parseBeneficiary(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseAllocations(t *testing.T) {
	allocs, err := parseAllocations([]string{
		addrA + ":native:500",
		addrB + ":" + mintM + ":20",
		addrA + ":" + mintM + ":7",
	})
	require.NoError(t, err)
	require.Len(t, allocs, 2)

	assert.Equal(t, addrA, allocs[0].Address.String())
	require.Len(t, allocs[0].Assets, 2)
	assert.True(t, allocs[0].Assets[0].Asset.IsNative())
	assert.Equal(t, uint64(500), allocs[0].Assets[0].Amount)
	assert.Equal(t, uint64(7), allocs[0].Assets[1].Amount)

	assert.Equal(t, addrB, allocs[1].Address.String())
	assert.Equal(t, uint64(20), allocs[1].Assets[0].Amount)

	_, err = parseAllocations([]string{addrA + ":native"})
	assert.Error(t, err)
	_, err = parseAllocations([]string{addrA + ":native:lots"})
	assert.Error(t, err)
}
