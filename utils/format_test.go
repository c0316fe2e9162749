package utils

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNative(t *testing.T) {
	tests := []struct {
		amount   string
		expected string
	}{
		{"1", "1000000000000000000"},
		{"2.5", "2500000000000000000"},
		{" .5 ", "500000000000000000"},
		{"+3", "3000000000000000000"},
		{"0.000000000000000001", "1"},
		{"0", "0"},
	}
	for _, tc := range tests {
		wei, err := ParseNative(tc.amount)
		require.NoError(t, err, tc.amount)
		assert.Equal(t, tc.expected, wei.String(), tc.amount)
	}

	for _, invalid := range []string{"", "-1", "abc", "1.2.3", "0.0000000000000000001", "1e18"} {
		_, err := ParseNative(invalid)
		assert.Error(t, err, invalid)
	}
}

func TestFormatNative(t *testing.T) {
	assert.Equal(t, "0.00", FormatNative(nil))
	assert.Equal(t, "0.00", FormatNative(big.NewInt(0)))
	assert.Equal(t, "< 0.001", FormatNative(big.NewInt(1000)))
	assert.Equal(t, "385.000", FormatNative(new(big.Int).Div(new(big.Int).Mul(NativeToWei(350), big.NewInt(11)), big.NewInt(10))))
	assert.Equal(t, "1.250", FormatNative(big.NewInt(1250000000000000000)))

	assert.Equal(t, "350 MATIC", FormatNativeRounded(NativeToWei(350), "MATIC"))
	assert.Equal(t, "1.25", FormatNativeExact(big.NewInt(1250000000000000000)))
	assert.Equal(t, "-2", FormatNativeExact(NativeToWei(-2)))
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "---", FormatAddress(common.Address{}))
	assert.Equal(t, "0x1234...5678", FormatAddress(common.HexToAddress("0x1234000000000000000000000000000000005678")))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "---", FormatCount(nil))
	assert.Equal(t, "42", FormatCount(big.NewInt(42)))
	assert.Equal(t, "1,234,567", FormatCount(big.NewInt(1234567)))
}
