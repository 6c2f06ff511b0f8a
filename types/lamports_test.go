package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"100", 100},
		{"1.5sol", 1_500_000_000},
		{"0.000000001 SOL", 1},
		{"2 sol", 2 * LamportsPerSOL},
		{"18446744073709551615", 18446744073709551615},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	for _, bad := range []string{"", "abc", "-1", "1.5", "0.0000000001sol", "18446744073709551616"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestFormatSOL(t *testing.T) {
	assert.Equal(t, "1.5", FormatSOL(1_500_000_000))
	assert.Equal(t, "0.000000001", FormatSOL(1))
	assert.Equal(t, "0", FormatSOL(0))
}
