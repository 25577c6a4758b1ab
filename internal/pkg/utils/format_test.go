package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{999.994, "999.99"},
		{1500, "1.50K"},
		{2_345_678, "2.35M"},
		{7_100_000_000, "7.10B"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatNumber(c.in, 2))
	}
	assert.Equal(t, "$1.50K", FormatUSD(1500))
}

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "+12.50%", FormatPercentage(12.5, 2))
	assert.Equal(t, "-3.1%", FormatPercentage(-3.14, 1))
	assert.Equal(t, "+0.00%", FormatPercentage(0, 2))
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "0x1234...cdef", FormatAddress("0x1234567890abcdef1234567890abcdef"))
	assert.Equal(t, "0xabc", FormatAddress("0xabc"))
}

func TestFormatPriceUSD(t *testing.T) {
	assert.Equal(t, "$1.2346", FormatPriceUSD("1.23456"))
	assert.Equal(t, "$0.0001235", FormatPriceUSD("0.00012345"))
	assert.Equal(t, "$0.5", FormatPriceUSD("0.5"))
	assert.Equal(t, "$0", FormatPriceUSD("0"))
	assert.Equal(t, "$n/a", FormatPriceUSD("n/a"))
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `PEPE\_2\.0 \(new\)\!`, EscapeMarkdown("PEPE_2.0 (new)!"))
	assert.Equal(t, "plain", EscapeMarkdown("plain"))
}

func TestFormatBigInt(t *testing.T) {
	v, _ := new(big.Int).SetString("1234500000000000000", 10)
	assert.Equal(t, "1.2345", FormatBigInt(v, 18))
	assert.Equal(t, "42", FormatBigInt(big.NewInt(42), 0))
	assert.Equal(t, "0", FormatBigInt(nil, 18))
	assert.Equal(t, "1", FormatBigInt(big.NewInt(1_000_000), 6))
}

func TestBatchStrings(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, BatchStrings(items, 2))
	assert.Equal(t, [][]string{items}, BatchStrings(items, 0))
	assert.Empty(t, BatchStrings(nil, 3))
}

func TestUniqueLower(t *testing.T) {
	assert.Equal(t, []string{"0xab", "0xcd"}, UniqueLower([]string{"0xAB", " 0xab", "", "0xCD"}))
}

func TestNormalizeAddress(t *testing.T) {
	addr, ok := NormalizeAddress(" 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed ")
	assert.True(t, ok)
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", addr)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", ChecksumAddress(addr))

	_, ok = NormalizeAddress("not-an-address")
	assert.False(t, ok)
	_, ok = NormalizeAddress("0x1234")
	assert.False(t, ok)
}
