package utils

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBigInt converts a raw on-chain integer amount into a decimal string using the token's decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}

	s := decimal.NewFromBigInt(amount, -int32(decimals)).StringFixed(int32(decimals))
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
