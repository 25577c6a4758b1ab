package utils

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress validates an EVM hex address and returns its lowercased canonical form.
func NormalizeAddress(address string) (string, bool) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", false
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), true
}

// ChecksumAddress returns the EIP-55 form of a valid address, or the input unchanged.
func ChecksumAddress(address string) string {
	if !common.IsHexAddress(address) {
		return address
	}
	return common.HexToAddress(address).Hex()
}
