package entity

// TokenInfo is on-chain ERC-20 metadata resolved over RPC.
type TokenInfo struct {
	ChainID     uint64 `json:"chainId"`
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply"` // already scaled by Decimals
}
