package networkdefinition

import (
	"fmt"
	"sort"
	"strings"

	"buybot/internal/app/port"
	"buybot/internal/domain/entity"
)

// Predefined network definitions, keyed by DexScreener chain id.
var ( //nolint:gochecknoglobals // Global for definitions
	Monad = entity.NetworkDefinition{
		ChainID:          143,
		Name:             "Monad Mainnet",
		Identifier:       "monad",
		NativeSymbol:     "MON",
		PrimaryRPCURL:    "https://rpc.monad.xyz",
		FallbackRPCURLs:  []string{"https://rpc1.monad.xyz"},
		BlockExplorerURL: "https://monadscan.com",
	}
	MonadTestnet = entity.NetworkDefinition{
		ChainID:          10143,
		Name:             "Monad Testnet",
		Identifier:       "monad-testnet",
		NativeSymbol:     "MON",
		PrimaryRPCURL:    "https://testnet-rpc.monad.xyz",
		BlockExplorerURL: "https://testnet.monadexplorer.com",
	}
	Ethereum = entity.NetworkDefinition{
		ChainID:          1,
		Name:             "Ethereum Mainnet",
		Identifier:       "ethereum",
		NativeSymbol:     "ETH",
		PrimaryRPCURL:    "https://ethereum-rpc.publicnode.com",
		FallbackRPCURLs:  []string{"https://rpc.ankr.com/eth", "https://ethereum.publicnode.com"},
		BlockExplorerURL: "https://etherscan.io",
	}
	BSC = entity.NetworkDefinition{
		ChainID:          56,
		Name:             "BNB Smart Chain",
		Identifier:       "bsc",
		NativeSymbol:     "BNB",
		PrimaryRPCURL:    "https://1rpc.io/bnb",
		FallbackRPCURLs:  []string{"https://bsc-dataseed2.binance.org/", "https://bsc.publicnode.com"},
		BlockExplorerURL: "https://bscscan.com",
	}
	Base = entity.NetworkDefinition{
		ChainID:          8453,
		Name:             "Base Mainnet",
		Identifier:       "base",
		NativeSymbol:     "ETH",
		PrimaryRPCURL:    "https://1rpc.io/base",
		FallbackRPCURLs:  []string{"https://base.publicnode.com", "https://base.llamarpc.com"},
		BlockExplorerURL: "https://basescan.org",
	}
	Arbitrum = entity.NetworkDefinition{
		ChainID:          42161,
		Name:             "Arbitrum One",
		Identifier:       "arbitrum",
		NativeSymbol:     "ETH",
		PrimaryRPCURL:    "https://arb1.arbitrum.io/rpc",
		FallbackRPCURLs:  []string{"https://arbitrum.llamarpc.com", "https://arbitrum.publicnode.com"},
		BlockExplorerURL: "https://arbiscan.io",
	}
	Polygon = entity.NetworkDefinition{
		ChainID:          137,
		Name:             "Polygon PoS",
		Identifier:       "polygon",
		NativeSymbol:     "POL",
		PrimaryRPCURL:    "https://polygon-rpc.com/",
		FallbackRPCURLs:  []string{"https://rpc.ankr.com/polygon", "https://polygon.publicnode.com"},
		BlockExplorerURL: "https://polygonscan.com",
	}
)

// NetworkDefinitionProvider looks up known chains by DexScreener identifier.
type NetworkDefinitionProvider struct {
	logger  port.Logger
	allDefs map[string]entity.NetworkDefinition
}

// NewNetworkDefinitionProvider registers the predefined chains plus any extra definitions.
// Extras override predefined entries with the same identifier.
func NewNetworkDefinitionProvider(logger port.Logger, extra ...entity.NetworkDefinition) *NetworkDefinitionProvider {
	p := &NetworkDefinitionProvider{
		logger:  logger,
		allDefs: make(map[string]entity.NetworkDefinition),
	}
	for _, def := range []entity.NetworkDefinition{Monad, MonadTestnet, Ethereum, BSC, Base, Arbitrum, Polygon} {
		p.allDefs[def.Identifier] = def
	}
	for _, def := range extra {
		if def.Identifier == "" {
			logger.Warn("Skipping network definition without identifier", "name", def.Name)
			continue
		}
		p.allDefs[strings.ToLower(def.Identifier)] = def
	}
	return p
}

// GetNetworkDefinitionByName returns the definition for a DexScreener chain id.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByName(identifier string) (entity.NetworkDefinition, bool) {
	def, ok := p.allDefs[strings.ToLower(strings.TrimSpace(identifier))]
	return def, ok
}

// GetAllNetworkDefinitions returns every known chain ordered by identifier.
func (p *NetworkDefinitionProvider) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	out := make([]entity.NetworkDefinition, 0, len(p.allDefs))
	for _, def := range p.allDefs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// TokenExplorerURL links a token on the chain's block explorer, or "" for unknown chains.
func (p *NetworkDefinitionProvider) TokenExplorerURL(identifier, tokenAddress string) string {
	def, ok := p.GetNetworkDefinitionByName(identifier)
	if !ok || def.BlockExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/token/%s", strings.TrimRight(def.BlockExplorerURL, "/"), tokenAddress)
}

// RPCURLs returns primary then fallback RPC endpoints for the chain.
func (p *NetworkDefinitionProvider) RPCURLs(identifier string) []string {
	def, ok := p.GetNetworkDefinitionByName(identifier)
	if !ok {
		return nil
	}
	urls := make([]string, 0, 1+len(def.FallbackRPCURLs))
	if def.PrimaryRPCURL != "" {
		urls = append(urls, def.PrimaryRPCURL)
	}
	return append(urls, def.FallbackRPCURLs...)
}
