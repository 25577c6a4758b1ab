package networkdefinition

import (
	"testing"

	"buybot/internal/domain/entity"
	"buybot/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestNetworkDefinitionProvider(t *testing.T) {
	p := NewNetworkDefinitionProvider(logger.Nop(),
		entity.NetworkDefinition{Identifier: "Custom", Name: "Custom", BlockExplorerURL: "https://scan.custom/"},
		entity.NetworkDefinition{Name: "no id"},
	)

	def, ok := p.GetNetworkDefinitionByName(" MONAD ")
	assert.True(t, ok)
	assert.Equal(t, "MON", def.NativeSymbol)

	_, ok = p.GetNetworkDefinitionByName("custom")
	assert.True(t, ok)

	assert.Equal(t, "https://scan.custom/token/0xabc", p.TokenExplorerURL("custom", "0xabc"))
	assert.Equal(t, "https://monadscan.com/token/0xabc", p.TokenExplorerURL("monad", "0xabc"))
	assert.Empty(t, p.TokenExplorerURL("unknown", "0xabc"))

	assert.Equal(t, []string{"https://rpc.monad.xyz", "https://rpc1.monad.xyz"}, p.RPCURLs("monad"))
	assert.Nil(t, p.RPCURLs("unknown"))

	all := p.GetAllNetworkDefinitions()
	assert.Len(t, all, 8)
	assert.Equal(t, "arbitrum", all[0].Identifier)
}
