package client

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"buybot/internal/domain/entity"
	"buybot/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  string          `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// erc20Node answers eth_call batches for a single token. Methods missing from outputs revert.
func erc20Node(t *testing.T, outputs map[string][]byte, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	parsed := erc20()
	bySelector := make(map[string]string)
	for _, m := range metadataMethods {
		bySelector[hexutil.Encode(parsed.Methods[m].ID)] = m
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var reqs []rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqs))

		resps := make([]rpcResponse, 0, len(reqs))
		for _, req := range reqs {
			var call struct {
				Data  string `json:"data"`
				Input string `json:"input"`
			}
			require.NoError(t, json.Unmarshal(req.Params[0], &call))
			data := call.Data
			if data == "" {
				data = call.Input
			}
			resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
			if out, ok := outputs[bySelector[data]]; ok {
				resp.Result = hexutil.Encode(out)
			} else {
				resp.Error = &rpcError{Code: 3, Message: "execution reverted"}
			}
			resps = append(resps, resp)
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resps))
	}))
}

func packOutput(t *testing.T, method string, v any) []byte {
	t.Helper()
	out, err := erc20().Methods[method].Outputs.Pack(v)
	require.NoError(t, err)
	return out
}

const tokenAddr = "0x00000000000000000000000000000000000000AA"

func TestEVMClient_ResolveToken(t *testing.T) {
	var calls atomic.Int32
	supply := new(big.Int).Mul(big.NewInt(1_000_000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	srv := erc20Node(t, map[string][]byte{
		"name":        packOutput(t, "name", "Purple Frog"),
		"symbol":      packOutput(t, "symbol", "PFROG"),
		"decimals":    packOutput(t, "decimals", uint8(18)),
		"totalSupply": packOutput(t, "totalSupply", supply),
	}, &calls)
	defer srv.Close()

	c, err := NewEVMClient(entity.NetworkDefinition{ChainID: 143, Name: "test", PrimaryRPCURL: srv.URL}, time.Second, time.Second)
	require.NoError(t, err)
	defer c.Close()

	info, err := c.ResolveToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	assert.Equal(t, entity.TokenInfo{
		ChainID:     143,
		Address:     "0x00000000000000000000000000000000000000aa",
		Name:        "Purple Frog",
		Symbol:      "PFROG",
		Decimals:    18,
		TotalSupply: "1000000",
	}, info)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEVMClient_ResolveToken_Bytes32Symbol(t *testing.T) {
	var calls atomic.Int32
	var sym [32]byte
	copy(sym[:], "MKR")
	srv := erc20Node(t, map[string][]byte{
		"symbol":   sym[:],
		"decimals": packOutput(t, "decimals", uint8(18)),
	}, &calls)
	defer srv.Close()

	c, err := NewEVMClient(entity.NetworkDefinition{Name: "test", PrimaryRPCURL: srv.URL}, time.Second, time.Second)
	require.NoError(t, err)

	info, err := c.ResolveToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	assert.Equal(t, "MKR", info.Symbol)
	assert.Empty(t, info.Name)
	assert.Empty(t, info.TotalSupply)
}

func TestEVMClient_ResolveToken_Errors(t *testing.T) {
	var calls atomic.Int32
	srv := erc20Node(t, map[string][]byte{"name": packOutput(t, "name", "No Decimals")}, &calls)
	defer srv.Close()

	c, err := NewEVMClient(entity.NetworkDefinition{Name: "test", PrimaryRPCURL: srv.URL}, time.Second, time.Second)
	require.NoError(t, err)

	_, err = c.ResolveToken(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, entity.ErrInvalidAddress)
	assert.Equal(t, int32(0), calls.Load())

	_, err = c.ResolveToken(context.Background(), tokenAddr)
	assert.ErrorContains(t, err, "decimals")
}

func TestNewEVMClient_NoEndpoints(t *testing.T) {
	_, err := NewEVMClient(entity.NetworkDefinition{Name: "empty"}, time.Second, time.Second)
	assert.Error(t, err)
}

func TestTokenResolverProvider_Caches(t *testing.T) {
	var calls atomic.Int32
	srv := erc20Node(t, map[string][]byte{
		"symbol":   packOutput(t, "symbol", "PFROG"),
		"decimals": packOutput(t, "decimals", uint8(9)),
	}, &calls)
	defer srv.Close()

	r := NewTokenResolverProvider(entity.NetworkDefinition{Name: "test", PrimaryRPCURL: srv.URL}, time.Second, logger.Nop())
	for i := 0; i < 3; i++ {
		info, err := r.ResolveToken(context.Background(), tokenAddr)
		require.NoError(t, err)
		assert.Equal(t, uint8(9), info.Decimals)
	}
	assert.Equal(t, int32(1), calls.Load())
}
