package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"buybot/internal/app/port"
	"buybot/internal/domain/entity"
	"buybot/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// EVMClient reads ERC-20 metadata from an EVM-compatible chain.
type EVMClient struct {
	ethClient      *ethclient.Client
	netDef         entity.NetworkDefinition
	rpcCallTimeout time.Duration
}

// Minimal ERC-20 metadata ABI.
const erc20ABI = `[
{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var metadataMethods = []string{"name", "symbol", "decimals", "totalSupply"} //nolint:gochecknoglobals

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
)

func erc20() abi.ABI {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
	})
	return parsedERC20ABI
}

// NewEVMClient dials the first reachable RPC endpoint of netDef, primary first.
func NewEVMClient(netDef entity.NetworkDefinition, connectionTimeout, rpcCallTimeout time.Duration) (*EVMClient, error) {
	erc20()
	rpcURLs := make([]string, 0, 1+len(netDef.FallbackRPCURLs))
	if netDef.PrimaryRPCURL != "" {
		rpcURLs = append(rpcURLs, netDef.PrimaryRPCURL)
	}
	rpcURLs = append(rpcURLs, netDef.FallbackRPCURLs...)
	if len(rpcURLs) == 0 {
		return nil, fmt.Errorf("network %s has no RPC endpoints", netDef.Name)
	}

	var lastErr error
	for _, rpcURL := range rpcURLs {
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		client, err := ethclient.DialContext(ctx, rpcURL)
		cancel()
		if err == nil {
			return &EVMClient{ethClient: client, netDef: netDef, rpcCallTimeout: rpcCallTimeout}, nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}
	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", netDef.Name, lastErr)
}

// ResolveToken reads name, symbol, decimals and totalSupply in one JSON-RPC batch.
// Only decimals is mandatory; a token without name or symbol still resolves.
func (c *EVMClient) ResolveToken(ctx context.Context, tokenAddress string) (entity.TokenInfo, error) {
	if !common.IsHexAddress(tokenAddress) {
		return entity.TokenInfo{}, fmt.Errorf("%w: %q", entity.ErrInvalidAddress, tokenAddress)
	}
	parsed := erc20()
	to := common.HexToAddress(tokenAddress)

	batchElems := make([]rpc.BatchElem, len(metadataMethods))
	for i, method := range metadataMethods {
		callArgs := map[string]interface{}{
			"to":   to,
			"data": hexutil.Bytes(parsed.Methods[method].ID),
		}
		batchElems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args:   []interface{}{callArgs, "latest"},
			Result: new(hexutil.Bytes),
		}
	}

	rpcCallCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()
	if err := c.ethClient.Client().BatchCallContext(rpcCallCtx, batchElems); err != nil {
		return entity.TokenInfo{}, fmt.Errorf("RPC batch call failed for %s: %w", tokenAddress, err)
	}

	info := entity.TokenInfo{
		ChainID: c.netDef.ChainID,
		Address: strings.ToLower(tokenAddress),
	}
	raw := make(map[string][]byte, len(batchElems))
	for i, elem := range batchElems {
		if elem.Error != nil {
			continue
		}
		if result, ok := elem.Result.(*hexutil.Bytes); ok && result != nil && len(*result) > 0 {
			raw[metadataMethods[i]] = *result
		}
	}

	decimalsRaw, ok := raw["decimals"]
	if !ok {
		return entity.TokenInfo{}, fmt.Errorf("token %s did not answer decimals()", tokenAddress)
	}
	decimals, err := unpackOne[uint8](parsed, "decimals", decimalsRaw)
	if err != nil {
		return entity.TokenInfo{}, err
	}
	info.Decimals = decimals
	info.Name = unpackText(parsed, "name", raw["name"])
	info.Symbol = unpackText(parsed, "symbol", raw["symbol"])
	if supplyRaw, ok := raw["totalSupply"]; ok {
		if supply, err := unpackOne[*big.Int](parsed, "totalSupply", supplyRaw); err == nil {
			info.TotalSupply = utils.FormatBigInt(supply, decimals)
		}
	}
	return info, nil
}

// Definition returns the network definition for this client.
func (c *EVMClient) Definition() entity.NetworkDefinition {
	return c.netDef
}

// Close releases the underlying RPC connection.
func (c *EVMClient) Close() {
	c.ethClient.Close()
}

func unpackOne[T any](parsed abi.ABI, method string, data []byte) (T, error) {
	var zero T
	unpacked, err := parsed.Unpack(method, data)
	if err != nil {
		return zero, fmt.Errorf("failed to unpack %s result: %w. Raw: %s", method, err, hexutil.Encode(data))
	}
	if len(unpacked) == 0 {
		return zero, fmt.Errorf("%s unpack returned no data", method)
	}
	v, ok := unpacked[0].(T)
	if !ok {
		return zero, fmt.Errorf("unexpected %s result type %T", method, unpacked[0])
	}
	return v, nil
}

// unpackText decodes a string return, falling back to the bytes32 encoding some older tokens use.
func unpackText(parsed abi.ABI, method string, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if s, err := unpackOne[string](parsed, method, data); err == nil {
		return s
	}
	if len(data) == 32 {
		return strings.TrimRight(string(data), "\x00")
	}
	return ""
}

var _ port.TokenMetadataResolver = (*EVMClient)(nil)
