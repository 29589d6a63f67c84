package polymarket

// wallet.go: saldo on-chain de la wallet firmante (USDC.e en Polygon).
// Solo se usa como preflight al arrancar.

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const usdcEAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

var balanceOfABI abi.ABI

func init() {
	var err error
	balanceOfABI, err = abi.JSON(strings.NewReader(`[{
		"name":"balanceOf","type":"function",
		"inputs":[{"name":"account","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]
	}]`))
	if err != nil {
		panic("balanceOf abi: " + err.Error())
	}
}

// Wallet reads ERC-20 balances over JSON-RPC.
type Wallet struct {
	rpc   *ethclient.Client
	token common.Address
}

// NewWallet dials rpcURL. The dial is lazy for http(s) URLs.
func NewWallet(ctx context.Context, rpcURL string) (*Wallet, error) {
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("wallet: dial rpc: %w", err)
	}
	return &Wallet{rpc: rpc, token: common.HexToAddress(usdcEAddress)}, nil
}

// Close releases the RPC connection.
func (w *Wallet) Close() {
	w.rpc.Close()
}

// USDCBalance returns the USDC.e balance of owner in whole USDC.
func (w *Wallet) USDCBalance(ctx context.Context, owner string) (float64, error) {
	if !common.IsHexAddress(owner) {
		return 0, fmt.Errorf("wallet: invalid address %q", owner)
	}

	callData, err := balanceOfABI.Pack("balanceOf", common.HexToAddress(owner))
	if err != nil {
		return 0, fmt.Errorf("wallet: pack: %w", err)
	}

	result, err := w.rpc.CallContract(ctx, ethereum.CallMsg{
		To:   &w.token,
		Data: callData,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("wallet: rpc call: %w", err)
	}

	vals, err := balanceOfABI.Unpack("balanceOf", result)
	if err != nil {
		return 0, fmt.Errorf("wallet: unpack: %w", err)
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("wallet: empty balanceOf result")
	}

	raw, ok := vals[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("wallet: unexpected balanceOf type %T", vals[0])
	}
	bal, _ := decimal.NewFromBigInt(raw, -tokenDecimals).Float64()
	return bal, nil
}
