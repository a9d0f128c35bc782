package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the part of the JSON-RPC API the chain context uses. *ethclient.Client implements it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account ethcommon.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

var _ Backend = (*ethclient.Client)(nil)

// Contracts are the addresses of the deployed bridge contracts.
type Contracts struct {
	Core        string `mapstructure:"core"`
	TokenBridge string `mapstructure:"token_bridge"`
}

// Config configures the context of one EVM chain.
type Config struct {
	Chain chains.ID
	// RPC is the JSON-RPC endpoint, http(s) or ws(s).
	RPC       string
	Contracts Contracts
	// EVMChainID is the EIP-155 chain id. Queried from the node when zero.
	EVMChainID uint64
	// NativeDecimals of the chain's native unit, 18 unless set.
	NativeDecimals uint8
}

func dialEthClient(ctx context.Context, cfg Config) (Backend, error) {
	return ethclient.DialContext(ctx, cfg.RPC)
}

// LoadPrivateKey reads a hex encoded secp256k1 private key from path.
func LoadPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(string(b)), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key in %s: %w", path, err)
	}
	return key, nil
}
