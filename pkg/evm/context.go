// Package evm implements the chain context of EVM chains on top of go-ethereum's contract bindings.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/certusone/wormhole/connect/pkg/adapter"
	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/tokenbridge"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var txsSubmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "connect_evm_txs_submitted_total",
		Help: "Total number of transactions submitted to EVM chains",
	}, []string{"chain", "method", "result"})

const defaultNativeDecimals = 18

// Dialer creates the JSON-RPC client of a context.
type Dialer func(ctx context.Context, cfg Config) (Backend, error)

// Context is the adapter.ChainContext of an EVM chain.
type Context struct {
	adapter.Base

	logger   *zap.Logger
	cfg      Config
	resolver adapter.Resolver
	key      *ecdsa.PrivateKey
	dial     Dialer
	backend  *common.Lazy[Backend]
	chainID  *common.Lazy[*big.Int]
	foreign  *adapter.ForeignAssets

	// txMu serializes nonce use between concurrent submissions.
	txMu sync.Mutex
}

var _ adapter.ChainContext = (*Context)(nil)

type Option func(*Context)

// WithPrivateKey sets the key that signs transfers and redemptions.
func WithPrivateKey(key *ecdsa.PrivateKey) Option {
	return func(c *Context) {
		c.key = key
	}
}

// WithDialer replaces the JSON-RPC client, mostly for tests.
func WithDialer(d Dialer) Option {
	return func(c *Context) {
		c.dial = d
	}
}

// NewContext creates the context of an EVM chain. The node is not contacted until the first operation that needs it.
func NewContext(logger *zap.Logger, cfg Config, resolver adapter.Resolver, opts ...Option) (*Context, error) {
	if cfg.Chain.Platform() != chains.PlatformEVM {
		return nil, fmt.Errorf("%s is not an EVM chain", cfg.Chain)
	}
	if cfg.NativeDecimals == 0 {
		cfg.NativeDecimals = defaultNativeDecimals
	}

	c := &Context{
		Base:     adapter.Base{ChainID: cfg.Chain},
		logger:   logger.With(zap.Stringer("chain", cfg.Chain)),
		cfg:      cfg,
		resolver: resolver,
		dial:     dialEthClient,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.backend = common.NewLazy(func(ctx context.Context) (Backend, error) {
		if c.cfg.RPC == "" {
			return nil, &common.ConfigurationError{Chain: c.cfg.Chain, Field: "rpc"}
		}
		b, err := c.dial(ctx, c.cfg)
		if err != nil {
			return nil, common.Transient(fmt.Errorf("failed to dial %s: %w", c.cfg.RPC, err))
		}
		c.logger.Info("connected to node", zap.String("rpc", c.cfg.RPC))
		return b, nil
	})
	c.chainID = common.NewLazy(func(ctx context.Context) (*big.Int, error) {
		if c.cfg.EVMChainID != 0 {
			return new(big.Int).SetUint64(c.cfg.EVMChainID), nil
		}
		b, err := c.backend.Get(ctx)
		if err != nil {
			return nil, err
		}
		id, err := b.ChainID(ctx)
		if err != nil {
			return nil, common.Transient(fmt.Errorf("failed to query chain id: %w", err))
		}
		return id, nil
	})

	foreign, err := adapter.NewForeignAssets(c.logger, cfg.Chain, resolver, c.queryWrappedAsset)
	if err != nil {
		return nil, err
	}
	c.foreign = foreign
	return c, nil
}

func (c *Context) FormatAddress(address string) (vaa.Address, error) {
	return ToUniversal(address)
}

func (c *Context) ParseAddress(address vaa.Address) (string, error) {
	a, err := FromUniversal(address)
	if err != nil {
		return "", err
	}
	return a.Hex(), nil
}

// FormatAssetAddress returns the asset id of an ERC20 token. The native unit is represented by the token bridge's
// wrapped native token.
func (c *Context) FormatAssetAddress(ctx context.Context, address string) (vaa.Address, error) {
	if !c.IsNativeToken(address) {
		return c.FormatAddress(address)
	}
	bridge, _, err := c.tokenBridge(ctx)
	if err != nil {
		return vaa.Address{}, err
	}
	out, err := c.call(ctx, bridge, "WETH")
	if err != nil {
		return vaa.Address{}, fmt.Errorf("failed to query wrapped native token: %w", err)
	}
	return PadAddress(*abi.ConvertType(out[0], new(ethcommon.Address)).(*ethcommon.Address)), nil
}

func (c *Context) ParseAssetAddress(_ context.Context, address vaa.Address) (string, error) {
	return c.ParseAddress(address)
}

func (c *Context) GetForeignAsset(ctx context.Context, token common.TokenID) (string, bool, error) {
	return c.foreign.Get(ctx, token)
}

func (c *Context) MustGetForeignAsset(ctx context.Context, token common.TokenID) (string, error) {
	return c.foreign.MustGet(ctx, token)
}

// queryWrappedAsset asks the token bridge, which answers unknown assets with the zero address.
func (c *Context) queryWrappedAsset(ctx context.Context, tokenChain chains.ID, tokenAddress vaa.Address) (string, bool, error) {
	bridge, _, err := c.tokenBridge(ctx)
	if err != nil {
		return "", false, err
	}
	out, err := c.call(ctx, bridge, "wrappedAsset", uint16(tokenChain), [32]byte(tokenAddress))
	if err != nil {
		return "", false, err
	}
	addr := *abi.ConvertType(out[0], new(ethcommon.Address)).(*ethcommon.Address)
	if addr == (ethcommon.Address{}) {
		return "", false, nil
	}
	return addr.Hex(), true, nil
}

func (c *Context) GetNativeBalance(ctx context.Context, wallet string) (*big.Int, error) {
	if !ethcommon.IsHexAddress(wallet) {
		return nil, fmt.Errorf("invalid EVM address %q", wallet)
	}
	b, err := c.backend.Get(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := b.BalanceAt(ctx, ethcommon.HexToAddress(wallet), nil)
	if err != nil {
		return nil, common.Transient(fmt.Errorf("failed to query balance: %w", err))
	}
	return balance, nil
}

// GetTokenBalance returns the balance of token's representation on this chain. A token without one has a zero
// balance.
func (c *Context) GetTokenBalance(ctx context.Context, wallet string, token common.TokenID) (*big.Int, error) {
	address, found, err := c.GetForeignAsset(ctx, token)
	if err != nil {
		return nil, err
	}
	if !found {
		return new(big.Int), nil
	}
	if c.IsNativeToken(address) {
		return c.GetNativeBalance(ctx, wallet)
	}
	if !ethcommon.IsHexAddress(wallet) {
		return nil, fmt.Errorf("invalid EVM address %q", wallet)
	}

	erc20, err := c.erc20(ctx, address)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, erc20, "balanceOf", ethcommon.HexToAddress(wallet))
	if err != nil {
		return nil, fmt.Errorf("failed to query token balance: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Context) FetchTokenDecimals(ctx context.Context, tokenAddress string) (uint8, error) {
	if c.IsNativeToken(tokenAddress) {
		return c.cfg.NativeDecimals, nil
	}
	erc20, err := c.erc20(ctx, tokenAddress)
	if err != nil {
		return 0, err
	}
	out, err := c.call(ctx, erc20, "decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to query decimals: %w", err)
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// IsNativeToken reports whether address names the chain's native unit rather than an ERC20 contract.
func (c *Context) IsNativeToken(address string) bool {
	return !ethcommon.IsHexAddress(address)
}

func (c *Context) Send(ctx context.Context, req *adapter.TransferRequest, overrides adapter.Overrides) (*adapter.Transaction, error) {
	return c.send(ctx, req, overrides, false)
}

func (c *Context) SendWithPayload(ctx context.Context, req *adapter.TransferRequest, overrides adapter.Overrides) (*adapter.Transaction, error) {
	return c.send(ctx, req, overrides, true)
}

func (c *Context) send(ctx context.Context, req *adapter.TransferRequest, overrides adapter.Overrides, withPayload bool) (*adapter.Transaction, error) {
	o, err := c.overrides(overrides)
	if err != nil {
		return nil, err
	}
	from, err := c.signerAddress()
	if err != nil {
		return nil, err
	}
	if req.Sender != "" && !strings.EqualFold(req.Sender, from.Hex()) {
		return nil, fmt.Errorf("sender %s does not match signer %s", req.Sender, from.Hex())
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("transfer amount must be positive")
	}
	fee := req.RelayerFeeOrZero()
	if fee.Cmp(req.Amount) > 0 {
		return nil, fmt.Errorf("relayer fee %s exceeds amount %s", fee, req.Amount)
	}
	if withPayload && fee.Sign() != 0 {
		return nil, fmt.Errorf("transfers with payload carry no relayer fee")
	}

	dest, err := c.resolver.Context(req.DestChain)
	if err != nil {
		return nil, fmt.Errorf("destination chain: %w", err)
	}
	recipient, err := dest.FormatAddress(req.Recipient)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q on %s: %w", req.Recipient, req.DestChain, err)
	}

	bridge, bridgeAddress, err := c.tokenBridge(ctx)
	if err != nil {
		return nil, err
	}

	token := ""
	if req.Token != nil {
		if token, err = c.MustGetForeignAsset(ctx, *req.Token); err != nil {
			return nil, err
		}
	}

	c.txMu.Lock()
	defer c.txMu.Unlock()

	var receipt *types.Receipt
	if c.IsNativeToken(token) {
		if withPayload {
			receipt, err = c.transact(ctx, o, bridge, req.Amount, "wrapAndTransferETHWithPayload",
				uint16(req.DestChain), [32]byte(recipient), req.Nonce, req.Payload)
		} else {
			receipt, err = c.transact(ctx, o, bridge, req.Amount, "wrapAndTransferETH",
				uint16(req.DestChain), [32]byte(recipient), fee, req.Nonce)
		}
	} else {
		tokenAddress := ethcommon.HexToAddress(token)
		if err := c.ensureAllowance(ctx, o, tokenAddress, from, bridgeAddress, req.Amount); err != nil {
			return nil, err
		}
		if withPayload {
			receipt, err = c.transact(ctx, o, bridge, nil, "transferTokensWithPayload",
				tokenAddress, req.Amount, uint16(req.DestChain), [32]byte(recipient), req.Nonce, req.Payload)
		} else {
			receipt, err = c.transact(ctx, o, bridge, nil, "transferTokens",
				tokenAddress, req.Amount, uint16(req.DestChain), [32]byte(recipient), fee, req.Nonce)
		}
	}
	if err != nil {
		return nil, err
	}

	c.logger.Info("submitted transfer",
		zap.Stringer("tx_hash", receipt.TxHash),
		zap.String("token", token),
		zap.Stringer("amount", req.Amount),
		zap.Stringer("dest_chain", req.DestChain),
	)
	return &adapter.Transaction{Chain: c.Chain(), ID: receipt.TxHash.Hex()}, nil
}

// ensureAllowance approves the token bridge to spend amount of token unless it already may.
func (c *Context) ensureAllowance(ctx context.Context, o *Overrides, token ethcommon.Address, owner ethcommon.Address, spender ethcommon.Address, amount *big.Int) error {
	erc20, err := c.erc20(ctx, token.Hex())
	if err != nil {
		return err
	}
	out, err := c.call(ctx, erc20, "allowance", owner, spender)
	if err != nil {
		return fmt.Errorf("failed to query allowance: %w", err)
	}
	allowance := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if allowance.Cmp(amount) >= 0 {
		return nil
	}
	if _, err := c.transact(ctx, o, erc20, nil, "approve", spender, amount); err != nil {
		return fmt.Errorf("failed to approve token bridge: %w", err)
	}
	return nil
}

// Redeem submits a transfer VAA to the token bridge. payer defaults to the transfer recipient and must be the
// signing key's address.
func (c *Context) Redeem(ctx context.Context, signedVAA []byte, overrides adapter.Overrides, payer string) (*adapter.Transaction, error) {
	o, err := c.overrides(overrides)
	if err != nil {
		return nil, err
	}
	v, err := vaa.Unmarshal(signedVAA)
	if err != nil {
		return nil, fmt.Errorf("failed to parse VAA: %w", err)
	}
	m, err := tokenbridge.DecodeTransfer(v.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transfer of %s: %w", v.MessageID(), err)
	}
	if m.TargetChain != c.Chain() {
		return nil, fmt.Errorf("transfer %s is destined for %s, not %s", v.MessageID(), m.TargetChain, c.Chain())
	}

	if payer == "" {
		payer = ethcommon.BytesToAddress(m.TargetAddress[12:]).Hex()
	}
	from, err := c.signerAddress()
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(payer, from.Hex()) {
		return nil, fmt.Errorf("payer %s does not match signer %s", payer, from.Hex())
	}

	bridge, _, err := c.tokenBridge(ctx)
	if err != nil {
		return nil, err
	}
	method := "completeTransfer"
	if m.Type == tokenbridge.PayloadTransferWithPayload {
		method = "completeTransferWithPayload"
	}

	c.txMu.Lock()
	defer c.txMu.Unlock()
	receipt, err := c.transact(ctx, o, bridge, nil, method, signedVAA)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem %s: %w", v.MessageID(), err)
	}
	c.logger.Info("redeemed transfer", zap.String("message_id", v.MessageID()), zap.Stringer("tx_hash", receipt.TxHash))
	return &adapter.Transaction{Chain: c.Chain(), ID: receipt.TxHash.Hex()}, nil
}

// IsTransferCompleted looks the VAA up by its signing digest, which is the hash the token bridge records.
func (c *Context) IsTransferCompleted(ctx context.Context, signedVAA []byte) (bool, error) {
	v, err := vaa.Unmarshal(signedVAA)
	if err != nil {
		return false, fmt.Errorf("failed to parse VAA: %w", err)
	}
	bridge, _, err := c.tokenBridge(ctx)
	if err != nil {
		return false, err
	}
	out, err := c.call(ctx, bridge, "isTransferCompleted", [32]byte(v.SigningDigest()))
	if err != nil {
		return false, fmt.Errorf("failed to query redemption status: %w", err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// ParseMessageFromTx returns the token bridge transfers published by the transaction with hash txID.
func (c *Context) ParseMessageFromTx(ctx context.Context, txID string) ([]*adapter.ParsedMessage, error) {
	coreAddress, err := c.contractAddress(c.cfg.Contracts.Core, "contracts.core")
	if err != nil {
		return nil, err
	}
	_, bridgeAddress, err := c.tokenBridge(ctx)
	if err != nil {
		return nil, err
	}
	b, err := c.backend.Get(ctx)
	if err != nil {
		return nil, err
	}
	core := bind.NewBoundContract(coreAddress, coreABI, b, b, b)

	receipt, err := b.TransactionReceipt(ctx, ethcommon.HexToHash(txID))
	if err != nil {
		return nil, common.Transient(fmt.Errorf("failed to get transaction receipt: %w", err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("non-success transaction status: %d", receipt.Status)
	}

	var msgs []*adapter.ParsedMessage
	for _, l := range receipt.Logs {
		if l == nil || l.Address != coreAddress || len(l.Topics) == 0 || l.Topics[0] != LogMessagePublishedTopic {
			continue
		}
		var ev logMessagePublished
		if err := core.UnpackLog(&ev, "LogMessagePublished", *l); err != nil {
			return nil, fmt.Errorf("failed to parse log: %w", err)
		}
		if ev.Sender != bridgeAddress {
			continue
		}
		m, err := adapter.BuildParsedMessage(ctx, c.resolver, &adapter.Publication{
			TxID:           receipt.TxHash.Hex(),
			EmitterChain:   c.Chain(),
			EmitterAddress: PadAddress(ev.Sender),
			Sequence:       ev.Sequence,
			Payload:        ev.Payload,
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no token bridge transfers found in tx %s", txID)
	}
	return msgs, nil
}

func (c *Context) ParseMessage(ctx context.Context, v *vaa.VAA) (*adapter.ParsedMessage, error) {
	return adapter.ParseVAA(ctx, c.resolver, v)
}

func (c *Context) Close() error {
	if b, ok := c.backend.Peek(); ok {
		b.Close()
	}
	return nil
}

func (c *Context) signerAddress() (ethcommon.Address, error) {
	if c.key == nil {
		return ethcommon.Address{}, &common.ConfigurationError{Chain: c.Chain(), Field: "private_key"}
	}
	return crypto.PubkeyToAddress(c.key.PublicKey), nil
}

func (c *Context) contractAddress(address string, field string) (ethcommon.Address, error) {
	if address == "" {
		return ethcommon.Address{}, &common.ConfigurationError{Chain: c.Chain(), Field: field}
	}
	if !ethcommon.IsHexAddress(address) {
		return ethcommon.Address{}, &common.ConfigurationError{Chain: c.Chain(), Field: field, Msg: fmt.Sprintf("invalid address %q", address)}
	}
	return ethcommon.HexToAddress(address), nil
}

func (c *Context) tokenBridge(ctx context.Context) (*bind.BoundContract, ethcommon.Address, error) {
	address, err := c.contractAddress(c.cfg.Contracts.TokenBridge, "contracts.token_bridge")
	if err != nil {
		return nil, ethcommon.Address{}, err
	}
	b, err := c.backend.Get(ctx)
	if err != nil {
		return nil, ethcommon.Address{}, err
	}
	return bind.NewBoundContract(address, tokenBridgeABI, b, b, b), address, nil
}

func (c *Context) erc20(ctx context.Context, token string) (*bind.BoundContract, error) {
	if !ethcommon.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid token address %q", token)
	}
	b, err := c.backend.Get(ctx)
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(ethcommon.HexToAddress(token), erc20ABI, b, b, b), nil
}

// call runs a read-only contract call. Reverts are returned as is, anything else is transient.
func (c *Context) call(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		if strings.Contains(err.Error(), "execution reverted") {
			return nil, err
		}
		return nil, common.Transient(fmt.Errorf("%s: %w", method, err))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return out, nil
}

// transact submits a transaction and waits for it to be mined successfully.
func (c *Context) transact(ctx context.Context, o *Overrides, contract *bind.BoundContract, value *big.Int, method string, args ...interface{}) (*types.Receipt, error) {
	b, err := c.backend.Get(ctx)
	if err != nil {
		return nil, err
	}
	chainID, err := c.chainID.Get(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	opts.Value = value
	opts.GasLimit = o.GasLimit
	if opts.GasPrice, err = o.gasPrice(); err != nil {
		return nil, err
	}

	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		txsSubmitted.WithLabelValues(c.Chain().String(), method, "error").Inc()
		return nil, fmt.Errorf("failed to submit %s: %w", method, err)
	}
	c.logger.Debug("submitted tx", zap.String("method", method), zap.Stringer("tx_hash", tx.Hash()))

	waitCtx, cancel := context.WithTimeout(ctx, o.receiptTimeout())
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, b, tx)
	if err != nil {
		txsSubmitted.WithLabelValues(c.Chain().String(), method, "error").Inc()
		return nil, common.Transient(fmt.Errorf("failed to wait for %s: %w", tx.Hash().Hex(), err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		txsSubmitted.WithLabelValues(c.Chain().String(), method, "failed").Inc()
		return nil, fmt.Errorf("%s transaction %s failed", method, tx.Hash().Hex())
	}
	txsSubmitted.WithLabelValues(c.Chain().String(), method, "success").Inc()
	return receipt, nil
}
