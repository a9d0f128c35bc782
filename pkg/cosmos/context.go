// Package cosmos implements the chain context of CosmWasm chains: Terra 2, Injective, XPLA, Sei, Osmosis and
// Wormchain. It talks to a node over gRPC and to the bridge contracts through smart queries and MsgExecuteContract.
package cosmos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/certusone/wormhole/connect/pkg/adapter"
	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/tokenbridge"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var txsSubmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "connect_cosmos_txs_submitted_total",
		Help: "Total number of transactions submitted to CosmWasm chains",
	}, []string{"chain", "result"})

// Dialer creates the node connection of a context.
type Dialer func(ctx context.Context, cfg Config) (Conn, error)

// Context is the adapter.ChainContext of a CosmWasm chain.
type Context struct {
	adapter.Base

	logger   *zap.Logger
	cfg      Config
	resolver adapter.Resolver
	signer   Signer
	dial     Dialer
	conn     *common.Lazy[Conn]
	foreign  *adapter.ForeignAssets

	// txMu serializes account sequence use between concurrent submissions.
	txMu sync.Mutex
}

var _ adapter.ChainContext = (*Context)(nil)

type Option func(*Context)

// WithSigner sets the account that submits transfers and redemptions.
func WithSigner(s Signer) Option {
	return func(c *Context) {
		c.signer = s
	}
}

// WithDialer replaces the gRPC connection, mostly for tests.
func WithDialer(d Dialer) Option {
	return func(c *Context) {
		c.dial = d
	}
}

// NewContext creates the context of a CosmWasm chain. No connection is made until the first operation that needs
// one. Missing endpoints and contracts are reported by the operations that use them.
func NewContext(logger *zap.Logger, cfg Config, resolver adapter.Resolver, opts ...Option) (*Context, error) {
	if cfg.Chain.Platform() != chains.PlatformCosmWasm {
		return nil, fmt.Errorf("%s is not a CosmWasm chain", cfg.Chain)
	}
	cfg = cfg.withDefaults()

	c := &Context{
		Base:     adapter.Base{ChainID: cfg.Chain},
		logger:   logger.With(zap.Stringer("chain", cfg.Chain)),
		cfg:      cfg,
		resolver: resolver,
		dial:     dialGRPC,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.conn = common.NewLazy(func(ctx context.Context) (Conn, error) {
		if c.cfg.RPC == "" {
			return nil, &common.ConfigurationError{Chain: c.cfg.Chain, Field: "rpc"}
		}
		conn, err := c.dial(ctx, c.cfg)
		if err != nil {
			return nil, common.Transient(fmt.Errorf("failed to connect to %s: %w", c.cfg.RPC, err))
		}
		c.logger.Info("connected to node", zap.String("rpc", c.cfg.RPC))
		return conn, nil
	})

	foreign, err := adapter.NewForeignAssets(c.logger, cfg.Chain, resolver, c.queryWrappedAsset)
	if err != nil {
		return nil, err
	}
	c.foreign = foreign
	return c, nil
}

func dialGRPC(ctx context.Context, cfg Config) (Conn, error) {
	return NewConn(ctx, cfg.RPC, cfg.TLS, MakeEncodingConfig())
}

// prefix returns the bech32 prefix of the chain's addresses.
func (c *Context) prefix() (string, error) {
	if c.cfg.Prefix == "" {
		return "", &common.ConfigurationError{Chain: c.Chain(), Field: "prefix"}
	}
	return c.cfg.Prefix, nil
}

func (c *Context) FormatAddress(address string) (vaa.Address, error) {
	prefix, err := c.prefix()
	if err != nil {
		return vaa.Address{}, err
	}
	return ToUniversal(prefix, address)
}

func (c *Context) ParseAddress(address vaa.Address) (string, error) {
	prefix, err := c.prefix()
	if err != nil {
		return "", err
	}
	return FromUniversal(prefix, address)
}

// FormatAssetAddress returns the asset id of a cw20 contract or a bank denom.
func (c *Context) FormatAssetAddress(_ context.Context, address string) (vaa.Address, error) {
	if _, err := c.prefix(); err != nil {
		return vaa.Address{}, err
	}
	if c.IsNativeToken(address) {
		if err := sdktypes.ValidateDenom(address); err != nil {
			return vaa.Address{}, fmt.Errorf("%q is neither an address nor a denom on %s: %w", address, c.Chain(), err)
		}
		return adapter.NativeAssetID(address), nil
	}
	return c.FormatAddress(address)
}

// ParseAssetAddress inverts FormatAssetAddress. Denom ids are one-way hashes, so they are looked up on the token
// bridge.
func (c *Context) ParseAssetAddress(ctx context.Context, address vaa.Address) (string, error) {
	if !adapter.IsNativeAssetID(address) {
		return c.ParseAddress(address)
	}

	var resp externalIDResponse
	if err := c.query(ctx, c.cfg.Contracts.TokenBridge, "contracts.token_bridge", externalIDQuery{Params: externalIDParams{ExternalID: address[:]}}, &resp); err != nil {
		return "", fmt.Errorf("failed to look up asset id %s: %w", address, err)
	}
	switch {
	case resp.TokenID.Bank != nil:
		return resp.TokenID.Bank.Denom, nil
	case resp.TokenID.Contract != nil && resp.TokenID.Contract.NativeCW20 != nil:
		return resp.TokenID.Contract.NativeCW20.ContractAddress, nil
	default:
		return "", fmt.Errorf("asset id %s is not native to %s", address, c.Chain())
	}
}

func (c *Context) GetForeignAsset(ctx context.Context, token common.TokenID) (string, bool, error) {
	return c.foreign.Get(ctx, token)
}

func (c *Context) MustGetForeignAsset(ctx context.Context, token common.TokenID) (string, error) {
	return c.foreign.MustGet(ctx, token)
}

// queryWrappedAsset asks the token bridge's wrapped registry. The contract answers an unknown asset with an error,
// which is told apart from infrastructure failures by its message.
func (c *Context) queryWrappedAsset(ctx context.Context, tokenChain chains.ID, tokenAddress vaa.Address) (string, bool, error) {
	var resp wrappedRegistryResponse
	err := c.query(ctx, c.cfg.Contracts.TokenBridge, "contracts.token_bridge", wrappedRegistryQuery{
		Params: wrappedRegistryParams{Chain: uint16(tokenChain), Address: tokenAddress[:]},
	}, &resp)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if resp.Address == "" {
		return "", false, nil
	}
	return resp.Address, true, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, common.ErrConfiguration) || errors.Is(err, common.ErrTransient) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

func (c *Context) GetNativeBalance(ctx context.Context, wallet string) (*big.Int, error) {
	return c.bankBalance(ctx, wallet, c.cfg.NativeDenom)
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
		return c.bankBalance(ctx, wallet, address)
	}

	var resp cw20BalanceResponse
	if err := c.query(ctx, address, "token", cw20BalanceQuery{Params: cw20BalanceParams{Address: wallet}}, &resp); err != nil {
		return nil, fmt.Errorf("failed to query cw20 balance: %w", err)
	}
	balance, ok := new(big.Int).SetString(resp.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("invalid cw20 balance %q", resp.Balance)
	}
	return balance, nil
}

func (c *Context) bankBalance(ctx context.Context, wallet string, denom string) (*big.Int, error) {
	conn, err := c.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := conn.Balance(ctx, wallet, denom)
	if err != nil {
		return nil, common.Transient(fmt.Errorf("failed to query %s balance: %w", denom, err))
	}
	return balance, nil
}

func (c *Context) FetchTokenDecimals(ctx context.Context, tokenAddress string) (uint8, error) {
	if c.IsNativeToken(tokenAddress) {
		if tokenAddress == c.cfg.NativeDenom {
			return c.cfg.NativeDecimals, nil
		}
		if d, ok := c.cfg.DenomDecimals[tokenAddress]; ok {
			return d, nil
		}
		return 0, &common.ConfigurationError{Chain: c.Chain(), Field: "denom_decimals", Msg: fmt.Sprintf("decimals of %s are unknown", tokenAddress)}
	}

	var resp cw20TokenInfoResponse
	if err := c.query(ctx, tokenAddress, "token", cw20TokenInfoQuery{}, &resp); err != nil {
		return 0, fmt.Errorf("failed to query token info: %w", err)
	}
	return resp.Decimals, nil
}

// IsNativeToken reports whether address is a bank denom rather than a cw20 contract.
func (c *Context) IsNativeToken(address string) bool {
	return !isAddress(c.cfg.Prefix, address)
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
	if _, err := c.prefix(); err != nil {
		return nil, err
	}
	if c.cfg.Contracts.TokenBridge == "" {
		return nil, &common.ConfigurationError{Chain: c.Chain(), Field: "contracts.token_bridge"}
	}
	if c.signer == nil {
		return nil, &common.ConfigurationError{Chain: c.Chain(), Field: "signer"}
	}
	sender := c.signer.Address()
	if req.Sender != "" && req.Sender != sender {
		return nil, fmt.Errorf("sender %s does not match signer %s", req.Sender, sender)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("transfer amount must be positive")
	}
	if req.RelayerFeeOrZero().Cmp(req.Amount) > 0 {
		return nil, fmt.Errorf("relayer fee %s exceeds amount %s", req.RelayerFeeOrZero(), req.Amount)
	}

	dest, err := c.resolver.Context(req.DestChain)
	if err != nil {
		return nil, fmt.Errorf("destination chain: %w", err)
	}
	recipient, err := dest.FormatAddress(req.Recipient)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q on %s: %w", req.Recipient, req.DestChain, err)
	}

	token := c.cfg.NativeDenom
	if req.Token != nil {
		if token, err = c.MustGetForeignAsset(ctx, *req.Token); err != nil {
			return nil, err
		}
	}

	var msgs []sdktypes.Msg
	var info assetInfo
	if c.IsNativeToken(token) {
		deposit, err := executeMsg(sender, c.cfg.Contracts.TokenBridge, depositTokensMsg{}, coins(token, req.Amount))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, deposit)
		info.NativeToken = &nativeTokenInfo{Denom: token}
	} else {
		allowance, err := executeMsg(sender, token, increaseAllowanceMsg{Params: increaseAllowanceParams{
			Spender: c.cfg.Contracts.TokenBridge,
			Amount:  req.Amount.String(),
		}}, nil)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, allowance)
		info.Token = &tokenInfo{ContractAddr: token}
	}

	params := newInitiateTransferParams(info, req.Amount, req.DestChain, recipient[:], req.RelayerFeeOrZero(), req.Nonce)
	var initiate interface{} = initiateTransferMsg{Params: params}
	if withPayload {
		params.Payload = req.Payload
		initiate = initiateTransferWithPayloadMsg{Params: params}
	}
	transfer, err := executeMsg(sender, c.cfg.Contracts.TokenBridge, initiate, nil)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, transfer)

	res, err := c.signAndBroadcast(ctx, msgs, o)
	if err != nil {
		return nil, err
	}
	c.logger.Info("submitted transfer",
		zap.String("tx_hash", res.Hash),
		zap.String("token", token),
		zap.Stringer("amount", req.Amount),
		zap.Stringer("dest_chain", req.DestChain),
	)
	return &adapter.Transaction{Chain: c.Chain(), ID: res.Hash}, nil
}

// Redeem submits a transfer VAA to the token bridge. payer defaults to the transfer recipient and must be the
// signer's account.
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

	prefix, err := c.prefix()
	if err != nil {
		return nil, err
	}
	if payer == "" {
		if payer, err = RecipientFromUniversal(prefix, m.TargetAddress); err != nil {
			return nil, fmt.Errorf("failed to decode recipient: %w", err)
		}
	}
	if c.cfg.Contracts.TokenBridge == "" {
		return nil, &common.ConfigurationError{Chain: c.Chain(), Field: "contracts.token_bridge"}
	}
	if c.signer == nil {
		return nil, &common.ConfigurationError{Chain: c.Chain(), Field: "signer"}
	}
	if payer != c.signer.Address() {
		return nil, fmt.Errorf("payer %s does not match signer %s", payer, c.signer.Address())
	}

	msg, err := executeMsg(payer, c.cfg.Contracts.TokenBridge, submitVAAMsg{Params: submitVAAParams{Data: signedVAA}}, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.signAndBroadcast(ctx, []sdktypes.Msg{msg}, o)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem %s: %w", v.MessageID(), err)
	}
	c.logger.Info("redeemed transfer", zap.String("message_id", v.MessageID()), zap.String("tx_hash", res.Hash))
	return &adapter.Transaction{Chain: c.Chain(), ID: res.Hash}, nil
}

func (c *Context) IsTransferCompleted(ctx context.Context, signedVAA []byte) (bool, error) {
	var resp isVAARedeemedResponse
	if err := c.query(ctx, c.cfg.Contracts.TokenBridge, "contracts.token_bridge", isVAARedeemedQuery{Params: isVAARedeemedParams{VAA: signedVAA}}, &resp); err != nil {
		return false, fmt.Errorf("failed to query redemption status: %w", err)
	}
	return resp.IsRedeemed, nil
}

// ParseMessageFromTx returns the token bridge transfers published by the transaction with hash txID.
func (c *Context) ParseMessageFromTx(ctx context.Context, txID string) ([]*adapter.ParsedMessage, error) {
	if c.cfg.Contracts.Core == "" {
		return nil, &common.ConfigurationError{Chain: c.Chain(), Field: "contracts.core"}
	}
	if c.cfg.Contracts.TokenBridge == "" {
		return nil, &common.ConfigurationError{Chain: c.Chain(), Field: "contracts.token_bridge"}
	}
	emitter, err := c.FormatAddress(c.cfg.Contracts.TokenBridge)
	if err != nil {
		return nil, &common.ConfigurationError{Chain: c.Chain(), Field: "contracts.token_bridge", Msg: err.Error()}
	}

	conn, err := c.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.GetTx(ctx, txID)
	if err != nil {
		return nil, common.Transient(fmt.Errorf("failed to get tx %s: %w", txID, err))
	}
	if tx.Failed() {
		return nil, fmt.Errorf("tx %s failed with code %d: %s", txID, tx.Code, tx.RawLog)
	}

	var msgs []*adapter.ParsedMessage
	for _, pub := range eventsToPublications(c.logger, c.Chain(), c.cfg.Contracts.Core, tx.Hash, tx.Events) {
		if pub.EmitterAddress != emitter {
			continue
		}
		m, err := adapter.BuildParsedMessage(ctx, c.resolver, pub)
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
	if conn, ok := c.conn.Peek(); ok {
		return conn.Close()
	}
	return nil
}

// query runs a smart query against contract. field names the config field contract comes from.
func (c *Context) query(ctx context.Context, contract string, field string, query interface{}, resp interface{}) error {
	if contract == "" {
		return &common.ConfigurationError{Chain: c.Chain(), Field: field}
	}
	conn, err := c.conn.Get(ctx)
	if err != nil {
		return err
	}
	queryBytes, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}
	data, err := conn.SubmitQuery(ctx, contract, queryBytes)
	if err != nil {
		if isNotFound(err) {
			return err
		}
		return common.Transient(err)
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return fmt.Errorf("failed to unmarshal query response: %w", err)
	}
	return nil
}

func (c *Context) signAndBroadcast(ctx context.Context, msgs []sdktypes.Msg, o *Overrides) (*TxResult, error) {
	conn, err := c.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	gasLimit := c.cfg.GasLimit
	if o.GasLimit != 0 {
		gasLimit = o.GasLimit
	}
	gasPrice := c.cfg.GasPrice
	if o.GasPrice != "" {
		gasPrice = o.GasPrice
	}
	fee, err := computeFee(gasLimit, gasPrice)
	if err != nil {
		return nil, err
	}

	c.txMu.Lock()
	defer c.txMu.Unlock()

	sender := c.signer.Address()
	accountNumber, sequence, err := conn.Account(ctx, sender)
	if err != nil {
		return nil, common.Transient(err)
	}
	txBytes, err := c.signer.SignTx(ctx, &UnsignedTx{
		Msgs:          msgs,
		GasLimit:      gasLimit,
		Fee:           coins(c.cfg.NativeDenom, fee),
		Memo:          o.Memo,
		ChainID:       c.cfg.ChainID,
		AccountNumber: accountNumber,
		Sequence:      sequence,
	})
	if err != nil {
		return nil, err
	}

	res, err := conn.BroadcastTx(ctx, txBytes)
	if err != nil {
		txsSubmitted.WithLabelValues(c.Chain().String(), "error").Inc()
		return nil, common.Transient(err)
	}
	if res.Failed() {
		txsSubmitted.WithLabelValues(c.Chain().String(), "failed").Inc()
		return nil, fmt.Errorf("tx %s failed with code %d: %s", res.Hash, res.Code, res.RawLog)
	}
	txsSubmitted.WithLabelValues(c.Chain().String(), "success").Inc()
	return res, nil
}
