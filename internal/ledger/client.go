package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"nftforge/internal/domain"
	"nftforge/internal/infra"
)

// Backend is the slice of an Ethereum JSON-RPC client the ledger needs.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Options configure a Client.
type Options struct {
	Backend  Backend
	Networks map[uint64]Network
	Signers  SignerSource
	// Price overrides the on-chain cost() when set.
	Price        *big.Int
	PollInterval time.Duration
	// ReceiptTimeout bounds the wait for a sent transaction to be included.
	ReceiptTimeout time.Duration
	Logger         *infra.Logger
}

// ErrNotConfirmed is returned when a sent transaction has no receipt once the
// receipt timeout has passed, e.g. because it was dropped from the mempool.
var ErrNotConfirmed = errors.New("transaction not confirmed")

// Client submits mint transactions and reads contract state.
type Client struct {
	backend  Backend
	networks map[uint64]Network
	signers  SignerSource
	price    *big.Int
	poll     time.Duration
	timeout  time.Duration
	logger   *infra.Logger
}

// Contract is the resolved deployment the client talks to.
type Contract struct {
	ChainID *big.Int
	Network string
	Address common.Address
}

func NewClient(opts Options) (*Client, error) {
	if opts.Backend == nil {
		return nil, errors.New("ledger: backend is required")
	}
	if len(opts.Networks) == 0 {
		return nil, errors.New("ledger: at least one network is required")
	}
	signers := opts.Signers
	if signers == nil {
		signers = NoSigner{}
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 1500 * time.Millisecond
	}
	timeout := opts.ReceiptTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		backend:  opts.Backend,
		networks: opts.Networks,
		signers:  signers,
		price:    opts.Price,
		poll:     poll,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// Contract resolves the NFT deployment for the chain the backend is on.
func (c *Client) Contract(ctx context.Context) (*Contract, error) {
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: chain id: %w", err)
	}
	n, ok := c.networks[chainID.Uint64()]
	if !ok {
		return nil, fmt.Errorf("ledger: no nft contract configured for chain %s", chainID)
	}
	return &Contract{ChainID: chainID, Network: n.Name, Address: common.HexToAddress(n.NFT)}, nil
}

// Mint submits mint(tokenURI) paying the mint price and blocks until the
// transaction is included. A nil payment uses the configured price or, when
// none is configured, the contract's current cost().
func (c *Client) Mint(ctx context.Context, tokenURI string, payment *big.Int) (*domain.MintReceipt, error) {
	contract, err := c.Contract(ctx)
	if err != nil {
		return nil, &domain.MintError{Err: err}
	}
	if payment == nil {
		payment = c.price
	}
	if payment == nil {
		if payment, err = c.cost(ctx, contract); err != nil {
			return nil, &domain.MintError{Err: err}
		}
	}

	receipt, err := c.transact(ctx, contract, payment, "mint", tokenURI)
	if err != nil {
		return nil, err
	}

	out := &domain.MintReceipt{
		TokenURI:        tokenURI,
		TransactionHash: receipt.TxHash.Hex(),
		TokenID:         mintedTokenID(receipt, contract.Address),
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	c.logger.Info().
		Str("tx", out.TransactionHash).
		Uint64("block", out.BlockNumber).
		Str("token_uri", tokenURI).
		Msg("nft minted")
	return out, nil
}

// Owner returns the contract owner.
func (c *Client) Owner(ctx context.Context) (common.Address, error) {
	var owner common.Address
	err := c.read(ctx, "owner", &owner)
	return owner, err
}

// Cost returns the current on-chain mint price in wei.
func (c *Client) Cost(ctx context.Context) (*big.Int, error) {
	contract, err := c.Contract(ctx)
	if err != nil {
		return nil, err
	}
	return c.cost(ctx, contract)
}

func (c *Client) cost(ctx context.Context, contract *Contract) (*big.Int, error) {
	var cost *big.Int
	if err := c.readAt(ctx, contract, "cost", &cost); err != nil {
		return nil, err
	}
	return cost, nil
}

// Paused reports whether minting is paused.
func (c *Client) Paused(ctx context.Context) (bool, error) {
	var paused bool
	err := c.read(ctx, "paused", &paused)
	return paused, err
}

// TotalSupply returns the number of tokens minted so far.
func (c *Client) TotalSupply(ctx context.Context) (*big.Int, error) {
	var supply *big.Int
	err := c.read(ctx, "totalSupply", &supply)
	return supply, err
}

func (c *Client) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	var owner common.Address
	err := c.read(ctx, "ownerOf", &owner, tokenID)
	return owner, err
}

func (c *Client) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	var uri string
	err := c.read(ctx, "tokenURI", &uri, tokenID)
	return uri, err
}

// Pause stops further mints. Owner only.
func (c *Client) Pause(ctx context.Context) (string, error) {
	return c.admin(ctx, "pause")
}

// Unpause resumes minting. Owner only.
func (c *Client) Unpause(ctx context.Context) (string, error) {
	return c.admin(ctx, "unpause")
}

// UpdateCost sets a new mint price in wei. Owner only.
func (c *Client) UpdateCost(ctx context.Context, cost *big.Int) (string, error) {
	if cost == nil || cost.Sign() < 0 {
		return "", &domain.ValidationError{Field: "cost", Message: "cost must be a non-negative amount of wei"}
	}
	return c.admin(ctx, "updateCost", cost)
}

// Withdraw moves the collected mint fees to the owner. Owner only.
func (c *Client) Withdraw(ctx context.Context) (string, error) {
	return c.admin(ctx, "withdraw")
}

func (c *Client) admin(ctx context.Context, method string, args ...any) (string, error) {
	contract, err := c.Contract(ctx)
	if err != nil {
		return "", &domain.MintError{Err: err}
	}
	receipt, err := c.transact(ctx, contract, nil, method, args...)
	if err != nil {
		return "", err
	}
	c.logger.Info().Str("method", method).Str("tx", receipt.TxHash.Hex()).Msg("contract call confirmed")
	return receipt.TxHash.Hex(), nil
}

func (c *Client) read(ctx context.Context, method string, out any, args ...any) error {
	contract, err := c.Contract(ctx)
	if err != nil {
		return err
	}
	return c.readAt(ctx, contract, method, out, args...)
}

func (c *Client) readAt(ctx context.Context, contract *Contract, method string, out any, args ...any) error {
	data, err := parsedNFT.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("ledger: pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &contract.Address, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("ledger: call %s: %w", method, err)
	}
	values, err := parsedNFT.Unpack(method, raw)
	if err != nil {
		return fmt.Errorf("ledger: unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return fmt.Errorf("ledger: %s returned %d values", method, len(values))
	}
	switch dst := out.(type) {
	case *common.Address:
		v, ok := values[0].(common.Address)
		if !ok {
			return fmt.Errorf("ledger: %s: unexpected type %T", method, values[0])
		}
		*dst = v
	case **big.Int:
		v, ok := values[0].(*big.Int)
		if !ok {
			return fmt.Errorf("ledger: %s: unexpected type %T", method, values[0])
		}
		*dst = v
	case *bool:
		v, ok := values[0].(bool)
		if !ok {
			return fmt.Errorf("ledger: %s: unexpected type %T", method, values[0])
		}
		*dst = v
	case *string:
		v, ok := values[0].(string)
		if !ok {
			return fmt.Errorf("ledger: %s: unexpected type %T", method, values[0])
		}
		*dst = v
	default:
		return fmt.Errorf("ledger: unsupported output %T", out)
	}
	return nil
}

// transact signs, sends and waits for one contract call. Signing problems are
// returned as SigningError; everything the network rejects is a MintError
// carrying the raw node message.
func (c *Client) transact(ctx context.Context, contract *Contract, value *big.Int, method string, args ...any) (*types.Receipt, error) {
	signer, err := c.signers.Acquire(ctx)
	if err != nil {
		return nil, &domain.SigningError{Err: err}
	}
	data, err := parsedNFT.Pack(method, args...)
	if err != nil {
		return nil, &domain.MintError{Err: fmt.Errorf("pack %s: %w", method, err)}
	}
	if value == nil {
		value = new(big.Int)
	}

	msg := ethereum.CallMsg{From: signer.Address, To: &contract.Address, Value: value, Data: data}
	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, &domain.MintError{Raw: err.Error(), Err: err}
	}
	nonce, err := c.backend.PendingNonceAt(ctx, signer.Address)
	if err != nil {
		return nil, &domain.MintError{Err: fmt.Errorf("nonce: %w", err)}
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &domain.MintError{Err: fmt.Errorf("gas price: %w", err)}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contract.Address,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := signer.SignTx(tx, contract.ChainID)
	if err != nil {
		return nil, &domain.SigningError{Err: err}
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, &domain.MintError{Raw: err.Error(), Err: err}
	}

	hash := signed.Hash().Hex()
	c.logger.Debug().Str("method", method).Str("tx", hash).Uint64("nonce", nonce).Msg("transaction sent")

	receipt, err := c.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, &domain.MintError{TxHash: hash, Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		raw := c.revertReason(ctx, msg, receipt.BlockNumber)
		return nil, &domain.MintError{Raw: raw, TxHash: hash, Err: errors.New("transaction reverted")}
	}
	return receipt, nil
}

// waitMined polls for the receipt until it appears, the receipt timeout
// passes or ctx ends. Transient RPC errors keep the poll going.
func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			c.logger.Warn().Err(err).Str("tx", hash.Hex()).Msg("receipt poll failed")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			c.logger.Warn().Str("tx", hash.Hex()).Dur("waited", c.timeout).Msg("transaction not confirmed in time")
			return nil, ErrNotConfirmed
		case <-ticker.C:
		}
	}
}

// revertReason replays a failed call at its block to recover the node's
// revert message.
func (c *Client) revertReason(ctx context.Context, msg ethereum.CallMsg, block *big.Int) string {
	_, err := c.backend.CallContract(ctx, msg, block)
	if err != nil {
		return err.Error()
	}
	return "execution reverted"
}

// mintedTokenID extracts the id from the Transfer(0x0, to, id) log.
func mintedTokenID(receipt *types.Receipt, contract common.Address) *big.Int {
	transfer := parsedNFT.Events["Transfer"].ID
	for _, l := range receipt.Logs {
		if l == nil || l.Address != contract || len(l.Topics) != 4 || l.Topics[0] != transfer {
			continue
		}
		if common.BytesToAddress(l.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[3].Bytes())
	}
	return nil
}

