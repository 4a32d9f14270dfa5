package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoSigner is returned when no signing key is configured.
var ErrNoSigner = errors.New("no signer configured")

// Signer is a transaction-signing capability for one account.
type Signer struct {
	Address common.Address
	sign    func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// SignTx signs tx for the given chain.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return s.sign(tx, chainID)
}

// NewKeySigner wraps an in-memory private key.
func NewKeySigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		sign: func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
			return types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
		},
	}
}

// SignerSource hands out a signer for one mint attempt. Sources load the key
// on every call because the account behind them may change between attempts.
type SignerSource interface {
	Acquire(ctx context.Context) (*Signer, error)
}

// HexKeySource signs with a hex-encoded private key.
type HexKeySource struct {
	Key string
}

func (s HexKeySource) Acquire(ctx context.Context) (*Signer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := strings.TrimPrefix(strings.TrimSpace(s.Key), "0x")
	if raw == "" {
		return nil, ErrNoSigner
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewKeySigner(key), nil
}

// KeystoreSource signs with an encrypted JSON keystore file.
type KeystoreSource struct {
	Path       string
	Passphrase string
}

func (s KeystoreSource) Acquire(ctx context.Context) (*Signer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Path) == "" {
		return nil, ErrNoSigner
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(data, s.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return NewKeySigner(key.PrivateKey), nil
}

// NoSigner always refuses; it is used when the service runs read-only.
type NoSigner struct{}

func (NoSigner) Acquire(context.Context) (*Signer, error) { return nil, ErrNoSigner }
