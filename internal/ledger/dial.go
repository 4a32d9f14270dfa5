package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"

	"nftforge/internal/infra"
)

// SignerFromConfig picks the signing key source configured in cfg.
func SignerFromConfig(cfg *infra.Config) SignerSource {
	switch {
	case cfg.SignerPrivateKey != "":
		return HexKeySource{Key: cfg.SignerPrivateKey}
	case cfg.SignerKeystore != "":
		return KeystoreSource{Path: cfg.SignerKeystore, Passphrase: cfg.SignerPassphrase}
	default:
		return NoSigner{}
	}
}

// Dial connects to the configured RPC endpoint and builds a Client. The
// returned func closes the connection.
func Dial(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Client, func(), error) {
	networks, err := LoadNetworks(cfg.NetworksFile)
	if err != nil {
		return nil, nil, err
	}
	var price *big.Int
	if cfg.MintPriceWei != "" {
		p, ok := new(big.Int).SetString(cfg.MintPriceWei, 10)
		if !ok {
			return nil, nil, fmt.Errorf("ledger: invalid mint price %q", cfg.MintPriceWei)
		}
		price = p
	}
	rpc, err := ethclient.DialContext(ctx, cfg.EthRPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: dial %s: %w", cfg.EthRPCURL, err)
	}
	client, err := NewClient(Options{
		Backend:        rpc,
		Networks:       networks,
		Signers:        SignerFromConfig(cfg),
		Price:          price,
		PollInterval:   cfg.ReceiptPollInterval,
		ReceiptTimeout: cfg.ReceiptTimeout,
		Logger:         logger,
	})
	if err != nil {
		rpc.Close()
		return nil, nil, err
	}
	return client, rpc.Close, nil
}
