package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"nftforge/internal/infra"
)

func TestHexKeySource(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)

	signer, err := HexKeySource{Key: hexutil.Encode(crypto.FromECDSA(key))}.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if signer.Address != want {
		t.Fatalf("expected %s, got %s", want, signer.Address)
	}

	if _, err := (HexKeySource{}).Acquire(context.Background()); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("expected ErrNoSigner, got %v", err)
	}
	if _, err := (HexKeySource{Key: "zz"}).Acquire(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestKeystoreSource(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	blob, err := keystore.EncryptKey(&keystore.Key{Id: uuid.New(), Address: addr, PrivateKey: key}, "secret", keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	signer, err := KeystoreSource{Path: path, Passphrase: "secret"}.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if signer.Address != addr {
		t.Fatalf("expected %s, got %s", addr, signer.Address)
	}
	if _, err := (KeystoreSource{Path: path, Passphrase: "wrong"}).Acquire(context.Background()); err == nil {
		t.Fatalf("expected decrypt error")
	}
}

func TestSignerFromConfig(t *testing.T) {
	if _, ok := SignerFromConfig(&infra.Config{SignerPrivateKey: "0x01"}).(HexKeySource); !ok {
		t.Fatalf("expected hex key source")
	}
	if _, ok := SignerFromConfig(&infra.Config{SignerKeystore: "/tmp/k.json", SignerPassphrase: "x"}).(KeystoreSource); !ok {
		t.Fatalf("expected keystore source")
	}
	if _, ok := SignerFromConfig(&infra.Config{}).(NoSigner); !ok {
		t.Fatalf("expected no signer")
	}
}
