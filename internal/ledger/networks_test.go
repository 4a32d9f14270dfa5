package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseNetworks(t *testing.T) {
	raw := []byte(`
networks:
  31337:
    name: localhost
    nft: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
  11155111:
    name: sepolia
    nft: "0x0000000000000000000000000000000000000001"
`)
	networks, err := ParseNetworks(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(networks) != 2 {
		t.Fatalf("expected 2 networks, got %d", len(networks))
	}
	if networks[31337].Name != "localhost" {
		t.Fatalf("unexpected network %+v", networks[31337])
	}
}

func TestParseNetworksRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty":   "networks: {}\n",
		"address": "networks:\n  1:\n    name: x\n    nft: nope\n",
		"syntax":  "networks: [\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseNetworks([]byte(raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadNetworks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	if err := os.WriteFile(path, []byte("networks:\n  1:\n    name: mainnet\n    nft: \"0x0000000000000000000000000000000000000001\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	networks, err := LoadNetworks(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if networks[1].Name != "mainnet" {
		t.Fatalf("unexpected %+v", networks)
	}
	if _, err := LoadNetworks(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
