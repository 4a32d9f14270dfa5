package ledger

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Network describes where the NFT contract lives on one chain.
type Network struct {
	Name string `yaml:"name"`
	NFT  string `yaml:"nft"`
}

type networksFile struct {
	Networks map[uint64]Network `yaml:"networks"`
}

// LoadNetworks reads the per-chain contract address table.
func LoadNetworks(path string) (map[uint64]Network, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ledger: read networks: %w", err)
	}
	return ParseNetworks(raw)
}

// ParseNetworks decodes and validates a YAML network table.
func ParseNetworks(raw []byte) (map[uint64]Network, error) {
	var file networksFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("ledger: parse networks: %w", err)
	}
	if len(file.Networks) == 0 {
		return nil, fmt.Errorf("ledger: networks table is empty")
	}
	for chainID, n := range file.Networks {
		if !common.IsHexAddress(n.NFT) {
			return nil, fmt.Errorf("ledger: chain %d: invalid nft address %q", chainID, n.NFT)
		}
	}
	return file.Networks, nil
}
