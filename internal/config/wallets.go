package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"taller/internal/core"
)

type walletsFile struct {
	Wallets []core.Wallet `yaml:"wallets"`
}

// LoadWallets reads the wallet list from a YAML file. An empty path returns
// defaults. Wallets missing from the file are not added back: the file is the
// complete list when given.
func LoadWallets(path string, defaults []core.Wallet) ([]core.Wallet, error) {
	if path == "" {
		return defaults, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return defaults, fmt.Errorf("read wallets %s: %w", path, err)
	}
	var f walletsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return defaults, fmt.Errorf("parse wallets %s: %w", path, err)
	}
	if len(f.Wallets) == 0 {
		return defaults, nil
	}

	seen := make(map[string]bool, len(f.Wallets))
	for i, w := range f.Wallets {
		if w.ID == "" {
			return defaults, fmt.Errorf("wallet %d: missing id", i+1)
		}
		if seen[w.ID] {
			return defaults, fmt.Errorf("wallet %q: duplicate id", w.ID)
		}
		seen[w.ID] = true
		switch w.Currency {
		case core.CurrencyUSD, core.CurrencyVES, core.CurrencyUSDT:
		default:
			return defaults, fmt.Errorf("wallet %q: unknown currency %q", w.ID, w.Currency)
		}
		if w.Name == "" {
			f.Wallets[i].Name = w.ID
		}
	}
	return f.Wallets, nil
}
