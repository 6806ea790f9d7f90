package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"atelier/crypto"
)

// GenesisAccount seeds a balance at first boot. Balance is a base-10 integer
// in base units.
type GenesisAccount struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

type Config struct {
	ListenAddress  string `toml:"ListenAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	NetworkName    string `toml:"NetworkName"`
	Environment    string `toml:"Environment"`

	// OwnerAddress receives platform fees and holds admin authority. The
	// node refuses fee-bearing purchases while it is unset.
	OwnerAddress string `toml:"OwnerAddress"`

	GenesisAccounts []GenesisAccount `toml:"GenesisAccounts"`
}

func defaultConfig() Config {
	return Config{
		ListenAddress:  "0.0.0.0:8545",
		MetricsAddress: "0.0.0.0:9464",
		DataDir:        "./atelier-data",
		NetworkName:    "atelier-local",
		Environment:    "dev",
	}
}

// Load reads the TOML config at path, creating it with defaults when absent.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path, cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func writeDefault(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// Validate checks that addresses and balances parse. An empty OwnerAddress is
// allowed; the ledger rejects fee-bearing settlement until one is configured.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	if owner := strings.TrimSpace(c.OwnerAddress); owner != "" {
		if _, err := crypto.DecodeAddress(owner); err != nil {
			return fmt.Errorf("invalid OwnerAddress: %w", err)
		}
	}
	for i, acct := range c.GenesisAccounts {
		if _, err := crypto.DecodeAddress(strings.TrimSpace(acct.Address)); err != nil {
			return fmt.Errorf("genesis account %d: invalid address: %w", i, err)
		}
		if _, ok := new(big.Int).SetString(strings.TrimSpace(acct.Balance), 10); !ok {
			return fmt.Errorf("genesis account %d: invalid balance %q", i, acct.Balance)
		}
	}
	return nil
}

// Owner returns the configured owner address bytes. ok is false when no owner
// is configured.
func (c *Config) Owner() (addr [20]byte, ok bool, err error) {
	owner := strings.TrimSpace(c.OwnerAddress)
	if owner == "" {
		return addr, false, nil
	}
	decoded, err := crypto.DecodeAddress(owner)
	if err != nil {
		return addr, false, fmt.Errorf("invalid OwnerAddress: %w", err)
	}
	copy(addr[:], decoded.Bytes())
	return addr, true, nil
}

// Genesis returns the parsed genesis allocations keyed by address bytes.
func (c *Config) Genesis() (map[[20]byte]*big.Int, error) {
	out := make(map[[20]byte]*big.Int, len(c.GenesisAccounts))
	for i, acct := range c.GenesisAccounts {
		decoded, err := crypto.DecodeAddress(strings.TrimSpace(acct.Address))
		if err != nil {
			return nil, fmt.Errorf("genesis account %d: invalid address: %w", i, err)
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(acct.Balance), 10)
		if !ok {
			return nil, fmt.Errorf("genesis account %d: invalid balance %q", i, acct.Balance)
		}
		var addr [20]byte
		copy(addr[:], decoded.Bytes())
		out[addr] = balance
	}
	return out, nil
}
