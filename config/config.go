package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"github.com/adnhq/collateralized-lending/native/lending"
)

// OracleConfig bootstraps the manual price feeds. Prices are raw feed values
// scaled by lending.RateScale, expressed as decimal strings to avoid float
// precision loss in toml.
type OracleConfig struct {
	CollateralAPrice string `toml:"CollateralAPrice"`
	CollateralBPrice string `toml:"CollateralBPrice"`
}

// Config is the daemon configuration loaded from a toml file.
type Config struct {
	ListenAddress  string         `toml:"ListenAddress"`
	DataDir        string         `toml:"DataDir"`
	Env            string         `toml:"Env"`
	AdminAddress   string         `toml:"AdminAddress"`
	CustodyAddress string         `toml:"CustodyAddress"`
	Lending        lending.Config `toml:"lending"`
	Oracle         OracleConfig   `toml:"oracle"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := new(Config)
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalise applies defaults to unset fields.
func (c *Config) Normalise() {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8545"
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "dev"
	}
	c.Lending = c.Lending.Normalise()
}

// Validate rejects configurations that cannot produce a working daemon.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: empty configuration")
	}
	if !common.IsHexAddress(strings.TrimSpace(c.AdminAddress)) {
		return fmt.Errorf("config: AdminAddress must be a hex address")
	}
	if !common.IsHexAddress(strings.TrimSpace(c.CustodyAddress)) {
		return fmt.Errorf("config: CustodyAddress must be a hex address")
	}
	return c.Lending.Validate()
}

// Admin returns the parsed administrator address.
func (c *Config) Admin() common.Address {
	return common.HexToAddress(strings.TrimSpace(c.AdminAddress))
}

// Custody returns the parsed ledger custody address.
func (c *Config) Custody() common.Address {
	return common.HexToAddress(strings.TrimSpace(c.CustodyAddress))
}
