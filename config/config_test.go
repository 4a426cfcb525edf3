package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adnhq/collateralized-lending/native/lending"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
AdminAddress = "0x00000000000000000000000000000000000000aa"
CustodyAddress = "0x00000000000000000000000000000000000000cc"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8545" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.Env != "dev" {
		t.Fatalf("unexpected env: %q", cfg.Env)
	}
	if cfg.Lending.SeizureRecipient != lending.SeizureToAdmin {
		t.Fatalf("unexpected seizure recipient: %q", cfg.Lending.SeizureRecipient)
	}
	if cfg.Admin().Hex() == cfg.Custody().Hex() {
		t.Fatalf("admin and custody parsed to the same address")
	}
}

func TestLoadRejectsBadAddresses(t *testing.T) {
	path := writeConfig(t, `
AdminAddress = "not-an-address"
CustodyAddress = "0x00000000000000000000000000000000000000cc"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "AdminAddress") {
		t.Fatalf("expected AdminAddress error, got %v", err)
	}
}

func TestLoadRejectsUnknownSeizureRecipient(t *testing.T) {
	path := writeConfig(t, `
AdminAddress = "0x00000000000000000000000000000000000000aa"
CustodyAddress = "0x00000000000000000000000000000000000000cc"

[lending]
SeizureRecipient = "treasury"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected seizure recipient error")
	}
}

func TestLoadParsesOracleAndSeizureOverrides(t *testing.T) {
	path := writeConfig(t, `
ListenAddress = ":9000"
AdminAddress = "0x00000000000000000000000000000000000000aa"
CustodyAddress = "0x00000000000000000000000000000000000000cc"

[lending]
SeizureRecipient = "Custody"

[oracle]
CollateralAPrice = "200000000"
CollateralBPrice = "300000000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.Lending.SeizureRecipient != lending.SeizureToCustody {
		t.Fatalf("seizure recipient not normalised: %q", cfg.Lending.SeizureRecipient)
	}
	if cfg.Oracle.CollateralAPrice != "200000000" || cfg.Oracle.CollateralBPrice != "300000000" {
		t.Fatalf("unexpected oracle prices: %+v", cfg.Oracle)
	}
}
