package lending

import (
	"fmt"
	"strings"
)

// SeizureRecipient names who receives collateral seized during forced
// interest collection.
type SeizureRecipient string

const (
	// SeizureToAdmin routes seized collateral to the administrator account.
	SeizureToAdmin SeizureRecipient = "admin"
	// SeizureToCustody leaves seized collateral in ledger custody.
	SeizureToCustody SeizureRecipient = "custody"
)

// Config captures the runtime configuration for the lending module.
type Config struct {
	// SeizureRecipient selects the destination of collateral seized by
	// CollectInterest. Deployments route seized collateral either to the
	// administrator or into ledger custody.
	SeizureRecipient SeizureRecipient `toml:"SeizureRecipient"`
}

// Normalise applies defaults and canonical casing to the configuration.
func (c Config) Normalise() Config {
	cfg := c
	cfg.SeizureRecipient = SeizureRecipient(strings.ToLower(strings.TrimSpace(string(c.SeizureRecipient))))
	if cfg.SeizureRecipient == "" {
		cfg.SeizureRecipient = SeizureToAdmin
	}
	return cfg
}

// Validate rejects configurations that name an unknown seizure recipient.
func (c Config) Validate() error {
	switch c.SeizureRecipient {
	case SeizureToAdmin, SeizureToCustody:
		return nil
	default:
		return fmt.Errorf("lending: unknown seizure recipient %q", c.SeizureRecipient)
	}
}
