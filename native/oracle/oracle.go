package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/adnhq/collateralized-lending/native/lending"
)

// ErrFeedNotConfigured indicates that no price feed is bound to the requested
// collateral kind.
var ErrFeedNotConfigured = errors.New("oracle: price feed not configured")

// PriceFeed reports the latest raw price of a collateral asset denominated in
// distribution-asset units scaled by lending.RateScale.
type PriceFeed interface {
	LatestPrice() (*big.Int, error)
}

// Adapter binds one price feed per collateral kind and exposes the truncated
// whole-unit rate the settlement engine consumes. Reads are not cached and
// carry no staleness guard; any feed failure propagates to the caller, which
// aborts the operation in flight.
type Adapter struct {
	feeds map[lending.CollateralKind]PriceFeed
}

// NewAdapter constructs an adapter with no feeds bound.
func NewAdapter() *Adapter {
	return &Adapter{feeds: make(map[lending.CollateralKind]PriceFeed)}
}

// Bind attaches the feed serving the given collateral kind, replacing any
// previous binding.
func (a *Adapter) Bind(kind lending.CollateralKind, feed PriceFeed) {
	if a == nil || !kind.Valid() {
		return
	}
	a.feeds[kind] = feed
}

// Rate returns the latest price for the feed bound to kind, truncated by
// lending.RateScale to a whole-unit integer.
func (a *Adapter) Rate(kind lending.CollateralKind) (*big.Int, error) {
	if a == nil {
		return nil, ErrFeedNotConfigured
	}
	feed, ok := a.feeds[kind]
	if !ok || feed == nil {
		return nil, ErrFeedNotConfigured
	}
	price, err := feed.LatestPrice()
	if err != nil {
		return nil, err
	}
	if price == nil {
		return nil, fmt.Errorf("oracle: feed for collateral %s returned no price", kind)
	}
	return new(big.Int).Quo(price, lending.RateScale), nil
}

// ManualFeed is an in-memory price feed used by tests and for operational
// overrides during incident response.
type ManualFeed struct {
	mu    sync.RWMutex
	price *big.Int
}

// NewManualFeed constructs a manual feed with no price set.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{}
}

// SetDecimal parses and stores a raw price expressed as a decimal string.
func (m *ManualFeed) SetDecimal(price string) error {
	if m == nil {
		return fmt.Errorf("oracle: manual feed not configured")
	}
	parsed, ok := new(big.Int).SetString(price, 10)
	if !ok {
		return fmt.Errorf("oracle: invalid manual price %q", price)
	}
	return m.Set(parsed)
}

// Set stores the raw price. The stored value must be positive; the adapter
// itself performs no such validation on reads.
func (m *ManualFeed) Set(price *big.Int) error {
	if m == nil {
		return fmt.Errorf("oracle: manual feed not configured")
	}
	if price == nil || price.Sign() <= 0 {
		return fmt.Errorf("oracle: manual price must be positive")
	}
	m.mu.Lock()
	m.price = new(big.Int).Set(price)
	m.mu.Unlock()
	return nil
}

// LatestPrice returns the stored raw price, failing when none was set.
func (m *ManualFeed) LatestPrice() (*big.Int, error) {
	if m == nil {
		return nil, fmt.Errorf("oracle: manual feed not configured")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.price == nil {
		return nil, fmt.Errorf("oracle: manual feed has no price")
	}
	return new(big.Int).Set(m.price), nil
}
