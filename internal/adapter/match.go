package adapter

import (
	"fmt"
	"slices"
)

// VendorID is the USB vendor of supported display adapters.
const VendorID uint16 = 0x34c7

// ProductIDs lists the supported adapter products.
var ProductIDs = []uint16{0x2103, 0x2104, 0x2105, 0x2113, 0x2114, 0x2115}

// Product band used by the band matcher: ids are normalised with
// productBandBit before the range check.
const (
	productBandBit  uint16 = 0x0010
	productBandLow  uint16 = 0x2113
	productBandHigh uint16 = 0x2115
)

// MatchMode selects the product id test.
type MatchMode string

// Match modes.
const (
	// MatchBand ORs 0x0010 into the product id and range-checks the result
	// against 0x2113..0x2115. This is how deployed adapters have always been
	// recognised.
	MatchBand MatchMode = "band"
	// MatchWhitelist tests membership in ProductIDs directly.
	MatchWhitelist MatchMode = "whitelist"
)

// ParseMatchMode validates a configured mode. Empty selects MatchBand.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(s) {
	case "", MatchBand:
		return MatchBand, nil
	case MatchWhitelist:
		return MatchWhitelist, nil
	default:
		return "", fmt.Errorf("unknown usb match mode %q (want %q or %q)", s, MatchBand, MatchWhitelist)
	}
}

// Matcher decides whether a vendor/product pair is a supported adapter.
type Matcher struct {
	Mode MatchMode
}

// NewMatcher returns a matcher for mode.
func NewMatcher(mode MatchMode) Matcher {
	return Matcher{Mode: mode}
}

// Match reports whether vendor and product identify a supported adapter.
func (m Matcher) Match(vendor, product uint16) bool {
	if vendor != VendorID {
		return false
	}
	if m.Mode == MatchWhitelist {
		return slices.Contains(ProductIDs, product)
	}
	p := product | productBandBit
	return p >= productBandLow && p <= productBandHigh
}
