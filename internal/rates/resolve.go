package rates

import "strings"

// TieredFee returns the fee owed for value under the given schedule. Tiers are
// scanned in table order and the first row whose inclusive range contains the
// value wins, so source ordering must be preserved. A value outside every tier
// resolves to 0: absence of a fee is a valid state here, not an error.
func TieredFee(tiers []Tier, value float64) float64 {
	for _, tier := range tiers {
		if value < tier.Min {
			continue
		}
		if tier.Open || value <= tier.Max {
			return tier.Fee.Of(value)
		}
	}
	return 0
}

// GroundRate returns the flat domestic transport rate for an auction yard.
// Exact match on both keys, first match wins, 0 when unmapped.
func GroundRate(table []LocationRate, auction Auction, location string) float64 {
	for _, row := range table {
		if row.Auction == auction && row.Location == location {
			return row.Rate
		}
	}
	return 0
}

// OceanRateFor returns the sea-freight rate keyed by port shorthand, or 0 when
// the port is not mapped.
func OceanRateFor(table []OceanRate, shorthand string) float64 {
	for _, row := range table {
		if row.Shorthand == shorthand {
			return row.Rate
		}
	}
	return 0
}

// ExtraFeeFor returns the surcharge for one fee type, or 0 when absent.
func ExtraFeeFor(table []ExtraFee, feeType ExtraFeeType) float64 {
	for _, row := range table {
		if strings.EqualFold(string(row.Type), string(feeType)) {
			return row.Rate
		}
	}
	return 0
}
