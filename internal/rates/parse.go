package rates

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Auction identifies the source marketplace for a purchased vehicle.
type Auction string

const (
	AuctionCopart Auction = "Copart"
	AuctionIAAI   Auction = "IAAI"
)

// ParseAuction maps the raw auction column value to an Auction. Anything that
// is not Copart is treated as IAAI, matching the upstream sheets.
func ParseAuction(value string) Auction {
	if strings.EqualFold(strings.TrimSpace(value), string(AuctionCopart)) {
		return AuctionCopart
	}
	return AuctionIAAI
}

// FeeKind discriminates flat amounts from percentage-of-price fees.
type FeeKind int

const (
	// FeeFlat is a fixed monetary amount.
	FeeFlat FeeKind = iota
	// FeePercent is a percentage of the input price.
	FeePercent
)

// FeeValue is a tagged fee: either a flat amount or a percentage rate.
// Keeping the discriminator explicit avoids string sniffing at resolve time.
type FeeValue struct {
	Kind   FeeKind
	Amount float64
}

// Flat returns a fixed-amount fee value.
func Flat(amount float64) FeeValue { return FeeValue{Kind: FeeFlat, Amount: amount} }

// Percent returns a percentage fee value. Amount is the percentage, not a ratio.
func Percent(rate float64) FeeValue { return FeeValue{Kind: FeePercent, Amount: rate} }

// Of returns the monetary amount this fee yields for the given price.
func (f FeeValue) Of(price float64) float64 {
	if f.Kind == FeePercent {
		return price * f.Amount / 100
	}
	return f.Amount
}

// Tier covers the inclusive price range [Min, Max] and yields Fee.
// An Open tier has no upper bound; tier order is semantically significant
// because resolution is first-match.
type Tier struct {
	Min  float64
	Max  float64
	Open bool
	Fee  FeeValue
}

// LocationRate is one row of the ground-shipping table, keyed by
// (Auction, Location) with first match winning on duplicates.
type LocationRate struct {
	Auction  Auction `json:"auction"`
	Location string  `json:"location"`
	Zip      string  `json:"zip"`
	Port     string  `json:"port"`
	Rate     float64 `json:"rate"`
}

// OceanRate is the sea-freight cost for a destination port shorthand.
type OceanRate struct {
	State     string  `json:"state"`
	Shorthand string  `json:"shorthand"`
	Rate      float64 `json:"rate"`
}

// ExtraFeeType enumerates surcharge categories.
type ExtraFeeType string

const (
	ExtraFeeHybrid  ExtraFeeType = "EV/Hybrid"
	ExtraFeePickup  ExtraFeeType = "Pickup"
	ExtraFeeService ExtraFeeType = "Service"
)

// ExtraFee is a flat surcharge for one ExtraFeeType.
type ExtraFee struct {
	Type ExtraFeeType `json:"type"`
	Rate float64      `json:"rate"`
}

// ParseLocationRates converts a ground-rate sheet into typed rows. Malformed
// rows (too few columns, unparseable rate) are skipped rather than failing the
// whole sheet; the skipped count is returned so callers can log it. Uploads go
// through ValidateCSV first, which rejects structurally broken sheets outright.
func ParseLocationRates(text string) ([]LocationRate, int) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows []LocationRate
	skipped := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil || len(record) < 6 {
			skipped++
			continue
		}
		rate, ok := parseNumeric(record[5])
		if !ok {
			// Covers the header row as well as genuinely broken data rows.
			skipped++
			continue
		}
		rows = append(rows, LocationRate{
			Auction:  ParseAuction(record[0]),
			Location: strings.TrimSpace(record[1]),
			Zip:      strings.TrimSpace(record[3]),
			Port:     stripPortStateSuffix(record[4]),
			Rate:     rate,
		})
	}
	return rows, skipped
}

// ParseTieredFees converts a price-range fee schedule into ordered tiers.
// The range column has the form "$min-$max"; a "%" in the max token marks an
// open-ended tier, and a "%" in the fee column marks a percentage fee. The
// same parser serves the purchase-fee schedules and the virtual-bid schedule:
// the latter never uses percentage tiers today, but the detection logic is
// deliberately shared rather than assumed away.
func ParseTieredFees(text string) ([]Tier, int) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var tiers []Tier
	skipped := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil || len(record) < 2 {
			skipped++
			continue
		}
		bounds := strings.SplitN(record[0], "-", 2)
		if len(bounds) != 2 {
			skipped++
			continue
		}
		min, ok := parseNumeric(bounds[0])
		if !ok {
			skipped++
			continue
		}
		tier := Tier{Min: min}
		if strings.Contains(bounds[1], "%") {
			tier.Open = true
		} else {
			max, ok := parseNumeric(bounds[1])
			if !ok {
				skipped++
				continue
			}
			tier.Max = max
		}
		feeField := strings.TrimSpace(record[1])
		feeAmount, ok := parseNumeric(feeField)
		if !ok {
			skipped++
			continue
		}
		if strings.Contains(feeField, "%") {
			tier.Fee = Percent(feeAmount)
		} else {
			tier.Fee = Flat(feeAmount)
		}
		tiers = append(tiers, tier)
	}
	return tiers, skipped
}

// stripPortStateSuffix turns "Savannah, GA" into "Savannah". The upstream
// sheet always writes ports as "City, ST".
func stripPortStateSuffix(port string) string {
	cleaned := strings.TrimSpace(strings.Trim(strings.TrimSpace(port), `"`))
	if idx := strings.LastIndex(cleaned, ","); idx >= 0 {
		tail := strings.TrimSpace(cleaned[idx+1:])
		if len(tail) == 2 {
			return strings.TrimSpace(cleaned[:idx])
		}
	}
	return cleaned
}

// parseNumeric strips the currency symbol, quotes, percent signs, and
// thousands separators before parsing. Negated amounts are rejected rather
// than silently parsed as their absolute value.
func parseNumeric(value string) (float64, bool) {
	seenDigit := false
	for _, r := range value {
		if r >= '0' && r <= '9' {
			seenDigit = true
		}
		if r == '-' && !seenDigit {
			return 0, false
		}
	}
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, value)
	if cleaned == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
