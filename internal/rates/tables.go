package rates

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
)

//go:embed data/ground_rates.csv
var groundRatesCSV string

//go:embed data/purchase_fees_a.csv
var purchaseFeesACSV string

//go:embed data/purchase_fees_c.csv
var purchaseFeesCCSV string

//go:embed data/virtual_bid.csv
var virtualBidCSV string

// ScheduleStyle selects which purchase-fee schedule applies.
type ScheduleStyle string

const (
	ScheduleStyleA ScheduleStyle = "A"
	ScheduleStyleC ScheduleStyle = "C"
)

// ParseScheduleStyle normalises a configured schedule style, defaulting to A.
func ParseScheduleStyle(value string) (ScheduleStyle, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "A":
		return ScheduleStyleA, nil
	case "C":
		return ScheduleStyleC, nil
	default:
		return "", fmt.Errorf("unknown fee schedule style %q", value)
	}
}

// baselineOceanRates is the static sea-freight table, keyed by port shorthand.
// User or default pricing overrides replace entries per port as absolute
// values; they never adjust these by delta.
var baselineOceanRates = []OceanRate{
	{State: "Georgia", Shorthand: "Savannah, GA", Rate: 1025},
	{State: "Florida", Shorthand: "Jacksonville, FL", Rate: 1100},
	{State: "Florida", Shorthand: "Miami, FL", Rate: 1150},
	{State: "New Jersey", Shorthand: "NJ", Rate: 1350},
	{State: "New Jersey", Shorthand: "Newark, NJ", Rate: 1350},
	{State: "Maryland", Shorthand: "Baltimore, MD", Rate: 1300},
	{State: "Texas", Shorthand: "TX", Rate: 1450},
	{State: "Texas", Shorthand: "Houston, TX", Rate: 1450},
	{State: "California", Shorthand: "CA", Rate: 1675},
	{State: "California", Shorthand: "Los Angeles, CA", Rate: 1675},
	{State: "California", Shorthand: "Oakland, CA", Rate: 1700},
	{State: "Washington", Shorthand: "Tacoma, WA", Rate: 1800},
}

// baselineExtraFees is the static surcharge table.
var baselineExtraFees = []ExtraFee{
	{Type: ExtraFeeHybrid, Rate: 150},
	{Type: ExtraFeePickup, Rate: 200},
	{Type: ExtraFeeService, Rate: 100},
}

// Tables aggregates every parsed lookup structure the pricing engine needs.
// Construct it once at startup and share it; it is never mutated after
// construction except through ReloadLocations, which admins trigger when a new
// sheet version is activated.
type Tables struct {
	PurchaseFeesA []Tier
	PurchaseFeesC []Tier
	VirtualBid    []Tier
	Locations     []LocationRate
	Ocean         []OceanRate
	Extras        []ExtraFee
}

// Default parses the embedded baseline sheets into a ready-to-use table set.
func Default() (*Tables, error) {
	feesA, skippedA := ParseTieredFees(purchaseFeesACSV)
	feesC, skippedC := ParseTieredFees(purchaseFeesCCSV)
	virtualBid, skippedVB := ParseTieredFees(virtualBidCSV)
	locations, skippedLoc := ParseLocationRates(groundRatesCSV)

	// Each embedded sheet carries exactly one header row; anything beyond that
	// means the baseline data shipped with the binary is broken.
	if skippedA > 1 || skippedC > 1 || skippedVB > 1 || skippedLoc > 1 {
		return nil, errors.New("rates: embedded baseline sheets contain malformed rows")
	}
	if len(feesA) == 0 || len(feesC) == 0 || len(virtualBid) == 0 || len(locations) == 0 {
		return nil, errors.New("rates: embedded baseline sheets are empty")
	}

	return &Tables{
		PurchaseFeesA: feesA,
		PurchaseFeesC: feesC,
		VirtualBid:    virtualBid,
		Locations:     locations,
		Ocean:         append([]OceanRate(nil), baselineOceanRates...),
		Extras:        append([]ExtraFee(nil), baselineExtraFees...),
	}, nil
}

// Schedule returns the purchase-fee schedule for the given style.
func (t *Tables) Schedule(style ScheduleStyle) []Tier {
	if style == ScheduleStyleC {
		return t.PurchaseFeesC
	}
	return t.PurchaseFeesA
}

// ReloadLocations replaces the ground-rate table from a new sheet, returning
// the number of rows loaded and skipped. The caller decides whether a non-zero
// skip count is worth logging; activation of broken sheets is prevented
// upstream by ValidateCSV.
func (t *Tables) ReloadLocations(csvText string) (loaded, skipped int) {
	rows, skippedRows := ParseLocationRates(csvText)
	if len(rows) > 0 {
		t.Locations = rows
	}
	return len(rows), skippedRows
}

// GroundTemplateCSV exposes the embedded baseline sheet, used when no uploaded
// version has ever been activated.
func GroundTemplateCSV() string { return groundRatesCSV }
