package pricing

import (
	"github.com/westgate-auto/backend-westgate/internal/rates"
)

// Body and fuel type values that attract surcharges.
const (
	BodyTypePickup         = "PICKUP"
	FuelTypeHybridElectric = "HYBRID_ELECTRIC"
)

// Policy constants. These are business policy, not derived values; they are
// carried as engine configuration so deployments can adjust them without a
// code change.
const (
	DefaultGateFee             = 79
	DefaultTitleFee            = 20
	DefaultEnvironmentalFee    = 10
	DefaultInsuranceMultiplier = 1.015
)

// Override is an admin-configured adjustment to the baseline fee tables,
// scoped either to one user or system-wide ("default"). Ocean rates replace
// the baseline per port as absolute values, while the ground fee is a single
// signed delta applied on top of the looked-up base rate. The asymmetry
// mirrors how admins edit these: ocean rates per-port, ground fee as one knob.
type Override struct {
	OceanRates      []rates.OceanRate `json:"ocean_rates"`
	GroundFeeDelta  float64           `json:"ground_fee_delta"`
	PickupSurcharge *float64          `json:"pickup_surcharge,omitempty"`
	ServiceFee      *float64          `json:"service_fee,omitempty"`
	HybridSurcharge *float64          `json:"hybrid_surcharge,omitempty"`
	Active          bool              `json:"active"`
}

// EffectiveOverride resolves the precedence chain explicitly: an active user
// override beats an active default override beats nil (static baseline).
func EffectiveOverride(user, def *Override) *Override {
	if user != nil && user.Active {
		return user
	}
	if def != nil && def.Active {
		return def
	}
	return nil
}

// QuoteInput carries everything needed to price one car. Locations, when set,
// replaces the engine's baseline ground-rate table with the active uploaded
// sheet version.
type QuoteInput struct {
	Auction         rates.Auction
	AuctionLocation string
	Port            string
	BodyType        string
	FuelType        string
	PurchasePrice   float64
	Insurance       bool
	Override        *Override
	Locations       []rates.LocationRate
}

// Breakdown itemises every resolved fee component so clients can render the
// full composition, not just the grand total.
type Breakdown struct {
	PurchaseFee      float64 `json:"purchase_fee"`
	AuctionFee       float64 `json:"auction_fee"`
	GateFee          float64 `json:"gate_fee"`
	TitleFee         float64 `json:"title_fee"`
	EnvironmentalFee float64 `json:"environmental_fee"`
	VirtualBidFee    float64 `json:"virtual_bid_fee"`
	GroundFee        float64 `json:"ground_fee"`
	OceanFee         float64 `json:"ocean_fee"`
	ExtraFees        float64 `json:"extra_fees"`
	ShippingFee      float64 `json:"shipping_fee"`
	TotalFee         float64 `json:"total_fee"`
}

// Engine computes fee breakdowns from injected lookup tables and policy
// constants. It is pure: identical inputs always produce identical output,
// and lookup misses resolve to zero instead of failing.
type Engine struct {
	Tables              *rates.Tables
	Style               rates.ScheduleStyle
	GateFee             float64
	TitleFee            float64
	EnvironmentalFee    float64
	InsuranceMultiplier float64
}

// NewEngine returns an engine over the given tables with default policy
// constants and the requested purchase-fee schedule style.
func NewEngine(tables *rates.Tables, style rates.ScheduleStyle) Engine {
	return Engine{
		Tables:              tables,
		Style:               style,
		GateFee:             DefaultGateFee,
		TitleFee:            DefaultTitleFee,
		EnvironmentalFee:    DefaultEnvironmentalFee,
		InsuranceMultiplier: DefaultInsuranceMultiplier,
	}
}

// Quote produces the full fee breakdown for one car.
func (e Engine) Quote(in QuoteInput) Breakdown {
	auctionFee := rates.TieredFee(e.Tables.Schedule(e.Style), in.PurchasePrice)
	virtualBidFee := rates.TieredFee(e.Tables.VirtualBid, in.PurchasePrice)

	locations := in.Locations
	if locations == nil {
		locations = e.Tables.Locations
	}
	groundFee := rates.GroundRate(locations, in.Auction, in.AuctionLocation)
	if in.Override != nil {
		groundFee += in.Override.GroundFeeDelta
	}
	if groundFee < 0 {
		groundFee = 0
	}

	oceanFee := e.oceanFee(in.Port, in.Override)
	extraFees := e.extraFees(in)

	shippingFee := groundFee + oceanFee + extraFees
	totalFee := in.PurchasePrice + auctionFee + e.GateFee + e.TitleFee +
		e.EnvironmentalFee + virtualBidFee + shippingFee
	if in.Insurance {
		// One multiply on the aggregate, never per component, so rounding
		// cannot drift if amounts later gain cents.
		totalFee *= e.InsuranceMultiplier
	}

	return Breakdown{
		PurchaseFee:      in.PurchasePrice,
		AuctionFee:       auctionFee,
		GateFee:          e.GateFee,
		TitleFee:         e.TitleFee,
		EnvironmentalFee: e.EnvironmentalFee,
		VirtualBidFee:    virtualBidFee,
		GroundFee:        groundFee,
		OceanFee:         oceanFee,
		ExtraFees:        extraFees,
		ShippingFee:      shippingFee,
		TotalFee:         totalFee,
	}
}

// oceanFee prefers the override's per-port entry when one exists; otherwise
// the static baseline applies. Overridden ports are absolute replacements.
func (e Engine) oceanFee(port string, override *Override) float64 {
	if override != nil {
		for _, row := range override.OceanRates {
			if row.Shorthand == port {
				return row.Rate
			}
		}
	}
	return rates.OceanRateFor(e.Tables.Ocean, port)
}

func (e Engine) extraFees(in QuoteInput) float64 {
	var total float64
	if in.BodyType == BodyTypePickup {
		total += e.surcharge(in.Override, rates.ExtraFeePickup)
	}
	if in.FuelType == FuelTypeHybridElectric {
		total += e.surcharge(in.Override, rates.ExtraFeeHybrid)
	}
	return total
}

func (e Engine) surcharge(override *Override, feeType rates.ExtraFeeType) float64 {
	if override != nil {
		switch feeType {
		case rates.ExtraFeePickup:
			if override.PickupSurcharge != nil {
				return *override.PickupSurcharge
			}
		case rates.ExtraFeeHybrid:
			if override.HybridSurcharge != nil {
				return *override.HybridSurcharge
			}
		case rates.ExtraFeeService:
			if override.ServiceFee != nil {
				return *override.ServiceFee
			}
		}
	}
	return rates.ExtraFeeFor(e.Tables.Extras, feeType)
}
