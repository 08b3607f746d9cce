package rates

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func styleA(t *testing.T) []Tier {
	t.Helper()
	tables, err := Default()
	require.NoError(t, err)
	return tables.PurchaseFeesA
}

func TestTieredFeeBelowFirstTier(t *testing.T) {
	tiers := []Tier{{Min: 100, Max: 199.99, Fee: Flat(80)}}
	require.Equal(t, 0.0, TieredFee(tiers, 99.99))
}

func TestTieredFeeAboveBoundedTable(t *testing.T) {
	tiers := []Tier{{Min: 0, Max: 999.99, Fee: Flat(215)}}
	require.Equal(t, 0.0, TieredFee(tiers, 1000))
}

func TestTieredFeeBoundaries(t *testing.T) {
	tiers := styleA(t)

	// The fee switches tiers exactly at the lower bound of the next tier.
	require.Equal(t, 215.0, TieredFee(tiers, 999.99))
	require.Equal(t, 230.0, TieredFee(tiers, 1000.00))
	require.Equal(t, 230.0, TieredFee(tiers, 1199.99))
	require.Equal(t, 255.0, TieredFee(tiers, 1200.00))
}

func TestTieredFeePercentTier(t *testing.T) {
	tiers := styleA(t)
	require.Equal(t, 1200.0, TieredFee(tiers, 20000))
}

func TestTieredFeeFirstMatchWins(t *testing.T) {
	// Overlapping rows are resolved by source order, not by best fit.
	tiers := []Tier{
		{Min: 0, Max: 1000, Fee: Flat(50)},
		{Min: 500, Max: 1000, Fee: Flat(999)},
	}
	require.Equal(t, 50.0, TieredFee(tiers, 750))
}

func TestGroundRate(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)

	require.Equal(t, 140.0, GroundRate(tables.Locations, AuctionCopart, "GA - Savannah"))
	require.Equal(t, 0.0, GroundRate(tables.Locations, AuctionCopart, "ZZ - Nowhere"))
	require.Equal(t, 0.0, GroundRate(tables.Locations, AuctionIAAI, "GA - Savannah"))
}

func TestOceanRateFor(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)

	require.Equal(t, 1675.0, OceanRateFor(tables.Ocean, "CA"))
	require.Equal(t, 1025.0, OceanRateFor(tables.Ocean, "Savannah, GA"))
	require.Equal(t, 0.0, OceanRateFor(tables.Ocean, "Antwerp, BE"))
}

func TestExtraFeeFor(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)

	require.Equal(t, 200.0, ExtraFeeFor(tables.Extras, ExtraFeePickup))
	require.Equal(t, 150.0, ExtraFeeFor(tables.Extras, ExtraFeeHybrid))
	require.Equal(t, 0.0, ExtraFeeFor(tables.Extras, ExtraFeeType("Storage")))
}

func TestVirtualBidTier(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)
	require.Equal(t, 109.0, TieredFee(tables.VirtualBid, 5000))
	require.Equal(t, 109.0, TieredFee(tables.VirtualBid, 4000))
	require.Equal(t, 139.0, TieredFee(tables.VirtualBid, 6000))
}
