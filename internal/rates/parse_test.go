package rates

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLocationRates(t *testing.T) {
	sheet := "Auction,Auction Name,Location,Zip,Port,Rate\n" +
		"Copart,GA - Savannah,Savannah,31405,\"Savannah, GA\",$140\n" +
		"IAAI,Newark,Newark,07114,\"Newark, NJ\",$150\n" +
		"Salvage Direct,Anywhere,Anywhere,00000,\"Newark, NJ\",\"$1,025\"\n"

	rows, skipped := ParseLocationRates(sheet)
	require.Equal(t, 1, skipped, "only the header row should be skipped")
	require.Len(t, rows, 3)

	require.Equal(t, AuctionCopart, rows[0].Auction)
	require.Equal(t, "GA - Savannah", rows[0].Location)
	require.Equal(t, "31405", rows[0].Zip)
	require.Equal(t, "Savannah", rows[0].Port, "port must be stripped of its state suffix")
	require.Equal(t, 140.0, rows[0].Rate)

	require.Equal(t, AuctionIAAI, rows[1].Auction)

	// Unknown auction names fall back to IAAI; thousands separators in the
	// rate are stripped.
	require.Equal(t, AuctionIAAI, rows[2].Auction)
	require.Equal(t, 1025.0, rows[2].Rate)
}

func TestParseLocationRatesSkipsShortRows(t *testing.T) {
	sheet := "Auction,Auction Name,Location,Zip,Port,Rate\n" +
		"Copart,GA - Savannah\n" +
		"Copart,GA - Savannah,Savannah,31405,\"Savannah, GA\",$140\n"

	rows, skipped := ParseLocationRates(sheet)
	require.Len(t, rows, 1)
	require.Equal(t, 2, skipped)
}

func TestParseLocationRatesSkipsNegativeRates(t *testing.T) {
	sheet := "Auction,Auction Name,Location,Zip,Port,Rate\n" +
		"Copart,GA - Savannah,Savannah,31405,\"Savannah, GA\",-140\n" +
		"Copart,GA - Atlanta,Atlanta,30303,\"Savannah, GA\",$-150\n" +
		"IAAI,Newark,Newark,07114,\"Newark, NJ\",$150\n"

	rows, skipped := ParseLocationRates(sheet)
	require.Len(t, rows, 1, "negated rates must not survive as absolute values")
	require.Equal(t, 3, skipped)
	require.Equal(t, 150.0, rows[0].Rate)
}

func TestParseTieredFeesFlatAndPercent(t *testing.T) {
	sheet := "Price Range,Fee\n" +
		"$0.00-$999.99,215.00\n" +
		"$1000.00-$1199.99,230.00\n" +
		"$15000.00-$100000.00,6%\n"

	tiers, skipped := ParseTieredFees(sheet)
	require.Equal(t, 1, skipped)
	require.Len(t, tiers, 3)

	require.Equal(t, 0.0, tiers[0].Min)
	require.Equal(t, 999.99, tiers[0].Max)
	require.Equal(t, Flat(215), tiers[0].Fee)

	require.Equal(t, 1000.0, tiers[1].Min)
	require.False(t, tiers[1].Open)

	require.Equal(t, 15000.0, tiers[2].Min)
	require.Equal(t, 100000.0, tiers[2].Max)
	require.Equal(t, Percent(6), tiers[2].Fee)
}

func TestParseTieredFeesOpenEndedMarker(t *testing.T) {
	sheet := "$0.00-$4999.99,300.00\n$5000.00-%,5%\n"

	tiers, skipped := ParseTieredFees(sheet)
	require.Zero(t, skipped)
	require.Len(t, tiers, 2)
	require.True(t, tiers[1].Open)
	require.Equal(t, Percent(5), tiers[1].Fee)
}

func TestDefaultTables(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, tables.PurchaseFeesA)
	require.NotEmpty(t, tables.PurchaseFeesC)
	require.NotEmpty(t, tables.VirtualBid)
	require.NotEmpty(t, tables.Locations)
	require.NotEmpty(t, tables.Ocean)
	require.NotEmpty(t, tables.Extras)

	// The style-A schedule ends in a percentage catch-all tier.
	last := tables.PurchaseFeesA[len(tables.PurchaseFeesA)-1]
	require.Equal(t, FeePercent, last.Fee.Kind)
}

func TestFeeValueOf(t *testing.T) {
	require.Equal(t, 650.0, Flat(650).Of(5500))
	require.Equal(t, 1200.0, Percent(6).Of(20000))
}
