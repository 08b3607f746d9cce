package rates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateCSVTemplateRoundTrip(t *testing.T) {
	result := ValidateCSV(Template())
	require.True(t, result.Valid)
	require.Empty(t, result.Errors)
}

func TestValidateCSVEmbeddedBaseline(t *testing.T) {
	result := ValidateCSV(GroundTemplateCSV())
	require.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestValidateCSVHeaderOnly(t *testing.T) {
	result := ValidateCSV("Auction,Auction Name,Location,Zip,Port,Rate\n")
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
}

func TestValidateCSVAccumulatesAllErrors(t *testing.T) {
	sheet := strings.Join([]string{
		"Vendor,Name,City,Postal,Harbor,Price",
		"Copart,GA - Savannah,Savannah",
		"Manheim,TX - Dallas,Dallas,75051,\"Houston, TX\",$330",
		"IAAI,Newark,Newark,07114,\"Newark, NJ\",$-1",
		"Copart,FL - Miami Central,Miami,33167,\"Miami, FL\",$165.50",
	}, "\n")

	result := ValidateCSV(sheet)
	require.False(t, result.Valid)

	joined := strings.Join(result.Errors, "\n")
	// Every violation is surfaced in one pass: missing header columns, a short
	// row, an unknown auction, a negative rate, and a fractional rate.
	require.Contains(t, joined, `required column "auction name"`)
	require.Contains(t, joined, "line 2: expected at least 6")
	require.Contains(t, joined, "line 3: auction must be Copart or IAAI")
	require.Contains(t, joined, "line 4: rate must not be negative")
	require.Contains(t, joined, "line 5: rate")
}
