package car

import (
	"time"

	"github.com/google/uuid"

	"github.com/westgate-auto/backend-westgate/internal/pricing"
	"github.com/westgate-auto/backend-westgate/internal/rates"
)

// Car is one imported vehicle tracked through the pipeline. The fee breakdown
// is persisted with the row so historical cars keep the totals they were
// priced at until an explicit recalculation.
type Car struct {
	ID              uuid.UUID         `json:"id"`
	OwnerID         *uuid.UUID        `json:"owner_id,omitempty"`
	VIN             string            `json:"vin"`
	Make            string            `json:"make"`
	Model           string            `json:"model"`
	Year            int               `json:"year"`
	Auction         rates.Auction     `json:"auction"`
	AuctionLocation string            `json:"auction_location"`
	Port            string            `json:"port"`
	BodyType        string            `json:"body_type"`
	FuelType        string            `json:"fuel_type"`
	PurchasePrice   float64           `json:"purchase_price"`
	Insurance       bool              `json:"insurance"`
	Fees            pricing.Breakdown `json:"fees"`
	TotalPaid       float64           `json:"total_paid"`
	TotalDue        float64           `json:"total_due"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Payment records money received against a car's total fee.
type Payment struct {
	ID        uuid.UUID `json:"id"`
	CarID     uuid.UUID `json:"car_id"`
	Amount    float64   `json:"amount"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// quoteInput maps a car's pricing-relevant fields onto the engine's input.
func (c Car) quoteInput() pricing.QuoteInput {
	return pricing.QuoteInput{
		Auction:         c.Auction,
		AuctionLocation: c.AuctionLocation,
		Port:            c.Port,
		BodyType:        c.BodyType,
		FuelType:        c.FuelType,
		PurchasePrice:   c.PurchasePrice,
		Insurance:       c.Insurance,
	}
}
